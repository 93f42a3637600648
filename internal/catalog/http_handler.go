package catalog

import (
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"smartlibrary/internal/httpx"
)

type HTTPHandler struct {
	svc    *Service
	logger *zap.Logger
}

func NewHTTPHandler(svc *Service, logger *zap.Logger) *HTTPHandler {
	return &HTTPHandler{svc: svc, logger: logger}
}

type borrowRequest struct {
	BorrowerName string `json:"borrower_name"`
}

type loanResponse struct {
	Loan
	DueDate string `json:"due_date"`
}

func toLoanResponse(l Loan) loanResponse {
	return loanResponse{Loan: l, DueDate: l.Due()}
}

// List handles GET /v1/books
func (h *HTTPHandler) List(w http.ResponseWriter, r *http.Request) {
	books, err := h.svc.List(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		h.internalError(w, r, "list books", err)
		return
	}
	if books == nil {
		books = []Book{}
	}
	httpx.JSONSuccess(w, r, books, map[string]any{"total": len(books)})
}

// Get handles GET /v1/books/{id}
func (h *HTTPHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	book, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, "get book", err)
		return
	}
	httpx.JSONSuccess(w, r, book, nil)
}

// Add handles POST /v1/books
func (h *HTTPHandler) Add(w http.ResponseWriter, r *http.Request) {
	nb := NewBook{Stock: 1}
	if err := httpx.DecodeJSON(r, &nb); err != nil {
		httpx.JSONError(w, r, http.StatusBadRequest, "BAD_REQUEST", "Invalid request body", nil)
		return
	}

	book, err := h.svc.Add(r.Context(), nb)
	if err != nil {
		h.writeError(w, r, "add book", err)
		return
	}
	httpx.JSONCreated(w, r, book)
}

// Delete handles DELETE /v1/books/{id}
func (h *HTTPHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), id); err != nil {
		h.internalError(w, r, "delete book", err)
		return
	}
	httpx.JSONNoContent(w)
}

// Borrow handles POST /v1/books/{id}/borrow
func (h *HTTPHandler) Borrow(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req borrowRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.JSONError(w, r, http.StatusBadRequest, "BAD_REQUEST", "Invalid request body", nil)
		return
	}

	loan, err := h.svc.Borrow(r.Context(), id, req.BorrowerName)
	if err != nil {
		h.writeError(w, r, "borrow book", err)
		return
	}
	httpx.JSONCreated(w, r, toLoanResponse(loan))
}

// Loans handles GET /v1/loans
func (h *HTTPHandler) Loans(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	loans, err := h.svc.Loans(r.Context(), limit)
	if err != nil {
		h.internalError(w, r, "list loans", err)
		return
	}
	out := make([]loanResponse, 0, len(loans))
	for _, l := range loans {
		out = append(out, toLoanResponse(l))
	}
	httpx.JSONSuccess(w, r, out, map[string]any{"total": len(out)})
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		details := make([]httpx.ErrorDetail, 0, len(verr.Fields))
		for _, f := range verr.Fields {
			details = append(details, httpx.ErrorDetail{Field: f.Field, Message: f.Message})
		}
		httpx.JSONError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "Please fill all required fields", details)
	case errors.Is(err, ErrDuplicateISBN):
		httpx.JSONError(w, r, http.StatusConflict, "DUPLICATE_ISBN", "ISBN already exists! Each book must have a unique ISBN.", nil)
	case errors.Is(err, ErrOutOfStock):
		httpx.JSONError(w, r, http.StatusConflict, "OUT_OF_STOCK", "No copies left to borrow", nil)
	case errors.Is(err, ErrNotFound):
		httpx.JSONError(w, r, http.StatusNotFound, "NOT_FOUND", "Book not found", nil)
	default:
		h.internalError(w, r, op, err)
	}
}

func (h *HTTPHandler) internalError(w http.ResponseWriter, r *http.Request, op string, err error) {
	h.logger.Error(op, zap.Error(err), zap.String("request_id", httpx.RequestIDFrom(r)))
	httpx.JSONError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", nil)
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.JSONError(w, r, http.StatusBadRequest, "BAD_REQUEST", "Invalid book id", nil)
		return 0, false
	}
	return id, true
}
