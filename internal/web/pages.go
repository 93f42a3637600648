package web

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"smartlibrary/internal/analytics"
	"smartlibrary/internal/auth"
	"smartlibrary/internal/catalog"
)

type browseData struct {
	Page
	Query       string
	Books       []catalog.Book
	Form        catalog.NewBook
	FieldErrors map[string]string
}

type borrowData struct {
	Page
	Books    []catalog.Book
	Loans    []catalog.Loan
	Name     string
	Selected int64
}

type assistantData struct {
	Page
	Query string
	Reply string
}

type analyticsData struct {
	Page
	Query  string
	Answer string
}

// Browse handles GET /
func (h *Handler) Browse(w http.ResponseWriter, r *http.Request) {
	data := browseData{
		Page:  newPage(r, "browse", "Browse"),
		Query: strings.TrimSpace(r.URL.Query().Get("q")),
		Form:  catalog.NewBook{Stock: 1},
	}
	if added := r.URL.Query().Get("added"); added != "" {
		data.Flash = fmt.Sprintf("Added %s to inventory!", added)
	}
	h.renderBrowse(w, r, http.StatusOK, data)
}

func (h *Handler) renderBrowse(w http.ResponseWriter, r *http.Request, status int, data browseData) {
	books, err := h.catalog.List(r.Context(), data.Query)
	if err != nil {
		h.serverError(w, r, "list books", err)
		return
	}
	data.Books = books
	h.render(w, r, status, "browse", data)
}

// AddBook handles POST /books
func (h *Handler) AddBook(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	data := browseData{Page: newPage(r, "browse", "Browse")}
	data.Form = catalog.NewBook{
		Title:  r.PostForm.Get("title"),
		Author: r.PostForm.Get("author"),
		Genre:  r.PostForm.Get("genre"),
		ISBN:   r.PostForm.Get("isbn"),
		Stock:  1,
	}
	if raw := strings.TrimSpace(r.PostForm.Get("stock")); raw != "" {
		stock, err := strconv.Atoi(raw)
		if err != nil {
			data.Error = "Please fill all required fields (*)"
			data.FieldErrors = map[string]string{"stock": "stock must be a whole number"}
			h.renderBrowse(w, r, http.StatusBadRequest, data)
			return
		}
		data.Form.Stock = stock
	}

	book, err := h.catalog.Add(r.Context(), data.Form)
	var verr *catalog.ValidationError
	switch {
	case err == nil:
		http.Redirect(w, r, "/?added="+url.QueryEscape(book.Title), http.StatusSeeOther)
	case errors.As(err, &verr):
		data.Error = "Please fill all required fields (*)"
		data.FieldErrors = make(map[string]string, len(verr.Fields))
		for _, f := range verr.Fields {
			data.FieldErrors[f.Field] = f.Message
		}
		h.renderBrowse(w, r, http.StatusBadRequest, data)
	case errors.Is(err, catalog.ErrDuplicateISBN):
		data.Error = "ISBN already exists! Each book must have a unique ISBN."
		h.renderBrowse(w, r, http.StatusConflict, data)
	default:
		h.serverError(w, r, "add book", err)
	}
}

// DeleteBook handles POST /books/{id}/delete
func (h *Handler) DeleteBook(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "Invalid book id", http.StatusBadRequest)
		return
	}
	if err := h.catalog.Delete(r.Context(), id); err != nil {
		h.serverError(w, r, "delete book", err)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// BorrowPage handles GET /borrow
func (h *Handler) BorrowPage(w http.ResponseWriter, r *http.Request) {
	h.renderBorrow(w, r, http.StatusOK, borrowData{Page: newPage(r, "borrow", "Borrow")})
}

func (h *Handler) renderBorrow(w http.ResponseWriter, r *http.Request, status int, data borrowData) {
	books, err := h.catalog.List(r.Context(), "")
	if err != nil {
		h.serverError(w, r, "list books", err)
		return
	}
	loans, err := h.catalog.Loans(r.Context(), 20)
	if err != nil {
		h.serverError(w, r, "list loans", err)
		return
	}
	data.Books = books
	data.Loans = loans
	h.render(w, r, status, "borrow", data)
}

// Borrow handles POST /borrow
func (h *Handler) Borrow(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	data := borrowData{
		Page: newPage(r, "borrow", "Borrow"),
		Name: r.PostForm.Get("name"),
	}
	id, err := strconv.ParseInt(r.PostForm.Get("book_id"), 10, 64)
	if err != nil || id <= 0 {
		data.Error = "Please choose a book."
		h.renderBorrow(w, r, http.StatusBadRequest, data)
		return
	}
	data.Selected = id

	loan, err := h.catalog.Borrow(r.Context(), id, data.Name)
	switch {
	case err == nil:
		data.Flash = fmt.Sprintf("Borrowed %s! Due: %s", loan.BookTitle, loan.Due())
		h.renderBorrow(w, r, http.StatusOK, data)
	case errors.Is(err, catalog.ErrOutOfStock):
		data.Error = "Sorry, no copies of that book are left."
		h.renderBorrow(w, r, http.StatusConflict, data)
	case errors.Is(err, catalog.ErrNotFound):
		data.Error = "That book is no longer in the catalog."
		h.renderBorrow(w, r, http.StatusNotFound, data)
	default:
		h.serverError(w, r, "borrow book", err)
	}
}

// Assistant handles GET /assistant
func (h *Handler) Assistant(w http.ResponseWriter, r *http.Request) {
	data := assistantData{
		Page:  newPage(r, "assistant", "AI Assistant"),
		Query: strings.TrimSpace(r.URL.Query().Get("q")),
	}
	if data.Query != "" {
		reply, err := h.recommend.Recommend(r.Context(), data.Query)
		if err != nil {
			h.serverError(w, r, "recommend", err)
			return
		}
		data.Reply = reply
	}
	h.render(w, r, http.StatusOK, "assistant", data)
}

// Analytics handles GET /analytics
func (h *Handler) Analytics(w http.ResponseWriter, r *http.Request) {
	data := analyticsData{
		Page:  newPage(r, "analytics", "Analytics"),
		Query: strings.TrimSpace(r.URL.Query().Get("q")),
	}
	if data.Query != "" {
		answer, err := h.analytics.Answer(r.Context(), data.Query)
		var agentErr *analytics.AgentError
		switch {
		case err == nil:
			data.Answer = answer
		case errors.Is(err, analytics.ErrBlockedQuery):
			data.Error = analytics.BlockedMessage
		case errors.As(err, &agentErr):
			data.Error = agentErr.Error()
		default:
			h.serverError(w, r, "analytics", err)
			return
		}
	}
	h.render(w, r, http.StatusOK, "analytics", data)
}

// Login handles POST /admin/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	token, err := h.gate.Login(r.PostForm.Get("password"))
	if err != nil {
		if !errors.Is(err, auth.ErrUnauthorized) {
			h.serverError(w, r, "admin login", err)
			return
		}
		data := browseData{Page: newPage(r, "browse", "Browse"), Form: catalog.NewBook{Stock: 1}}
		data.Error = "Invalid admin password."
		h.renderBrowse(w, r, http.StatusUnauthorized, data)
		return
	}
	auth.SetCookie(w, r, token)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Logout handles POST /admin/logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	auth.ClearCookie(w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
