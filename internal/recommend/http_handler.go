package recommend

import (
	"net/http"
	"strings"

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

type recommendRequest struct {
	Query string `json:"query"`
}

type recommendResponse struct {
	Recommendation string `json:"recommendation"`
}

// Recommend handles POST /v1/recommendations
func (h *HTTPHandler) Recommend(w http.ResponseWriter, r *http.Request) {
	var req recommendRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.JSONError(w, r, http.StatusBadRequest, "BAD_REQUEST", "Invalid request body", nil)
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		httpx.JSONError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed",
			[]httpx.ErrorDetail{{Field: "query", Message: "query is required"}})
		return
	}

	text, err := h.svc.Recommend(r.Context(), req.Query)
	if err != nil {
		h.logger.Error("recommend", zap.Error(err), zap.String("request_id", httpx.RequestIDFrom(r)))
		httpx.JSONError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", nil)
		return
	}
	httpx.JSONSuccess(w, r, recommendResponse{Recommendation: text}, nil)
}
