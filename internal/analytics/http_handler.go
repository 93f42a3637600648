package analytics

import (
	"errors"
	"net/http"

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

type answerRequest struct {
	Question string `json:"question"`
}

type answerResponse struct {
	Answer string `json:"answer"`
}

// Answer handles POST /v1/analytics
func (h *HTTPHandler) Answer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.JSONError(w, r, http.StatusBadRequest, "BAD_REQUEST", "Invalid request body", nil)
		return
	}

	answer, err := h.svc.Answer(r.Context(), req.Question)
	var agentErr *AgentError
	switch {
	case err == nil:
		httpx.JSONSuccess(w, r, answerResponse{Answer: answer}, nil)
	case errors.Is(err, ErrEmptyQuestion):
		httpx.JSONError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed",
			[]httpx.ErrorDetail{{Field: "question", Message: "question is required"}})
	case errors.Is(err, ErrBlockedQuery):
		httpx.JSONError(w, r, http.StatusBadRequest, "BLOCKED_QUERY", BlockedMessage, nil)
	case errors.As(err, &agentErr):
		h.logger.Warn("analytics agent failed", zap.Error(err), zap.String("request_id", httpx.RequestIDFrom(r)))
		httpx.JSONError(w, r, http.StatusBadGateway, "AGENT_ERROR", agentErr.Error(), nil)
	default:
		h.logger.Error("analytics", zap.Error(err), zap.String("request_id", httpx.RequestIDFrom(r)))
		httpx.JSONError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error", nil)
	}
}
