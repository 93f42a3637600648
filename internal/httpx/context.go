package httpx

import (
	"context"
	"net/http"
)

type contextKey string

const (
	requestIDKey contextKey = "requestID"
	adminKey     contextKey = "admin"
)

// RequestIDFrom retrieves the request ID from the request context.
func RequestIDFrom(r *http.Request) string {
	if v, ok := r.Context().Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// ContextWithRequestID returns a new context carrying the request ID.
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// IsAdmin reports whether the request carries a verified admin session.
func IsAdmin(r *http.Request) bool {
	v, _ := r.Context().Value(adminKey).(bool)
	return v
}

// ContextWithAdmin marks the context as belonging to an admin session.
func ContextWithAdmin(ctx context.Context) context.Context {
	return context.WithValue(ctx, adminKey, true)
}
