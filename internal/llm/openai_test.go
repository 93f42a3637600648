package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(url string) *OpenAIClient {
	c := NewOpenAIClient(ProviderGroq, Config{
		APIKey:  "test-key",
		BaseURL: url,
		Model:   DefaultGroqModel,
		Timeout: 5 * time.Second,
	}, 0.7)
	c.backoff = time.Millisecond
	return c
}

func TestOpenAIClient_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, DefaultGroqModel, req.Model)
		assert.InDelta(t, 0.7, req.Temperature, 0.0001)
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "user", req.Messages[0].Role)
		assert.Equal(t, "recommend a classic", req.Messages[0].Content)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  Try The Great Gatsby.\n"}}]}`))
	}))
	defer srv.Close()

	got, err := newTestClient(srv.URL).Complete(context.Background(), "recommend a classic")

	require.NoError(t, err)
	assert.Equal(t, "Try The Great Gatsby.", got)
}

func TestOpenAIClient_RetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer srv.Close()

	got, err := newTestClient(srv.URL).Complete(context.Background(), "hi")

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, int32(2), calls.Load())
}

func TestOpenAIClient_ClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"Invalid API Key"}}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Complete(context.Background(), "hi")

	var serr *ServiceError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, http.StatusUnauthorized, serr.StatusCode)
	assert.Equal(t, ProviderGroq, serr.Provider)
	assert.Contains(t, err.Error(), "Invalid API Key")
	assert.Equal(t, int32(1), calls.Load())
}

func TestOpenAIClient_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Complete(context.Background(), "hi")

	assert.ErrorContains(t, err, "no completion returned")
}

func TestOpenAIClient_ContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := newTestClient(srv.URL).Complete(ctx, "hi")

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNew(t *testing.T) {
	ctx := context.Background()

	t.Run("missing key", func(t *testing.T) {
		c, err := New(ctx, Config{Provider: ProviderGroq}, 0.7)
		require.NoError(t, err)
		_, err = c.Complete(ctx, "hi")
		assert.ErrorIs(t, err, ErrMissingAPIKey)
	})

	t.Run("groq defaults", func(t *testing.T) {
		c, err := New(ctx, Config{Provider: ProviderGroq, APIKey: "k"}, 0)
		require.NoError(t, err)
		oc, ok := c.(*OpenAIClient)
		require.True(t, ok)
		assert.Equal(t, GroqBaseURL, oc.baseURL)
		assert.Equal(t, DefaultGroqModel, oc.model)
		assert.Equal(t, 60*time.Second, oc.httpClient.Timeout)
	})

	t.Run("unknown provider", func(t *testing.T) {
		_, err := New(ctx, Config{Provider: "mystery", APIKey: "k"}, 0)
		assert.Error(t, err)
	})
}
