package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestHandler(t *testing.T) (*HTTPHandler, *MockRepository) {
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)
	mockRepo := NewMockRepository(ctrl)
	now := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	service := NewService(mockRepo, WithClock(func() time.Time { return now }))
	return NewHTTPHandler(service, zap.NewNop()), mockRepo
}

func TestHTTPHandler_List(t *testing.T) {
	handler, mockRepo := newTestHandler(t)

	t.Run("success", func(t *testing.T) {
		mockRepo.EXPECT().List(gomock.Any(), "hobbit").Return([]Book{{ID: 1, Title: "The Hobbit"}}, nil)

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/v1/books?q=hobbit", nil)

		handler.List(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "The Hobbit")
	})

	t.Run("error", func(t *testing.T) {
		mockRepo.EXPECT().List(gomock.Any(), gomock.Any()).Return(nil, context.DeadlineExceeded)

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/v1/books", nil)

		handler.List(w, r)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestHTTPHandler_Get(t *testing.T) {
	handler, mockRepo := newTestHandler(t)

	t.Run("not found", func(t *testing.T) {
		mockRepo.EXPECT().Get(gomock.Any(), int64(7)).Return(Book{}, ErrNotFound)

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/v1/books/7", nil)
		r.SetPathValue("id", "7")

		handler.Get(w, r)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("bad id", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/v1/books/abc", nil)
		r.SetPathValue("id", "abc")

		handler.Get(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHTTPHandler_Add(t *testing.T) {
	handler, mockRepo := newTestHandler(t)

	t.Run("defaults stock to one", func(t *testing.T) {
		mockRepo.EXPECT().Add(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, b *Book) error {
			assert.Equal(t, 1, b.Stock)
			b.ID = 10
			return nil
		})

		body := `{"title":"Dune","author":"Frank Herbert","genre":"Science Fiction","isbn":"9780441172719"}`
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/v1/books", strings.NewReader(body))

		handler.Add(w, r)

		assert.Equal(t, http.StatusCreated, w.Code)
	})

	t.Run("validation error", func(t *testing.T) {
		body := `{"title":"Dune","author":"","genre":"Science Fiction","isbn":"9780441172719"}`
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/v1/books", strings.NewReader(body))

		handler.Add(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		var resp struct {
			Error struct {
				Code    string `json:"code"`
				Details []struct {
					Field string `json:"field"`
				} `json:"details"`
			} `json:"error"`
		}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
		require.Len(t, resp.Error.Details, 1)
		assert.Equal(t, "author", resp.Error.Details[0].Field)
	})

	t.Run("duplicate isbn", func(t *testing.T) {
		mockRepo.EXPECT().Add(gomock.Any(), gomock.Any()).Return(ErrDuplicateISBN)

		body := `{"title":"Dune","author":"Frank Herbert","genre":"Science Fiction","isbn":"9780441172719"}`
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/v1/books", strings.NewReader(body))

		handler.Add(w, r)

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Contains(t, w.Body.String(), "DUPLICATE_ISBN")
	})
}

func TestHTTPHandler_Borrow(t *testing.T) {
	handler, mockRepo := newTestHandler(t)

	t.Run("success", func(t *testing.T) {
		mockRepo.EXPECT().Borrow(gomock.Any(), gomock.Any()).Return(nil)

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/v1/books/3/borrow", strings.NewReader(`{"borrower_name":"Alice"}`))
		r.SetPathValue("id", "3")

		handler.Borrow(w, r)

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Contains(t, w.Body.String(), `"due_date":"2026-01-15"`)
	})

	t.Run("out of stock", func(t *testing.T) {
		mockRepo.EXPECT().Borrow(gomock.Any(), gomock.Any()).Return(ErrOutOfStock)

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/v1/books/3/borrow", strings.NewReader(`{"borrower_name":"Alice"}`))
		r.SetPathValue("id", "3")

		handler.Borrow(w, r)

		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("storage failure", func(t *testing.T) {
		mockRepo.EXPECT().Borrow(gomock.Any(), gomock.Any()).Return(errors.New("database is locked"))

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/v1/books/3/borrow", strings.NewReader(`{"borrower_name":"Alice"}`))
		r.SetPathValue("id", "3")

		handler.Borrow(w, r)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestHTTPHandler_Delete(t *testing.T) {
	handler, mockRepo := newTestHandler(t)
	mockRepo.EXPECT().Delete(gomock.Any(), int64(99)).Return(nil)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodDelete, "/v1/books/99", nil)
	r.SetPathValue("id", "99")

	handler.Delete(w, r)

	assert.Equal(t, http.StatusNoContent, w.Code)
}
