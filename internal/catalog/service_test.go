package catalog

import (
	"context"
	"errors"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_List(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	mockRepo := NewMockRepository(ctrl)
	svc := NewService(mockRepo)
	ctx := context.Background()

	t.Run("trims filter", func(t *testing.T) {
		mockRepo.EXPECT().List(ctx, "fantasy").Return([]Book{{ID: 1, Title: "The Hobbit"}}, nil)

		books, err := svc.List(ctx, "  fantasy ")

		require.NoError(t, err)
		assert.Len(t, books, 1)
	})

	t.Run("storage error propagates", func(t *testing.T) {
		mockRepo.EXPECT().List(ctx, "").Return(nil, errors.New("disk I/O error"))

		_, err := svc.List(ctx, "")

		assert.Error(t, err)
	})
}

func TestService_Add(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	mockRepo := NewMockRepository(ctrl)
	svc := NewService(mockRepo)
	ctx := context.Background()

	valid := NewBook{Title: "Dune", Author: "Frank Herbert", Genre: "Science Fiction", ISBN: "9780441172719", Stock: 2}

	t.Run("success", func(t *testing.T) {
		mockRepo.EXPECT().Add(ctx, gomock.Any()).DoAndReturn(func(_ context.Context, b *Book) error {
			b.ID = 5
			return nil
		})

		book, err := svc.Add(ctx, valid)

		require.NoError(t, err)
		assert.Equal(t, int64(5), book.ID)
		assert.Equal(t, "Dune", book.Title)
		assert.Equal(t, 2, book.Stock)
	})

	t.Run("empty required fields inserts nothing", func(t *testing.T) {
		tests := []struct {
			name  string
			mut   func(nb *NewBook)
			field string
		}{
			{"title", func(nb *NewBook) { nb.Title = "" }, "title"},
			{"author", func(nb *NewBook) { nb.Author = "   " }, "author"},
			{"genre", func(nb *NewBook) { nb.Genre = "" }, "genre"},
			{"isbn", func(nb *NewBook) { nb.ISBN = "" }, "isbn"},
			{"negative stock", func(nb *NewBook) { nb.Stock = -1 }, "stock"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				nb := valid
				tt.mut(&nb)

				_, err := svc.Add(ctx, nb)

				assert.ErrorIs(t, err, ErrValidation)
				var verr *ValidationError
				require.ErrorAs(t, err, &verr)
				require.Len(t, verr.Fields, 1)
				assert.Equal(t, tt.field, verr.Fields[0].Field)
			})
		}
	})

	t.Run("duplicate isbn", func(t *testing.T) {
		mockRepo.EXPECT().Add(ctx, gomock.Any()).Return(ErrDuplicateISBN)

		_, err := svc.Add(ctx, valid)

		assert.ErrorIs(t, err, ErrDuplicateISBN)
	})
}

func TestService_Delete(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	mockRepo := NewMockRepository(ctrl)
	svc := NewService(mockRepo)
	ctx := context.Background()

	mockRepo.EXPECT().Delete(ctx, int64(42)).Return(nil)

	assert.NoError(t, svc.Delete(ctx, 42))
}

func TestService_Borrow(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	mockRepo := NewMockRepository(ctrl)
	now := time.Date(2026, 10, 14, 15, 30, 0, 0, time.UTC)
	svc := NewService(mockRepo, WithClock(func() time.Time { return now }))
	ctx := context.Background()

	t.Run("due in fourteen days", func(t *testing.T) {
		mockRepo.EXPECT().Borrow(ctx, gomock.Any()).DoAndReturn(func(_ context.Context, l *Loan) error {
			l.ID = 9
			return nil
		})

		loan, err := svc.Borrow(ctx, 3, " Alice ")

		require.NoError(t, err)
		assert.Equal(t, int64(9), loan.ID)
		assert.Equal(t, int64(3), loan.BookID)
		assert.Equal(t, "Alice", loan.BorrowerName)
		assert.Equal(t, now, loan.BorrowedAt)
		assert.Equal(t, "2026-10-28", loan.Due())
	})

	t.Run("out of stock", func(t *testing.T) {
		mockRepo.EXPECT().Borrow(ctx, gomock.Any()).Return(ErrOutOfStock)

		_, err := svc.Borrow(ctx, 3, "Bob")

		assert.ErrorIs(t, err, ErrOutOfStock)
	})
}

func TestService_Borrow_DueDateCountsCalendarDays(t *testing.T) {
	newYork, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	tests := []struct {
		name string
		now  time.Time
		want string
	}{
		{"across spring forward", time.Date(2026, 2, 22, 23, 30, 0, 0, newYork), "2026-03-08"},
		{"across fall back", time.Date(2026, 10, 25, 0, 30, 0, 0, newYork), "2026-11-08"},
		{"month end", time.Date(2026, 1, 31, 9, 0, 0, 0, time.UTC), "2026-02-14"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			mockRepo := NewMockRepository(ctrl)
			mockRepo.EXPECT().Borrow(gomock.Any(), gomock.Any()).Return(nil)
			svc := NewService(mockRepo, WithClock(func() time.Time { return tt.now }))

			loan, err := svc.Borrow(context.Background(), 1, "Alice")

			require.NoError(t, err)
			assert.Equal(t, tt.want, loan.Due())
		})
	}
}

func TestService_Loans_DefaultLimit(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	mockRepo := NewMockRepository(ctrl)
	svc := NewService(mockRepo)
	ctx := context.Background()

	mockRepo.EXPECT().Loans(ctx, 50).Return([]Loan{}, nil)

	_, err := svc.Loans(ctx, 0)
	assert.NoError(t, err)
}
