package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Service provides catalog business logic.
type Service struct {
	repo Repository
	now  func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source used for loan dates.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a new catalog service.
func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{repo: repo, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns every book, or the books matching filter.
func (s *Service) List(ctx context.Context, filter string) ([]Book, error) {
	return s.repo.List(ctx, strings.TrimSpace(filter))
}

// Get returns a book by id.
func (s *Service) Get(ctx context.Context, id int64) (Book, error) {
	return s.repo.Get(ctx, id)
}

// Add validates nb and inserts it.
func (s *Service) Add(ctx context.Context, nb NewBook) (Book, error) {
	nb.Title = strings.TrimSpace(nb.Title)
	nb.Author = strings.TrimSpace(nb.Author)
	nb.Genre = strings.TrimSpace(nb.Genre)
	nb.ISBN = strings.TrimSpace(nb.ISBN)

	if err := validateNewBook(nb); err != nil {
		return Book{}, err
	}

	b := Book{
		Title:  nb.Title,
		Author: nb.Author,
		Genre:  nb.Genre,
		ISBN:   nb.ISBN,
		Stock:  nb.Stock,
	}
	if err := s.repo.Add(ctx, &b); err != nil {
		return Book{}, err
	}
	return b, nil
}

// Delete retires the book with the given id.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

// Borrow lends one copy of a book to borrowerName for LoanDays.
func (s *Service) Borrow(ctx context.Context, bookID int64, borrowerName string) (Loan, error) {
	now := s.now()
	loan := Loan{
		BookID:       bookID,
		BorrowerName: strings.TrimSpace(borrowerName),
		BorrowedAt:   now,
		DueDate:      DueDateFrom(now),
	}
	if err := s.repo.Borrow(ctx, &loan); err != nil {
		return Loan{}, err
	}
	return loan, nil
}

// Loans returns the most recent loans, newest first.
func (s *Service) Loans(ctx context.Context, limit int) ([]Loan, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.repo.Loans(ctx, limit)
}

func validateNewBook(nb NewBook) error {
	err := validate.Struct(nb)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	out := &ValidationError{}
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		var msg string
		switch fe.Tag() {
		case "required":
			msg = fmt.Sprintf("%s is required", field)
		case "gte":
			msg = fmt.Sprintf("%s must not be negative", field)
		default:
			msg = fmt.Sprintf("%s is invalid", field)
		}
		out.Fields = append(out.Fields, FieldError{Field: field, Message: msg})
	}
	return out
}
