package catalog

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// LoanDays is how many calendar days a borrower may keep a book.
const LoanDays = 14

// DueDateFrom returns the calendar date LoanDays after from, at midnight in
// from's location.
func DueDateFrom(from time.Time) time.Time {
	y, m, d := from.Date()
	return time.Date(y, m, d+LoanDays, 0, 0, 0, 0, from.Location())
}

// DateLayout is the stored format of a loan due date.
const DateLayout = "2006-01-02"

var (
	ErrNotFound      = errors.New("book not found")
	ErrDuplicateISBN = errors.New("isbn already exists")
	ErrOutOfStock    = errors.New("book out of stock")
	ErrValidation    = errors.New("validation failed")
)

// Book is a catalog entry.
type Book struct {
	ID     int64  `json:"id"`
	Title  string `json:"title"`
	Author string `json:"author"`
	Genre  string `json:"genre"`
	ISBN   string `json:"isbn"`
	Stock  int    `json:"stock"`
}

// NewBook holds the fields needed to add a book.
type NewBook struct {
	Title  string `json:"title" validate:"required"`
	Author string `json:"author" validate:"required"`
	Genre  string `json:"genre" validate:"required"`
	ISBN   string `json:"isbn" validate:"required"`
	Stock  int    `json:"stock" validate:"gte=0"`
}

// Loan is a record of a book lent to a borrower.
type Loan struct {
	ID           int64     `json:"id"`
	BookID       int64     `json:"book_id"`
	BookTitle    string    `json:"book_title,omitempty"`
	BorrowerName string    `json:"borrower_name"`
	BorrowedAt   time.Time `json:"borrowed_at"`
	DueDate      time.Time `json:"-"`
}

// Due returns the due date in DateLayout.
func (l Loan) Due() string {
	return l.DueDate.Format(DateLayout)
}

// FieldError describes one invalid field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists the fields rejected by Add. It matches ErrValidation
// with errors.Is.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Message)
	}
	return fmt.Sprintf("%s: %s", ErrValidation, strings.Join(msgs, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }
