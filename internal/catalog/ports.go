package catalog

import (
	"context"
)

// Repository defines the contract for catalog storage.
type Repository interface {
	// List returns active books whose title, author or genre contains filter,
	// case-insensitively. An empty filter matches every book.
	List(ctx context.Context, filter string) ([]Book, error)
	Get(ctx context.Context, id int64) (Book, error)
	// Add inserts b and sets b.ID. A retired book with the same ISBN is
	// restored with the new fields.
	Add(ctx context.Context, b *Book) error
	// Delete retires a book. Unknown ids are ignored.
	Delete(ctx context.Context, id int64) error
	// Borrow decrements stock and inserts the loan in one transaction, and
	// sets loan.ID.
	Borrow(ctx context.Context, loan *Loan) error
	Loans(ctx context.Context, limit int) ([]Loan, error)
}
