package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"smartlibrary/internal/analytics"
	"smartlibrary/internal/catalog"
)

// Postgres is the server-backed store.
type Postgres struct {
	db    *pgxpool.Pool
	sqlDB *sql.DB
}

// OpenPostgres connects to dsn and initializes the schema.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: create pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping database (%s): %w", RedactDSN(dsn), err)
	}

	p := &Postgres{db: pool, sqlDB: stdlib.OpenDBFromPool(pool)}
	if err := p.Initialize(ctx); err != nil {
		p.Close()
		return nil, err
	}
	return p, nil
}

func (p *Postgres) Initialize(ctx context.Context) error {
	return migrateUp(ctx, goose.DialectPostgres, "postgres", p.sqlDB)
}

func (p *Postgres) MigrationStatus(ctx context.Context) ([]*goose.MigrationStatus, error) {
	return migrationStatus(ctx, goose.DialectPostgres, "postgres", p.sqlDB)
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.Ping(ctx)
}

func (p *Postgres) Close() error {
	err := p.sqlDB.Close()
	p.db.Close()
	return err
}

const pgBookColumns = `id, title, author, COALESCE(genre, ''), COALESCE(isbn, ''), COALESCE(stock, 0)`

func scanBook(row pgx.Row, b *catalog.Book) error {
	return row.Scan(&b.ID, &b.Title, &b.Author, &b.Genre, &b.ISBN, &b.Stock)
}

func (p *Postgres) List(ctx context.Context, filter string) ([]catalog.Book, error) {
	query := `SELECT ` + pgBookColumns + ` FROM books WHERE deleted_at IS NULL`
	var args []any
	if filter != "" {
		query += ` AND (LOWER(title) LIKE $1 OR LOWER(author) LIKE $1 OR LOWER(COALESCE(genre, '')) LIKE $1)`
		args = append(args, likePattern(filter))
	}
	query += ` ORDER BY id`

	rows, err := p.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list books: %w", err)
	}
	defer rows.Close()

	var books []catalog.Book
	for rows.Next() {
		var b catalog.Book
		if err := scanBook(rows, &b); err != nil {
			return nil, fmt.Errorf("store: list books: %w", err)
		}
		books = append(books, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list books: %w", err)
	}
	return books, nil
}

func (p *Postgres) Get(ctx context.Context, id int64) (catalog.Book, error) {
	var b catalog.Book
	err := scanBook(p.db.QueryRow(ctx,
		`SELECT `+pgBookColumns+` FROM books WHERE id = $1 AND deleted_at IS NULL`, id), &b)
	if errors.Is(err, pgx.ErrNoRows) {
		return catalog.Book{}, catalog.ErrNotFound
	}
	if err != nil {
		return catalog.Book{}, fmt.Errorf("store: get book %d: %w", id, err)
	}
	return b, nil
}

func (p *Postgres) Add(ctx context.Context, b *catalog.Book) error {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("store: add book: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		id      int64
		deleted *string
	)
	err = tx.QueryRow(ctx, `SELECT id, deleted_at FROM books WHERE isbn = $1 FOR UPDATE`, b.ISBN).Scan(&id, &deleted)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		err := tx.QueryRow(ctx,
			`INSERT INTO books (title, author, genre, isbn, stock) VALUES ($1, $2, $3, $4, $5) RETURNING id`,
			b.Title, b.Author, b.Genre, b.ISBN, b.Stock).Scan(&id)
		if err != nil {
			if isPgUnique(err) {
				return catalog.ErrDuplicateISBN
			}
			return fmt.Errorf("store: add book: %w", err)
		}
	case err != nil:
		return fmt.Errorf("store: add book: %w", err)
	case deleted == nil:
		return catalog.ErrDuplicateISBN
	default:
		_, err := tx.Exec(ctx,
			`UPDATE books SET title = $1, author = $2, genre = $3, stock = $4, deleted_at = NULL WHERE id = $5`,
			b.Title, b.Author, b.Genre, b.Stock, id)
		if err != nil {
			return fmt.Errorf("store: restore book: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("store: add book: %w", err)
	}
	b.ID = id
	return nil
}

func (p *Postgres) Delete(ctx context.Context, id int64) error {
	_, err := p.db.Exec(ctx,
		`UPDATE books SET deleted_at = $1 WHERE id = $2 AND deleted_at IS NULL`,
		timestamp(time.Now()), id)
	if err != nil {
		return fmt.Errorf("store: delete book %d: %w", id, err)
	}
	return nil
}

func (p *Postgres) Borrow(ctx context.Context, loan *catalog.Loan) error {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("store: borrow: %w", err)
	}
	defer tx.Rollback(ctx)

	var title string
	err = tx.QueryRow(ctx,
		`UPDATE books SET stock = stock - 1 WHERE id = $1 AND deleted_at IS NULL AND stock > 0 RETURNING title`,
		loan.BookID).Scan(&title)
	if errors.Is(err, pgx.ErrNoRows) {
		var stock int
		err := tx.QueryRow(ctx,
			`SELECT COALESCE(stock, 0) FROM books WHERE id = $1 AND deleted_at IS NULL`, loan.BookID).Scan(&stock)
		if errors.Is(err, pgx.ErrNoRows) {
			return catalog.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("store: borrow: %w", err)
		}
		return catalog.ErrOutOfStock
	}
	if err != nil {
		return fmt.Errorf("store: borrow: %w", err)
	}

	var id int64
	err = tx.QueryRow(ctx,
		`INSERT INTO borrowed (book_id, borrower_name, due_date, borrowed_at) VALUES ($1, $2, $3, $4) RETURNING id`,
		loan.BookID, loan.BorrowerName, loan.Due(), timestamp(loan.BorrowedAt)).Scan(&id)
	if err != nil {
		return fmt.Errorf("store: insert loan: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("store: borrow: %w", err)
	}
	loan.ID = id
	loan.BookTitle = title
	return nil
}

func (p *Postgres) Loans(ctx context.Context, limit int) ([]catalog.Loan, error) {
	rows, err := p.db.Query(ctx, `
		SELECT l.id, COALESCE(l.book_id, 0), COALESCE(b.title, ''), COALESCE(l.borrower_name, ''),
			COALESCE(l.borrowed_at, ''), COALESCE(l.due_date, '')
		FROM borrowed l
		LEFT JOIN books b ON b.id = l.book_id
		ORDER BY l.id DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: list loans: %w", err)
	}
	defer rows.Close()

	var loans []catalog.Loan
	for rows.Next() {
		var (
			l                   catalog.Loan
			borrowedAt, dueDate string
		)
		if err := rows.Scan(&l.ID, &l.BookID, &l.BookTitle, &l.BorrowerName, &borrowedAt, &dueDate); err != nil {
			return nil, fmt.Errorf("store: list loans: %w", err)
		}
		parseLoanDates(&l, borrowedAt, dueDate)
		loans = append(loans, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list loans: %w", err)
	}
	return loans, nil
}

func (p *Postgres) Dialect() string { return DriverPostgres }

func (p *Postgres) TableInfo(ctx context.Context, table string, sampleRows int) (analytics.TableInfo, error) {
	if err := checkIdent(table); err != nil {
		return analytics.TableInfo{}, err
	}
	rows, err := p.db.Query(ctx, `
		SELECT column_name, data_type
		FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = $1
		ORDER BY ordinal_position`, table)
	if err != nil {
		return analytics.TableInfo{}, fmt.Errorf("store: table info: %w", err)
	}
	defer rows.Close()

	info := analytics.TableInfo{Name: table}
	for rows.Next() {
		var c analytics.Column
		if err := rows.Scan(&c.Name, &c.Type); err != nil {
			return analytics.TableInfo{}, fmt.Errorf("store: table info: %w", err)
		}
		info.Columns = append(info.Columns, c)
	}
	if err := rows.Err(); err != nil {
		return analytics.TableInfo{}, fmt.Errorf("store: table info: %w", err)
	}
	if len(info.Columns) == 0 {
		return analytics.TableInfo{}, fmt.Errorf("store: table %q does not exist", table)
	}

	if sampleRows > 0 {
		sample, err := p.QueryReadOnly(ctx, fmt.Sprintf(`SELECT * FROM %s LIMIT %d`, table, sampleRows), sampleRows)
		if err != nil {
			return analytics.TableInfo{}, err
		}
		info.Sample = sample
	}
	return info, nil
}

// QueryReadOnly runs query inside a READ ONLY transaction that is always
// rolled back.
func (p *Postgres) QueryReadOnly(ctx context.Context, query string, maxRows int) (analytics.Table, error) {
	tx, err := p.db.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
	if err != nil {
		return analytics.Table{}, fmt.Errorf("store: read-only query: %w", err)
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, query)
	if err != nil {
		return analytics.Table{}, fmt.Errorf("store: read-only query: %w", err)
	}
	defer rows.Close()

	var out analytics.Table
	for _, fd := range rows.FieldDescriptions() {
		out.Columns = append(out.Columns, fd.Name)
	}
	for rows.Next() {
		if maxRows > 0 && len(out.Rows) == maxRows {
			out.Truncated = true
			break
		}
		vals, err := rows.Values()
		if err != nil {
			return analytics.Table{}, fmt.Errorf("store: read-only query: %w", err)
		}
		row := make([]string, len(vals))
		for i, v := range vals {
			row[i] = formatValue(v)
		}
		out.Rows = append(out.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return analytics.Table{}, fmt.Errorf("store: read-only query: %w", err)
	}
	return out, nil
}

func isPgUnique(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// RedactDSN hides the credentials of a connection string for logging.
func RedactDSN(dsn string) string {
	const marker = "://"
	start := strings.Index(dsn, marker)
	if start < 0 {
		return dsn
	}
	start += len(marker)
	end := strings.Index(dsn[start:], "@")
	if end < 0 {
		return dsn
	}
	return dsn[:start] + "***" + dsn[start+end:]
}
