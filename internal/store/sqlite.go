package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pressly/goose/v3"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"smartlibrary/internal/analytics"
	"smartlibrary/internal/catalog"
)

// foldFunc is a Unicode-aware lower(). SQLite's own LOWER and LIKE fold only
// ASCII, so List filters through it to match strings.ToLower on the pattern.
const foldFunc = "fold"

func init() {
	if err := sqlite.RegisterDeterministicScalarFunction(foldFunc, 1, fold); err != nil {
		panic(fmt.Sprintf("store: register %s: %v", foldFunc, err))
	}
}

func fold(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case nil:
		return nil, nil
	case string:
		return strings.ToLower(v), nil
	case []byte:
		return strings.ToLower(string(v)), nil
	default:
		return strings.ToLower(fmt.Sprint(v)), nil
	}
}

// SQLite is the file-backed store. db is the read-write handle; ro is a
// query_only handle reserved for analytics.
type SQLite struct {
	db   *sql.DB
	ro   *sql.DB
	path string
}

// OpenSQLite opens (creating if needed) the database file at path and
// initializes its schema.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if path == "" {
		path = "books.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("store: create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", sqliteDSN(path, true,
		"busy_timeout(5000)", "journal_mode(WAL)", "foreign_keys(0)"))
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	s := &SQLite{db: db, path: path}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	if err := s.Initialize(ctx); err != nil {
		db.Close()
		return nil, err
	}

	ro, err := sql.Open("sqlite", sqliteDSN(path, false, "busy_timeout(5000)", "query_only(1)"))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("store: open read-only %s: %w", path, err)
	}
	s.ro = ro
	return s, nil
}

// sqliteDSN builds a modernc DSN. Writers take the lock at BEGIN so the
// borrow transaction never has to upgrade a read lock.
func sqliteDSN(path string, writer bool, pragmas ...string) string {
	q := url.Values{}
	for _, p := range pragmas {
		q.Add("_pragma", p)
	}
	if writer {
		q.Set("_txlock", "immediate")
	}
	return "file:" + path + "?" + q.Encode()
}

// Path returns the database file path.
func (s *SQLite) Path() string { return s.path }

func (s *SQLite) Initialize(ctx context.Context) error {
	return migrateUp(ctx, goose.DialectSQLite3, "sqlite", s.db)
}

func (s *SQLite) MigrationStatus(ctx context.Context) ([]*goose.MigrationStatus, error) {
	return migrationStatus(ctx, goose.DialectSQLite3, "sqlite", s.db)
}

func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLite) Close() error {
	var roErr error
	if s.ro != nil {
		roErr = s.ro.Close()
	}
	return errors.Join(s.db.Close(), roErr)
}

const sqliteBookColumns = `id, title, author, COALESCE(genre, ''), COALESCE(isbn, ''), COALESCE(stock, 0)`

func (s *SQLite) List(ctx context.Context, filter string) ([]catalog.Book, error) {
	query := `SELECT ` + sqliteBookColumns + ` FROM books WHERE deleted_at IS NULL`
	var args []any
	if filter != "" {
		query += ` AND (fold(title) LIKE ? ESCAPE '\' OR fold(author) LIKE ? ESCAPE '\' OR fold(COALESCE(genre, '')) LIKE ? ESCAPE '\')`
		p := likePattern(filter)
		args = append(args, p, p, p)
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list books: %w", err)
	}
	defer rows.Close()

	var books []catalog.Book
	for rows.Next() {
		var b catalog.Book
		if err := rows.Scan(&b.ID, &b.Title, &b.Author, &b.Genre, &b.ISBN, &b.Stock); err != nil {
			return nil, fmt.Errorf("store: list books: %w", err)
		}
		books = append(books, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list books: %w", err)
	}
	return books, nil
}

func (s *SQLite) Get(ctx context.Context, id int64) (catalog.Book, error) {
	var b catalog.Book
	err := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteBookColumns+` FROM books WHERE id = ? AND deleted_at IS NULL`, id,
	).Scan(&b.ID, &b.Title, &b.Author, &b.Genre, &b.ISBN, &b.Stock)
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.Book{}, catalog.ErrNotFound
	}
	if err != nil {
		return catalog.Book{}, fmt.Errorf("store: get book %d: %w", id, err)
	}
	return b, nil
}

func (s *SQLite) Add(ctx context.Context, b *catalog.Book) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: add book: %w", err)
	}
	defer tx.Rollback()

	var (
		id      int64
		deleted sql.NullString
	)
	err = tx.QueryRowContext(ctx, `SELECT id, deleted_at FROM books WHERE isbn = ?`, b.ISBN).Scan(&id, &deleted)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		res, err := tx.ExecContext(ctx,
			`INSERT INTO books (title, author, genre, isbn, stock) VALUES (?, ?, ?, ?, ?)`,
			b.Title, b.Author, b.Genre, b.ISBN, b.Stock)
		if err != nil {
			if isSQLiteUnique(err) {
				return catalog.ErrDuplicateISBN
			}
			return fmt.Errorf("store: add book: %w", err)
		}
		if id, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("store: add book: %w", err)
		}
	case err != nil:
		return fmt.Errorf("store: add book: %w", err)
	case !deleted.Valid:
		return catalog.ErrDuplicateISBN
	default:
		_, err := tx.ExecContext(ctx,
			`UPDATE books SET title = ?, author = ?, genre = ?, stock = ?, deleted_at = NULL WHERE id = ?`,
			b.Title, b.Author, b.Genre, b.Stock, id)
		if err != nil {
			return fmt.Errorf("store: restore book: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: add book: %w", err)
	}
	b.ID = id
	return nil
}

func (s *SQLite) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE books SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`,
		timestamp(time.Now()), id)
	if err != nil {
		return fmt.Errorf("store: delete book %d: %w", id, err)
	}
	return nil
}

func (s *SQLite) Borrow(ctx context.Context, loan *catalog.Loan) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: borrow: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE books SET stock = stock - 1 WHERE id = ? AND deleted_at IS NULL AND stock > 0`,
		loan.BookID)
	if err != nil {
		return fmt.Errorf("store: borrow: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: borrow: %w", err)
	}
	if n == 0 {
		var stock int
		err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(stock, 0) FROM books WHERE id = ? AND deleted_at IS NULL`, loan.BookID).Scan(&stock)
		if errors.Is(err, sql.ErrNoRows) {
			return catalog.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("store: borrow: %w", err)
		}
		return catalog.ErrOutOfStock
	}

	res, err = tx.ExecContext(ctx,
		`INSERT INTO borrowed (book_id, borrower_name, due_date, borrowed_at) VALUES (?, ?, ?, ?)`,
		loan.BookID, loan.BorrowerName, loan.Due(), timestamp(loan.BorrowedAt))
	if err != nil {
		return fmt.Errorf("store: insert loan: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("store: insert loan: %w", err)
	}
	var title string
	if err := tx.QueryRowContext(ctx, `SELECT title FROM books WHERE id = ?`, loan.BookID).Scan(&title); err != nil {
		return fmt.Errorf("store: borrow: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: borrow: %w", err)
	}
	loan.ID = id
	loan.BookTitle = title
	return nil
}

func (s *SQLite) Loans(ctx context.Context, limit int) ([]catalog.Loan, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT l.id, COALESCE(l.book_id, 0), COALESCE(b.title, ''), COALESCE(l.borrower_name, ''),
			COALESCE(l.borrowed_at, ''), COALESCE(l.due_date, '')
		FROM borrowed l
		LEFT JOIN books b ON b.id = l.book_id
		ORDER BY l.id DESC
		LIMIT ?`, limit)
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

func (s *SQLite) Dialect() string { return DriverSQLite }

func (s *SQLite) TableInfo(ctx context.Context, table string, sampleRows int) (analytics.TableInfo, error) {
	if err := checkIdent(table); err != nil {
		return analytics.TableInfo{}, err
	}
	rows, err := s.ro.QueryContext(ctx, `SELECT name, type FROM pragma_table_info(?) ORDER BY cid`, table)
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
		sample, err := s.QueryReadOnly(ctx, fmt.Sprintf(`SELECT * FROM %s LIMIT %d`, table, sampleRows), sampleRows)
		if err != nil {
			return analytics.TableInfo{}, err
		}
		info.Sample = sample
	}
	return info, nil
}

func (s *SQLite) QueryReadOnly(ctx context.Context, query string, maxRows int) (analytics.Table, error) {
	rows, err := s.ro.QueryContext(ctx, query)
	if err != nil {
		return analytics.Table{}, fmt.Errorf("store: read-only query: %w", err)
	}
	defer rows.Close()

	t, err := scanTable(rows, maxRows)
	if err != nil {
		return analytics.Table{}, fmt.Errorf("store: read-only query: %w", err)
	}
	return t, nil
}

func isSQLiteUnique(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(se.Error(), "UNIQUE")
}
