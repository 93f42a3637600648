// Package web serves the server-rendered library pages.
package web

import (
	"bytes"
	"context"
	"embed"
	"html/template"
	"io/fs"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"smartlibrary/internal/catalog"
	"smartlibrary/internal/httpx"
)

//go:embed templates static
var assets embed.FS

// Catalog is the part of the catalog service the pages use.
type Catalog interface {
	List(ctx context.Context, filter string) ([]catalog.Book, error)
	Add(ctx context.Context, nb catalog.NewBook) (catalog.Book, error)
	Delete(ctx context.Context, id int64) error
	Borrow(ctx context.Context, bookID int64, borrowerName string) (catalog.Loan, error)
	Loans(ctx context.Context, limit int) ([]catalog.Loan, error)
}

type Recommender interface {
	Recommend(ctx context.Context, query string) (string, error)
}

type Analyst interface {
	Answer(ctx context.Context, question string) (string, error)
}

// Gate checks the admin password.
type Gate interface {
	Login(password string) (string, error)
}

type Handler struct {
	catalog   Catalog
	recommend Recommender
	analytics Analyst
	gate      Gate
	logger    *zap.Logger
	pages     map[string]*template.Template
}

func NewHandler(c Catalog, rec Recommender, an Analyst, gate Gate, logger *zap.Logger) (*Handler, error) {
	pages, err := parsePages()
	if err != nil {
		return nil, err
	}
	return &Handler{
		catalog:   c,
		recommend: rec,
		analytics: an,
		gate:      gate,
		logger:    logger,
		pages:     pages,
	}, nil
}

func parsePages() (map[string]*template.Template, error) {
	pages := make(map[string]*template.Template)
	for _, name := range []string{"browse", "borrow", "assistant", "analytics", "error"} {
		t, err := template.ParseFS(assets, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, err
		}
		pages[name] = t
	}
	return pages, nil
}

// Register mounts the pages and static assets on mux. aiLimit, when not nil,
// wraps the tabs that call the language model.
func (h *Handler) Register(mux *http.ServeMux, aiLimit func(http.Handler) http.Handler) {
	static, _ := fs.Sub(assets, "static")
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(static)))

	mux.HandleFunc("GET /{$}", h.Browse)
	mux.HandleFunc("POST /books", h.requireAdmin(h.AddBook))
	mux.HandleFunc("POST /books/{id}/delete", h.requireAdmin(h.DeleteBook))
	mux.HandleFunc("GET /borrow", h.BorrowPage)
	mux.HandleFunc("POST /borrow", h.Borrow)
	mux.Handle("GET /assistant", asking(h.Assistant, aiLimit))
	mux.Handle("GET /analytics", asking(h.Analytics, aiLimit))
	mux.HandleFunc("POST /admin/login", h.Login)
	mux.HandleFunc("POST /admin/logout", h.Logout)
}

// asking applies limit only to requests that carry a question.
func asking(next http.HandlerFunc, limit func(http.Handler) http.Handler) http.Handler {
	if limit == nil {
		return next
	}
	limited := limit(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.TrimSpace(r.URL.Query().Get("q")) == "" {
			next(w, r)
			return
		}
		limited.ServeHTTP(w, r)
	})
}

// Page holds what the layout renders on every page.
type Page struct {
	Tab   string
	Title string
	Admin bool
	Flash string
	Error string
}

func newPage(r *http.Request, tab, title string) Page {
	return Page{Tab: tab, Title: title, Admin: httpx.IsAdmin(r)}
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, page string, data any) {
	var buf bytes.Buffer
	if err := h.pages[page].ExecuteTemplate(&buf, "layout", data); err != nil {
		h.logger.Error("render page", zap.String("page", page), zap.Error(err),
			zap.String("request_id", httpx.RequestIDFrom(r)))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (h *Handler) serverError(w http.ResponseWriter, r *http.Request, op string, err error) {
	h.logger.Error(op, zap.Error(err), zap.String("request_id", httpx.RequestIDFrom(r)))
	h.render(w, r, http.StatusInternalServerError, "error", newPage(r, "", "Error"))
}

func (h *Handler) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !httpx.IsAdmin(r) {
			http.Error(w, "Admin session required", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}
