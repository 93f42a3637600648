package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"smartlibrary/internal/analytics"
	"smartlibrary/internal/auth"
	"smartlibrary/internal/catalog"
	"smartlibrary/internal/config"
	"smartlibrary/internal/httpx"
	"smartlibrary/internal/llm"
	"smartlibrary/internal/recommend"
	"smartlibrary/internal/store"
	"smartlibrary/internal/web"
)

const (
	shutdownTimeout = 10 * time.Second
	maxBodyBytes    = 1 << 20
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg, logger)
	},
}

func serve(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer st.Close()
	logger.Info("store ready", zap.String("driver", st.Dialect()))

	recommender, err := llm.New(ctx, cfg.LLM, recommend.Temperature)
	if err != nil {
		return err
	}
	sqlModel, err := llm.New(ctx, cfg.LLM, analytics.Temperature)
	if err != nil {
		return err
	}
	if cfg.LLM.APIKey == "" {
		logger.Warn("no API key configured; AI features will report an error", zap.String("provider", cfg.LLM.Provider))
	}

	gate, err := auth.NewGate(cfg.Admin)
	if err != nil {
		return err
	}

	handler, err := newApp(ctx, appDeps{
		store:            st,
		recommender:      recommender,
		sqlModel:         sqlModel,
		gate:             gate,
		logger:           logger,
		aiRateLimitRPS:   cfg.AIRateLimitRPS,
		aiRateLimitBurst: cfg.AIRateLimitBurst,
		enableHSTS:       cfg.EnableHSTS,
		trustProxy:       cfg.TrustProxy,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.LLM.Timeout*2 + 10*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting server", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

type appDeps struct {
	store            store.Store
	recommender      llm.Completer
	sqlModel         llm.Completer
	gate             *auth.Gate
	logger           *zap.Logger
	aiRateLimitRPS   float64
	aiRateLimitBurst int
	enableHSTS       bool
	trustProxy       bool
}

// newApp wires services and routes. ctx bounds background work such as the
// rate limiter sweeper.
func newApp(ctx context.Context, d appDeps) (http.Handler, error) {
	catalogSvc := catalog.NewService(d.store)
	recommendSvc := recommend.NewService(catalogSvc, d.recommender)
	analyticsSvc := analytics.NewService(analytics.NewSQLAgent(d.store, d.sqlModel))

	pages, err := web.NewHandler(catalogSvc, recommendSvc, analyticsSvc, d.gate, d.logger)
	if err != nil {
		return nil, err
	}
	catalogAPI := catalog.NewHTTPHandler(catalogSvc, d.logger)
	recommendAPI := recommend.NewHTTPHandler(recommendSvc, d.logger)
	analyticsAPI := analytics.NewHTTPHandler(analyticsSvc, d.logger)
	authAPI := auth.NewHTTPHandler(d.gate)

	aiLimit := httpx.NewRateLimitMiddleware(ctx, d.aiRateLimitRPS, d.aiRateLimitBurst)
	aiLimit.TrustForwardedFor = d.trustProxy
	admin := func(h http.HandlerFunc) http.Handler { return httpx.RequireAdmin(h) }

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()
		if err := d.store.Ping(ctx); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	mux.HandleFunc("GET /v1/books", catalogAPI.List)
	mux.HandleFunc("GET /v1/books/{id}", catalogAPI.Get)
	mux.Handle("POST /v1/books", admin(catalogAPI.Add))
	mux.Handle("DELETE /v1/books/{id}", admin(catalogAPI.Delete))
	mux.HandleFunc("POST /v1/books/{id}/borrow", catalogAPI.Borrow)
	mux.HandleFunc("GET /v1/loans", catalogAPI.Loans)
	mux.Handle("POST /v1/recommendations", aiLimit.Middleware(http.HandlerFunc(recommendAPI.Recommend)))
	mux.Handle("POST /v1/analytics", aiLimit.Middleware(http.HandlerFunc(analyticsAPI.Answer)))
	mux.HandleFunc("POST /v1/admin/session", authAPI.Login)

	pages.Register(mux, aiLimit.Middleware)

	return httpx.Chain(mux,
		httpx.RequestIDMiddleware,
		httpx.AccessLogMiddleware(d.logger),
		httpx.RecoveryMiddleware(d.logger),
		httpx.SecurityHeadersMiddleware(d.enableHSTS),
		httpx.RequestSizeLimitMiddleware(maxBodyBytes),
		httpx.AdminSessionMiddleware(d.gate, auth.CookieName),
	), nil
}
