// Package http serves the ledger UI: HTMX partials over embedded templates
// plus a small JSON and operational surface.
package http

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"ledger/internal/cache"
	"ledger/internal/core"
	"ledger/internal/ledger"
	"ledger/internal/log"
	"ledger/internal/middleware/ratelimit"
	"ledger/internal/middleware/security"
	appweb "ledger/web"
)

const (
	defaultViewCacheSize = 64
	defaultViewCacheTTL  = 10 * time.Minute
	staticMaxAge         = 3600
)

// Options wires the server to the ledger and tunes its middleware.
type Options struct {
	Ledger *ledger.Ledger
	Logger *log.Logger

	RateLimitPerMinute int
	ViewCacheSize      int
	ViewCacheTTL       time.Duration
	TrustedProxies     []string

	// Ready reports whether backing services are usable; nil means always ready.
	Ready func(ctx context.Context) error
}

type Server struct {
	http.Server
	ledger    *ledger.Ledger
	templates *template.Template
	views     *cache.LRUCache[core.View]
	limiter   *ratelimit.Limiter
	clientIP  *security.ClientIPResolver
	logger    *log.Logger
	ready     func(context.Context) error
	metrics   *appMetrics
}

// NewServer configures routes and templates, returning a ready-to-run http.Server.
func NewServer(addr string, opts Options) (*Server, error) {
	if opts.Ledger == nil {
		return nil, fmt.Errorf("http server requires a ledger")
	}
	if opts.Logger == nil {
		opts.Logger = log.New(log.DefaultConfig())
	}
	if opts.ViewCacheSize <= 0 {
		opts.ViewCacheSize = defaultViewCacheSize
	}
	if opts.ViewCacheTTL <= 0 {
		opts.ViewCacheTTL = defaultViewCacheTTL
	}

	resolver, err := security.NewClientIPResolver(opts.TrustedProxies...)
	if err != nil {
		return nil, err
	}

	t, err := template.New("").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	logger := opts.Logger.WithComponent(log.ComponentHTTP)
	s := &Server{
		ledger:    opts.Ledger,
		templates: t,
		views:     cache.NewLRUCache[core.View](opts.ViewCacheSize, opts.ViewCacheTTL),
		limiter:   ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		clientIP:  resolver,
		logger:    logger,
		ready:     opts.Ready,
		metrics:   newAppMetrics(),
	}

	mux := http.NewServeMux()

	static, err := fs.Sub(appweb.StaticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("mount static assets: %w", err)
	}
	mux.Handle("GET /static/", security.StaticAssetMiddleware(staticMaxAge)(
		http.StripPrefix("/static/", http.FileServer(http.FS(static)))))

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /ui/ledger", s.handleLedgerPartial)
	mux.HandleFunc("POST /transactions", s.handleSubmit)
	mux.HandleFunc("POST /transactions/edit/cancel", s.handleCancelEdit)
	mux.HandleFunc("POST /transactions/{id}/edit", s.handleBeginEdit)
	mux.HandleFunc("POST /transactions/{id}/delete", s.handleDelete)
	mux.HandleFunc("DELETE /transactions/{id}/delete", s.handleDelete)
	mux.HandleFunc("GET /api/ledger", s.handleAPILedger)

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.middleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	return s, nil
}

// middleware applies, outermost first: security headers, request metrics,
// context logger, request id, access log and the POST/DELETE rate limit.
func (s *Server) middleware(next http.Handler) http.Handler {
	limited := s.limiter.Middleware(s.clientIP.ClientIP, s.handleRateLimited, http.MethodPost, http.MethodDelete)(next)
	h := log.AccessLogMiddleware(s.clientIP.ClientIP)(limited)
	h = log.RequestIDMiddleware(h)
	h = log.Middleware(s.logger)(h)
	h = s.metrics.middleware(h)
	return security.Headers(security.DefaultHeadersConfig())(h)
}

// Run starts the background cleanup of the rate limiter and view cache,
// then serves until the listener fails or Shutdown is called.
func (s *Server) Run(ctx context.Context) error {
	go s.limiter.Run(ctx)

	manager := cache.NewManager(s.logger)
	manager.Register(s.views)
	go manager.Run(ctx, 5*time.Minute)

	s.logger.Info("HTTP server listening", "addr", s.Addr)
	if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("listen: %w", err)
	}
	return nil
}

var templateFuncs = template.FuncMap{
	"title": func(opt core.SortOption) string {
		s := string(opt)
		if s == "" {
			return "None"
		}
		return strings.ToUpper(s[:1]) + s[1:]
	},
}
