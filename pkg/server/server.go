// Package server exposes the analysis service over a JSON HTTP API.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/japaniel/bsdetect/pkg/analysis"
	"github.com/japaniel/bsdetect/pkg/auth"
	"github.com/japaniel/bsdetect/pkg/db"
	"github.com/japaniel/bsdetect/pkg/lexicon"
	"github.com/japaniel/bsdetect/pkg/logging"
)

// Analyzer is the subset of analysis.Service used by the handlers.
type Analyzer interface {
	AnalyzeText(ctx context.Context, text string, lang lexicon.Language) (*analysis.Result, error)
	AnalyzeDocument(ctx context.Context, fileURL, mimeType string, lang lexicon.Language) (*analysis.Result, error)
	AnalyzeUpload(ctx context.Context, name string, data []byte, mimeType string, lang lexicon.Language) (*analysis.Result, error)
	AnalyzeURL(ctx context.Context, rawURL string, lang lexicon.Language) (*analysis.Result, error)
	TopBuzzwords(ctx context.Context, language string, limit int) ([]db.BuzzwordCount, error)
	RecentAnalyses(ctx context.Context, limit int) ([]db.Analysis, error)
}

// Users resolves the account behind a session.
type Users interface {
	UserByOpenID(ctx context.Context, openID string) (*db.User, error)
}

// Options configures a Server.
type Options struct {
	Addr           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxUploadBytes int64
	Logger         *zap.Logger
}

// Server serves the JSON API over HTTP.
type Server struct {
	analyzer Analyzer
	users    Users
	sessions *auth.Sessions
	opts     Options
	logger   *zap.Logger

	listener net.Listener
	httpSrv  *http.Server
	started  time.Time
	stopOnce sync.Once
}

// NewServer creates a server. users and sessions may be nil, in which case
// every caller is anonymous.
func NewServer(a Analyzer, users Users, sessions *auth.Sessions, opts Options) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 10 << 20
	}
	return &Server{
		analyzer: a,
		users:    users,
		sessions: sessions,
		opts:     opts,
		logger:   logging.OrNop(opts.Logger),
		started:  time.Now(),
	}
}

// Handler returns the routed API with request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/analysis/analyze", s.handleAnalyze)
	mux.HandleFunc("POST /api/analysis/analyze-document", s.handleAnalyzeDocument)
	mux.HandleFunc("POST /api/analysis/upload", s.handleUpload)
	mux.HandleFunc("POST /api/analysis/analyze-url", s.handleAnalyzeURL)
	mux.HandleFunc("GET /api/analysis/top-buzzwords", s.handleTopBuzzwords)
	mux.HandleFunc("GET /api/analysis/recent", s.handleRecent)
	mux.HandleFunc("GET /api/auth/me", s.handleMe)
	mux.HandleFunc("POST /api/auth/logout", s.handleLogout)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	return s.withRequestID(s.withLogging(mux))
}

// Start begins listening on the configured address.
func (s *Server) Start() error {
	addr := s.opts.Addr
	if addr == "" {
		addr = ":8080"
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	s.listener = ln
	s.started = time.Now()
	s.httpSrv = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
	}

	go func() {
		if err := s.httpSrv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("http server stopped", zap.Error(err))
		}
	}()
	s.logger.Info("http server listening", zap.String("addr", ln.Addr().String()))
	return nil
}

// Stop gracefully shuts down the HTTP server. Idempotent.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		if s.httpSrv != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.httpSrv.Shutdown(ctx); err != nil {
				s.logger.Warn("http server shutdown", zap.Error(err))
			}
		}
	})
}

// Addr returns the bound address once started.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}
