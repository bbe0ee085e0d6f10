// Package server wires the passive-tree service together and runs its HTTP
// process: graph dataset, keystone registry, sqlite persistence, optional
// Redis stat cache, session manager, and the transport handler.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/louisbranch/hollowspire.game/internal/passives/dataset"
	"github.com/louisbranch/hollowspire.game/internal/passives/graph"
	"github.com/louisbranch/hollowspire.game/internal/passives/keystone"
	"github.com/louisbranch/hollowspire.game/internal/passives/stats"
	"github.com/louisbranch/hollowspire.game/internal/platform/timeouts"
	passiveshttp "github.com/louisbranch/hollowspire.game/internal/services/passives/api/http"
	"github.com/louisbranch/hollowspire.game/internal/services/passives/grant"
	"github.com/louisbranch/hollowspire.game/internal/services/passives/observability"
	"github.com/louisbranch/hollowspire.game/internal/services/passives/sessions"
	"github.com/louisbranch/hollowspire.game/internal/services/passives/statcache"
	"github.com/louisbranch/hollowspire.game/internal/services/passives/storage/sqlite"
	"github.com/louisbranch/hollowspire.game/internal/services/passives/telemetry"
)

// Config defines the inputs for the passives process. Storage and cache
// locations come from the environment so deployments configure them the
// same way regardless of which binary embeds the server.
type Config struct {
	HTTPAddr string

	// GraphPath overrides the embedded default tree with a document on
	// disk. JSON and YAML are accepted.
	GraphPath string

	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
	MaxSessions       int
	Log               *slog.Logger
}

// Server hosts the passives HTTP process.
type Server struct {
	listener        net.Listener
	httpServer      *http.Server
	shutdownTimeout time.Duration
	store           *sqlite.Store
	cache           statcache.Cache
	log             *slog.Logger
}

// New builds a configured passives server listening on the configured
// address.
func New(cfg Config) (*Server, error) {
	return NewWithContext(context.Background(), cfg)
}

// NewWithContext builds a configured passives server with an explicit
// context for storage bootstrap.
func NewWithContext(ctx context.Context, cfg Config) (*Server, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	httpAddr := strings.TrimSpace(cfg.HTTPAddr)
	if httpAddr == "" {
		return nil, errors.New("http address is required")
	}
	if cfg.ReadHeaderTimeout <= 0 {
		cfg.ReadHeaderTimeout = timeouts.ReadHeader
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = timeouts.Shutdown
	}
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}

	g, err := loadGraph(cfg.GraphPath)
	if err != nil {
		return nil, err
	}
	for _, warning := range g.Warnings() {
		log.Warn("graph document warning", "warning", warning)
	}

	registry, err := keystone.NewDefaultRegistry(log)
	if err != nil {
		return nil, fmt.Errorf("build keystone registry: %w", err)
	}

	store, err := openTreeStore(ctx)
	if err != nil {
		return nil, err
	}
	cache := openStatCache(log)

	resetGrants, err := grant.LoadConfigFromEnv(time.Now)
	if err != nil {
		closeQuietly(store, cache, log)
		return nil, err
	}

	metrics := observability.New()
	manager, err := sessions.NewManager(sessions.Config{
		Graph:       g,
		Calculator:  stats.NewCalculator(log, registry),
		Store:       store,
		Cache:       cache,
		Journal:     telemetry.NewEmitter(store),
		Metrics:     metrics,
		Log:         log,
		MaxSessions: cfg.MaxSessions,
	})
	if err != nil {
		closeQuietly(store, cache, log)
		return nil, fmt.Errorf("build session manager: %w", err)
	}

	handler, err := passiveshttp.NewHandler(passiveshttp.Config{
		Graph:       g,
		Keystones:   registry,
		Sessions:    manager,
		ResetGrants: resetGrants,
		Metrics:     metrics,
		Log:         log,
	})
	if err != nil {
		closeQuietly(store, cache, log)
		return nil, fmt.Errorf("build handler: %w", err)
	}

	listener, err := net.Listen("tcp", httpAddr)
	if err != nil {
		closeQuietly(store, cache, log)
		return nil, fmt.Errorf("listen on %s: %w", httpAddr, err)
	}

	return &Server{
		listener: listener,
		httpServer: &http.Server{
			Handler:           otelhttp.NewHandler(handler, "passives"),
			ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		},
		shutdownTimeout: cfg.ShutdownTimeout,
		store:           store,
		cache:           cache,
		log:             log,
	}, nil
}

// Addr returns the listener address for the passives server.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Run creates and serves a passives server until the context ends.
func Run(ctx context.Context, cfg Config) error {
	server, err := NewWithContext(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init passives server: %w", err)
	}
	return server.Serve(ctx)
}

// Serve starts the passives server and blocks until it stops or the
// context ends.
func (s *Server) Serve(ctx context.Context) error {
	if s == nil {
		return errors.New("passives server is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	defer s.closeStores()

	s.log.Info("passives server listening", "addr", s.listener.Addr().String())
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.httpServer.Serve(s.listener)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		err := s.httpServer.Shutdown(shutdownCtx)
		cancel()
		<-serveErr
		if err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}
}

// loadGraph resolves the tree document: an explicit path wins, otherwise
// the embedded default dataset serves.
func loadGraph(path string) (*graph.Graph, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		g, err := dataset.Load()
		if err != nil {
			return nil, fmt.Errorf("load embedded tree: %w", err)
		}
		return g, nil
	}
	g, err := graph.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load tree document %s: %w", path, err)
	}
	return g, nil
}

func openTreeStore(ctx context.Context) (*sqlite.Store, error) {
	path := strings.TrimSpace(os.Getenv("HOLLOWSPIRE_PASSIVES_DB_PATH"))
	if path == "" {
		path = filepath.Join("data", "passives.db")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}

	store, err := sqlite.Open(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	return store, nil
}

// openStatCache connects the Redis stat cache when an address is set and
// falls back to the no-op cache otherwise. The service works without the
// cache; it only re-derives vectors more often.
func openStatCache(log *slog.Logger) statcache.Cache {
	addr := strings.TrimSpace(os.Getenv("HOLLOWSPIRE_PASSIVES_REDIS_ADDR"))
	if addr == "" {
		return statcache.NewNoop()
	}
	log.Info("stat cache enabled", "addr", addr)
	return statcache.NewRedis(addr, statcache.WithLogger(log))
}

func (s *Server) closeStores() {
	if s == nil {
		return
	}
	closeQuietly(s.store, s.cache, s.log)
}

func closeQuietly(store *sqlite.Store, cache statcache.Cache, log *slog.Logger) {
	if store != nil {
		if err := store.Close(); err != nil {
			log.Error("close tree store", "error", err)
		}
	}
	if closer, ok := cache.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			log.Error("close stat cache", "error", err)
		}
	}
}
