package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/jackzampolin/songbook/internal/api"
	"github.com/jackzampolin/songbook/internal/config"
	"github.com/jackzampolin/songbook/internal/home"
	"github.com/jackzampolin/songbook/internal/music"
	"github.com/jackzampolin/songbook/internal/prompts"
	"github.com/jackzampolin/songbook/internal/providers"
	"github.com/jackzampolin/songbook/internal/server/endpoints"
	"github.com/jackzampolin/songbook/internal/songs"
	"github.com/jackzampolin/songbook/internal/svcctx"
)

// Server is the main Songbook HTTP server.
// It owns the template loader, the provider registry and the song service,
// and keeps them in step with config and template file changes.
type Server struct {
	httpServer *http.Server
	loader     *prompts.Loader
	registry   *providers.Registry
	songs      *songs.Service
	configMgr  *config.Manager
	promptsDir string
	watch      bool
	logger     *slog.Logger

	// services holds all core services for context enrichment
	services *svcctx.Services

	// endpoints registry for HTTP routes
	endpointRegistry *api.Registry

	mu      sync.RWMutex
	running bool
}

// Config holds server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1)
	Host string
	// Port is the port to listen on (default: 8080)
	Port string
	// ConfigManager provides configuration with hot-reload support.
	// When nil, DefaultConfig is used and nothing is reloaded.
	ConfigManager *config.Manager
	// Home is the songbook home directory used for default paths
	Home *home.Dir
	// Registry overrides the providers built from config
	Registry *providers.Registry
	// Loader overrides the template loader built from config
	Loader *prompts.Loader
	// Logger is the structured logger to use
	Logger *slog.Logger
}

// New creates a new Server with the given configuration.
func New(cfg Config) (*Server, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	appCfg := config.DefaultConfig()
	if cfg.ConfigManager != nil {
		appCfg = cfg.ConfigManager.Get()
	}
	if cfg.Host == "" {
		cfg.Host = appCfg.Server.Host
	}
	if cfg.Port == "" {
		cfg.Port = appCfg.Server.Port
	}

	s := &Server{
		configMgr:  cfg.ConfigManager,
		promptsDir: promptsDir(appCfg, cfg.Home),
		watch:      appCfg.Prompts.Watch,
		logger:     cfg.Logger,
	}

	s.loader = cfg.Loader
	if s.loader == nil {
		s.loader = prompts.NewLoader(cfg.Logger, prompts.Sources(s.promptsDir)...)
	}

	s.registry = cfg.Registry
	if s.registry == nil {
		s.registry = providers.NewRegistryFromConfig(appCfg.ToProviderRegistryConfig(), cfg.Logger)
	}

	songsCfg, err := songsConfig(appCfg, cfg.Home)
	if err != nil {
		return nil, err
	}
	s.songs = songs.NewService(s.newBuilder(appCfg.Prompts.Version), s.registry, songsCfg, cfg.Logger)

	// Watch for config changes
	if cfg.ConfigManager != nil {
		cfg.ConfigManager.OnChange(func(c *config.Config) {
			s.applyConfig(c, cfg.Home)
		})
	}

	s.services = &svcctx.Services{
		Registry:      s.registry,
		Loader:        s.loader,
		Songs:         s.songs,
		ConfigManager: cfg.ConfigManager,
		Logger:        cfg.Logger,
		Home:          cfg.Home,
	}

	// Create endpoint registry and register all endpoints
	s.endpointRegistry = api.NewRegistry()
	for _, ep := range endpoints.All() {
		s.endpointRegistry.Register(ep)
	}

	// Set up HTTP server
	mux := http.NewServeMux()
	s.endpointRegistry.RegisterRoutes(mux, s.requireInit)

	s.httpServer = &http.Server{
		Addr:        net.JoinHostPort(cfg.Host, cfg.Port),
		Handler:     s.withServices(mux),
		ReadTimeout: 30 * time.Second,
		// Generation waits on the provider through every retry.
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

func (s *Server) newBuilder(version string) *music.Builder {
	return music.NewBuilder(s.loader, version, music.WithLogger(s.logger))
}

// applyConfig brings providers, limits and the template version in line
// with a reloaded config.
func (s *Server) applyConfig(c *config.Config, h *home.Dir) {
	s.registry.Reload(c.ToProviderRegistryConfig())

	if songsCfg, err := songsConfig(c, h); err != nil {
		s.logger.Warn("keeping previous music config", "error", err)
	} else {
		s.songs.SetConfig(songsCfg)
	}

	if current := s.songs.Builder(); current == nil || current.Info().RequestedVersion != c.Prompts.Version {
		s.songs.SetBuilder(s.newBuilder(c.Prompts.Version))
		s.logger.Info("prompt template version changed", "version", c.Prompts.Version)
	}
	s.logger.Info("services reloaded from config")
}

// reloadTemplates recompiles the active template after files change.
func (s *Server) reloadTemplates(filename string) {
	version := ""
	if b := s.songs.Builder(); b != nil {
		version = b.Info().RequestedVersion
	}
	s.songs.SetBuilder(s.newBuilder(version))
	s.logger.Info("prompt builder rebuilt", "file", filename, "version", version)
}

// Start starts the server and its watchers.
// It blocks until the context is cancelled or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.mu.Unlock()

	watchCtx, cancelWatch := context.WithCancel(ctx)
	defer cancelWatch()

	if s.configMgr != nil && s.configMgr.ConfigFile() != "" {
		s.configMgr.WatchConfig()
	}
	if s.watch && s.promptsDir != "" {
		if _, err := os.Stat(s.promptsDir); err == nil {
			watcher := prompts.NewWatcher(s.loader, s.promptsDir, s.logger)
			watcher.OnChange(s.reloadTemplates)
			go func() {
				if err := watcher.Run(watchCtx); err != nil {
					s.logger.Warn("prompt watcher stopped", "error", err)
				}
			}()
		}
	}

	// Start HTTP server in goroutine
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for context cancellation or error
	select {
	case <-ctx.Done():
		s.logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			s.setNotRunning()
			return fmt.Errorf("HTTP server error: %w", err)
		}
	}

	return s.shutdown()
}

// shutdown performs graceful shutdown of the HTTP server.
func (s *Server) shutdown() error {
	s.logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	s.setNotRunning()
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) setNotRunning() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// IsRunning returns whether the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Addr returns the server's listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Handler returns the server's root handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Registry returns the provider registry.
func (s *Server) Registry() *providers.Registry {
	return s.registry
}

// Songs returns the song service.
func (s *Server) Songs() *songs.Service {
	return s.songs
}

// withServices wraps a handler to enrich the request context with services.
func (s *Server) withServices(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if s.services != nil {
			ctx = svcctx.WithServices(ctx, s.services)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireInit is middleware that ensures the song services are wired.
// Returns 503 Service Unavailable otherwise.
func (s *Server) requireInit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.services == nil || s.services.Loader == nil || s.services.Songs == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":"server not fully initialized"}`))
			return
		}
		next(w, r)
	}
}

func promptsDir(c *config.Config, h *home.Dir) string {
	if c.Prompts.Dir != "" {
		return c.Prompts.Dir
	}
	if h != nil {
		return h.PromptsDir()
	}
	return ""
}

func songsConfig(c *config.Config, h *home.Dir) (songs.Config, error) {
	outputDir := c.Music.OutputDir
	if outputDir == "" {
		if h == nil {
			return songs.Config{}, fmt.Errorf("%w: music.output_dir is required without a home directory", config.ErrInvalid)
		}
		outputDir = h.AudioDir()
	}
	return songs.Config{
		MaxDurationSeconds:     c.Music.MaxDurationSeconds,
		DefaultDurationSeconds: c.Music.DefaultDurationSeconds,
		ExtractFields:          c.Music.ExtractFields,
		OutputDir:              outputDir,
	}, nil
}
