// Package app wires every ArqonBus component into a single runnable
// broker: registries, router, inspection engine, storage backend,
// operator dispatch, telemetry, and the WebSocket bus itself.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/novelbytelabs/arqonbus/internal/auth"
	"github.com/novelbytelabs/arqonbus/internal/bus"
	"github.com/novelbytelabs/arqonbus/internal/config"
	"github.com/novelbytelabs/arqonbus/internal/envelope"
	"github.com/novelbytelabs/arqonbus/internal/inspect"
	"github.com/novelbytelabs/arqonbus/internal/opdispatch"
	"github.com/novelbytelabs/arqonbus/internal/registry"
	"github.com/novelbytelabs/arqonbus/internal/rooms"
	"github.com/novelbytelabs/arqonbus/internal/router"
	"github.com/novelbytelabs/arqonbus/internal/storage"
	"github.com/novelbytelabs/arqonbus/internal/telemetry"
)

// App owns every long-lived broker dependency and the HTTP server that
// exposes them. There are no package-level globals; everything flows
// through this struct.
type App struct {
	cfg *config.Config
	log *slog.Logger

	clients   *registry.Registry
	rooms     *rooms.Registry
	router    *router.Router
	inspector *inspect.Engine
	operators *opdispatch.Registry
	collector *opdispatch.Collector
	dispatch  *opdispatch.Dispatcher
	storage   storage.Backend
	telemetry *telemetry.Emitter
	validator *auth.Validator
	bus       *bus.Bus

	httpServer *http.Server
}

// New constructs every component and the HTTP router, but does not
// start listening; call Run for that.
func New(ctx context.Context, cfg *config.Config, log *slog.Logger) (*App, error) {
	if log == nil {
		log = slog.Default()
	}

	backend, err := buildStorage(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("app: build storage: %w", err)
	}
	backend = storage.Wrap(backend, cfg.StorageMode, 10000)

	var validator *auth.Validator
	if cfg.AuthEnabled {
		if cfg.AuthSecret == "" {
			return nil, fmt.Errorf("app: auth is enabled but ARQONBUS_AUTH_SECRET is empty")
		}
		validator = auth.NewValidator(cfg.AuthSecret)
	}

	clients := registry.New()
	roomReg := rooms.NewRegistry()
	r := router.New(clients, roomReg)
	inspector := inspect.NewEngine(buildInspectConfig(cfg))
	operators := opdispatch.NewRegistry()
	collector := opdispatch.NewCollector()
	dispatch := opdispatch.New(operators, clients, backend, collector)
	emitter := telemetry.NewEmitter(cfg.TelemetryBufferSize)

	b := bus.New(cfg, log, clients, roomReg, r, inspector, operators, dispatch, collector, backend, emitter, validator)

	a := &App{
		cfg:       cfg,
		log:       log.With("component", "app"),
		clients:   clients,
		rooms:     roomReg,
		router:    r,
		inspector: inspector,
		operators: operators,
		collector: collector,
		dispatch:  dispatch,
		storage:   backend,
		telemetry: emitter,
		validator: validator,
		bus:       b,
	}

	mr := mux.NewRouter()
	mr.HandleFunc("/ws", b.HandleWebSocket)
	mr.HandleFunc("/healthz", b.HandleHealthz)

	a.httpServer = &http.Server{
		Addr:         cfg.Host + ":" + cfg.Port,
		Handler:      mr,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return a, nil
}

func buildStorage(ctx context.Context, cfg *config.Config) (storage.Backend, error) {
	switch cfg.StorageBackend {
	case config.BackendRedis:
		return storage.NewRedisBackend(ctx, cfg.RedisURL, wireFormat(cfg))
	case config.BackendSQL:
		return storage.NewPostgresBackend(ctx, cfg.PostgresURL, wireFormat(cfg))
	default:
		return storage.NewMemoryBackend(10000), nil
	}
}

func wireFormat(cfg *config.Config) envelope.Wire {
	if cfg.AllowJSONWire && cfg.WireFormat == "json" {
		return envelope.WireJSON
	}
	return envelope.WireBinary
}

func buildInspectConfig(cfg *config.Config) *inspect.Config {
	c := inspect.DefaultConfig()
	c.Enabled = cfg.InspectEnabled
	c.Mode = inspect.Mode(cfg.InspectMode)
	c.AnnotateMetadata = cfg.InspectAnnotateMetadata
	c.Scope.Include = cfg.InspectIncludes
	c.Scope.Exclude = cfg.InspectExcludes
	c.Policies.MaxPayloadBytes = cfg.InspectMaxPayloadBytes
	c.Policies.BlockOnProbableSecret = cfg.InspectBlockOnSecret
	c.Policies.Redaction.NeverLogPayloadFor = cfg.InspectNeverLog
	if len(cfg.InspectSecretPatterns) > 0 {
		c.Policies.Redaction.Patterns = cfg.InspectSecretPatterns
	}
	c.Limits.MaxInspectBytes = cfg.InspectTruncateBytes
	return c
}

// Run starts the HTTP/WebSocket listener and the telemetry drain loop,
// blocking until ctx is cancelled or the listener fails.
func (a *App) Run(ctx context.Context) error {
	go a.telemetry.Run(ctx, time.Duration(a.cfg.TelemetryDrainEvery)*time.Millisecond)

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("http server listening", "addr", a.httpServer.Addr)
		errCh <- a.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		return a.Shutdown()
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}
}

// Shutdown marks the bus as draining and waits for its connection
// handlers, shuts down the HTTP listener, then flushes telemetry and
// closes storage.
func (a *App) Shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	a.telemetry.EmitSystemEvent("shutdown_initiated", nil)
	a.bus.Shutdown()

	err := a.httpServer.Shutdown(shutdownCtx)
	a.telemetry.Flush()
	if closeErr := a.storage.Close(); closeErr != nil {
		a.log.Warn("storage close failed", "error", closeErr)
	}
	return err
}
