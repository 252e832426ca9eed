// Package bus implements the WebSocket transport: connection setup,
// the per-connection frame loop, and the command surface that sits on
// top of routing, inspection, storage, and operator dispatch.
package bus

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/novelbytelabs/arqonbus/internal/auth"
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

// Bus owns every shared component and exposes the HTTP handlers that
// accept WebSocket connections.
type Bus struct {
	cfg *config.Config
	log *slog.Logger

	clients   *registry.Registry
	rooms     *rooms.Registry
	router    *router.Router
	inspector *inspect.Engine
	operators *opdispatch.Registry
	dispatch  *opdispatch.Dispatcher
	collector *opdispatch.Collector
	storage   storage.Backend
	telemetry *telemetry.Emitter
	validator *auth.Validator

	upgrader websocket.Upgrader

	wg sync.WaitGroup

	mu           sync.Mutex
	shuttingDown bool
}

func New(
	cfg *config.Config,
	log *slog.Logger,
	clients *registry.Registry,
	roomReg *rooms.Registry,
	r *router.Router,
	inspector *inspect.Engine,
	operators *opdispatch.Registry,
	dispatch *opdispatch.Dispatcher,
	collector *opdispatch.Collector,
	backend storage.Backend,
	emitter *telemetry.Emitter,
	validator *auth.Validator,
) *Bus {
	if log == nil {
		log = slog.Default()
	}
	return &Bus{
		cfg:       cfg,
		log:       log.With("component", "bus"),
		clients:   clients,
		rooms:     roomReg,
		router:    r,
		inspector: inspector,
		operators: operators,
		dispatch:  dispatch,
		collector: collector,
		storage:   backend,
		telemetry: emitter,
		validator: validator,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

func (b *Bus) wire() envelope.Wire {
	if b.cfg.AllowJSONWire && b.cfg.WireFormat == "json" {
		return envelope.WireJSON
	}
	return envelope.WireBinary
}

// HandleWebSocket is the HTTP handler mounted at the WebSocket upgrade
// endpoint. It implements the ACCEPT -> AUTH half of the connection
// state machine; READY is entered once the goroutines below start.
func (b *Bus) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if b.cfg.AuthEnabled {
		token := bearerToken(r)
		if token == "" {
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}
		if _, err := b.validator.Validate(token); err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
	}

	if b.cfg.MaxConnections > 0 && b.clients.Count() >= b.cfg.MaxConnections {
		conn, err := b.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		closeWithCode(conn, 1013, "too many connections")
		return
	}

	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.log.Warn("upgrade failed", "error", err)
		return
	}

	b.acceptClient(conn)
}

// HandleHealthz is a minimal liveness probe.
func (b *Bus) HandleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if b.isShuttingDown() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"draining"}`))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (b *Bus) isShuttingDown() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.shuttingDown
}

// Shutdown marks the bus as draining (reflected in /healthz) and waits
// for in-flight connection handlers to finish tearing down.
func (b *Bus) Shutdown() {
	b.mu.Lock()
	b.shuttingDown = true
	b.mu.Unlock()
	b.wg.Wait()
}

func bearerToken(r *http.Request) string {
	if t := r.URL.Query().Get("token"); t != "" {
		return t
	}
	return strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
}

func closeWithCode(conn *websocket.Conn, code int, text string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(writeWait))
	_ = conn.Close()
}

// acceptClient registers a new connection and runs it until disconnect.
// Each connection owns one context.Context as its task tree root. The
// read loop runs until the peer disconnects; teardown then cancels the
// context, which stops the optional operator delivery loop running
// under it. Commands are handled inline on the read loop.
func (b *Bus) acceptClient(conn *websocket.Conn) {
	b.wg.Add(1)
	defer b.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clientID := uuid.NewString()
	sender := newSocketSender(conn, b.wire() == envelope.WireBinary)
	b.clients.Register(clientID, "client", sender)
	b.telemetry.EmitClientEvent("client_connected", clientID, nil)

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go sender.writePump()

	h := &connHandler{bus: b, ctx: ctx, cancel: cancel, clientID: clientID, sender: sender}
	h.sendWelcome()

	h.readLoop(conn)

	h.teardown()
}
