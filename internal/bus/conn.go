package bus

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/novelbytelabs/arqonbus/internal/apperr"
	"github.com/novelbytelabs/arqonbus/internal/delivery"
	"github.com/novelbytelabs/arqonbus/internal/envelope"
	"github.com/novelbytelabs/arqonbus/internal/storage"
)

// connHandler owns the READY-state behavior for one accepted connection:
// the frame read loop, envelope processing, and teardown. It is created
// fresh per connection and never shared.
type connHandler struct {
	bus      *Bus
	ctx      context.Context
	cancel   context.CancelFunc
	clientID string
	sender   *socketSender

	mu         sync.Mutex
	isOperator bool
	opGroup    string
	deliveryWG sync.WaitGroup
}

func (h *connHandler) sendWelcome() {
	env := envelope.New(envelope.KindMessage)
	env.ToClient = h.clientID
	env.Payload = envelope.Value{
		"welcome":   "connected to arqonbus",
		"client_id": h.clientID,
	}
	h.deliver(env)
}

// readLoop blocks reading frames until the peer disconnects or the wire
// format is violated, implementing the READY half of the per-connection
// state machine described for the bus.
func (h *connHandler) readLoop(conn *websocket.Conn) {
	wire := h.bus.wire()
	expectedFrame := websocket.TextMessage
	if wire == envelope.WireBinary {
		expectedFrame = websocket.BinaryMessage
	}

	for {
		frameType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if frameType != expectedFrame {
			h.sendError("", apperr.CodeUnsupportedWire, "frame type does not match the configured wire format")
			continue
		}

		env, err := envelope.Parse(data, wire)
		if err != nil {
			h.sendError("", apperr.CodeValidation, "envelope could not be parsed")
			continue
		}

		if client, ok := h.bus.clients.Get(h.clientID); ok {
			client.Touch()
		}

		h.handleEnvelope(env, wire)
	}
}

func (h *connHandler) handleEnvelope(env *envelope.Envelope, wire envelope.Wire) {
	env.FromClient = h.clientID
	if env.Sender == "" {
		env.Sender = h.clientID
	}

	if violations := env.Validate(); len(violations) > 0 {
		h.sendError(env.RequestID, apperr.CodeValidation, strings.Join(violations, "; "))
		return
	}

	switch env.Type {
	case envelope.KindCommand:
		h.handleCommand(env)
	case envelope.KindMessage:
		h.handleMessage(env)
	case envelope.KindResponse:
		h.handleResponse(env)
	default:
		h.sendError(env.RequestID, apperr.CodeValidation, "client may not send this envelope type")
	}
}

// handleMessage runs a chat-style message through inspection and
// routing, then acknowledges it to the sender.
func (h *connHandler) handleMessage(env *envelope.Envelope) {
	outcome := h.bus.inspector.Inspect(env)
	h.bus.telemetry.EmitMessageEvent(string(outcome.Decision), h.clientID, env.ID, nil)

	if outcome.ShouldBlock() {
		h.sendError(env.ID, outcome.ReasonCode, "message blocked by inspection policy")
		return
	}

	deliverEnv := env
	if outcome.ShouldRedactTransport() {
		cp := env.Clone()
		if redacted, ok := outcome.RedactedPayload.(envelope.Value); ok {
			cp.Payload = redacted
		}
		deliverEnv = cp
	}

	if _, err := h.bus.storage.Append(h.ctx, env); err != nil {
		h.bus.log.Warn("append to storage failed", "error", err, "envelope_id", env.ID)
	}

	if env.Room != "" && env.Channel != "" {
		if ch, ok := h.bus.rooms.GetChannel(env.Room, env.Channel); ok {
			ch.RecordMessage(time.Now().UTC())
		}
	}

	recipients, routeErr := h.bus.router.Resolve(deliverEnv)
	if routeErr != nil {
		h.sendError(env.ID, routeErr.Code, routeErr.Message)
		return
	}

	data, err := deliverEnv.Serialize(h.bus.wire())
	if err == nil {
		for _, c := range recipients {
			_ = c.Send(data)
		}
	}

	ack := envelope.New(envelope.KindResponse)
	ack.ToClient = h.clientID
	ack.RequestID = env.ID
	ack.Status = envelope.StatusSuccess
	ack.Payload = envelope.Value{"delivered_to": len(recipients), "reason_code": string(outcome.ReasonCode)}
	h.deliver(ack)
}

// handleResponse feeds an operator's reply back into an in-flight
// competing dispatch, when one is waiting on it.
func (h *connHandler) handleResponse(env *envelope.Envelope) {
	if env.RequestID == "" {
		return
	}
	h.bus.dispatch.SubmitResult(env.RequestID, h.clientID, env.Payload)
}

func (h *connHandler) sendError(requestID string, code apperr.Code, message string) {
	env := envelope.New(envelope.KindError)
	env.ToClient = h.clientID
	env.RequestID = requestID
	env.ErrorCode = string(code)
	env.Error = message
	h.deliver(env)
}

func (h *connHandler) deliver(env *envelope.Envelope) {
	data, err := env.Serialize(h.bus.wire())
	if err != nil {
		h.bus.log.Error("serialize outbound envelope failed", "error", err)
		return
	}
	_ = h.sender.Send(data)
}

// teardown runs connection cleanup in the order the registries require:
// client registry first, then room membership, then operator state, so
// that anything still iterating a snapshot never observes a half-removed
// client.
func (h *connHandler) teardown() {
	h.cancel()
	h.deliveryWG.Wait()

	h.bus.clients.Unregister(h.clientID)
	h.bus.rooms.LeaveAll(h.clientID)

	h.mu.Lock()
	wasOperator := h.isOperator
	h.mu.Unlock()
	if wasOperator {
		h.bus.operators.Leave(h.clientID)
	}

	h.bus.telemetry.EmitClientEvent("client_disconnected", h.clientID, nil)
	_ = h.sender.Close()
}

// startOperatorLoop registers the connection as an operator for group
// and launches its delivery loop as a child of the connection's task
// tree, so it is cancelled automatically on disconnect.
func (h *connHandler) startOperatorLoop(group string) {
	h.mu.Lock()
	h.isOperator = true
	h.opGroup = group
	h.mu.Unlock()

	h.bus.operators.Join(h.clientID, group)

	loop := h.bus.operatorLoop()
	if loop == nil {
		return
	}

	h.deliveryWG.Add(1)
	go func() {
		defer h.deliveryWG.Done()
		loop.Run(h.ctx, h.clientID, group)
	}()
}

// operatorLoop builds a delivery.Loop bound to the active storage
// backend when it supports consumer groups, or nil otherwise.
func (b *Bus) operatorLoop() *delivery.Loop {
	gb, ok := b.storage.(storage.GroupBackend)
	if !ok {
		return nil
	}
	return delivery.NewLoop(b.operators, b.clients, gb, b.wire(), b.log)
}
