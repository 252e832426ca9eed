package bus

import (
	"fmt"
	"time"

	"github.com/novelbytelabs/arqonbus/internal/apperr"
	"github.com/novelbytelabs/arqonbus/internal/envelope"
	"github.com/novelbytelabs/arqonbus/internal/inspect"
)

const brokerVersion = "1.0"

// handleCommand dispatches a command envelope and sends exactly one
// terminal response envelope (status success or error) keyed by the
// command's own id as request_id.
func (h *connHandler) handleCommand(env *envelope.Envelope) {
	args := env.Args
	if args == nil {
		args = envelope.Value{}
	}

	switch env.Command {
	case "ping":
		h.respond(env, envelope.Value{"pong": true})
	case "status":
		h.respond(env, h.statusPayload())
	case "version":
		h.respond(env, envelope.Value{"version": brokerVersion})
	case "help":
		h.respond(env, envelope.Value{"commands": commandNames})

	case "create_channel":
		h.cmdCreateChannel(env, args)
	case "delete_channel":
		h.cmdDeleteChannel(env, args)
	case "join_channel":
		h.cmdJoinChannel(env, args)
	case "leave_channel":
		h.cmdLeaveChannel(env, args)
	case "list_channels":
		h.cmdListChannels(env, args)
	case "channel_info":
		h.cmdChannelInfo(env, args)
	case "history":
		h.cmdHistory(env, args)

	case "operator.join":
		h.cmdOperatorJoin(env, args)

	case "op.casil.reload":
		h.cmdCasilReload(env, args)
	case "op.history.get":
		h.cmdHistory(env, args)
	case "op.history.replay":
		h.cmdHistoryReplay(env, args)

	default:
		if isOmegaCommand(env.Command) {
			h.respondError(env, apperr.CodeFeatureDisabled, "this command belongs to an experimental lane that is not enabled")
			return
		}
		if env.Command == "" {
			h.respondError(env, apperr.CodeMissingCommand, "command name is required")
			return
		}
		h.respondError(env, apperr.CodeUnknownCommand, fmt.Sprintf("unknown command %q", env.Command))
	}
}

var commandNames = []string{
	"ping", "status", "version", "help",
	"create_channel", "delete_channel", "join_channel", "leave_channel",
	"list_channels", "channel_info", "history",
	"operator.join",
	"op.casil.reload", "op.history.get", "op.history.replay",
}

func isOmegaCommand(name string) bool {
	return len(name) > 8 && name[:8] == "op.omega"
}

func (h *connHandler) respond(env *envelope.Envelope, payload envelope.Value) {
	resp := envelope.New(envelope.KindResponse)
	resp.ToClient = h.clientID
	resp.RequestID = env.ID
	resp.Status = envelope.StatusSuccess
	resp.Payload = payload
	h.deliver(resp)
}

func (h *connHandler) respondError(env *envelope.Envelope, code apperr.Code, message string) {
	resp := envelope.New(envelope.KindResponse)
	resp.ToClient = h.clientID
	resp.RequestID = env.ID
	resp.Status = envelope.StatusError
	resp.ErrorCode = string(code)
	resp.Error = message
	h.deliver(resp)
}

func (h *connHandler) statusPayload() envelope.Value {
	regHealth := h.bus.clients.Health()
	routeHealth := h.bus.router.Health()
	storageHealth := h.bus.storage.Health(h.ctx)
	return envelope.Value{
		"connections":       regHealth.TotalConnections,
		"clients":           regHealth.Clients,
		"operators":         regHealth.Operators,
		"routing_error_rate": routeHealth.ErrorRate,
		"routing_degraded":   routeHealth.Degraded,
		"storage_backend":    storageHealth.Backend,
		"storage_healthy":    storageHealth.Healthy,
		"storage_degraded":   storageHealth.Degraded,
	}
}

func argString(args envelope.Value, key string) string {
	s, _ := args[key].(string)
	return s
}

func argInt(args envelope.Value, key string, fallback int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return fallback
	}
}

func (h *connHandler) cmdCreateChannel(env *envelope.Envelope, args envelope.Value) {
	room := argString(args, "room")
	channel := argString(args, "channel")
	if channel == "" {
		channel = argString(args, "name")
	}
	if room == "" || channel == "" {
		h.respondError(env, apperr.CodeValidation, "create_channel requires room and channel")
		return
	}
	description := argString(args, "description")
	ch, err := h.bus.rooms.CreateChannel(room, channel, description)
	if err != nil {
		h.respondError(env, apperr.CodeRoomNotFound, err.Error())
		return
	}
	h.respond(env, envelope.Value{"room": room, "channel": ch.Name})
}

func (h *connHandler) cmdDeleteChannel(env *envelope.Envelope, args envelope.Value) {
	room := argString(args, "room")
	channel := argString(args, "channel")
	if room == "" || channel == "" {
		h.respondError(env, apperr.CodeValidation, "delete_channel requires room and channel")
		return
	}
	h.bus.rooms.DeleteChannel(room, channel)
	h.respond(env, envelope.Value{"deleted": true})
}

func (h *connHandler) cmdJoinChannel(env *envelope.Envelope, args envelope.Value) {
	room := argString(args, "room")
	channel := argString(args, "channel")
	if room == "" || channel == "" {
		h.respondError(env, apperr.CodeValidation, "join_channel requires room and channel")
		return
	}
	ch := h.bus.rooms.EnsureChannel(room, channel, "")
	ch.Join(h.clientID)
	h.respond(env, envelope.Value{"room": room, "channel": channel, "members": ch.MemberCount()})
}

func (h *connHandler) cmdLeaveChannel(env *envelope.Envelope, args envelope.Value) {
	room := argString(args, "room")
	channel := argString(args, "channel")
	if room == "" || channel == "" {
		h.respondError(env, apperr.CodeValidation, "leave_channel requires room and channel")
		return
	}
	ch, ok := h.bus.rooms.GetChannel(room, channel)
	if !ok {
		h.respondError(env, apperr.CodeChannelNotFound, "channel not found")
		return
	}
	ch.Leave(h.clientID)
	h.respond(env, envelope.Value{"left": true})
}

func (h *connHandler) cmdListChannels(env *envelope.Envelope, args envelope.Value) {
	room := argString(args, "room")
	if room == "" {
		h.respondError(env, apperr.CodeValidation, "list_channels requires room")
		return
	}
	channels, err := h.bus.rooms.ListChannels(room)
	if err != nil {
		h.respondError(env, apperr.CodeRoomNotFound, err.Error())
		return
	}
	names := make([]string, 0, len(channels))
	for _, ch := range channels {
		names = append(names, ch.Name)
	}
	h.respond(env, envelope.Value{"room": room, "channels": names})
}

func (h *connHandler) cmdChannelInfo(env *envelope.Envelope, args envelope.Value) {
	room := argString(args, "room")
	channel := argString(args, "channel")
	ch, ok := h.bus.rooms.GetChannel(room, channel)
	if !ok {
		h.respondError(env, apperr.CodeChannelNotFound, "channel not found")
		return
	}
	h.respond(env, envelope.Value{
		"room":             room,
		"channel":          channel,
		"members":          ch.MemberCount(),
		"message_rate_1h":  ch.MessageRateLastHour(),
		"last_activity":    ch.LastActivity(),
	})
}

func (h *connHandler) cmdHistory(env *envelope.Envelope, args envelope.Value) {
	room := argString(args, "room")
	channel := argString(args, "channel")
	limit := argInt(args, "limit", 50)

	var since, until *time.Time
	if s := argString(args, "since"); s != "" {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			since = &t
		}
	}
	if u := argString(args, "until"); u != "" {
		if t, err := time.Parse(time.RFC3339, u); err == nil {
			until = &t
		}
	}

	records, err := h.bus.storage.History(h.ctx, room, channel, limit, since, until)
	if err != nil {
		h.respondError(env, apperr.CodeValidation, fmt.Sprintf("history lookup failed: %v", err))
		return
	}
	items := make([]envelope.Value, 0, len(records))
	for _, rec := range records {
		items = append(items, envelope.Value{"envelope": rec.Envelope, "stored_at": rec.StoredAt})
	}
	h.respond(env, envelope.Value{"room": room, "channel": channel, "records": items})
}

// cmdHistoryReplay re-delivers stored history to the requesting client
// instead of the room, used by operators rehydrating state after a
// reconnect.
func (h *connHandler) cmdHistoryReplay(env *envelope.Envelope, args envelope.Value) {
	room := argString(args, "room")
	channel := argString(args, "channel")
	limit := argInt(args, "limit", 100)

	records, err := h.bus.storage.History(h.ctx, room, channel, limit, nil, nil)
	if err != nil {
		h.respondError(env, apperr.CodeValidation, fmt.Sprintf("history replay failed: %v", err))
		return
	}
	for _, rec := range records {
		data, err := rec.Envelope.Serialize(h.bus.wire())
		if err != nil {
			continue
		}
		_ = h.sender.Send(data)
	}
	h.respond(env, envelope.Value{"replayed": len(records)})
}

// cmdOperatorJoin registers the connection as an operator for a group,
// enforcing the operator auth token when the broker requires one, and
// starts the operator's delivery loop.
func (h *connHandler) cmdOperatorJoin(env *envelope.Envelope, args envelope.Value) {
	group := argString(args, "group")
	if group == "" {
		h.respondError(env, apperr.CodeValidation, "operator.join requires group")
		return
	}
	if h.bus.cfg.OperatorAuthRequired {
		token := argString(args, "auth_token")
		if token == "" || token != h.bus.cfg.OperatorAuthToken {
			h.bus.telemetry.EmitSecurityEvent("operator_auth_failed", h.clientID, envelope.Value{"group": group}, "warning")
			h.respondError(env, apperr.CodeOperatorAuth, "operator auth token missing or invalid")
			return
		}
	}
	h.startOperatorLoop(group)
	h.respond(env, envelope.Value{"group": group, "joined": true})
}

// cmdCasilReload applies a new inspection configuration at runtime. Only
// the fields present in args are overridden; everything else keeps its
// current value.
func (h *connHandler) cmdCasilReload(env *envelope.Envelope, args envelope.Value) {
	cfg := *h.bus.inspector.Config()

	if mode := argString(args, "mode"); mode != "" {
		cfg.Mode = inspect.Mode(mode)
	}
	if v, ok := args["enabled"].(bool); ok {
		cfg.Enabled = v
	}
	if v, ok := args["block_on_probable_secret"].(bool); ok {
		cfg.Policies.BlockOnProbableSecret = v
	}
	if v := argInt(args, "max_payload_bytes", 0); v > 0 {
		cfg.Policies.MaxPayloadBytes = v
	}

	h.bus.inspector.Reload(&cfg)
	h.respond(env, envelope.Value{"reloaded": true, "mode": string(cfg.Mode)})
}
