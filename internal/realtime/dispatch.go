package realtime

import (
	"encoding/json"

	"github.com/nightvibe/nightvibe/internal/domain"
	"github.com/nightvibe/nightvibe/internal/metrics"
	"go.uber.org/zap"
)

// targets returns the handler sets an event should reach: the global set,
// then subscribers of chatID and wildcard subscribers. When all is true
// every subscriber is included regardless of chat.
func (m *Manager) targets(chatID string, all bool) []Handlers {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []Handlers{m.global}
	if all {
		for _, set := range m.subs {
			for _, h := range set {
				out = append(out, h)
			}
		}
		return out
	}
	for _, h := range m.subs[chatID] {
		out = append(out, h)
	}
	if chatID != "" {
		for _, h := range m.subs[""] {
			out = append(out, h)
		}
	}
	return out
}

// dispatch decodes one inbound frame and invokes the matching callbacks
// outside the manager lock.
func (m *Manager) dispatch(data []byte) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		m.logger.Warn("realtime: malformed frame", zap.Error(err))
		return
	}
	metrics.IncRealtimeEvent("in", f.Event)

	switch f.Event {
	case EventConnected:
		var p struct {
			SocketID string `json:"socketId"`
		}
		if m.decode(f, &p) {
			m.mu.Lock()
			m.socketID = p.SocketID
			m.mu.Unlock()
		}

	case EventMessageNew:
		var msg domain.Message
		if !m.decode(f, &msg) {
			return
		}
		for _, h := range m.targets(msg.ChatID, false) {
			if h.OnMessage != nil {
				h.OnMessage(msg)
			}
		}

	case EventMessageRead:
		var r ReadReceipt
		if !m.decode(f, &r) {
			return
		}
		for _, h := range m.targets(r.ChatID, false) {
			if h.OnRead != nil {
				h.OnRead(r)
			}
		}

	case EventMessageDelivered:
		var r DeliveryReceipt
		if !m.decode(f, &r) {
			return
		}
		for _, h := range m.targets(r.ChatID, false) {
			if h.OnDelivered != nil {
				h.OnDelivered(r)
			}
		}

	case EventTypingStart, EventTypingStop:
		var t Typing
		if !m.decode(f, &t) {
			return
		}
		for _, h := range m.targets(t.ChatID, false) {
			cb := h.OnTypingStop
			if f.Event == EventTypingStart {
				cb = h.OnTypingStart
			}
			if cb != nil {
				cb(t)
			}
		}

	case EventUserOnline, EventUserOffline:
		var p Presence
		if !m.decode(f, &p) {
			return
		}
		for _, h := range m.targets("", true) {
			cb := h.OnUserOffline
			if f.Event == EventUserOnline {
				cb = h.OnUserOnline
			}
			if cb != nil {
				cb(p)
			}
		}

	default:
		m.logger.Debug("realtime: unhandled event", zap.String("event", f.Event))
	}
}

func (m *Manager) decode(f Frame, v any) bool {
	if err := json.Unmarshal(f.Data, v); err != nil {
		m.logger.Warn("realtime: bad payload", zap.String("event", f.Event), zap.Error(err))
		return false
	}
	return true
}
