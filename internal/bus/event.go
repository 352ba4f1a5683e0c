package bus

import "time"

// Event kinds. Subscribers filter by prefix, so "chat." receives every
// transcript and chat-list event.
const (
	KindRealtimeStatus    = "realtime.status_changed"
	KindRealtimeGaveUp    = "realtime.gave_up"
	KindTranscriptChanged = "chat.transcript_changed"
	KindMessageConfirmed  = "chat.message_confirmed"
	KindMessageFailed     = "chat.message_failed"
	KindChatListChanged   = "chat.list_changed"
	KindSessionLoggedIn   = "session.logged_in"
	KindSessionLoggedOut  = "session.logged_out"
	KindPaymentOutcome    = "payment.outcome"
	KindCacheUpdated      = "sync.cache_updated"
)

// Event represents a domain event published on the bus.
type Event struct {
	ID        string
	Kind      string
	Timestamp time.Time
	Payload   any
}
