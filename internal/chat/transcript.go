package chat

import (
	"slices"
	"time"

	"github.com/nightvibe/nightvibe/internal/domain"
)

// Entry is one line of a transcript: Pending, Confirmed or Failed.
type Entry interface {
	// Key is the message id for confirmed entries and the temporary id
	// otherwise.
	Key() string
	// At is the timestamp used for ordering.
	At() time.Time
	entry()
}

// Pending is an optimistic message awaiting the server.
type Pending struct {
	TempID    string
	Draft     domain.Draft
	Sender    domain.User
	CreatedAt time.Time
}

// Confirmed is a message the server has acknowledged.
type Confirmed struct {
	Message domain.Message
}

// Failed is an optimistic message the server rejected or never received.
// It can be retried.
type Failed struct {
	TempID    string
	Draft     domain.Draft
	Sender    domain.User
	CreatedAt time.Time
	Reason    string
}

func (p Pending) Key() string { return p.TempID }
func (p Pending) At() time.Time { return p.CreatedAt }
func (Pending) entry() {}
func (c Confirmed) Key() string { return c.Message.ID }
func (c Confirmed) At() time.Time { return c.Message.CreatedAt }
func (Confirmed) entry() {}
func (f Failed) Key() string { return f.TempID }
func (f Failed) At() time.Time { return f.CreatedAt }
func (Failed) entry() {}

// Status reports the delivery state an entry displays.
func Status(e Entry) domain.Status {
	switch e := e.(type) {
	case Pending:
		return domain.StatusPending
	case Confirmed:
		return e.Message.Status
	case Failed:
		return domain.StatusFailed
	default:
		panic("chat: unknown entry type")
	}
}

// Transcript is the ordered, de-duplicated message list of one chat.
// It is not safe for concurrent use; ViewModel guards it.
type Transcript struct {
	entries []Entry
}

// Len returns the number of entries.
func (t *Transcript) Len() int { return len(t.entries) }

// Entries returns a copy of the entries in display order.
func (t *Transcript) Entries() []Entry {
	return slices.Clone(t.entries)
}

// Confirmed returns the confirmed messages in display order.
func (t *Transcript) Confirmed() []domain.Message {
	var out []domain.Message
	for _, e := range t.entries {
		if c, ok := e.(Confirmed); ok {
			out = append(out, c.Message)
		}
	}
	return out
}

// Get returns the entry with the given key.
func (t *Transcript) Get(key string) (Entry, bool) {
	i := t.find(key)
	if i < 0 {
		return nil, false
	}
	return t.entries[i], true
}

func (t *Transcript) find(key string) int {
	return slices.IndexFunc(t.entries, func(e Entry) bool { return e.Key() == key })
}

// Merge folds server messages into the transcript, keyed by id. A message
// already present only advances its status; a message echoing the client id
// of an optimistic entry replaces it. It returns the messages that were
// added or changed, and the number of duplicates ignored.
func (t *Transcript) Merge(msgs ...domain.Message) (changed []domain.Message, duplicates int) {
	for _, m := range msgs {
		if m.ID == "" {
			continue
		}
		if i := t.find(m.ID); i >= 0 {
			c, ok := t.entries[i].(Confirmed)
			if !ok {
				t.entries[i] = Confirmed{Message: m}
				changed = append(changed, m)
				continue
			}
			next := c.Message
			next.Status = c.Message.Status.Advance(m.Status)
			next.Deleted = c.Message.Deleted || m.Deleted
			if next.Status != c.Message.Status || next.Deleted != c.Message.Deleted {
				t.entries[i] = Confirmed{Message: next}
				changed = append(changed, next)
			}
			duplicates++
			if m.ClientID != "" {
				t.dropOptimistic(m.ClientID)
			}
			continue
		}
		if m.ClientID != "" {
			if i := t.find(m.ClientID); i >= 0 {
				t.entries[i] = Confirmed{Message: m}
				changed = append(changed, m)
				continue
			}
		}
		t.entries = append(t.entries, Confirmed{Message: m})
		changed = append(changed, m)
	}
	t.sort()
	return changed, duplicates
}

// AddPending appends an optimistic entry.
func (t *Transcript) AddPending(p Pending) {
	t.entries = append(t.entries, p)
	t.sort()
}

// Resolve replaces the optimistic entry tempID with the server's message.
// If the message already arrived by push, the optimistic entry is dropped
// instead so the id appears once. It reports whether tempID was present.
func (t *Transcript) Resolve(tempID string, m domain.Message) bool {
	i := t.find(tempID)
	if i < 0 {
		t.Merge(m)
		return false
	}
	if j := t.find(m.ID); j >= 0 {
		t.entries = slices.Delete(t.entries, i, i+1)
		t.Merge(m)
		return true
	}
	t.entries[i] = Confirmed{Message: m}
	t.sort()
	return true
}

// Fail moves the pending entry tempID to Failed.
func (t *Transcript) Fail(tempID, reason string) bool {
	i := t.find(tempID)
	if i < 0 {
		return false
	}
	p, ok := t.entries[i].(Pending)
	if !ok {
		return false
	}
	t.entries[i] = Failed{TempID: p.TempID, Draft: p.Draft, Sender: p.Sender, CreatedAt: p.CreatedAt, Reason: reason}
	return true
}

// Retry moves the failed entry tempID back to Pending and returns its draft.
func (t *Transcript) Retry(tempID string) (domain.Draft, bool) {
	i := t.find(tempID)
	if i < 0 {
		return domain.Draft{}, false
	}
	f, ok := t.entries[i].(Failed)
	if !ok {
		return domain.Draft{}, false
	}
	t.entries[i] = Pending{TempID: f.TempID, Draft: f.Draft, Sender: f.Sender, CreatedAt: f.CreatedAt}
	return f.Draft, true
}

// Advance moves message id to at least status s.
func (t *Transcript) Advance(id string, s domain.Status) (domain.Message, bool) {
	i := t.find(id)
	if i < 0 {
		return domain.Message{}, false
	}
	c, ok := t.entries[i].(Confirmed)
	if !ok {
		return domain.Message{}, false
	}
	next := c.Message.Status.Advance(s)
	if next == c.Message.Status {
		return c.Message, false
	}
	c.Message.Status = next
	t.entries[i] = c
	return c.Message, true
}

// MarkReadBy promotes to read every confirmed message not sent by readerID,
// restricted to ids when non-empty.
func (t *Transcript) MarkReadBy(readerID string, ids []string) []domain.Message {
	var changed []domain.Message
	for i, e := range t.entries {
		c, ok := e.(Confirmed)
		if !ok || c.Message.Sender.ID == readerID {
			continue
		}
		if len(ids) > 0 && !slices.Contains(ids, c.Message.ID) {
			continue
		}
		next := c.Message.Status.Advance(domain.StatusRead)
		if next != c.Message.Status {
			c.Message.Status = next
			t.entries[i] = c
			changed = append(changed, c.Message)
		}
	}
	return changed
}

// MarkDeleted flags a confirmed message as deleted. Entries are never
// removed.
func (t *Transcript) MarkDeleted(id string) (domain.Message, bool) {
	i := t.find(id)
	if i < 0 {
		return domain.Message{}, false
	}
	c, ok := t.entries[i].(Confirmed)
	if !ok || c.Message.Deleted {
		return domain.Message{}, false
	}
	c.Message.Deleted = true
	t.entries[i] = c
	return c.Message, true
}

// dropOptimistic removes a pending or failed entry.
func (t *Transcript) dropOptimistic(tempID string) {
	i := t.find(tempID)
	if i < 0 {
		return
	}
	if _, ok := t.entries[i].(Confirmed); ok {
		return
	}
	t.entries = slices.Delete(t.entries, i, i+1)
}

func (t *Transcript) sort() {
	slices.SortStableFunc(t.entries, func(a, b Entry) int {
		switch {
		case domain.Before(a.At(), a.Key(), b.At(), b.Key()):
			return -1
		case domain.Before(b.At(), b.Key(), a.At(), a.Key()):
			return 1
		default:
			return 0
		}
	})
}
