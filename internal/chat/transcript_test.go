package chat

import (
	"testing"
	"time"

	"github.com/nightvibe/nightvibe/internal/domain"
)

var t0 = time.Date(2026, 5, 1, 22, 0, 0, 0, time.UTC)

func at(sec int) time.Time { return t0.Add(time.Duration(sec) * time.Second) }

func m(id string, sec int) domain.Message {
	return domain.Message{ID: id, ChatID: "c1", Sender: domain.User{ID: "bob"}, Content: id, Status: domain.StatusSent, CreatedAt: at(sec)}
}

func keys(t *Transcript) []string {
	var out []string
	for _, e := range t.Entries() {
		out = append(out, e.Key())
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestMergeDeduplicatesAndOrders(t *testing.T) {
	tests := []struct {
		name    string
		history []domain.Message
		push    []domain.Message
		want    []string
	}{
		{
			name:    "same message from history and push",
			history: []domain.Message{m("m1", 1)},
			push:    []domain.Message{m("m1", 1)},
			want:    []string{"m1"},
		},
		{
			name:    "overlap sorted by time",
			history: []domain.Message{m("m3", 3), m("m1", 1)},
			push:    []domain.Message{m("m2", 2), m("m3", 3), m("m0", 0)},
			want:    []string{"m0", "m1", "m2", "m3"},
		},
		{
			name:    "equal timestamps break ties by id",
			history: []domain.Message{m("b", 5)},
			push:    []domain.Message{m("a", 5), m("c", 5)},
			want:    []string{"a", "b", "c"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrival order must not matter.
			for _, order := range [][][]domain.Message{{tt.history, tt.push}, {tt.push, tt.history}} {
				var tr Transcript
				for _, batch := range order {
					tr.Merge(batch...)
				}
				if got := keys(&tr); !equal(got, tt.want) {
					t.Errorf("keys = %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestMergeCountsDuplicates(t *testing.T) {
	var tr Transcript
	tr.Merge(m("m1", 1))
	changed, dups := tr.Merge(m("m1", 1), m("m2", 2))
	if dups != 1 {
		t.Errorf("dups = %d, want 1", dups)
	}
	if len(changed) != 1 || changed[0].ID != "m2" {
		t.Errorf("changed = %v, want [m2]", changed)
	}
}

func TestMergeStatusNeverRegresses(t *testing.T) {
	var tr Transcript
	read := m("m1", 1)
	read.Status = domain.StatusRead
	tr.Merge(read)
	tr.Merge(m("m1", 1))

	e, _ := tr.Get("m1")
	if got := Status(e); got != domain.StatusRead {
		t.Errorf("status = %q, want read", got)
	}
}

func TestResolveReplacesTempEntry(t *testing.T) {
	var tr Transcript
	tr.AddPending(Pending{TempID: "tmp-1", CreatedAt: at(10)})
	tr.Resolve("tmp-1", m("m2", 11))

	if got := keys(&tr); !equal(got, []string{"m2"}) {
		t.Errorf("keys = %v, want [m2]", got)
	}
}

func TestResolveAfterPushKeepsOneCopy(t *testing.T) {
	var tr Transcript
	tr.AddPending(Pending{TempID: "tmp-1", CreatedAt: at(10)})
	tr.Merge(m("m2", 11))
	tr.Resolve("tmp-1", m("m2", 11))

	if got := keys(&tr); !equal(got, []string{"m2"}) {
		t.Errorf("keys = %v, want [m2]", got)
	}
}

func TestPushEchoingClientIDReplacesPending(t *testing.T) {
	var tr Transcript
	tr.AddPending(Pending{TempID: "tmp-1", CreatedAt: at(10)})
	echo := m("m2", 11)
	echo.ClientID = "tmp-1"
	tr.Merge(echo)

	if got := keys(&tr); !equal(got, []string{"m2"}) {
		t.Errorf("keys = %v, want [m2]", got)
	}
}

func TestFailAndRetry(t *testing.T) {
	var tr Transcript
	draft := domain.Draft{ChatID: "c1", Content: "hi"}
	tr.AddPending(Pending{TempID: "tmp-1", Draft: draft, CreatedAt: at(1)})

	if _, ok := tr.Retry("tmp-1"); ok {
		t.Fatal("pending entry must not be retryable")
	}
	if !tr.Fail("tmp-1", "offline") {
		t.Fatal("Fail returned false")
	}
	e, _ := tr.Get("tmp-1")
	f, ok := e.(Failed)
	if !ok || f.Reason != "offline" {
		t.Fatalf("entry = %#v, want Failed{offline}", e)
	}
	if tr.Fail("tmp-1", "again") {
		t.Error("failed entry cannot fail twice")
	}

	got, ok := tr.Retry("tmp-1")
	if !ok || got.Content != "hi" {
		t.Fatalf("Retry = %v, %v", got, ok)
	}
	e, _ = tr.Get("tmp-1")
	if Status(e) != domain.StatusPending {
		t.Errorf("status = %q, want pending", Status(e))
	}
}

func TestMarkReadByAndDelete(t *testing.T) {
	var tr Transcript
	mine := m("mine", 1)
	mine.Sender.ID = "me"
	tr.Merge(mine, m("theirs", 2))

	changed := tr.MarkReadBy("me", nil)
	if len(changed) != 1 || changed[0].ID != "theirs" {
		t.Errorf("changed = %v, want [theirs]", changed)
	}
	if _, ok := tr.MarkDeleted("theirs"); !ok {
		t.Fatal("MarkDeleted returned false")
	}
	if _, ok := tr.MarkDeleted("theirs"); ok {
		t.Error("second MarkDeleted should be a no-op")
	}
	if tr.Len() != 2 {
		t.Errorf("len = %d, deleted messages stay in the transcript", tr.Len())
	}
}
