package client

import "sync"

type Author int

const (
	AuthorPatient Author = iota
	AuthorStaff
)

func (a Author) String() string {
	if a == AuthorPatient {
		return "patient"
	}
	return "staff"
}

// Merge returns historical followed by live with duplicate ids removed.
// The first copy of an id wins.
func Merge(historical, live []Reply) []Reply {
	seen := make(map[string]struct{}, len(historical)+len(live))
	out := make([]Reply, 0, len(historical)+len(live))
	for _, list := range [][]Reply{historical, live} {
		for _, r := range list {
			if _, dup := seen[r.ID]; dup {
				continue
			}
			seen[r.ID] = struct{}{}
			out = append(out, r)
		}
	}
	return out
}

// Attribute decides which side of the chat a reply renders on. A reply
// with no sender, or sent by the viewer, is the patient's.
func Attribute(r Reply, viewerID string) Author {
	if r.SenderID == nil || *r.SenderID == viewerID {
		return AuthorPatient
	}
	return AuthorStaff
}

// Thread holds the two sources of a complaint chat.
type Thread struct {
	mu         sync.Mutex
	historical []Reply
	live       []Reply
}

func (t *Thread) SetHistorical(replies []Reply) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.historical = append([]Reply(nil), replies...)
}

// AddLive appends r unless its id is already known. It reports whether r
// was new.
func (t *Thread) AddLive(r Reply) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, list := range [][]Reply{t.historical, t.live} {
		for _, existing := range list {
			if existing.ID == r.ID {
				return false
			}
		}
	}
	t.live = append(t.live, r)
	return true
}

// Replies is the merged thread.
func (t *Thread) Replies() []Reply {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Merge(t.historical, t.live)
}

func (t *Thread) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.historical = nil
	t.live = nil
}
