package transcript

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Role identifies which side of the conversation an entry belongs to.
type Role string

const (
	RoleUser  Role = "USER"
	RoleModel Role = "MODEL"
)

// Entry is one utterance in the conversation log. The last entry for a
// role stays mutable (fragments are appended) until it is sealed; sealed
// entries are never modified again.
type Entry struct {
	ID        string
	Role      Role
	Text      string
	Final     bool
	Timestamp time.Time
}

// Log maintains the rolling conversation transcript. At most one open
// (non-final) entry exists per role at any time. Entries are kept in
// creation order and are never reordered or deleted.
type Log struct {
	mu      sync.RWMutex
	entries []Entry
	open    map[Role]int // index into entries
	now     func() time.Time
}

// NewLog creates an empty transcript log.
func NewLog() *Log {
	return &Log{
		open: make(map[Role]int),
		now:  time.Now,
	}
}

// AppendDelta coalesces an incremental fragment into the role's open
// entry, creating one if needed. An empty fragment on a role with no open
// entry is a no-op so sparse keep-alive deltas don't create empty bubbles.
func (l *Log) AppendDelta(role Role, fragment string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if idx, ok := l.open[role]; ok {
		l.entries[idx].Text += fragment
		return
	}
	if strings.TrimSpace(fragment) == "" {
		return
	}
	l.entries = append(l.entries, Entry{
		ID:        uuid.New().String(),
		Role:      role,
		Text:      fragment,
		Timestamp: l.now(),
	})
	l.open[role] = len(l.entries) - 1
}

// SealTurn marks every open entry final and returns the roles sealed.
// Called once per completed conversational turn; a no-op when nothing is
// open.
func (l *Log) SealTurn() []Role {
	l.mu.Lock()
	defer l.mu.Unlock()

	var sealed []Role
	for role, idx := range l.open {
		l.entries[idx].Final = true
		delete(l.open, role)
		sealed = append(sealed, role)
	}
	return sealed
}

// SealOnInterrupt seals only the model's open entry, appending suffix to
// its text first. A user entry left open by the same interruption stays
// open; the remote service keeps transcribing the user's speech.
func (l *Log) SealOnInterrupt(suffix string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	idx, ok := l.open[RoleModel]
	if !ok {
		return false
	}
	l.entries[idx].Text += suffix
	l.entries[idx].Final = true
	delete(l.open, RoleModel)
	return true
}

// Entries returns a snapshot of the log in creation order.
func (l *Log) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of entries in the log.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}
