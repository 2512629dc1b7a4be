package sheets

import (
	"sync"
	"time"

	"bizdash/backend/internal/domain"
)

// MaxLogEntries bounds the sync log; the oldest entries are dropped first.
const MaxLogEntries = 100

// Log is the append-only record of transport attempts. It is the only place a
// silently failing cross-origin request leaves a trace.
type Log struct {
	mu      sync.Mutex
	entries []domain.SyncLogEntry
	now     func() time.Time
}

func NewLog() *Log {
	return &Log{now: time.Now}
}

func (l *Log) Add(action string, outcome domain.SyncOutcome, detail string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, domain.SyncLogEntry{
		Timestamp: l.now().UTC(),
		Action:    action,
		Outcome:   outcome,
		Detail:    detail,
	})
	if overflow := len(l.entries) - MaxLogEntries; overflow > 0 {
		l.entries = append(l.entries[:0:0], l.entries[overflow:]...)
	}
}

// Entries returns a copy, oldest first.
func (l *Log) Entries() []domain.SyncLogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]domain.SyncLogEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *Log) Clear() {
	l.mu.Lock()
	l.entries = nil
	l.mu.Unlock()
}
