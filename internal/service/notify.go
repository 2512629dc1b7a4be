package service

import (
	"log"
	"sync"

	"bizdash/backend/internal/domain"
)

// Notifier receives the user-facing outcome of every operation.
type Notifier interface {
	Notify(n domain.Notification)
}

type NotifierFunc func(n domain.Notification)

func (f NotifierFunc) Notify(n domain.Notification) {
	f(n)
}

type LogNotifier struct{}

func (LogNotifier) Notify(n domain.Notification) {
	log.Printf("[notify] %s: %s: %s", n.Level, n.Title, n.Message)
}

type MultiNotifier []Notifier

func (m MultiNotifier) Notify(n domain.Notification) {
	for _, target := range m {
		if target != nil {
			target.Notify(n)
		}
	}
}

// Recorder keeps every notification it receives.
type Recorder struct {
	mu    sync.Mutex
	items []domain.Notification
}

func (r *Recorder) Notify(n domain.Notification) {
	r.mu.Lock()
	r.items = append(r.items, n)
	r.mu.Unlock()
}

func (r *Recorder) Notifications() []domain.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Notification(nil), r.items...)
}

// Count returns how many notifications of the given level were received.
func (r *Recorder) Count(level domain.NotificationLevel) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, item := range r.items {
		if item.Level == level {
			n++
		}
	}
	return n
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	r.items = nil
	r.mu.Unlock()
}
