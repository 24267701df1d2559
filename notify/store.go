// Package notify holds user-facing notifications raised by API failures.
// Listeners subscribe explicitly and receive a snapshot on every change.
package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Level is the severity of a notification.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// DefaultLimit is the number of notifications kept when NewStore gets 0.
const DefaultLimit = 50

// Notification is a single message shown to the user.
type Notification struct {
	ID        string
	Level     Level
	Title     string
	Message   string
	CreatedAt time.Time
}

// Listener receives the current notifications after every change.
type Listener func([]Notification)

// Store is a bounded, ordered notification list. The oldest entry is dropped
// once the limit is reached.
type Store struct {
	mu        sync.Mutex
	items     []Notification
	listeners map[uint64]Listener
	nextID    uint64
	limit     int
	now       func() time.Time
}

// NewStore creates a store keeping at most limit notifications.
func NewStore(limit int) *Store {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Store{
		listeners: make(map[uint64]Listener),
		limit:     limit,
		now:       time.Now,
	}
}

// Subscribe registers l and returns the function removing it.
func (s *Store) Subscribe(l Listener) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

// Publish appends n and returns its id. Missing ids and timestamps are filled in.
func (s *Store) Publish(n Notification) string {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.Level == "" {
		n.Level = LevelInfo
	}

	s.mu.Lock()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.now()
	}
	s.items = append(s.items, n)
	if over := len(s.items) - s.limit; over > 0 {
		s.items = append([]Notification(nil), s.items[over:]...)
	}
	s.mu.Unlock()

	s.broadcast()
	return n.ID
}

// Dismiss removes the notification with the given id.
func (s *Store) Dismiss(id string) bool {
	s.mu.Lock()
	found := false
	for i, n := range s.items {
		if n.ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			found = true
			break
		}
	}
	s.mu.Unlock()

	if found {
		s.broadcast()
	}
	return found
}

// Clear removes every notification.
func (s *Store) Clear() {
	s.mu.Lock()
	s.items = nil
	s.mu.Unlock()
	s.broadcast()
}

// List returns the notifications, oldest first.
func (s *Store) List() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Notification(nil), s.items...)
}

func (s *Store) broadcast() {
	s.mu.Lock()
	snapshot := append([]Notification(nil), s.items...)
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	for _, l := range listeners {
		l(snapshot)
	}
}
