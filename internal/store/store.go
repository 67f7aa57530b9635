// Package store persists chatrooms and their messages and notifies
// subscribers after every committed change.
package store

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("not found")

type EventKind string

const (
	ChatroomsChanged EventKind = "chatrooms"
	MessagesChanged  EventKind = "messages"
)

// Event describes which of an owner's collections changed.
type Event struct {
	Kind       EventKind
	OwnerID    uint
	ChatroomID string
}

type Listener func(Event)

type Store struct {
	db  *gorm.DB
	now func() time.Time

	mu        sync.RWMutex
	listeners map[int]Listener
	nextSub   int
}

func New(db *gorm.DB) *Store {
	return &Store{
		db:        db,
		now:       func() time.Time { return time.Now().UTC() },
		listeners: map[int]Listener{},
	}
}

// Subscribe registers l for every change event. The returned func removes it.
func (s *Store) Subscribe(l Listener) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
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

func (s *Store) notify(ev Event) {
	s.mu.RLock()
	ls := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		ls = append(ls, l)
	}
	s.mu.RUnlock()

	for _, l := range ls {
		l(ev)
	}
}

func newID() string {
	// v7 ids sort by creation time, which keeps equal timestamps in insertion order
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
