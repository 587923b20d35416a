package announce

import (
	"sort"
	"sync"
	"time"
)

// Store is the authoritative id -> Announcement index.
//
// All reads return clones, never internal references, so a caller can hold a
// snapshot while writers proceed. Timers elsewhere reference items by id
// only.
type Store struct {
	mu    sync.RWMutex
	items map[string]Announcement
}

func NewStore() *Store {
	return &Store{items: map[string]Announcement{}}
}

// Put inserts or replaces the item under its id.
func (s *Store) Put(a Announcement) {
	s.mu.Lock()
	s.items[a.ID] = a.Clone()
	s.mu.Unlock()
}

func (s *Store) Get(id string) (Announcement, bool) {
	s.mu.RLock()
	a, ok := s.items[id]
	s.mu.RUnlock()
	if !ok {
		return Announcement{}, false
	}
	return a.Clone(), true
}

// Remove deletes the item and reports whether it existed. Unknown ids are a
// plain false so "cancel all" sweeps stay quiet; single-item cancels turn
// false into a not-found error at the engine layer.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	_, ok := s.items[id]
	delete(s.items, id)
	s.mu.Unlock()
	return ok
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func (s *Store) ActiveLen() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, a := range s.items {
		if a.Active {
			n++
		}
	}
	return n
}

// ListAll returns clones of every item, ordered by next fire time then id so
// snapshots are stable for callers and tests.
func (s *Store) ListAll() []Announcement {
	s.mu.RLock()
	out := make([]Announcement, 0, len(s.items))
	for _, a := range s.items {
		out = append(out, a.Clone())
	}
	s.mu.RUnlock()
	sortByFireTime(out)
	return out
}

// ListActive returns clones of items with a pending future occurrence.
func (s *Store) ListActive() []Announcement {
	s.mu.RLock()
	out := make([]Announcement, 0, len(s.items))
	for _, a := range s.items {
		if a.Active {
			out = append(out, a.Clone())
		}
	}
	s.mu.RUnlock()
	sortByFireTime(out)
	return out
}

// CountActiveOnDay counts active items whose next fire falls on the same
// calendar day as day, evaluated in loc. Calendar day, not a rolling 24h
// window.
func (s *Store) CountActiveOnDay(day time.Time, loc *time.Location) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, a := range s.items {
		if a.Active && a.SameDay(day, loc) {
			n++
		}
	}
	return n
}

func sortByFireTime(items []Announcement) {
	sort.Slice(items, func(i, j int) bool {
		if !items[i].At.Equal(items[j].At) {
			return items[i].At.Before(items[j].At)
		}
		return items[i].ID < items[j].ID
	})
}
