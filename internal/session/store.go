package session

import (
	"sync"
	"time"

	"github.com/harun/tagbot/internal/tags"
)

// Session is one user's editing conversation.
type Session struct {
	UserID    int64
	ID        string
	State     State
	FilePath  string
	FileName  string
	Format    tags.Format
	Snapshot  tags.Snapshot
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Clone returns a copy that shares nothing mutable with s.
func (s *Session) Clone() Session {
	c := *s
	c.Snapshot = s.Snapshot.Clone()
	return c
}

// Store is the in-memory session table. Lock serializes all work on one
// user's session; the table itself is guarded separately.
type Store struct {
	mu       sync.RWMutex
	sessions map[int64]*Session

	locksMu sync.Mutex
	locks   map[int64]*userLock
}

// userLock is dropped from the table once no caller holds or waits on it.
type userLock struct {
	mu   sync.Mutex
	refs int
}

// NewStore returns an empty session table.
func NewStore() *Store {
	return &Store{
		sessions: make(map[int64]*Session),
		locks:    make(map[int64]*userLock),
	}
}

// Lock acquires the per-user lock and returns its release func. The release
// func must be called exactly once.
func (s *Store) Lock(userID int64) func() {
	s.locksMu.Lock()
	l, ok := s.locks[userID]
	if !ok {
		l = &userLock{}
		s.locks[userID] = l
	}
	l.refs++
	s.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		s.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, userID)
		}
		s.locksMu.Unlock()
	}
}

// lockCount is the number of users with a held or awaited lock.
func (s *Store) lockCount() int {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	return len(s.locks)
}

// Get returns the live session, not a copy. Callers hold the user's lock.
func (s *Store) Get(userID int64) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[userID]
	return sess, ok
}

// Put stores sess under its user, replacing any previous session.
func (s *Store) Put(sess *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.UserID] = sess
}

// Delete removes and returns the user's session.
func (s *Store) Delete(userID int64) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[userID]
	if ok {
		delete(s.sessions, userID)
	}
	return sess, ok
}

// UserIDs lists users with a live session.
func (s *Store) UserIDs() []int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]int64, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Len is the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
