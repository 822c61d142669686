package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgallion1/docchat/internal/metrics"
)

var (
	// ErrNotFound signals an unknown or expired session ID.
	ErrNotFound = errors.New("session not found")
	// ErrTooManySessions signals that the store is at capacity.
	ErrTooManySessions = errors.New("too many active sessions")
)

// Store is a thread-safe in-memory session registry with idle-TTL eviction.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
	max      int
	deps     Deps

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewStore(deps Deps, ttl time.Duration, maxSessions int) *Store {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	return &Store{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		max:      maxSessions,
		deps:     deps,
	}
}

// Create starts a new empty session.
func (s *Store) Create() (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.max > 0 && len(s.sessions) >= s.max {
		return nil, fmt.Errorf("%w (%d)", ErrTooManySessions, s.max)
	}
	sess := newSession(newID(), s.deps)
	s.sessions[sess.ID] = sess
	metrics.SessionsActive.Set(float64(len(s.sessions)))
	sess.log.Info("session created")
	return sess, nil
}

func (s *Store) Get(id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return sess, nil
}

func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(s.sessions, id)
	metrics.SessionsActive.Set(float64(len(s.sessions)))
	return nil
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Cleanup removes sessions idle for longer than the TTL and returns how many
// were evicted.
func (s *Store) Cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	evicted := 0
	for id, sess := range s.sessions {
		if now.Sub(sess.LastUsed()) > s.ttl {
			delete(s.sessions, id)
			evicted++
		}
	}
	metrics.SessionsActive.Set(float64(len(s.sessions)))
	return evicted
}

// Start launches the periodic cleanup loop.
func (s *Store) Start(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = 5 * time.Minute
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				if n := s.Cleanup(); n > 0 {
					s.deps.Log.Info("expired sessions evicted", "count", n)
				}
			}
		}
	}()
}

// Stop halts the cleanup loop.
func (s *Store) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}
