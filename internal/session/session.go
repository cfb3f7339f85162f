// Package session tracks logged-in operators and the undo history each one owns.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nekogravitycat/record-console/internal/catalog"
	"github.com/nekogravitycat/record-console/internal/ledger"
	"github.com/nekogravitycat/record-console/internal/role"
)

var ErrSessionNotFound = errors.New("session not found or already ended")

// Session is one login. Its ledger lives and dies with it.
type Session struct {
	ID        string
	UserID    int64
	Username  string
	Role      role.Role
	StartedAt time.Time

	mu     sync.Mutex
	ledger *ledger.Ledger
}

func (s *Session) Capabilities() role.Capabilities {
	return s.Role.Capabilities()
}

// Run gives fn exclusive use of the session's ledger. A session handles one
// mutation or undo at a time even when requests arrive concurrently.
func (s *Session) Run(fn func(l *ledger.Ledger) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.ledger)
}

// UndoDepth reports how many actions the session can undo for family.
func (s *Session) UndoDepth(family catalog.Family) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Depth(family)
}

func (s *Session) clearHistory() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ledger.Clear()
}

// Registry is the in-memory set of live sessions. Nothing survives a restart.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	store    ledger.Store
	maxDepth int
	log      *zap.Logger
}

// NewRegistry creates a registry whose sessions replay undo actions through store.
func NewRegistry(store ledger.Store, maxUndoDepth int, log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		sessions: make(map[string]*Session),
		store:    store,
		maxDepth: maxUndoDepth,
		log:      log,
	}
}

// Start opens a session for an authenticated account.
func (r *Registry) Start(userID int64, username string, rl role.Role) (*Session, error) {
	if _, err := role.Parse(string(rl)); err != nil {
		return nil, fmt.Errorf("start session for %q: %w", username, err)
	}

	s := &Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		Username:  username,
		Role:      rl,
		StartedAt: time.Now().UTC(),
		ledger:    ledger.New(r.store, rl.Capabilities().UndoFamilies(), r.maxDepth, r.log),
	}

	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()

	r.log.Info("session started",
		zap.String("session_id", s.ID),
		zap.String("username", username),
		zap.String("role", string(rl)))
	return s, nil
}

// Get returns the live session with the given id.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// End closes a session and discards its undo history.
func (r *Registry) End(id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	r.discard(s)
	return nil
}

// EndUser closes every session of an account, e.g. after it was deleted.
// It returns the number of sessions ended.
func (r *Registry) EndUser(userID int64) int {
	r.mu.Lock()
	var ended []*Session
	for id, s := range r.sessions {
		if s.UserID == userID {
			ended = append(ended, s)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, s := range ended {
		r.discard(s)
	}
	return len(ended)
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *Registry) discard(s *Session) {
	s.clearHistory()
	r.log.Info("session ended",
		zap.String("session_id", s.ID),
		zap.String("username", s.Username))
}
