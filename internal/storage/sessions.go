package storage

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/sendgrid-analytics/internal/analytics"
	"github.com/ignite/sendgrid-analytics/internal/domain"
	"github.com/ignite/sendgrid-analytics/internal/pkg/logger"
)

// ErrSessionNotFound is returned for unknown or expired session IDs.
var ErrSessionNotFound = errors.New("session not found")

// Dataset is one cleaned upload. It is never modified after creation and
// may be read by any number of goroutines.
type Dataset struct {
	Source      string                  `json:"source"`
	UploadedAt  time.Time               `json:"uploaded_at"`
	Records     []domain.EventRecord    `json:"-"`
	Diagnostics domain.Diagnostics      `json:"diagnostics"`
	Fingerprint string                  `json:"fingerprint"`
	Options     analytics.FilterOptions `json:"options"`
}

// NewDataset wraps cleaned records, computing their fingerprint and filter
// options.
func NewDataset(source string, records []domain.EventRecord, diag domain.Diagnostics) *Dataset {
	return &Dataset{
		Source:      source,
		UploadedAt:  time.Now().UTC(),
		Records:     records,
		Diagnostics: diag,
		Fingerprint: Fingerprint(records),
		Options:     analytics.DiscoverOptions(records),
	}
}

// Session is a snapshot of one user's dataset and active filter.
type Session struct {
	ID         string        `json:"id"`
	Dataset    *Dataset      `json:"dataset"`
	Filter     domain.Filter `json:"filter"`
	CreatedAt  time.Time     `json:"created_at"`
	LastAccess time.Time     `json:"last_access"`
}

// SessionStore keeps sessions in memory and evicts those idle longer than
// the TTL. Sessions share nothing with each other.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time
}

// NewSessionStore creates a store. A non-positive ttl disables eviction.
func NewSessionStore(ttl time.Duration) *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Create starts a session for ds with no active filter.
func (s *SessionStore) Create(ds *Dataset) Session {
	now := s.now()
	sess := &Session{
		ID:         uuid.New().String(),
		Dataset:    ds,
		CreatedAt:  now,
		LastAccess: now,
	}

	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	logger.Info("session created", "session_id", sess.ID, "source", ds.Source, "records", len(ds.Records))
	return *sess
}

// Get returns a snapshot of the session and marks it as used.
func (s *SessionStore) Get(id string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok || s.expired(sess) {
		return Session{}, ErrSessionNotFound
	}
	sess.LastAccess = s.now()
	return *sess, nil
}

// SetFilter replaces the session's active filter.
func (s *SessionStore) SetFilter(id string, f domain.Filter) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok || s.expired(sess) {
		return Session{}, ErrSessionNotFound
	}
	sess.Filter = cloneFilter(f)
	sess.LastAccess = s.now()
	return *sess, nil
}

// Delete removes a session.
func (s *SessionStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(s.sessions, id)
	return nil
}

// Len returns the number of stored sessions, expired ones included until the
// next sweep.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Sweep removes expired sessions and returns how many were removed.
func (s *SessionStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, sess := range s.sessions {
		if s.expired(sess) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// Run sweeps every interval until ctx is done.
func (s *SessionStore) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				logger.Info("expired sessions evicted", "count", n)
			}
		}
	}
}

func (s *SessionStore) expired(sess *Session) bool {
	return s.ttl > 0 && s.now().Sub(sess.LastAccess) > s.ttl
}

func cloneFilter(f domain.Filter) domain.Filter {
	out := domain.Filter{}
	if f.DateRange != nil {
		dr := *f.DateRange
		out.DateRange = &dr
	}
	if f.IncludeSubjects != nil {
		out.IncludeSubjects = append([]string{}, f.IncludeSubjects...)
	}
	if f.ExcludeRecipients != nil {
		out.ExcludeRecipients = append([]string{}, f.ExcludeRecipients...)
	}
	return out
}
