package compose

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/quickmail/quickmail/pkg/config"
	"github.com/quickmail/quickmail/pkg/notify"
)

// Manager provides session lifecycle operations to the REST interface.
type Manager interface {
	NewSession() *Session
	Session(id string) *Session
	RemoveSession(id string) bool
}

// SessionManager implements Manager with an in-memory session map.  Each
// session carries its own notification queue, started when the session is
// created and stopped when it is removed.
type SessionManager struct {
	cfg    config.Root
	sender Sender

	mu       sync.Mutex
	ctx      context.Context
	sessions map[string]*sessionEntry
}

type sessionEntry struct {
	session *Session
	cancel  context.CancelFunc
}

// NewManager creates a SessionManager.  ctx bounds the lifetime of every
// notification queue; canceling it stops them all.
func NewManager(ctx context.Context, cfg config.Root, sender Sender) *SessionManager {
	return &SessionManager{
		cfg:      cfg,
		sender:   sender,
		ctx:      ctx,
		sessions: make(map[string]*sessionEntry),
	}
}

// NewSession creates and registers a session with a fresh ID.
func (m *SessionManager) NewSession() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.NewString()
	qctx, cancel := context.WithCancel(m.ctx)
	queue := notify.New(m.cfg.Compose.NotifyTTL)
	go queue.Start(qctx)
	session := NewSession(id, m.cfg.Compose, m.sender, queue)
	m.sessions[id] = &sessionEntry{session: session, cancel: cancel}
	log.Debug().Str("module", "compose").Str("id", id).Msg("Session created")
	return session
}

// Session looks up a session by ID, nil when absent.
func (m *SessionManager) Session(id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if entry, ok := m.sessions[id]; ok {
		return entry.session
	}
	return nil
}

// RemoveSession deletes a session and stops its notification queue.
func (m *SessionManager) RemoveSession(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.sessions[id]
	if !ok {
		return false
	}
	entry.cancel()
	delete(m.sessions, id)
	log.Debug().Str("module", "compose").Str("id", id).Msg("Session removed")
	return true
}

// ReapIdle removes sessions whose last activity is older than maxIdle,
// returning the number removed.  A maxIdle of zero disables reaping.
func (m *SessionManager) ReapIdle(maxIdle time.Duration) int {
	if maxIdle <= 0 {
		return 0
	}
	cutoff := time.Now().Add(-maxIdle)
	m.mu.Lock()
	var stale []string
	for id, entry := range m.sessions {
		if entry.session.LastActive().Before(cutoff) {
			stale = append(stale, id)
		}
	}
	m.mu.Unlock()
	for _, id := range stale {
		m.RemoveSession(id)
	}
	if len(stale) > 0 {
		log.Info().Str("module", "compose").Int("count", len(stale)).
			Msg("Reaped idle sessions")
	}
	return len(stale)
}

// ReapLoop runs ReapIdle periodically until ctx is canceled.
func (m *SessionManager) ReapLoop(ctx context.Context, maxIdle time.Duration) {
	if maxIdle <= 0 {
		return
	}
	ticker := time.NewTicker(maxIdle / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.ReapIdle(maxIdle)
		}
	}
}
