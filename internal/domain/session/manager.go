// Package session owns the lifecycle of coding sessions.
//
// A session is OPEN from start_session until end_session or idle timeout;
// closing is terminal. Mutation of a given session is serialized by a
// per-session lock, so the owning connection task and the idle reaper can
// race safely: closure always wins.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/planetforge/engine/internal/domain/model"
	"github.com/planetforge/engine/pkg/logger"
	"github.com/planetforge/engine/pkg/metrics"
)

// Close reasons recorded on session termination.
const (
	CloseReasonClient     = "client"
	CloseReasonIdle       = "idle"
	CloseReasonDisconnect = "disconnect"
)

// Default manager configuration constants.
const (
	defaultIdleTimeout    = 15 * time.Minute
	defaultReaperInterval = 30 * time.Second
)

// CloseHandler receives the summary and sample sequence of a closed session.
// It is invoked asynchronously; implementations must not assume the session
// still exists.
type CloseHandler func(ctx context.Context, summary model.SessionSummary, samples []model.SampleDigest)

// entry wraps a session with its own lock. All mutation goes through it.
type entry struct {
	mu           sync.Mutex
	session      model.Session
	lastAnalysis model.Analysis
}

// Manager owns all open sessions.
type Manager struct {
	mu         sync.Mutex
	sessions   map[string]*entry
	openByUser map[string]int

	idleTimeout     time.Duration
	reaperInterval  time.Duration
	allowConcurrent bool
	now             func() time.Time
	onClose         CloseHandler

	logger logger.Logger
}

// NewManager creates a session manager with configuration options.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		sessions:       make(map[string]*entry),
		openByUser:     make(map[string]int),
		idleTimeout:    defaultIdleTimeout,
		reaperInterval: defaultReaperInterval,
		now:            time.Now,
		logger:         logger.Get().Named("session"),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Start creates a new OPEN session for the user. Fails with
// ErrDuplicateSession when policy forbids concurrent sessions and the user
// already has one open.
func (m *Manager) Start(ctx context.Context, userID string, meta model.SessionMeta) (model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.allowConcurrent && m.openByUser[userID] > 0 {
		return model.Session{}, ErrDuplicateSession
	}

	now := m.now()
	e := &entry{
		session: model.Session{
			ID:           uuid.NewString(),
			UserID:       userID,
			Language:     meta.Language,
			ProjectName:  meta.ProjectName,
			Status:       model.SessionOpen,
			StartedAt:    now,
			LastActivity: now,
		},
	}
	m.sessions[e.session.ID] = e
	m.openByUser[userID]++

	metrics.RecordSessionStarted()
	metrics.UpdateOpenSessions(len(m.sessions))
	m.logger.Debug(ctx, "session started",
		logger.String("session_id", e.session.ID),
		logger.String("user_id", userID),
	)
	return e.session, nil
}

// Process appends a sample to an open session and returns a live snapshot
// including the provided analysis. Fails with ErrSessionNotFound if the
// session is unknown, already closed, or owned by another user. Ownership
// mismatches read the same as missing sessions so ids cannot be probed.
func (m *Manager) Process(ctx context.Context, userID, sessionID string, sample model.MetricsSample, analysis model.Analysis) (model.LiveUpdate, error) {
	e := m.lookup(sessionID)
	if e == nil {
		return model.LiveUpdate{}, ErrSessionNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session.Status != model.SessionOpen || e.session.UserID != userID {
		// Raced against closure, or not the caller's session; either way
		// the session does not exist for this user.
		return model.LiveUpdate{}, ErrSessionNotFound
	}

	now := m.now()
	e.session.LastActivity = now
	e.session.EditCount++
	e.session.CharsSeen += int64(sample.CharsChanged)
	e.session.Keystrokes += int64(sample.Keystrokes)
	if sample.Language != "" {
		e.session.Language = sample.Language
	}
	e.session.Samples = append(e.session.Samples, model.SampleDigest{
		TS:              now,
		CommentRatio:    sample.CommentRatio(),
		FunctionDensity: sample.FunctionDensity(),
		Complexity:      sample.Complexity,
	})
	e.lastAnalysis = analysis

	metrics.RecordSampleProcessed()
	return model.LiveUpdate{
		SessionID:   e.session.ID,
		EditCount:   e.session.EditCount,
		CharsSeen:   e.session.CharsSeen,
		Keystrokes:  e.session.Keystrokes,
		SampleCount: len(e.session.Samples),
		Analysis:    analysis,
	}, nil
}

// End closes an open session at the owning client's request. A second call
// for the same id, or a call by a different user, fails with
// ErrSessionNotFound.
func (m *Manager) End(ctx context.Context, userID, sessionID string) (model.SessionSummary, error) {
	e := m.lookup(sessionID)
	if e == nil {
		return model.SessionSummary{}, ErrSessionNotFound
	}
	e.mu.Lock()
	owned := e.session.UserID == userID
	e.mu.Unlock()
	if !owned {
		return model.SessionSummary{}, ErrSessionNotFound
	}
	return m.close(ctx, sessionID, CloseReasonClient)
}

// EndForUser closes every open session of a user, best-effort. Used on
// disconnect; missing sessions are not an error.
func (m *Manager) EndForUser(ctx context.Context, userID string) {
	m.mu.Lock()
	var ids []string
	for id, e := range m.sessions {
		if e.session.UserID == userID {
			ids = append(ids, id)
		}
	}
	m.mu.Unlock()

	for _, id := range ids {
		if _, err := m.close(ctx, id, CloseReasonDisconnect); err != nil {
			m.logger.Debug(ctx, "session already closed", logger.String("session_id", id))
		}
	}
}

// close performs the single termination path shared by End, EndForUser and
// the idle reaper.
func (m *Manager) close(ctx context.Context, sessionID, reason string) (model.SessionSummary, error) {
	e := m.lookup(sessionID)
	if e == nil {
		return model.SessionSummary{}, ErrSessionNotFound
	}

	e.mu.Lock()
	if e.session.Status != model.SessionOpen {
		e.mu.Unlock()
		return model.SessionSummary{}, ErrSessionNotFound
	}
	e.session.Status = model.SessionClosed
	summary := m.summarize(&e.session)
	samples := make([]model.SampleDigest, len(e.session.Samples))
	copy(samples, e.session.Samples)
	userID := e.session.UserID
	e.mu.Unlock()

	m.mu.Lock()
	delete(m.sessions, sessionID)
	if m.openByUser[userID] > 0 {
		m.openByUser[userID]--
		if m.openByUser[userID] == 0 {
			delete(m.openByUser, userID)
		}
	}
	open := len(m.sessions)
	m.mu.Unlock()

	metrics.RecordSessionClosed(reason)
	metrics.UpdateOpenSessions(open)
	m.logger.Debug(ctx, "session closed",
		logger.String("session_id", sessionID),
		logger.String("reason", reason),
		logger.Float64("duration_s", summary.DurationSeconds),
	)

	// Hand off asynchronously; the caller never blocks on persistence.
	if m.onClose != nil {
		go m.onClose(context.WithoutCancel(ctx), summary, samples)
	}
	return summary, nil
}

// summarize computes closing statistics. Caller holds the entry lock.
func (m *Manager) summarize(s *model.Session) model.SessionSummary {
	ended := m.now()
	duration := ended.Sub(s.StartedAt).Seconds()
	minutes := duration / 60
	if minutes <= 0 {
		minutes = 1.0 / 60
	}
	return model.SessionSummary{
		SessionID:       s.ID,
		UserID:          s.UserID,
		Language:        s.Language,
		StartedAt:       s.StartedAt,
		EndedAt:         ended,
		DurationSeconds: duration,
		SampleCount:     len(s.Samples),
		EditCount:       s.EditCount,
		EditsPerMinute:  float64(s.EditCount) / minutes,
		TypingSpeedCPM:  float64(s.CharsSeen) / minutes,
	}
}

func (m *Manager) lookup(sessionID string) *entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[sessionID]
}

// OpenCount returns the number of currently open sessions.
func (m *Manager) OpenCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// RunReaper sweeps idle sessions until ctx is canceled. Sessions whose last
// activity is older than the idle timeout are closed through the same
// termination path as End.
func (m *Manager) RunReaper(ctx context.Context) {
	ticker := time.NewTicker(m.reaperInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.reapOnce(ctx)
		}
	}
}

func (m *Manager) reapOnce(ctx context.Context) {
	cutoff := m.now().Add(-m.idleTimeout)

	m.mu.Lock()
	var stale []string
	for id, e := range m.sessions {
		e.mu.Lock()
		idle := e.session.LastActivity.Before(cutoff)
		e.mu.Unlock()
		if idle {
			stale = append(stale, id)
		}
	}
	m.mu.Unlock()

	for _, id := range stale {
		if _, err := m.close(ctx, id, CloseReasonIdle); err != nil {
			// Lost the race to an explicit end_session; nothing to do.
			continue
		}
		m.logger.Info(ctx, "idle session reaped", logger.String("session_id", id))
	}
}
