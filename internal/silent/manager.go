// Package silent manages the TTL-bound device-session state machine:
// activating a restricted ringer mode on a user's device, extending it,
// and guaranteeing it is eventually restored.
package silent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/akontos/sirena/internal/config"
	"github.com/akontos/sirena/internal/sessionstore"
)

const activeIndex = "silent:active"

func sessionKey(userID string) string {
	return "silent:session:" + userID
}

// Session is one user's device-mode override. A user has at most one;
// a second activation extends it rather than creating another.
type Session struct {
	UserID      string    `json:"user_id"`
	RequestID   string    `json:"request_id,omitempty"`
	Platform    Platform  `json:"platform"`
	Active      bool      `json:"active"`
	ActivatedAt time.Time `json:"activated_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	RestoreMode string    `json:"restore_mode"`

	// Generation increments on every activation or extension. A deferred
	// expiry task captures the generation it was scheduled for and
	// becomes a no-op when the stored one has moved on.
	Generation uint64 `json:"generation"`
}

// Notifier receives operational anomaly messages. May be nil.
type Notifier interface {
	Notify(text string)
}

type Manager struct {
	store       sessionstore.Store
	controllers map[Platform]Controller
	defaultDur  time.Duration
	buffer      time.Duration
	notifier    Notifier

	// swappable in tests
	now   func() time.Time
	after func(d time.Duration) <-chan time.Time
}

func NewManager(store sessionstore.Store, sender Sender, cfg config.SilentConfig, notifier Notifier) *Manager {
	return &Manager{
		store: store,
		controllers: map[Platform]Controller{
			PlatformAndroid: newAndroidController(sender),
			PlatformIOS:     newIOSController(sender),
		},
		defaultDur: cfg.DefaultDuration,
		buffer:     cfg.ExpiryBuffer,
		notifier:   notifier,
		now:        time.Now,
		after:      time.After,
	}
}

// Activate creates a session for the user, or extends the existing one:
// ExpiresAt moves forward by duration from now, ActivatedAt stays, and
// the platform command is re-issued (it is idempotent on the device).
func (m *Manager) Activate(ctx context.Context, userID, requestID string, platform Platform, duration time.Duration, restoreMode string) (*Session, error) {
	ctrl, ok := m.controllers[platform]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedPlatform, platform)
	}
	if duration <= 0 {
		duration = m.defaultDur
	}

	now := m.now()
	session := m.load(ctx, userID)
	if session != nil && session.Active {
		session.ExpiresAt = now.Add(duration)
		session.Generation++
		if requestID != "" {
			session.RequestID = requestID
		}
		slog.Info("silent session extended", "user", userID, "expires_at", session.ExpiresAt)
	} else {
		session = &Session{
			UserID:      userID,
			RequestID:   requestID,
			Platform:    platform,
			Active:      true,
			ActivatedAt: now,
			ExpiresAt:   now.Add(duration),
			RestoreMode: restoreMode,
			Generation:  1,
		}
		slog.Info("silent session activated", "user", userID, "platform", platform, "expires_at", session.ExpiresAt)
	}

	if _, err := ctrl.Activate(ctx, userID, session.RequestID, duration); err != nil {
		return nil, fmt.Errorf("platform activate: %w", err)
	}

	m.persist(ctx, session)

	gen := session.Generation
	expiresAt := session.ExpiresAt
	go m.runExpiry(userID, gen, expiresAt)

	out := *session
	return &out, nil
}

// Deactivate restores the device mode and deletes the session. When the
// caller supplies a correlating request ID it must match the stored
// one; a mismatch is a hard error and the session is left untouched.
func (m *Manager) Deactivate(ctx context.Context, userID, requestID, restoreMode string) (*Session, error) {
	session := m.load(ctx, userID)
	if session == nil {
		return nil, fmt.Errorf("%w: user %s", ErrNoActiveSession, userID)
	}
	if requestID != "" && session.RequestID != requestID {
		return nil, fmt.Errorf("%w: have %s, got %s", ErrRequestIDMismatch, session.RequestID, requestID)
	}

	ctrl, ok := m.controllers[session.Platform]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedPlatform, session.Platform)
	}

	restore := restoreMode
	if restore == "" {
		restore = session.RestoreMode
	}
	if _, err := ctrl.Deactivate(ctx, userID, session.RequestID, restore); err != nil {
		return nil, fmt.Errorf("platform deactivate: %w", err)
	}

	m.remove(ctx, userID)
	slog.Info("silent session deactivated", "user", userID)
	return session, nil
}

// Status returns the user's session. Store outages degrade to
// ErrNoActiveSession rather than propagating.
func (m *Manager) Status(ctx context.Context, userID string) (*Session, error) {
	session := m.load(ctx, userID)
	if session == nil {
		return nil, fmt.Errorf("%w: user %s", ErrNoActiveSession, userID)
	}
	return session, nil
}

// ListActive reads the active-session index and resolves each entry.
// Entries whose session record has vanished are stale and skipped; the
// index is reconciled lazily, not repaired here.
func (m *Manager) ListActive(ctx context.Context) ([]Session, error) {
	members, err := m.store.IndexMembers(ctx, activeIndex)
	if err != nil {
		return nil, fmt.Errorf("read active index: %w", err)
	}

	sessions := make([]Session, 0, len(members))
	for _, userID := range members {
		if s := m.load(ctx, userID); s != nil {
			sessions = append(sessions, *s)
		}
	}
	return sessions, nil
}

// Sweep reclaims sessions past their expiry. It is the durable backstop
// for deferred expiry tasks lost to a restart; the per-activation timer
// is only a latency optimization. Returns the number reclaimed.
func (m *Manager) Sweep(ctx context.Context) (int, error) {
	members, err := m.store.IndexMembers(ctx, activeIndex)
	if err != nil {
		return 0, fmt.Errorf("read active index: %w", err)
	}

	reclaimed := 0
	now := m.now()
	for _, userID := range members {
		session := m.load(ctx, userID)
		if session == nil {
			// Record already gone (TTL fired or deactivated); drop the
			// stale index entry.
			if err := m.store.RemoveFromIndex(ctx, activeIndex, userID); err != nil {
				slog.Warn("failed to drop stale index entry", "user", userID, "error", err)
			}
			continue
		}
		if now.Before(session.ExpiresAt) {
			continue
		}
		m.expire(ctx, session)
		reclaimed++
	}
	return reclaimed, nil
}

// runExpiry is the deferred per-activation task. It is never cancelled;
// a superseding activation bumps the generation and this wakes up to
// find it no longer matches.
func (m *Manager) runExpiry(userID string, gen uint64, expiresAt time.Time) {
	delay := expiresAt.Sub(m.now())
	if delay > 0 {
		<-m.after(delay)
	}

	ctx := context.Background()
	session := m.load(ctx, userID)
	if session == nil {
		return
	}
	if session.Generation != gen {
		// Extended or re-activated since this task was scheduled
		return
	}
	if m.now().Before(session.ExpiresAt) {
		return
	}
	m.expire(ctx, session)
}

// expire deactivates best-effort: errors are logged, never propagated.
// The device is told to restore the mode recorded at activation.
func (m *Manager) expire(ctx context.Context, session *Session) {
	ctrl, ok := m.controllers[session.Platform]
	if !ok {
		slog.Error("expiring session has unsupported platform", "user", session.UserID, "platform", session.Platform)
	} else if _, err := ctrl.Deactivate(ctx, session.UserID, session.RequestID, session.RestoreMode); err != nil {
		slog.Error("platform deactivate on expiry failed", "user", session.UserID, "error", err)
	}

	m.remove(ctx, session.UserID)
	slog.Info("silent session expired", "user", session.UserID, "request", session.RequestID)
}

// load reads and decodes the session. Store errors degrade to "not
// found": a cache outage must look like no active session, not a crash.
func (m *Manager) load(ctx context.Context, userID string) *Session {
	data, err := m.store.Get(ctx, sessionKey(userID))
	if err != nil {
		if !errors.Is(err, sessionstore.ErrNotFound) {
			slog.Warn("session store read failed", "user", userID, "error", err)
		}
		return nil
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		slog.Error("corrupt session record", "user", userID, "error", err)
		return nil
	}
	return &session
}

// persist writes the session with a TTL covering its remaining lifetime
// plus a safety buffer, so a crashed process cannot leave a phone
// silent forever. Writes are best-effort during a store outage; the
// sweep catches up once the store recovers.
func (m *Manager) persist(ctx context.Context, session *Session) {
	data, err := json.Marshal(session)
	if err != nil {
		slog.Error("marshal session", "user", session.UserID, "error", err)
		return
	}

	ttl := session.ExpiresAt.Sub(m.now()) + m.buffer
	if err := m.store.Set(ctx, sessionKey(session.UserID), data, ttl); err != nil {
		slog.Error("session store write failed", "user", session.UserID, "error", err)
		m.notify(fmt.Sprintf("silent session write failed for %s: %v", session.UserID, err))
		return
	}
	if err := m.store.AddToIndex(ctx, activeIndex, session.UserID); err != nil {
		slog.Warn("active index write failed", "user", session.UserID, "error", err)
	}
}

func (m *Manager) remove(ctx context.Context, userID string) {
	if err := m.store.Delete(ctx, sessionKey(userID)); err != nil {
		slog.Warn("session delete failed", "user", userID, "error", err)
	}
	if err := m.store.RemoveFromIndex(ctx, activeIndex, userID); err != nil {
		slog.Warn("active index delete failed", "user", userID, "error", err)
	}
}

func (m *Manager) notify(text string) {
	if m.notifier != nil {
		m.notifier.Notify(text)
	}
}
