// Package browser owns the single persistent Chrome session used by the
// command engine: one browser, one incognito context, one page.
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/google/uuid"

	"github.com/analysta-ai/playwrightium/internal/config"

	"github.com/charmbracelet/log"
)

// Session is the live browser/context/page triple. At most one Session exists
// process-wide; it is created lazily and reused until explicitly released.
type Session struct {
	ID        string
	Browser   *rod.Browser
	Context   *rod.Browser // incognito browsing context
	Page      *rod.Page
	CreatedAt time.Time
}

// SessionUnavailableError reports that the underlying engine could not be
// launched or connected. No command can proceed without a session, so this
// is always fatal to a run.
type SessionUnavailableError struct {
	Err error
}

func (e *SessionUnavailableError) Error() string {
	return fmt.Sprintf("browser session unavailable: %v", e.Err)
}

func (e *SessionUnavailableError) Unwrap() error { return e.Err }

// Manager guards the session lifecycle. Launching Chrome is expensive, so
// Acquire reuses the existing session whenever it is still healthy; callers
// frequently issue many small command batches that should share
// authentication and navigation state.
type Manager struct {
	cfg    config.BrowserConfig
	logger *log.Logger

	mu      sync.Mutex
	current *Session

	// launch and health are swappable so lifecycle logic is testable
	// without a Chrome binary.
	launch func() (*Session, error)
	health func(*Session) error
}

func NewManager(cfg config.BrowserConfig, logger *log.Logger) *Manager {
	m := &Manager{cfg: cfg, logger: logger}
	m.launch = m.launchChrome
	m.health = func(s *Session) error {
		_, err := s.Browser.Version()
		return err
	}
	return m
}

// Acquire returns the current session, creating it if none exists. A second
// Acquire with no intervening Release returns the identical session with no
// side effects. A stale connection (crashed or externally closed Chrome) is
// detected and replaced with a fresh launch.
func (m *Manager) Acquire(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		if err := m.health(m.current); err == nil {
			return m.current, nil
		}
		m.logger.Warn("stale browser connection detected, relaunching")
		m.teardownLocked()
	}

	sess, err := m.launch()
	if err != nil {
		return nil, &SessionUnavailableError{Err: err}
	}
	m.current = sess
	m.logger.Info("browser session created", "session_id", sess.ID, "headless", m.cfg.IsHeadless())
	return sess, nil
}

// Release tears down the triple and marks the manager unallocated. Commands
// issued afterwards transparently re-create a fresh session; they never fail
// merely because the session was previously closed.
func (m *Manager) Release(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return nil
	}
	id := m.current.ID
	m.teardownLocked()
	m.logger.Info("browser session released", "session_id", id)
	return nil
}

// Active reports whether a session currently exists, without creating one.
func (m *Manager) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current != nil
}

// Current returns the live session without creating one.
func (m *Manager) Current() (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil, false
	}
	return m.current, true
}

// launchChrome starts Chrome and builds the session triple. The browser is
// not bound to any caller context: it outlives individual runs and dies only
// on Release. Per-command deadlines attach at the page level.
func (m *Manager) launchChrome() (*Session, error) {
	l := launcher.New().Headless(m.cfg.IsHeadless())
	if m.cfg.Bin != "" {
		l = l.Bin(m.cfg.Bin)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch chrome: %w", err)
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}

	incognito, err := b.Incognito()
	if err != nil {
		_ = b.Close()
		return nil, fmt.Errorf("incognito context: %w", err)
	}

	page, err := incognito.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		_ = b.Close()
		return nil, fmt.Errorf("create page: %w", err)
	}

	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             m.cfg.GetViewportWidth(),
		Height:            m.cfg.GetViewportHeight(),
		DeviceScaleFactor: 1.0,
		Mobile:            false,
	}).Call(page); err != nil {
		m.logger.Warn("failed to set viewport", "err", err)
	}

	return &Session{
		ID:        uuid.NewString(),
		Browser:   b,
		Context:   incognito,
		Page:      page,
		CreatedAt: time.Now(),
	}, nil
}

// teardownLocked releases all three handles. Callers hold m.mu.
func (m *Manager) teardownLocked() {
	if m.current == nil {
		return
	}
	if m.current.Page != nil {
		_ = m.current.Page.Close()
	}
	if m.current.Browser != nil {
		_ = m.current.Browser.Close()
	}
	m.current = nil
}
