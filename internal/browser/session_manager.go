package browser

import (
	"context"
	"fmt"
	"sync"

	"universal-browser-mcp/internal/config"

	"github.com/sirupsen/logrus"
)

type lifecycleState int

const (
	stateUninitialized lifecycleState = iota
	stateRunning
	stateTerminated
)

func (s lifecycleState) String() string {
	switch s {
	case stateUninitialized:
		return "uninitialized"
	case stateRunning:
		return "running"
	case stateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("lifecycleState(%d)", int(s))
	}
}

// BrowserInfo summarizes the session for get_browser_info.
type BrowserInfo struct {
	Engine      config.EngineType `json:"browser_type"`
	Headless    bool              `json:"headless"`
	Pages       []string          `json:"pages"`
	CurrentPage string            `json:"current_page"`
}

// SessionManager owns the single browser engine, its shared context and the
// page registry. The engine is launched lazily by Start and torn down by
// Shutdown; all methods are safe for concurrent use.
type SessionManager struct {
	cfg      config.BrowserConfig
	launcher Launcher
	log      logrus.FieldLogger

	mu       sync.RWMutex
	state    lifecycleState
	engine   Engine
	running  config.EngineType
	registry *Registry
}

func NewSessionManager(cfg config.BrowserConfig, launcher Launcher, log logrus.FieldLogger) *SessionManager {
	return &SessionManager{
		cfg:      cfg,
		launcher: launcher,
		log:      log,
		registry: NewRegistry(),
	}
}

// Start launches the engine and opens the default page unless already
// running. A failed launch leaves the manager uninitialized so the next call
// retries from scratch.
func (m *SessionManager) Start(ctx context.Context) error {
	m.mu.RLock()
	state := m.state
	m.mu.RUnlock()
	if state == stateRunning {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case stateRunning:
		return nil
	case stateTerminated:
		return ErrShutdown
	}

	engineType, known := config.ResolveEngine(m.cfg.Engine)
	if !known {
		m.log.WithField("engine", m.cfg.Engine).Warnf("unrecognized browser type, using %s", config.DefaultEngine)
	}

	mode := "headless"
	if !m.cfg.IsHeadless() {
		mode = "headful"
	}
	m.log.WithFields(logrus.Fields{
		"engine": engineType,
		"mode":   mode,
		"args":   m.cfg.LaunchArgs(),
	}).Info("launching browser")

	engine, err := m.launcher.Launch(ctx, NewLaunchOptions(m.cfg, engineType))
	if err != nil {
		return fmt.Errorf("launch %s: %w", engineType, err)
	}

	page, err := engine.NewPage(ctx)
	if err != nil {
		if closeErr := engine.Close(); closeErr != nil {
			m.log.WithError(closeErr).Warn("cleanup after failed page creation")
		}
		return fmt.Errorf("open default page: %w", err)
	}

	registry := NewRegistry()
	if err := registry.Add(DefaultPageID, page); err != nil {
		_ = engine.Close()
		return err
	}

	m.engine = engine
	m.running = engineType
	m.registry = registry
	m.state = stateRunning
	m.log.WithField("engine", engineType).Info("browser initialized successfully")
	return nil
}

// IsRunning reports whether the engine has been launched and not shut down.
func (m *SessionManager) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state == stateRunning
}

// Page resolves key (or the active page when key is empty).
func (m *SessionManager) Page(key string) (Page, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.registry.Resolve(key)
}

// NewPage opens a page in the shared context under key and makes it active.
// The key is checked before any page is opened.
func (m *SessionManager) NewPage(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != stateRunning {
		return m.notRunningErr()
	}
	if m.registry.Has(key) {
		return fmt.Errorf("%w: %s", ErrPageExists, key)
	}

	page, err := m.engine.NewPage(ctx)
	if err != nil {
		return fmt.Errorf("open page %s: %w", key, err)
	}
	if err := m.registry.Add(key, page); err != nil {
		_ = page.Close()
		return err
	}
	m.log.WithField("page_id", key).Debug("page created")
	return nil
}

// SwitchPage makes key the active page.
func (m *SessionManager) SwitchPage(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.registry.Switch(key)
}

// Pages lists every registered page with its current URL.
func (m *SessionManager) Pages() []PageInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.registry.List()
}

// ActivePage returns the active page key (empty before launch).
func (m *SessionManager) ActivePage() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.registry.Active()
}

// Info reports the engine, headless flag, page keys and active key.
func (m *SessionManager) Info() BrowserInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	engine := m.running
	if m.state != stateRunning {
		engine, _ = config.ResolveEngine(m.cfg.Engine)
	}
	return BrowserInfo{
		Engine:      engine,
		Headless:    m.cfg.IsHeadless(),
		Pages:       m.registry.Keys(),
		CurrentPage: m.registry.Active(),
	}
}

// Shutdown closes every page and the engine. It is terminal and safe to call
// more than once, including before any launch.
func (m *SessionManager) Shutdown(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == stateTerminated {
		return nil
	}
	prev := m.state
	m.state = stateTerminated
	if prev != stateRunning {
		return nil
	}

	for _, page := range m.registry.pagesForClose() {
		_ = page.Close()
	}
	err := m.engine.Close()
	m.engine = nil
	m.log.Info("browser shutdown complete")
	if err != nil {
		return fmt.Errorf("close engine: %w", err)
	}
	return nil
}

func (m *SessionManager) notRunningErr() error {
	if m.state == stateTerminated {
		return ErrShutdown
	}
	return fmt.Errorf("browser is %s", m.state)
}
