// Package session owns the lifecycle of cast sessions and reports it to
// registered listeners.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"castplay.app/castplay/castprotocol"
	"castplay.app/castplay/devices"
)

var (
	ErrNoSession          = errors.New("session: no active session")
	ErrNoSuspendedSession = errors.New("session: no suspended session")
)

// Client is the cast transport a session drives.
type Client interface {
	Connect() error
	Load(ctx context.Context, media castprotocol.MediaInfo, opts castprotocol.LoadOptions) error
	GetStatus() (*castprotocol.CastStatus, error)
	Close(stopMedia bool) error
	IsConnected() bool
}

var _ Client = (*castprotocol.CastClient)(nil)

// ClientFactory creates a Client for a device address.
type ClientFactory interface {
	NewCastClient(deviceAddr string) (Client, error)
}

// ClientFactoryFunc adapts a function to ClientFactory.
type ClientFactoryFunc func(deviceAddr string) (Client, error)

func (f ClientFactoryFunc) NewCastClient(deviceAddr string) (Client, error) {
	return f(deviceAddr)
}

// CastClientFactory builds castprotocol clients that log to LogOutput.
type CastClientFactory struct {
	LogOutput io.Writer
}

func (f CastClientFactory) NewCastClient(deviceAddr string) (Client, error) {
	c, err := castprotocol.NewCastClient(deviceAddr)
	if err != nil {
		return nil, err
	}
	c.LogOutput = f.LogOutput
	return c, nil
}

// Manager starts, monitors, resumes and ends cast sessions. At most one
// session is current at any time.
type Manager struct {
	factory ClientFactory

	Logger      zerolog.Logger
	LogOutput   io.Writer
	initLogOnce sync.Once

	// dispatchMu serialises listener callbacks.
	dispatchMu sync.Mutex
	// lifecycleMu serialises start, end and resume so that a second start
	// waits for a pending connect instead of racing it for current.
	lifecycleMu sync.Mutex

	mu               sync.Mutex
	listeners        []Listener
	stateListeners   []func(CastState)
	current          *castSession
	state            CastState
	devicesAvailable int
}

// NewManager returns a Manager creating clients with factory.
func NewManager(factory ClientFactory) *Manager {
	return &Manager{
		factory: factory,
		Logger:  zerolog.Nop(),
		state:   NoDevicesAvailable,
	}
}

func (m *Manager) Log() *zerolog.Logger {
	if m.LogOutput != nil {
		m.initLogOnce.Do(func() {
			m.Logger = zerolog.New(m.LogOutput).With().Timestamp().Logger()
		})
	}
	return &m.Logger
}

// AddListener registers l for session callbacks.
func (m *Manager) AddListener(l Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, l)
}

// RemoveListener unregisters l.
func (m *Manager) RemoveListener(l Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, x := range m.listeners {
		if x == l {
			m.listeners = append(m.listeners[:i], m.listeners[i+1:]...)
			return
		}
	}
}

// AddCastStateListener registers fn for cast state changes.
func (m *Manager) AddCastStateListener(fn func(CastState)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stateListeners = append(m.stateListeners, fn)
}

// CastState returns the current cast state.
func (m *Manager) CastState() CastState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// CurrentSession returns the active session, or nil.
func (m *Manager) CurrentSession() Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil
	}
	return m.current
}

// SetDevicesAvailable records how many receivers discovery currently sees.
func (m *Manager) SetDevicesAvailable(n int) {
	m.mu.Lock()
	m.devicesAvailable = n
	idle := m.current == nil
	m.mu.Unlock()

	if idle {
		m.setState(m.idleState())
	}
}

func (m *Manager) idleState() CastState {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.devicesAvailable > 0 {
		return NotConnected
	}
	return NoDevicesAvailable
}

func (m *Manager) setState(s CastState) {
	m.mu.Lock()
	if m.state == s {
		m.mu.Unlock()
		return
	}
	m.state = s
	fns := append([]func(CastState){}, m.stateListeners...)
	m.mu.Unlock()

	m.Log().Debug().Str("Method", "setState").Str("State", s.String()).Msg("cast state changed")
	for _, fn := range fns {
		fn(s)
	}
}

func (m *Manager) dispatch(fn func(Listener)) {
	m.dispatchMu.Lock()
	defer m.dispatchMu.Unlock()

	m.mu.Lock()
	ls := append([]Listener{}, m.listeners...)
	m.mu.Unlock()

	for _, l := range ls {
		fn(l)
	}
}

// StartSession connects to dev, replacing any current session. Listeners see
// starting followed by started or start-failed. A call made while another
// start is still connecting waits for it and then replaces its session.
func (m *Manager) StartSession(ctx context.Context, dev devices.Device) error {
	m.lifecycleMu.Lock()
	defer m.lifecycleMu.Unlock()

	if m.CurrentSession() != nil {
		_ = m.endSession(false)
	}

	s := &castSession{device: CastDevice{
		FriendlyName: dev.Name,
		ModelName:    dev.Model,
		Addr:         dev.Addr,
		DeviceID:     dev.ID,
	}}

	m.Log().Debug().Str("Method", "StartSession").Str("Device", dev.Name).Str("Addr", dev.Addr).Msg("starting session")
	m.setState(Connecting)
	m.dispatch(func(l Listener) { l.OnSessionStarting(s) })

	client, err := m.connect(ctx, dev.Addr)
	if err != nil {
		m.Log().Error().Str("Method", "StartSession").Str("Device", dev.Name).Err(err).Msg("session start failed")
		m.setState(m.idleState())
		m.dispatch(func(l Listener) { l.OnSessionStartFailed(s, err) })
		return fmt.Errorf("start session: %w", err)
	}

	s.mu.Lock()
	s.client = client
	s.id = uuid.NewString()
	s.mu.Unlock()

	m.mu.Lock()
	m.current = s
	m.mu.Unlock()

	m.setState(Connected)
	m.dispatch(func(l Listener) { l.OnSessionStarted(s, s.ID()) })
	return nil
}

// connect creates and connects a client, giving up when ctx is done.
func (m *Manager) connect(ctx context.Context, addr string) (Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	client, err := m.factory.NewCastClient(addr)
	if err != nil {
		return nil, err
	}

	errCh := make(chan error, 1)
	go func() { errCh <- client.Connect() }()

	select {
	case err := <-errCh:
		if err != nil {
			return nil, err
		}
		return client, nil
	case <-ctx.Done():
		go func() {
			if <-errCh == nil {
				_ = client.Close(false)
			}
		}()
		return nil, ctx.Err()
	}
}

// EndSession ends the current session. stopCasting also stops playback on
// the receiver.
func (m *Manager) EndSession(stopCasting bool) error {
	m.lifecycleMu.Lock()
	defer m.lifecycleMu.Unlock()
	return m.endSession(stopCasting)
}

func (m *Manager) endSession(stopCasting bool) error {
	m.mu.Lock()
	s := m.current
	m.mu.Unlock()
	if s == nil {
		return ErrNoSession
	}

	m.dispatch(func(l Listener) { l.OnSessionEnding(s) })

	var err error
	if c := s.getClient(); c != nil {
		err = c.Close(stopCasting)
	}

	m.mu.Lock()
	if m.current == s {
		m.current = nil
	}
	m.mu.Unlock()

	m.Log().Debug().Str("Method", "EndSession").Str("Session", s.ID()).Bool("StopCasting", stopCasting).Msg("session ended")
	m.setState(m.idleState())
	m.dispatch(func(l Listener) { l.OnSessionEnded(s, err) })
	return err
}

// ResumeSession reconnects a suspended current session. When the receiver
// cannot be reached the session is dropped: listeners see resume-failed
// followed by ended.
func (m *Manager) ResumeSession(ctx context.Context) error {
	m.lifecycleMu.Lock()
	defer m.lifecycleMu.Unlock()
	return m.resumeSession(ctx)
}

func (m *Manager) resumeSession(ctx context.Context) error {
	m.mu.Lock()
	s := m.current
	m.mu.Unlock()
	if s == nil || !s.isSuspended() {
		return ErrNoSuspendedSession
	}

	m.setState(Connecting)
	m.dispatch(func(l Listener) { l.OnSessionResuming(s, s.ID()) })

	if old := s.getClient(); old != nil {
		_ = old.Close(false)
	}

	client, err := m.connect(ctx, s.device.Addr)
	if err != nil {
		m.mu.Lock()
		if m.current == s {
			m.current = nil
		}
		m.mu.Unlock()

		m.Log().Error().Str("Method", "ResumeSession").Err(err).Msg("resume failed")
		m.setState(m.idleState())
		m.dispatch(func(l Listener) { l.OnSessionResumeFailed(s, err) })
		m.dispatch(func(l Listener) { l.OnSessionEnded(s, err) })
		return fmt.Errorf("resume session: %w", err)
	}

	s.mu.Lock()
	s.client = client
	s.suspended = false
	s.mu.Unlock()

	m.setState(Connected)
	m.dispatch(func(l Listener) { l.OnSessionResumed(s, true) })
	return nil
}

// Monitor polls the current session every interval. A receiver that stops
// answering suspends the session, and the next tick tries to resume it. It
// returns when ctx is done.
func (m *Manager) Monitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.checkCurrent(ctx)
		}
	}
}

func (m *Manager) checkCurrent(ctx context.Context) {
	m.lifecycleMu.Lock()
	defer m.lifecycleMu.Unlock()

	m.mu.Lock()
	s := m.current
	m.mu.Unlock()
	if s == nil {
		return
	}

	if s.isSuspended() {
		if err := m.resumeSession(ctx); err != nil {
			m.Log().Debug().Str("Method", "Monitor").Str("Session", s.ID()).Err(err).Msg("session dropped")
		}
		return
	}

	c := s.getClient()
	if c == nil {
		return
	}
	_, err := c.GetStatus()
	if err == nil {
		return
	}

	reason := ReasonNetworkLost
	if errors.Is(err, castprotocol.ErrNotConnected) {
		reason = ReasonServiceDisconnected
	}

	s.mu.Lock()
	s.suspended = true
	s.mu.Unlock()

	m.Log().Debug().Str("Method", "Monitor").Str("Session", s.ID()).Str("Reason", reason.String()).Msg("session suspended")
	m.setState(NotConnected)
	m.dispatch(func(l Listener) { l.OnSessionSuspended(s, reason) })
}
