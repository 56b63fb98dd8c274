// Package usecase turns cast session callbacks into the status line and toast
// message shown to the user.
package usecase

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"castplay.app/castplay/castprotocol"
	"castplay.app/castplay/internal/observable"
	"castplay.app/castplay/session"
)

// VideoLink is the media pushed to the receiver when nothing else is configured.
const VideoLink = "https://videolink-test.mycdn.me/?pct=1&sig=6QNOvp0y3BE&ct=0&clientType=45&mid=193241622673&type=5"

const (
	StatusDefault          = "Waiting for a cast device"
	StatusConnectingFailed = "Connection error"
	StatusSendFailed       = "Send failed"
	StatusSent             = "Sent!"

	DefaultMediaTitle  = "Video by link"
	DefaultContentType = "video/mp4"

	DefaultConnectingTick = 300 * time.Millisecond
	DefaultRevertDelay    = 2 * time.Second
)

// SessionManager is what the use-case needs from the session layer.
type SessionManager interface {
	AddListener(l session.Listener)
	RemoveListener(l session.Listener)
	AddCastStateListener(fn func(session.CastState))
	CurrentSession() session.Session
}

var _ SessionManager = (*session.Manager)(nil)

// Options tune the media payload and the status timings.
type Options struct {
	MediaURL       string
	MediaTitle     string
	ContentType    string
	ConnectingTick time.Duration
	RevertDelay    time.Duration
	LogOutput      io.Writer
}

func (o *Options) setDefaults() {
	if o.MediaURL == "" {
		o.MediaURL = VideoLink
	}
	if o.MediaTitle == "" {
		o.MediaTitle = DefaultMediaTitle
	}
	if o.ContentType == "" {
		o.ContentType = DefaultContentType
	}
	if o.ConnectingTick <= 0 {
		o.ConnectingTick = DefaultConnectingTick
	}
	if o.RevertDelay <= 0 {
		o.RevertDelay = DefaultRevertDelay
	}
}

// Cast listens to a session manager and exposes two observable values: the
// connection status and an optional one-shot toast. Delayed work runs on the
// scope passed to NewCast and stops when that scope is cancelled.
type Cast struct {
	manager SessionManager
	opts    Options
	scope   context.Context
	tasks   errgroup.Group

	status *observable.Value[string]
	toast  *observable.Value[string]

	connecting atomic.Bool
	// startGen counts session starts; a pending revert only fires if no
	// start happened after it was scheduled.
	startGen atomic.Uint64

	animMu sync.Mutex
	anim   *animation

	logger   zerolog.Logger
	listener *session.ListenerFuncs
}

// animation is one run of the "Connecting to ..." ticker.
type animation struct {
	stop      chan struct{}
	done      chan struct{}
	connected bool // written before stop is closed
}

// NewCast registers the use-case with manager. scope bounds the lifetime of
// the animation and the delayed status revert.
func NewCast(scope context.Context, manager SessionManager, opts Options) *Cast {
	opts.setDefaults()

	u := &Cast{
		manager: manager,
		opts:    opts,
		scope:   scope,
		status:  observable.New(StatusDefault),
		toast:   observable.New(""),
		logger:  zerolog.Nop(),
	}
	if opts.LogOutput != nil {
		u.logger = zerolog.New(opts.LogOutput).With().Timestamp().Str("component", "cast").Logger()
	}

	u.setCastStateListener()
	u.setCastSessionListener()
	return u
}

// Status returns the current status line.
func (u *Cast) Status() string { return u.status.Get() }

// Toast returns the pending toast message, if any.
func (u *Cast) Toast() (string, bool) {
	msg := u.toast.Get()
	return msg, msg != ""
}

// IsConnecting reports whether the connecting animation is active.
func (u *Cast) IsConnecting() bool { return u.connecting.Load() }

// Subscribe signals on every status or toast change until cancel is called.
func (u *Cast) Subscribe() (<-chan struct{}, func()) {
	out := make(chan struct{}, 1)
	statusCh, cancelStatus := u.status.Subscribe()
	toastCh, cancelToast := u.toast.Subscribe()
	quit := make(chan struct{})
	var wg sync.WaitGroup

	forward := func(in <-chan struct{}) {
		defer wg.Done()
		for {
			select {
			case <-quit:
				return
			case _, ok := <-in:
				if !ok {
					return
				}
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}

	wg.Add(2)
	go forward(statusCh)
	go forward(toastCh)

	var once sync.Once
	return out, func() {
		once.Do(func() {
			close(quit)
			cancelStatus()
			cancelToast()
			wg.Wait()
			close(out)
		})
	}
}

// ClearToast drops the pending toast so it is shown only once.
func (u *Cast) ClearToast() {
	u.toast.Set("")
}

// Close unregisters from the manager and waits for scheduled work to finish.
// Pending reverts are abandoned only when the scope is cancelled.
func (u *Cast) Close() error {
	u.manager.RemoveListener(u.listener)
	u.stopConnecting(false)
	return u.tasks.Wait()
}

func (u *Cast) setStatus(s string) {
	u.status.Set(s)
}

func (u *Cast) setToastMessage(s string) {
	u.toast.Set(s)
}

func (u *Cast) setCastStateListener() {
	u.manager.AddCastStateListener(func(state session.CastState) {
		if state == session.Connected {
			u.logger.Debug().Str("Method", "castState").Msg("cast state connected")
		}
	})
}

func (u *Cast) setCastSessionListener() {
	u.listener = &session.ListenerFuncs{
		Starting: func(s session.Session) {
			u.startGen.Add(1)
			u.setConnectingStatusWithDelay(s)
			u.logger.Debug().Str("Method", "onSessionStarting").Msg("")
		},
		Started: func(s session.Session, sessionID string) {
			u.stopConnecting(true)
			name := s.Device().FriendlyName
			if u.sendLinkToDevice() {
				u.setStatus(StatusSent)
				u.setToastMessage("Sent to " + name + "!")
			} else {
				u.setStatus(StatusSendFailed)
				u.setToastMessage("Could not send to " + name + "!")
			}
			u.logger.Debug().Str("Method", "onSessionStarted").Str("Session", sessionID).Msg("")
		},
		StartFailed: func(s session.Session, err error) {
			u.stopConnecting(false)
			u.setStatus(StatusConnectingFailed)
			u.setToastMessage(StatusConnectingFailed)
			u.setDefaultStatusWithDelay()
			u.logger.Debug().Str("Method", "onSessionStartFailed").Err(err).Msg("")
		},
		Ending: func(s session.Session) {
			u.stopConnecting(false)
			u.logger.Debug().Str("Method", "onSessionEnding").Msg("")
		},
		Ended: func(s session.Session, err error) {
			u.stopConnecting(false)
			u.setStatus(StatusDefault)
			u.logger.Debug().Str("Method", "onSessionEnded").AnErr("Reason", err).Msg("")
		},
		Resuming: func(s session.Session, sessionID string) {
			u.stopConnecting(false)
			u.logger.Debug().Str("Method", "onSessionResuming").Str("Session", sessionID).Msg("")
		},
		Resumed: func(s session.Session, wasSuspended bool) {
			u.stopConnecting(false)
			u.logger.Debug().Str("Method", "onSessionResumed").Bool("WasSuspended", wasSuspended).Msg("")
		},
		ResumeFailed: func(s session.Session, err error) {
			u.stopConnecting(false)
			u.logger.Debug().Str("Method", "onSessionResumeFailed").Err(err).Msg("")
		},
		Suspended: func(s session.Session, reason session.SuspendReason) {
			u.stopConnecting(false)
			u.logger.Debug().Str("Method", "onSessionSuspended").Str("Reason", reason.String()).Msg("")
		},
	}
	u.manager.AddListener(u.listener)
	u.logger.Debug().Str("Method", "setCastSessionListener").Msg("added session listener")
}

// sendLinkToDevice loads the configured media on the current session and
// reports whether the receiver accepted it.
func (u *Cast) sendLinkToDevice() bool {
	u.logger.Debug().Str("Method", "sendLinkToDevice").Msg("send started")

	s := u.manager.CurrentSession()
	if s == nil || !s.IsConnected() {
		u.logger.Error().Str("Method", "sendLinkToDevice").Msg("no active session or device not connected")
		return false
	}

	dev := s.Device()
	u.logger.Debug().Str("Method", "sendLinkToDevice").Str("Model", dev.ModelName).Str("Device", dev.FriendlyName).Msg("")

	media := castprotocol.MediaInfo{
		ContentID:   u.opts.MediaURL,
		ContentType: u.opts.ContentType,
		StreamType:  castprotocol.StreamTypeBuffered,
		Title:       u.opts.MediaTitle,
	}

	if err := s.LoadMedia(u.scope, media, castprotocol.DefaultLoadOptions()); err != nil {
		u.logger.Error().Str("Method", "sendLinkToDevice").Err(err).Msg("send failed")
		return false
	}

	u.logger.Debug().Str("Method", "sendLinkToDevice").Msg("send success")
	return true
}

// setDefaultStatusWithDelay reverts the status after RevertDelay unless a new
// session start began in the meantime.
func (u *Cast) setDefaultStatusWithDelay() {
	gen := u.startGen.Load()
	u.tasks.Go(func() error {
		t := time.NewTimer(u.opts.RevertDelay)
		defer t.Stop()

		select {
		case <-u.scope.Done():
		case <-t.C:
			if u.startGen.Load() == gen {
				u.setStatus(StatusDefault)
			}
		}
		return nil
	})
}

// setConnectingStatusWithDelay starts the "Connecting to <device>" ticker.
// It runs until stopConnecting is called or the scope ends.
func (u *Cast) setConnectingStatusWithDelay(s session.Session) {
	u.stopConnecting(false)

	name := s.Device().FriendlyName
	a := &animation{stop: make(chan struct{}), done: make(chan struct{})}

	u.animMu.Lock()
	u.anim = a
	u.animMu.Unlock()
	u.connecting.Store(true)

	frames := []string{
		"Connecting to " + name,
		"Connecting to " + name + ".",
		"Connecting to " + name + "..",
		"Connecting to " + name + "...",
	}

	u.tasks.Go(func() error {
		defer close(a.done)

		t := time.NewTicker(u.opts.ConnectingTick)
		defer t.Stop()

		for i := 0; ; i++ {
			u.setStatus(frames[i%len(frames)])

			select {
			case <-u.scope.Done():
				return nil
			case <-a.stop:
				if a.connected {
					u.setStatus("Connected to " + name)
				}
				return nil
			case <-t.C:
			}
		}
	})
}

// stopConnecting clears the connecting flag and waits for the animation to
// exit so that no stale frame overwrites what the caller sets next.
func (u *Cast) stopConnecting(connected bool) {
	u.connecting.Store(false)

	u.animMu.Lock()
	a := u.anim
	u.anim = nil
	u.animMu.Unlock()

	if a == nil {
		return
	}

	a.connected = connected
	close(a.stop)
	<-a.done
}
