package interactive

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"
	"github.com/skratchdot/open-golang/open"
	"golang.org/x/time/rate"

	"castplay.app/castplay/devices"
	"castplay.app/castplay/internal/viewmodel"
)

const (
	buttonLabel   = "[ Send link ]"
	toastDuration = 2 * time.Second
	chooserEvery  = 3 * time.Second
)

// Swapped in tests.
var openURL = open.Run

// toastExpiredEvent hides the toast line if no newer toast replaced it.
type toastExpiredEvent struct {
	tcell.EventTime
	gen int
}

// CastScreen is the interactive status screen: a send button, the status
// line and a toast line.
type CastScreen struct {
	Current tcell.Screen
	VM      viewmodel.ViewModel

	// Devices returns the receivers the chooser offers.
	Devices func() []devices.Device
	// Choose shows the device chooser while the screen is suspended.
	Choose func([]devices.Device) (devices.Device, bool, error)
	// Start and Stop run on their own goroutine.
	Start func(devices.Device)
	Stop  func()

	MediaURL string

	exitCTXfunc context.CancelFunc
	limiter     *rate.Limiter
	finiOnce    sync.Once

	mu       sync.RWMutex
	toast    string
	toastGen int
	notice   string
}

// InitCastScreen creates the status screen. ctxCancel is called on exit.
func InitCastScreen(vm viewmodel.ViewModel, ctxCancel context.CancelFunc) (*CastScreen, error) {
	s, err := tcell.NewScreen()
	if err != nil {
		return nil, fmt.Errorf("cast interactive: %w", err)
	}

	return newCastScreen(s, vm, ctxCancel), nil
}

func newCastScreen(s tcell.Screen, vm viewmodel.ViewModel, ctxCancel context.CancelFunc) *CastScreen {
	return &CastScreen{
		Current:     s,
		VM:          vm,
		exitCTXfunc: ctxCancel,
		limiter:     rate.NewLimiter(rate.Every(chooserEvery), 1),
	}
}

func (p *CastScreen) emitStr(x, y int, style tcell.Style, str string) {
	s := p.Current
	for _, c := range str {
		var comb []rune
		w := runewidth.RuneWidth(c)
		if w == 0 {
			comb = []rune{c}
			c = ' '
			w = 1
		}
		s.SetContent(x, y, c, comb, style)
		x += w
	}
}

func (p *CastScreen) emitCentered(y int, style tcell.Style, str string) {
	w, _ := p.Current.Size()
	p.emitStr(w/2-runewidth.StringWidth(str)/2, y, style, str)
}

// EmitMsg shows a one-line notice under the key hints.
func (p *CastScreen) EmitMsg(inputtext string) {
	p.mu.Lock()
	p.notice = inputtext
	p.mu.Unlock()
	p.draw()
}

func (p *CastScreen) draw() {
	s := p.Current
	_, h := s.Size()

	p.mu.RLock()
	toast, notice := p.toast, p.notice
	p.mu.RUnlock()

	status := p.VM.Status()

	buttonStyle := tcell.StyleDefault.
		Background(tcell.ColorWhite).
		Foreground(tcell.ColorBlack).Bold(true)
	boldStyle := tcell.StyleDefault.
		Background(tcell.ColorBlack).
		Foreground(tcell.ColorWhite).Bold(true)
	blinkStyle := tcell.StyleDefault.
		Background(tcell.ColorBlack).
		Foreground(tcell.ColorWhite).Blink(true)
	toastStyle := tcell.StyleDefault.
		Background(tcell.ColorDarkGray).
		Foreground(tcell.ColorWhite)

	s.Clear()

	p.emitStr(1, 1, tcell.StyleDefault, "Press ESC to exit.")
	p.emitCentered(h/2-2, buttonStyle, buttonLabel)
	if strings.HasPrefix(status, "Connecting to") {
		p.emitCentered(h/2, blinkStyle, status)
	} else {
		p.emitCentered(h/2, boldStyle, status)
	}
	if toast != "" {
		p.emitCentered(h/2+2, toastStyle, " "+toast+" ")
	}

	p.emitCentered(h/2+4, tcell.StyleDefault, `"Enter" or "c" (Choose device)`)
	p.emitCentered(h/2+6, tcell.StyleDefault, `"s" (Stop casting)`)
	p.emitCentered(h/2+8, tcell.StyleDefault, `"o" (Open link in browser)`)
	if notice != "" {
		p.emitCentered(h/2+10, tcell.StyleDefault, notice)
	}
	s.Show()
}

// takeToast moves a pending toast from the view-model onto the screen and
// arms its dismissal.
func (p *CastScreen) takeToast() {
	msg, ok := p.VM.Toast()
	if !ok {
		return
	}
	p.VM.ClearToast()

	p.mu.Lock()
	p.toast = msg
	p.toastGen++
	gen := p.toastGen
	p.mu.Unlock()

	time.AfterFunc(toastDuration, func() {
		ev := &toastExpiredEvent{gen: gen}
		ev.SetEventNow()
		_ = p.Current.PostEvent(ev)
	})
}

func (p *CastScreen) expireToast(gen int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if gen == p.toastGen {
		p.toast = ""
	}
}

// InterInit runs the screen until ESC is pressed or ctx is done.
func (p *CastScreen) InterInit(ctx context.Context) error {
	s := p.Current
	if err := s.Init(); err != nil {
		return fmt.Errorf("cast interactive: %w", err)
	}

	defStyle := tcell.StyleDefault.
		Background(tcell.ColorBlack).
		Foreground(tcell.ColorWhite)
	s.SetStyle(defStyle)

	changes, cancel := p.VM.Subscribe()
	defer cancel()

	go func() {
		for {
			select {
			case <-ctx.Done():
				p.Fini()
				return
			case _, ok := <-changes:
				if !ok {
					return
				}
				_ = s.PostEvent(tcell.NewEventInterrupt(nil))
			}
		}
	}()

	p.takeToast()
	p.draw()

	for {
		switch ev := s.PollEvent().(type) {
		case nil:
			return nil
		case *tcell.EventResize:
			s.Sync()
			p.draw()
		case *tcell.EventInterrupt:
			p.takeToast()
			p.draw()
		case *toastExpiredEvent:
			p.expireToast(ev.gen)
			p.draw()
		case *tcell.EventKey:
			if p.HandleKeyEvent(ev) {
				return nil
			}
		}
	}
}

// HandleKeyEvent reacts to a key press and reports whether the screen was
// closed.
func (p *CastScreen) HandleKeyEvent(ev *tcell.EventKey) bool {
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		p.Fini()
		return true
	case tcell.KeyEnter:
		p.chooseDevice()
		return false
	}

	switch ev.Rune() {
	case 'c':
		p.chooseDevice()
	case 's':
		if p.Stop != nil {
			go p.Stop()
		}
	case 'o':
		if err := openURL(p.MediaURL); err != nil {
			p.EmitMsg("Could not open the link")
		}
	}
	return false
}

// chooseDevice suspends the screen, shows the chooser and starts a session
// for the picked device.
func (p *CastScreen) chooseDevice() {
	if p.Choose == nil || p.Devices == nil {
		return
	}
	if !p.limiter.Allow() {
		return
	}

	devs := p.Devices()
	if len(devs) == 0 {
		p.EmitMsg("No cast devices found yet")
		return
	}

	s := p.Current
	if err := s.Suspend(); err != nil {
		p.EmitMsg(err.Error())
		return
	}
	dev, ok, err := p.Choose(devs)
	if rerr := s.Resume(); rerr != nil {
		p.EmitMsg(rerr.Error())
		return
	}

	switch {
	case err != nil:
		p.EmitMsg(err.Error())
	case ok && p.Start != nil:
		p.EmitMsg("")
		go p.Start(dev)
	default:
		p.draw()
	}
}

// Fini closes the screen and cancels the run context.
func (p *CastScreen) Fini() {
	p.finiOnce.Do(func() {
		p.Current.Fini()
		if p.exitCTXfunc != nil {
			p.exitCTXfunc()
		}
	})
}
