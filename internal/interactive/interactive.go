package interactive

import (
	"context"
	"fmt"
	"io"
	"sync"

	"castplay.app/castplay/internal/screeninterfaces"
	"castplay.app/castplay/internal/usecase"
	"castplay.app/castplay/internal/viewmodel"
)

// LineScreen prints status changes and toasts as plain lines. It backs the
// non-interactive mode.
type LineScreen struct {
	Out         io.Writer
	exitCTXfunc context.CancelFunc
	lastAction  string
	mu          sync.Mutex
}

var (
	_ screeninterfaces.Screen = (*LineScreen)(nil)
	_ screeninterfaces.Screen = (*CastScreen)(nil)
)

// NewLineScreen writes to out and calls ctxCancel from Fini.
func NewLineScreen(out io.Writer, ctxCancel context.CancelFunc) *LineScreen {
	return &LineScreen{Out: out, exitCTXfunc: ctxCancel}
}

// EmitMsg prints inputtext unless it repeats the previous line.
func (p *LineScreen) EmitMsg(inputtext string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if inputtext == p.lastAction {
		return
	}
	p.lastAction = inputtext
	_, _ = fmt.Fprintln(p.Out, inputtext)
}

// Fini ends the run.
func (p *LineScreen) Fini() {
	if p.exitCTXfunc != nil {
		p.exitCTXfunc()
	}
}

// Follow mirrors vm onto scr until the first send outcome or a connection
// error, then closes scr. It returns whether the link was sent.
func Follow(ctx context.Context, vm viewmodel.ViewModel, scr screeninterfaces.Screen) bool {
	changes, cancel := vm.Subscribe()
	defer cancel()
	defer screeninterfaces.Close(scr)

	for {
		status := vm.Status()
		screeninterfaces.Emit(scr, status)
		if msg, ok := vm.Toast(); ok {
			vm.ClearToast()
			screeninterfaces.Emit(scr, msg)
		}

		switch status {
		case usecase.StatusSent:
			return true
		case usecase.StatusSendFailed, usecase.StatusConnectingFailed:
			return false
		}

		select {
		case <-ctx.Done():
			return false
		case <-changes:
		}
	}
}
