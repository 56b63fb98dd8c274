package interactive

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"

	"castplay.app/castplay/devices"
	"castplay.app/castplay/internal/usecase"
)

type fakeVM struct {
	mu      sync.Mutex
	status  string
	toast   string
	cleared int
	ch      chan struct{}
}

func newFakeVM(status string) *fakeVM {
	return &fakeVM{status: status, ch: make(chan struct{}, 1)}
}

func (f *fakeVM) Status() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

func (f *fakeVM) Toast() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.toast, f.toast != ""
}

func (f *fakeVM) ClearToast() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.toast = ""
	f.cleared++
}

func (f *fakeVM) Subscribe() (<-chan struct{}, func()) { return f.ch, func() {} }

func (f *fakeVM) set(status, toast string) {
	f.mu.Lock()
	f.status, f.toast = status, toast
	f.mu.Unlock()
	select {
	case f.ch <- struct{}{}:
	default:
	}
}

func simScreen(t *testing.T, vm *fakeVM) (*CastScreen, tcell.SimulationScreen) {
	t.Helper()
	sim := tcell.NewSimulationScreen("UTF-8")
	if err := sim.Init(); err != nil {
		t.Fatalf("sim.Init() error: %v", err)
	}
	sim.SetSize(80, 24)
	p := newCastScreen(sim, vm, nil)
	t.Cleanup(p.Fini)
	return p, sim
}

func row(sim tcell.SimulationScreen, y int) string {
	cells, w, _ := sim.GetContents()
	var b strings.Builder
	for _, c := range cells[y*w : (y+1)*w] {
		if len(c.Runes) == 0 {
			b.WriteRune(' ')
			continue
		}
		b.WriteString(string(c.Runes))
	}
	return strings.TrimSpace(b.String())
}

func TestDrawLayout(t *testing.T) {
	p, sim := simScreen(t, newFakeVM(usecase.StatusDefault))
	p.draw()

	if got := row(sim, 10); got != buttonLabel {
		t.Fatalf("button row = %q, want %q", got, buttonLabel)
	}
	if got := row(sim, 12); got != usecase.StatusDefault {
		t.Fatalf("status row = %q, want %q", got, usecase.StatusDefault)
	}
	if got := row(sim, 14); got != "" {
		t.Fatalf("toast row = %q, want empty", got)
	}
}

func TestToastShownOnceAndExpires(t *testing.T) {
	vm := newFakeVM(usecase.StatusSent)
	vm.toast = "Sent to TV!"
	p, sim := simScreen(t, vm)

	p.takeToast()
	p.draw()
	if got := row(sim, 14); got != "Sent to TV!" {
		t.Fatalf("toast row = %q, want %q", got, "Sent to TV!")
	}
	if vm.cleared != 1 {
		t.Fatalf("ClearToast calls = %d, want 1", vm.cleared)
	}

	p.takeToast()
	if vm.cleared != 1 {
		t.Fatalf("ClearToast called again without a new toast")
	}

	p.expireToast(0)
	p.draw()
	if got := row(sim, 14); got == "" {
		t.Fatal("stale expiry removed the current toast")
	}

	p.expireToast(p.toastGen)
	p.draw()
	if got := row(sim, 14); got != "" {
		t.Fatalf("toast row = %q after expiry, want empty", got)
	}
}

func TestHandleKeyEvent(t *testing.T) {
	p, _ := simScreen(t, newFakeVM(usecase.StatusDefault))
	p.MediaURL = "https://example.com/v.mp4"

	stopped := make(chan struct{})
	p.Stop = func() { close(stopped) }

	var opened string
	orig := openURL
	openURL = func(u string) error { opened = u; return nil }
	t.Cleanup(func() { openURL = orig })

	if p.HandleKeyEvent(tcell.NewEventKey(tcell.KeyRune, 's', tcell.ModNone)) {
		t.Fatal("s closed the screen")
	}
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("s did not stop casting")
	}

	p.HandleKeyEvent(tcell.NewEventKey(tcell.KeyRune, 'o', tcell.ModNone))
	if opened != p.MediaURL {
		t.Fatalf("opened %q, want %q", opened, p.MediaURL)
	}

	var canceled bool
	p.exitCTXfunc = func() { canceled = true }
	if !p.HandleKeyEvent(tcell.NewEventKey(tcell.KeyEscape, 0, tcell.ModNone)) || !canceled {
		t.Fatal("ESC did not close the screen")
	}
}

func TestChooseDeviceStartsSessionRateLimited(t *testing.T) {
	p, _ := simScreen(t, newFakeVM(usecase.StatusDefault))
	tv := devices.Device{Name: "Living Room TV"}

	var chooserCalls int
	p.Devices = func() []devices.Device { return []devices.Device{tv} }
	p.Choose = func(devs []devices.Device) (devices.Device, bool, error) {
		chooserCalls++
		return devs[0], true, nil
	}
	started := make(chan devices.Device, 2)
	p.Start = func(d devices.Device) { started <- d }

	p.HandleKeyEvent(tcell.NewEventKey(tcell.KeyEnter, 0, tcell.ModNone))
	p.HandleKeyEvent(tcell.NewEventKey(tcell.KeyRune, 'c', tcell.ModNone))

	if chooserCalls != 1 {
		t.Fatalf("chooser shown %d times, want 1", chooserCalls)
	}
	select {
	case d := <-started:
		if d != tv {
			t.Fatalf("started %v, want %v", d, tv)
		}
	case <-time.After(time.Second):
		t.Fatal("no session started")
	}
}

func TestChooseDeviceWithoutDevices(t *testing.T) {
	p, sim := simScreen(t, newFakeVM(usecase.StatusDefault))
	p.Devices = func() []devices.Device { return nil }
	p.Choose = func([]devices.Device) (devices.Device, bool, error) {
		t.Fatal("chooser shown without devices")
		return devices.Device{}, false, nil
	}

	p.chooseDevice()
	if got := row(sim, 22); got != "No cast devices found yet" {
		t.Fatalf("notice row = %q", got)
	}
}

func TestFollowStopsOnOutcome(t *testing.T) {
	tests := []struct {
		name   string
		status string
		toast  string
		want   bool
	}{
		{name: "sent", status: usecase.StatusSent, toast: "Sent to TV!", want: true},
		{name: "send failed", status: usecase.StatusSendFailed, toast: "Could not send to TV!"},
		{name: "connection error", status: usecase.StatusConnectingFailed, toast: usecase.StatusConnectingFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vm := newFakeVM("Connecting to TV")
			var out bytes.Buffer
			var closed bool
			scr := NewLineScreen(&out, func() { closed = true })

			done := make(chan bool, 1)
			go func() { done <- Follow(context.Background(), vm, scr) }()

			vm.set(tt.status, tt.toast)

			select {
			case got := <-done:
				if got != tt.want {
					t.Fatalf("Follow() = %t, want %t", got, tt.want)
				}
			case <-time.After(time.Second):
				t.Fatal("Follow did not return")
			}

			if !closed {
				t.Fatal("screen not closed")
			}
			lines := strings.Split(strings.TrimSpace(out.String()), "\n")
			if !strings.Contains(out.String(), tt.status) || lines[len(lines)-1] != tt.toast {
				t.Fatalf("output = %q", out.String())
			}
		})
	}
}

func TestFollowStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out bytes.Buffer
	if Follow(ctx, newFakeVM(usecase.StatusDefault), NewLineScreen(&out, nil)) {
		t.Fatal("Follow() = true after cancel")
	}
	if strings.TrimSpace(out.String()) != usecase.StatusDefault {
		t.Fatalf("output = %q", out.String())
	}
}
