package viewmodel

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"castplay.app/castplay/devices"
	"castplay.app/castplay/internal/usecase"
	"castplay.app/castplay/session"
)

func TestClearToastLogs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	m := session.NewManager(session.ClientFactoryFunc(func(string) (session.Client, error) {
		return nil, devices.ErrDeviceNotAvailable
	}))
	cast := usecase.NewCast(ctx, m, usecase.Options{})
	defer func() {
		cancel()
		_ = cast.Close()
	}()

	var buf bytes.Buffer
	vm := NewCastPlay(cast)
	vm.LogOutput = &buf

	if vm.Status() != usecase.StatusDefault {
		t.Fatalf("Status() = %q, want %q", vm.Status(), usecase.StatusDefault)
	}

	// A failed start raises the connection error toast.
	if err := m.StartSession(ctx, devices.Device{Name: "TV", Addr: "http://192.0.2.1:8009"}); err == nil {
		t.Fatal("StartSession() expected error")
	}
	msg, ok := vm.Toast()
	if !ok || msg != usecase.StatusConnectingFailed {
		t.Fatalf("Toast() = %q, %t, want %q, true", msg, ok, usecase.StatusConnectingFailed)
	}

	vm.ClearToast()
	if _, ok := vm.Toast(); ok {
		t.Fatal("Toast() still set after ClearToast")
	}
	if !strings.Contains(buf.String(), "toast message cleared") {
		t.Fatalf("log = %q, want toast message cleared", buf.String())
	}
}
