package devices

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/mdns"
)

func fakeMDNS(t *testing.T, entries ...*mdns.ServiceEntry) {
	t.Helper()

	origQuery := mdnsQuery
	origIfaces := activeIfaces
	t.Cleanup(func() {
		mdnsQuery = origQuery
		activeIfaces = origIfaces
	})

	activeIfaces = func() []net.Interface { return nil }
	mdnsQuery = func(params *mdns.QueryParam) error {
		if params.Service != googlecastService {
			t.Fatalf("mdns query service = %q, want %q", params.Service, googlecastService)
		}
		for _, e := range entries {
			params.Entries <- e
		}
		return nil
	}
}

func castEntry(name, ip string, port int, txt ...string) *mdns.ServiceEntry {
	return &mdns.ServiceEntry{
		Name:       name + "._googlecast._tcp.local.",
		AddrV4:     net.ParseIP(ip),
		Port:       port,
		InfoFields: txt,
	}
}

func TestDiscoverDecodesTXTRecords(t *testing.T) {
	fakeMDNS(t,
		castEntry("Chromecast-abc", "192.168.1.20", 8009, "id=abc", "md=Chromecast", "fn=Living Room TV", "ca=4101"),
		castEntry("Google-Home-xyz", "192.168.1.21", 8009, "id=xyz", "md=Google Home", "fn=Kitchen speaker", "ca=2052"),
	)

	d := NewDiscoverer()
	devs, err := d.Discover(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("Discover() err = %v", err)
	}

	if len(devs) != 2 {
		t.Fatalf("Discover() len = %d, want 2", len(devs))
	}

	// sorted by name
	kitchen, living := devs[0], devs[1]
	if kitchen.Name != "Kitchen speaker" || !kitchen.IsAudioOnly || kitchen.Model != "Google Home" {
		t.Fatalf("Discover()[0] = %+v, want audio-only Kitchen speaker", kitchen)
	}
	if living.Name != "Living Room TV" || living.IsAudioOnly || living.ID != "abc" {
		t.Fatalf("Discover()[1] = %+v, want Living Room TV", living)
	}
	if living.Addr != "http://192.168.1.20:8009" {
		t.Fatalf("Discover()[1].Addr = %q, want http://192.168.1.20:8009", living.Addr)
	}
}

func TestDiscoverIgnoresForeignServices(t *testing.T) {
	fakeMDNS(t,
		&mdns.ServiceEntry{Name: "printer._ipp._tcp.local.", AddrV4: net.ParseIP("192.168.1.9"), Port: 631},
		&mdns.ServiceEntry{Name: "noaddr._googlecast._tcp.local.", Port: 8009},
	)

	d := NewDiscoverer()
	_, err := d.Discover(context.Background(), 20*time.Millisecond)
	if !errors.Is(err, ErrNoDeviceAvailable) {
		t.Fatalf("Discover() err = %v, want %v", err, ErrNoDeviceAvailable)
	}
}

func TestDiscoverFallsBackToInstanceName(t *testing.T) {
	fakeMDNS(t, castEntry("Bedroom", "10.0.0.7", 8009, "ca=5"))

	devs, err := NewDiscoverer().Discover(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("Discover() err = %v", err)
	}
	if devs[0].Name != "Bedroom" {
		t.Fatalf("Discover()[0].Name = %q, want %q", devs[0].Name, "Bedroom")
	}
}

func TestDiscoverHonorsContext(t *testing.T) {
	fakeMDNS(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewDiscoverer().Discover(ctx, time.Second); !errors.Is(err, context.Canceled) {
		t.Fatalf("Discover() err = %v, want %v", err, context.Canceled)
	}
}

func TestHealthCheckPrunesDeadDevices(t *testing.T) {
	fakeMDNS(t,
		castEntry("alive", "10.0.0.1", 8009, "fn=Alive"),
		castEntry("dead", "10.0.0.2", 8009, "fn=Dead"),
	)

	origAlive := hostPortIsAlive
	t.Cleanup(func() { hostPortIsAlive = origAlive })
	hostPortIsAlive = func(address string) bool { return address == "10.0.0.1:8009" }

	var mu sync.Mutex
	var updates [][]Device
	d := NewDiscoverer()
	d.OnUpdate = func(devs []Device) {
		mu.Lock()
		updates = append(updates, devs)
		mu.Unlock()
	}

	if _, err := d.Discover(context.Background(), time.Second); err != nil {
		t.Fatalf("Discover() err = %v", err)
	}

	d.healthCheck()

	devs := d.Devices()
	if len(devs) != 1 || devs[0].Name != "Alive" {
		t.Fatalf("Devices() = %+v, want only Alive", devs)
	}

	mu.Lock()
	defer mu.Unlock()
	last := updates[len(updates)-1]
	if len(last) != 1 {
		t.Fatalf("last OnUpdate snapshot len = %d, want 1", len(last))
	}
}

func TestDevicePicker(t *testing.T) {
	devs := []Device{
		{Name: "Kitchen speaker", IsAudioOnly: true},
		{Name: "Living Room TV"},
		{Name: "Office"},
	}

	tests := []struct {
		name    string
		devs    []Device
		pick    string
		want    string
		wantErr error
	}{
		{name: "exact", devs: devs, pick: "Office", want: "Office"},
		{name: "case insensitive", devs: devs, pick: "living room tv", want: "Living Room TV"},
		{name: "first video device", devs: devs, pick: "", want: "Living Room TV"},
		{name: "missing", devs: devs, pick: "Garage", wantErr: ErrDeviceNotAvailable},
		{name: "only audio", devs: devs[:1], pick: "", wantErr: ErrDeviceNotAvailable},
		{name: "named audio only", devs: devs, pick: "Kitchen speaker", wantErr: ErrAudioOnlyDevice},
		{name: "named audio only folded", devs: devs, pick: "KITCHEN SPEAKER", wantErr: ErrAudioOnlyDevice},
		{name: "empty list", devs: nil, pick: "Office", wantErr: ErrNoDeviceAvailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DevicePicker(tt.devs, tt.pick)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("DevicePicker() err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("DevicePicker() err = %v", err)
			}
			if got.Name != tt.want {
				t.Fatalf("DevicePicker() = %q, want %q", got.Name, tt.want)
			}
		})
	}
}

func TestIsChromecastAudioOnly(t *testing.T) {
	tests := []struct {
		ca   string
		want bool
	}{
		{"4101", false},
		{"2052", true},
		{"5", false},
		{"4", true},
		{"", false},
		{"garbage", false},
	}

	for _, tt := range tests {
		if got := isChromecastAudioOnly(tt.ca); got != tt.want {
			t.Fatalf("isChromecastAudioOnly(%q) = %v, want %v", tt.ca, got, tt.want)
		}
	}
}

func TestParseTXTFirstKeyWins(t *testing.T) {
	rec, err := parseTXT([]string{"fn=First", "fn=Second", "junk", "=x", "md=Model"})
	if err != nil {
		t.Fatalf("parseTXT() err = %v", err)
	}
	if rec.FriendlyName != "First" || rec.Model != "Model" {
		t.Fatalf("parseTXT() = %+v", rec)
	}
}
