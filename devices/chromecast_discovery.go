package devices

import (
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/mdns"
	"github.com/rs/zerolog"
)

const (
	googlecastService = "_googlecast._tcp"
	// mDNS query timeout per request
	chromecastQueryTimeout = 750 * time.Millisecond
	// Faster polling while cache is empty for quick first discovery
	chromecastPollIntervalFast = 1 * time.Second
	// Slower polling once at least one device is known to reduce network load
	chromecastPollIntervalSlow = 4 * time.Second
	chromecastHealthInterval   = 5 * time.Second
)

// Swapped in tests.
var (
	mdnsQuery       = mdns.Query
	activeIfaces    = getActiveNetworkInterfaces
	hostPortIsAlive = HostPortIsAlive
)

// Discoverer finds cast receivers with mDNS and keeps a cache of the ones
// that are still reachable.
type Discoverer struct {
	// OnUpdate, when set, receives a snapshot each time the cache changes.
	OnUpdate func([]Device)

	Logger      zerolog.Logger
	LogOutput   io.Writer
	initLogOnce sync.Once

	mu    sync.Mutex
	cache map[string]Device // key: "host:port"
}

// NewDiscoverer returns an empty Discoverer.
func NewDiscoverer() *Discoverer {
	return &Discoverer{
		Logger: zerolog.Nop(),
		cache:  make(map[string]Device),
	}
}

func (d *Discoverer) Log() *zerolog.Logger {
	if d.LogOutput != nil {
		d.initLogOnce.Do(func() {
			d.Logger = zerolog.New(d.LogOutput).With().Timestamp().Logger()
		})
	}
	return &d.Logger
}

// deviceFromEntry converts an mDNS answer to a Device. ok is false for
// answers that are not usable cast receivers.
func deviceFromEntry(entry *mdns.ServiceEntry) (string, Device, bool) {
	if entry == nil || entry.AddrV4 == nil {
		return "", Device{}, false
	}
	if !strings.Contains(entry.Name, "_googlecast") {
		return "", Device{}, false
	}

	rec, err := parseTXT(entry.InfoFields)
	if err != nil {
		return "", Device{}, false
	}

	friendlyName := rec.FriendlyName
	if friendlyName == "" {
		friendlyName = entry.Name
	}
	if idx := strings.Index(friendlyName, "._googlecast"); idx > 0 {
		friendlyName = friendlyName[:idx]
	}

	address := net.JoinHostPort(entry.AddrV4.String(), fmt.Sprint(entry.Port))

	return address, Device{
		Name:        friendlyName,
		Model:       rec.Model,
		Addr:        "http://" + address,
		ID:          rec.ID,
		IsAudioOnly: isChromecastAudioOnly(rec.Capabilities),
	}, true
}

func (d *Discoverer) upsert(entry *mdns.ServiceEntry) {
	address, dev, ok := deviceFromEntry(entry)
	if !ok {
		return
	}

	d.mu.Lock()
	old, existed := d.cache[address]
	d.cache[address] = dev
	d.mu.Unlock()

	if !existed || old != dev {
		d.Log().Debug().Str("Method", "upsert").Str("Name", dev.Name).Str("Addr", dev.Addr).Msg("device found")
		d.notify()
	}
}

func (d *Discoverer) notify() {
	if d.OnUpdate != nil {
		d.OnUpdate(d.Devices())
	}
}

// query runs one mDNS query on every active interface and feeds the answers
// into the cache.
func (d *Discoverer) query(timeout time.Duration) {
	entriesCh := make(chan *mdns.ServiceEntry, 256)
	doneCh := make(chan struct{})
	go func() {
		defer close(doneCh)
		for entry := range entriesCh {
			d.upsert(entry)
		}
	}()

	queryIface := func(iface *net.Interface) {
		params := mdns.DefaultParams(googlecastService)
		params.Entries = entriesCh
		params.Timeout = timeout
		params.DisableIPv6 = true
		params.WantUnicastResponse = true
		params.Logger = log.New(io.Discard, "", 0)
		params.Interface = iface
		if err := mdnsQuery(params); err != nil {
			d.Log().Debug().Str("Method", "query").Err(err).Msg("mdns query failed")
		}
	}

	interfaces := activeIfaces()
	if len(interfaces) > 0 {
		var wg sync.WaitGroup
		for _, iface := range interfaces {
			wg.Add(1)
			go func(iface net.Interface) {
				defer wg.Done()
				queryIface(&iface)
			}(iface)
		}
		wg.Wait()
	} else {
		queryIface(nil)
	}

	close(entriesCh)
	<-doneCh
}

// Discover runs queries until timeout elapses or ctx is done and returns the
// devices found so far, sorted by name.
func (d *Discoverer) Discover(ctx context.Context, timeout time.Duration) ([]Device, error) {
	deadline := time.Now().Add(timeout)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		d.query(min(remaining, chromecastQueryTimeout))

		if len(d.Devices()) > 0 {
			break
		}
	}

	devs := d.Devices()
	if len(devs) == 0 {
		return nil, ErrNoDeviceAvailable
	}
	return devs, nil
}

// Devices returns the cached devices sorted by name.
func (d *Discoverer) Devices() []Device {
	d.mu.Lock()
	result := make([]Device, 0, len(d.cache))
	for _, dev := range d.cache {
		result = append(result, dev)
	}
	d.mu.Unlock()

	sortDevices(result)
	return result
}

func (d *Discoverer) pollInterval() time.Duration {
	d.mu.Lock()
	hasDevices := len(d.cache) > 0
	d.mu.Unlock()
	if hasDevices {
		return chromecastPollIntervalSlow
	}
	return chromecastPollIntervalFast
}

// StartDiscoveryLoop keeps browsing for devices and pruning unreachable ones
// until ctx is canceled.
func (d *Discoverer) StartDiscoveryLoop(ctx context.Context) {
	go d.discoverLoop(ctx)
	go d.healthCheckLoop(ctx)
}

func (d *Discoverer) discoverLoop(ctx context.Context) {
	pollTimer := time.NewTimer(0)
	defer pollTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-pollTimer.C:
		}

		d.query(chromecastQueryTimeout)
		pollTimer.Reset(d.pollInterval())
	}
}

func (d *Discoverer) healthCheckLoop(ctx context.Context) {
	ticker := time.NewTicker(chromecastHealthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.healthCheck()
		}
	}
}

// healthCheck removes cached devices that no longer accept TCP connections.
func (d *Discoverer) healthCheck() {
	d.mu.Lock()
	addrs := make([]string, 0, len(d.cache))
	for address := range d.cache {
		addrs = append(addrs, address)
	}
	d.mu.Unlock()

	var removed bool
	for _, address := range addrs {
		if hostPortIsAlive(address) {
			continue
		}
		d.mu.Lock()
		delete(d.cache, address)
		d.mu.Unlock()
		removed = true
		d.Log().Debug().Str("Method", "healthCheck").Str("Addr", address).Msg("device removed")
	}

	if removed {
		d.notify()
	}
}

// getActiveNetworkInterfaces returns all network interfaces that are up,
// multicast-capable, not loopback, and have an IPv4 address.
func getActiveNetworkInterfaces() []net.Interface {
	interfaces, err := net.Interfaces()
	if err != nil {
		return nil
	}

	var active []net.Interface
	for _, iface := range interfaces {
		if iface.Flags&net.FlagUp == 0 ||
			iface.Flags&net.FlagLoopback != 0 ||
			iface.Flags&net.FlagMulticast == 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && ipnet.IP.To4() != nil && !ipnet.IP.IsLoopback() {
				active = append(active, iface)
				break
			}
		}
	}

	return active
}

// HostPortIsAlive checks if a device at the given address is reachable via TCP connection.
// Returns true if the connection succeeds within 2 seconds.
func HostPortIsAlive(address string) bool {
	conn, err := net.DialTimeout("tcp", address, 2*time.Second)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
