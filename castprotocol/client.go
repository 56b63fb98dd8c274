package castprotocol

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/vishen/go-chromecast/application"
	"github.com/vishen/go-chromecast/cast"
)

const (
	// DefaultPort is the Chromecast CASTV2 TLS port.
	DefaultPort = 8009

	loadAttempts       = 5
	transportAttempts  = 8
	wakeupRetryBackoff = 4 * time.Second
	updateRetryBackoff = 500 * time.Millisecond
)

var ErrNotConnected = errors.New("chromecast: not connected")

// CastClient wraps go-chromecast Application for simplified API
type CastClient struct {
	app         *application.Application
	conn        cast.Conn // keep reference to connection for custom commands
	mu          sync.RWMutex
	host        string
	port        int
	connected   bool
	Logger      zerolog.Logger
	LogOutput   io.Writer
	initLogOnce sync.Once
}

// Log returns the zerolog logger, initializing it lazily if LogOutput is set.
func (c *CastClient) Log() *zerolog.Logger {
	if c.LogOutput != nil {
		c.initLogOnce.Do(func() {
			c.Logger = zerolog.New(c.LogOutput).With().Timestamp().Logger()
		})
	}
	return &c.Logger
}

// NewCastClient prepares a client for the device at deviceAddr. The address
// may be "host", "host:port" or a URL such as "http://host:port".
func NewCastClient(deviceAddr string) (*CastClient, error) {
	host, port, err := ParseDeviceAddr(deviceAddr)
	if err != nil {
		return nil, err
	}

	conn := cast.NewConnection()

	// Slow TVs need a few attempts to wake up.
	app := application.NewApplication(
		application.WithConnection(conn),
		application.WithConnectionRetries(5),
	)

	return &CastClient{
		app:    app,
		conn:   conn,
		host:   host,
		port:   port,
		Logger: zerolog.Nop(),
	}, nil
}

// ParseDeviceAddr splits a device address into host and port, defaulting the
// port to DefaultPort.
func ParseDeviceAddr(deviceAddr string) (string, int, error) {
	if deviceAddr == "" {
		return "", 0, fmt.Errorf("parse device addr: empty address")
	}

	hostport := deviceAddr
	if u, err := url.Parse(deviceAddr); err == nil && u.Host != "" {
		hostport = u.Host
	}

	host, portStr, err := net.SplitHostPort(hostport)
	if err != nil {
		// No port present.
		return hostport, DefaultPort, nil
	}

	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return "", 0, fmt.Errorf("parse device addr: invalid port %q", portStr)
	}

	return host, port, nil
}

// Connect establishes connection to the Chromecast device.
func (c *CastClient) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.app == nil {
		return fmt.Errorf("chromecast connect: app is nil")
	}

	c.Log().Debug().Str("Method", "Connect").Str("Host", c.host).Int("Port", c.port).Msg("connecting")
	if err := c.app.Start(c.host, c.port); err != nil {
		c.Log().Error().Str("Method", "Connect").Err(err).Msg("connection failed")
		return fmt.Errorf("chromecast connect: %w", err)
	}
	c.connected = true
	c.Log().Debug().Str("Method", "Connect").Msg("connected successfully")
	return nil
}

// isTimeoutError checks if an error is a timeout/deadline exceeded error.
// This typically happens when the TV needs to wake from sleep.
func isTimeoutError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	return false
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Load launches the default media receiver and loads media onto it.
// Timeouts while the TV wakes up are retried; any other error is returned.
func (c *CastClient) Load(ctx context.Context, media MediaInfo, opts LoadOptions) error {
	c.Log().Debug().Str("Method", "Load").Str("URL", media.ContentID).Str("ContentType", media.ContentType).Str("Title", media.Title).Int("StartTime", opts.PlayPosition).Bool("Autoplay", opts.Autoplay).Msg("loading media")

	if !c.IsConnected() {
		return fmt.Errorf("load: %w", ErrNotConnected)
	}

	var lastErr error
	for attempt := range loadAttempts {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := c.loadOnce(ctx, media, opts)
		if err == nil {
			c.Log().Debug().Str("Method", "Load").Int("Attempt", attempt).Msg("load success")
			return nil
		}

		lastErr = err
		if !isTimeoutError(err) {
			c.Log().Error().Str("Method", "Load").Err(err).Msg("load failed")
			return err
		}

		c.Log().Debug().Str("Method", "Load").Int("Attempt", attempt).Err(err).Msg("timeout, TV may be waking up, retrying...")
		if err := sleepCtx(ctx, wakeupRetryBackoff); err != nil {
			return err
		}
	}

	return lastErr
}

func (c *CastClient) loadOnce(ctx context.Context, media MediaInfo, opts LoadOptions) error {
	if err := LaunchDefaultReceiver(c.conn); err != nil {
		return fmt.Errorf("launch receiver: %w", err)
	}

	transportId, err := c.waitTransport(ctx)
	if err != nil {
		return err
	}

	if err := ConnectTransport(c.conn, transportId); err != nil {
		return err
	}

	return SendLoad(c.conn, transportId, media, opts)
}

// waitTransport polls the receiver status until the launched application
// reports a transport id ("media receiver app not available" otherwise).
func (c *CastClient) waitTransport(ctx context.Context) (string, error) {
	for i := range transportAttempts {
		if err := c.app.Update(); err != nil {
			c.Log().Debug().Str("Method", "waitTransport").Int("Attempt", i+1).Err(err).Msg("app.Update retry")
		} else if app := c.app.App(); app != nil && app.TransportId != "" {
			c.Log().Debug().Str("Method", "waitTransport").Str("TransportId", app.TransportId).Msg("got transport ID")
			return app.TransportId, nil
		}

		if err := sleepCtx(ctx, time.Duration(i+1)*updateRetryBackoff); err != nil {
			return "", err
		}
	}

	return "", fmt.Errorf("failed to get transport ID after retries: %w", context.DeadlineExceeded)
}

// GetStatus returns current playback status.
// No mutex needed - only reads from underlying library which has its own sync.
func (c *CastClient) GetStatus() (*CastStatus, error) {
	if !c.IsConnected() {
		return nil, ErrNotConnected
	}

	if err := c.app.Update(); err != nil {
		c.Log().Error().Str("Method", "GetStatus").Err(err).Msg("app.Update failed")
		return nil, err
	}
	app, media, vol := c.app.Status()
	status := &CastStatus{}
	if app != nil {
		status.AppName = app.DisplayName
	}
	if vol != nil {
		status.Volume = float32(vol.Level)
		status.Muted = vol.Muted
	}
	if media != nil {
		status.PlayerState = media.PlayerState
		status.CurrentTime = media.CurrentTime
		if media.Media.Duration > 0 {
			status.Duration = media.Media.Duration
		}
		status.ContentType = media.Media.ContentType
		status.MediaTitle = media.Media.Metadata.Title
	} else {
		status.PlayerState = "IDLE"
	}
	return status, nil
}

// Close disconnects from the Chromecast device.
func (c *CastClient) Close(stopMedia bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Log().Debug().Str("Method", "Close").Bool("StopMedia", stopMedia).Msg("closing connection")
	c.connected = false
	err := c.app.Close(stopMedia)
	if err != nil {
		c.Log().Error().Str("Method", "Close").Err(err).Msg("failed")
	}
	return err
}

// IsConnected returns whether client is connected.
func (c *CastClient) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}
