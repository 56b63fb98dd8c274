// Package mediaprobe works out which content type to announce to the
// receiver for a media URL.
package mediaprobe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/h2non/filetype"
	"github.com/hashicorp/go-retryablehttp"
)

// Fallback is announced when the type cannot be determined.
const Fallback = "video/mp4"

var ErrBadStatus = errors.New("mediaprobe bad status code")

const (
	probeHTTPClientTimeout         = 20 * time.Second
	probeHTTPDialTimeout           = 5 * time.Second
	probeHTTPKeepAlive             = 30 * time.Second
	probeHTTPTLSHandshakeTimeout   = 5 * time.Second
	probeHTTPResponseHeaderTimeout = 10 * time.Second
	probeHTTPIdleConnTimeout       = 90 * time.Second
	probeRetryMax                  = 2

	// filetype needs at most this many bytes to match a signature.
	sniffLen = 261
)

var probeHTTPTransport = &http.Transport{
	Proxy: http.ProxyFromEnvironment,
	DialContext: (&net.Dialer{
		Timeout:   probeHTTPDialTimeout,
		KeepAlive: probeHTTPKeepAlive,
	}).DialContext,
	TLSHandshakeTimeout:   probeHTTPTLSHandshakeTimeout,
	ResponseHeaderTimeout: probeHTTPResponseHeaderTimeout,
	IdleConnTimeout:       probeHTTPIdleConnTimeout,
}

func newRetryableHTTPClient(retryMax int) *http.Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = retryMax
	retryClient.RetryWaitMin = 200 * time.Millisecond
	retryClient.RetryWaitMax = 2 * time.Second
	retryClient.Logger = nil
	retryClient.HTTPClient = &http.Client{
		Timeout:   probeHTTPClientTimeout,
		Transport: probeHTTPTransport,
	}

	return retryClient.StandardClient()
}

// Prober fetches the head of a media URL to find its content type.
type Prober struct {
	client *http.Client
}

// New returns a Prober with a retrying HTTP client.
func New() *Prober {
	return &Prober{client: newRetryableHTTPClient(probeRetryMax)}
}

// ContentType returns the media type of the resource at s. The response
// header wins unless it is missing or generic, in which case the first bytes
// of the body are sniffed.
func (p *Prober) ContentType(ctx context.Context, s string) (string, error) {
	if _, err := url.ParseRequestURI(s); err != nil {
		return "", fmt.Errorf("mediaprobe failed to parse url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s, nil)
	if err != nil {
		return "", fmt.Errorf("mediaprobe failed to call NewRequest: %w", err)
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=0-%d", sniffLen-1))

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("mediaprobe failed to client.Do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("%w: %d", ErrBadStatus, resp.StatusCode)
	}

	mediaType := normalizeContentType(resp.Header.Get("Content-Type"))
	if !shouldSniffContentType(mediaType) {
		return mediaType, nil
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(resp.Body, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return "", fmt.Errorf("mediaprobe failed to read body for mime detection: %w", err)
	}

	kind, err := filetype.Match(head[:n])
	if err != nil {
		return "", fmt.Errorf("mediaprobe failed to match body: %w", err)
	}
	if kind == filetype.Unknown {
		return "", fmt.Errorf("mediaprobe: unknown media type %q", mediaType)
	}

	return kind.MIME.Value, nil
}

// ContentTypeOrDefault is ContentType with Fallback on any error.
func (p *Prober) ContentTypeOrDefault(ctx context.Context, s string) string {
	mediaType, err := p.ContentType(ctx, s)
	if err != nil {
		return Fallback
	}
	return mediaType
}

func normalizeContentType(v string) string {
	if v == "" {
		return ""
	}

	mt, _, err := mime.ParseMediaType(v)
	if err == nil {
		return strings.ToLower(strings.TrimSpace(mt))
	}

	parts := strings.Split(v, ";")
	return strings.ToLower(strings.TrimSpace(parts[0]))
}

func shouldSniffContentType(mediaType string) bool {
	switch mediaType {
	case "", "/", "application/octet-stream", "binary/octet-stream", "text/plain":
		return true
	default:
		return false
	}
}
