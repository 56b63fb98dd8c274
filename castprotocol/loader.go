package castprotocol

import (
	"fmt"
	"sync/atomic"

	"github.com/vishen/go-chromecast/cast"
)

const (
	// DefaultMediaReceiverAppID is the Google-hosted styled media receiver.
	DefaultMediaReceiverAppID = "CC1AD845"

	namespaceConnection = "urn:x-cast:com.google.cast.tp.connection"
	namespaceReceiver   = "urn:x-cast:com.google.cast.receiver"
	namespaceMedia      = "urn:x-cast:com.google.cast.media"

	defaultSender   = "sender-0"
	defaultReceiver = "receiver-0"
)

// Request ID counter for Chromecast messages
var requestIDCounter int32

func nextRequestID() int {
	return int(atomic.AddInt32(&requestIDCounter, 1))
}

type launchPayload struct {
	Type      string `json:"type"`
	RequestId int    `json:"requestId"`
	AppId     string `json:"appId"`
}

func (p *launchPayload) SetRequestId(id int) {
	p.RequestId = id
}

type connectPayload struct {
	Type      string `json:"type"`
	RequestId int    `json:"requestId,omitempty"`
}

func (p *connectPayload) SetRequestId(id int) {
	p.RequestId = id
}

// LoadPayload is the LOAD command sent on the media namespace.
type LoadPayload struct {
	Type        string    `json:"type"`
	RequestId   int       `json:"requestId"`
	Media       MediaItem `json:"media"`
	CurrentTime int       `json:"currentTime"`
	Autoplay    bool      `json:"autoplay"`
}

// SetRequestId implements cast.Payload interface
func (p *LoadPayload) SetRequestId(id int) {
	p.RequestId = id
}

// sender is the subset of cast.Conn used to push requests.
type sender interface {
	Send(requestID int, payload cast.Payload, sourceID, destinationID, namespace string) error
}

var (
	_ sender = (cast.Conn)(nil)

	_ cast.Payload = (*launchPayload)(nil)
	_ cast.Payload = (*connectPayload)(nil)
	_ cast.Payload = (*LoadPayload)(nil)
)

// NewLoadPayload builds the LOAD request for the given media.
func NewLoadPayload(media MediaInfo, opts LoadOptions) *LoadPayload {
	return &LoadPayload{
		Type:        "LOAD",
		Media:       media.item(),
		CurrentTime: opts.PlayPosition,
		Autoplay:    opts.Autoplay,
	}
}

// LaunchDefaultReceiver asks the device to start the default media receiver.
// A running receiver is relaunched by the device, which is what we want when
// replacing whatever was playing before.
func LaunchDefaultReceiver(conn sender) error {
	payload := &launchPayload{Type: "LAUNCH", AppId: DefaultMediaReceiverAppID}
	requestID := nextRequestID()
	payload.SetRequestId(requestID)

	if err := conn.Send(requestID, payload, defaultSender, defaultReceiver, namespaceReceiver); err != nil {
		return fmt.Errorf("send launch: %w", err)
	}

	return nil
}

// ConnectTransport opens the virtual connection to a receiver application.
// Media commands addressed to transportId are ignored without it.
func ConnectTransport(conn sender, transportId string) error {
	payload := &connectPayload{Type: "CONNECT"}
	requestID := nextRequestID()
	payload.SetRequestId(requestID)

	if err := conn.Send(requestID, payload, defaultSender, transportId, namespaceConnection); err != nil {
		return fmt.Errorf("send connect: %w", err)
	}

	return nil
}

// SendLoad sends a LOAD command with metadata to the receiver application
// identified by transportId.
func SendLoad(conn sender, transportId string, media MediaInfo, opts LoadOptions) error {
	if transportId == "" {
		return fmt.Errorf("send load: empty transport id")
	}

	payload := NewLoadPayload(media, opts)
	requestID := nextRequestID()
	payload.SetRequestId(requestID)

	if err := conn.Send(requestID, payload, defaultSender, transportId, namespaceMedia); err != nil {
		return fmt.Errorf("send load: %w", err)
	}

	return nil
}
