package session

// CastState summarises whether a cast session can be or is established.
type CastState int32

const (
	NoDevicesAvailable CastState = iota
	NotConnected
	Connecting
	Connected
)

var castStates = [...]string{
	"NoDevicesAvailable",
	"NotConnected",
	"Connecting",
	"Connected",
}

func (s CastState) String() string {
	if s < 0 || int(s) >= len(castStates) {
		return "Unknown"
	}
	return castStates[s]
}

// SuspendReason tells why a session was suspended.
type SuspendReason int

const (
	ReasonServiceDisconnected SuspendReason = iota + 1
	ReasonNetworkLost
)

func (r SuspendReason) String() string {
	switch r {
	case ReasonServiceDisconnected:
		return "service disconnected"
	case ReasonNetworkLost:
		return "network lost"
	default:
		return "unknown"
	}
}
