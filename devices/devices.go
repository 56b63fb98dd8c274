package devices

import (
	"errors"
	"sort"
	"strings"
)

var (
	ErrNoDeviceAvailable  = errors.New("discover: no available cast devices")
	ErrDeviceNotAvailable = errors.New("devicePicker: requested device not available")
	ErrAudioOnlyDevice    = errors.New("devicePicker: requested device can't play video")
)

// Device is a cast receiver found on the local network.
type Device struct {
	Name        string
	Model       string
	Addr        string // "http://host:port"
	ID          string
	IsAudioOnly bool
}

// String returns the label shown to the user.
func (d Device) String() string {
	label := d.Name
	if d.IsAudioOnly {
		label += " (Chromecast Audio)"
	}
	if d.Model != "" {
		label += " - " + d.Model
	}
	return label
}

func sortDevices(devs []Device) {
	sort.Slice(devs, func(i, j int) bool {
		a, b := strings.ToLower(devs[i].Name), strings.ToLower(devs[j].Name)
		if a == b {
			return devs[i].Addr < devs[j].Addr
		}
		return a < b
	})
}

// DevicePicker selects the device named name from devs. Matching is exact
// first, then case-insensitive. An empty name picks the first device able to
// play video, and a named audio-only device is refused.
func DevicePicker(devs []Device, name string) (Device, error) {
	if len(devs) == 0 {
		return Device{}, ErrNoDeviceAvailable
	}

	if name == "" {
		for _, d := range devs {
			if !d.IsAudioOnly {
				return d, nil
			}
		}
		return Device{}, ErrDeviceNotAvailable
	}

	match := -1
	for i, d := range devs {
		if d.Name == name {
			match = i
			break
		}
	}
	if match < 0 {
		for i, d := range devs {
			if strings.EqualFold(d.Name, name) {
				match = i
				break
			}
		}
	}

	switch {
	case match < 0:
		return Device{}, ErrDeviceNotAvailable
	case devs[match].IsAudioOnly:
		return Device{}, ErrAudioOnlyDevice
	}
	return devs[match], nil
}
