package devices

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

// CapabilityVideoOut is the bitmask for video output capability (bit 0)
const CapabilityVideoOut = 1

// txtRecord holds the _googlecast._tcp TXT keys we care about.
type txtRecord struct {
	ID           string `mapstructure:"id"`
	FriendlyName string `mapstructure:"fn"`
	Model        string `mapstructure:"md"`
	Capabilities string `mapstructure:"ca"`
}

// parseTXT decodes "key=value" TXT fields. Unknown keys are ignored and the
// first occurrence of a key wins.
func parseTXT(fields []string) (txtRecord, error) {
	kv := make(map[string]string, len(fields))
	for _, f := range fields {
		k, v, ok := strings.Cut(f, "=")
		if !ok || k == "" {
			continue
		}
		if _, seen := kv[k]; seen {
			continue
		}
		kv[k] = v
	}

	var rec txtRecord
	if err := mapstructure.Decode(kv, &rec); err != nil {
		return txtRecord{}, fmt.Errorf("parseTXT: %w", err)
	}

	return rec, nil
}

// isChromecastAudioOnly checks if a device is audio-only based on the "ca" capability field.
// Bit 0 set means Video Out. Parse failures count as video capable.
func isChromecastAudioOnly(caField string) bool {
	ca, err := strconv.Atoi(caField)
	if err != nil {
		return false
	}
	return (ca & CapabilityVideoOut) == 0
}
