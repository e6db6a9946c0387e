package feed

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/nerrad567/gray-logic-presence/internal/presence"
)

// Message is the JSON form of one advertisement as published by gateways.
type Message struct {
	ID               string `json:"id,omitempty"`
	MAC              string `json:"mac,omitempty"`
	RSSI             int    `json:"rssi"`
	ManufacturerData string `json:"manufacturerdata,omitempty"`
	Mfg              string `json:"mfg,omitempty"`
	Name             string `json:"name,omitempty"`
	ServiceDataUUID  string `json:"servicedatauuid,omitempty"`
	UUID             string `json:"uuid,omitempty"`
}

// Decode parses a gateway message into an advertisement.
// All failures wrap ErrMalformed.
func Decode(payload []byte) (presence.Advertisement, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return presence.Advertisement{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return msg.Advertisement()
}

// Advertisement validates the message and converts it.
func (m Message) Advertisement() (presence.Advertisement, error) {
	addr, err := presence.ParseMAC(firstNonEmpty(m.ID, m.MAC))
	if err != nil {
		return presence.Advertisement{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	if m.RSSI < math.MinInt16 || m.RSSI > math.MaxInt16 {
		return presence.Advertisement{}, fmt.Errorf("%w: rssi %d out of range", ErrMalformed, m.RSSI)
	}

	data, err := decodeHex(firstNonEmpty(m.ManufacturerData, m.Mfg))
	if err != nil {
		return presence.Advertisement{}, fmt.Errorf("%w: manufacturer data: %w", ErrMalformed, err)
	}

	return presence.Advertisement{
		Address:          addr,
		RSSI:             int16(m.RSSI), // #nosec G115 -- range checked above
		ManufacturerData: data,
		LocalName:        strings.TrimSpace(m.Name),
		ServiceUUID:      strings.TrimSpace(firstNonEmpty(m.ServiceDataUUID, m.UUID)),
	}, nil
}

// decodeHex accepts an optional 0x prefix and ignores colon or space
// separators between octets.
func decodeHex(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if s == "" {
		return nil, nil
	}
	s = strings.NewReplacer(":", "", " ", "").Replace(s)
	return hex.DecodeString(s)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
