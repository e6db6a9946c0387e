package presence

import (
	"fmt"
	"time"
)

// InstantLayout is how lost and reacquired instants are rendered.
const InstantLayout = "2006-01-02 15:04:05 MST"

// DeviceView is a point-in-time copy of one device's presence state.
// It shares no memory with the registry.
type DeviceView struct {
	Address     MAC    `json:"address"`
	Suffix      string `json:"suffix"`
	Tracked     bool   `json:"tracked"`
	DisplayName string `json:"display_name,omitempty"`
	WebName     string `json:"web_name,omitempty"`

	Tag            ManufacturerTag `json:"tag"`
	DetectionCount uint64          `json:"detection_count"`
	RSSI           int16           `json:"rssi"`
	DistanceMeters float32         `json:"distance_m"`
	DistanceKnown  bool            `json:"distance_known"`
	Trend          Trend           `json:"trend"`
	TrendGlyph     string          `json:"trend_glyph"`
	Status         Status          `json:"status"`

	// LastSeenAgeMs is how long ago, in milliseconds, the device was last
	// heard, measured on the monotonic clock when the view was taken.
	LastSeenAgeMs int64 `json:"last_seen_age_ms"`

	LostAt           *time.Time `json:"lost_at,omitempty"`
	ReacquiredAt     *time.Time `json:"reacquired_at,omitempty"`
	LostAtText       string     `json:"lost_at_text,omitempty"`
	ReacquiredAtText string     `json:"reacquired_at_text,omitempty"`

	LocalName   string `json:"local_name,omitempty"`
	ServiceUUID string `json:"service_uuid,omitempty"`
}

// Name returns the best human-readable label for the device.
func (v DeviceView) Name() string {
	switch {
	case v.DisplayName != "":
		return v.DisplayName
	case v.WebName != "":
		return v.WebName
	default:
		return v.Address.String()
	}
}

// LastSeenAge returns LastSeenAgeMs as a duration.
func (v DeviceView) LastSeenAge() time.Duration {
	return time.Duration(v.LastSeenAgeMs) * time.Millisecond
}

// Lost reports whether the device is currently in an open loss episode.
func (v DeviceView) Lost() bool {
	return v.Status == StatusLost
}

// Summary renders the compact one-line form used on small displays:
// address suffix, RSSI, distance and trend glyph ("83:c4 -60 dBm 1.2 m +").
func (v DeviceView) Summary() string {
	dist := "?"
	if v.DistanceKnown {
		dist = fmt.Sprintf("%.1f", v.DistanceMeters)
	}
	return fmt.Sprintf("%s %d dBm %s m %s", v.Suffix, v.RSSI, dist, v.TrendGlyph)
}

// localize converts the view's instants to loc and fills in their text form.
func (v *DeviceView) localize(loc *time.Location) {
	if v.LostAt != nil {
		t := v.LostAt.In(loc)
		v.LostAt = &t
		v.LostAtText = t.Format(InstantLayout)
	}
	if v.ReacquiredAt != nil {
		t := v.ReacquiredAt.In(loc)
		v.ReacquiredAt = &t
		v.ReacquiredAtText = t.Format(InstantLayout)
	}
}

// Snapshot is a consistent copy of the whole registry.
// Tracked holds configured devices seen since the last clear, in
// configuration order. Others holds anonymous devices sorted by address.
type Snapshot struct {
	Tracked []DeviceView `json:"tracked"`
	Others  []DeviceView `json:"others"`
	TakenAt time.Time    `json:"taken_at"`
}

// Len returns the total number of devices in the snapshot.
func (s Snapshot) Len() int {
	return len(s.Tracked) + len(s.Others)
}

// Empty reports whether the snapshot holds no devices.
func (s Snapshot) Empty() bool {
	return s.Len() == 0
}
