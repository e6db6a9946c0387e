package api

import (
	"time"

	"github.com/nerrad567/gray-logic-presence/internal/presence"
)

// Trend colours used by dashboards.
const (
	TrendColourApproaching = "red"
	TrendColourReceding    = "blue"
	TrendColourStable      = "green"
)

// TrendColour maps a trend to its dashboard colour.
func TrendColour(t presence.Trend) string {
	switch t {
	case presence.TrendApproaching:
		return TrendColourApproaching
	case presence.TrendReceding:
		return TrendColourReceding
	default:
		return TrendColourStable
	}
}

// DeviceResponse is a device view as rendered by the API.
type DeviceResponse struct {
	presence.DeviceView
	Name        string `json:"name"`
	TrendColour string `json:"trend_colour"`
	Summary     string `json:"summary"`
}

// SnapshotResponse is the body of GET /api/v1/presence.
type SnapshotResponse struct {
	Tracked  []DeviceResponse `json:"tracked"`
	Others   []DeviceResponse `json:"others"`
	Count    int              `json:"count"`
	TakenAt  time.Time        `json:"taken_at"`
	Timezone string           `json:"timezone,omitempty"`
}

func renderDevice(v presence.DeviceView) DeviceResponse {
	return DeviceResponse{
		DeviceView:  v,
		Name:        v.Name(),
		TrendColour: TrendColour(v.Trend),
		Summary:     v.Summary(),
	}
}

func renderDevices(views []presence.DeviceView) []DeviceResponse {
	out := make([]DeviceResponse, len(views))
	for i, v := range views {
		out[i] = renderDevice(v)
	}
	return out
}

func renderSnapshot(snap presence.Snapshot, loc *time.Location) SnapshotResponse {
	resp := SnapshotResponse{
		Tracked: renderDevices(snap.Tracked),
		Others:  renderDevices(snap.Others),
		Count:   snap.Len(),
		TakenAt: snap.TakenAt,
	}
	if loc != nil {
		resp.Timezone = loc.String()
	}
	return resp
}

// eventPayload is the WebSocket payload for presence.event.
type eventPayload struct {
	ID      string             `json:"id"`
	Kind    presence.EventKind `json:"kind"`
	At      time.Time          `json:"at"`
	Device  *DeviceResponse    `json:"device,omitempty"`
	Removed int                `json:"removed,omitempty"`
}

func renderEvent(e presence.Event) eventPayload {
	p := eventPayload{ID: e.ID, Kind: e.Kind, At: e.At, Removed: e.Removed}
	if e.Kind != presence.EventCleared {
		d := renderDevice(e.Device)
		p.Device = &d
	}
	return p
}
