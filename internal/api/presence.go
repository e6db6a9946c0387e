package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-presence/internal/history"
	"github.com/nerrad567/gray-logic-presence/internal/presence"
)

// ClearResponse is the body returned by the clear endpoint.
type ClearResponse struct {
	Removed int `json:"removed"`
}

// HistoryResponse wraps a list of history entries.
type HistoryResponse struct {
	Entries []history.Entry `json:"entries"`
	Count   int             `json:"count"`
}

// handleSnapshot returns the full presence snapshot.
func (s *Server) handleSnapshot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, renderSnapshot(s.reader.Snapshot(), s.reader.Location()))
}

// handleGetDevice returns one device's view.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	addr, ok := parseAddressParam(w, r)
	if !ok {
		return
	}

	v, err := s.reader.Device(addr)
	if errors.Is(err, presence.ErrDeviceNotFound) {
		writeError(w, http.StatusNotFound, "device not seen since last clear: "+addr.String())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "reading device")
		return
	}
	writeJSON(w, http.StatusOK, renderDevice(v))
}

// handleClear resets the registry.
func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	removed := s.reader.Clear()
	s.logger.Info("presence registry cleared",
		"removed", removed,
		"request_id", requestID(r),
	)
	writeJSON(w, http.StatusOK, ClearResponse{Removed: removed})
}

// handleLegacyClear resets the registry and redirects to the snapshot.
func (s *Server) handleLegacyClear(w http.ResponseWriter, r *http.Request) {
	removed := s.reader.Clear()
	s.logger.Info("presence registry cleared via legacy link", "removed", removed)
	http.Redirect(w, r, "/api/v1/presence", http.StatusSeeOther)
}

// handleDeviceHistory returns stored episodes for one device.
func (s *Server) handleDeviceHistory(w http.ResponseWriter, r *http.Request) {
	addr, ok := parseAddressParam(w, r)
	if !ok {
		return
	}
	filter, ok := parseHistoryFilter(w, r)
	if !ok {
		return
	}
	filter.Address = addr
	s.writeHistory(w, r, filter)
}

// handleHistory returns recent episodes across all devices.
// Query parameters: kind, since (RFC 3339), limit.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	filter, ok := parseHistoryFilter(w, r)
	if !ok {
		return
	}
	s.writeHistory(w, r, filter)
}

func (s *Server) writeHistory(w http.ResponseWriter, r *http.Request, filter history.Filter) {
	if s.history == nil {
		writeError(w, http.StatusServiceUnavailable, "history is disabled")
		return
	}

	entries, err := s.history.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing presence history failed", "error", err)
		writeError(w, http.StatusInternalServerError, "listing history")
		return
	}
	writeJSON(w, http.StatusOK, HistoryResponse{Entries: entries, Count: len(entries)})
}

func parseAddressParam(w http.ResponseWriter, r *http.Request) (presence.MAC, bool) {
	addr, err := presence.ParseMAC(chi.URLParam(r, "address"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid device address")
		return "", false
	}
	return addr, true
}

func parseHistoryFilter(w http.ResponseWriter, r *http.Request) (history.Filter, bool) {
	var filter history.Filter
	q := r.URL.Query()

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return filter, false
		}
		filter.Limit = n
	}

	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "since must be an RFC 3339 timestamp")
			return filter, false
		}
		filter.Since = t
	}

	if v := q.Get("kind"); v != "" {
		kind := presence.EventKind(v)
		switch kind {
		case presence.EventAcquired, presence.EventLost, presence.EventReacquired, presence.EventCleared:
			filter.Kind = kind
		default:
			writeError(w, http.StatusBadRequest, "unknown episode kind: "+v)
			return filter, false
		}
	}

	return filter, true
}
