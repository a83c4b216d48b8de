package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"poiatlas/pkg/enrich"
	"poiatlas/pkg/resolver"
)

const maxQueryBody = 1 << 20

// POIHandler serves the detail view endpoints.
type POIHandler struct {
	ctrl     *resolver.Controller
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewPOIHandler creates a new POIHandler.
func NewPOIHandler(ctrl *resolver.Controller) *POIHandler {
	return &POIHandler{
		ctrl: ctrl,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     sameHostOrigin,
		},
		logger: slog.With("component", "api_pois"),
	}
}

// HandleOpen resolves a POI for the detail view. The body is an enrich.Query;
// the response is the record or JSON null when nothing was found.
func (h *POIHandler) HandleOpen(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}

	var q enrich.Query
	if err := json.NewDecoder(io.LimitReader(r.Body, maxQueryBody)).Decode(&q); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "invalid query body: "+err.Error(), http.StatusBadRequest)
		return
	}

	info, seq, err := h.ctrl.Open(r.Context(), id, q)
	if err != nil {
		if r.Context().Err() != nil {
			return
		}
		h.logger.Warn("Open failed", "id", id, "error", err)
		http.Error(w, "resolution failed", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("X-Request-Seq", strconv.FormatUint(seq, 10))
	writeJSON(w, info)
}

// HandleInfo returns the cached record without enriching.
func (h *POIHandler) HandleInfo(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	info, err := h.ctrl.Cached(r.Context(), id)
	if errors.Is(err, resolver.ErrNotCached) {
		http.Error(w, "not cached", http.StatusNotFound)
		return
	}
	writeJSON(w, info)
}

// HandleEvict drops the cached record.
func (h *POIHandler) HandleEvict(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	evicted := h.ctrl.Evict(r.Context(), id)
	writeJSON(w, map[string]bool{"evicted": evicted})
}

// HandleVisible returns the current selection, or null.
func (h *POIHandler) HandleVisible(w http.ResponseWriter, r *http.Request) {
	sel, ok := h.ctrl.Visible()
	if !ok {
		writeJSON(w, nil)
		return
	}
	writeJSON(w, sel)
}

// HandleUpdates streams controller updates over a WebSocket until the client goes away.
func (h *POIHandler) HandleUpdates(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("WebSocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	updates, unsubscribe := h.ctrl.Subscribe()
	defer unsubscribe()

	// Reader: only control frames are expected; any error ends the stream.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(30 * time.Second)
	defer ping.Stop()

	for {
		select {
		case <-gone:
			return
		case <-r.Context().Done():
			return
		case u, ok := <-updates:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(time.Second))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(u); err != nil {
				h.logger.Debug("WebSocket write failed", "error", err)
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		}
	}
}

func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid poi id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to write JSON response", "error", err)
	}
}

// sameHostOrigin accepts requests without an Origin header and those whose
// origin host matches the request host.
func sameHostOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return u.Host == r.Host
}
