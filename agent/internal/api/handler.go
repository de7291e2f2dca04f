package api

import (
	"encoding/json"
	"math"
	"net/http"
	"time"

	"github.com/obsidianstack/obs/agent/internal/source"
	"github.com/obsidianstack/obs/pkg/stance"
	"github.com/obsidianstack/obs/pkg/types"
)

// maxBodyBytes bounds the size of a pushed signal document.
const maxBodyBytes = 4 << 10

// StateSource is the read side of the engine.
type StateSource interface {
	Snapshot() types.State
	Classes() []string
	Thresholds() stance.Thresholds
}

// Feeds holds the push-driven sources. A nil field means the channel is
// served by some other source type and its PUT endpoint answers 404.
type Feeds struct {
	Network *source.FeedNetwork
	Battery *source.FeedBattery
}

// Handler is the HTTP handler for /api/v1/* and /metrics.
type Handler struct {
	state StateSource
	feeds Feeds
	mux   *http.ServeMux
}

// New creates a Handler reading from st and registers all routes. guard wraps
// the signal push endpoints; nil leaves them open.
func New(st StateSource, feeds Feeds, guard func(http.Handler) http.Handler) http.Handler {
	if guard == nil {
		guard = func(h http.Handler) http.Handler { return h }
	}
	h := &Handler{state: st, feeds: feeds, mux: http.NewServeMux()}

	h.mux.HandleFunc("/api/v1/state", h.getState)
	h.mux.HandleFunc("/api/v1/classes", h.classes)
	h.mux.HandleFunc("/api/v1/diagnostics", h.diagnostics)
	h.mux.HandleFunc("/api/v1/health", h.health)
	h.mux.Handle("/api/v1/signals/network", guard(http.HandlerFunc(h.pushNetwork)))
	h.mux.Handle("/api/v1/signals/battery", guard(http.HandlerFunc(h.pushBattery)))
	h.mux.HandleFunc("/metrics", h.metrics)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// getState returns GET /api/v1/state — the shared State record.
func (h *Handler) getState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, h.state.Snapshot())
}

// classes returns GET /api/v1/classes.
func (h *Handler) classes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, ClassesResponse{Classes: h.state.Classes()})
}

// diagnostics returns GET /api/v1/diagnostics.
func (h *Handler) diagnostics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, computeDiagnostics(h.state.Snapshot(), h.state.Thresholds()))
}

// health returns GET /api/v1/health.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	s := h.state.Snapshot()
	resp := HealthResponse{
		Status:             "ok",
		Revision:           s.Revision,
		DeliveryMode:       s.DeliveryMode,
		NetworkInitialized: s.NetworkInitialized,
		BatteryInitialized: s.BatteryInitialized,
	}
	if !s.UpdatedAt.IsZero() {
		resp.UpdatedAt = s.UpdatedAt.UTC().Format(time.RFC3339)
	}
	jsonResp(w, http.StatusOK, resp)
}

// pushNetwork handles PUT /api/v1/signals/network.
func (h *Handler) pushNetwork(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if h.feeds.Network == nil {
		jsonErr(w, http.StatusNotFound, "network channel is not a feed")
		return
	}

	var sig NetworkSignal
	if !decodeBody(w, r, &sig) {
		return
	}
	for _, v := range []*float64{sig.RTT, sig.Downlink, sig.DownlinkMax} {
		if v != nil && *v < 0 {
			jsonErr(w, http.StatusBadRequest, "network values must not be negative")
			return
		}
	}

	h.feeds.Network.Set(stance.NetworkReading{
		SaveData: sig.SaveData,
		RTT:      orNaN(sig.RTT),
		Downlink: orNaN(sig.Downlink),
	}, orNaN(sig.DownlinkMax))
	jsonResp(w, http.StatusAccepted, AcceptedResponse{Accepted: true})
}

// pushBattery handles PUT /api/v1/signals/battery.
func (h *Handler) pushBattery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if h.feeds.Battery == nil {
		jsonErr(w, http.StatusNotFound, "battery channel is not a feed")
		return
	}

	var sig BatterySignal
	if !decodeBody(w, r, &sig) {
		return
	}
	if sig.Level != nil && (*sig.Level < 0 || *sig.Level > 1) {
		jsonErr(w, http.StatusBadRequest, "battery level must be within [0, 1]")
		return
	}

	h.feeds.Battery.Set(stance.BatteryReading{
		Level:    orNaN(sig.Level),
		Charging: sig.Charging,
	})
	jsonResp(w, http.StatusAccepted, AcceptedResponse{Accepted: true})
}

// --- helpers ----------------------------------------------------------------

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		jsonErr(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}

func orNaN(p *float64) float64 {
	if p == nil {
		return math.NaN()
	}
	return *p
}
