package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"wanderhall/walkd/internal/input"
	"wanderhall/walkd/internal/logging"
	"wanderhall/walkd/internal/scene"
	"wanderhall/walkd/internal/simulation"
	"wanderhall/walkd/internal/timesync"
)

// ReadinessProvider exposes the session counts required for readiness checks.
type ReadinessProvider interface {
	SnapshotSessionCounts() (sessions, engaged int)
	StartupError() error
	Uptime() time.Duration
}

// Options configures the HandlerSet.
type Options struct {
	Logger      *logging.Logger
	Readiness   ReadinessProvider
	TickStats   func() simulation.TickStats
	Clock       func() (tick uint64, simulated time.Duration)
	GateMetrics func() map[string]input.DropCounters
	Scene       *scene.Scene
	Timesync    *timesync.Tracker
	TimeSource  func() time.Time
}

// HandlerSet bundles the walkd operational and content handlers.
type HandlerSet struct {
	logger      *logging.Logger
	readiness   ReadinessProvider
	tickStats   func() simulation.TickStats
	clock       func() (uint64, time.Duration)
	gateMetrics func() map[string]input.DropCounters
	scene       *scene.Scene
	timesync    *timesync.Tracker
	now         func() time.Time
}

// NewHandlerSet constructs a HandlerSet using the provided options.
func NewHandlerSet(opts Options) *HandlerSet {
	logger := opts.Logger
	if logger == nil {
		logger = logging.L()
	}
	now := opts.TimeSource
	if now == nil {
		now = time.Now
	}
	return &HandlerSet{
		logger:      logger,
		readiness:   opts.Readiness,
		tickStats:   opts.TickStats,
		clock:       opts.Clock,
		gateMetrics: opts.GateMetrics,
		scene:       opts.Scene,
		timesync:    opts.Timesync,
		now:         now,
	}
}

// Register attaches all handlers to the provided mux.
func (h *HandlerSet) Register(mux *http.ServeMux) {
	if mux == nil {
		return
	}
	mux.HandleFunc("/healthz", h.LivenessHandler())
	mux.HandleFunc("/readyz", h.ReadinessHandler())
	mux.HandleFunc("/metrics", h.MetricsHandler())
	mux.HandleFunc("/api/stats", h.StatsHandler())
	mux.HandleFunc("/api/scene", h.SceneHandler())
	mux.HandleFunc("/api/controls", h.ControlsHandler())
	mux.HandleFunc("/api/timesync", h.TimesyncHandler())
}

// LivenessHandler reports that the HTTP server is reachable.
func (h *HandlerSet) LivenessHandler() http.HandlerFunc {
	type response struct {
		Status    string `json:"status"`
		Timestamp string `json:"timestamp"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, response{
			Status:    "alive",
			Timestamp: h.now().UTC().Format(time.RFC3339Nano),
		})
	}
}

// ReadinessHandler reports service readiness, including session counts and startup status.
func (h *HandlerSet) ReadinessHandler() http.HandlerFunc {
	type response struct {
		Status          string  `json:"status"`
		Message         string  `json:"message,omitempty"`
		UptimeSeconds   float64 `json:"uptime_seconds"`
		Sessions        int     `json:"sessions"`
		EngagedSessions int     `json:"engaged_sessions"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		resp := response{Status: "ok"}
		if h.readiness != nil {
			sessions, engaged := h.readiness.SnapshotSessionCounts()
			resp.Sessions = sessions
			resp.EngagedSessions = engaged
			resp.UptimeSeconds = h.readiness.Uptime().Seconds()
			if err := h.readiness.StartupError(); err != nil {
				status = http.StatusServiceUnavailable
				resp.Status = "error"
				resp.Message = err.Error()
			}
		}
		writeJSON(w, status, resp)
	}
}

// MetricsHandler emits Prometheus compatible text metrics.
func (h *HandlerSet) MetricsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")

		if h.readiness != nil {
			sessions, engaged := h.readiness.SnapshotSessionCounts()
			fmt.Fprintf(w, "# HELP walkd_uptime_seconds Service uptime in seconds.\n")
			fmt.Fprintf(w, "# TYPE walkd_uptime_seconds gauge\n")
			fmt.Fprintf(w, "walkd_uptime_seconds %.0f\n", h.readiness.Uptime().Seconds())

			fmt.Fprintf(w, "# HELP walkd_sessions Current walker sessions.\n")
			fmt.Fprintf(w, "# TYPE walkd_sessions gauge\n")
			fmt.Fprintf(w, "walkd_sessions %d\n", sessions)

			fmt.Fprintf(w, "# HELP walkd_engaged_sessions Sessions currently holding pointer lock.\n")
			fmt.Fprintf(w, "# TYPE walkd_engaged_sessions gauge\n")
			fmt.Fprintf(w, "walkd_engaged_sessions %d\n", engaged)
		}
		if h.clock != nil {
			tick, _ := h.clock()
			fmt.Fprintf(w, "# HELP walkd_frames_total Fixed simulation frames executed.\n")
			fmt.Fprintf(w, "# TYPE walkd_frames_total counter\n")
			fmt.Fprintf(w, "walkd_frames_total %d\n", tick)
		}
		if h.tickStats != nil {
			stats := h.tickStats()
			fmt.Fprintf(w, "# HELP walkd_frame_duration_seconds Average observed frame step duration.\n")
			fmt.Fprintf(w, "# TYPE walkd_frame_duration_seconds gauge\n")
			fmt.Fprintf(w, "walkd_frame_duration_seconds %.9f\n", stats.Average.Seconds())
		}
		if h.gateMetrics != nil {
			drops := h.gateMetrics()
			if len(drops) > 0 {
				//1.- Stable output order keeps scrapes diffable.
				sessionIDs := make([]string, 0, len(drops))
				for sessionID := range drops {
					sessionIDs = append(sessionIDs, sessionID)
				}
				sort.Strings(sessionIDs)
				fmt.Fprintf(w, "# HELP walkd_input_drops_total Rejected input frames per session and reason.\n")
				fmt.Fprintf(w, "# TYPE walkd_input_drops_total counter\n")
				for _, sessionID := range sessionIDs {
					counters := drops[sessionID]
					fmt.Fprintf(w, "walkd_input_drops_total{session=%q,reason=\"sequence\"} %d\n", sessionID, counters.Sequence)
					fmt.Fprintf(w, "walkd_input_drops_total{session=%q,reason=\"stale\"} %d\n", sessionID, counters.Stale)
					fmt.Fprintf(w, "walkd_input_drops_total{session=%q,reason=\"rate_limit\"} %d\n", sessionID, counters.RateLimited)
				}
			}
		}
	}
}

// StatsHandler returns the frame loop and input gate statistics as JSON.
func (h *HandlerSet) StatsHandler() http.HandlerFunc {
	type response struct {
		Sessions           int                           `json:"sessions"`
		EngagedSessions    int                           `json:"engaged_sessions"`
		Tick               uint64                        `json:"tick"`
		SimulatedSeconds   float64                       `json:"simulated_seconds"`
		FrameStats         simulation.TickStats          `json:"frame_stats"`
		FrameAverageFPS    float64                       `json:"frame_average_fps"`
		InputDropsBySource map[string]input.DropCounters `json:"input_drops,omitempty"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		resp := response{}
		if h.readiness != nil {
			resp.Sessions, resp.EngagedSessions = h.readiness.SnapshotSessionCounts()
		}
		if h.clock != nil {
			tick, simulated := h.clock()
			resp.Tick = tick
			resp.SimulatedSeconds = simulated.Seconds()
		}
		if h.tickStats != nil {
			resp.FrameStats = h.tickStats()
			resp.FrameAverageFPS = resp.FrameStats.AverageFPS()
		}
		if h.gateMetrics != nil {
			resp.InputDropsBySource = h.gateMetrics()
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// SceneHandler exports the static scene layout for the renderer.
func (h *HandlerSet) SceneHandler() http.HandlerFunc {
	type colliderPayload struct {
		Name        string     `json:"name,omitempty"`
		Center      [3]float64 `json:"center"`
		HalfExtents [3]float64 `json:"half_extents"`
	}
	type propPayload struct {
		Name      string     `json:"name"`
		Kind      string     `json:"kind"`
		Base      [3]float64 `json:"base"`
		Amplitude float64    `json:"amplitude"`
		PeriodS   float64    `json:"period_s"`
		PhaseS    float64    `json:"phase_s"`
	}
	type response struct {
		Name      string            `json:"name"`
		Spawn     [3]float64        `json:"spawn"`
		Colliders []colliderPayload `json:"colliders"`
		Props     []propPayload     `json:"props,omitempty"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if h.scene == nil {
			http.Error(w, "scene unavailable", http.StatusServiceUnavailable)
			return
		}
		resp := response{
			Name:  h.scene.Name,
			Spawn: [3]float64{h.scene.Spawn[0], h.scene.Spawn[1], h.scene.Spawn[2]},
		}
		for _, named := range h.scene.Colliders {
			center := named.Box.Center()
			half := named.Box.HalfExtents()
			resp.Colliders = append(resp.Colliders, colliderPayload{
				Name:        named.Name,
				Center:      [3]float64{center[0], center[1], center[2]},
				HalfExtents: [3]float64{half[0], half[1], half[2]},
			})
		}
		for _, prop := range h.scene.Props {
			resp.Props = append(resp.Props, propPayload{
				Name:      prop.Name,
				Kind:      string(prop.Kind),
				Base:      [3]float64{prop.Base[0], prop.Base[1], prop.Base[2]},
				Amplitude: prop.Amplitude,
				PeriodS:   prop.Period,
				PhaseS:    prop.Phase,
			})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// ControlsHandler documents the key bindings the input tracker understands.
func (h *HandlerSet) ControlsHandler() http.HandlerFunc {
	type binding struct {
		Key    string `json:"key"`
		Action string `json:"action"`
	}
	type response struct {
		SchemaVersion string    `json:"schema_version"`
		Bindings      []binding `json:"bindings"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		table := input.Bindings()
		keys := make([]string, 0, len(table))
		for key := range table {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		resp := response{SchemaVersion: input.SchemaVersion}
		for _, key := range keys {
			resp.Bindings = append(resp.Bindings, binding{Key: key, Action: string(table[key])})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// TimesyncHandler returns a drift sample aligning the renderer's animation
// clock with the simulated clock.
func (h *HandlerSet) TimesyncHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.timesync == nil {
			http.Error(w, "timesync unavailable", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, http.StatusOK, h.timesync.Sample())
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(payload)
}
