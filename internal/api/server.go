// Package api exposes the scoring service over HTTP: the inference
// endpoint, service info, health and Prometheus metrics.
package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"TwinGuard/internal/feature"
	"TwinGuard/internal/model"
	"TwinGuard/internal/pipeline"
	"TwinGuard/internal/query"
)

// Server routes HTTP requests into the scoring pipeline. When the
// classifier failed to load, engine is nil and every scoring-dependent
// endpoint reports service-unavailable instead of scoring with a stale or
// absent model.
type Server struct {
	engine       *pipeline.Engine
	featureNames []string
	querier      query.Querier
}

// NewServer creates a server. engine may be nil when the classifier is
// unavailable; featureNames is the schema reported on the info endpoint.
func NewServer(engine *pipeline.Engine, featureNames []string) *Server {
	return &Server{engine: engine, featureNames: featureNames}
}

// WithQuerier enables the verdict-history endpoints, backed by the
// ClickHouse audit table.
func (s *Server) WithQuerier(q query.Querier) *Server {
	s.querier = q
	return s
}

// Router builds the HTTP handler.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/analyze_vitals", s.handleAnalyzeVitals).Methods("POST")
	r.HandleFunc("/verdicts", s.handleVerdicts).Methods("GET")
	r.HandleFunc("/devices/summary", s.handleDeviceSummary).Methods("GET")
	r.HandleFunc("/health", s.handleHealth).Methods("GET")
	r.HandleFunc("/", s.handleRoot).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	return r
}

// flowStatsView is the human-oriented echo of the flow counters behind a
// scoring decision.
type flowStatsView struct {
	Rate     string `json:"rate"`
	Duration string `json:"duration"`
	TotPkts  uint64 `json:"tot_pkts"`
	TotBytes uint64 `json:"tot_bytes"`
}

// analyzeResponse is the scoring response contract.
type analyzeResponse struct {
	DeviceID        string                  `json:"device_id"`
	Seq             int64                   `json:"seq"`
	Prediction      string                  `json:"prediction"`
	Confidence      float64                 `json:"confidence"`
	SpO2            float64                 `json:"spo2"`
	Pulse           int                     `json:"pulse"`
	Status          string                  `json:"status"`
	Model           model.ClassifierVerdict `json:"model"`
	VitalsAnomaly   model.AnomalyAssessment `json:"vitals_anomaly"`
	FlowStats       flowStatsView           `json:"flow_stats"`
	Timestamp       float64                 `json:"timestamp"`
	ServerTimestamp float64                 `json:"server_timestamp"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleAnalyzeVitals(w http.ResponseWriter, r *http.Request) {
	if s.engine == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "model not loaded"})
		return
	}

	var event model.TelemetryEvent
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("malformed payload: %v", err)})
		return
	}
	if event.DeviceID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "device_id is required"})
		return
	}

	rec, err := s.engine.Score(r.Context(), &event, peerInfo(r))
	if err != nil {
		log.Printf("Scoring failed for device %s: %v", event.DeviceID, err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "scoring failed"})
		return
	}

	if rec.Verdict.Label == model.LabelAttack {
		log.Printf("ATTACK detected: device=%s seq=%d confidence=%.4f reasons=%v",
			event.DeviceID, event.Seq, rec.Verdict.Confidence, rec.Verdict.Vitals.Reasons)
	}

	writeJSON(w, http.StatusOK, analyzeResponse{
		DeviceID:      event.DeviceID,
		Seq:           event.Seq,
		Prediction:    rec.Verdict.Label,
		Confidence:    rec.Verdict.Confidence,
		SpO2:          event.SpO2,
		Pulse:         event.Pulse,
		Status:        event.Status,
		Model:         rec.Verdict.Model,
		VitalsAnomaly: rec.Verdict.Vitals,
		FlowStats: flowStatsView{
			Rate:     fmt.Sprintf("%.2f pkts/sec", rec.Flow.Rate),
			Duration: fmt.Sprintf("%.2f sec", rec.Flow.Duration),
			TotPkts:  rec.Flow.PktCount,
			TotBytes: rec.Flow.ByteCount,
		},
		Timestamp:       event.TsUnix,
		ServerTimestamp: float64(time.Now().UnixNano()) / 1e9,
	})
}

func (s *Server) handleVerdicts(w http.ResponseWriter, r *http.Request) {
	if s.querier == nil {
		writeJSON(w, http.StatusNotImplemented, errorResponse{Error: "verdict history is not configured"})
		return
	}

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = n
	}

	rows, err := s.querier.RecentVerdicts(r.Context(), r.URL.Query().Get("device_id"), limit)
	if err != nil {
		log.Printf("Verdict history query failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "query failed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"verdicts": rows, "count": len(rows)})
}

func (s *Server) handleDeviceSummary(w http.ResponseWriter, r *http.Request) {
	if s.querier == nil {
		writeJSON(w, http.StatusNotImplemented, errorResponse{Error: "verdict history is not configured"})
		return
	}

	var since time.Time
	if raw := r.URL.Query().Get("since"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "since must be a duration, e.g. 24h"})
			return
		}
		since = time.Now().Add(-d)
	}

	summaries, err := s.querier.SummarizeDevices(r.Context(), since)
	if err != nil {
		log.Printf("Device summary query failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "query failed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"devices": summaries, "count": len(summaries)})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.engine == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "model not loaded"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":              "online",
		"model_loaded":        s.engine != nil,
		"model_feature_names": s.featureNames,
	})
}

// peerInfo derives the transport-level peer identity used on the
// tracker-derived feature path.
func peerInfo(r *http.Request) feature.PeerInfo {
	host, portStr, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return feature.PeerInfo{Addr: r.RemoteAddr}
	}
	port, _ := strconv.Atoi(portStr)
	return feature.PeerInfo{Addr: host, Port: port}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}
