package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	applog "financas/internal/log"
)

const readyTimeout = 5 * time.Second

type healthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Uptime    string            `json:"uptime"`
	Checks    map[string]string `json:"checks,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) uptime() time.Duration {
	return s.now().Sub(s.startedAt).Truncate(time.Second)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "ok",
		Timestamp: s.now().UTC(),
		Uptime:    s.uptime().String(),
	})
}

// handleReady reports not ready while templates are missing or the data
// backend does not answer a ping.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:    "ready",
		Timestamp: s.now().UTC(),
		Uptime:    s.uptime().String(),
		Checks:    make(map[string]string),
	}
	ready := true

	if len(s.pages) == 0 || s.partials == nil {
		resp.Checks["templates"] = "missing"
		ready = false
	} else {
		resp.Checks["templates"] = "ok"
	}

	if s.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		err := s.store.Ping(ctx)
		cancel()
		if err != nil {
			resp.Checks["store"] = "unreachable"
			ready = false
			applog.FromContext(r.Context()).WarnContext(r.Context(), "Readiness ping failed", applog.FieldError, err)
		} else {
			resp.Checks["store"] = "ok"
		}
	}
	resp.Checks["rate_limit_clients"] = fmt.Sprint(s.limiter.ActiveClients())

	status := http.StatusOK
	if !ready {
		resp.Status = "not ready"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// handleMetrics writes counters in the Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	tm := s.trace.GetMetrics()
	lm := s.limiter.GetMetrics()
	dm := s.detector.GetMetrics()

	var b strings.Builder
	metric := func(name, help, kind string, value any) {
		fmt.Fprintf(&b, "# HELP %s %s\n# TYPE %s %s\n%s %v\n", name, help, name, kind, name, value)
	}
	metric("financas_http_requests_total", "Requests served.", "counter", tm.TotalRequests)
	metric("financas_http_server_errors_total", "Responses with a 5xx status.", "counter", tm.ServerErrors)
	metric("financas_http_response_time_microseconds", "Smoothed response time.", "gauge", tm.AverageResponseTime)
	metric("financas_rate_limited_total", "Requests rejected by the rate limiter.", "counter", lm.TotalHits)
	metric("financas_rate_limit_clients", "Clients tracked by the rate limiter.", "gauge", lm.ClientCount)
	metric("financas_suspicious_requests_total", "Requests flagged as suspicious.", "counter", dm.SuspiciousRequests)
	metric("financas_invalid_ip_total", "Forwarded addresses that failed to parse.", "counter", dm.InvalidIPAttempts)
	metric("financas_import_previews", "Import previews held in memory.", "gauge", s.previews.Size())
	metric("financas_uptime_seconds", "Seconds since start.", "gauge", int64(s.uptime().Seconds()))

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(b.String()))
}
