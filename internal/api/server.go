package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/vectornav/internal/pub"
	"github.com/banshee-data/vectornav/internal/sensor"
	"github.com/banshee-data/vectornav/internal/transform"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// Status is the bridge state reported by /api/status.
type Status struct {
	Identity    sensor.Identity  `json:"identity"`
	Connected   bool             `json:"connected"`
	Established bool             `json:"established"`
	Baud        int              `json:"baud"`
	Origin      transform.Origin `json:"origin"`
	Sensor      sensor.Stats     `json:"sensor"`
	Published   uint64           `json:"published"`
	Dropped     uint64           `json:"dropped"`
}

// StatusFunc snapshots the current bridge state for the status endpoint.
type StatusFunc func() Status

type Server struct {
	status StatusFunc
	origin *transform.OriginTracker
	pub    *pub.Publisher
}

func NewServer(status StatusFunc, origin *transform.OriginTracker, p *pub.Publisher) *Server {
	return &Server{
		status: status,
		origin: origin,
		pub:    p,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.showStatus)
	mux.HandleFunc("/api/reset-odom", s.resetOdometry)
	mux.HandleFunc("/api/records", s.streamRecords)
	return mux
}

func (s *Server) showStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.status()); err != nil {
		http.Error(w, fmt.Sprintf("Failed to encode status: %v", err), http.StatusInternalServerError)
	}
}

// resetOdometry clears the odometry origin; the next position sample becomes
// the new reference. The request always succeeds, including when no origin
// was set yet.
func (s *Server) resetOdometry(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.origin.Reset()
	w.Write([]byte("Odometry origin reset\n"))
}

// streamRecords tails the published batch stream as server-sent events until
// the client disconnects.
func (s *Server) streamRecords(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	id, ch := s.pub.Subscribe()
	defer s.pub.Unsubscribe(id)

	for {
		select {
		case <-r.Context().Done():
			return
		case batch, ok := <-ch:
			if !ok {
				return
			}
			payload, err := json.Marshal(batch)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		}
	}
}
