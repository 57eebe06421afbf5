// Package metrics exposes listener counters for Prometheus.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rbright/dexter/internal/fsm"
)

// Metrics holds every listener metric on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	FramesRead       prometheus.Counter
	SilentFrames     prometheus.Counter
	ReadErrors       prometheus.Counter
	DroppedFrames    prometheus.Gauge
	RecognizerErrors prometheus.Counter
	Utterances       *prometheus.CounterVec
	SessionsFlushed  prometheus.Counter
	FlushFailures    prometheus.Counter
	Recording        prometheus.Gauge
	SessionDuration  prometheus.Histogram
}

// New registers all metrics on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		FramesRead: factory.NewCounter(prometheus.CounterOpts{
			Name: "dexter_frames_read_total",
			Help: "Total number of audio frames read from the capture source",
		}),
		SilentFrames: factory.NewCounter(prometheus.CounterOpts{
			Name: "dexter_silent_frames_total",
			Help: "Total number of frames below the silence threshold",
		}),
		ReadErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "dexter_read_errors_total",
			Help: "Total number of transient capture read errors",
		}),
		DroppedFrames: factory.NewGauge(prometheus.GaugeOpts{
			Name: "dexter_dropped_frames",
			Help: "Frames dropped by the capture source since it opened",
		}),
		RecognizerErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "dexter_recognizer_errors_total",
			Help: "Total number of recognizer failures",
		}),
		Utterances: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dexter_utterances_total",
			Help: "Recognized utterances by routing outcome",
		}, []string{"outcome"}),
		SessionsFlushed: factory.NewCounter(prometheus.CounterOpts{
			Name: "dexter_sessions_flushed_total",
			Help: "Total number of recording sessions ended by silence",
		}),
		FlushFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "dexter_flush_failures_total",
			Help: "Total number of failed transcript writes",
		}),
		Recording: factory.NewGauge(prometheus.GaugeOpts{
			Name: "dexter_recording",
			Help: "1 while a recording session is open",
		}),
		SessionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "dexter_session_duration_seconds",
			Help:    "Wall time from wake phrase to flush",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10), // 1s to ~8.5 minutes
		}),
	}
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ObserveFrame(silent bool) {
	if m == nil {
		return
	}
	m.FramesRead.Inc()
	if silent {
		m.SilentFrames.Inc()
	}
}

func (m *Metrics) ObserveReadError() {
	if m == nil {
		return
	}
	m.ReadErrors.Inc()
}

func (m *Metrics) SetDropped(n int64) {
	if m == nil {
		return
	}
	m.DroppedFrames.Set(float64(n))
}

func (m *Metrics) ObserveRecognizerError() {
	if m == nil {
		return
	}
	m.RecognizerErrors.Inc()
}

func (m *Metrics) ObserveUtterance(outcome string) {
	if m == nil {
		return
	}
	m.Utterances.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveFlush(duration time.Duration) {
	if m == nil {
		return
	}
	m.SessionsFlushed.Inc()
	m.SessionDuration.Observe(duration.Seconds())
}

func (m *Metrics) ObserveFlushFailure() {
	if m == nil {
		return
	}
	m.FlushFailures.Inc()
}

// ObserveState tracks the recording gauge.
func (m *Metrics) ObserveState(state fsm.State) {
	if m == nil {
		return
	}
	if state == fsm.StateRecording {
		m.Recording.Set(1)
		return
	}
	m.Recording.Set(0)
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Server serves /metrics until Close.
type Server struct {
	server *http.Server
	lis    net.Listener
	done   chan error
}

// Listen binds addr and serves /metrics in the background.
func (m *Metrics) Listen(addr string, logger *slog.Logger) (*Server, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen metrics %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &Server{
		server: &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		lis:    lis,
		done:   make(chan error, 1),
	}
	go func() {
		err := srv.server.Serve(lis)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		if err != nil && logger != nil {
			logger.Error("metrics server stopped", "error", err)
		}
		srv.done <- err
	}()
	return srv, nil
}

// Addr returns the bound address.
func (s *Server) Addr() net.Addr {
	return s.lis.Addr()
}

// Close shuts the server down, waiting briefly for in-flight scrapes.
func (s *Server) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown metrics server: %w", err)
	}
	return <-s.done
}
