// Package metrics exposes Prometheus collectors for the HTTP surface, the
// scheduler and the chat gateway.
package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hackgods/emr-backend/internal/chat"
)

// Booking outcomes.
const (
	BookingCreated  = "created"
	BookingConflict = "conflict"
	BookingBusy     = "busy"
	BookingInvalid  = "invalid"
	BookingError    = "error"
)

type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	bookings *prometheus.CounterVec

	chatSessions prometheus.Gauge
	chatRejected *prometheus.CounterVec
	chatRelayed  prometheus.Counter
	chatDropped  *prometheus.CounterVec
	chatSkipped  prometheus.Counter
}

// New builds the collectors on a private registry, so several instances can
// coexist in tests.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status_code"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		bookings: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "appointment_bookings_total",
				Help: "Appointment booking attempts by outcome",
			},
			[]string{"outcome"},
		),
		chatSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chat_sessions_open",
			Help: "Number of open chat sessions",
		}),
		chatRejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chat_handshakes_rejected_total",
				Help: "Refused chat handshakes by reason",
			},
			[]string{"reason"},
		),
		chatRelayed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chat_messages_relayed_total",
			Help: "Chat messages persisted and broadcast",
		}),
		chatDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chat_frames_dropped_total",
				Help: "Inbound chat frames dropped by reason",
			},
			[]string{"reason"},
		),
		chatSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chat_deliveries_skipped_total",
			Help: "Outbound chat frames skipped because the client was too slow",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpDuration,
		m.bookings,
		m.chatSessions,
		m.chatRejected,
		m.chatRelayed,
		m.chatDropped,
		m.chatSkipped,
	)

	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware records request counts and latency labelled by chi route
// pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}

		m.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		m.httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

func (m *Metrics) RecordBooking(outcome string) {
	m.bookings.WithLabelValues(outcome).Inc()
}

// ChatObserver returns a chat.Observer that feeds the chat collectors.
func (m *Metrics) ChatObserver() chat.Observer {
	return chatObserver{m: m}
}

type chatObserver struct {
	m *Metrics
}

func (o chatObserver) Connected(*chat.Session) { o.m.chatSessions.Inc() }

func (o chatObserver) Rejected(_ chat.Room, err *chat.CloseError) {
	o.m.chatRejected.WithLabelValues(err.Reason).Inc()
}

func (o chatObserver) Disconnected(*chat.Session) { o.m.chatSessions.Dec() }

func (o chatObserver) FrameDropped(_ *chat.Session, reason chat.DropReason, _ error) {
	o.m.chatDropped.WithLabelValues(string(reason)).Inc()
}

func (o chatObserver) Relayed(*chat.Session, chat.Message) { o.m.chatRelayed.Inc() }

func (o chatObserver) DeliverySkipped(chat.RoomKey, *chat.Session) { o.m.chatSkipped.Inc() }

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack lets WebSocket upgrades pass through the recorder.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
