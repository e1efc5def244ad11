// Package handler exposes the webhook service over HTTP.
package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/t77yq/self-healing/internal/config"
	"github.com/t77yq/self-healing/internal/executor"
	"github.com/t77yq/self-healing/internal/model"
	"github.com/t77yq/self-healing/internal/storage"
)

// Dispatcher processes one webhook notification
type Dispatcher interface {
	Handle(ctx context.Context, msg *model.WebhookMessage) (int, error)
}

// ActionReader reads the most recent records of the healing-actions log
type ActionReader interface {
	Tail(limit int) ([]*model.HealingAction, error)
}

// HistoryReader queries the indexed healing history
type HistoryReader interface {
	List(ctx context.Context, filter storage.HistoryFilter, offset, limit int) ([]*storage.HistoryRecord, error)
}

// HostSnapshotter provides the latest host resource snapshot
type HostSnapshotter interface {
	Latest() *model.HostStats
}

// RunningLister lists the playbooks currently executing
type RunningLister interface {
	GetRunning() []*executor.RunningRemediation
}

// RemediationTable describes the configured alert to playbook mapping
type RemediationTable interface {
	Len() int
	Entries() []config.Remediation
}

// Handler serves the HTTP endpoints of the webhook service
type Handler struct {
	logger     *zap.Logger
	service    string
	dispatcher Dispatcher
	actions    ActionReader
	history    HistoryReader
	host       HostSnapshotter
	running    RunningLister
	table      RemediationTable
}

// Option configures optional handler collaborators
type Option func(*Handler)

// WithHistory serves /actions from the indexed history instead of the log file
func WithHistory(history HistoryReader) Option {
	return func(h *Handler) {
		h.history = history
	}
}

// WithHostSnapshotter includes host statistics in /status
func WithHostSnapshotter(host HostSnapshotter) Option {
	return func(h *Handler) {
		h.host = host
	}
}

// WithRunning includes in-flight remediations in /status
func WithRunning(running RunningLister) Option {
	return func(h *Handler) {
		h.running = running
	}
}

// WithRemediationTable includes the remediation mapping in /status
func WithRemediationTable(table RemediationTable) Option {
	return func(h *Handler) {
		h.table = table
	}
}

// New creates a new handler
func New(service string, dispatcher Dispatcher, actions ActionReader, logger *zap.Logger, opts ...Option) *Handler {
	h := &Handler{
		logger:     logger.Named("http"),
		service:    service,
		dispatcher: dispatcher,
		actions:    actions,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes builds the router with every endpoint registered
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(RequestLogger(h.logger))
	r.Use(PrometheusMiddleware)
	r.Use(Recoverer(h.logger))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		jsonErr(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Get("/health", h.health)
	r.Post("/webhook", h.webhook)
	r.Get("/actions", h.listActions)
	r.Get("/status", h.status)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}
