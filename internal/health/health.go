// Package health watches the ledger's recent failure rate and raises alerts.
package health

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alfredjeanlab/eventledger/internal/events"
	"github.com/alfredjeanlab/eventledger/internal/model"
)

// Severity of a health report.
type Severity string

const (
	SeverityOK       Severity = "ok"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Defaults for Config fields left zero.
const (
	DefaultWindow       = time.Hour
	DefaultCriticalRate = 0.2
)

// Source is the read side the monitor needs; store.Store satisfies it.
type Source interface {
	WindowCounts(ctx context.Context, since time.Time) (model.WindowCounts, error)
}

// Config tunes the monitor.
type Config struct {
	Window       time.Duration // look-back for failure counting
	CriticalRate float64       // failure rate strictly above this is critical
}

// Report is the result of one check.
type Report struct {
	Severity    Severity  `json:"severity"`
	Message     string    `json:"message"`
	Window      string    `json:"window"`
	Total       int       `json:"total"`
	Failed      int       `json:"failed"`
	FailureRate float64   `json:"failure_rate"`
	Since       time.Time `json:"since"`
	CheckedAt   time.Time `json:"checked_at"`
}

// Monitor evaluates the failure rate over a sliding window.
type Monitor struct {
	src       Source
	cfg       Config
	publisher events.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

// NewMonitor creates a Monitor. A nil publisher or logger falls back to a
// NoopPublisher and slog.Default().
func NewMonitor(src Source, cfg Config, pub events.Publisher, logger *slog.Logger) *Monitor {
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.CriticalRate <= 0 {
		cfg.CriticalRate = DefaultCriticalRate
	}
	if pub == nil {
		pub = &events.NoopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{src: src, cfg: cfg, publisher: pub, logger: logger, now: time.Now}
}

// Check reads the window and grades it. It has no side effects.
func (m *Monitor) Check(ctx context.Context) (Report, error) {
	now := m.now().UTC()
	since := now.Add(-m.cfg.Window)

	w, err := m.src.WindowCounts(ctx, since)
	if err != nil {
		return Report{}, fmt.Errorf("read failure window: %w", err)
	}
	return Evaluate(w, m.cfg, now), nil
}

// Evaluate grades window counts: critical above the rate, warning on any
// failure, ok otherwise (including an empty window).
func Evaluate(w model.WindowCounts, cfg Config, checkedAt time.Time) Report {
	window := cfg.Window
	if window <= 0 {
		window = DefaultWindow
	}
	critical := cfg.CriticalRate
	if critical <= 0 {
		critical = DefaultCriticalRate
	}

	r := Report{
		Severity:    SeverityOK,
		Window:      window.String(),
		Total:       w.Total,
		Failed:      w.Failed,
		FailureRate: w.FailureRate(),
		Since:       w.Since,
		CheckedAt:   checkedAt,
	}
	switch {
	case w.Total > 0 && r.FailureRate > critical:
		r.Severity = SeverityCritical
		r.Message = fmt.Sprintf("%d of %d events failed in the last %s (%.1f%% failure rate)",
			w.Failed, w.Total, window, r.FailureRate*100)
	case w.Failed > 0:
		r.Severity = SeverityWarning
		r.Message = fmt.Sprintf("%d event(s) failed in the last %s", w.Failed, window)
	default:
		r.Message = fmt.Sprintf("no failures in the last %s", window)
	}
	return r
}

// Job runs a check, logging it and publishing an alert unless it is ok.
func (m *Monitor) Job(ctx context.Context) {
	r, err := m.Check(ctx)
	if err != nil {
		m.logger.Error("health check failed", "err", err)
		return
	}

	attrs := []any{"total", r.Total, "failed", r.Failed, "failure_rate", r.FailureRate, "window", r.Window}
	switch r.Severity {
	case SeverityOK:
		m.logger.Debug("ledger healthy", attrs...)
		return
	case SeverityCritical:
		m.logger.Error(r.Message, attrs...)
	default:
		m.logger.Warn(r.Message, attrs...)
	}

	alert := events.Alert{
		Severity:    string(r.Severity),
		Message:     r.Message,
		Total:       r.Total,
		Failed:      r.Failed,
		FailureRate: r.FailureRate,
		Since:       r.Since,
		CheckedAt:   r.CheckedAt,
	}
	if err := m.publisher.Publish(ctx, events.TopicAlert, alert); err != nil {
		m.logger.Warn("failed to publish alert", "err", err)
	}
}
