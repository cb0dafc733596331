package service

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/utafrali/locagame/internal/domain"
)

// Operations recorded by Metrics.
const (
	opCheckRange = "check_range"
	opCalendar   = "calendar"
	opFilter     = "filter"
)

// Metrics holds the availability collectors. A nil *Metrics records nothing.
type Metrics struct {
	checks   *prometheus.CounterVec
	duration *prometheus.HistogramVec
	holds    *prometheus.CounterVec
	filtered prometheus.Counter
}

// NewMetrics creates the availability collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		checks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "availability_checks_total",
			Help: "Availability answers by operation and outcome status",
		}, []string{"operation", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "availability_check_duration_seconds",
			Help:    "Duration of availability computations including storage reads",
			Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"operation"}),
		holds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stock_holds_total",
			Help: "Reservation hold attempts by result",
		}, []string{"result"}),
		filtered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "availability_filter_products_total",
			Help: "Products evaluated by the unavailable-set filter",
		}),
	}
	reg.MustRegister(m.checks, m.duration, m.holds, m.filtered)
	return m
}

func (m *Metrics) observeCheck(operation string, status domain.AvailabilityStatus, seconds float64) {
	if m == nil {
		return
	}
	m.checks.WithLabelValues(operation, string(status)).Inc()
	m.duration.WithLabelValues(operation).Observe(seconds)
}

func (m *Metrics) observeHold(result string) {
	if m == nil {
		return
	}
	m.holds.WithLabelValues(result).Inc()
}

func (m *Metrics) observeFiltered(n int) {
	if m == nil {
		return
	}
	m.filtered.Add(float64(n))
}
