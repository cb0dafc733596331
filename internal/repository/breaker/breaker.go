package breaker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker/v2"

	apperrors "github.com/utafrali/locagame/pkg/errors"
)

// Config holds configuration for the storage circuit breaker.
type Config struct {
	// Name identifies this breaker in metrics and logs.
	Name string

	// MaxRequests is the number of trial calls allowed while half-open.
	MaxRequests uint32

	// Interval is the cyclic period of the closed state for clearing counts.
	Interval time.Duration

	// Timeout is how long the breaker stays open before moving to half-open.
	Timeout time.Duration

	// FailureRatio trips the breaker once this share of calls has failed.
	FailureRatio float64

	// MinRequests is the minimum number of calls before the ratio is evaluated.
	MinRequests uint32
}

// DefaultConfig returns sensible defaults for a storage breaker.
func DefaultConfig(name string) Config {
	return Config{
		Name:         name,
		MaxRequests:  1,
		Interval:     60 * time.Second,
		Timeout:      15 * time.Second,
		FailureRatio: 0.5,
		MinRequests:  10,
	}
}

// Breaker guards calls to a backing store. Business outcomes such as not
// found or conflict count as successes; only infrastructure failures trip it.
type Breaker struct {
	cb    *gobreaker.CircuitBreaker[any]
	name  string
	state *prometheus.GaugeVec
}

// New creates a breaker and registers its state gauge with reg. A nil reg
// skips registration.
func New(cfg Config, reg prometheus.Registerer, logger *slog.Logger) (*Breaker, error) {
	state := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "storage_circuit_breaker_state",
		Help: "Current state of the storage circuit breaker (0=closed, 1=half-open, 2=open)",
	}, []string{"name"})
	if reg != nil {
		if err := reg.Register(state); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				return nil, err
			}
			state = are.ExistingCollector.(*prometheus.GaugeVec)
		}
	}

	b := &Breaker{name: cfg.Name, state: state}
	b.cb = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
		},
		IsSuccessful: isSuccessful,
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
			state.WithLabelValues(name).Set(stateToFloat(to))
		},
	})
	state.WithLabelValues(cfg.Name).Set(0)
	return b, nil
}

// State returns the breaker's current state.
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}

func isSuccessful(err error) bool {
	if err == nil {
		return true
	}
	switch {
	case errors.Is(err, apperrors.ErrNotFound),
		errors.Is(err, apperrors.ErrConflict),
		errors.Is(err, apperrors.ErrAlreadyExists),
		errors.Is(err, apperrors.ErrInvalidInput),
		errors.Is(err, context.Canceled):
		return true
	}
	return false
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// run executes fn through the breaker. Rejections from an open or saturated
// breaker become apperrors.Unavailable.
func run[T any](b *Breaker, fn func() (T, error)) (T, error) {
	v, err := b.cb.Execute(func() (any, error) {
		out, err := fn()
		return out, err
	})
	if err != nil {
		var zero T
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return zero, apperrors.Unavailable("stock store", err)
		}
		return zero, err
	}
	out, _ := v.(T)
	return out, nil
}

func runErr(b *Breaker, fn func() error) error {
	_, err := run(b, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}
