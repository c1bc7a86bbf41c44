package telemetry

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "pos_auth"

// LoginMetrics records login outcomes, lock transitions and credential migrations.
type LoginMetrics struct {
	attempts   *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	lockouts   prometheus.Counter
	migrations prometheus.Counter
}

// NewLoginMetrics registers the login collectors on reg, reusing collectors that are already registered.
func NewLoginMetrics(reg prometheus.Registerer) (*LoginMetrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "login_attempts_total",
		Help:      "Login attempts by outcome.",
	}, []string{"outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "login_duration_seconds",
		Help:      "Login processing latency by outcome.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"outcome"})
	lockouts := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "account_lockouts_total",
		Help:      "Accounts transitioned to blocked after consecutive failures.",
	})
	migrations := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "credential_migrations_total",
		Help:      "Legacy credentials rewritten as salted hashes.",
	})

	var err error
	if attempts, err = Register(reg, attempts); err != nil {
		return nil, err
	}
	if duration, err = Register(reg, duration); err != nil {
		return nil, err
	}
	if lockouts, err = Register(reg, lockouts); err != nil {
		return nil, err
	}
	if migrations, err = Register(reg, migrations); err != nil {
		return nil, err
	}

	return &LoginMetrics{
		attempts:   attempts,
		duration:   duration,
		lockouts:   lockouts,
		migrations: migrations,
	}, nil
}

// Register registers collector on reg, returning the existing collector when an
// identical one is already registered.
func Register[T prometheus.Collector](reg prometheus.Registerer, collector T) (T, error) {
	if err := reg.Register(collector); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return collector, err
	}
	return collector, nil
}

// ObserveLogin counts one login with its outcome label and latency.
func (m *LoginMetrics) ObserveLogin(outcome string, duration time.Duration) {
	m.attempts.WithLabelValues(outcome).Inc()
	m.duration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// IncLockout counts a transition to blocked.
func (m *LoginMetrics) IncLockout() {
	m.lockouts.Inc()
}

// IncMigration counts a persisted credential migration.
func (m *LoginMetrics) IncMigration() {
	m.migrations.Inc()
}
