package telemetry

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes gateway-level Prometheus collectors shared by the session
// manager and the security monitor.
type Metrics struct {
	ActiveSessions prometheus.Gauge
	RateLimited    prometheus.Counter
	Lockouts       prometheus.Counter
	SecurityEvents *prometheus.CounterVec
}

// NewMetrics constructs and registers the gateway collectors. Passing nil
// uses the default registerer; re-registration resolves to the existing
// collectors so tests can build multiple instances.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	activeSessions := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "passgage_gateway",
		Name:      "active_sessions",
		Help:      "Number of live sessions at the last sweep.",
	})

	rateLimited := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "passgage_gateway",
		Name:      "admissions_rejected_total",
		Help:      "Requests rejected by the sliding-window rate limiter.",
	})

	lockouts := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "passgage_gateway",
		Name:      "lockouts_total",
		Help:      "Brute-force lockouts applied to callers.",
	})

	securityEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "passgage_gateway",
		Name:      "security_events_total",
		Help:      "Security events recorded, partitioned by severity.",
	}, []string{"severity"})

	if g, err := registerGauge(reg, activeSessions); err != nil {
		return nil, err
	} else {
		activeSessions = g
	}
	if c, err := registerCounter(reg, rateLimited); err != nil {
		return nil, err
	} else {
		rateLimited = c
	}
	if c, err := registerCounter(reg, lockouts); err != nil {
		return nil, err
	} else {
		lockouts = c
	}
	if err := reg.Register(securityEvents); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := already.ExistingCollector.(*prometheus.CounterVec); ok {
				securityEvents = existing
			} else {
				return nil, fmt.Errorf("existing events collector has unexpected type %T", already.ExistingCollector)
			}
		} else {
			return nil, fmt.Errorf("register events collector: %w", err)
		}
	}

	return &Metrics{
		ActiveSessions: activeSessions,
		RateLimited:    rateLimited,
		Lockouts:       lockouts,
		SecurityEvents: securityEvents,
	}, nil
}

func registerCounter(reg prometheus.Registerer, c prometheus.Counter) (prometheus.Counter, error) {
	if err := reg.Register(c); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := already.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("existing collector has unexpected type %T", already.ExistingCollector)
		}
		return nil, fmt.Errorf("register counter: %w", err)
	}
	return c, nil
}

func registerGauge(reg prometheus.Registerer, g prometheus.Gauge) (prometheus.Gauge, error) {
	if err := reg.Register(g); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := already.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("existing collector has unexpected type %T", already.ExistingCollector)
		}
		return nil, fmt.Errorf("register gauge: %w", err)
	}
	return g, nil
}
