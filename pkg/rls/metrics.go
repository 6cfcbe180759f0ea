package rls

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dmitrymomot/rlskit/pkg/tenant"
)

// Metrics counts tenant switches. A nil *Metrics records nothing.
type Metrics struct {
	switches      *prometheus.CounterVec
	resetFailures prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg when it is
// not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		switches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rls_tenant_switches_total",
			Help: "Tenant context switches by mode and result.",
		}, []string{"mode", "result"}),
		resetFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rls_context_reset_failures_total",
			Help: "Connections whose tenant context could not be reset.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.switches, m.resetFailures)
	}
	return m
}

func (m *Metrics) observeSwitch(mode string, err error) {
	if m == nil {
		return
	}
	m.switches.WithLabelValues(mode, switchResult(err)).Inc()
}

func (m *Metrics) observeResetFailure() {
	if m == nil {
		return
	}
	m.resetFailures.Inc()
}

func switchResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrResetFailed):
		return "reset_failed"
	case errors.Is(err, tenant.ErrNotFound):
		return "not_found"
	case errors.Is(err, tenant.ErrInvalidArgument):
		return "invalid"
	default:
		return "error"
	}
}
