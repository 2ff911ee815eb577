package healthcheck

// HealthcheckFunc is a function that returns a status message, and if the check if healthy or not (false).
// healthchecks must not block.
type HealthcheckFunc func() (string, HealthyStatus)

type HealthyStatus bool

const (
	Healthy   = HealthyStatus(true)
	Unhealthy = HealthyStatus(false)
)

// HealthCheckProvider is implemented by components that can report on their own health.
type HealthCheckProvider interface {
	HealthChecks() []HealthcheckFunc
}

// MaybeAppendHealthChecks appends the checks of maybeProvider if it is a HealthCheckProvider.
func MaybeAppendHealthChecks(healthChecks []HealthcheckFunc, maybeProvider interface{}) []HealthcheckFunc {
	if hcp, ok := maybeProvider.(HealthCheckProvider); ok {
		healthChecks = append(healthChecks, hcp.HealthChecks()...)
	}
	return healthChecks
}
