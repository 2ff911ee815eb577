package web

import (
	"net/http"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"

	"github.com/atlassian/mockstatsd/pkg/healthcheck"
)

type healthChecker struct {
	logger       logrus.FieldLogger
	healthChecks []healthcheck.HealthcheckFunc
}

func runHealthChecks(checks []healthcheck.HealthcheckFunc) (good []string, bad []string) {
	// Force it render as an array, not null
	good = []string{}
	bad = []string{}
	for _, check := range checks {
		report, isHealthy := check()
		if isHealthy == healthcheck.Healthy {
			good = append(good, report)
		} else {
			bad = append(bad, report)
		}
	}
	return good, bad
}

// healthCheck reports if the server is ready to receive metrics.
func (hc *healthChecker) healthCheck(resp http.ResponseWriter, req *http.Request) {
	good, bad := runHealthChecks(hc.healthChecks)
	resp.Header().Set("content-type", "application/json")
	if len(bad) > 0 {
		resp.WriteHeader(http.StatusInternalServerError)
	} else {
		resp.WriteHeader(http.StatusOK)
	}

	enc := jsoniter.NewEncoder(resp)
	_ = enc.Encode(map[string][]string{
		"ok":     good,
		"failed": bad,
	})
}
