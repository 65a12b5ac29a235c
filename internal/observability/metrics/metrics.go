package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "staybook_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "staybook_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	identityResolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "staybook_identity_resolutions_total",
		Help: "Identity resolutions by outcome (resolved, anonymous, no_session)",
	}, []string{"result"})

	identityCacheEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "staybook_identity_cache_events_total",
		Help: "Identity cache lookups by outcome (hit, miss)",
	}, []string{"event"})

	pmsRoleChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "staybook_pms_role_checks_total",
		Help: "PMS role derivations by resulting role",
	}, []string{"role"})

	authzDenials = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "staybook_authz_denials_total",
		Help: "Authorization denials by surface",
	}, []string{"surface"})

	sessionRevocations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "staybook_session_revocations_total",
		Help: "Sessions revoked via logout",
	})

	cacheJanitorSweeps = promauto.NewCounter(prometheus.CounterOpts{
		Name: "staybook_identity_cache_swept_entries_total",
		Help: "Expired identity cache entries removed by the janitor",
	})
)

// ObserveHTTPRequest records an HTTP request metric
func ObserveHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// ObserveIdentityResolution counts a resolution outcome
func ObserveIdentityResolution(result string) {
	identityResolutions.WithLabelValues(result).Inc()
}

// ObserveIdentityCache counts an identity cache lookup outcome
func ObserveIdentityCache(event string) {
	identityCacheEvents.WithLabelValues(event).Inc()
}

// ObservePMSRoleCheck counts a PMS role derivation
func ObservePMSRoleCheck(role string) {
	pmsRoleChecks.WithLabelValues(role).Inc()
}

// ObserveAuthzDenial counts an authorization denial on a surface
func ObserveAuthzDenial(surface string) {
	authzDenials.WithLabelValues(surface).Inc()
}

// ObserveSessionRevocation counts a logout revocation
func ObserveSessionRevocation() {
	sessionRevocations.Inc()
}

// ObserveCacheSweep records entries removed by the cache janitor
func ObserveCacheSweep(removed int) {
	if removed > 0 {
		cacheJanitorSweeps.Add(float64(removed))
	}
}
