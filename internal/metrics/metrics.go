// Package metrics exposes the Prometheus instruments the release
// orchestration engine records beyond the generic HTTP metrics in
// internal/api/middleware: release lifecycle transitions, build version
// claims, resolver cache effectiveness, and CDN invalidations.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ReleasesCreated counts §4.5 create_release calls, labeled by
	// whether the call auto-concluded as the first release for (org, app).
	ReleasesCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "releasectl_releases_created_total",
			Help: "Total releases created, labeled by whether it was the app's first release.",
		},
		[]string{"first_release"},
	)

	// ReleaseStatusTransitions counts ramp/conclude/discard transitions.
	ReleaseStatusTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "releasectl_release_status_transitions_total",
			Help: "Total release status transitions, labeled by resulting status.",
		},
		[]string{"status"},
	)

	// BuildVersionClaims counts ClaimVersion outcomes.
	BuildVersionClaims = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "releasectl_build_version_claims_total",
			Help: "Total build version claim attempts, labeled by outcome.",
		},
		[]string{"outcome"}, // failed, cached, async_rebuild_failed, claimed, assembly_failed
	)

	// BuildVersionClaimRetries histograms how many unique-violation
	// retries a claim needed before succeeding or timing out.
	BuildVersionClaimRetries = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "releasectl_build_version_claim_retries",
			Help:    "Number of retries a build version claim needed.",
			Buckets: prometheus.LinearBuckets(0, 1, 10),
		},
	)

	// ResolverCacheResults counts resolver Serve() results by label. The
	// serve handler records only "error" (a failed Serve); cache hits and
	// misses are not counted.
	ResolverCacheResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "releasectl_resolver_cache_results_total",
			Help: "Resolver Serve results, labeled by result.",
		},
		[]string{"result"},
	)

	// CDNInvalidations counts cdn.Invalidate calls, labeled by outcome.
	CDNInvalidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "releasectl_cdn_invalidations_total",
			Help: "CloudFront invalidations issued, labeled by outcome.",
		},
		[]string{"outcome"}, // ok, error
	)

	// PropertyApplyFailures counts Apply() calls that rolled back.
	PropertyApplyFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "releasectl_property_apply_rollbacks_total",
			Help: "Total property diff applications that failed and rolled back.",
		},
	)
)
