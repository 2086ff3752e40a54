package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TransferChecks counts compliance transfer checks by outcome
	TransferChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "compliance_transfer_checks_total",
			Help: "Total number of compliance transfer checks",
		},
		[]string{"outcome"},
	)

	// ModuleRejections counts transfer rejections by rule module
	ModuleRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "compliance_module_rejections_total",
			Help: "Total number of transfer rejections by rule module",
		},
		[]string{"module"},
	)

	// VerificationChecks counts identity registry verification checks by outcome
	VerificationChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "registry_verification_checks_total",
			Help: "Total number of identity registry verification checks",
		},
		[]string{"outcome"},
	)

	// ProofVerifications counts credential proof submissions by status
	ProofVerifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verifier_proof_verifications_total",
			Help: "Total number of credential proof verifications",
		},
		[]string{"status"},
	)

	// ProofVerificationDuration tracks proof verification time
	ProofVerificationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "verifier_proof_verification_duration_seconds",
			Help:    "Proof verification duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// BadgesMinted counts badge mints by credential type
	BadgesMinted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "badge_mints_total",
			Help: "Total number of credential badges minted",
		},
		[]string{"credential_type"},
	)

	// CredentialCacheLookups counts credential-type module cache lookups
	CredentialCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "compliance_credential_cache_lookups_total",
			Help: "Credential-type module cache lookups by result",
		},
		[]string{"result"},
	)

	// GateDecisions counts investment gate decisions by outcome and reason
	GateDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gate_decisions_total",
			Help: "Total number of investment gate decisions",
		},
		[]string{"outcome", "reason"},
	)

	// BoundModules tracks the number of rule modules bound to the engine
	BoundModules = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "compliance_bound_modules",
			Help: "Number of rule modules currently bound to the compliance engine",
		},
	)
)
