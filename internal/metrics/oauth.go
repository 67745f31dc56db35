// Package metrics holds the Prometheus collectors for credential issuance and
// validation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TokensIssued counts successful token endpoint responses by grant type.
	TokensIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authcore_tokens_issued_total",
			Help: "Token pairs issued by grant type",
		},
		[]string{"grant_type"},
	)

	// OAuthErrors counts OAuth error responses by endpoint and error code.
	OAuthErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authcore_oauth_errors_total",
			Help: "OAuth error responses by endpoint and error code",
		},
		[]string{"endpoint", "error"},
	)

	// AuthorizationCodesIssued counts codes minted by the authorize endpoint.
	AuthorizationCodesIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "authcore_authorization_codes_issued_total",
			Help: "Authorization codes issued",
		},
	)

	// CodeReplays counts redemptions of already consumed authorization codes
	// that led to grant revocation.
	CodeReplays = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "authcore_authorization_code_replays_total",
			Help: "Consumed authorization codes presented again",
		},
	)

	// CredentialValidations counts bearer validation outcomes by credential
	// kind and result.
	CredentialValidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authcore_credential_validations_total",
			Help: "Bearer credential validations by kind and result",
		},
		[]string{"kind", "result"},
	)

	// UsageDropped counts usage updates discarded because the recorder
	// buffer was full or already closed.
	UsageDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authcore_credential_usage_dropped_total",
			Help: "Credential usage updates dropped, by credential kind",
		},
		[]string{"kind"},
	)

	// RateLimited counts requests rejected by the per-IP limiter.
	RateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authcore_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		},
		[]string{"path"},
	)

	// CredentialsPurged counts rows removed by the purge job.
	CredentialsPurged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "authcore_credentials_purged_total",
			Help: "Expired codes and tokens deleted by the purge job",
		},
	)
)
