package common

const (
	// AuthorizationHeaderName carries bearer edit/decrypt tokens.
	AuthorizationHeaderName = "Authorization"

	// CapabilityTokenHeaderName carries a capability token on validation requests.
	CapabilityTokenHeaderName = "X-Capability-Token"

	// CorrelationIDHeaderName is echoed on every API response.
	CorrelationIDHeaderName = "X-Correlation-ID"

	// AdminTokenMetadataKey is the gRPC metadata key holding the admin JWT.
	AdminTokenMetadataKey = "authorization"

	// APIPrefix is the path prefix of the public JSON API.
	APIPrefix = "/api/v1"
)
