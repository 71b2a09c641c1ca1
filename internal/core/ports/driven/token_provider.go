package driven

import "context"

// TokenProvider provides access tokens for authenticated storage API calls.
// Implementations handle token refresh transparently.
type TokenProvider interface {
	// GetToken returns a valid access token.
	// If the current token is expired, it will be refreshed automatically.
	// Returns empty string for no-auth sources.
	GetToken(ctx context.Context) (string, error)

	// IsAuthenticated returns true if valid authentication is available.
	// Always true for no-auth sources (NullTokenProvider).
	IsAuthenticated() bool
}
