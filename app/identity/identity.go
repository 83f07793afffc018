package identity

import "context"

// Provider resolves verified user attributes from the identity service.
// Email addresses are always re-derived here, never taken from request bodies.
type Provider interface {
	VerifiedEmail(ctx context.Context, userID string) (string, error)
}
