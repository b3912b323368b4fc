package revocation

import (
	"context"
	"time"
)

// Repository stores revoked session tokens until their natural expiry.
// Tokens are identified by a digest, never stored verbatim.
type Repository interface {
	// Revoke records digest; revoking twice is not an error.
	Revoke(ctx context.Context, digest string, exp time.Time) error
	// IsRevoked reports whether digest was revoked and has not yet expired.
	IsRevoked(ctx context.Context, digest string) (bool, error)
	// Purge drops entries whose expiry has passed and returns how many were removed.
	Purge(ctx context.Context) (int64, error)
}
