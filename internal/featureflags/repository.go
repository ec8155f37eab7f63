package featureflags

import (
	"context"
	"errors"
)

// ErrFlagNotFound is returned when no flag is stored under a key.
var ErrFlagNotFound = errors.New("feature flag not found")

// Repository stores flag overrides. Keys without a stored value fall back to
// DefaultFlags in the Service.
type Repository interface {
	Get(ctx context.Context, key string) (*Flag, error)

	// List returns every stored flag ordered by key.
	List(ctx context.Context) ([]*Flag, error)

	// Save stores flags in one atomic write, stamping UpdatedAt.
	Save(ctx context.Context, flags ...*Flag) error

	Delete(ctx context.Context, key string) error
}
