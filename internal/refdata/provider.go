package refdata

import (
	"context"

	"tickrec/internal/model"
)

// Provider resolves watch-list keys to stable identifiers and supplies the
// initial field snapshot of each instrument.
type Provider interface {
	// Resolve maps every key to its resolved id. A key that cannot be
	// resolved fails the whole call.
	Resolve(ctx context.Context, keys []string) (map[string]string, error)
	// Snapshot returns the current fields of the keys it knows. Keys without
	// a snapshot are absent from the result.
	Snapshot(ctx context.Context, keys []string) (map[string]model.Fields, error)
}
