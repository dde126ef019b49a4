// Package status persists the per-tenant status record that callers poll to
// observe the outcome of background workflows.
package status

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("status not found")

// Store is a per-tenant partial-update key/value status record.
type Store interface {
	// Update sets one field, keeps every other field, and refreshes LastUpdated.
	Update(ctx context.Context, partnerID, field, value string) error
	// Get returns ErrNotFound when nothing has been written for the tenant yet.
	Get(ctx context.Context, partnerID string) (Record, error)
}

// stamp returns a timestamp no earlier than prev so records never move back in time.
func stamp(now, prev time.Time) time.Time {
	now = now.UTC()
	if now.Before(prev) {
		return prev
	}
	return now
}
