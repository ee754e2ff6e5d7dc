// Package blobstore persists whole-collection snapshots keyed by logical
// name. The in-memory services own the canonical state; a Store only has to
// return the last written blob, and a missing key is not an error.
package blobstore

import "context"

// Logical collection keys.
const (
	KeyActiveReports        = "activeReports"
	KeyDraftReports         = "draftReports"
	KeyPendingNotifications = "pendingNotifications"
	KeyReadNotifications    = "readNotifications"
)

// Store reads and overwrites serialized collections. Save replaces the
// whole value for a key; Load returns (nil, nil) when the key has never
// been written.
type Store interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, value []byte) error
}
