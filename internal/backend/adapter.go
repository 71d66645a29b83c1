// Package backend defines the durable-storage contract for clipboard history
// and the concrete adapters that satisfy it. Adapters differ in physical
// schema but persist the same logical record and apply the same explicit
// insert/update/remove diffs; there is deliberately no "save everything"
// operation.
package backend

import (
	"context"

	"github.com/nissy/kipple-sub002/internal/clip"
)

// ChangeSet is an explicit diff against the stored entry set. Removal happens
// only through RemovedIDs; entries absent from the set are never touched.
type ChangeSet struct {
	Inserted   []clip.Entry
	Updated    []clip.Entry
	RemovedIDs []string
}

// Empty reports whether applying the set would be a no-op.
func (cs ChangeSet) Empty() bool {
	return len(cs.Inserted) == 0 && len(cs.Updated) == 0 && len(cs.RemovedIDs) == 0
}

// Adapter is the contract every history backend satisfies.
//
// Apply is atomic: on error none of the diff is observable afterwards. Load
// reflects every previously successful Apply in the same process
// (read-your-writes). Clear is idempotent. Implementations must be safe for
// concurrent use; the history store serializes writes logically, but adapters
// must not corrupt state if called from multiple goroutines.
//
// A backend that finds its persisted bytes undecodable treats them as
// corruption: Load clears the backing data and returns an empty set instead
// of an error. Operating on a partially garbage history is worse than
// starting over.
type Adapter interface {
	Load(ctx context.Context) ([]clip.Entry, error)
	Apply(ctx context.Context, cs ChangeSet) error
	Clear(ctx context.Context) error
	Name() string
	Close() error
}
