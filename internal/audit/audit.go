// README: Append-only audit trail for blocked authorizations and booking transitions.
package audit

import (
	"context"
	"time"

	"serene/internal/types"
)

// Entry is a single append-only audit record. Writes are best-effort
// everywhere in the engine: a failed audit write must never change the
// outcome of the operation being audited.
type Entry struct {
	Type      string
	ActorID   types.ID
	Reason    string
	Severity  string
	Context   map[string]any
	CreatedAt time.Time
}

// Sink persists audit entries.
type Sink interface {
	Append(ctx context.Context, e Entry) error
}

// Discard is a Sink that drops every entry. Useful for tests and for
// running the engine without a Postgres pool.
type Discard struct{}

func (Discard) Append(context.Context, Entry) error { return nil }
