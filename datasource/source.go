package datasource

import "context"

// DataSource is an external stream of Items, addressable by Cursor and
// narrowable by Filter. Implementations provide both a catch-up read
// (Pull) and a live subscription (Subscribe); the coordinator uses
// Subscribe for ongoing ingestion and leaves Pull available for callers
// that want an explicit backfill.
type DataSource[Item, Filter, Cursor any] interface {
	// SourceID names this source instance, stable across restarts.
	SourceID() string

	Metadata() DataSourceMetadata

	// Pull performs a catch-up read of up to limit items after the given
	// cursor (or from the beginning if after is nil).
	Pull(ctx context.Context, limit int, after *Cursor) ([]Item, error)

	// Subscribe opens a live stream starting from the given cursor (or
	// the source's own resume point if from is nil). The returned channel
	// is closed when the subscription ends, whether by context
	// cancellation or an unrecoverable source error.
	Subscribe(ctx context.Context, from *Cursor) (<-chan StreamEvent[Item, Cursor], error)

	SetFilter(filter Filter)
	CurrentCursor() *Cursor

	// FormatNotification renders item as a human-readable notification
	// plus any derived memory blocks it implies. ok is false when the
	// item shouldn't produce a notification at all (e.g. filtered out
	// downstream of Subscribe).
	FormatNotification(item Item) (text string, blocks []DerivedMemoryBlock, ok bool)

	SetNotificationsEnabled(enabled bool)
	NotificationsEnabled() bool
}
