package datasource

import (
	"context"
	"time"
)

// StreamEvent wraps one item delivered by a source's live subscription
// together with the cursor it advances to and when it was observed.
type StreamEvent[Item, Cursor any] struct {
	Item      Item
	Cursor    Cursor
	Timestamp time.Time
}

// DataSourceStatus reports a source's connection state for its live
// subscription. A source that fails to (re)connect transitions
// Active -> Reconnecting -> Disconnected per its own retry policy.
type DataSourceStatus string

const (
	StatusActive       DataSourceStatus = "active"
	StatusReconnecting DataSourceStatus = "reconnecting"
	StatusDisconnected DataSourceStatus = "disconnected"
)

// DataSourceMetadata summarizes a source's health for diagnostics and
// for the coordinator's own bookkeeping.
type DataSourceMetadata struct {
	SourceType     string
	Status         DataSourceStatus
	ItemsProcessed uint64
	LastItemTime   time.Time
	ErrorCount     uint64
	Custom         map[string]any
}

// TargetType names the kind of recipient a notification is routed to.
type TargetType string

const (
	TargetUser  TargetType = "user"
	TargetAgent TargetType = "agent"
	TargetGroup TargetType = "group"
)

// MessageTarget names where an ingested item's notification should be
// delivered. Endpoint selects the registered sink by name; if empty the
// router falls back to a default endpoint name derived from Type.
type MessageTarget struct {
	Type     TargetType
	TargetID string
	Endpoint string
}

// DerivedMemoryBlock is a memory block a source wants created or updated
// as a side effect of ingesting one item, keyed by a stable label (e.g.
// "discord_msg_<id>") so repeated ingestion of the same item updates the
// same block rather than minting duplicates.
type DerivedMemoryBlock struct {
	Label string
	Value string
}

// BufferConfig configures a StreamBuffer in front of a source's live
// subscription.
type BufferConfig struct {
	// MaxItems bounds the buffer; the oldest queued item is evicted once
	// full.
	MaxItems int
	// MaxAge evicts queued items older than this once a new item arrives.
	// Zero disables age-based eviction.
	MaxAge time.Duration
	// RateLimit caps forwarding to the coordinator at this many items per
	// second. Zero means unlimited.
	RateLimit float64
}

// EmbedFunc computes a vector embedding for text, mirroring
// tool/builtin.EmbedFunc's contract. A nil EmbedFunc means ingestion runs
// without embeddings; derived memory blocks are still created, just
// without a vector to index them by.
type EmbedFunc func(ctx context.Context, text string) ([]float32, error)
