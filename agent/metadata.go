package agent

import "time"

// Metadata accumulates per-agent counters across its lifetime.
type Metadata struct {
	CreatedAt         time.Time
	LastActive        time.Time
	TotalMessages     int
	TotalToolCalls    int
	ContextRebuilds   int
	CompressionEvents int
}
