// Package memory implements an agent's private, in-process view of its
// MemoryBlocks: a concurrent label-keyed cache kept current against the
// entity store's persistent tables via live subscriptions, plus the
// permission gate tool-driven mutations must pass before writing.
//
// A Memory is owned by one agent. It is not a cache of every block in the
// system — only the blocks reachable from the owning agent via a
// has_memory edge at load time, kept current afterward by subscribing to
// entity.Store's memory_blocks and agent_memory_edges event streams.
package memory
