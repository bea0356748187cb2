// Package coordination implements the group coordination patterns:
// round robin, voting, pipeline, a supervisor/dynamic selector, and
// a background sleeptime monitor. Every pattern implements the
// GroupManager interface and is driven by a caller-supplied lookup of
// already-constructed agent.Agent runtimes; the package owns pattern
// state transitions and streamed event multiplexing only.
package coordination
