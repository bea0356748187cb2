// Package agent implements the per-agent runtime: a lifecycle
// state machine, a message-processing loop that builds context, calls a
// model, executes requested tools, and heartbeats while any executed
// tool's usage rule demands continuation, and a separate heartbeat
// service for tools whose continuation is driven out of band.
package agent
