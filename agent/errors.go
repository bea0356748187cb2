package agent

import "fmt"

// NotReadyError is returned by ProcessMessage/ProcessMessageStream when
// the agent is not in the ready state, or its cooldown has not elapsed.
type NotReadyError struct {
	AgentID string
	State   string
}

func (e *NotReadyError) Error() string {
	return fmt.Sprintf("agent: %q is not ready (state: %s)", e.AgentID, e.State)
}

// ErrCancelled is surfaced as a ResponseEvent's Err when a turn is
// cancelled at one of its well-defined suspension points.
var ErrCancelled = fmt.Errorf("agent: turn cancelled")

// HeartbeatDepthExceededError is returned when a turn's heartbeat
// continuation chain exceeds the configured cap.
type HeartbeatDepthExceededError struct {
	AgentID string
	Depth   int
}

func (e *HeartbeatDepthExceededError) Error() string {
	return fmt.Sprintf("agent: %q exceeded heartbeat depth %d", e.AgentID, e.Depth)
}
