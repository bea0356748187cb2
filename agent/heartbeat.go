package agent

import (
	"context"
	"log/slog"

	"github.com/patterncore/pattern/id"
	"github.com/patterncore/pattern/observability"
)

// HeartbeatEvent is produced by a tool whose usage rule is continuing but
// whose own execution path does not resume the agent that called it —
// for example a tool that schedules work to complete asynchronously and
// later needs the agent to pick the turn back up.
type HeartbeatEvent struct {
	AgentID    id.AgentID
	ToolCallID id.ToolCallID
	ToolName   string
}

// ResumeFunc resumes the named agent, typically by calling
// Agent.ProcessMessage with an empty user prompt to elicit the model's
// continuation.
type ResumeFunc func(ctx context.Context, agentID id.AgentID) error

// HeartbeatService drains a channel of HeartbeatEvent values and invokes a
// caller-supplied resume callback for each one, decoupling a tool's
// out-of-band completion from the agent loop that is waiting on it.
type HeartbeatService struct {
	events chan HeartbeatEvent
	resume ResumeFunc
	logger *slog.Logger
}

// NewHeartbeatService creates a service with the given channel buffer
// size. Pass the returned channel as Options.Heartbeats for every agent
// this service should resume.
func NewHeartbeatService(bufferSize int, resume ResumeFunc) (*HeartbeatService, chan<- HeartbeatEvent) {
	ch := make(chan HeartbeatEvent, bufferSize)
	svc := &HeartbeatService{events: ch, resume: resume, logger: observability.GetLogger()}
	return svc, ch
}

// Run consumes events until ctx is cancelled or the channel is closed.
func (s *HeartbeatService) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-s.events:
			if !ok {
				return
			}
			if err := s.resume(ctx, ev.AgentID); err != nil {
				s.logger.Warn("agent: heartbeat resume failed",
					"agent_id", ev.AgentID.String(),
					"tool_call_id", ev.ToolCallID.String(),
					"tool_name", ev.ToolName,
					"error", err)
			}
		}
	}
}
