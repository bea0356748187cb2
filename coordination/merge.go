package coordination

import (
	"context"
	"iter"
	"strings"
	"sync"

	"github.com/patterncore/pattern/agent"
)

// mergedEvent pairs one multiplexed GroupResponseEvent with the error
// Go's iter.Seq2 convention carries alongside it.
type mergedEvent struct {
	ev  GroupResponseEvent
	err error
}

// memberResult is what a drained member stream contributes toward
// GroupManager.UpdateState's responses argument.
type memberResult struct {
	response  AgentResponse
	completed bool
}

// mergeAgentStreams runs every live member's ProcessMessageStream
// concurrently and multiplexes their events into one ordered-by-arrival
// stream via a resultCh/doneCh/select composition, generalized from one
// tool's chunks to N agents' turns. A slow member never blocks the
// others; a recoverable member error is emitted and the remaining
// members keep running. collected is filled with one memberResult per
// member once mergeAgentStreams's returned sequence is fully drained.
func mergeAgentStreams(ctx context.Context, members []liveMember, message string, collected *[]memberResult) iter.Seq2[GroupResponseEvent, error] {
	return func(yield func(GroupResponseEvent, error) bool) {
		if len(members) == 0 {
			return
		}
		out := make(chan mergedEvent, 16)
		results := make([]memberResult, len(members))

		var wg sync.WaitGroup
		wg.Add(len(members))
		for i, lm := range members {
			i, lm := i, lm
			go func() {
				defer wg.Done()
				results[i] = runMemberStream(ctx, lm, message, out)
			}()
		}
		go func() {
			wg.Wait()
			close(out)
		}()

		stop := false
		for !stop {
			select {
			case me, ok := <-out:
				if !ok {
					stop = true
					break
				}
				if !yield(me.ev, me.err) {
					stop = true
				}
			case <-ctx.Done():
				yield(GroupResponseEvent{Kind: EventGroupError, Err: ctx.Err()}, ctx.Err())
				stop = true
			}
		}

		if collected != nil {
			*collected = results
		}
	}
}

// runMemberStream drains one member's agent turn, forwarding translated
// events to out, and returns the AgentResponse summary for UpdateState.
func runMemberStream(ctx context.Context, lm liveMember, message string, out chan<- mergedEvent) memberResult {
	out <- mergedEvent{ev: GroupResponseEvent{
		Kind:    EventAgentStarted,
		AgentID: lm.member.AgentID,
		Role:    lm.member.Role.Tag,
	}}

	var text strings.Builder
	toolCalls := 0

	for ev, err := range lm.agent.ProcessMessageStream(ctx, message) {
		if err != nil {
			out <- mergedEvent{ev: GroupResponseEvent{
				Kind:        EventGroupError,
				AgentID:     lm.member.AgentID,
				Err:         err,
				Recoverable: true,
			}}
			continue
		}
		switch ev.Kind {
		case agent.EventTextChunk:
			text.WriteString(ev.Text)
			out <- mergedEvent{ev: GroupResponseEvent{Kind: EventAgentText, AgentID: lm.member.AgentID, Text: ev.Text}}
		case agent.EventReasoningChunk:
			out <- mergedEvent{ev: GroupResponseEvent{Kind: EventAgentReasoning, AgentID: lm.member.AgentID, Text: ev.Text}}
		case agent.EventToolCallStarted:
			toolCalls++
			out <- mergedEvent{ev: GroupResponseEvent{Kind: EventAgentToolCall, AgentID: lm.member.AgentID, ToolName: ev.ToolCall.Name}}
		case agent.EventToolCallComplete:
			out <- mergedEvent{ev: GroupResponseEvent{Kind: EventAgentToolCall, AgentID: lm.member.AgentID, ToolName: ev.ToolCall.Name}}
		case agent.EventComplete:
			if text.Len() == 0 {
				text.WriteString(ev.FinalText)
			}
			out <- mergedEvent{ev: GroupResponseEvent{Kind: EventAgentComplete, AgentID: lm.member.AgentID, Text: text.String()}}
		case agent.EventError:
			out <- mergedEvent{ev: GroupResponseEvent{
				Kind:        EventGroupError,
				AgentID:     lm.member.AgentID,
				Err:         ev.Err,
				Recoverable: ev.Recoverable,
			}}
			return memberResult{response: AgentResponse{AgentID: lm.member.AgentID, Role: lm.member.Role.Tag, Text: text.String(), ToolCalls: toolCalls}}
		}
	}

	return memberResult{
		completed: true,
		response:  AgentResponse{AgentID: lm.member.AgentID, Role: lm.member.Role.Tag, Text: text.String(), ToolCalls: toolCalls},
	}
}
