package coordination

import (
	"context"
	"errors"
	"iter"
)

// RoundRobin routes each message to the next live member in sequence,
// wrapping back to the start once it reaches the end.
type RoundRobin struct{}

func NewRoundRobin() *RoundRobin { return &RoundRobin{} }

func (r *RoundRobin) Pattern() PatternKind { return PatternRoundRobin }

var errNoLiveMembers = errors.New("coordination: no live members to route to")

func (r *RoundRobin) RouteMessage(ctx context.Context, req RouteRequest) iter.Seq2[GroupResponseEvent, error] {
	return func(yield func(GroupResponseEvent, error) bool) {
		var state RoundRobinState
		if err := decodeState(req.Group.PatternState, &state); err != nil {
			yield(GroupResponseEvent{Kind: EventGroupError, Err: err}, err)
			return
		}

		live := liveMembers(req)
		if len(live) == 0 {
			yield(GroupResponseEvent{Kind: EventGroupError, Err: errNoLiveMembers}, errNoLiveMembers)
			return
		}

		idx := state.CurrentIndex % len(live)
		if idx < 0 {
			idx += len(live)
		}
		target := live[idx]

		if !yield(GroupResponseEvent{
			Kind:       EventGroupStarted,
			GroupID:    req.Group.ID,
			Pattern:    PatternRoundRobin,
			AgentCount: 1,
		}, nil) {
			return
		}

		var collected []memberResult
		for ev, err := range mergeAgentStreams(ctx, []liveMember{target}, req.Message, &collected) {
			if !yield(ev, err) {
				return
			}
		}

		responses := make([]AgentResponse, 0, len(collected))
		for _, c := range collected {
			if c.completed {
				responses = append(responses, c.response)
			}
		}

		stateChanges, changed := r.UpdateState(req.Group.PatternState, responses)
		complete := GroupResponseEvent{
			Kind:           EventGroupComplete,
			GroupID:        req.Group.ID,
			Pattern:        PatternRoundRobin,
			AgentResponses: responses,
		}
		if changed {
			complete.StateChanges = stateChanges
		}
		yield(complete, nil)
	}
}

// UpdateState advances CurrentIndex by one whenever a routing turn
// produced at least one response, wrapping handled by RouteMessage's
// modulo against whatever the live member count is at call time.
func (r *RoundRobin) UpdateState(current map[string]any, responses []AgentResponse) (map[string]any, bool) {
	var state RoundRobinState
	if err := decodeState(current, &state); err != nil {
		return current, false
	}
	if len(responses) == 0 {
		return current, false
	}
	state.CurrentIndex++
	next, err := encodeState(state)
	if err != nil {
		return current, false
	}
	return next, true
}
