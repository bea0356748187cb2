package coordination

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"strings"
	"time"
)

// Supervisor is the built-in dynamic selector: it consults one
// decision-making member (role Supervisor, or a Specialist matching
// Config.Domain) with a meta-message describing the new message and
// the other members' capabilities, then routes per its response.
type Supervisor struct{}

func NewSupervisor() *Supervisor { return &Supervisor{} }

func (s *Supervisor) Pattern() PatternKind { return PatternSupervisor }

func (s *Supervisor) RouteMessage(ctx context.Context, req RouteRequest) iter.Seq2[GroupResponseEvent, error] {
	return func(yield func(GroupResponseEvent, error) bool) {
		var cfg SupervisorConfig
		if err := decodeConfig(req.Group.PatternConfig, &cfg); err != nil {
			yield(GroupResponseEvent{Kind: EventGroupError, Err: err}, err)
			return
		}

		live := liveMembers(req)
		decider, others, ok := pickDecider(live, cfg.Domain)
		if !ok {
			err := errNoDecider
			yield(GroupResponseEvent{Kind: EventGroupError, Err: err}, err)
			return
		}

		if !yield(GroupResponseEvent{
			Kind:       EventGroupStarted,
			GroupID:    req.Group.ID,
			Pattern:    PatternSupervisor,
			AgentCount: len(live),
		}, nil) {
			return
		}

		meta := buildMetaMessage(req.Message, others)
		var deciderCollected []memberResult
		firstChunk := ""
		sawFirstChunk := false
		toolCalls := 0
		for ev, err := range mergeAgentStreams(ctx, []liveMember{decider}, meta, &deciderCollected) {
			if ev.Kind == EventAgentText && !sawFirstChunk {
				firstChunk = ev.Text
				sawFirstChunk = true
			}
			if ev.Kind == EventAgentToolCall {
				toolCalls++
			}
			if !yield(ev, err) {
				return
			}
		}

		var deciderText string
		if len(deciderCollected) == 1 {
			deciderText = deciderCollected[0].response.Text
		}
		// A decider that never streamed a partial chunk (e.g. a
		// non-streaming model) still produced its full text via
		// EventComplete; fall back to that for the routing checks
		// below rather than treating it as a non-response.
		if !sawFirstChunk {
			firstChunk = deciderText
		}

		var responses []AgentResponse
		var targets []liveMember

		switch {
		case isNonResponse(firstChunk):
			if decider.member.Role.CanSelfSelect() {
				responses = append(responses, AgentResponse{
					AgentID:   decider.member.AgentID,
					Role:      decider.member.Role.Tag,
					Text:      deciderText,
					ToolCalls: toolCalls,
				})
			} else {
				targets = others
			}
		case isSelfSelection(firstChunk, toolCalls):
			if decider.member.Role.CanSelfSelect() {
				responses = append(responses, AgentResponse{
					AgentID:   decider.member.AgentID,
					Role:      decider.member.Role.Tag,
					Text:      deciderText,
					ToolCalls: toolCalls,
				})
			} else {
				targets = others
			}
		default:
			names := parseAgentNameLines(deciderText)
			targets = matchMembers(others, names)
			if len(targets) == 0 {
				if decider.member.Role.CanSelfSelect() {
					responses = append(responses, AgentResponse{
						AgentID:   decider.member.AgentID,
						Role:      decider.member.Role.Tag,
						Text:      deciderText,
						ToolCalls: toolCalls,
					})
				} else {
					targets = others
				}
			}
		}

		if len(targets) > 0 {
			var collected []memberResult
			for ev, err := range mergeAgentStreams(ctx, targets, req.Message, &collected) {
				if !yield(ev, err) {
					return
				}
			}
			for _, c := range collected {
				if c.completed {
					responses = append(responses, c.response)
				}
			}
		}

		selections := make([]SelectionRecord, 0, len(responses))
		for _, r := range responses {
			selections = append(selections, SelectionRecord{AgentID: idString(r.AgentID), SelectedAt: time.Now()})
		}
		state := SupervisorState{RecentSelections: selections}
		stateChanges, err := encodeState(state)
		if err != nil {
			yield(GroupResponseEvent{Kind: EventGroupError, Err: err}, err)
			return
		}

		yield(GroupResponseEvent{
			Kind:           EventGroupComplete,
			GroupID:        req.Group.ID,
			Pattern:        PatternSupervisor,
			AgentResponses: responses,
			StateChanges:   stateChanges,
		}, nil)
	}
}

func (s *Supervisor) UpdateState(current map[string]any, responses []AgentResponse) (map[string]any, bool) {
	var state SupervisorState
	if err := decodeState(current, &state); err != nil {
		return current, false
	}
	if len(responses) == 0 {
		return current, false
	}
	for _, r := range responses {
		state.RecentSelections = append(state.RecentSelections, SelectionRecord{AgentID: idString(r.AgentID), SelectedAt: time.Now()})
	}
	next, err := encodeState(state)
	if err != nil {
		return current, false
	}
	return next, true
}

var errNoDecider = fmt.Errorf("coordination: no supervisor or matching specialist available")

// pickDecider selects the decision-making member: a Specialist matching
// domain if domain is set, else the member with role Supervisor. others
// is every other live member, in order.
func pickDecider(live []liveMember, domain string) (liveMember, []liveMember, bool) {
	for i, lm := range live {
		match := false
		if domain != "" {
			match = lm.member.Role.Tag == "specialist" && lm.member.Role.Domain == domain
		} else {
			match = lm.member.Role.Tag == "supervisor"
		}
		if match {
			others := make([]liveMember, 0, len(live)-1)
			others = append(others, live[:i]...)
			others = append(others, live[i+1:]...)
			return lm, others, true
		}
	}
	return liveMember{}, nil, false
}

func buildMetaMessage(message string, others []liveMember) string {
	var b strings.Builder
	b.WriteString("New message to route:\n")
	b.WriteString(message)
	b.WriteString("\n\nAvailable members:\n")
	for _, lm := range others {
		b.WriteString(fmt.Sprintf("- %s (%s): %s\n", idString(lm.member.AgentID), lm.member.Role.Tag, strings.Join(lm.member.Capabilities, ", ")))
	}
	return b.String()
}

func isNonResponse(firstChunk string) bool {
	trimmed := strings.TrimSpace(firstChunk)
	return trimmed == "" || trimmed == "."
}

func isSelfSelection(firstChunk string, toolCalls int) bool {
	if toolCalls > 0 {
		return true
	}
	trimmed := strings.TrimSpace(firstChunk)
	if len(trimmed) <= 50 {
		return false
	}
	return strings.HasSuffix(trimmed, ".") || strings.HasSuffix(trimmed, "?")
}

func matchMembers(candidates []liveMember, names []string) []liveMember {
	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[strings.ToLower(strings.TrimSpace(n))] = true
	}
	var matched []liveMember
	for _, lm := range candidates {
		if wanted[strings.ToLower(idString(lm.member.AgentID))] {
			matched = append(matched, lm)
		}
	}
	dropped := len(names) - len(matched)
	if dropped > 0 {
		slog.Default().Warn("supervisor selector: unmatched agent names dropped", "requested", names, "matched", len(matched))
	}
	return matched
}
