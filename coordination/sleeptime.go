package coordination

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/patterncore/pattern/id"
)

// TriggerEvaluator decides whether one SleeptimeTrigger fires, given the
// pattern's current state. The zero Sleeptime only wires an evaluator
// for TriggerTimeElapsed; PatternDetected/ThresholdExceeded/
// ConstellationActivity/Custom need telemetry this package's RouteMessage
// signature doesn't carry (message-routing call, not a metrics feed), so
// callers with that data register their own evaluator under the
// matching TriggerConditionKind.
type TriggerEvaluator func(now time.Time, trigger SleeptimeTrigger, state SleeptimeState) bool

// Sleeptime is the background-monitor pattern: a caller-driven tick
// (RouteMessage called periodically with a synthesized tick message)
// evaluates configured triggers and, when one fires, routes a
// synthesized "sleeptime check" message to an intervention agent.
type Sleeptime struct {
	Evaluators map[TriggerConditionKind]TriggerEvaluator
}

func NewSleeptime() *Sleeptime {
	return &Sleeptime{
		Evaluators: map[TriggerConditionKind]TriggerEvaluator{
			TriggerTimeElapsed: evalTimeElapsed,
		},
	}
}

func evalTimeElapsed(now time.Time, trigger SleeptimeTrigger, state SleeptimeState) bool {
	if trigger.Condition.Duration <= 0 {
		return false
	}
	if state.LastCheck.IsZero() {
		return true
	}
	return now.Sub(state.LastCheck) >= trigger.Condition.Duration
}

func (s *Sleeptime) Pattern() PatternKind { return PatternSleeptime }

func (s *Sleeptime) RouteMessage(ctx context.Context, req RouteRequest) iter.Seq2[GroupResponseEvent, error] {
	return func(yield func(GroupResponseEvent, error) bool) {
		var cfg SleeptimeConfig
		if err := decodeConfig(req.Group.PatternConfig, &cfg); err != nil {
			yield(GroupResponseEvent{Kind: EventGroupError, Err: err}, err)
			return
		}
		var state SleeptimeState
		if err := decodeState(req.Group.PatternState, &state); err != nil {
			yield(GroupResponseEvent{Kind: EventGroupError, Err: err}, err)
			return
		}

		now := time.Now()
		fired := s.highestPriorityFiring(now, cfg.Triggers, state)

		if !yield(GroupResponseEvent{
			Kind:       EventGroupStarted,
			GroupID:    req.Group.ID,
			Pattern:    PatternSleeptime,
			AgentCount: len(req.Members),
		}, nil) {
			return
		}

		var responses []AgentResponse
		if fired != nil {
			live := liveMembers(req)
			target, ok := s.pickIntervener(live, cfg.InterventionAgentID, state)
			if ok {
				checkMessage := fmt.Sprintf(
					"sleeptime check: trigger %q fired (priority %d)\ncontext: %s\nrecent activity: %s",
					fired.Name, fired.Priority, req.Message, summarizeActivity(state),
				)
				var collected []memberResult
				for ev, err := range mergeAgentStreams(ctx, []liveMember{target}, checkMessage, &collected) {
					if !yield(ev, err) {
						return
					}
				}
				for _, c := range collected {
					if c.completed {
						responses = append(responses, c.response)
					}
				}
				if state.LastActiveBy == nil {
					state.LastActiveBy = make(map[string]time.Time)
				}
				state.LastActiveBy[idString(target.member.AgentID)] = now
				state.TriggerHistory = append(state.TriggerHistory, TriggerEvent{
					TriggerName:           fired.Name,
					FiredAt:               now,
					InterventionActivated: true,
				})
			} else {
				state.TriggerHistory = append(state.TriggerHistory, TriggerEvent{
					TriggerName:           fired.Name,
					FiredAt:               now,
					InterventionActivated: false,
				})
			}
		}
		state.LastCheck = now

		stateChanges, err := encodeState(state)
		if err != nil {
			yield(GroupResponseEvent{Kind: EventGroupError, Err: err}, err)
			return
		}
		yield(GroupResponseEvent{
			Kind:           EventGroupComplete,
			GroupID:        req.Group.ID,
			Pattern:        PatternSleeptime,
			AgentResponses: responses,
			StateChanges:   stateChanges,
		}, nil)
	}
}

func (s *Sleeptime) UpdateState(current map[string]any, responses []AgentResponse) (map[string]any, bool) {
	var state SleeptimeState
	if err := decodeState(current, &state); err != nil {
		return current, false
	}
	if len(responses) == 0 {
		return current, false
	}
	next, err := encodeState(state)
	if err != nil {
		return current, false
	}
	return next, true
}

func (s *Sleeptime) highestPriorityFiring(now time.Time, triggers []SleeptimeTrigger, state SleeptimeState) *SleeptimeTrigger {
	var best *SleeptimeTrigger
	for i := range triggers {
		t := triggers[i]
		eval, ok := s.Evaluators[t.Condition.Kind]
		if !ok || !eval(now, t, state) {
			continue
		}
		if best == nil || t.Priority > best.Priority {
			best = &triggers[i]
		}
	}
	return best
}

// pickIntervener prefers Config.InterventionAgentID when it resolves to
// a live member, else the live member least recently routed to per
// state.LastActiveBy (a member absent from that map counts as never
// active, so it's picked first).
func (s *Sleeptime) pickIntervener(live []liveMember, configured string, state SleeptimeState) (liveMember, bool) {
	if configured != "" {
		agentID, err := id.AgentIDFromString(configured)
		if err == nil {
			for _, lm := range live {
				if lm.member.AgentID == agentID {
					return lm, true
				}
			}
		}
	}
	if len(live) == 0 {
		return liveMember{}, false
	}
	oldest := live[0]
	oldestTime := state.LastActiveBy[idString(oldest.member.AgentID)]
	for _, lm := range live[1:] {
		t := state.LastActiveBy[idString(lm.member.AgentID)]
		if t.Before(oldestTime) {
			oldest = lm
			oldestTime = t
		}
	}
	return oldest, true
}

func summarizeActivity(state SleeptimeState) string {
	if len(state.TriggerHistory) == 0 {
		return "no prior triggers recorded"
	}
	last := state.TriggerHistory[len(state.TriggerHistory)-1]
	return fmt.Sprintf("last trigger %q at %s", last.TriggerName, last.FiredAt.Format(time.RFC3339))
}
