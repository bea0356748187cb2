package coordination

import (
	"context"
	"fmt"
	"iter"
	"math/rand"
	"time"
)

// Voting opens a VotingSession on the first message routed to a group,
// broadcasting a proposal derived from that message, then treats every
// later routed message as a round of ballots collected via Parse from
// each live member's response text. A nil VoteParser defaults to
// parseVoteLine.
type Voting struct {
	Parse VoteParser
}

func NewVoting() *Voting { return &Voting{Parse: parseVoteLine} }

func (v *Voting) Pattern() PatternKind { return PatternVoting }

func (v *Voting) parser() VoteParser {
	if v.Parse != nil {
		return v.Parse
	}
	return parseVoteLine
}

func (v *Voting) RouteMessage(ctx context.Context, req RouteRequest) iter.Seq2[GroupResponseEvent, error] {
	return func(yield func(GroupResponseEvent, error) bool) {
		var cfg VotingConfig
		if err := decodeConfig(req.Group.PatternConfig, &cfg); err != nil {
			yield(GroupResponseEvent{Kind: EventGroupError, Err: err}, err)
			return
		}
		var state VotingState
		if err := decodeState(req.Group.PatternState, &state); err != nil {
			yield(GroupResponseEvent{Kind: EventGroupError, Err: err}, err)
			return
		}

		live := liveMembers(req)
		if len(live) == 0 {
			yield(GroupResponseEvent{Kind: EventGroupError, Err: errNoLiveMembers}, errNoLiveMembers)
			return
		}

		if !yield(GroupResponseEvent{
			Kind:       EventGroupStarted,
			GroupID:    req.Group.ID,
			Pattern:    PatternVoting,
			AgentCount: len(live),
		}, nil) {
			return
		}

		opening := state.Session == nil
		if opening {
			state.Session = newVotingSession(req.Message, cfg)
		}

		var collected []memberResult
		for ev, err := range mergeAgentStreams(ctx, live, req.Message, &collected) {
			if !yield(ev, err) {
				return
			}
		}

		if !opening {
			for _, c := range collected {
				if !c.completed {
					continue
				}
				if optionID, ok := v.parser()(c.response.Text); ok {
					state.Session.Votes[idString(c.response.AgentID)] = Vote{
						OptionID: optionID,
						Weight:   1.0,
						CastAt:   time.Now(),
					}
				}
			}
		}

		responses := make([]AgentResponse, 0, len(collected))
		for _, c := range collected {
			if c.completed {
				responses = append(responses, c.response)
			}
		}

		complete := GroupResponseEvent{
			Kind:           EventGroupComplete,
			GroupID:        req.Group.ID,
			Pattern:        PatternVoting,
			AgentResponses: responses,
		}

		quorumReached := len(state.Session.Votes) >= cfg.Quorum
		deadlinePassed := !state.Session.Deadline.IsZero() && time.Now().After(state.Session.Deadline)
		belowQuorumTimeout := deadlinePassed && !quorumReached

		if quorumReached || deadlinePassed {
			var result VotingResult
			if belowQuorumTimeout && !cfg.Rules.AllowBelowQuorumOnTimeout {
				result = VotingResult{NoDecision: true}
			} else {
				result = tallyVotes(state.Session, cfg.Rules)
			}
			complete.Text = fmt.Sprintf("voting closed: winner=%q tie_broken=%v no_decision=%v", result.WinningOption, result.TieBroken, result.NoDecision)
			state.Session = nil
		}

		stateChanges, err := encodeState(state)
		if err != nil {
			yield(GroupResponseEvent{Kind: EventGroupError, Err: err}, err)
			return
		}
		complete.StateChanges = stateChanges

		yield(complete, nil)
	}
}

func newVotingSession(message string, cfg VotingConfig) *VotingSession {
	options := cfg.DefaultOptions
	if len(options) == 0 {
		options = []VoteOption{
			{ID: "approve", Description: "Approve"},
			{ID: "reject", Description: "Reject"},
		}
	}
	var deadline time.Time
	if cfg.Rules.VotingTimeout > 0 {
		deadline = time.Now().Add(cfg.Rules.VotingTimeout)
	}
	return &VotingSession{
		ID:        fmt.Sprintf("vote-%d", time.Now().UnixNano()),
		Proposal:  VotingProposal{Content: message, Options: options},
		Votes:     make(map[string]Vote),
		StartedAt: time.Now(),
		Deadline:  deadline,
	}
}

// tallyVotes sums each option's cast weight and resolves ties per
// VotingRules.TieBreaker.
func tallyVotes(session *VotingSession, rules VotingRules) VotingResult {
	tally := make(map[string]float64)
	firstCast := make(map[string]time.Time)
	for _, vote := range session.Votes {
		tally[vote.OptionID] += vote.Weight
		if existing, ok := firstCast[vote.OptionID]; !ok || vote.CastAt.Before(existing) {
			firstCast[vote.OptionID] = vote.CastAt
		}
	}

	var best float64
	var leaders []string
	for option, weight := range tally {
		switch {
		case weight > best:
			best = weight
			leaders = []string{option}
		case weight == best && weight > 0:
			leaders = append(leaders, option)
		}
	}

	if len(leaders) == 0 {
		return VotingResult{Tally: tally, NoDecision: true}
	}
	if len(leaders) == 1 {
		return VotingResult{WinningOption: leaders[0], Tally: tally}
	}

	switch rules.TieBreaker {
	case TieBreakRandom:
		return VotingResult{WinningOption: leaders[rand.Intn(len(leaders))], Tally: tally, TieBroken: true}
	case TieBreakFirstVote:
		winner := leaders[0]
		for _, option := range leaders[1:] {
			if firstCast[option].Before(firstCast[winner]) {
				winner = option
			}
		}
		return VotingResult{WinningOption: winner, Tally: tally, TieBroken: true}
	case TieBreakSpecificAgent:
		if vote, ok := session.Votes[rules.TieBreakerAgentID]; ok {
			for _, option := range leaders {
				if option == vote.OptionID {
					return VotingResult{WinningOption: option, Tally: tally, TieBroken: true}
				}
			}
		}
		return VotingResult{Tally: tally, NoDecision: true}
	default: // TieBreakNoDecision or unset
		return VotingResult{Tally: tally, NoDecision: true}
	}
}

// UpdateState applies responses as a fresh round of ballots against
// whatever session is open in current, without needing a live stream —
// RouteMessage already performs this inline for its own turn; this
// entry point exists for a caller recomputing pattern state from
// already-collected AgentResponses (e.g. replaying a persisted turn).
func (v *Voting) UpdateState(current map[string]any, responses []AgentResponse) (map[string]any, bool) {
	var state VotingState
	if err := decodeState(current, &state); err != nil {
		return current, false
	}
	if state.Session == nil || len(responses) == 0 {
		return current, false
	}
	for _, r := range responses {
		if optionID, ok := v.parser()(r.Text); ok {
			state.Session.Votes[idString(r.AgentID)] = Vote{OptionID: optionID, Weight: 1.0, CastAt: time.Now()}
		}
	}
	next, err := encodeState(state)
	if err != nil {
		return current, false
	}
	return next, true
}
