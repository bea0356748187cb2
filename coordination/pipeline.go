package coordination

import (
	"context"
	"errors"
	"iter"
	"time"

	"github.com/patterncore/pattern/entity"
	"github.com/patterncore/pattern/id"
)

// Pipeline runs its configured stages against a single invocation of a
// group, carrying each sequential stage's output forward as the next
// stage's input message. ParallelStages fans every stage out
// concurrently instead and joins their results.
type Pipeline struct{}

func NewPipeline() *Pipeline { return &Pipeline{} }

func (p *Pipeline) Pattern() PatternKind { return PatternPipeline }

var (
	errNoStages        = errors.New("coordination: pipeline has no configured stages")
	errPipelineAborted = errors.New("coordination: pipeline aborted")
)

func (p *Pipeline) RouteMessage(ctx context.Context, req RouteRequest) iter.Seq2[GroupResponseEvent, error] {
	return func(yield func(GroupResponseEvent, error) bool) {
		var cfg PipelineConfig
		if err := decodeConfig(req.Group.PatternConfig, &cfg); err != nil {
			yield(GroupResponseEvent{Kind: EventGroupError, Err: err}, err)
			return
		}
		if len(cfg.Stages) == 0 {
			yield(GroupResponseEvent{Kind: EventGroupError, Err: errNoStages}, errNoStages)
			return
		}

		if !yield(GroupResponseEvent{
			Kind:       EventGroupStarted,
			GroupID:    req.Group.ID,
			Pattern:    PatternPipeline,
			AgentCount: len(req.Members),
		}, nil) {
			return
		}

		state := PipelineState{StartedAt: time.Now()}
		var allResponses []AgentResponse
		var aborted bool
		if cfg.ParallelStages {
			allResponses, aborted = p.runParallel(ctx, req, cfg.Stages, &state, yield)
		} else {
			allResponses, aborted = p.runSequential(ctx, req, cfg.Stages, req.Message, &state, yield)
		}

		complete := GroupResponseEvent{
			Kind:           EventGroupComplete,
			GroupID:        req.Group.ID,
			Pattern:        PatternPipeline,
			AgentResponses: allResponses,
		}
		if aborted {
			complete.Err = errPipelineAborted
			complete.Recoverable = false
		} else {
			state = PipelineState{} // completed pipelines clear accumulated state
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

func (p *Pipeline) runSequential(ctx context.Context, req RouteRequest, stages []PipelineStage, carry string, state *PipelineState, yield func(GroupResponseEvent, error) bool) ([]AgentResponse, bool) {
	var all []AgentResponse
	for i, stage := range stages {
		state.CurrentStage = i
		result, output, ok, abort := p.runStage(ctx, req, stage, carry, yield)
		state.Results = append(state.Results, result)
		if ok {
			all = append(all, AgentResponse{AgentID: result.agentID, Role: stage.Name, Text: result.Output})
			carry = output
		}
		if abort {
			return all, true
		}
	}
	return all, false
}

func (p *Pipeline) runParallel(ctx context.Context, req RouteRequest, stages []PipelineStage, state *PipelineState, yield func(GroupResponseEvent, error) bool) ([]AgentResponse, bool) {
	type outcome struct {
		result stageOutcome
		ok     bool
		abort  bool
	}
	// Sibling stages share one cancellable context: a StageFailAbort
	// verdict from any stage cancels the rest rather than letting them
	// run to completion after the pipeline has already decided to abort.
	groupCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	outcomes := make([]outcome, len(stages))
	done := make(chan int, len(stages))
	for i, stage := range stages {
		i, stage := i, stage
		go func() {
			result, _, ok, abort := p.runStage(groupCtx, req, stage, req.Message, yield)
			outcomes[i] = outcome{result: result, ok: ok, abort: abort}
			done <- i
		}()
	}
	aborted := false
	for range stages {
		i := <-done
		if outcomes[i].abort {
			aborted = true
			cancel()
		}
	}

	var all []AgentResponse
	for i, o := range outcomes {
		state.Results = append(state.Results, o.result.StageResult)
		if o.ok {
			all = append(all, AgentResponse{AgentID: o.result.agentID, Role: stages[i].Name, Text: o.result.Output})
		}
	}
	return all, aborted
}

// stageOutcome pairs a StageResult (the persisted/opaque-map shape) with
// the resolved id.AgentID that ran it, which StageResult itself only
// carries as a plain string.
type stageOutcome struct {
	StageResult
	agentID id.AgentID
}

// runStage drives one stage's candidate agent IDs in order, retrying or
// falling back per OnFailure, and returns the stage's outcome, the
// output text to carry forward, whether it produced usable output, and
// whether the pipeline must abort.
func (p *Pipeline) runStage(ctx context.Context, req RouteRequest, stage PipelineStage, input string, yield func(GroupResponseEvent, error) bool) (stageOutcome, string, bool, bool) {
	attempts := stage.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	for attempt := 0; attempt < attempts; attempt++ {
		for _, candidateID := range stage.AgentIDs {
			out, ok, abort := p.tryCandidate(ctx, req, stage, candidateID, input, yield)
			if abort {
				return out, input, false, true
			}
			if ok {
				return out, out.Output, true, false
			}
		}
	}

	switch stage.OnFailure {
	case StageFailFallback:
		if stage.FallbackID != "" {
			out, ok, abort := p.tryCandidate(ctx, req, stage, stage.FallbackID, input, yield)
			if abort {
				return out, input, false, true
			}
			if ok {
				return out, out.Output, true, false
			}
		}
		return stageOutcome{StageResult: StageResult{StageName: stage.Name}}, input, false, false
	case StageFailAbort:
		return stageOutcome{StageResult: StageResult{StageName: stage.Name}}, input, false, true
	default: // StageFailSkip, or unset
		return stageOutcome{StageResult: StageResult{StageName: stage.Name}}, input, false, false
	}
}

func (p *Pipeline) tryCandidate(ctx context.Context, req RouteRequest, stage PipelineStage, candidateID, input string, yield func(GroupResponseEvent, error) bool) (stageOutcome, bool, bool) {
	agentID, err := id.AgentIDFromString(candidateID)
	if err != nil {
		return stageOutcome{StageResult: StageResult{StageName: stage.Name, AgentID: candidateID}}, false, false
	}
	a, ok := req.Lookup(agentID)
	if !ok {
		return stageOutcome{StageResult: StageResult{StageName: stage.Name, AgentID: candidateID}}, false, false
	}

	stageCtx := ctx
	if stage.Timeout > 0 {
		var cancel context.CancelFunc
		stageCtx, cancel = context.WithTimeout(ctx, stage.Timeout)
		defer cancel()
	}

	start := time.Now()
	lm := liveMember{member: memberFor(req, agentID), agent: a}
	var collected []memberResult
	for ev, err := range mergeAgentStreams(stageCtx, []liveMember{lm}, input, &collected) {
		if !yield(ev, err) {
			return stageOutcome{StageResult: StageResult{StageName: stage.Name, AgentID: candidateID}, agentID: agentID}, false, true
		}
	}
	if len(collected) == 1 && collected[0].completed {
		return stageOutcome{
			StageResult: StageResult{
				StageName: stage.Name,
				AgentID:   candidateID,
				Success:   true,
				Duration:  time.Since(start),
				Output:    collected[0].response.Text,
			},
			agentID: agentID,
		}, true, false
	}
	return stageOutcome{StageResult: StageResult{StageName: stage.Name, AgentID: candidateID}, agentID: agentID}, false, false
}

// UpdateState is a no-op for Pipeline: stage timing, ordering, and
// failure handling all require state RouteMessage already has in hand,
// so RouteMessage computes and emits StateChanges directly rather than
// routing through this narrower signature.
func (p *Pipeline) UpdateState(current map[string]any, responses []AgentResponse) (map[string]any, bool) {
	return current, false
}

func memberFor(req RouteRequest, agentID id.AgentID) entity.GroupMember {
	for _, m := range req.Members {
		if m.AgentID == agentID {
			return m
		}
	}
	return entity.GroupMember{AgentID: agentID}
}
