package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"sync"
	"time"

	pctx "github.com/patterncore/pattern/context"
	"github.com/patterncore/pattern/entity"
	"github.com/patterncore/pattern/id"
	"github.com/patterncore/pattern/model"
	"github.com/patterncore/pattern/tool"
)

// defaultMaxHeartbeatDepth bounds the tool-call/heartbeat re-entry chain
// of a single turn.
const defaultMaxHeartbeatDepth = 16

// Options configures a new Agent.
type Options struct {
	Handle        Handle
	Store         *entity.Store
	Registry      *tool.Registry
	LLM           model.LLM
	SystemPrompt  string
	ContextConfig pctx.Config

	// MaxHeartbeatDepth caps how many times a single turn may re-enter
	// step 3 due to a continuing tool's usage rule. Zero uses the
	// package default of 16.
	MaxHeartbeatDepth int

	// Heartbeats, when non-nil, receives a HeartbeatEvent for every
	// executed tool whose usage rule is continuing, in addition to the
	// in-turn heartbeat loop.
	Heartbeats chan<- HeartbeatEvent
}

// Agent is one agent's runtime state: lifecycle, history, and metadata
// guarded by a single mutex.
type Agent struct {
	mu sync.Mutex

	handle   Handle
	store    *entity.Store
	registry *tool.Registry
	llm      model.LLM

	systemPrompt string
	cfg          pctx.Config

	lifecycle entity.AgentLifecycle
	history   *pctx.History
	metadata  Metadata

	maxHeartbeatDepth int
	heartbeats        chan<- HeartbeatEvent
}

// New constructs an Agent, loading its non-archived message history from
// store.
func New(ctx context.Context, opts Options) (*Agent, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("agent: store is required")
	}
	if opts.Registry == nil {
		return nil, fmt.Errorf("agent: registry is required")
	}
	if opts.LLM == nil {
		return nil, fmt.Errorf("agent: llm is required")
	}
	if opts.Handle.AgentID.IsNil() {
		return nil, fmt.Errorf("agent: handle.AgentID is required")
	}

	depth := opts.MaxHeartbeatDepth
	if depth <= 0 {
		depth = defaultMaxHeartbeatDepth
	}

	cfg := opts.ContextConfig
	cfg.SetDefaults()
	cfg.BaseInstructions = opts.SystemPrompt

	messages, err := opts.Store.ListMessages(ctx, entity.MessageFilter{AgentID: opts.Handle.AgentID})
	if err != nil {
		return nil, fmt.Errorf("agent: load history: %w", err)
	}

	now := time.Now().UTC()
	return &Agent{
		handle:            opts.Handle,
		store:             opts.Store,
		registry:          opts.Registry,
		llm:               opts.LLM,
		systemPrompt:      opts.SystemPrompt,
		cfg:               cfg,
		lifecycle:         entity.AgentLifecycle{State: "ready"},
		history:           &pctx.History{Messages: messages, Strategy: cfg.Strategy},
		metadata:          Metadata{CreatedAt: now, LastActive: now},
		maxHeartbeatDepth: depth,
		heartbeats:        opts.Heartbeats,
	}, nil
}

// Handle returns the agent's cheap clonable identity+memory reference.
func (a *Agent) Handle() Handle { return a.handle }

// Snapshot returns a copy of the agent's current lifecycle and metadata.
func (a *Agent) Snapshot() (entity.AgentLifecycle, Metadata) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lifecycle, a.metadata
}

// ProcessMessage runs ProcessMessageStream to completion, returning the
// assistant's final text.
func (a *Agent) ProcessMessage(ctx context.Context, userText string) (string, error) {
	var final string
	for ev, err := range a.ProcessMessageStream(ctx, userText) {
		if err != nil {
			return final, err
		}
		if ev.Kind == EventComplete {
			final = ev.FinalText
		}
	}
	return final, nil
}

// ProcessMessageStream runs the turn's processing loop, yielding a
// ResponseEvent per model/tool step.
func (a *Agent) ProcessMessageStream(ctx context.Context, userText string) iter.Seq2[ResponseEvent, error] {
	return func(yield func(ResponseEvent, error) bool) {
		if err := a.enterProcessing(); err != nil {
			yield(ResponseEvent{Kind: EventError, Err: err}, err)
			return
		}

		if _, err := a.appendMessage(ctx, entity.Message{
			ID:      id.NewMessageID(),
			AgentID: a.handle.AgentID,
			Role:    entity.RoleUser,
			Content: entity.MessageContent{Kind: "text", Text: userText},
		}); err != nil {
			a.leaveProcessing()
			yield(ResponseEvent{Kind: EventError, Err: err}, err)
			return
		}

		depth := 0
		for {
			if cancelled(ctx) {
				a.finishCancelled(ctx)
				yield(ResponseEvent{Kind: EventError, Err: ErrCancelled, Recoverable: true}, ErrCancelled)
				return
			}

			agentCtx, err := a.buildContext(ctx)
			if err != nil {
				a.leaveProcessing()
				yield(ResponseEvent{Kind: EventError, Err: err}, err)
				return
			}

			if cancelled(ctx) {
				a.finishCancelled(ctx)
				yield(ResponseEvent{Kind: EventError, Err: ErrCancelled, Recoverable: true}, ErrCancelled)
				return
			}

			final, err := a.callModel(ctx, agentCtx, yield)
			if err != nil {
				a.leaveProcessing()
				yield(ResponseEvent{Kind: EventError, Err: err}, err)
				return
			}
			if final == nil {
				// streaming yielded false: caller stopped iteration early.
				a.leaveProcessing()
				return
			}

			if _, err := a.appendMessage(ctx, assistantMessage(a.handle.AgentID, final)); err != nil {
				a.leaveProcessing()
				yield(ResponseEvent{Kind: EventError, Err: err}, err)
				return
			}

			if !final.HasToolCalls() {
				a.finishComplete()
				yield(ResponseEvent{Kind: EventComplete, FinalText: final.Text}, nil)
				return
			}

			continues, ok := a.runToolCalls(ctx, final.ToolCalls, yield)
			if !ok {
				a.leaveProcessing()
				return
			}
			if !continues {
				a.finishComplete()
				yield(ResponseEvent{Kind: EventComplete, FinalText: final.Text}, nil)
				return
			}

			depth++
			if depth > a.maxHeartbeatDepth {
				err := &HeartbeatDepthExceededError{AgentID: a.handle.AgentID.String(), Depth: a.maxHeartbeatDepth}
				a.leaveProcessing()
				yield(ResponseEvent{Kind: EventError, Err: err}, err)
				return
			}

			if cancelled(ctx) {
				a.finishCancelled(ctx)
				yield(ResponseEvent{Kind: EventError, Err: ErrCancelled, Recoverable: true}, ErrCancelled)
				return
			}
		}
	}
}

func cancelled(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

func (a *Agent) enterProcessing() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.lifecycle.Ready() {
		return &NotReadyError{AgentID: a.handle.AgentID.String(), State: a.lifecycle.State}
	}
	a.lifecycle.State = "processing"
	a.metadata.TotalMessages++
	a.metadata.LastActive = time.Now().UTC()
	return nil
}

func (a *Agent) leaveProcessing() {
	a.mu.Lock()
	a.lifecycle.State = "ready"
	a.mu.Unlock()
}

func (a *Agent) finishComplete() {
	a.mu.Lock()
	a.lifecycle.State = "ready"
	a.metadata.LastActive = time.Now().UTC()
	a.mu.Unlock()
}

func (a *Agent) finishCancelled(ctx context.Context) {
	msg := entity.Message{
		ID:       id.NewMessageID(),
		AgentID:  a.handle.AgentID,
		Role:     entity.RoleSystem,
		Content:  entity.MessageContent{Kind: "text", Text: "[turn cancelled]"},
		Metadata: map[string]any{"cancelled": true},
	}
	// Use a background context: the turn's own ctx is what cancelled,
	// so persisting the synthetic message must not depend on it.
	_, _ = a.appendMessage(context.Background(), msg)
	a.leaveProcessing()
}

func (a *Agent) appendMessage(ctx context.Context, m entity.Message) (entity.Message, error) {
	persisted, err := a.store.AppendMessage(ctx, m)
	if err != nil {
		return entity.Message{}, fmt.Errorf("agent: persist message: %w", err)
	}
	a.mu.Lock()
	a.history.Messages = append(a.history.Messages, persisted)
	a.mu.Unlock()
	return persisted, nil
}

// buildContext runs the context builder over the agent's current
// history and memory blocks.
func (a *Agent) buildContext(ctx context.Context) (pctx.AgentContext, error) {
	a.mu.Lock()
	history := a.history
	cfg := a.cfg
	a.mu.Unlock()

	var blocks []entity.MemoryBlock
	var lastModified time.Time
	if a.handle.Memory != nil {
		for _, b := range a.handle.Memory.ListBlocks() {
			if b.Type != entity.MemoryBlockCore {
				continue
			}
			blocks = append(blocks, b)
			if b.UpdatedAt.After(lastModified) {
				lastModified = b.UpdatedAt
			}
		}
	}

	toolInfos := pctx.FromDescriptors(a.registry.ToolDescriptors(), func(name string) tool.UsageRule {
		t, ok := a.registry.Get(name)
		if !ok {
			return tool.UsageNeutral
		}
		return t.UsageRule()
	})

	out, err := pctx.Build(ctx, cfg, blocks, toolInfos, history, time.Now().UTC(), lastModified, 0, nil)
	if err != nil {
		return pctx.AgentContext{}, err
	}

	a.mu.Lock()
	if out.Metadata.CompressionEvents > 0 {
		a.metadata.CompressionEvents += out.Metadata.CompressionEvents
	}
	a.metadata.ContextRebuilds++
	a.mu.Unlock()

	return out, nil
}

// callModel streams the model's response for one iteration, forwarding
// text chunks as ResponseEvents, returning the aggregated
// final (non-partial) Response. A nil, nil-error return means the
// caller's yield stopped iteration early.
func (a *Agent) callModel(ctx context.Context, agentCtx pctx.AgentContext, yield func(ResponseEvent, error) bool) (*model.Response, error) {
	req := &model.Request{
		SystemInstruction: agentCtx.SystemPrompt,
		Messages:          agentCtx.Messages,
		Tools:             a.registry.ToolDescriptors(),
	}

	var final *model.Response
	for resp, err := range a.llm.GenerateContent(ctx, req, true) {
		if err != nil {
			return nil, err
		}
		if cancelled(ctx) {
			return nil, ErrCancelled
		}
		if resp.Partial {
			if resp.Text == "" {
				continue
			}
			if !yield(ResponseEvent{Kind: EventTextChunk, Text: resp.Text}, nil) {
				return nil, nil
			}
			continue
		}
		final = resp
	}
	if final == nil {
		final = &model.Response{}
	}
	return final, nil
}

// runToolCalls executes every requested tool call, persists a
// tool-response message, and reports whether any executed
// tool's usage rule demands a heartbeat continuation. The second return
// value is false when the caller's yield stopped iteration early.
func (a *Agent) runToolCalls(ctx context.Context, calls []model.ToolCall, yield func(ResponseEvent, error) bool) (continues bool, ok bool) {
	infos := make([]ToolCallInfo, 0, len(calls))
	for _, c := range calls {
		infos = append(infos, ToolCallInfo{ID: c.ID, Name: c.Name, Args: c.Args})
	}
	if !yield(ResponseEvent{Kind: EventToolCalls, ToolCalls: infos}, nil) {
		return false, false
	}

	var parts []entity.MessagePart
	for _, call := range calls {
		if cancelled(ctx) {
			a.finishCancelled(ctx)
			yield(ResponseEvent{Kind: EventError, Err: ErrCancelled, Recoverable: true}, ErrCancelled)
			return false, false
		}

		callID := id.NewToolCallID()
		if !yield(ResponseEvent{Kind: EventToolCallStarted, ToolCall: ToolCallInfo{ID: call.ID, Name: call.Name, Args: call.Args}}, nil) {
			return false, false
		}

		var callerUserID string
		if a.handle.Memory != nil {
			callerUserID = a.handle.Memory.UserID().String()
		}
		meta := tool.ExecutionMeta{ToolCallID: callID.String(), CallerUserID: callerUserID}
		result, rule, err := a.registry.Execute(ctx, call.Name, call.Args, meta, a.handle.Memory)

		a.mu.Lock()
		a.metadata.TotalToolCalls++
		a.mu.Unlock()

		info := ToolCallInfo{ID: call.ID, Name: call.Name, Args: call.Args, Result: result, Err: err}
		if !yield(ResponseEvent{Kind: EventToolCallComplete, ToolCall: info}, nil) {
			return false, false
		}

		part := entity.MessagePart{Kind: entity.PartToolResponse, ToolCallID: callID, ToolName: call.Name}
		if err != nil {
			part.ToolError = err.Error()
		} else {
			if resultJSON, marshalErr := json.Marshal(result); marshalErr == nil {
				part.ToolResult = string(resultJSON)
			}
			if rule == tool.UsageContinues {
				continues = true
				a.emitHeartbeat(ctx, callID, call.Name)
			}
		}
		parts = append(parts, part)
	}

	toolMsg := entity.Message{
		ID:      id.NewMessageID(),
		AgentID: a.handle.AgentID,
		Role:    entity.RoleTool,
		Content: entity.MessageContent{Kind: "tool_responses", Parts: parts},
	}
	if _, err := a.appendMessage(ctx, toolMsg); err != nil {
		yield(ResponseEvent{Kind: EventError, Err: err}, err)
		return false, false
	}

	return continues, true
}

func (a *Agent) emitHeartbeat(ctx context.Context, callID id.ToolCallID, toolName string) {
	if a.heartbeats == nil {
		return
	}
	ev := HeartbeatEvent{AgentID: a.handle.AgentID, ToolCallID: callID, ToolName: toolName}
	select {
	case a.heartbeats <- ev:
	case <-ctx.Done():
	}
}

// assistantMessage converts one aggregated model.Response into the
// entity.Message persisted for it: a plain text message, or a
// tool_calls message when the model requested tool invocations.
func assistantMessage(agentID id.AgentID, resp *model.Response) entity.Message {
	if !resp.HasToolCalls() {
		return entity.Message{
			ID:      id.NewMessageID(),
			AgentID: agentID,
			Role:    entity.RoleAssistant,
			Content: entity.MessageContent{Kind: "text", Text: resp.Text},
		}
	}

	parts := make([]entity.MessagePart, 0, len(resp.ToolCalls))
	for _, c := range resp.ToolCalls {
		argsJSON, _ := json.Marshal(c.Args)
		parts = append(parts, entity.MessagePart{
			Kind:         entity.PartToolCall,
			ToolCallID:   id.NewToolCallID(),
			ToolName:     c.Name,
			ToolArgsJSON: string(argsJSON),
		})
	}
	return entity.Message{
		ID:      id.NewMessageID(),
		AgentID: agentID,
		Role:    entity.RoleAssistant,
		Content: entity.MessageContent{Kind: "tool_calls", Text: resp.Text, Parts: parts},
	}
}
