package agent_test

import (
	"context"
	"iter"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patterncore/pattern/agent"
	pctx "github.com/patterncore/pattern/context"
	"github.com/patterncore/pattern/entity"
	"github.com/patterncore/pattern/id"
	"github.com/patterncore/pattern/memory"
	"github.com/patterncore/pattern/model"
	"github.com/patterncore/pattern/tool"
)

func newTestStore(t *testing.T) *entity.Store {
	t.Helper()
	s := entity.New(":memory:")
	require.NoError(t, s.Init(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newTestAgentRecord(t *testing.T, store *entity.Store) (id.AgentID, id.UserID) {
	t.Helper()
	ctx := context.Background()
	userID := id.NewUserID()
	_, err := store.StoreUser(ctx, entity.User{ID: userID})
	require.NoError(t, err)
	agentID := id.NewAgentID()
	_, err = store.StoreAgent(ctx, entity.Agent{ID: agentID, UserID: userID, Name: "test-agent", Kind: entity.AgentKind{Tag: "assistant"}})
	require.NoError(t, err)
	return agentID, userID
}

// stubLLM replays a fixed sequence of final responses, one per
// GenerateContent call, repeating the last entry once exhausted. When
// block is set, each call waits for it to close (or ctx to cancel)
// before yielding, letting tests observe the agent mid-turn.
type stubLLM struct {
	responses []*model.Response
	calls     int
	block     <-chan struct{}
}

func (s *stubLLM) Name() string             { return "stub" }
func (s *stubLLM) Provider() model.Provider { return model.ProviderUnknown }
func (s *stubLLM) Close() error             { return nil }

func (s *stubLLM) GenerateContent(ctx context.Context, req *model.Request, stream bool) iter.Seq2[*model.Response, error] {
	idx := s.calls
	if idx >= len(s.responses) {
		idx = len(s.responses) - 1
	}
	s.calls++
	resp := s.responses[idx]
	return func(yield func(*model.Response, error) bool) {
		if s.block != nil {
			select {
			case <-s.block:
			case <-ctx.Done():
				yield(nil, ctx.Err())
				return
			}
		}
		yield(resp, nil)
	}
}

// echoTool always succeeds and reports a configurable usage rule.
type echoTool struct {
	rule tool.UsageRule
}

func (e *echoTool) Name() string               { return "echo" }
func (e *echoTool) Description() string        { return "echoes its input" }
func (e *echoTool) UsageRule() tool.UsageRule   { return e.rule }
func (e *echoTool) Examples() []tool.Example    { return nil }
func (e *echoTool) Schema() map[string]any      { return map[string]any{"type": "object"} }
func (e *echoTool) Call(ctx tool.Context, params map[string]any) (map[string]any, error) {
	return map[string]any{"echoed": params}, nil
}

func newTestAgent(t *testing.T, store *entity.Store, llm model.LLM, registry *tool.Registry, maxDepth int) *agent.Agent {
	t.Helper()
	ctx := context.Background()
	agentID, userID := newTestAgentRecord(t, store)
	mem, err := memory.New(ctx, store, agentID, userID)
	require.NoError(t, err)
	t.Cleanup(mem.Close)

	a, err := agent.New(ctx, agent.Options{
		Handle:            agent.Handle{AgentID: agentID, Memory: mem},
		Store:             store,
		Registry:          registry,
		LLM:               llm,
		SystemPrompt:      "You are a test agent.",
		ContextConfig:     pctx.Config{},
		MaxHeartbeatDepth: maxDepth,
	})
	require.NoError(t, err)
	return a
}

func TestProcessMessage_SimpleTextResponse(t *testing.T) {
	store := newTestStore(t)
	registry := tool.NewRegistry(nil)
	llm := &stubLLM{responses: []*model.Response{{Text: "hello there"}}}
	a := newTestAgent(t, store, llm, registry, 0)

	final, err := a.ProcessMessage(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "hello there", final)

	lifecycle, metadata := a.Snapshot()
	assert.Equal(t, "ready", lifecycle.State)
	assert.Equal(t, 1, metadata.TotalMessages)
	assert.Equal(t, 0, metadata.TotalToolCalls)
}

func TestProcessMessage_ToolCallThenContinues(t *testing.T) {
	store := newTestStore(t)
	registry := tool.NewRegistry(nil)
	require.NoError(t, registry.Register(&echoTool{rule: tool.UsageContinues}))

	llm := &stubLLM{responses: []*model.Response{
		{ToolCalls: []model.ToolCall{{ID: "call_1", Name: "echo", Args: map[string]any{"x": 1}}}},
		{Text: "done"},
	}}
	a := newTestAgent(t, store, llm, registry, 0)

	final, err := a.ProcessMessage(context.Background(), "use the tool")
	require.NoError(t, err)
	assert.Equal(t, "done", final)
	assert.Equal(t, 2, llm.calls)

	_, metadata := a.Snapshot()
	assert.Equal(t, 1, metadata.TotalToolCalls)
}

func TestProcessMessage_ToolCallEndsResponse(t *testing.T) {
	store := newTestStore(t)
	registry := tool.NewRegistry(nil)
	require.NoError(t, registry.Register(&echoTool{rule: tool.UsageEnds}))

	llm := &stubLLM{responses: []*model.Response{
		{ToolCalls: []model.ToolCall{{ID: "call_1", Name: "echo", Args: map[string]any{"x": 1}}}, Text: "using the tool"},
	}}
	a := newTestAgent(t, store, llm, registry, 0)

	final, err := a.ProcessMessage(context.Background(), "use the tool")
	require.NoError(t, err)
	assert.Equal(t, "using the tool", final)
	assert.Equal(t, 1, llm.calls)
}

func TestProcessMessage_RejectsWhenNotReady(t *testing.T) {
	store := newTestStore(t)
	registry := tool.NewRegistry(nil)
	block := make(chan struct{})
	llm := &stubLLM{responses: []*model.Response{{Text: "slow"}}, block: block}
	a := newTestAgent(t, store, llm, registry, 0)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = a.ProcessMessage(context.Background(), "first")
	}()

	require.Eventually(t, func() bool {
		lifecycle, _ := a.Snapshot()
		return lifecycle.State == "processing"
	}, time.Second, time.Millisecond)

	_, err := a.ProcessMessage(context.Background(), "second")
	require.Error(t, err)
	var notReady *agent.NotReadyError
	assert.ErrorAs(t, err, &notReady)

	close(block)
	<-done

	lifecycle, _ := a.Snapshot()
	assert.Equal(t, "ready", lifecycle.State)
}

func TestProcessMessage_HeartbeatDepthExceeded(t *testing.T) {
	store := newTestStore(t)
	registry := tool.NewRegistry(nil)
	require.NoError(t, registry.Register(&echoTool{rule: tool.UsageContinues}))

	llm := &stubLLM{responses: []*model.Response{
		{ToolCalls: []model.ToolCall{{ID: "call_1", Name: "echo", Args: map[string]any{}}}},
	}}
	a := newTestAgent(t, store, llm, registry, 2)

	_, err := a.ProcessMessage(context.Background(), "loop forever")
	require.Error(t, err)
	var exceeded *agent.HeartbeatDepthExceededError
	assert.ErrorAs(t, err, &exceeded)

	lifecycle, _ := a.Snapshot()
	assert.Equal(t, "ready", lifecycle.State)
}
