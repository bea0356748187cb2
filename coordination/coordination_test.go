package coordination_test

import (
	"context"
	"iter"
	"testing"

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

// stubLLM always returns the same fixed text, regardless of prompt —
// enough for coordination tests, which only care about which agents ran
// and what text came back, not multi-step tool use.
type stubLLM struct {
	text string
}

func (s *stubLLM) Name() string             { return "stub" }
func (s *stubLLM) Provider() model.Provider { return model.ProviderUnknown }
func (s *stubLLM) Close() error             { return nil }

func (s *stubLLM) GenerateContent(ctx context.Context, req *model.Request, stream bool) iter.Seq2[*model.Response, error] {
	return func(yield func(*model.Response, error) bool) {
		yield(&model.Response{Text: s.text}, nil)
	}
}

// newTestMember creates a persisted agent record, its own in-memory
// memory.Memory and agent.Agent runtime, and the entity.GroupMember
// describing it.
func newTestMember(t *testing.T, store *entity.Store, role entity.MemberRole, text string) (entity.GroupMember, *agent.Agent) {
	t.Helper()
	ctx := context.Background()
	userID := id.NewUserID()
	_, err := store.StoreUser(ctx, entity.User{ID: userID})
	require.NoError(t, err)
	agentID := id.NewAgentID()
	_, err = store.StoreAgent(ctx, entity.Agent{ID: agentID, UserID: userID, Name: "member", Kind: entity.AgentKind{Tag: "assistant"}})
	require.NoError(t, err)

	mem, err := memory.New(ctx, store, agentID, userID)
	require.NoError(t, err)
	t.Cleanup(mem.Close)

	a, err := agent.New(ctx, agent.Options{
		Handle:        agent.Handle{AgentID: agentID, Memory: mem},
		Store:         store,
		Registry:      tool.NewRegistry(nil),
		LLM:           &stubLLM{text: text},
		SystemPrompt:  "test member",
		ContextConfig: pctx.Config{},
	})
	require.NoError(t, err)

	return entity.GroupMember{AgentID: agentID, Role: role, IsActive: true}, a
}

func lookupFor(pairs map[id.AgentID]*agent.Agent) func(id.AgentID) (*agent.Agent, bool) {
	return func(agentID id.AgentID) (*agent.Agent, bool) {
		a, ok := pairs[agentID]
		return a, ok
	}
}

func drain[T any](seq iter.Seq2[T, error]) ([]T, error) {
	var out []T
	for v, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, v)
	}
	return out, nil
}
