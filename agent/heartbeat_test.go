package agent_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patterncore/pattern/agent"
	"github.com/patterncore/pattern/id"
)

func TestHeartbeatService_InvokesResumeForEachEvent(t *testing.T) {
	var mu sync.Mutex
	var resumed []id.AgentID

	svc, events := agent.NewHeartbeatService(4, func(ctx context.Context, agentID id.AgentID) error {
		mu.Lock()
		resumed = append(resumed, agentID)
		mu.Unlock()
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go svc.Run(ctx)

	agentID := id.NewAgentID()
	events <- agent.HeartbeatEvent{AgentID: agentID, ToolCallID: id.NewToolCallID(), ToolName: "echo"}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(resumed) == 1
	}, time.Second, time.Millisecond)

	mu.Lock()
	assert.Equal(t, agentID, resumed[0])
	mu.Unlock()
}

func TestHeartbeatService_StopsOnContextCancel(t *testing.T) {
	svc, _ := agent.NewHeartbeatService(1, func(ctx context.Context, agentID id.AgentID) error {
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}
