package datasource_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patterncore/pattern/datasource"
	"github.com/patterncore/pattern/entity"
	"github.com/patterncore/pattern/id"
)

func newTestStore(t *testing.T) *entity.Store {
	t.Helper()
	s := entity.New(":memory:")
	require.NoError(t, s.Init(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

type fakeEndpoint struct {
	delivered chan string
}

func newFakeEndpoint() *fakeEndpoint {
	return &fakeEndpoint{delivered: make(chan string, 8)}
}

func (f *fakeEndpoint) Deliver(_ context.Context, message string) error {
	f.delivered <- message
	return nil
}

// fakeSource is a minimal DataSource used to drive the coordinator
// without a real external collaborator.
type fakeSource struct {
	id     string
	events chan datasource.StreamEvent[string, int]
}

func newFakeSource(id string) *fakeSource {
	return &fakeSource{id: id, events: make(chan datasource.StreamEvent[string, int], 8)}
}

func (s *fakeSource) SourceID() string { return s.id }
func (s *fakeSource) Metadata() datasource.DataSourceMetadata {
	return datasource.DataSourceMetadata{SourceType: "fake"}
}
func (s *fakeSource) Pull(context.Context, int, *int) ([]string, error) { return nil, nil }
func (s *fakeSource) Subscribe(ctx context.Context, _ *int) (<-chan datasource.StreamEvent[string, int], error) {
	return s.events, nil
}
func (s *fakeSource) SetFilter(int)       {}
func (s *fakeSource) CurrentCursor() *int { return nil }
func (s *fakeSource) FormatNotification(item string) (string, []datasource.DerivedMemoryBlock, bool) {
	return "notice: " + item, []datasource.DerivedMemoryBlock{{Label: "fake_" + item, Value: item}}, true
}
func (s *fakeSource) SetNotificationsEnabled(bool) {}
func (s *fakeSource) NotificationsEnabled() bool   { return true }

func TestCoordinator_IngestsItemAndRoutesNotification(t *testing.T) {
	store := newTestStore(t)
	userID := id.NewUserID()
	_, err := store.StoreUser(context.Background(), entity.User{ID: userID})
	require.NoError(t, err)

	router := datasource.NewMessageRouter()
	ep := newFakeEndpoint()
	router.Register("group", ep)

	coord := datasource.NewDataIngestionCoordinator(store, userID, router, nil)
	coord.SetDefaultTarget(datasource.MessageTarget{Type: datasource.TargetGroup})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go coord.Run(ctx)

	source := newFakeSource("fake-1")
	require.NoError(t, datasource.AddSource[string, int, int](ctx, coord, source, datasource.BufferConfig{MaxItems: 10}, datasource.MessageTarget{}))

	source.events <- datasource.StreamEvent[string, int]{Item: "hello", Cursor: 1, Timestamp: time.Now()}

	select {
	case msg := <-ep.delivered:
		assert.Equal(t, "notice: hello", msg)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for routed notification")
	}

	blocks, err := store.ListMemoryBlocksByUser(ctx, userID)
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, "fake_hello", blocks[0].Label)
	assert.Equal(t, "hello", blocks[0].Value)
}

func TestMessageRouter_UnknownEndpointErrors(t *testing.T) {
	router := datasource.NewMessageRouter()
	err := router.Route(context.Background(), datasource.MessageTarget{Type: datasource.TargetUser}, "hi")
	require.Error(t, err)
}
