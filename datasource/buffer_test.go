package datasource_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/patterncore/pattern/datasource"
)

func TestStreamBuffer_ForwardsInOrder(t *testing.T) {
	buf := datasource.NewStreamBuffer[int, int](datasource.BufferConfig{MaxItems: 10})
	in := make(chan datasource.StreamEvent[int, int], 10)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := buf.Run(ctx, "test", in)

	for i := 0; i < 3; i++ {
		in <- datasource.StreamEvent[int, int]{Item: i, Cursor: i, Timestamp: time.Now()}
	}

	for i := 0; i < 3; i++ {
		select {
		case ev := <-out:
			assert.Equal(t, i, ev.Item)
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for item %d", i)
		}
	}
}

func TestStreamBuffer_DrainsAllItemsAfterInputCloses(t *testing.T) {
	buf := datasource.NewStreamBuffer[int, int](datasource.BufferConfig{MaxItems: 10})
	in := make(chan datasource.StreamEvent[int, int], 3)
	for i := 0; i < 3; i++ {
		in <- datasource.StreamEvent[int, int]{Item: i}
	}
	close(in)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out := buf.Run(ctx, "test", in)

	var got []int
	for ev := range out {
		got = append(got, ev.Item)
	}
	assert.Equal(t, []int{0, 1, 2}, got)
}
