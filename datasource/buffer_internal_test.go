package datasource

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStreamBufferPush_EvictsOldestWhenFull(t *testing.T) {
	buf := NewStreamBuffer[int, int](BufferConfig{MaxItems: 2})

	buf.push(StreamEvent[int, int]{Item: 1}, "test")
	buf.push(StreamEvent[int, int]{Item: 2}, "test")
	buf.push(StreamEvent[int, int]{Item: 3}, "test")

	first, ok := buf.pop()
	assert.True(t, ok)
	assert.Equal(t, 2, first.Item)

	second, ok := buf.pop()
	assert.True(t, ok)
	assert.Equal(t, 3, second.Item)

	assert.EqualValues(t, 1, buf.Evictions())
}

func TestStreamBufferPush_EvictsAgedItems(t *testing.T) {
	buf := NewStreamBuffer[int, int](BufferConfig{MaxItems: 10, MaxAge: time.Millisecond})
	buf.push(StreamEvent[int, int]{Item: 1}, "test")
	time.Sleep(5 * time.Millisecond)
	buf.push(StreamEvent[int, int]{Item: 2}, "test")

	item, ok := buf.pop()
	assert.True(t, ok)
	assert.Equal(t, 2, item.Item)

	_, ok = buf.pop()
	assert.False(t, ok)
}
