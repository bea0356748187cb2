package datasource_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patterncore/pattern/datasource"
)

func TestFileSource_EmitsEventOnWrite(t *testing.T) {
	dir := t.TempDir()
	source := datasource.NewFileSource("notes", dir)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := source.Subscribe(ctx, nil)
	require.NoError(t, err)

	path := filepath.Join(dir, "notes.md")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	select {
	case ev := <-events:
		assert.Equal(t, path, ev.Item.Path)
		assert.Equal(t, "hello", ev.Item.Content)

		text, blocks, ok := source.FormatNotification(ev.Item)
		assert.True(t, ok)
		assert.Equal(t, "File changed: notes.md", text)
		require.Len(t, blocks, 1)
		assert.Equal(t, "file_notes_md", blocks[0].Label)
		assert.Equal(t, "hello", blocks[0].Value)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for file event")
	}
}

func TestFileSource_PullReturnsRecentlyModified(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a"), 0o644))

	source := datasource.NewFileSource("docs", dir)
	events, err := source.Pull(context.Background(), 10, nil)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "a", events[0].Content)
}
