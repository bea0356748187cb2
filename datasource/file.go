package datasource

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FileCursor marks a position in a directory's modification history by
// the time the most recent watched change was processed, so Pull can
// catch up on anything modified since.
type FileCursor struct {
	Since time.Time
}

// FileFilter narrows FileSource to a set of extensions; an empty list
// means no filtering.
type FileFilter struct {
	Extensions []string
}

func (f FileFilter) allows(path string) bool {
	if len(f.Extensions) == 0 {
		return true
	}
	ext := filepath.Ext(path)
	for _, allowed := range f.Extensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

// FileEvent describes one observed change under a watched directory.
type FileEvent struct {
	Path    string
	Content string
	Op      FileOp
}

type FileOp string

const (
	FileCreated FileOp = "created"
	FileChanged FileOp = "changed"
	FileRemoved FileOp = "removed"
)

// FileSource watches a directory with fsnotify, debouncing rapid
// successive writes to the same path the way a save-on-every-keystroke
// editor produces them.
type FileSource struct {
	sourceID      string
	basePath      string
	debounceDelay time.Duration

	watcher *fsnotify.Watcher

	mu                   sync.Mutex
	filter               FileFilter
	cursor               FileCursor
	itemsProcessed       uint64
	errorCount           uint64
	notificationsEnabled bool
}

func NewFileSource(sourceID, basePath string) *FileSource {
	return &FileSource{
		sourceID:             sourceID,
		basePath:             basePath,
		debounceDelay:        100 * time.Millisecond,
		notificationsEnabled: true,
	}
}

func (f *FileSource) SourceID() string { return f.sourceID }

func (f *FileSource) Metadata() DataSourceMetadata {
	f.mu.Lock()
	defer f.mu.Unlock()
	status := StatusDisconnected
	if f.watcher != nil {
		status = StatusActive
	}
	return DataSourceMetadata{
		SourceType:     "file",
		Status:         status,
		ItemsProcessed: f.itemsProcessed,
		LastItemTime:   f.cursor.Since,
		ErrorCount:     f.errorCount,
		Custom:         map[string]any{"base_path": f.basePath},
	}
}

// Pull walks basePath and returns every file modified after the cursor's
// Since time, in lexical path order, capped at limit.
func (f *FileSource) Pull(_ context.Context, limit int, after *FileCursor) ([]FileEvent, error) {
	since := time.Time{}
	if after != nil {
		since = after.Since
	}

	var out []FileEvent
	err := filepath.Walk(f.basePath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if !f.filter.allows(path) {
			return nil
		}
		if !info.ModTime().After(since) {
			return nil
		}
		if limit > 0 && len(out) >= limit {
			return filepath.SkipAll
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		out = append(out, FileEvent{Path: path, Content: string(content), Op: FileChanged})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("datasource: file pull %s: %w", f.basePath, err)
	}
	return out, nil
}

// Subscribe starts an fsnotify watch over basePath and every subdirectory.
func (f *FileSource) Subscribe(ctx context.Context, _ *FileCursor) (<-chan StreamEvent[FileEvent, FileCursor], error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("datasource: create file watcher: %w", err)
	}

	if err := filepath.Walk(f.basePath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return watcher.Add(path)
		}
		return nil
	}); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("datasource: watch %s: %w", f.basePath, err)
	}

	f.mu.Lock()
	f.watcher = watcher
	f.mu.Unlock()

	out := make(chan StreamEvent[FileEvent, FileCursor])
	go f.watchLoop(ctx, watcher, out)
	return out, nil
}

func (f *FileSource) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, out chan<- StreamEvent[FileEvent, FileCursor]) {
	defer close(out)
	defer watcher.Close()

	pending := make(map[string]fsnotify.Event)
	var pendingMu sync.Mutex
	var debounce *time.Timer
	flush := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if ev.Op&fsnotify.Chmod == fsnotify.Chmod {
				continue
			}
			pendingMu.Lock()
			pending[ev.Name] = ev
			pendingMu.Unlock()
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(f.debounceDelay, func() {
				select {
				case flush <- struct{}{}:
				default:
				}
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			f.mu.Lock()
			f.errorCount++
			f.mu.Unlock()
			slog.Error("datasource: file watcher error", "source_id", f.sourceID, "error", err)

		case <-flush:
			pendingMu.Lock()
			batch := pending
			pending = make(map[string]fsnotify.Event)
			pendingMu.Unlock()

			for _, ev := range batch {
				if fe, ok := f.handleEvent(ev); ok {
					select {
					case out <- StreamEvent[FileEvent, FileCursor]{Item: fe, Cursor: f.CurrentCursorValue(), Timestamp: time.Now()}:
					case <-ctx.Done():
						return
					}
				}
			}
		}
	}
}

func (f *FileSource) handleEvent(ev fsnotify.Event) (FileEvent, bool) {
	if !f.filter.allows(ev.Name) {
		return FileEvent{}, false
	}

	var op FileOp
	switch {
	case ev.Op&fsnotify.Create == fsnotify.Create:
		op = FileCreated
	case ev.Op&fsnotify.Write == fsnotify.Write:
		op = FileChanged
	case ev.Op&fsnotify.Remove == fsnotify.Remove, ev.Op&fsnotify.Rename == fsnotify.Rename:
		op = FileRemoved
	default:
		return FileEvent{}, false
	}

	fe := FileEvent{Path: ev.Name, Op: op}
	if op != FileRemoved {
		content, err := os.ReadFile(ev.Name)
		if err != nil {
			return FileEvent{}, false
		}
		fe.Content = string(content)
	}

	f.mu.Lock()
	f.itemsProcessed++
	f.cursor.Since = time.Now()
	f.mu.Unlock()

	return fe, true
}

func (f *FileSource) SetFilter(filter FileFilter) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filter = filter
}

func (f *FileSource) CurrentCursor() *FileCursor {
	c := f.CurrentCursorValue()
	return &c
}

func (f *FileSource) CurrentCursorValue() FileCursor {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cursor
}

func (f *FileSource) FormatNotification(item FileEvent) (string, []DerivedMemoryBlock, bool) {
	if item.Op == FileRemoved {
		return fmt.Sprintf("File removed: %s", filepath.Base(item.Path)), nil, true
	}
	text := fmt.Sprintf("File changed: %s", filepath.Base(item.Path))
	label := fileBlockLabel(item.Path)
	return text, []DerivedMemoryBlock{{Label: label, Value: item.Content}}, true
}

func fileBlockLabel(path string) string {
	return "file_" + sanitizeLabel(filepath.Base(path))
}

func (f *FileSource) SetNotificationsEnabled(enabled bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notificationsEnabled = enabled
}

func (f *FileSource) NotificationsEnabled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.notificationsEnabled
}
