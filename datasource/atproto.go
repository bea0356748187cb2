package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/patterncore/pattern/entity"
	"github.com/patterncore/pattern/id"
)

// AtprotoPost is a single post record observed on the firehose, reduced
// to the fields ingestion cares about.
type AtprotoPost struct {
	URI       string
	DID       string
	Handle    string
	Text      string
	CreatedAt time.Time
}

// AtprotoCursor is the jetstream replay cursor: a microsecond Unix
// timestamp of the last event consumed.
type AtprotoCursor struct {
	TimeUS int64
}

// AtprotoFilter narrows the firehose subscription to posts mentioning a
// handle, or from a specific set of DIDs; an empty filter passes
// everything.
type AtprotoFilter struct {
	Mentions []string
	DIDs     []string
}

func (f AtprotoFilter) allows(post AtprotoPost) bool {
	if len(f.DIDs) > 0 {
		matched := false
		for _, did := range f.DIDs {
			if did == post.DID {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	if len(f.Mentions) > 0 {
		matched := false
		for _, m := range f.Mentions {
			if strings.Contains(post.Text, m) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

const atprotoCursorBlockLabelPrefix = "atproto_cursor_"

// AtprotoFirehoseSource subscribes to a jetstream-shaped websocket
// endpoint over coder/websocket, persisting its replay cursor to the
// entity store (a memory block under a stable per-source label) instead
// of a standalone cursor file, since the core already owns a store.
type AtprotoFirehoseSource struct {
	sourceID    string
	endpoint    string
	store       *entity.Store
	ownerUserID id.UserID

	mu                   sync.Mutex
	filter               AtprotoFilter
	cursor               AtprotoCursor
	itemsProcessed       uint64
	errorCount           uint64
	status               DataSourceStatus
	notificationsEnabled bool
}

func NewAtprotoFirehoseSource(sourceID, endpoint string, store *entity.Store, ownerUserID id.UserID) *AtprotoFirehoseSource {
	return &AtprotoFirehoseSource{
		sourceID:             sourceID,
		endpoint:             endpoint,
		store:                store,
		ownerUserID:          ownerUserID,
		status:               StatusDisconnected,
		notificationsEnabled: true,
	}
}

func (a *AtprotoFirehoseSource) SourceID() string { return a.sourceID }

func (a *AtprotoFirehoseSource) Metadata() DataSourceMetadata {
	a.mu.Lock()
	defer a.mu.Unlock()
	return DataSourceMetadata{
		SourceType:     "atproto_firehose",
		Status:         a.status,
		ItemsProcessed: a.itemsProcessed,
		ErrorCount:     a.errorCount,
		Custom:         map[string]any{"endpoint": a.endpoint, "cursor_time_us": a.cursor.TimeUS},
	}
}

// cursorBlockLabel is the stable label this source's replay cursor is
// persisted under.
func (a *AtprotoFirehoseSource) cursorBlockLabel() string {
	return atprotoCursorBlockLabelPrefix + a.sourceID
}

// loadCursor restores the persisted cursor, if any, from the owner's
// memory blocks.
func (a *AtprotoFirehoseSource) loadCursor(ctx context.Context) (AtprotoCursor, bool) {
	blocks, err := a.store.ListMemoryBlocksByUser(ctx, a.ownerUserID)
	if err != nil {
		return AtprotoCursor{}, false
	}
	label := a.cursorBlockLabel()
	for _, b := range blocks {
		if b.Label != label {
			continue
		}
		var cur AtprotoCursor
		if err := json.Unmarshal([]byte(b.Value), &cur); err != nil {
			return AtprotoCursor{}, false
		}
		return cur, true
	}
	return AtprotoCursor{}, false
}

func (a *AtprotoFirehoseSource) saveCursor(ctx context.Context, cur AtprotoCursor) {
	value, err := json.Marshal(cur)
	if err != nil {
		return
	}
	label := a.cursorBlockLabel()
	blocks, err := a.store.ListMemoryBlocksByUser(ctx, a.ownerUserID)
	if err != nil {
		slog.Error("datasource: failed to list blocks for cursor persistence", "source_id", a.sourceID, "error", err)
		return
	}
	for _, b := range blocks {
		if b.Label == label {
			b.Value = string(value)
			if _, err := a.store.StoreMemoryBlock(ctx, b); err != nil {
				slog.Error("datasource: failed to persist cursor", "source_id", a.sourceID, "error", err)
			}
			return
		}
	}
	b := entity.MemoryBlock{
		ID:         id.NewMemoryBlockID(),
		UserID:     a.ownerUserID,
		Label:      label,
		Value:      string(value),
		Type:       entity.MemoryBlockWorking,
		Permission: entity.PermissionReadWrite,
		IsActive:   true,
	}
	if _, err := a.store.StoreMemoryBlock(ctx, b); err != nil {
		slog.Error("datasource: failed to persist cursor", "source_id", a.sourceID, "error", err)
	}
}

// Pull is not supported: jetstream has no REST catch-up endpoint distinct
// from replaying the websocket from a cursor, so catch-up happens by
// Subscribe(from) instead.
func (a *AtprotoFirehoseSource) Pull(context.Context, int, *AtprotoCursor) ([]AtprotoPost, error) {
	return nil, fmt.Errorf("datasource: atproto firehose has no catch-up pull, use Subscribe(from)")
}

// Subscribe dials the jetstream endpoint, optionally resuming from a
// cursor, and streams decoded posts until ctx is cancelled or the
// connection fails. On a read error the source transitions through
// Reconnecting before settling on Disconnected; the caller is
// responsible for re-calling Subscribe to retry.
func (a *AtprotoFirehoseSource) Subscribe(ctx context.Context, from *AtprotoCursor) (<-chan StreamEvent[AtprotoPost, AtprotoCursor], error) {
	cursor := a.cursorOrLoad(ctx, from)

	url := a.endpoint
	if cursor.TimeUS > 0 {
		sep := "?"
		if strings.Contains(url, "?") {
			sep = "&"
		}
		url = fmt.Sprintf("%s%scursor=%d", url, sep, cursor.TimeUS)
	}

	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		a.setStatus(StatusDisconnected)
		return nil, fmt.Errorf("datasource: dial atproto firehose: %w", err)
	}
	a.setStatus(StatusActive)

	out := make(chan StreamEvent[AtprotoPost, AtprotoCursor])
	go a.readLoop(ctx, conn, out)
	return out, nil
}

func (a *AtprotoFirehoseSource) cursorOrLoad(ctx context.Context, from *AtprotoCursor) AtprotoCursor {
	if from != nil {
		return *from
	}
	if cur, ok := a.loadCursor(ctx); ok {
		return cur
	}
	return AtprotoCursor{}
}

func (a *AtprotoFirehoseSource) setStatus(status DataSourceStatus) {
	a.mu.Lock()
	a.status = status
	a.mu.Unlock()
}

type jetstreamEvent struct {
	DID    string `json:"did"`
	TimeUS int64  `json:"time_us"`
	Commit *struct {
		Collection string `json:"collection"`
		Record     struct {
			Text      string `json:"text"`
			CreatedAt string `json:"createdAt"`
		} `json:"record"`
		RKey string `json:"rkey"`
	} `json:"commit"`
}

func (a *AtprotoFirehoseSource) readLoop(ctx context.Context, conn *websocket.Conn, out chan<- StreamEvent[AtprotoPost, AtprotoCursor]) {
	defer close(out)
	defer conn.Close(websocket.StatusNormalClosure, "")

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				a.setStatus(StatusDisconnected)
				return
			}
			a.setStatus(StatusReconnecting)
			a.mu.Lock()
			a.errorCount++
			a.mu.Unlock()
			slog.Warn("datasource: atproto firehose read failed", "source_id", a.sourceID, "error", err)
			a.setStatus(StatusDisconnected)
			return
		}

		var ev jetstreamEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			continue
		}
		if ev.Commit == nil || ev.Commit.Collection != "app.bsky.feed.post" {
			continue
		}

		post := AtprotoPost{
			URI:    fmt.Sprintf("at://%s/%s/%s", ev.DID, ev.Commit.Collection, ev.Commit.RKey),
			DID:    ev.DID,
			Text:   ev.Commit.Record.Text,
			Handle: ev.DID,
		}
		if ts, err := time.Parse(time.RFC3339, ev.Commit.Record.CreatedAt); err == nil {
			post.CreatedAt = ts
		}

		a.mu.Lock()
		filter := a.filter
		a.mu.Unlock()
		if !filter.allows(post) {
			continue
		}

		cursor := AtprotoCursor{TimeUS: ev.TimeUS}
		a.mu.Lock()
		a.cursor = cursor
		a.itemsProcessed++
		a.mu.Unlock()
		a.saveCursor(ctx, cursor)

		select {
		case out <- StreamEvent[AtprotoPost, AtprotoCursor]{Item: post, Cursor: cursor, Timestamp: time.Now()}:
		case <-ctx.Done():
			return
		}
	}
}

func (a *AtprotoFirehoseSource) SetFilter(filter AtprotoFilter) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.filter = filter
}

func (a *AtprotoFirehoseSource) CurrentCursor() *AtprotoCursor {
	a.mu.Lock()
	defer a.mu.Unlock()
	cur := a.cursor
	return &cur
}

func (a *AtprotoFirehoseSource) FormatNotification(item AtprotoPost) (string, []DerivedMemoryBlock, bool) {
	text := fmt.Sprintf("Bluesky post from %s: %s", item.DID, item.Text)
	label := "atproto_post_" + sanitizeLabel(lastPathSegment(item.URI))
	return text, []DerivedMemoryBlock{{Label: label, Value: item.Text}}, true
}

func lastPathSegment(uri string) string {
	idx := strings.LastIndexByte(uri, '/')
	if idx < 0 {
		return uri
	}
	return uri[idx+1:]
}

func sanitizeLabel(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			out = append(out, c)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}

func (a *AtprotoFirehoseSource) SetNotificationsEnabled(enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.notificationsEnabled = enabled
}

func (a *AtprotoFirehoseSource) NotificationsEnabled() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.notificationsEnabled
}
