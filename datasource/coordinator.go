package datasource

import (
	"context"
	"log/slog"
	"sync"

	"github.com/patterncore/pattern/entity"
	"github.com/patterncore/pattern/id"
)

// ingestedItem is the type-erased envelope a generic AddSource pump hands
// off to the coordinator's single drain loop, once FormatNotification has
// already reduced the source's typed Item down to text and blocks.
type ingestedItem struct {
	sourceID string
	text     string
	blocks   []DerivedMemoryBlock
	target   MessageTarget
}

// DataIngestionCoordinator owns a set of running sources, a router, and
// an optional embedding provider. For each ingested item it updates or
// creates the item's derived memory blocks, then routes the formatted
// notification to the item's target.
type DataIngestionCoordinator struct {
	store         *entity.Store
	ownerUserID   id.UserID
	router        *MessageRouter
	embed         EmbedFunc
	defaultTarget MessageTarget

	items chan ingestedItem

	mu      sync.Mutex
	sources map[string]func() DataSourceMetadata
	cancels map[string]context.CancelFunc

	wg sync.WaitGroup
}

func NewDataIngestionCoordinator(store *entity.Store, ownerUserID id.UserID, router *MessageRouter, embed EmbedFunc) *DataIngestionCoordinator {
	return &DataIngestionCoordinator{
		store:       store,
		ownerUserID: ownerUserID,
		router:      router,
		embed:       embed,
		items:       make(chan ingestedItem, 256),
		sources:     make(map[string]func() DataSourceMetadata),
		cancels:     make(map[string]context.CancelFunc),
	}
}

func (c *DataIngestionCoordinator) SetDefaultTarget(target MessageTarget) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.defaultTarget = target
}

// Metadata reports the current metadata for every attached source, keyed
// by source ID.
func (c *DataIngestionCoordinator) Metadata() map[string]DataSourceMetadata {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]DataSourceMetadata, len(c.sources))
	for sourceID, fn := range c.sources {
		out[sourceID] = fn()
	}
	return out
}

// RemoveSource cancels the named source's pump goroutine. The source
// itself continues to exist; only its ingestion into this coordinator
// stops.
func (c *DataIngestionCoordinator) RemoveSource(sourceID string) {
	c.mu.Lock()
	cancel, ok := c.cancels[sourceID]
	delete(c.cancels, sourceID)
	delete(c.sources, sourceID)
	c.mu.Unlock()
	if ok {
		cancel()
	}
}

// Run drains ingested items until ctx is cancelled, updating derived
// memory blocks and routing notifications. Call it in its own goroutine
// alongside AddSource calls.
func (c *DataIngestionCoordinator) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case item := <-c.items:
			c.process(ctx, item)
		}
	}
}

func (c *DataIngestionCoordinator) process(ctx context.Context, item ingestedItem) {
	for _, block := range item.blocks {
		if err := c.upsertBlock(ctx, block); err != nil {
			slog.Error("datasource: failed to upsert derived memory block", "source_id", item.sourceID, "label", block.Label, "error", err)
		}
	}

	target := item.target
	if target.Type == "" {
		c.mu.Lock()
		target = c.defaultTarget
		c.mu.Unlock()
	}
	if target.Type == "" {
		slog.Warn("datasource: no target for ingested item, dropping notification", "source_id", item.sourceID)
		return
	}

	if err := c.router.Route(ctx, target, item.text); err != nil {
		slog.Error("datasource: failed to route notification", "source_id", item.sourceID, "error", err)
	}
}

// upsertBlock finds the existing block for this owner with block.Label,
// if any, and overwrites its value in place; otherwise it creates a new
// one. Memory blocks are keyed by ID, not label, so this requires a scan
// of the owner's blocks rather than a direct upsert-by-label.
func (c *DataIngestionCoordinator) upsertBlock(ctx context.Context, block DerivedMemoryBlock) error {
	existing, err := c.store.ListMemoryBlocksByUser(ctx, c.ownerUserID)
	if err != nil {
		return err
	}

	for _, b := range existing {
		if b.Label == block.Label {
			b.Value = block.Value
			if c.embed != nil {
				if vec, err := c.embed(ctx, block.Value); err == nil {
					b.Embedding = vec
				}
			}
			_, err := c.store.StoreMemoryBlock(ctx, b)
			return err
		}
	}

	b := entity.MemoryBlock{
		ID:         id.NewMemoryBlockID(),
		UserID:     c.ownerUserID,
		Label:      block.Label,
		Value:      block.Value,
		Type:       entity.MemoryBlockArchival,
		Permission: entity.PermissionReadWrite,
		IsActive:   true,
	}
	if c.embed != nil {
		if vec, err := c.embed(ctx, block.Value); err == nil {
			b.Embedding = vec
		}
	}
	_, err = c.store.StoreMemoryBlock(ctx, b)
	return err
}

// AddSource attaches ds to the coordinator: it opens ds's live
// subscription from ds's current cursor, runs it through a StreamBuffer
// per bufCfg, formats each item via ds.FormatNotification, and forwards
// to the coordinator's drain loop tagged with target (the zero
// MessageTarget falls back to the coordinator's default target).
//
// AddSource is a free function rather than a method because Go methods
// cannot introduce their own type parameters; Item/Filter/Cursor are
// only known at the call site.
func AddSource[Item, Filter, Cursor any](ctx context.Context, c *DataIngestionCoordinator, ds DataSource[Item, Filter, Cursor], bufCfg BufferConfig, target MessageTarget) error {
	sourceCtx, cancel := context.WithCancel(ctx)

	stream, err := ds.Subscribe(sourceCtx, ds.CurrentCursor())
	if err != nil {
		cancel()
		return err
	}

	buf := NewStreamBuffer[Item, Cursor](bufCfg)
	buffered := buf.Run(sourceCtx, ds.SourceID(), stream)

	c.mu.Lock()
	c.sources[ds.SourceID()] = ds.Metadata
	c.cancels[ds.SourceID()] = cancel
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer cancel()
		for {
			select {
			case <-sourceCtx.Done():
				return
			case ev, ok := <-buffered:
				if !ok {
					return
				}
				if !ds.NotificationsEnabled() {
					continue
				}
				text, blocks, ok := ds.FormatNotification(ev.Item)
				if !ok {
					continue
				}
				select {
				case c.items <- ingestedItem{sourceID: ds.SourceID(), text: text, blocks: blocks, target: target}:
				case <-sourceCtx.Done():
					return
				}
			}
		}
	}()

	return nil
}
