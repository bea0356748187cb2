package datasource

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
)

// DiscordMessage is one observed Discord message, reduced to the fields
// ingestion cares about.
type DiscordMessage struct {
	MessageID string
	ChannelID string
	AuthorID  string
	Author    string
	Content   string
	Timestamp time.Time
	IsBot     bool
	Mentions  []string
}

// DiscordCursor tracks the last message seen per channel.
type DiscordCursor struct {
	ChannelID     string
	LastMessageID string
}

// DiscordFilter narrows DiscordSource to specific channels and whether
// bot authors are included.
type DiscordFilter struct {
	IncludeBots bool
	ChannelIDs  []string
}

func (f DiscordFilter) allows(channelID string, isBot bool) bool {
	if isBot && !f.IncludeBots {
		return false
	}
	if len(f.ChannelIDs) == 0 {
		return true
	}
	for _, id := range f.ChannelIDs {
		if id == channelID {
			return true
		}
	}
	return false
}

// DiscordSource watches a discordgo session's message-create gateway
// events, so it must be given a session the caller already opened
// (mirroring a channel adapter's own session lifecycle).
type DiscordSource struct {
	sourceID string
	session  *discordgo.Session

	mu                   sync.Mutex
	filter               DiscordFilter
	cursor               *DiscordCursor
	subscribed           bool
	itemsProcessed       uint64
	errorCount           uint64
	notificationsEnabled bool
}

func NewDiscordSource(sourceID string, session *discordgo.Session) *DiscordSource {
	return &DiscordSource{
		sourceID:             sourceID,
		session:              session,
		notificationsEnabled: true,
	}
}

func (d *DiscordSource) SourceID() string { return d.sourceID }

func (d *DiscordSource) Metadata() DataSourceMetadata {
	d.mu.Lock()
	defer d.mu.Unlock()
	status := StatusDisconnected
	if d.subscribed {
		status = StatusActive
	}
	var lastItem time.Time
	custom := map[string]any{}
	if d.cursor != nil {
		custom["last_channel_id"] = d.cursor.ChannelID
	}
	return DataSourceMetadata{
		SourceType:     "discord",
		Status:         status,
		ItemsProcessed: d.itemsProcessed,
		LastItemTime:   lastItem,
		ErrorCount:     d.errorCount,
		Custom:         custom,
	}
}

// Pull fetches channel history via the REST API: up to limit messages
// posted after the cursor's LastMessageID, from the channel named by
// after (or the first configured channel).
func (d *DiscordSource) Pull(_ context.Context, limit int, after *DiscordCursor) ([]DiscordMessage, error) {
	channelID := ""
	if after != nil {
		channelID = after.ChannelID
	} else if len(d.filter.ChannelIDs) > 0 {
		channelID = d.filter.ChannelIDs[0]
	}
	if channelID == "" {
		return nil, fmt.Errorf("datasource: discord pull requires a channel ID")
	}

	afterID := ""
	if after != nil {
		afterID = after.LastMessageID
	}
	messages, err := d.session.ChannelMessages(channelID, limit, "", afterID, "")
	if err != nil {
		return nil, fmt.Errorf("datasource: fetch discord history: %w", err)
	}

	out := make([]DiscordMessage, 0, len(messages))
	for _, m := range messages {
		if !d.filter.allows(channelID, m.Author != nil && m.Author.Bot) {
			continue
		}
		out = append(out, discordMessageFrom(m))
	}
	return out, nil
}

// Subscribe registers a discordgo message-create handler and streams
// every matching message until ctx is cancelled.
func (d *DiscordSource) Subscribe(ctx context.Context, _ *DiscordCursor) (<-chan StreamEvent[DiscordMessage, DiscordCursor], error) {
	out := make(chan StreamEvent[DiscordMessage, DiscordCursor])

	d.mu.Lock()
	d.subscribed = true
	d.mu.Unlock()

	remove := d.session.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
		if m.Author == nil {
			return
		}
		if !d.filter.allows(m.ChannelID, m.Author.Bot) {
			return
		}

		msg := discordMessageFrom(m.Message)
		cursor := DiscordCursor{ChannelID: msg.ChannelID, LastMessageID: msg.MessageID}

		d.mu.Lock()
		d.itemsProcessed++
		d.cursor = &cursor
		d.mu.Unlock()

		select {
		case out <- StreamEvent[DiscordMessage, DiscordCursor]{Item: msg, Cursor: cursor, Timestamp: time.Now()}:
		case <-ctx.Done():
		}
	})

	go func() {
		<-ctx.Done()
		remove()
		d.mu.Lock()
		d.subscribed = false
		d.mu.Unlock()
		close(out)
	}()

	return out, nil
}

func discordMessageFrom(m *discordgo.Message) DiscordMessage {
	mentions := make([]string, 0, len(m.Mentions))
	for _, u := range m.Mentions {
		mentions = append(mentions, u.ID)
	}
	isBot := m.Author != nil && m.Author.Bot
	author := ""
	authorID := ""
	if m.Author != nil {
		author = m.Author.Username
		authorID = m.Author.ID
	}
	ts := m.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return DiscordMessage{
		MessageID: m.ID,
		ChannelID: m.ChannelID,
		AuthorID:  authorID,
		Author:    author,
		Content:   m.Content,
		Timestamp: ts,
		IsBot:     isBot,
		Mentions:  mentions,
	}
}

func (d *DiscordSource) SetFilter(filter DiscordFilter) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.filter = filter
}

func (d *DiscordSource) CurrentCursor() *DiscordCursor {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cursor
}

func (d *DiscordSource) FormatNotification(item DiscordMessage) (string, []DerivedMemoryBlock, bool) {
	text := fmt.Sprintf("Discord message from %s in channel %s:\n%s", item.Author, item.ChannelID, item.Content)
	label := fmt.Sprintf("discord_msg_%s", item.MessageID)
	value := fmt.Sprintf("[%s] %s: %s", item.Timestamp.Format(time.RFC3339), item.Author, item.Content)
	return text, []DerivedMemoryBlock{{Label: label, Value: value}}, true
}

func (d *DiscordSource) SetNotificationsEnabled(enabled bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.notificationsEnabled = enabled
}

func (d *DiscordSource) NotificationsEnabled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.notificationsEnabled
}
