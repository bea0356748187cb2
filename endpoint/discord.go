package endpoint

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// Discord delivers a message by posting it to a fixed Discord channel,
// the outbound half of the ws-based DiscordSource datasource owns for
// ingestion. Grounded on vanducng-goclaw's Channel.Send, trimmed to the
// single-shot send this sink's contract needs (no placeholder/typing-
// indicator lifecycle, since Endpoint has no notion of an in-flight turn).
type Discord struct {
	session   *discordgo.Session
	channelID string
}

func NewDiscord(session *discordgo.Session, channelID string) *Discord {
	return &Discord{session: session, channelID: channelID}
}

func (d *Discord) Deliver(_ context.Context, message string) error {
	if d.channelID == "" {
		return fmt.Errorf("endpoint: discord deliver: empty channel id")
	}
	if _, err := d.session.ChannelMessageSend(d.channelID, message); err != nil {
		return fmt.Errorf("endpoint: discord deliver: %w", err)
	}
	return nil
}
