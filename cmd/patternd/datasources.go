package main

import (
	"context"
	"fmt"
	"os"

	"github.com/bwmarrin/discordgo"

	"github.com/patterncore/pattern/config"
	"github.com/patterncore/pattern/datasource"
	"github.com/patterncore/pattern/embeddings"
	"github.com/patterncore/pattern/endpoint"
	"github.com/patterncore/pattern/entity"
	"github.com/patterncore/pattern/id"
)

// discordSessions memoizes one *discordgo.Session per bot token, shared
// between an endpoints.discord sink and a data_sources.discord source
// configured with the same token, mirroring how a single Discord bot
// process owns one gateway connection regardless of how many channels
// or data feeds it serves.
type discordSessions struct {
	byToken map[string]*discordgo.Session
}

func newDiscordSessions() *discordSessions {
	return &discordSessions{byToken: make(map[string]*discordgo.Session)}
}

func (d *discordSessions) get(token string) (*discordgo.Session, error) {
	if s, ok := d.byToken[token]; ok {
		return s, nil
	}
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	d.byToken[token] = s
	return s, nil
}

// buildEndpoints constructs one datasource.Endpoint per EndpointConfig.
// broadcast entries are resolved in a second pass so they can reference
// any endpoint built in the first, named or not.
func buildEndpoints(cfg *config.Config, sessions *discordSessions) (map[string]datasource.Endpoint, error) {
	endpoints := make(map[string]datasource.Endpoint, len(cfg.Endpoints))

	for name, ec := range cfg.Endpoints {
		switch ec.Type {
		case "cli":
			endpoints[name] = endpoint.NewCLI(os.Stdout)
		case "discord":
			token, _ := ec.Config["token"].(string)
			channelID, _ := ec.Config["channel_id"].(string)
			session, err := sessions.get(token)
			if err != nil {
				return nil, fmt.Errorf("endpoint %q: %w", name, err)
			}
			endpoints[name] = endpoint.NewDiscord(session, channelID)
		case "broadcast":
			// resolved below, once every non-broadcast endpoint exists
		default:
			return nil, fmt.Errorf("endpoint %q: unsupported type %q", name, ec.Type)
		}
	}

	for name, ec := range cfg.Endpoints {
		if ec.Type != "broadcast" {
			continue
		}
		refs, _ := ec.Config["members"].([]any)
		bc := endpoint.NewBroadcast()
		for _, ref := range refs {
			memberName, _ := ref.(string)
			member, ok := endpoints[memberName]
			if !ok {
				return nil, fmt.Errorf("endpoint %q: unknown broadcast member %q", name, memberName)
			}
			bc.Add(member)
		}
		endpoints[name] = bc
	}

	return endpoints, nil
}

// wireDataSources attaches one running datasource.DataSource per
// DataSourceConfig to coordinator, tagging each ingested item with the
// group or agent its config.Target names.
func wireDataSources(ctx context.Context, cfg *config.Config, store *entity.Store, coordinator *datasource.DataIngestionCoordinator, sessions *discordSessions, ownerUserID id.UserID) error {
	for name, dc := range cfg.DataSources {
		target := datasource.MessageTarget{Type: datasource.TargetGroup, TargetID: dc.Target}
		if ep, ok := dc.Config["endpoint"].(string); ok {
			target.Endpoint = ep
		}
		if t, ok := dc.Config["target_type"].(string); ok {
			target.Type = datasource.TargetType(t)
		}

		switch dc.Type {
		case "file":
			src := datasource.NewFileSource(name, dc.Target)
			if raw, ok := dc.Config["extensions"].([]any); ok {
				var filter datasource.FileFilter
				for _, e := range raw {
					if ext, ok := e.(string); ok {
						filter.Extensions = append(filter.Extensions, ext)
					}
				}
				src.SetFilter(filter)
			}
			if err := datasource.AddSource[datasource.FileEvent, datasource.FileFilter, datasource.FileCursor](
				ctx, coordinator, src, datasource.BufferConfig{MaxItems: 256}, target); err != nil {
				return fmt.Errorf("data source %q: %w", name, err)
			}

		case "discord":
			token, _ := dc.Config["token"].(string)
			session, err := sessions.get(token)
			if err != nil {
				return fmt.Errorf("data source %q: %w", name, err)
			}
			src := datasource.NewDiscordSource(name, session)
			if raw, ok := dc.Config["channel_ids"].([]any); ok {
				var filter datasource.DiscordFilter
				for _, c := range raw {
					if channelID, ok := c.(string); ok {
						filter.ChannelIDs = append(filter.ChannelIDs, channelID)
					}
				}
				src.SetFilter(filter)
			}
			if err := datasource.AddSource[datasource.DiscordMessage, datasource.DiscordFilter, datasource.DiscordCursor](
				ctx, coordinator, src, datasource.BufferConfig{MaxItems: 256}, target); err != nil {
				return fmt.Errorf("data source %q: %w", name, err)
			}

		case "atproto":
			src := datasource.NewAtprotoFirehoseSource(name, dc.Target, store, ownerUserID)
			if raw, ok := dc.Config["mentions"].([]any); ok {
				var filter datasource.AtprotoFilter
				for _, m := range raw {
					if mention, ok := m.(string); ok {
						filter.Mentions = append(filter.Mentions, mention)
					}
				}
				src.SetFilter(filter)
			}
			if err := datasource.AddSource[datasource.AtprotoPost, datasource.AtprotoFilter, datasource.AtprotoCursor](
				ctx, coordinator, src, datasource.BufferConfig{MaxItems: 256, RateLimit: 5}, target); err != nil {
				return fmt.Errorf("data source %q: %w", name, err)
			}

		default:
			return fmt.Errorf("data source %q: unsupported type %q", name, dc.Type)
		}
	}
	return nil
}

// runIngestion wires cfg's endpoints and data sources into a running
// DataIngestionCoordinator and starts it in the background, returning
// once every source has subscribed (or immediately, if none are
// configured). The coordinator keeps running until ctx is cancelled.
func runIngestion(ctx context.Context, cfg *config.Config, store *entity.Store, embedder embeddings.Provider) error {
	if len(cfg.DataSources) == 0 {
		return nil
	}

	sessions := newDiscordSessions()
	endpoints, err := buildEndpoints(cfg, sessions)
	if err != nil {
		return fmt.Errorf("build endpoints: %w", err)
	}

	router := datasource.NewMessageRouter()
	for name, ep := range endpoints {
		router.Register(name, ep)
	}

	owner := entity.User{ID: id.NewUserID()}
	if _, err := store.StoreUser(ctx, owner); err != nil {
		return fmt.Errorf("store ingestion owner: %w", err)
	}

	coordinator := datasource.NewDataIngestionCoordinator(store, owner.ID, router, embeddings.Func(embedder))
	if err := wireDataSources(ctx, cfg, store, coordinator, sessions, owner.ID); err != nil {
		return err
	}

	go coordinator.Run(ctx)
	return nil
}
