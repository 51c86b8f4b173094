package channels

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
	"github.com/dotsetgreg/leadbot/pkg/bus"
	"github.com/dotsetgreg/leadbot/pkg/config"
	"github.com/dotsetgreg/leadbot/pkg/logger"
)

const (
	ChannelDiscord = "discord"

	sendTimeout = 10 * time.Second
	// Discord rejects messages over 2000 characters.
	discordChunkLimit = 1900
)

// DiscordChannel mirrors operator notices into a Discord channel. It only
// sends; customers never reach the bot through Discord.
type DiscordChannel struct {
	*BaseChannel
	session *discordgo.Session
}

func NewDiscordChannel(cfg config.DiscordConfig, bus *bus.MessageBus) (*DiscordChannel, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}

	return &DiscordChannel{
		BaseChannel: NewBaseChannel(ChannelDiscord, bus),
		session:     session,
	}, nil
}

func (c *DiscordChannel) Start(ctx context.Context) error {
	logger.InfoC("discord", "Starting Discord mirror")

	botUser, err := c.session.User("@me", discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("discord bot user: %w", err)
	}
	c.setRunning(true)

	logger.InfoCF("discord", "Discord mirror ready", map[string]interface{}{
		"username": botUser.Username,
		"user_id":  botUser.ID,
	})
	return nil
}

func (c *DiscordChannel) Stop(ctx context.Context) error {
	logger.InfoC("discord", "Stopping Discord mirror")
	c.setRunning(false)
	return nil
}

func (c *DiscordChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	if !c.IsRunning() {
		return fmt.Errorf("discord mirror not running")
	}
	if msg.ChatID == "" {
		return fmt.Errorf("discord mirror: channel id is empty")
	}

	for _, chunk := range splitMessage(msg.Content, discordChunkLimit) {
		sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
		_, err := c.session.ChannelMessageSend(msg.ChatID, chunk, discordgo.WithContext(sendCtx))
		cancel()
		if err != nil {
			return fmt.Errorf("send discord message to %s: %w", msg.ChatID, err)
		}
	}
	return nil
}

// splitMessage breaks content into chunks of at most limit bytes, cutting at
// a late newline, then a late space, then the last rune boundary.
func splitMessage(content string, limit int) []string {
	var chunks []string
	for content = strings.TrimSpace(content); len(content) > limit; {
		head := content[:limit]
		end := lastCut(head, 200, "\n")
		if end <= 0 {
			end = lastCut(head, 100, " \t")
		}
		if end <= 0 {
			end = limit
			for end > 0 && !utf8.RuneStart(content[end]) {
				end--
			}
		}
		chunks = append(chunks, content[:end])
		content = strings.TrimSpace(content[end:])
	}
	if content != "" {
		chunks = append(chunks, content)
	}
	return chunks
}

// lastCut returns the index of the last byte from cutset within the final
// window bytes of s, or -1.
func lastCut(s string, window int, cutset string) int {
	start := max(len(s)-window, 0)
	i := strings.LastIndexAny(s[start:], cutset)
	if i < 0 {
		return -1
	}
	return start + i
}
