package channels

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"

	"github.com/dotsetgreg/daybook/pkg/bus"
	"github.com/dotsetgreg/daybook/pkg/config"
	"github.com/dotsetgreg/daybook/pkg/logger"
)

const (
	sendTimeout           = 10 * time.Second
	typingRefreshInterval = 8 * time.Second
	// Discord rejects messages over 2000 characters.
	discordMessageLimit = 1900
)

// reportCommand asks for the strategic report instead of an answer.
const reportCommand = "!report"

type DiscordChannel struct {
	*BaseChannel
	session  *discordgo.Session
	config   config.DiscordConfig
	typing   map[string]*typingSession
	typingMu sync.Mutex
}

type typingSession struct {
	pending int
	cancel  context.CancelFunc
}

func NewDiscordChannel(cfg config.DiscordConfig, mb *bus.MessageBus) (*DiscordChannel, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent

	return &DiscordChannel{
		BaseChannel: NewBaseChannel("discord", mb, cfg.AllowFrom),
		session:     session,
		config:      cfg,
		typing:      make(map[string]*typingSession),
	}, nil
}

func (c *DiscordChannel) Start(ctx context.Context) error {
	logger.InfoC("discord", "Starting Discord bot")

	c.session.AddHandler(c.handleMessage)

	if err := c.session.Open(); err != nil {
		return fmt.Errorf("failed to open discord session: %w", err)
	}

	c.setRunning(true)

	botUser, err := c.session.User("@me")
	if err != nil {
		return fmt.Errorf("failed to get bot user: %w", err)
	}
	logger.InfoCF("discord", "Discord bot connected", map[string]any{
		"username": botUser.Username,
		"user_id":  botUser.ID,
	})
	return nil
}

func (c *DiscordChannel) Stop(ctx context.Context) error {
	logger.InfoC("discord", "Stopping Discord bot")
	c.setRunning(false)
	c.stopAllTyping()

	if err := c.session.Close(); err != nil {
		return fmt.Errorf("failed to close discord session: %w", err)
	}
	return nil
}

func (c *DiscordChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	if !c.IsRunning() {
		return fmt.Errorf("discord bot not running")
	}

	channelID := msg.ChatID
	if channelID == "" {
		return fmt.Errorf("channel ID is empty")
	}
	if msg.Kind != bus.KindDigest {
		defer c.endTyping(channelID)
	}

	if strings.TrimSpace(msg.Content) == "" {
		return nil
	}

	// Only the first chunk quotes the question.
	replyTo := msg.ReplyTo
	for _, chunk := range splitMessage(msg.Content, discordMessageLimit) {
		if err := c.sendChunk(ctx, channelID, chunk, replyTo); err != nil {
			return err
		}
		replyTo = ""
	}
	return nil
}

// splitMessage cuts content into chunks of at most limit bytes, preferring a
// newline and then a space near the end of each chunk. Chunks never split a
// UTF-8 sequence.
func splitMessage(content string, limit int) []string {
	var chunks []string
	for len(content) > 0 {
		if len(content) <= limit {
			chunks = append(chunks, content)
			break
		}

		cut := limit
		for cut > 0 && !utf8.RuneStart(content[cut]) {
			cut--
		}
		if i := strings.LastIndexByte(content[:cut], '\n'); i > cut/2 {
			cut = i
		} else if i := strings.LastIndexByte(content[:cut], ' '); i > cut/2 {
			cut = i
		}
		if cut == 0 {
			cut = limit
		}

		chunks = append(chunks, content[:cut])
		content = strings.TrimSpace(content[cut:])
	}
	return chunks
}

func (c *DiscordChannel) sendChunk(ctx context.Context, channelID, content, replyTo string) error {
	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		var err error
		if replyTo != "" {
			_, err = c.session.ChannelMessageSendReply(channelID, content, &discordgo.MessageReference{
				MessageID: replyTo,
				ChannelID: channelID,
			})
		} else {
			_, err = c.session.ChannelMessageSend(channelID, content)
		}
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to send discord message: %w", err)
		}
		return nil
	case <-sendCtx.Done():
		return fmt.Errorf("send message timeout: %w", sendCtx.Err())
	}
}

func (c *DiscordChannel) sendTyping(channelID string) {
	if channelID == "" || c.session == nil {
		return
	}
	if err := c.session.ChannelTyping(channelID); err != nil {
		logger.ErrorCF("discord", "Failed to send typing indicator", map[string]any{
			"error": err.Error(),
		})
	}
}

// beginTyping keeps the typing indicator alive until the matching endTyping.
func (c *DiscordChannel) beginTyping(channelID string) {
	if channelID == "" {
		return
	}

	c.typingMu.Lock()
	if sess, ok := c.typing[channelID]; ok {
		sess.pending++
		c.typingMu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.typing[channelID] = &typingSession{pending: 1, cancel: cancel}
	c.typingMu.Unlock()

	c.sendTyping(channelID)

	go func() {
		ticker := time.NewTicker(typingRefreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if !c.IsRunning() {
					return
				}
				c.sendTyping(channelID)
			}
		}
	}()
}

func (c *DiscordChannel) endTyping(channelID string) {
	c.typingMu.Lock()
	defer c.typingMu.Unlock()

	sess, ok := c.typing[channelID]
	if !ok {
		return
	}
	sess.pending--
	if sess.pending > 0 {
		return
	}
	delete(c.typing, channelID)
	sess.cancel()
}

func (c *DiscordChannel) stopAllTyping() {
	c.typingMu.Lock()
	defer c.typingMu.Unlock()

	for channelID, sess := range c.typing {
		sess.cancel()
		delete(c.typing, channelID)
	}
}

// parseCommand splits a leading !report from the message text.
func parseCommand(content string) (command, rest string) {
	trimmed := strings.TrimSpace(content)
	if trimmed == reportCommand || strings.HasPrefix(trimmed, reportCommand+" ") {
		return bus.CommandReport, strings.TrimSpace(trimmed[len(reportCommand):])
	}
	return "", trimmed
}

func (c *DiscordChannel) handleMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m == nil || m.Author == nil {
		return
	}
	if s.State != nil && s.State.User != nil && m.Author.ID == s.State.User.ID {
		return
	}
	if !c.IsAllowed(m.Author.ID) {
		logger.DebugCF("discord", "Message rejected by allowlist", map[string]any{
			"user_id": m.Author.ID,
		})
		return
	}

	command, content := parseCommand(m.Content)
	if command == "" && content == "" {
		return
	}

	logger.DebugCF("discord", "Received message", map[string]any{
		"sender_id": m.Author.ID,
		"command":   command,
		"chars":     utf8.RuneCountInString(content),
	})

	metadata := map[string]string{
		bus.MetaMessageID: m.ID,
		"guild_id":        m.GuildID,
		"is_dm":           fmt.Sprintf("%t", m.GuildID == ""),
	}
	if command != "" {
		metadata[bus.MetaCommand] = command
	}

	c.beginTyping(m.ChannelID)
	if !c.HandleMessage(m.Author.ID, m.ChannelID, content, metadata) {
		c.endTyping(m.ChannelID)
	}
}
