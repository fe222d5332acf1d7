package channels

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotsetgreg/daybook/pkg/bus"
	"github.com/dotsetgreg/daybook/pkg/config"
)

func TestSplitMessage_ShortIsUntouched(t *testing.T) {
	assert.Equal(t, []string{"hello"}, splitMessage("hello", 10))
}

func TestSplitMessage_PrefersNewlines(t *testing.T) {
	line := strings.Repeat("a", 30)
	content := line + "\n" + line + "\n" + line
	chunks := splitMessage(content, 70)
	require.Len(t, chunks, 2)
	assert.Equal(t, line+"\n"+line, chunks[0])
	assert.Equal(t, line, chunks[1])
}

func TestSplitMessage_NeverBreaksRunes(t *testing.T) {
	content := strings.Repeat("⭐é", 500)
	chunks := splitMessage(content, 97)
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.True(t, utf8.ValidString(c), "chunk is not valid UTF-8")
		assert.LessOrEqual(t, len(c), 97)
	}
	assert.Equal(t, content, strings.Join(chunks, ""))
}

func TestBaseChannel_IsAllowed(t *testing.T) {
	open := NewBaseChannel("discord", nil, nil)
	assert.True(t, open.IsAllowed("anyone"))

	c := NewBaseChannel("discord", nil, []string{"123", "@alice", " "})
	assert.True(t, c.IsAllowed("123"))
	assert.True(t, c.IsAllowed("123|bob"))
	assert.True(t, c.IsAllowed("999|alice"))
	assert.False(t, c.IsAllowed("999"))
	assert.False(t, c.IsAllowed(""))
}

func TestBaseChannel_HandleMessagePublishes(t *testing.T) {
	mb := bus.NewMessageBus()
	defer mb.Close()
	c := NewBaseChannel("discord", mb, []string{"1"})

	assert.False(t, c.HandleMessage("2", "chan", "ignored", nil))
	require.True(t, c.HandleMessage("1", "chan", "what happened this week", map[string]string{"k": "v"}))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msg, ok := mb.ConsumeInbound(ctx)
	require.True(t, ok)
	assert.Equal(t, "discord:chan", msg.SessionKey)
	assert.Equal(t, "what happened this week", msg.Content)
	assert.Equal(t, "v", msg.Metadata["k"])
}

func TestParseCommand(t *testing.T) {
	cmd, rest := parseCommand("  !report  ")
	assert.Equal(t, bus.CommandReport, cmd)
	assert.Empty(t, rest)

	cmd, rest = parseCommand("!report please")
	assert.Equal(t, bus.CommandReport, cmd)
	assert.Equal(t, "please", rest)

	cmd, rest = parseCommand("!reporting is fun")
	assert.Empty(t, cmd)
	assert.Equal(t, "!reporting is fun", rest)
}

type fakeChannel struct {
	name string
	mu   sync.Mutex
	sent []bus.OutboundMessage
	run  bool
}

func (f *fakeChannel) Name() string                   { return f.name }
func (f *fakeChannel) IsRunning() bool                { f.mu.Lock(); defer f.mu.Unlock(); return f.run }
func (f *fakeChannel) IsAllowed(senderID string) bool { return true }

func (f *fakeChannel) Start(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.run = true
	return nil
}

func (f *fakeChannel) Stop(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.run = false
	return nil
}

func (f *fakeChannel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeChannel) messages() []bus.OutboundMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bus.OutboundMessage(nil), f.sent...)
}

func TestManager_DispatchesToRegisteredChannel(t *testing.T) {
	mb := bus.NewMessageBus()
	defer mb.Close()

	m, err := NewManager(config.DefaultConfig(), mb)
	require.NoError(t, err)
	assert.Empty(t, m.GetEnabledChannels())

	fake := &fakeChannel{name: "discord"}
	m.RegisterChannel("discord", fake)
	require.NoError(t, m.StartAll(context.Background()))

	mb.PublishOutbound(bus.OutboundMessage{Channel: bus.ChannelCLI, ChatID: "x", Content: "internal"})
	mb.PublishOutbound(bus.OutboundMessage{Channel: "discord", ChatID: "42", Content: "📅 2024-06", Kind: bus.KindDigest})

	require.Eventually(t, func() bool { return len(fake.messages()) == 1 }, time.Second, 10*time.Millisecond)
	got := fake.messages()[0]
	assert.Equal(t, "42", got.ChatID)
	assert.Equal(t, bus.KindDigest, got.Kind)

	assert.Equal(t, map[string]ChannelStatus{"discord": {Enabled: true, Running: true}}, m.GetStatus())
	require.NoError(t, m.StopAll(context.Background()))
	assert.False(t, fake.IsRunning())
}

func TestNewManager_DiscordNeedsToken(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Channels.Discord.Enabled = true
	_, err := NewManager(cfg, bus.NewMessageBus())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token")
}
