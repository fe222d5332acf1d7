package digest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotsetgreg/daybook/pkg/bus"
	"github.com/dotsetgreg/daybook/pkg/config"
)

type staticReport struct {
	text string
	err  error
}

func (r staticReport) Report(context.Context) (string, error) { return r.text, r.err }

func digestConfig(expr string) config.DigestConfig {
	return config.DigestConfig{Enabled: true, Cron: expr, Channel: "discord", ChannelID: "42"}
}

func TestNew_RejectsBadConfig(t *testing.T) {
	_, err := New(digestConfig("not a cron"), staticReport{}, bus.NewMessageBus())
	assert.Error(t, err)

	cfg := digestConfig("0 8 * * 1")
	cfg.ChannelID = ""
	_, err = New(cfg, staticReport{}, bus.NewMessageBus())
	assert.Error(t, err)
}

func TestFire_PublishesDigest(t *testing.T) {
	mb := bus.NewMessageBus()
	defer mb.Close()

	s, err := New(digestConfig("0 8 * * 1"), staticReport{text: "📅 global\n- 📆 Next week tends to be LIGHT.\n"}, mb)
	require.NoError(t, err)
	require.NoError(t, s.Fire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msg, ok := mb.SubscribeOutbound(ctx)
	require.True(t, ok)
	assert.Equal(t, "discord", msg.Channel)
	assert.Equal(t, "42", msg.ChatID)
	assert.Equal(t, bus.KindDigest, msg.Kind)
	assert.Equal(t, header+"\n\n📅 global\n- 📆 Next week tends to be LIGHT.\n", msg.Content)
	assert.False(t, s.LastRun().IsZero())
}

func TestFire_ReportError(t *testing.T) {
	boom := errors.New("disk gone")
	s, err := New(digestConfig("0 8 * * 1"), staticReport{err: boom}, bus.NewMessageBus())
	require.NoError(t, err)
	assert.ErrorIs(t, s.Fire(context.Background()), boom)
	assert.True(t, s.LastRun().IsZero())
}

func TestFire_ClosedBus(t *testing.T) {
	mb := bus.NewMessageBus()
	mb.Close()
	s, err := New(digestConfig("0 8 * * 1"), staticReport{text: "x"}, mb)
	require.NoError(t, err)
	assert.Error(t, s.Fire(context.Background()))
}

func TestNext(t *testing.T) {
	s, err := New(digestConfig("0 8 * * 1"), staticReport{}, bus.NewMessageBus(), WithLocation(time.UTC))
	require.NoError(t, err)

	// Thursday 2024-06-13 -> Monday 2024-06-17 08:00.
	next, err := s.Next(time.Date(2024, 6, 13, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "2024-06-17T08:00:00Z", next.UTC().Format(time.RFC3339))
}

func TestStartStop(t *testing.T) {
	s, err := New(digestConfig("*/5 * * * *"), staticReport{text: "x"}, bus.NewMessageBus())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Start(ctx))
	require.NoError(t, s.Start(ctx), "second start is a no-op")
	s.Stop(ctx)
	s.Stop(ctx)
}
