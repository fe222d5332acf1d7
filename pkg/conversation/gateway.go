package conversation

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/dotsetgreg/daybook/pkg/assistant"
	"github.com/dotsetgreg/daybook/pkg/bus"
	"github.com/dotsetgreg/daybook/pkg/insights"
	"github.com/dotsetgreg/daybook/pkg/logger"
	"github.com/dotsetgreg/daybook/pkg/memory"
	"github.com/dotsetgreg/daybook/pkg/notes"
)

const emptyReport = "📭 Not enough notes for a report yet."

// Gateway answers questions from the bus against the current journal.
type Gateway struct {
	bus       *bus.MessageBus
	journal   *notes.Journal
	assistant *assistant.Assistant
	registry  *Registry
	running   atomic.Bool
}

func NewGateway(mb *bus.MessageBus, journal *notes.Journal, a *assistant.Assistant, registry *Registry) *Gateway {
	return &Gateway{
		bus:       mb,
		journal:   journal,
		assistant: a,
		registry:  registry,
	}
}

// Run consumes inbound messages until ctx is done, the bus closes or Stop
// is called. Each answer is published back to the originating chat.
func (g *Gateway) Run(ctx context.Context) error {
	g.running.Store(true)
	defer g.running.Store(false)

	for g.running.Load() {
		msg, ok := g.bus.ConsumeInbound(ctx)
		if !ok {
			return nil
		}

		response, err := g.process(ctx, msg)
		if err != nil {
			logger.ErrorCF("conversation", "Failed to process message", map[string]any{
				"channel": msg.Channel,
				"session": msg.Session(),
				"error":   err.Error(),
			})
			response = fmt.Sprintf("Error processing message: %v", err)
		}
		if response == "" {
			continue
		}

		g.bus.PublishOutbound(bus.OutboundMessage{
			Channel: msg.Channel,
			ChatID:  msg.ChatID,
			Content: response,
			Kind:    bus.KindAnswer,
			ReplyTo: msg.Metadata[bus.MetaMessageID],
		})
	}
	return nil
}

func (g *Gateway) Stop() {
	g.running.Store(false)
}

// Ask answers question in the given session without going through the bus.
func (g *Gateway) Ask(ctx context.Context, sessionKey, question string) (string, error) {
	return g.process(ctx, bus.InboundMessage{
		Channel:    bus.ChannelCLI,
		SenderID:   "local-user",
		ChatID:     "direct",
		Content:    question,
		SessionKey: sessionKey,
	})
}

// Report renders the strategic report of the current journal.
func (g *Gateway) Report(ctx context.Context) (string, error) {
	snap, err := g.journal.Snapshot(ctx)
	if err != nil {
		return "", fmt.Errorf("load notes: %w", err)
	}
	return renderReport(insights.BuildStrategicReport(snap)), nil
}

func renderReport(r insights.StrategicReport) string {
	if len(r) == 0 {
		return emptyReport
	}
	return r.String()
}

func (g *Gateway) process(ctx context.Context, msg bus.InboundMessage) (string, error) {
	logger.InfoCF("conversation", "Processing message", map[string]any{
		"channel":   msg.Channel,
		"chat_id":   msg.ChatID,
		"sender_id": msg.SenderID,
		"session":   msg.Session(),
	})

	if msg.Metadata[bus.MetaCommand] == bus.CommandReport {
		return g.Report(ctx)
	}

	snap, err := g.journal.Snapshot(ctx)
	if err != nil {
		return "", fmt.Errorf("load notes: %w", err)
	}

	var answer string
	err = g.registry.With(ctx, msg.Session(), func(mem *memory.Memory) error {
		answer = g.assistant.Answer(msg.Content, snap, mem)
		return nil
	})
	if err != nil {
		if answer == "" {
			return "", err
		}
		// The answer stands even if history could not be written.
		logger.WarnCF("conversation", "Answer not persisted", map[string]any{
			"session": msg.Session(),
			"error":   err.Error(),
		})
	}
	return answer, nil
}
