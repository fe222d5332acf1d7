// Package digest posts the strategic report to a chat on a cron schedule.
package digest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/adhocore/gronx"
	"github.com/robfig/cron/v3"

	"github.com/dotsetgreg/daybook/pkg/bus"
	"github.com/dotsetgreg/daybook/pkg/config"
	"github.com/dotsetgreg/daybook/pkg/logger"
)

const header = "🗓️ Journal digest"

// ReportSource renders the current strategic report.
type ReportSource interface {
	Report(ctx context.Context) (string, error)
}

// Publisher delivers outbound messages. *bus.MessageBus implements it.
type Publisher interface {
	PublishOutbound(msg bus.OutboundMessage) bool
}

type Scheduler struct {
	cfg    config.DigestConfig
	source ReportSource
	pub    Publisher
	loc    *time.Location

	mu      sync.Mutex
	cron    *cron.Cron
	lastRun time.Time
}

type Option func(*Scheduler)

// WithLocation evaluates the schedule in loc instead of local time.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) { s.loc = loc }
}

// New validates the schedule. It does not start anything.
func New(cfg config.DigestConfig, source ReportSource, pub Publisher, opts ...Option) (*Scheduler, error) {
	expr := strings.TrimSpace(cfg.Cron)
	if !gronx.New().IsValid(expr) {
		return nil, fmt.Errorf("invalid digest cron %q", cfg.Cron)
	}
	if cfg.ChannelID == "" {
		return nil, fmt.Errorf("digest channel_id is required")
	}
	cfg.Cron = expr
	if cfg.Channel == "" {
		cfg.Channel = "discord"
	}

	s := &Scheduler{cfg: cfg, source: source, pub: pub, loc: time.Local}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Start schedules the digest job in the background.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return nil
	}

	c := cron.New(cron.WithLocation(s.loc))
	if _, err := c.AddFunc(s.cfg.Cron, func() {
		if err := s.Fire(ctx); err != nil {
			logger.ErrorCF("digest", "Digest failed", map[string]any{"error": err.Error()})
		}
	}); err != nil {
		return fmt.Errorf("schedule digest: %w", err)
	}
	c.Start()
	s.cron = c

	fields := map[string]any{"cron": s.cfg.Cron, "channel": s.cfg.Channel}
	if next, err := s.Next(time.Now()); err == nil {
		fields["next_run"] = next.Format(time.RFC3339)
	}
	logger.InfoCF("digest", "Digest scheduler started", fields)
	return nil
}

// Stop waits for a running digest to finish or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
	}
	logger.InfoC("digest", "Digest scheduler stopped")
}

// Fire builds the report now and publishes it to the configured chat.
func (s *Scheduler) Fire(ctx context.Context) error {
	report, err := s.source.Report(ctx)
	if err != nil {
		return fmt.Errorf("build report: %w", err)
	}
	msg := bus.OutboundMessage{
		Channel: s.cfg.Channel,
		ChatID:  s.cfg.ChannelID,
		Content: header + "\n\n" + report,
		Kind:    bus.KindDigest,
	}
	if !s.pub.PublishOutbound(msg) {
		return fmt.Errorf("digest dropped: outbound queue unavailable")
	}

	s.mu.Lock()
	s.lastRun = time.Now()
	s.mu.Unlock()
	logger.InfoCF("digest", "Digest published", map[string]any{
		"channel": s.cfg.Channel,
		"chat_id": s.cfg.ChannelID,
	})
	return nil
}

// Next returns the first scheduled time strictly after ref.
func (s *Scheduler) Next(ref time.Time) (time.Time, error) {
	return gronx.NextTickAfter(s.cfg.Cron, ref.In(s.loc), false)
}

func (s *Scheduler) LastRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun
}
