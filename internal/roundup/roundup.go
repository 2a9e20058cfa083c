package roundup

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/mo"

	"hackbot/internal/chat"
	"hackbot/internal/eventbus"
	logx "hackbot/pkg/logx"
	"hackbot/pkg/snowflake"
)

// Service runs the roundup against a chat platform.
type Service struct {
	mu  sync.Mutex
	cfg Config

	platform chat.Platform
	log      logx.Logger
	bus      eventbus.Bus

	now    func() time.Time
	cursor func(time.Time) string
}

type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithBus publishes run reports on bus.
func WithBus(bus eventbus.Bus) Option {
	return func(s *Service) { s.bus = bus }
}

func New(cfg Config, platform chat.Platform, log logx.Logger, opts ...Option) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{
		cfg:      cfg.withDefaults(),
		platform: platform,
		log:      log,
		now:      time.Now,
		cursor:   snowflake.Cursor,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Apply swaps the configuration used by subsequent runs.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	s.cfg = cfg.withDefaults()
	s.mu.Unlock()
}

func (s *Service) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// Job adapts Run to the scheduler's job signature.
func (s *Service) Job(ctx context.Context) error {
	_, err := s.Run(ctx)
	return err
}

// Run executes one roundup.
func (s *Service) Run(ctx context.Context) (Report, error) {
	cfg := s.Config()
	start := s.now()
	rep := Report{
		RunID:     ulid.MustNew(ulid.Timestamp(start), ulid.DefaultEntropy()).String(),
		StartedAt: start,
		Winner:    mo.None[Contribution](),
	}
	log := s.log.With(logx.String("run_id", rep.RunID))
	log.Debug("roundup started", logx.String("channel_id", cfg.ChannelID))

	err := s.run(ctx, cfg, log, &rep)
	rep.Duration = s.now().Sub(start)

	evType := eventbus.RoundupCompleted
	switch {
	case err != nil:
		rep.Outcome = OutcomeFailed
		rep.Error = err.Error()
		evType = eventbus.RoundupFailed
		fields := []logx.Field{logx.Err(err), logx.String("thread_id", rep.ThreadID)}
		var rerr *RotationError
		if errors.As(err, &rerr) {
			fields = append(fields, logx.Bool("partial", rerr.Partial()), logx.Strings("removed", rerr.Done.Removed))
		}
		log.Error("roundup failed", fields...)
	case rep.Outcome == OutcomeSkipped:
		evType = eventbus.RoundupSkipped
	default:
		rep.Outcome = OutcomeCompleted
		log.Info("cleaned up photo thread",
			logx.String("thread", rep.ThreadName),
			logx.Int("attachments", rep.Attachments),
			logx.Int("contributors", len(rep.Leaderboard)),
			logx.Duration("took", rep.Duration),
		)
	}
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: evType, Time: s.now(), Data: rep})
	}
	return rep, err
}

func skip(rep *Report, log logx.Logger, reason Reason, msg string, fields ...logx.Field) error {
	rep.Outcome = OutcomeSkipped
	rep.Reason = reason
	log.Warn(msg, append([]logx.Field{logx.String("reason", string(reason))}, fields...)...)
	return nil
}

func (s *Service) run(ctx context.Context, cfg Config, log logx.Logger, rep *Report) error {
	p := s.platform

	channel, err := p.Channel(ctx, cfg.ChannelID)
	if errors.Is(err, chat.ErrNotFound) {
		return skip(rep, log, ReasonChannelNotFound, "could not find channel", logx.String("channel_id", cfg.ChannelID))
	}
	if err != nil {
		return fmt.Errorf("resolve channel: %w", err)
	}
	if !channel.Sendable {
		return skip(rep, log, ReasonChannelNotSendable, "cannot send messages to channel", logx.String("channel", channel.Name))
	}
	if channel.Kind != chat.KindGuildText {
		return skip(rep, log, ReasonChannelNotText, "channel cannot host threads",
			logx.String("channel", channel.Name), logx.String("kind", channel.Kind.String()))
	}

	threads, err := p.ActiveThreads(ctx, channel)
	if errors.Is(err, chat.ErrNotFound) || (err == nil && threads == nil) {
		return skip(rep, log, ReasonThreadsUnavailable, "could not fetch active threads", logx.String("channel", channel.Name))
	}
	if err != nil {
		return fmt.Errorf("fetch active threads: %w", err)
	}

	thread, ok := SelectLatestThread(threads, cfg.ThreadPrefix)
	if !ok {
		return skip(rep, log, ReasonThreadNotFound, "could not find latest photo thread",
			logx.String("prefix", cfg.ThreadPrefix), logx.Int("active_threads", len(threads)))
	}
	rep.ThreadID = thread.ID
	rep.ThreadName = thread.Name
	log = log.With(logx.String("thread_id", thread.ID))

	rep.Cursor = s.cursor(s.now().Add(-cfg.Window))
	messages, err := p.MessagesAfter(ctx, thread.ID, rep.Cursor, cfg.FetchLimit)
	if errors.Is(err, chat.ErrNotFound) {
		return skip(rep, log, ReasonMessagesUnavailable, "could not fetch messages")
	}
	if err != nil {
		return fmt.Errorf("fetch messages: %w", err)
	}
	rep.Messages = len(messages)

	tally, attachments := BuildTally(messages)
	if len(attachments) == 0 {
		return skip(rep, log, ReasonNoAttachments, "no attachments found", logx.Int("messages", len(messages)))
	}
	rep.Attachments = len(attachments)
	rep.Leaderboard = tally.Ranked()
	rep.Winner = tally.Winner()
	for _, a := range attachments {
		rep.ImageURLs = append(rep.ImageURLs, a.URL)
	}
	log.Debug("attachments collected", logx.Int("count", len(attachments)), logx.Strings("urls", rep.ImageURLs))

	starter, err := p.StarterMessage(ctx, thread)
	if errors.Is(err, chat.ErrNotFound) {
		return skip(rep, log, ReasonStarterUnavailable, "could not fetch starter message")
	}
	if err != nil {
		return fmt.Errorf("fetch starter message: %w", err)
	}

	if cfg.AnnounceLeaderboard {
		if _, err := p.Reply(ctx, starter, thanksText(cfg.EventName, len(attachments))); err != nil {
			return fmt.Errorf("reply to starter message: %w", err)
		}
		if _, err := p.Send(ctx, channel.ID, LeaderboardText(tally.Top(cfg.LeaderboardSize))); err != nil {
			return fmt.Errorf("post leaderboard: %w", err)
		}
		rep.Announced = true
	}

	if err := p.Unpin(ctx, starter); err != nil {
		return fmt.Errorf("unpin starter message: %w", err)
	}
	if err := p.SetThreadLocked(ctx, thread.ID, true); err != nil {
		return fmt.Errorf("lock thread: %w", err)
	}
	if err := p.SetThreadArchived(ctx, thread.ID, true); err != nil {
		return fmt.Errorf("archive thread: %w", err)
	}

	winner, hasWinner := rep.Winner.Get()
	if !hasWinner {
		log.Warn("no winner in tally; award rotation skipped")
	} else {
		rot, err := setAwardHolder(ctx, p, log, channel.GuildID, cfg.AwardRoleID, winner.UserID)
		rep.Rotation = rot
		if err != nil {
			return err
		}
		if _, err := p.Send(ctx, channel.ID, congratsText(cfg.AwardName, winner.UserID)); err != nil {
			return fmt.Errorf("post congratulations: %w", err)
		}
	}
	if _, err := p.Send(ctx, channel.ID, signOffText); err != nil {
		return fmt.Errorf("post sign-off: %w", err)
	}
	return nil
}
