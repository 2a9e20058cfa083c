package roundup

import (
	"time"

	"github.com/samber/mo"
)

type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeFailed    Outcome = "failed"
)

// Reason explains why a run was skipped.
type Reason string

const (
	ReasonChannelNotFound     Reason = "channel_not_found"
	ReasonChannelNotSendable  Reason = "channel_not_sendable"
	ReasonChannelNotText      Reason = "channel_not_text"
	ReasonThreadsUnavailable  Reason = "threads_unavailable"
	ReasonThreadNotFound      Reason = "thread_not_found"
	ReasonMessagesUnavailable Reason = "messages_unavailable"
	ReasonNoAttachments       Reason = "no_attachments"
	ReasonStarterUnavailable  Reason = "starter_unavailable"
)

// Report describes one run. It is logged and published, never stored.
type Report struct {
	RunID     string
	StartedAt time.Time
	Duration  time.Duration

	Outcome Outcome
	Reason  Reason
	Error   string

	ThreadID    string
	ThreadName  string
	Cursor      string
	Messages    int
	Attachments int
	ImageURLs   []string

	Announced   bool
	Leaderboard []Contribution
	Winner      mo.Option[Contribution]
	Rotation    Rotation
}
