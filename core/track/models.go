package track

import (
	"context"
	"time"
)

// Progress of a learner through a training. Transitions are monotonic:
// completed is terminal and never regresses.
type Progress string

const (
	ProgressNotStarted Progress = "not_started"
	ProgressInProgress Progress = "in_progress"
	ProgressCompleted  Progress = "completed"
)

var progressRank = map[Progress]int{
	ProgressNotStarted: 0,
	ProgressInProgress: 1,
	ProgressCompleted:  2,
}

// Before reports whether p strictly precedes other in the progress order.
func (p Progress) Before(other Progress) bool {
	return progressRank[p] < progressRank[other]
}

// Interaction event types.
const (
	EventTrainingStart     = "training_start"
	EventTrainingCompleted = "training_completed"
	EventPlay              = "play"
	EventPause             = "pause"
	EventSeek              = "seek"
	EventSectionChange     = "section_change"
	EventVolumeChange      = "volume_change"
	EventMuteToggle        = "mute_toggle"
	EventSubtitlesToggle   = "subtitles_toggle"
	EventMicToggle         = "microphone_toggle"
)

// Session correlates one learner's continuous interaction with a training.
type Session struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id,omitempty"`
	TrainingID string    `json:"training_id,omitempty"`
	StartedAt  time.Time `json:"started_at"` // UTC
}

// InteractionEvent is one append-only session log entry. Events are never
// mutated after creation; ordering is the order of successful submission.
type InteractionEvent struct {
	ID         string                 `json:"id"`
	SessionID  string                 `json:"session_id"`
	UserID     string                 `json:"user_id,omitempty"`
	TrainingID string                 `json:"training_id,omitempty"`
	Type       string                 `json:"type"`
	VideoTime  float64                `json:"video_time"`
	Timestamp  time.Time              `json:"timestamp"` // wall clock, UTC
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// ChatMessage is one chat log entry within a session.
type ChatMessage struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"` // "user" | "assistant"
	Content   string    `json:"content"`
	VideoTime float64   `json:"video_time"`
	Timestamp time.Time `json:"timestamp"` // UTC
}

// Recorder is the backend collaborator surface for the session log. Gaps are
// tolerated: a failed submission is logged and swallowed, never fatal.
type Recorder interface {
	RecordEvent(ctx context.Context, evt InteractionEvent) error
	RecordChat(ctx context.Context, msg ChatMessage) error
	UpsertProgress(ctx context.Context, s Session, p Progress) error
}
