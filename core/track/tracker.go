package track

import (
	"context"
	"fmt"
	"net/mail"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kwetu-lab/elimu/core"
	"github.com/kwetu-lab/elimu/core/agent"
	"github.com/kwetu-lab/elimu/core/player"
)

// submitTimeout bounds one background submission to the backend.
const submitTimeout = 10 * time.Second

// Tracker observes player transitions and protocol chat events and appends
// them to the durable session log, without ever blocking the caller.
// Submission failures must never abort playback or command handling.
type Tracker struct {
	rec  Recorder
	mail core.EmailService // optional completion notice
	conf *core.Config
	log  core.Logger

	session Session

	mu        sync.Mutex
	progress  Progress
	pausedAt  *time.Time
	videoTime float64 // last seen playback clock

	wg sync.WaitGroup
}

func NewTracker(rec Recorder, mail core.EmailService, conf *core.Config, log core.Logger, session Session) *Tracker {
	if session.StartedAt.IsZero() {
		session.StartedAt = time.Now().UTC()
	}
	return &Tracker{
		rec:      rec,
		mail:     mail,
		conf:     conf,
		log:      log,
		session:  session,
		progress: ProgressNotStarted,
	}
}

func (t *Tracker) Session() Session { return t.session }

func (t *Tracker) Progress() Progress {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.progress
}

// Attach subscribes the tracker to a player machine and a command protocol.
// The returned func detaches it again.
func (t *Tracker) Attach(m *player.Machine, p *agent.Protocol) func() {
	unsub := m.Subscribe(t.HandlePlayerEvent)
	p.OnChat(t.HandleChat)
	return unsub
}

// HandlePlayerEvent translates one player transition into a log entry.
func (t *Tracker) HandlePlayerEvent(evt player.Event) {
	now := time.Now().UTC()

	// keep the playback clock current for chat entries; ticks count here
	// even though they are not logged themselves
	t.mu.Lock()
	t.videoTime = evt.State.Time
	t.mu.Unlock()

	switch a := evt.Action.(type) {
	case player.Loaded:
		t.advanceProgress(ProgressInProgress)
		t.record(EventTrainingStart, evt.State.Time, nil)
	case player.Play:
		meta := map[string]interface{}{}
		t.mu.Lock()
		if t.pausedAt != nil {
			meta["paused_for"] = now.Sub(*t.pausedAt).Seconds()
			t.pausedAt = nil
		}
		t.mu.Unlock()
		t.record(EventPlay, evt.State.Time, meta)
	case player.Pause:
		t.mu.Lock()
		t.pausedAt = &now
		t.mu.Unlock()
		t.record(EventPause, evt.State.Time, nil)
	case player.Seek:
		t.record(EventSeek, evt.State.Time, map[string]interface{}{
			"from": evt.Prev.Time,
			"to":   evt.State.Time,
		})
	case player.SetSection:
		t.record(EventSectionChange, evt.State.Time, map[string]interface{}{
			"from_section": evt.Prev.SectionID,
			"to_section":   evt.State.SectionID,
		})
	case player.SetVolume:
		t.record(EventVolumeChange, evt.State.Time, map[string]interface{}{
			"volume": evt.State.Volume,
		})
	case player.ToggleMute:
		t.record(EventMuteToggle, evt.State.Time, map[string]interface{}{"muted": evt.State.Muted})
	case player.ToggleSubtitles:
		t.record(EventSubtitlesToggle, evt.State.Time, map[string]interface{}{"on": evt.State.ShowSubtitles})
	case player.ToggleMicrophone:
		t.record(EventMicToggle, evt.State.Time, map[string]interface{}{"on": evt.State.MicActive})
	case player.End:
		t.record(EventTrainingCompleted, evt.State.Time, map[string]interface{}{
			"session_duration": now.Sub(t.session.StartedAt).Seconds(),
		})
		t.advanceProgress(ProgressCompleted)
	case player.Tick:
		// the playback clock is not a loggable interaction
		_ = a
	}
}

// HandleChat appends one chat entry to the session log.
func (t *Tracker) HandleChat(ev agent.ChatEvent) {
	t.mu.Lock()
	videoTime := t.videoTime
	t.mu.Unlock()

	msg := ChatMessage{
		ID:        uuid.NewString(),
		SessionID: t.session.ID,
		Role:      ev.Role,
		Content:   ev.Content,
		VideoTime: videoTime,
		Timestamp: time.Now().UTC(),
	}
	t.submit("chat", func(ctx context.Context) error {
		return t.rec.RecordChat(ctx, msg)
	})
}

// Wait blocks until in-flight submissions finish. Used by tests and teardown.
func (t *Tracker) Wait() { t.wg.Wait() }

func (t *Tracker) record(typ string, videoTime float64, meta map[string]interface{}) {
	evt := InteractionEvent{
		ID:         uuid.NewString(),
		SessionID:  t.session.ID,
		UserID:     t.session.UserID,
		TrainingID: t.session.TrainingID,
		Type:       typ,
		VideoTime:  videoTime,
		Timestamp:  time.Now().UTC(),
		Metadata:   meta,
	}
	t.submit(typ, func(ctx context.Context) error {
		return t.rec.RecordEvent(ctx, evt)
	})
}

// advanceProgress moves the training progress forward, never backward:
// once completed, a later training_start cannot regress it.
func (t *Tracker) advanceProgress(p Progress) {
	t.mu.Lock()
	if !t.progress.Before(p) {
		t.mu.Unlock()
		return
	}
	t.progress = p
	t.mu.Unlock()

	t.submit("progress", func(ctx context.Context) error {
		return t.rec.UpsertProgress(ctx, t.session, p)
	})

	if p == ProgressCompleted {
		t.sendCompletionNotice()
	}
}

func (t *Tracker) sendCompletionNotice() {
	if t.mail == nil || !t.conf.SendCompletionEmails || t.conf.CompletionNotifyEmail == "" {
		return
	}
	t.mail.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Address: t.conf.CompletionNotifyEmail}},
		Subject: "Training completed",
		BodyStr: fmt.Sprintf("user %s completed training %s (session %s)", t.session.UserID, t.session.TrainingID, t.session.ID),
	})
}

// submit runs one log submission in the background; errors are logged and
// swallowed — tracking never propagates failures to the player.
func (t *Tracker) submit(what string, fn func(ctx context.Context) error) {
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				t.log.Error("track: submit panicked", r)
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), submitTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			t.log.Warn("track: "+what+" submission failed", err)
		}
	}()
}
