package track

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kwetu-lab/elimu/core"
	"github.com/kwetu-lab/elimu/core/agent"
	"github.com/kwetu-lab/elimu/core/player"
)

func testLogger() core.Logger {
	return core.NewStdLogger(log.New(io.Discard, "", 0))
}

// memRecorder collects submissions; fail makes every call error out.
type memRecorder struct {
	mu       sync.Mutex
	events   []InteractionEvent
	chats    []ChatMessage
	progress []Progress
	fail     bool
}

func (r *memRecorder) RecordEvent(_ context.Context, evt InteractionEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("backend down")
	}
	r.events = append(r.events, evt)
	return nil
}

func (r *memRecorder) RecordChat(_ context.Context, msg ChatMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("backend down")
	}
	r.chats = append(r.chats, msg)
	return nil
}

func (r *memRecorder) UpsertProgress(_ context.Context, _ Session, p Progress) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("backend down")
	}
	r.progress = append(r.progress, p)
	return nil
}

func (r *memRecorder) eventTypes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]string, 0, len(r.events))
	for _, evt := range r.events {
		types = append(types, evt.Type)
	}
	return types
}

type memMailer struct {
	mu   sync.Mutex
	sent []*core.EmailMessage
}

func (m *memMailer) SendMessages(messages ...*core.EmailMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, messages...)
}

func trackerSetup(conf *core.Config) (*Tracker, *memRecorder, *memMailer) {
	rec := new(memRecorder)
	mailer := new(memMailer)
	if conf == nil {
		conf = new(core.Config)
	}
	tr := NewTracker(rec, mailer, conf, testLogger(), Session{
		ID:         "sess1",
		UserID:     "u1",
		TrainingID: "tr1",
		StartedAt:  time.Now().UTC().Add(-time.Minute),
	})
	return tr, rec, mailer
}

func TestTracker_HandlePlayerEvent(t *testing.T) {
	tr, rec, _ := trackerSetup(nil)

	tr.HandlePlayerEvent(player.Event{Action: player.Loaded{}})
	tr.HandlePlayerEvent(player.Event{Action: player.Play{}, State: player.State{Time: 0}})
	tr.HandlePlayerEvent(player.Event{
		Action: player.Seek{Time: 30},
		Prev:   player.State{Time: 5},
		State:  player.State{Time: 30},
	})
	tr.HandlePlayerEvent(player.Event{Action: player.Pause{}, State: player.State{Time: 30}})
	tr.HandlePlayerEvent(player.Event{Action: player.Tick{Time: 31}, State: player.State{Time: 31}})
	tr.Wait()

	// ticks are playback clock noise, not interactions
	assert.ElementsMatch(t, []string{EventTrainingStart, EventPlay, EventSeek, EventPause}, rec.eventTypes())
	assert.Equal(t, ProgressInProgress, tr.Progress())

	rec.mu.Lock()
	defer rec.mu.Unlock()
	for _, evt := range rec.events {
		assert.Equal(t, "sess1", evt.SessionID)
		assert.Equal(t, "u1", evt.UserID)
		assert.Equal(t, "tr1", evt.TrainingID)
		assert.NotEmpty(t, evt.ID)
		if evt.Type == EventSeek {
			assert.Equal(t, float64(5), evt.Metadata["from"])
			assert.Equal(t, float64(30), evt.Metadata["to"])
		}
	}
}

func TestTracker_Completion(t *testing.T) {
	tr, rec, _ := trackerSetup(nil)

	tr.HandlePlayerEvent(player.Event{Action: player.Loaded{}})
	tr.HandlePlayerEvent(player.Event{Action: player.End{}, State: player.State{Time: 300}})
	tr.Wait()

	assert.Equal(t, ProgressCompleted, tr.Progress())
	assert.Contains(t, rec.eventTypes(), EventTrainingCompleted)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	for _, evt := range rec.events {
		if evt.Type == EventTrainingCompleted {
			assert.Greater(t, evt.Metadata["session_duration"], float64(0))
		}
	}
}

func TestTracker_ProgressNeverRegresses(t *testing.T) {
	tr, rec, _ := trackerSetup(nil)

	tr.HandlePlayerEvent(player.Event{Action: player.End{}})
	// a replay after completion must not regress the progress
	tr.HandlePlayerEvent(player.Event{Action: player.Loaded{}})
	tr.Wait()

	assert.Equal(t, ProgressCompleted, tr.Progress())
	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, []Progress{ProgressCompleted}, rec.progress)
}

func TestTracker_RecorderFailureIsSwallowed(t *testing.T) {
	tr, rec, _ := trackerSetup(nil)
	rec.fail = true

	// failed submissions are logged and dropped, never propagated
	tr.HandlePlayerEvent(player.Event{Action: player.Loaded{}})
	tr.HandlePlayerEvent(player.Event{Action: player.Play{}})
	tr.Wait()

	assert.Empty(t, rec.eventTypes())
	// local progress still advances even when the upsert is lost
	assert.Equal(t, ProgressInProgress, tr.Progress())
}

func TestTracker_HandleChat(t *testing.T) {
	tr, rec, _ := trackerSetup(nil)

	tr.HandlePlayerEvent(player.Event{Action: player.Tick{Time: 12.5}, State: player.State{Time: 12.5}})
	tr.HandleChat(agent.ChatEvent{Role: "user", Content: "what is this?"})
	tr.Wait() // submissions are concurrent; serialize to keep the order stable
	tr.HandlePlayerEvent(player.Event{Action: player.Tick{Time: 20}, State: player.State{Time: 20}})
	tr.HandleChat(agent.ChatEvent{Role: "assistant", Content: "a training"})
	tr.Wait()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.chats, 2)
	assert.Equal(t, "user", rec.chats[0].Role)
	assert.Equal(t, "sess1", rec.chats[0].SessionID)
	assert.NotEmpty(t, rec.chats[0].ID)
	// each chat entry snapshots the playback clock at submission time
	assert.Equal(t, 12.5, rec.chats[0].VideoTime)
	assert.Equal(t, float64(20), rec.chats[1].VideoTime)
}

func TestTracker_CompletionNotice(t *testing.T) {
	conf := new(core.Config)
	conf.SendCompletionEmails = true
	conf.CompletionNotifyEmail = "training-team@example.test"
	tr, _, mailer := trackerSetup(conf)

	tr.HandlePlayerEvent(player.Event{Action: player.End{}})
	tr.Wait()

	mailer.mu.Lock()
	defer mailer.mu.Unlock()
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "training-team@example.test", mailer.sent[0].To[0].Address)
}

func TestProgress_Before(t *testing.T) {
	assert.True(t, ProgressNotStarted.Before(ProgressInProgress))
	assert.True(t, ProgressInProgress.Before(ProgressCompleted))
	assert.False(t, ProgressCompleted.Before(ProgressInProgress))
	assert.False(t, ProgressCompleted.Before(ProgressCompleted))
}
