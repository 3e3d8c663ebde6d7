package inmem

import (
	"context"

	"github.com/kwetu-lab/elimu/core/track"
)

type LogRecorder struct {
	db *logTables
}

var _ track.Recorder = (*LogRecorder)(nil) // interface compliance check

func NewLogRecorder(db *DB) *LogRecorder {
	return &LogRecorder{db: db.logbook}
}

func (rec *LogRecorder) RecordEvent(_ context.Context, evt track.InteractionEvent) error {
	rec.db.Lock()
	defer rec.db.Unlock()
	rec.db.events = append(rec.db.events, evt)
	return nil
}

func (rec *LogRecorder) RecordChat(_ context.Context, msg track.ChatMessage) error {
	rec.db.Lock()
	defer rec.db.Unlock()
	rec.db.chats = append(rec.db.chats, msg)
	return nil
}

func (rec *LogRecorder) UpsertProgress(_ context.Context, s track.Session, p track.Progress) error {
	rec.db.Lock()
	defer rec.db.Unlock()
	rec.db.progress[s.ID] = p
	return nil
}

// Events returns a snapshot of the recorded interaction events.
func (rec *LogRecorder) Events() []track.InteractionEvent {
	rec.db.RLock()
	defer rec.db.RUnlock()
	out := make([]track.InteractionEvent, len(rec.db.events))
	copy(out, rec.db.events)
	return out
}

// Chats returns a snapshot of the recorded chat messages.
func (rec *LogRecorder) Chats() []track.ChatMessage {
	rec.db.RLock()
	defer rec.db.RUnlock()
	out := make([]track.ChatMessage, len(rec.db.chats))
	copy(out, rec.db.chats)
	return out
}

// Progress returns the stored progress for a session.
func (rec *LogRecorder) Progress(sessionID string) track.Progress {
	rec.db.RLock()
	defer rec.db.RUnlock()
	if p, ok := rec.db.progress[sessionID]; ok {
		return p
	}
	return track.ProgressNotStarted
}
