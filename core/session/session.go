// Package session wires one learner's live player together: state machine,
// agent channel, command protocol and interaction tracker.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kwetu-lab/elimu/core"
	"github.com/kwetu-lab/elimu/core/agent"
	"github.com/kwetu-lab/elimu/core/player"
	"github.com/kwetu-lab/elimu/core/track"
	"github.com/kwetu-lab/elimu/core/training"
)

var ErrNotFound = errors.New("session not found")

type (
	// Session is one learner's live interaction with a training.
	Session struct {
		ID      string
		Machine *player.Machine
		Proto   *agent.Protocol
		Conn    *agent.Manager
		Tracker *track.Tracker

		detach func()
	}

	// Options identify the learner and training for a new session.
	Options struct {
		UserID     string `json:"user_id"`
		TrainingID string `json:"training_id" validate:"required"`
	}

	// Registry owns all live sessions in the process.
	Registry struct {
		svc       *training.Service
		applier   agent.Applier
		transport agent.Transport
		rec       track.Recorder
		mail      core.EmailService
		conf      *core.Config
		log       core.Logger

		mu       sync.Mutex
		sessions map[string]*Session
	}
)

func (o Options) Validate() error { return core.Validate.Struct(o) }

func NewRegistry(
	svc *training.Service,
	applier agent.Applier,
	transport agent.Transport,
	rec track.Recorder,
	mail core.EmailService,
	conf *core.Config,
	log core.Logger,
) *Registry {
	return &Registry{
		svc:       svc,
		applier:   applier,
		transport: transport,
		rec:       rec,
		mail:      mail,
		conf:      conf,
		log:       log,
		sessions:  make(map[string]*Session),
	}
}

// Start builds and registers a new session: loads the training's sections,
// attaches the tracker and opens the agent channel. A failed agent dial is
// not fatal; the connection manager keeps retrying in the background.
func (r *Registry) Start(ctx context.Context, opts Options) (*Session, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	sections, err := r.svc.QuerySections(ctx, opts.TrainingID)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	machine := player.NewMachine(r.log)
	proto := agent.NewProtocol(machine, r.svc, r.applier, r.log)
	conn := agent.NewManager(r.transport, r.conf, r.log)
	tracker := track.NewTracker(r.rec, r.mail, r.conf, r.log, track.Session{
		ID:         id,
		UserID:     opts.UserID,
		TrainingID: opts.TrainingID,
		StartedAt:  time.Now().UTC(),
	})

	detachTracker := tracker.Attach(machine, proto)
	unsubConn := conn.Subscribe(proto.HandleMessage)

	machine.LoadTraining(sections)

	if err := conn.EnsureConnected(ctx, agent.InitContext{
		SessionID:  id,
		UserID:     opts.UserID,
		TrainingID: opts.TrainingID,
	}); err != nil {
		r.log.Warn("session: agent channel unavailable, reconnecting", err)
	}

	sess := &Session{
		ID:      id,
		Machine: machine,
		Proto:   proto,
		Conn:    conn,
		Tracker: tracker,
		detach: func() {
			unsubConn()
			detachTracker()
		},
	}

	r.mu.Lock()
	r.sessions[id] = sess
	r.mu.Unlock()
	return sess, nil
}

// Get returns a live session.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sess, ok := r.sessions[id]; ok {
		return sess, nil
	}
	return nil, ErrNotFound
}

// Stop tears a session down: the agent channel is closed (cancelling any
// pending reconnect) and in-flight log submissions are drained.
func (r *Registry) Stop(id string) error {
	r.mu.Lock()
	sess, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if !ok {
		return ErrNotFound
	}

	sess.detach()
	sess.Conn.Close()
	sess.Tracker.Wait()
	return nil
}

// Close stops all live sessions.
func (r *Registry) Close() {
	r.mu.Lock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	for _, id := range ids {
		_ = r.Stop(id)
	}
}

// SendChat pushes outbound chat text on the agent channel. It reports false
// when the channel is not open; delivery is best-effort.
func (s *Session) SendChat(content string) bool {
	return s.Conn.Send(agent.UserMessage{Content: content})
}

// Instruct runs an agent-assisted overlay authoring instruction against the
// session's current section, feeding its script as context.
func (s *Session) Instruct(ctx context.Context, prompt string) (agent.InstructionResult, error) {
	sec, ok := s.Machine.Section()
	if !ok {
		return agent.InstructionResult{}, training.ErrSectionNotFound
	}
	return s.Proto.Instruct(ctx, sec.ID, prompt, sec.Script)
}
