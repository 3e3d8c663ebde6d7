package player

import (
	"sync"

	"github.com/kwetu-lab/elimu/core"
	"github.com/kwetu-lab/elimu/core/training"
)

// Statuses
const (
	StatusIdle    = "idle"
	StatusLoading = "loading"
	StatusReady   = "ready"
	StatusPlaying = "playing"
	StatusPaused  = "paused"
	StatusEnded   = "ended"
)

const (
	MinVolume = 0
	MaxVolume = 100
)

// State is the canonical, ephemeral player state. There is exactly one live
// instance per session and it is mutated only through Machine.Apply.
type State struct {
	SectionID      string             `json:"section_id"`
	Time           float64            `json:"time"` // seconds into the section
	Status         string             `json:"status"`
	Volume         int                `json:"volume"` // [0,100]
	Muted          bool               `json:"muted"`
	ShowSubtitles  bool               `json:"show_subtitles"`
	MicActive      bool               `json:"mic_active"`
	ActiveOverlays []training.Overlay `json:"active_overlays"` // derived
	Frame          FrameResult        `json:"frame"`           // derived
}

func (s State) IsPlaying() bool { return s.Status == StatusPlaying }

// Action is a state-changing command from any source: user controls, the
// scheduler (pause_on_show) or the agent command protocol. The variant set
// is closed; Machine.Apply switches over it exhaustively.
type Action interface{ isAction() }

type (
	Play             struct{}
	Pause            struct{}
	Seek             struct{ Time float64 }
	SetSection       struct{ SectionID string }
	SetVolume        struct{ Level int }
	ToggleMute       struct{}
	ToggleSubtitles  struct{}
	ToggleMicrophone struct{}
	// Tick advances the playback clock. Emitted by the player collaborator
	// at its native tick rate.
	Tick struct{ Time float64 }
	// End marks the current section's playback as finished.
	End struct{}
	// Loaded is emitted (never applied) when a training is loaded.
	Loaded struct{}
)

func (Play) isAction()             {}
func (Pause) isAction()            {}
func (Seek) isAction()             {}
func (SetSection) isAction()       {}
func (SetVolume) isAction()        {}
func (ToggleMute) isAction()       {}
func (ToggleSubtitles) isAction()  {}
func (ToggleMicrophone) isAction() {}
func (Tick) isAction()             {}
func (End) isAction()              {}
func (Loaded) isAction()           {}

// Event is delivered to subscribers after every applied action.
type Event struct {
	Action Action
	Prev   State
	State  State
}

type Subscriber func(Event)

// Machine owns the canonical player state and applies actions from any
// source. Applications are serialized; subscribers run synchronously, in
// registration order, before Apply returns.
type Machine struct {
	mu       sync.Mutex
	sections map[string]training.Section
	order    []string // section IDs in training order
	state    State
	subs     map[int]Subscriber
	nextSub  int
	log      core.Logger
}

func NewMachine(log core.Logger) *Machine {
	return &Machine{
		sections: make(map[string]training.Section),
		state:    State{Status: StatusIdle, Volume: MaxVolume},
		subs:     make(map[int]Subscriber),
		log:      log,
	}
}

// LoadTraining registers the training's sections and moves the machine to
// ready on the first section.
func (m *Machine) LoadTraining(sections []training.Section) {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev := m.state
	m.state.Status = StatusLoading
	m.sections = make(map[string]training.Section, len(sections))
	m.order = m.order[:0]
	for _, sec := range sections {
		m.sections[sec.ID] = sec
		m.order = append(m.order, sec.ID)
	}
	if len(m.order) > 0 {
		m.state.SectionID = m.order[0]
		m.state.Time = 0
		m.state.Status = StatusReady
	}
	m.refreshDerived()
	m.notify(Event{Action: Loaded{}, Prev: prev, State: m.state})
}

// State returns a snapshot of the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Section returns the currently loaded section.
func (m *Machine) Section() (training.Section, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sec, ok := m.sections[m.state.SectionID]
	return sec, ok
}

// Subscribe registers a subscriber and returns its unsubscribe func.
// Subscribers run while the machine is locked: they must observe the event
// only and never call back into the machine.
func (m *Machine) Subscribe(sub Subscriber) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = sub
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	}
}

// Apply mutates the state according to the action. Every action is total:
// invalid references fail with a not-found error and leave the state
// unchanged; out-of-range values are clamped.
func (m *Machine) Apply(act Action) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev := m.state
	switch a := act.(type) {
	case Play:
		m.state.Status = StatusPlaying
	case Pause:
		if m.state.Status == StatusPlaying {
			m.state.Status = StatusPaused
		}
	case Seek:
		t := a.Time
		if t < 0 {
			t = 0
		}
		// seeks past the known duration are accepted; the playback
		// collaborator clamps against the actual media length
		m.state.Time = t
	case SetSection:
		if _, ok := m.sections[a.SectionID]; !ok {
			return m.state, training.ErrSectionNotFound
		}
		m.state.SectionID = a.SectionID
		m.state.Time = 0
		m.state.Status = StatusReady
	case SetVolume:
		lvl := a.Level
		if lvl < MinVolume {
			lvl = MinVolume
		} else if lvl > MaxVolume {
			lvl = MaxVolume
		}
		m.state.Volume = lvl
	case ToggleMute:
		m.state.Muted = !m.state.Muted
	case ToggleSubtitles:
		m.state.ShowSubtitles = !m.state.ShowSubtitles
	case ToggleMicrophone:
		m.state.MicActive = !m.state.MicActive
	case Tick:
		if a.Time > m.state.Time {
			m.state.Time = a.Time
		}
	case End:
		m.state.Status = StatusEnded
	default:
		// closed variant set; a new Action must be handled above
		m.log.Warn("player: unhandled action", act)
		return m.state, nil
	}

	m.refreshDerived()

	// a newly active frame may request a pause
	if m.state.IsPlaying() && m.state.Frame.PauseOnShow && frameChanged(prev.Frame, m.state.Frame) {
		m.state.Status = StatusPaused
	}

	m.notify(Event{Action: act, Prev: prev, State: m.state})
	return m.state, nil
}

// refreshDerived recomputes the active overlay set and frame geometry from
// the current section and time. Callers must hold m.mu.
func (m *Machine) refreshDerived() {
	sec, ok := m.sections[m.state.SectionID]
	if !ok {
		m.state.ActiveOverlays = nil
		m.state.Frame = FrameResult{Config: training.FrameConfig{Geometry: training.NeutralGeometry()}}
		return
	}
	m.state.ActiveOverlays = ComputeActive(sec.Overlays, m.state.Time)
	m.state.Frame = ComputeFrame(sec, m.state.Time)
}

func frameChanged(prev, next FrameResult) bool {
	switch {
	case prev.Overlay == nil && next.Overlay == nil:
		return false
	case prev.Overlay == nil || next.Overlay == nil:
		return true
	default:
		return prev.Overlay.ID != next.Overlay.ID
	}
}

// notify runs subscribers synchronously in registration order. A panicking
// subscriber must not prevent delivery to the others. Callers must hold m.mu.
func (m *Machine) notify(evt Event) {
	for i := 0; i < m.nextSub; i++ {
		sub, ok := m.subs[i]
		if !ok {
			continue
		}
		func() {
			defer func() {
				if r := recover(); r != nil {
					m.log.Error("player: subscriber panicked", r)
				}
			}()
			sub(evt)
		}()
	}
}
