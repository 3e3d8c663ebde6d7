package player

import (
	"io"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kwetu-lab/elimu/core"
	"github.com/kwetu-lab/elimu/core/training"
)

func testLogger() core.Logger {
	return core.NewStdLogger(log.New(io.Discard, "", 0))
}

func testSections() []training.Section {
	return []training.Section{
		{ID: "sec1", TrainingID: "tr1", Index: 0},
		{ID: "sec2", TrainingID: "tr1", Index: 1},
	}
}

func TestMachine_LoadTraining(t *testing.T) {
	m := NewMachine(testLogger())
	assert.Equal(t, StatusIdle, m.State().Status)
	assert.Equal(t, MaxVolume, m.State().Volume)

	var loaded bool
	m.Subscribe(func(evt Event) {
		if _, ok := evt.Action.(Loaded); ok {
			loaded = true
		}
	})

	m.LoadTraining(testSections())
	st := m.State()
	assert.Equal(t, StatusReady, st.Status)
	assert.Equal(t, "sec1", st.SectionID)
	assert.Equal(t, float64(0), st.Time)
	assert.True(t, loaded)
}

func TestMachine_Apply(t *testing.T) {
	tests := []struct {
		name    string
		actions []Action
		check   func(t *testing.T, st State)
	}{
		{
			name:    "play then pause",
			actions: []Action{Play{}, Pause{}},
			check: func(t *testing.T, st State) {
				assert.Equal(t, StatusPaused, st.Status)
			},
		},
		{
			name:    "pause when not playing is a no-op",
			actions: []Action{Pause{}},
			check: func(t *testing.T, st State) {
				assert.Equal(t, StatusReady, st.Status)
			},
		},
		{
			name:    "seek",
			actions: []Action{Seek{Time: 42.5}},
			check: func(t *testing.T, st State) {
				assert.Equal(t, 42.5, st.Time)
			},
		},
		{
			name:    "negative seek clamps to zero",
			actions: []Action{Seek{Time: 10}, Seek{Time: -5}},
			check: func(t *testing.T, st State) {
				assert.Equal(t, float64(0), st.Time)
			},
		},
		{
			name:    "volume clamps high",
			actions: []Action{SetVolume{Level: 150}},
			check: func(t *testing.T, st State) {
				assert.Equal(t, MaxVolume, st.Volume)
			},
		},
		{
			name:    "volume clamps low",
			actions: []Action{SetVolume{Level: -5}},
			check: func(t *testing.T, st State) {
				assert.Equal(t, MinVolume, st.Volume)
			},
		},
		{
			name:    "set section resets clock",
			actions: []Action{Seek{Time: 30}, Play{}, SetSection{SectionID: "sec2"}},
			check: func(t *testing.T, st State) {
				assert.Equal(t, "sec2", st.SectionID)
				assert.Equal(t, float64(0), st.Time)
				assert.Equal(t, StatusReady, st.Status)
			},
		},
		{
			name:    "toggles",
			actions: []Action{ToggleMute{}, ToggleSubtitles{}, ToggleMicrophone{}, ToggleMute{}},
			check: func(t *testing.T, st State) {
				assert.False(t, st.Muted)
				assert.True(t, st.ShowSubtitles)
				assert.True(t, st.MicActive)
			},
		},
		{
			name:    "tick advances monotonically",
			actions: []Action{Tick{Time: 5}, Tick{Time: 3}},
			check: func(t *testing.T, st State) {
				assert.Equal(t, float64(5), st.Time)
			},
		},
		{
			name:    "end",
			actions: []Action{Play{}, End{}},
			check: func(t *testing.T, st State) {
				assert.Equal(t, StatusEnded, st.Status)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMachine(testLogger())
			m.LoadTraining(testSections())
			for _, act := range tt.actions {
				_, err := m.Apply(act)
				require.NoError(t, err)
			}
			tt.check(t, m.State())
		})
	}
}

func TestMachine_SetSectionNotFound(t *testing.T) {
	m := NewMachine(testLogger())
	m.LoadTraining(testSections())
	_, _ = m.Apply(Seek{Time: 12})
	before := m.State()

	_, err := m.Apply(SetSection{SectionID: "nope"})
	assert.Equal(t, training.ErrSectionNotFound, err)
	// rejected action leaves the state untouched
	assert.Equal(t, before, m.State())
}

func TestMachine_PauseOnShow(t *testing.T) {
	fs := training.Overlay{
		ID: "fs1", SectionID: "sec1", Type: training.OverlayFrameSet,
		TimeStamp: 10, PauseOnShow: true,
	}
	sections := []training.Section{{ID: "sec1", Overlays: []training.Overlay{fs}}}

	m := NewMachine(testLogger())
	m.LoadTraining(sections)
	_, _ = m.Apply(Play{})

	st, err := m.Apply(Tick{Time: 10})
	require.NoError(t, err)
	assert.Equal(t, StatusPaused, st.Status)

	// the same frame staying active does not re-pause after resuming
	_, _ = m.Apply(Play{})
	st, _ = m.Apply(Tick{Time: 11})
	assert.Equal(t, StatusPlaying, st.Status)
}

func TestMachine_DerivedState(t *testing.T) {
	lbl := training.Overlay{
		ID: "lbl", SectionID: "sec1", Type: training.OverlayLabel,
		TimeStamp: 5, Duration: 3,
	}
	sections := []training.Section{{ID: "sec1", Overlays: []training.Overlay{lbl}}}

	m := NewMachine(testLogger())
	m.LoadTraining(sections)

	st, _ := m.Apply(Seek{Time: 6})
	require.Len(t, st.ActiveOverlays, 1)
	assert.Equal(t, "lbl", st.ActiveOverlays[0].ID)

	// backward seek recomputes from scratch
	st, _ = m.Apply(Seek{Time: 1})
	assert.Empty(t, st.ActiveOverlays)
}

func TestMachine_SubscriberPanicIsolated(t *testing.T) {
	m := NewMachine(testLogger())

	m.Subscribe(func(Event) { panic("boom") })
	var delivered int
	m.Subscribe(func(Event) { delivered++ })

	m.LoadTraining(testSections())
	_, err := m.Apply(Play{})
	require.NoError(t, err)
	assert.Equal(t, 2, delivered) // Loaded + Play
}

func TestMachine_Unsubscribe(t *testing.T) {
	m := NewMachine(testLogger())
	m.LoadTraining(testSections())

	var n int
	unsub := m.Subscribe(func(Event) { n++ })
	_, _ = m.Apply(Play{})
	unsub()
	_, _ = m.Apply(Pause{})
	assert.Equal(t, 1, n)
}
