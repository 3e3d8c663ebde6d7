package player

import (
	"sort"

	"github.com/kwetu-lab/elimu/core/training"
)

// instantWindow is the epsilon visibility window (seconds) applied to
// non-persistent overlays that carry no explicit duration.
const instantWindow = 0.25

// FrameResult is the frame geometry the renderer should be transitioning
// towards at a given time. Interpolation itself is a rendering concern; the
// scheduler only reports the target and the transition length.
type FrameResult struct {
	// Overlay is the frame_set overlay that selected the geometry; nil when
	// the section default applies.
	Overlay            *training.Overlay
	Config             training.FrameConfig
	TransitionDuration float64
	// PauseOnShow signals the state machine to pause when this frame
	// becomes active.
	PauseOnShow bool
}

// ComputeActive returns the overlays visible at time t. It is a pure
// function of its inputs: backward seeks need no special handling, every
// tick recomputes from scratch.
//
// An overlay is active iff time_stamp <= t < time_stamp + duration.
// frame_set overlays persist from their time_stamp until superseded by a
// later frame_set overlay; other types with no duration get a minimal
// epsilon window. Results are ordered by ascending time_stamp, then
// insertion order (stable).
func ComputeActive(overlays []training.Overlay, t float64) []training.Overlay {
	active := make([]training.Overlay, 0, len(overlays))
	idx := make(map[string]int, len(overlays))

	frameIdx := activeFrameSetIndex(overlays, t)
	for i, ov := range overlays {
		if ov.IsFrameSet() {
			if i == frameIdx {
				active = append(active, ov)
				idx[ov.ID] = i
			}
			continue
		}
		dur := ov.Duration
		if dur <= 0 {
			dur = instantWindow
		}
		if ov.TimeStamp <= t && t < ov.TimeStamp+dur {
			active = append(active, ov)
			idx[ov.ID] = i
		}
	}

	sort.SliceStable(active, func(i, j int) bool {
		if active[i].TimeStamp != active[j].TimeStamp {
			return active[i].TimeStamp < active[j].TimeStamp
		}
		return idx[active[i].ID] < idx[active[j].ID]
	})
	return active
}

// activeFrameSetIndex returns the index of the frame_set overlay governing
// time t: the one with the greatest time_stamp <= t. On equal time_stamps
// the later insertion wins.
func activeFrameSetIndex(overlays []training.Overlay, t float64) int {
	best := -1
	for i, ov := range overlays {
		if !ov.IsFrameSet() || ov.TimeStamp > t {
			continue
		}
		if best < 0 || ov.TimeStamp >= overlays[best].TimeStamp {
			best = i
		}
	}
	return best
}

// ComputeFrame resolves the camera-frame geometry active at time t: the most
// recent frame_set overlay's config, falling back to the section's resolved
// default when none applies.
func ComputeFrame(sec training.Section, t float64) FrameResult {
	i := activeFrameSetIndex(sec.Overlays, t)
	if i < 0 {
		fc := training.ResolveFrameConfig(sec)
		return FrameResult{Config: fc, TransitionDuration: fc.TransitionDuration}
	}

	ov := sec.Overlays[i]
	fc := frameConfigByID(sec, ov.FrameConfigID)
	return FrameResult{
		Overlay:            &ov,
		Config:             fc,
		TransitionDuration: fc.TransitionDuration,
		PauseOnShow:        ov.PauseOnShow,
	}
}

func frameConfigByID(sec training.Section, id string) training.FrameConfig {
	if id != "" {
		for _, fc := range sec.FrameConfigs {
			if fc.ID == id {
				return fc
			}
		}
	}
	return training.ResolveFrameConfig(sec)
}
