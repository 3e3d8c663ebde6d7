package training

import "time"

// Overlay types
const (
	OverlayFrameSet       = "frame_set"
	OverlayButtonLink     = "button_link"
	OverlayButtonMessage  = "button_message"
	OverlayButtonContent  = "button_content"
	OverlayLabel          = "label"
	OverlayContent        = "content"
	OverlayLLMInteraction = "llm_interaction"
)

var AllOverlayTypes = []string{
	OverlayFrameSet,
	OverlayButtonLink,
	OverlayButtonMessage,
	OverlayButtonContent,
	OverlayLabel,
	OverlayContent,
	OverlayLLMInteraction,
}

func IsOverlayType(typ string) bool {
	for _, t := range AllOverlayTypes {
		if t == typ {
			return true
		}
	}
	return false
}

type Training struct {
	ID        string    `json:"id"`
	OrgID     string    `json:"org_id"`
	Title     string    `json:"title"`
	Sections  []Section `json:"sections"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

// Section is an ordered unit of a training. It is authored through the CMS
// and immutable during playback.
type Section struct {
	ID           string        `json:"id"`
	TrainingID   string        `json:"training_id"`
	Index        int           `json:"index"` // unique within a training
	Script       string        `json:"script,omitempty"`
	Duration     float64       `json:"duration,omitempty"` // seconds
	VideoRef     string        `json:"video_ref,omitempty"`
	Overlays     []Overlay     `json:"overlays"`
	FrameConfigs []FrameConfig `json:"frame_configs"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// Overlay is a time-anchored annotation shown during playback.
// Its visibility window is [TimeStamp, TimeStamp+Duration); frame_set
// overlays persist until superseded by a later frame_set overlay.
type Overlay struct {
	ID            string    `json:"id"`
	SectionID     string    `json:"section_id"`
	Type          string    `json:"type"`
	TimeStamp     float64   `json:"time_stamp"` // seconds, >= 0
	Duration      float64   `json:"duration,omitempty"`
	Caption       string    `json:"caption,omitempty"`
	ContentRef    string    `json:"content_ref,omitempty"`
	StyleRef      string    `json:"style_ref,omitempty"`
	FrameConfigID string    `json:"frame_config_id,omitempty"` // frame_set only
	Animation     string    `json:"animation,omitempty"`
	Position      string    `json:"position,omitempty"`
	PauseOnShow   bool      `json:"pause_on_show,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (o Overlay) IsFrameSet() bool { return o.Type == OverlayFrameSet }

// Geometry holds the camera-frame parameters shared by FrameConfig and
// GlobalFrameConfig. Positions and origins are percentages.
type Geometry struct {
	ObjectPositionX    float64 `json:"object_position_x"`
	ObjectPositionY    float64 `json:"object_position_y"`
	Scale              float64 `json:"scale"` // > 0
	TransformOriginX   float64 `json:"transform_origin_x"`
	TransformOriginY   float64 `json:"transform_origin_y"`
	TransitionDuration float64 `json:"transition_duration"` // seconds, >= 0
}

// NeutralGeometry returns the identity framing: centered, unscaled, no transition.
func NeutralGeometry() Geometry {
	return Geometry{
		ObjectPositionX:  50,
		ObjectPositionY:  50,
		Scale:            1,
		TransformOriginX: 50,
		TransformOriginY: 50,
	}
}

// FrameConfig is a section-scoped geometry preset. GlobalConfigID records
// which GlobalFrameConfig it was copied from, for provenance only; the copy
// is independently mutable.
type FrameConfig struct {
	ID             string `json:"id"`
	SectionID      string `json:"section_id"`
	Name           string `json:"name,omitempty"`
	GlobalConfigID string `json:"global_config_id,omitempty"`
	IsDefault      bool   `json:"is_default"`
	Geometry
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GlobalFrameConfig is an organization-wide geometry preset.
type GlobalFrameConfig struct {
	ID       string `json:"id"`
	OrgID    string `json:"org_id"`
	Name     string `json:"name"`
	IsActive bool   `json:"is_active"`
	Geometry
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
