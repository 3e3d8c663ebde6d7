package training

import (
	"github.com/go-playground/validator/v10"

	"github.com/kwetu-lab/elimu/core"
)

var (
	overlayTypeTag  = "overlaytype"
	overlayTypeText = "invalid overlay type"

	frameDurationTag  = "framedur"
	frameDurationText = "a non-zero duration is required for this overlay type"
)

// RegisterValidators wires the training-specific validations into the shared
// validator. Call once after core.InitValidators.
func RegisterValidators() {
	_ = core.Validate.RegisterValidation(overlayTypeTag, overlayTypeValidation)
	core.RegisterCustomTranslation(core.Validate, core.Translator, overlayTypeTag, overlayTypeText)

	core.Validate.RegisterStructValidation(overlayStructValidation, NewOverlay{})
	core.RegisterCustomTranslation(core.Validate, core.Translator, frameDurationTag, frameDurationText)
}

// overlayTypeValidation checks that the provided type is a known overlay variant.
func overlayTypeValidation(fl validator.FieldLevel) bool {
	if typ, ok := fl.Field().Interface().(string); ok {
		return IsOverlayType(typ)
	}
	return false
}

// overlayStructValidation enforces the visibility-window policy: every
// non-persistent overlay needs an explicit positive duration; frame_set
// overlays persist until superseded so theirs may be zero.
func overlayStructValidation(sl validator.StructLevel) {
	no, ok := sl.Current().Interface().(NewOverlay)
	if !ok {
		return
	}
	if no.Type != OverlayFrameSet && no.Duration <= 0 {
		sl.ReportError(no.Duration, "duration", "Duration", frameDurationTag, "")
	}
}

// NewOverlay contains information needed to create a new Overlay.
type NewOverlay struct {
	SectionID     string  `json:"section_id" validate:"required"`
	Type          string  `json:"type" validate:"required,overlaytype"`
	TimeStamp     float64 `json:"time_stamp" validate:"gte=0"`
	Duration      float64 `json:"duration" validate:"gte=0"`
	Caption       string  `json:"caption"`
	ContentRef    string  `json:"content_ref"`
	StyleRef      string  `json:"style_ref"`
	FrameConfigID string  `json:"frame_config_id"`
	Animation     string  `json:"animation"`
	Position      string  `json:"position"`
	PauseOnShow   bool    `json:"pause_on_show"`
}

func (no *NewOverlay) Validate() error {
	no.Caption = core.CleanString(no.Caption)
	return core.Validate.Struct(no)
}

// UpdateOverlay defines what information may be provided to modify an
// existing Overlay. Nil fields are left untouched.
type UpdateOverlay struct {
	TimeStamp     *float64 `json:"time_stamp" validate:"omitempty,gte=0"`
	Duration      *float64 `json:"duration" validate:"omitempty,gte=0"`
	Caption       *string  `json:"caption"`
	ContentRef    *string  `json:"content_ref"`
	StyleRef      *string  `json:"style_ref"`
	FrameConfigID *string  `json:"frame_config_id"`
	Animation     *string  `json:"animation"`
	Position      *string  `json:"position"`
	PauseOnShow   *bool    `json:"pause_on_show"`
}

func (uo *UpdateOverlay) Validate() error {
	if uo.Caption != nil {
		*uo.Caption = core.CleanString(*uo.Caption)
	}
	return core.Validate.Struct(uo)
}

func (uo *UpdateOverlay) apply(ov *Overlay) {
	if uo.TimeStamp != nil {
		ov.TimeStamp = *uo.TimeStamp
	}
	if uo.Duration != nil {
		ov.Duration = *uo.Duration
	}
	if uo.Caption != nil {
		ov.Caption = *uo.Caption
	}
	if uo.ContentRef != nil {
		ov.ContentRef = *uo.ContentRef
	}
	if uo.StyleRef != nil {
		ov.StyleRef = *uo.StyleRef
	}
	if uo.FrameConfigID != nil {
		ov.FrameConfigID = *uo.FrameConfigID
	}
	if uo.Animation != nil {
		ov.Animation = *uo.Animation
	}
	if uo.Position != nil {
		ov.Position = *uo.Position
	}
	if uo.PauseOnShow != nil {
		ov.PauseOnShow = *uo.PauseOnShow
	}
}

// NewFrameConfig contains information needed to create a section-scoped
// FrameConfig from scratch (as opposed to copying a global preset).
type NewFrameConfig struct {
	SectionID          string  `json:"section_id" validate:"required"`
	Name               string  `json:"name"`
	IsDefault          bool    `json:"is_default"`
	ObjectPositionX    float64 `json:"object_position_x" validate:"gte=0,lte=100"`
	ObjectPositionY    float64 `json:"object_position_y" validate:"gte=0,lte=100"`
	Scale              float64 `json:"scale" validate:"gt=0"`
	TransformOriginX   float64 `json:"transform_origin_x" validate:"gte=0,lte=100"`
	TransformOriginY   float64 `json:"transform_origin_y" validate:"gte=0,lte=100"`
	TransitionDuration float64 `json:"transition_duration" validate:"gte=0"`
}

func (nf NewFrameConfig) Validate() error { return core.Validate.Struct(nf) }
