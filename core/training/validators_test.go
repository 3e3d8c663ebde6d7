package training

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kwetu-lab/elimu/core"
)

func TestMain(m *testing.M) {
	core.InitValidators()
	RegisterValidators()
	os.Exit(m.Run())
}

func TestNewOverlay_Validate(t *testing.T) {
	tests := []struct {
		name    string
		overlay NewOverlay
		wantErr bool
	}{
		{
			name:    "valid label",
			overlay: NewOverlay{SectionID: "sec1", Type: OverlayLabel, TimeStamp: 5, Duration: 3},
		},
		{
			name: "frame_set needs no duration",
			overlay: NewOverlay{SectionID: "sec1", Type: OverlayFrameSet, TimeStamp: 10},
		},
		{
			name:    "non-persistent overlay needs a duration",
			overlay: NewOverlay{SectionID: "sec1", Type: OverlayLabel, TimeStamp: 5},
			wantErr: true,
		},
		{
			name:    "unknown type",
			overlay: NewOverlay{SectionID: "sec1", Type: "banner", TimeStamp: 5, Duration: 3},
			wantErr: true,
		},
		{
			name:    "negative time_stamp",
			overlay: NewOverlay{SectionID: "sec1", Type: OverlayLabel, TimeStamp: -1, Duration: 3},
			wantErr: true,
		},
		{
			name:    "missing section",
			overlay: NewOverlay{Type: OverlayLabel, TimeStamp: 5, Duration: 3},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.overlay.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewFrameConfig_Validate(t *testing.T) {
	valid := NewFrameConfig{
		SectionID:       "sec1",
		ObjectPositionX: 50, ObjectPositionY: 50,
		Scale:            1,
		TransformOriginX: 50, TransformOriginY: 50,
	}
	require.NoError(t, valid.Validate())

	outOfRange := valid
	outOfRange.ObjectPositionX = 120
	assert.Error(t, outOfRange.Validate())

	zeroScale := valid
	zeroScale.Scale = 0
	assert.Error(t, zeroScale.Validate())
}
