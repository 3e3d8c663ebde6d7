package training

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ResolveFrameConfig returns the active camera-frame geometry for a section:
// the config flagged default, else the first config, else the neutral
// identity geometry.
func ResolveFrameConfig(sec Section) FrameConfig {
	for _, fc := range sec.FrameConfigs {
		if fc.IsDefault {
			return fc
		}
	}
	if len(sec.FrameConfigs) > 0 {
		return sec.FrameConfigs[0]
	}
	return FrameConfig{SectionID: sec.ID, Geometry: NeutralGeometry()}
}

// CopyFromGlobal deep-copies an organization-wide preset into a new
// section-scoped FrameConfig. The copy records the global config's ID for
// provenance only; mutating it later never touches the original.
func (svc *Service) CopyFromGlobal(ctx context.Context, sectionID, globalID string) (FrameConfig, error) {
	if _, err := svc.repo.GetSection(ctx, sectionID); err != nil {
		return FrameConfig{}, err
	}
	gc, err := svc.repo.GetGlobalFrameConfig(ctx, globalID)
	if err != nil {
		return FrameConfig{}, err
	}
	if !gc.IsActive {
		return FrameConfig{}, ErrGlobalConfigInactive
	}

	now := time.Now().UTC()
	fc := FrameConfig{
		ID:             uuid.NewString(),
		SectionID:      sectionID,
		Name:           gc.Name,
		GlobalConfigID: gc.ID,
		Geometry:       gc.Geometry,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	return svc.repo.CreateFrameConfig(ctx, fc)
}
