package training

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/kwetu-lab/elimu/core"
)

var (
	// errors
	ErrSectionNotFound      = errors.New("section not found")
	ErrOverlayNotFound      = errors.New("overlay not found")
	ErrFrameConfigNotFound  = errors.New("frame config not found")
	ErrGlobalConfigNotFound = errors.New("global frame config not found")
	ErrGlobalConfigInactive = errors.New("global frame config is inactive")

	ErrFrameConfigRef = core.NewValidationError(
		errors.New("only frame_set overlays may reference a frame config"),
		core.FieldError{Field: "frame_config_id", Error: "only frame_set overlays may reference a frame config"},
	)
)

type (
	// Repository is the content backend collaborator surface. Durable storage
	// lives behind it; this process never touches a database directly.
	Repository interface {
		GetSection(ctx context.Context, id string) (Section, error)
		QuerySections(ctx context.Context, trainingID string) ([]Section, error)

		CreateOverlay(ctx context.Context, ov Overlay) (Overlay, error)
		GetOverlay(ctx context.Context, id string) (Overlay, error)
		UpdateOverlay(ctx context.Context, ov Overlay) (Overlay, error)
		DeleteOverlay(ctx context.Context, id string) error

		CreateFrameConfig(ctx context.Context, fc FrameConfig) (FrameConfig, error)
		UpdateFrameConfig(ctx context.Context, fc FrameConfig) (FrameConfig, error)
		DeleteFrameConfig(ctx context.Context, id string) error

		GetGlobalFrameConfig(ctx context.Context, id string) (GlobalFrameConfig, error)
		QueryGlobalFrameConfigs(ctx context.Context, orgID string) ([]GlobalFrameConfig, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) GetSection(ctx context.Context, id string) (Section, error) {
	return svc.repo.GetSection(ctx, id)
}

func (svc *Service) QuerySections(ctx context.Context, trainingID string) ([]Section, error) {
	return svc.repo.QuerySections(ctx, trainingID)
}

func (svc *Service) CreateOverlay(ctx context.Context, no NewOverlay) (Overlay, error) {
	if err := no.Validate(); err != nil {
		return Overlay{}, err
	}
	if no.Type != OverlayFrameSet && no.FrameConfigID != "" {
		return Overlay{}, ErrFrameConfigRef
	}
	now := time.Now().UTC()
	ov := Overlay{
		ID:            uuid.NewString(),
		SectionID:     no.SectionID,
		Type:          no.Type,
		TimeStamp:     no.TimeStamp,
		Duration:      no.Duration,
		Caption:       no.Caption,
		ContentRef:    no.ContentRef,
		StyleRef:      no.StyleRef,
		FrameConfigID: no.FrameConfigID,
		Animation:     no.Animation,
		Position:      no.Position,
		PauseOnShow:   no.PauseOnShow,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	return svc.repo.CreateOverlay(ctx, ov)
}

func (svc *Service) UpdateOverlay(ctx context.Context, id string, uo UpdateOverlay) (Overlay, error) {
	if err := uo.Validate(); err != nil {
		return Overlay{}, err
	}
	ov, err := svc.repo.GetOverlay(ctx, id)
	if err != nil {
		return Overlay{}, err
	}
	uo.apply(&ov)
	if !ov.IsFrameSet() && ov.FrameConfigID != "" {
		return Overlay{}, ErrFrameConfigRef
	}
	ov.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateOverlay(ctx, ov)
}

func (svc *Service) DeleteOverlay(ctx context.Context, id string) error {
	return svc.repo.DeleteOverlay(ctx, id)
}

func (svc *Service) CreateFrameConfig(ctx context.Context, nf NewFrameConfig) (FrameConfig, error) {
	if err := nf.Validate(); err != nil {
		return FrameConfig{}, err
	}
	now := time.Now().UTC()
	fc := FrameConfig{
		ID:        uuid.NewString(),
		SectionID: nf.SectionID,
		Name:      nf.Name,
		IsDefault: nf.IsDefault,
		Geometry: Geometry{
			ObjectPositionX:    nf.ObjectPositionX,
			ObjectPositionY:    nf.ObjectPositionY,
			Scale:              nf.Scale,
			TransformOriginX:   nf.TransformOriginX,
			TransformOriginY:   nf.TransformOriginY,
			TransitionDuration: nf.TransitionDuration,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	return svc.repo.CreateFrameConfig(ctx, fc)
}

func (svc *Service) DeleteFrameConfig(ctx context.Context, id string) error {
	return svc.repo.DeleteFrameConfig(ctx, id)
}

func (svc *Service) QueryGlobalFrameConfigs(ctx context.Context, orgID string) ([]GlobalFrameConfig, error) {
	return svc.repo.QueryGlobalFrameConfigs(ctx, orgID)
}
