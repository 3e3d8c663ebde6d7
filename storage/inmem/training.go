package inmem

import (
	"context"
	"sort"

	"github.com/kwetu-lab/elimu/core/training"
)

type TrainingRepository struct {
	db *contentTables
}

var _ training.Repository = (*TrainingRepository)(nil) // interface compliance check

func NewTrainingRepository(db *DB) *TrainingRepository {
	return &TrainingRepository{db: db.content}
}

// SeedSection registers a section (with its overlays and frame configs) for
// tests and local dev.
func (repo *TrainingRepository) SeedSection(sec training.Section) {
	repo.db.Lock()
	defer repo.db.Unlock()

	repo.db.sections[sec.ID] = &sec
	for i := range sec.Overlays {
		ov := sec.Overlays[i]
		repo.db.overlays[ov.ID] = &ov
	}
	for i := range sec.FrameConfigs {
		fc := sec.FrameConfigs[i]
		repo.db.frameConfigs[fc.ID] = &fc
	}
}

// SeedGlobalConfig registers an organization-wide preset.
func (repo *TrainingRepository) SeedGlobalConfig(gc training.GlobalFrameConfig) {
	repo.db.Lock()
	defer repo.db.Unlock()
	repo.db.globalConfigs[gc.ID] = &gc
}

func (repo *TrainingRepository) GetSection(_ context.Context, id string) (training.Section, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return repo.getSection(id)
}

// getSection assembles a section with its current overlays and frame
// configs. Callers must hold at least a read lock.
func (repo *TrainingRepository) getSection(id string) (training.Section, error) {
	sec, ok := repo.db.sections[id]
	if !ok {
		return training.Section{}, training.ErrSectionNotFound
	}

	out := *sec
	out.Overlays = nil
	out.FrameConfigs = nil
	for _, ov := range repo.db.overlays {
		if ov.SectionID == id {
			out.Overlays = append(out.Overlays, *ov)
		}
	}
	for _, fc := range repo.db.frameConfigs {
		if fc.SectionID == id {
			out.FrameConfigs = append(out.FrameConfigs, *fc)
		}
	}
	// map iteration is unordered; creation order is the stable tiebreak
	sort.SliceStable(out.Overlays, func(i, j int) bool {
		return out.Overlays[i].CreatedAt.Before(out.Overlays[j].CreatedAt)
	})
	sort.SliceStable(out.FrameConfigs, func(i, j int) bool {
		return out.FrameConfigs[i].CreatedAt.Before(out.FrameConfigs[j].CreatedAt)
	})
	return out, nil
}

func (repo *TrainingRepository) QuerySections(_ context.Context, trainingID string) ([]training.Section, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	sections := make([]training.Section, 0)
	for id, sec := range repo.db.sections {
		if sec.TrainingID != trainingID {
			continue
		}
		full, err := repo.getSection(id)
		if err != nil {
			return nil, err
		}
		sections = append(sections, full)
	}
	sort.Slice(sections, func(i, j int) bool { return sections[i].Index < sections[j].Index })
	return sections, nil
}

func (repo *TrainingRepository) CreateOverlay(_ context.Context, ov training.Overlay) (training.Overlay, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.sections[ov.SectionID]; !ok {
		return training.Overlay{}, training.ErrSectionNotFound
	}
	repo.db.overlays[ov.ID] = &ov
	return ov, nil
}

func (repo *TrainingRepository) GetOverlay(_ context.Context, id string) (training.Overlay, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if ov, ok := repo.db.overlays[id]; ok {
		return *ov, nil
	}
	return training.Overlay{}, training.ErrOverlayNotFound
}

func (repo *TrainingRepository) UpdateOverlay(_ context.Context, ov training.Overlay) (training.Overlay, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.overlays[ov.ID]; !ok {
		return training.Overlay{}, training.ErrOverlayNotFound
	}
	repo.db.overlays[ov.ID] = &ov
	return ov, nil
}

func (repo *TrainingRepository) DeleteOverlay(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.overlays[id]; !ok {
		return training.ErrOverlayNotFound
	}
	delete(repo.db.overlays, id)
	return nil
}

func (repo *TrainingRepository) CreateFrameConfig(_ context.Context, fc training.FrameConfig) (training.FrameConfig, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.sections[fc.SectionID]; !ok {
		return training.FrameConfig{}, training.ErrSectionNotFound
	}
	repo.db.frameConfigs[fc.ID] = &fc
	return fc, nil
}

func (repo *TrainingRepository) UpdateFrameConfig(_ context.Context, fc training.FrameConfig) (training.FrameConfig, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.frameConfigs[fc.ID]; !ok {
		return training.FrameConfig{}, training.ErrFrameConfigNotFound
	}
	repo.db.frameConfigs[fc.ID] = &fc
	return fc, nil
}

func (repo *TrainingRepository) DeleteFrameConfig(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.frameConfigs[id]; !ok {
		return training.ErrFrameConfigNotFound
	}
	delete(repo.db.frameConfigs, id)
	return nil
}

func (repo *TrainingRepository) GetGlobalFrameConfig(_ context.Context, id string) (training.GlobalFrameConfig, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if gc, ok := repo.db.globalConfigs[id]; ok {
		return *gc, nil
	}
	return training.GlobalFrameConfig{}, training.ErrGlobalConfigNotFound
}

func (repo *TrainingRepository) QueryGlobalFrameConfigs(_ context.Context, orgID string) ([]training.GlobalFrameConfig, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	configs := make([]training.GlobalFrameConfig, 0)
	for _, gc := range repo.db.globalConfigs {
		if gc.OrgID == orgID && gc.IsActive {
			configs = append(configs, *gc)
		}
	}
	sort.Slice(configs, func(i, j int) bool { return configs[i].Name < configs[j].Name })
	return configs, nil
}
