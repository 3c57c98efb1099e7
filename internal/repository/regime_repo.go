package repository

import (
	"context"

	"reinf/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RegimeRepository interface {
	Create(ctx context.Context, regime *model.RegimePeriodConfig) error
	Update(ctx context.Context, regime *model.RegimePeriodConfig) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.RegimePeriodConfig, error)
	FindByName(ctx context.Context, regime string) (*model.RegimePeriodConfig, error)
	ListAll(ctx context.Context) ([]model.RegimePeriodConfig, error)
	// FindOrCreate inserts regime only if no row with the same name exists
	FindOrCreate(ctx context.Context, regime *model.RegimePeriodConfig) error
}

type regimeRepository struct {
	db *gorm.DB
}

func NewRegimeRepository(db *gorm.DB) RegimeRepository {
	return &regimeRepository{db: db}
}

func (r *regimeRepository) Create(ctx context.Context, regime *model.RegimePeriodConfig) error {
	return GetDB(ctx, r.db).Create(regime).Error
}

func (r *regimeRepository) Update(ctx context.Context, regime *model.RegimePeriodConfig) error {
	return GetDB(ctx, r.db).Save(regime).Error
}

func (r *regimeRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.RegimePeriodConfig{}).Error
}

func (r *regimeRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.RegimePeriodConfig, error) {
	var regime model.RegimePeriodConfig
	if err := GetDB(ctx, r.db).First(&regime, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &regime, nil
}

func (r *regimeRepository) FindByName(ctx context.Context, name string) (*model.RegimePeriodConfig, error) {
	var regime model.RegimePeriodConfig
	if err := GetDB(ctx, r.db).Where("regime = ?", name).First(&regime).Error; err != nil {
		return nil, err
	}
	return &regime, nil
}

func (r *regimeRepository) ListAll(ctx context.Context) ([]model.RegimePeriodConfig, error) {
	var regimes []model.RegimePeriodConfig
	if err := GetDB(ctx, r.db).Order("regime asc").Find(&regimes).Error; err != nil {
		return nil, err
	}
	return regimes, nil
}

func (r *regimeRepository) FindOrCreate(ctx context.Context, regime *model.RegimePeriodConfig) error {
	return GetDB(ctx, r.db).
		Where("regime = ?", regime.Regime).
		FirstOrCreate(regime).Error
}
