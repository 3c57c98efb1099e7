package repository

import (
	"context"

	"reinf/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserRepository covers both halves of a user: the credential Account and
// the workflow-facing Profile, which share an ID.
type UserRepository interface {
	CreateAccount(ctx context.Context, account *model.Account) error
	CreateProfile(ctx context.Context, profile *model.Profile) error
	GetAccountByEmail(ctx context.Context, email string) (*model.Account, error)
	GetAccountByID(ctx context.Context, id uuid.UUID) (*model.Account, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	GetProfile(ctx context.Context, id uuid.UUID) (*model.Profile, error)
	ListProfiles(ctx context.Context, page, limit int) ([]model.Profile, int64, error)
	UpdateProfile(ctx context.Context, profile *model.Profile) error
	// Delete removes the profile and then the account
	Delete(ctx context.Context, id uuid.UUID) error
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository returns a new instance of UserRepository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) CreateAccount(ctx context.Context, account *model.Account) error {
	return GetDB(ctx, r.db).Create(account).Error
}

func (r *userRepository) CreateProfile(ctx context.Context, profile *model.Profile) error {
	return GetDB(ctx, r.db).Create(profile).Error
}

func (r *userRepository) GetAccountByEmail(ctx context.Context, email string) (*model.Account, error) {
	var account model.Account
	if err := GetDB(ctx, r.db).First(&account, "email = ?", email).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *userRepository) GetAccountByID(ctx context.Context, id uuid.UUID) (*model.Account, error) {
	var account model.Account
	if err := GetDB(ctx, r.db).First(&account, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *userRepository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	res := GetDB(ctx, r.db).Model(&model.Account{}).Where("id = ?", id).Update("password_hash", passwordHash)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *userRepository) GetProfile(ctx context.Context, id uuid.UUID) (*model.Profile, error) {
	var profile model.Profile
	if err := GetDB(ctx, r.db).Preload("Role").First(&profile, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *userRepository) ListProfiles(ctx context.Context, page, limit int) ([]model.Profile, int64, error) {
	var profiles []model.Profile
	var total int64

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.Profile{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := db.Preload("Role").Order("full_name asc").Offset(offset).Limit(limit).Find(&profiles).Error; err != nil {
		return nil, 0, err
	}

	return profiles, total, nil
}

func (r *userRepository) UpdateProfile(ctx context.Context, profile *model.Profile) error {
	return GetDB(ctx, r.db).Omit("Role").Save(profile).Error
}

func (r *userRepository) Delete(ctx context.Context, id uuid.UUID) error {
	db := GetDB(ctx, r.db)
	if err := db.Where("id = ?", id).Delete(&model.Profile{}).Error; err != nil {
		return err
	}
	res := db.Where("id = ?", id).Delete(&model.Account{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
