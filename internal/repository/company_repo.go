package repository

import (
	"context"
	"strings"

	"reinf/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CompanyRepository interface {
	Create(ctx context.Context, company *model.Company) error
	Update(ctx context.Context, company *model.Company) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Company, error)
	FindByCNPJ(ctx context.Context, cnpj string) (*model.Company, error)
	List(ctx context.Context, regime, search string, page, limit int) ([]model.Company, int64, error)
	CountByRegime(ctx context.Context, regime string) (int64, error)
}

type companyRepository struct {
	db *gorm.DB
}

func NewCompanyRepository(db *gorm.DB) CompanyRepository {
	return &companyRepository{db: db}
}

func (r *companyRepository) Create(ctx context.Context, company *model.Company) error {
	return GetDB(ctx, r.db).Create(company).Error
}

func (r *companyRepository) Update(ctx context.Context, company *model.Company) error {
	return GetDB(ctx, r.db).Save(company).Error
}

func (r *companyRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.Company{}).Error
}

func (r *companyRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Company, error) {
	var company model.Company
	if err := GetDB(ctx, r.db).First(&company, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &company, nil
}

func (r *companyRepository) FindByCNPJ(ctx context.Context, cnpj string) (*model.Company, error) {
	var company model.Company
	if err := GetDB(ctx, r.db).First(&company, "cnpj = ?", cnpj).Error; err != nil {
		return nil, err
	}
	return &company, nil
}

func (r *companyRepository) List(ctx context.Context, regime, search string, page, limit int) ([]model.Company, int64, error) {
	var companies []model.Company
	var total int64

	db := GetDB(ctx, r.db)
	if err := companyFilter(db.Model(&model.Company{}), regime, search).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := companyFilter(db.Model(&model.Company{}), regime, search).
		Order("nome ASC").Offset(offset).Limit(limit).
		Find(&companies).Error; err != nil {
		return nil, 0, err
	}

	return companies, total, nil
}

func (r *companyRepository) CountByRegime(ctx context.Context, regime string) (int64, error) {
	var count int64
	err := GetDB(ctx, r.db).Model(&model.Company{}).Where("regime = ?", regime).Count(&count).Error
	return count, err
}

func companyFilter(q *gorm.DB, regime, search string) *gorm.DB {
	if regime != "" {
		q = q.Where("regime = ?", regime)
	}
	if search = strings.TrimSpace(search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		q = q.Where("LOWER(nome) LIKE ? OR LOWER(razao_social) LIKE ? OR cnpj LIKE ?", like, like, like)
	}
	return q
}
