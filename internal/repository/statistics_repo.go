package repository

import (
	"context"
	"fmt"

	"reinf/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// StatusCount is one row of a GROUP BY status
type StatusCount struct {
	Status string
	Count  int64
}

type StatisticsRepository interface {
	CountByStatus(ctx context.Context, year, quarter int) ([]StatusCount, error)
	// DeclaredTotal sums the three months of every entry in the period; an
	// empty status means any status.
	DeclaredTotal(ctx context.Context, year, quarter int, status string) (decimal.Decimal, error)
	TopCompanies(ctx context.Context, year, quarter, limit int) ([]model.CompanyRanking, error)
}

type statisticsRepository struct {
	db *gorm.DB
}

func NewStatisticsRepository(db *gorm.DB) StatisticsRepository {
	return &statisticsRepository{db: db}
}

const profitSum = "COALESCE(SUM(reinf_entries.lucro_mes1 + reinf_entries.lucro_mes2 + reinf_entries.lucro_mes3), 0)"

func periodScope(year, quarter int) func(*gorm.DB) *gorm.DB {
	return func(q *gorm.DB) *gorm.DB {
		if year > 0 {
			q = q.Where("reinf_entries.ano = ?", year)
		}
		if quarter > 0 {
			q = q.Where("reinf_entries.trimestre = ?", quarter)
		}
		return q
	}
}

func (r *statisticsRepository) CountByStatus(ctx context.Context, year, quarter int) ([]StatusCount, error) {
	var rows []StatusCount
	if err := GetDB(ctx, r.db).Table("reinf_entries").
		Scopes(periodScope(year, quarter)).
		Select("reinf_entries.status as status, COUNT(*) as count").
		Group("reinf_entries.status").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to count entries by status: %w", err)
	}
	return rows, nil
}

func (r *statisticsRepository) DeclaredTotal(ctx context.Context, year, quarter int, status string) (decimal.Decimal, error) {
	var result struct {
		Value decimal.Decimal
	}
	q := GetDB(ctx, r.db).Table("reinf_entries").Scopes(periodScope(year, quarter))
	if status != "" {
		q = q.Where("reinf_entries.status = ?", status)
	}
	if err := q.Select(profitSum + " as value").Scan(&result).Error; err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum declared profits: %w", err)
	}
	return result.Value, nil
}

func (r *statisticsRepository) TopCompanies(ctx context.Context, year, quarter, limit int) ([]model.CompanyRanking, error) {
	var rankings []model.CompanyRanking
	if err := GetDB(ctx, r.db).Table("reinf_entries").
		Scopes(periodScope(year, quarter)).
		Select("companies.id as company_id, companies.nome as company_name, companies.cnpj as cnpj, COUNT(reinf_entries.id) as entries, " + profitSum + " as total").
		Joins("JOIN companies ON companies.id = reinf_entries.company_id").
		Group("companies.id, companies.nome, companies.cnpj").
		Order("total DESC").
		Limit(limit).
		Scan(&rankings).Error; err != nil {
		return nil, fmt.Errorf("failed to query top companies: %w", err)
	}
	return rankings, nil
}
