package service

import (
	"context"
	"fmt"

	"reinf/internal/apperr"
	"reinf/internal/model"
	"reinf/internal/repository"
)

const topCompaniesLimit = 5

var workflowStatuses = []string{
	model.StatusPendingAccounting,
	model.StatusAccountingDone,
	model.StatusHRApproved,
	model.StatusSent,
}

type StatisticsService interface {
	GetStatistics(ctx context.Context, year, quarter int) (model.StatisticsResponse, error)
}

type statisticsService struct {
	statsRepo repository.StatisticsRepository
}

func NewStatisticsService(statsRepo repository.StatisticsRepository) StatisticsService {
	return &statisticsService{statsRepo: statsRepo}
}

// GetStatistics aggregates entries of the year (quarter 0) or of one quarter
func (s *statisticsService) GetStatistics(ctx context.Context, year, quarter int) (model.StatisticsResponse, error) {
	var res model.StatisticsResponse
	if quarter < 0 || quarter > 4 {
		return res, fmt.Errorf("%w: trimestre must be between 1 and 4", apperr.ErrValidation)
	}
	res.Year = year
	res.Quarter = quarter

	counts, err := s.statsRepo.CountByStatus(ctx, year, quarter)
	if err != nil {
		return res, err
	}
	res.ByStatus = make(map[string]int64, len(workflowStatuses))
	for _, st := range workflowStatuses {
		res.ByStatus[st] = 0
	}
	for _, c := range counts {
		res.ByStatus[c.Status] = c.Count
		res.TotalEntries += c.Count
	}

	if res.DeclaredTotal, err = s.statsRepo.DeclaredTotal(ctx, year, quarter, ""); err != nil {
		return res, err
	}
	if res.SentTotal, err = s.statsRepo.DeclaredTotal(ctx, year, quarter, model.StatusSent); err != nil {
		return res, err
	}

	if res.TopCompanies, err = s.statsRepo.TopCompanies(ctx, year, quarter, topCompaniesLimit); err != nil {
		return res, err
	}
	if res.TopCompanies == nil {
		res.TopCompanies = []model.CompanyRanking{}
	}
	return res, nil
}
