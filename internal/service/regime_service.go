package service

import (
	"context"
	"fmt"
	"strings"

	"reinf/internal/apperr"
	"reinf/internal/model"
	"reinf/internal/repository"

	"github.com/google/uuid"
)

// --- DTOs ---

type CreateRegimeRequest struct {
	Regime     string `json:"regime" binding:"required"`
	PeriodType string `json:"periodo_tipo"`
}

type UpdateRegimePeriodRequest struct {
	PeriodType string `json:"periodo_tipo" binding:"required"`
}

type RegimeResponse struct {
	ID         uuid.UUID `json:"id"`
	Regime     string    `json:"regime"`
	PeriodType string    `json:"periodo_tipo"`
}

// --- Interface ---

type RegimeService interface {
	ListRegimes(ctx context.Context) ([]RegimeResponse, error)
	CreateRegime(ctx context.Context, actorID uuid.UUID, req CreateRegimeRequest) (*RegimeResponse, error)
	UpdatePeriod(ctx context.Context, actorID uuid.UUID, id string, req UpdateRegimePeriodRequest) (*RegimeResponse, error)
	DeleteRegime(ctx context.Context, actorID uuid.UUID, id string) error
	SeedDefaultRegimes(ctx context.Context) error
}

type regimeService struct {
	regimeRepo  repository.RegimeRepository
	companyRepo repository.CompanyRepository
	auditRepo   repository.AuditRepository
	txManager   repository.TransactionManager
}

func NewRegimeService(
	regimeRepo repository.RegimeRepository,
	companyRepo repository.CompanyRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
) RegimeService {
	return &regimeService{regimeRepo: regimeRepo, companyRepo: companyRepo, auditRepo: auditRepo, txManager: txManager}
}

var defaultRegimes = []string{
	model.RegimeSimplesNacional,
	model.RegimeLucroPresumido,
	model.RegimeLucroReal,
	model.RegimeMEI,
}

func mapRegimeResponse(r *model.RegimePeriodConfig) *RegimeResponse {
	return &RegimeResponse{ID: r.ID, Regime: r.Regime, PeriodType: r.PeriodType}
}

func parsePeriodType(raw string) (string, error) {
	p := strings.ToLower(strings.TrimSpace(raw))
	if !model.IsValidPeriodType(p) {
		return "", fmt.Errorf("%w: periodo_tipo must be %s or %s", apperr.ErrValidation, model.PeriodQuarterly, model.PeriodMonthly)
	}
	return p, nil
}

func (s *regimeService) ListRegimes(ctx context.Context) ([]RegimeResponse, error) {
	regimes, err := s.regimeRepo.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	res := make([]RegimeResponse, 0, len(regimes))
	for i := range regimes {
		res = append(res, *mapRegimeResponse(&regimes[i]))
	}
	return res, nil
}

func (s *regimeService) CreateRegime(ctx context.Context, actorID uuid.UUID, req CreateRegimeRequest) (*RegimeResponse, error) {
	name := strings.TrimSpace(req.Regime)
	if name == "" {
		return nil, fmt.Errorf("%w: regime is required", apperr.ErrValidation)
	}
	period := model.PeriodQuarterly
	if req.PeriodType != "" {
		var err error
		if period, err = parsePeriodType(req.PeriodType); err != nil {
			return nil, err
		}
	}

	regime := &model.RegimePeriodConfig{Regime: name, PeriodType: period}
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.regimeRepo.Create(txCtx, regime); err != nil {
			if repository.IsUniqueViolation(err) {
				return fmt.Errorf("%w: regime %q already exists", apperr.ErrConflict, name)
			}
			return err
		}
		return recordAudit(txCtx, s.auditRepo, actorID, model.ActionCreateRegime, regime.ID.String(), name, map[string]string{"periodo_tipo": period})
	})
	if err != nil {
		return nil, err
	}
	return mapRegimeResponse(regime), nil
}

func (s *regimeService) findRegime(ctx context.Context, id string) (*model.RegimePeriodConfig, error) {
	regimeID, err := parseID(id, "regime id")
	if err != nil {
		return nil, err
	}
	regime, err := s.regimeRepo.FindByID(ctx, regimeID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, fmt.Errorf("%w: regime %s", apperr.ErrNotFound, regimeID)
		}
		return nil, err
	}
	return regime, nil
}

// UpdatePeriod changes the regime's default granularity. Companies with an
// override keep theirs.
func (s *regimeService) UpdatePeriod(ctx context.Context, actorID uuid.UUID, id string, req UpdateRegimePeriodRequest) (*RegimeResponse, error) {
	period, err := parsePeriodType(req.PeriodType)
	if err != nil {
		return nil, err
	}
	regime, err := s.findRegime(ctx, id)
	if err != nil {
		return nil, err
	}

	previous := regime.PeriodType
	regime.PeriodType = period
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.regimeRepo.Update(txCtx, regime); err != nil {
			return err
		}
		return recordAudit(txCtx, s.auditRepo, actorID, model.ActionUpdateRegime, regime.ID.String(), regime.Regime, map[string]string{
			"from": previous,
			"to":   period,
		})
	})
	if err != nil {
		return nil, err
	}
	return mapRegimeResponse(regime), nil
}

func (s *regimeService) DeleteRegime(ctx context.Context, actorID uuid.UUID, id string) error {
	regime, err := s.findRegime(ctx, id)
	if err != nil {
		return err
	}

	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		inUse, err := s.companyRepo.CountByRegime(txCtx, regime.Regime)
		if err != nil {
			return err
		}
		if inUse > 0 {
			return fmt.Errorf("%w: regime %q is used by %d companies", apperr.ErrConflict, regime.Regime, inUse)
		}
		if err := s.regimeRepo.Delete(txCtx, regime.ID); err != nil {
			// a company took the regime after the count
			if repository.IsForeignKeyViolation(err) {
				return fmt.Errorf("%w: regime %q is in use", apperr.ErrConflict, regime.Regime)
			}
			return err
		}
		return recordAudit(txCtx, s.auditRepo, actorID, model.ActionDeleteRegime, regime.ID.String(), regime.Regime, nil)
	})
}

// SeedDefaultRegimes registers the four Brazilian tax regimes as quarterly
func (s *regimeService) SeedDefaultRegimes(ctx context.Context) error {
	for _, name := range defaultRegimes {
		regime := &model.RegimePeriodConfig{Regime: name, PeriodType: model.PeriodQuarterly}
		if err := s.regimeRepo.FindOrCreate(ctx, regime); err != nil {
			return fmt.Errorf("failed to seed regime %q: %w", name, err)
		}
	}
	return nil
}
