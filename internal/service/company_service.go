package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"reinf/internal/apperr"
	"reinf/internal/model"
	"reinf/internal/repository"
	"reinf/internal/workflow"
	"reinf/pkg/cnpj"

	"github.com/google/uuid"
)

// --- DTOs ---

type CreateCompanyRequest struct {
	Name      string `json:"nome" binding:"required"`
	LegalName string `json:"razao_social"`
	CNPJ      string `json:"cnpj" binding:"required"`
	Regime    string `json:"regime" binding:"required"`
	// PeriodOverride replaces the regime default; empty or absent means none
	PeriodOverride *string `json:"periodo_tipo"`
}

type UpdateCompanyRequest struct {
	Name           *string `json:"nome"`
	LegalName      *string `json:"razao_social"`
	CNPJ           *string `json:"cnpj"`
	Regime         *string `json:"regime"`
	PeriodOverride *string `json:"periodo_tipo"` // "" clears the override
}

type CompanyResponse struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"nome"`
	LegalName       string    `json:"razao_social"`
	CNPJ            string    `json:"cnpj"`
	CNPJFormatted   string    `json:"cnpj_formatado"`
	Regime          string    `json:"regime"`
	PeriodOverride  *string   `json:"periodo_tipo"`
	EffectivePeriod string    `json:"periodo_efetivo"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// --- Interface ---

type CompanyService interface {
	ListCompanies(ctx context.Context, regime, search string, page, limit int) ([]CompanyResponse, int64, error)
	GetCompany(ctx context.Context, id string) (*CompanyResponse, error)
	CreateCompany(ctx context.Context, actorID uuid.UUID, req CreateCompanyRequest) (*CompanyResponse, error)
	UpdateCompany(ctx context.Context, actorID uuid.UUID, id string, req UpdateCompanyRequest) (*CompanyResponse, error)
	DeleteCompany(ctx context.Context, actorID uuid.UUID, id string) error
}

// --- Implementation ---

type companyService struct {
	companyRepo repository.CompanyRepository
	regimeRepo  repository.RegimeRepository
	entryRepo   repository.EntryRepository
	auditRepo   repository.AuditRepository
	txManager   repository.TransactionManager
}

func NewCompanyService(
	companyRepo repository.CompanyRepository,
	regimeRepo repository.RegimeRepository,
	entryRepo repository.EntryRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
) CompanyService {
	return &companyService{
		companyRepo: companyRepo,
		regimeRepo:  regimeRepo,
		entryRepo:   entryRepo,
		auditRepo:   auditRepo,
		txManager:   txManager,
	}
}

// --- Validation helpers ---

func parseCNPJ(raw string) (string, error) {
	digits, err := cnpj.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", apperr.ErrValidation, err)
	}
	return digits, nil
}

// parseOverride returns nil for "no override"
func parseOverride(raw *string) (*string, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	p, err := parsePeriodType(*raw)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// regimeDefault returns the regime's default period, failing validation when
// the regime is not configured.
func (s *companyService) regimeDefault(ctx context.Context, regime string) (string, error) {
	cfg, err := s.regimeRepo.FindByName(ctx, regime)
	if err != nil {
		if repository.IsNotFound(err) {
			return "", fmt.Errorf("%w: regime %q is not configured", apperr.ErrValidation, regime)
		}
		return "", err
	}
	return cfg.PeriodType, nil
}

func mapCompanyResponse(c *model.Company, regimeDefault string) *CompanyResponse {
	override := ""
	if c.PeriodOverride != nil {
		override = *c.PeriodOverride
	}
	return &CompanyResponse{
		ID:              c.ID,
		Name:            c.Name,
		LegalName:       c.LegalName,
		CNPJ:            c.CNPJ,
		CNPJFormatted:   cnpj.Format(c.CNPJ),
		Regime:          c.Regime,
		PeriodOverride:  c.PeriodOverride,
		EffectivePeriod: workflow.ResolvePeriod(regimeDefault, override),
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}
}

func (s *companyService) mapWithRegime(ctx context.Context, c *model.Company) (*CompanyResponse, error) {
	// the regime foreign key guarantees the row exists
	def, err := s.regimeDefault(ctx, c.Regime)
	if err != nil {
		return nil, err
	}
	return mapCompanyResponse(c, def), nil
}

func (s *companyService) findCompany(ctx context.Context, id string) (*model.Company, error) {
	companyID, err := parseID(id, "company id")
	if err != nil {
		return nil, err
	}
	company, err := s.companyRepo.FindByID(ctx, companyID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, fmt.Errorf("%w: company %s", apperr.ErrNotFound, companyID)
		}
		return nil, err
	}
	return company, nil
}

// --- CRUD ---

func (s *companyService) ListCompanies(ctx context.Context, regime, search string, page, limit int) ([]CompanyResponse, int64, error) {
	companies, total, err := s.companyRepo.List(ctx, regime, search, page, limit)
	if err != nil {
		return nil, 0, err
	}

	regimes, err := s.regimeRepo.ListAll(ctx)
	if err != nil {
		return nil, 0, err
	}
	defaults := make(map[string]string, len(regimes))
	for _, r := range regimes {
		defaults[r.Regime] = r.PeriodType
	}

	res := make([]CompanyResponse, 0, len(companies))
	for i := range companies {
		def, ok := defaults[companies[i].Regime]
		if !ok {
			def = model.PeriodQuarterly
		}
		res = append(res, *mapCompanyResponse(&companies[i], def))
	}
	return res, total, nil
}

func (s *companyService) GetCompany(ctx context.Context, id string) (*CompanyResponse, error) {
	company, err := s.findCompany(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.mapWithRegime(ctx, company)
}

func (s *companyService) CreateCompany(ctx context.Context, actorID uuid.UUID, req CreateCompanyRequest) (*CompanyResponse, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: nome is required", apperr.ErrValidation)
	}
	digits, err := parseCNPJ(req.CNPJ)
	if err != nil {
		return nil, err
	}
	regime := strings.TrimSpace(req.Regime)
	def, err := s.regimeDefault(ctx, regime)
	if err != nil {
		return nil, err
	}
	override, err := parseOverride(req.PeriodOverride)
	if err != nil {
		return nil, err
	}

	company := &model.Company{
		Name:           name,
		LegalName:      strings.TrimSpace(req.LegalName),
		CNPJ:           digits,
		Regime:         regime,
		PeriodOverride: override,
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.companyRepo.Create(txCtx, company); err != nil {
			if repository.IsUniqueViolation(err) {
				return fmt.Errorf("%w: cnpj %s is already registered", apperr.ErrConflict, cnpj.Format(digits))
			}
			if repository.IsForeignKeyViolation(err) {
				return fmt.Errorf("%w: regime %q is not configured", apperr.ErrValidation, company.Regime)
			}
			return err
		}
		return recordAudit(txCtx, s.auditRepo, actorID, model.ActionCreateCompany, company.ID.String(), company.Name, req)
	})
	if err != nil {
		return nil, err
	}

	return mapCompanyResponse(company, def), nil
}

func (s *companyService) UpdateCompany(ctx context.Context, actorID uuid.UUID, id string, req UpdateCompanyRequest) (*CompanyResponse, error) {
	company, err := s.findCompany(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: nome cannot be empty", apperr.ErrValidation)
		}
		company.Name = name
	}
	if req.LegalName != nil {
		company.LegalName = strings.TrimSpace(*req.LegalName)
	}
	if req.CNPJ != nil {
		if company.CNPJ, err = parseCNPJ(*req.CNPJ); err != nil {
			return nil, err
		}
	}
	if req.Regime != nil {
		regime := strings.TrimSpace(*req.Regime)
		if _, err := s.regimeDefault(ctx, regime); err != nil {
			return nil, err
		}
		company.Regime = regime
	}
	if req.PeriodOverride != nil {
		if company.PeriodOverride, err = parseOverride(req.PeriodOverride); err != nil {
			return nil, err
		}
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.companyRepo.Update(txCtx, company); err != nil {
			if repository.IsUniqueViolation(err) {
				return fmt.Errorf("%w: cnpj %s is already registered", apperr.ErrConflict, cnpj.Format(company.CNPJ))
			}
			if repository.IsForeignKeyViolation(err) {
				return fmt.Errorf("%w: regime %q is not configured", apperr.ErrValidation, company.Regime)
			}
			return err
		}
		return recordAudit(txCtx, s.auditRepo, actorID, model.ActionUpdateCompany, company.ID.String(), company.Name, req)
	})
	if err != nil {
		return nil, err
	}

	return s.mapWithRegime(ctx, company)
}

// DeleteCompany refuses while the company has declaration entries
func (s *companyService) DeleteCompany(ctx context.Context, actorID uuid.UUID, id string) error {
	company, err := s.findCompany(ctx, id)
	if err != nil {
		return err
	}

	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		entries, err := s.entryRepo.CountByCompany(txCtx, company.ID)
		if err != nil {
			return err
		}
		if entries > 0 {
			return fmt.Errorf("%w: company %q has %d declaration entries", apperr.ErrConflict, company.Name, entries)
		}
		if err := s.companyRepo.Delete(txCtx, company.ID); err != nil {
			return err
		}
		return recordAudit(txCtx, s.auditRepo, actorID, model.ActionDeleteCompany, company.ID.String(), company.Name, nil)
	})
}
