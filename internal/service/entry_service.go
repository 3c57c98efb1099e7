package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"reinf/internal/apperr"
	"reinf/internal/metrics"
	"reinf/internal/model"
	"reinf/internal/repository"
	"reinf/internal/websocket"
	"reinf/internal/workflow"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// --- DTOs ---

type CreateEntryRequest struct {
	CompanyID string `json:"company_id" binding:"required"`
	Year      int    `json:"ano" binding:"required"`
	Quarter   int    `json:"trimestre" binding:"required"`
}

type FillProfitsRequest struct {
	Month1 decimal.Decimal `json:"lucro_mes1"`
	Month2 decimal.Decimal `json:"lucro_mes2"`
	Month3 decimal.Decimal `json:"lucro_mes3"`
}

// AdvanceEntryRequest optionally carries the status the caller last saw.
// When set, the advance only succeeds if the entry is still in that status.
type AdvanceEntryRequest struct {
	ExpectedStatus string `json:"expected_status"`
}

type EntryFilter struct {
	Year      int
	Quarter   int
	Status    string
	CompanyID string
	// OrderBy is a whitelisted ORDER BY clause; empty keeps the default order
	OrderBy string
}

type StageStamp struct {
	UserID uuid.UUID `json:"user_id"`
	At     time.Time `json:"at"`
}

type EntryResponse struct {
	ID          uuid.UUID       `json:"id"`
	CompanyID   uuid.UUID       `json:"company_id"`
	CompanyName string          `json:"company_nome"`
	CNPJ        string          `json:"cnpj"`
	Regime      string          `json:"regime"`
	Year        int             `json:"ano"`
	Quarter     int             `json:"trimestre"`
	Months      [3]string       `json:"meses"`
	Month1      decimal.Decimal `json:"lucro_mes1"`
	Month2      decimal.Decimal `json:"lucro_mes2"`
	Month3      decimal.Decimal `json:"lucro_mes3"`
	Total       decimal.Decimal `json:"total"`
	Status      string          `json:"status"`
	NextStatus  string          `json:"next_status,omitempty"`
	Accounting  *StageStamp     `json:"contabil"`
	HR          *StageStamp     `json:"dp"`
	Fiscal      *StageStamp     `json:"fiscal"`
	CreatedAt   time.Time       `json:"created_at"`
}

// --- Interface ---

type EntryService interface {
	ListEntries(ctx context.Context, filter EntryFilter, page, limit int) ([]EntryResponse, int64, error)
	GetEntry(ctx context.Context, id string) (*EntryResponse, error)
	CreateEntry(ctx context.Context, actorID uuid.UUID, req CreateEntryRequest) (*EntryResponse, error)
	FillProfits(ctx context.Context, actorID uuid.UUID, id string, req FillProfitsRequest) (*EntryResponse, error)
	AdvanceEntry(ctx context.Context, actorID uuid.UUID, id string, req AdvanceEntryRequest) (*EntryResponse, error)
}

// EventPublisher pushes change notifications to connected clients
type EventPublisher interface {
	Publish(eventType string, payload interface{})
}

type nopPublisher struct{}

func (nopPublisher) Publish(string, interface{}) {}

// --- Implementation ---

type entryService struct {
	entryRepo   repository.EntryRepository
	companyRepo repository.CompanyRepository
	userRepo    repository.UserRepository
	auditRepo   repository.AuditRepository
	txManager   repository.TransactionManager
	engine      *workflow.Engine
	events      EventPublisher
	metrics     *metrics.Metrics
}

// NewEntryService wires the workflow engine to the gorm entry store. events
// may be nil.
func NewEntryService(
	entryRepo repository.EntryRepository,
	companyRepo repository.CompanyRepository,
	userRepo repository.UserRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	events EventPublisher,
	m *metrics.Metrics,
) EntryService {
	if events == nil {
		events = nopPublisher{}
	}
	if m == nil {
		m = metrics.Noop()
	}
	return &entryService{
		entryRepo:   entryRepo,
		companyRepo: companyRepo,
		userRepo:    userRepo,
		auditRepo:   auditRepo,
		txManager:   txManager,
		engine:      workflow.NewEngine(entryRepo, nil),
		events:      events,
		metrics:     m,
	}
}

func stageStamp(userID *uuid.UUID, at *time.Time) *StageStamp {
	if userID == nil || at == nil {
		return nil
	}
	return &StageStamp{UserID: *userID, At: *at}
}

func mapEntryResponse(e *model.ReinfEntry) *EntryResponse {
	period := workflow.Period{Year: e.Year, Quarter: e.Quarter}
	res := &EntryResponse{
		ID:         e.ID,
		CompanyID:  e.CompanyID,
		Year:       e.Year,
		Quarter:    e.Quarter,
		Month1:     e.ProfitMonth1,
		Month2:     e.ProfitMonth2,
		Month3:     e.ProfitMonth3,
		Total:      e.Total(),
		Status:     e.Status,
		Accounting: stageStamp(e.AccountingUserID, e.AccountingFilledAt),
		HR:         stageStamp(e.HRUserID, e.HRApprovedAt),
		Fiscal:     stageStamp(e.FiscalUserID, e.FiscalSentAt),
		CreatedAt:  e.CreatedAt,
	}
	if period.Validate() == nil {
		res.Months = period.MonthLabels()
	}
	if t, ok := workflow.NextTransition(e.Status); ok {
		res.NextStatus = t.To
	}
	if e.Company != nil {
		res.CompanyName = e.Company.Name
		res.CNPJ = e.Company.CNPJ
		res.Regime = e.Company.Regime
	}
	return res
}

// requester resolves the caller's authority from its profile and department
func (s *entryService) requester(ctx context.Context, actorID uuid.UUID) (workflow.Requester, error) {
	profile, err := s.userRepo.GetProfile(ctx, actorID)
	if err != nil {
		if repository.IsNotFound(err) {
			return workflow.Requester{}, fmt.Errorf("%w: unknown user", apperr.ErrUnauthenticated)
		}
		return workflow.Requester{}, err
	}
	return workflow.Requester{UserID: profile.ID, Authority: profileAuthority(profile)}, nil
}

func (s *entryService) loadEntry(ctx context.Context, id string) (*model.ReinfEntry, error) {
	entryID, err := parseID(id, "entry id")
	if err != nil {
		return nil, err
	}
	return s.entryRepo.Get(ctx, entryID)
}

func (s *entryService) respond(ctx context.Context, id uuid.UUID) (*EntryResponse, error) {
	entry, err := s.entryRepo.GetWithCompany(ctx, id)
	if err != nil {
		return nil, err
	}
	return mapEntryResponse(entry), nil
}

// --- Queries ---

func (s *entryService) ListEntries(ctx context.Context, filter EntryFilter, page, limit int) ([]EntryResponse, int64, error) {
	repoFilter := repository.EntryFilter{Year: filter.Year, Quarter: filter.Quarter, OrderBy: filter.OrderBy}
	if filter.Quarter != 0 && (filter.Quarter < 1 || filter.Quarter > 4) {
		return nil, 0, fmt.Errorf("%w: trimestre must be between 1 and 4", apperr.ErrValidation)
	}
	if filter.Status != "" {
		if !model.IsValidStatus(filter.Status) {
			return nil, 0, fmt.Errorf("%w: unknown status %q", apperr.ErrValidation, filter.Status)
		}
		repoFilter.Status = filter.Status
	}
	if strings.TrimSpace(filter.CompanyID) != "" {
		companyID, err := parseID(filter.CompanyID, "company_id")
		if err != nil {
			return nil, 0, err
		}
		repoFilter.CompanyID = &companyID
	}

	entries, total, err := s.entryRepo.List(ctx, repoFilter, page, limit)
	if err != nil {
		return nil, 0, err
	}

	res := make([]EntryResponse, 0, len(entries))
	for i := range entries {
		res = append(res, *mapEntryResponse(&entries[i]))
	}
	return res, total, nil
}

func (s *entryService) GetEntry(ctx context.Context, id string) (*EntryResponse, error) {
	entryID, err := parseID(id, "entry id")
	if err != nil {
		return nil, err
	}
	return s.respond(ctx, entryID)
}

// --- Workflow ---

func (s *entryService) CreateEntry(ctx context.Context, actorID uuid.UUID, req CreateEntryRequest) (*EntryResponse, error) {
	companyID, err := parseID(req.CompanyID, "company_id")
	if err != nil {
		return nil, err
	}
	req.CompanyID = companyID.String()
	period := workflow.Period{Year: req.Year, Quarter: req.Quarter}
	if err := period.Validate(); err != nil {
		return nil, err
	}

	company, err := s.companyRepo.FindByID(ctx, companyID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, fmt.Errorf("%w: company %s does not exist", apperr.ErrValidation, companyID)
		}
		return nil, err
	}

	requester, err := s.requester(ctx, actorID)
	if err != nil {
		return nil, err
	}

	var entry *model.ReinfEntry
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		if entry, err = s.engine.Create(txCtx, companyID, period, requester); err != nil {
			return err
		}
		return recordAudit(txCtx, s.auditRepo, actorID, model.ActionCreateEntry, entry.ID.String(), company.Name, req)
	})
	if err != nil {
		if errors.Is(err, apperr.ErrDuplicateEntry) {
			s.metrics.Conflict("create")
		}
		return nil, err
	}

	s.metrics.EntryCreated()
	res, err := s.respond(ctx, entry.ID)
	if err != nil {
		return nil, err
	}
	s.events.Publish(websocket.EventEntryCreated, res)
	return res, nil
}

func (s *entryService) FillProfits(ctx context.Context, actorID uuid.UUID, id string, req FillProfitsRequest) (*EntryResponse, error) {
	entry, err := s.loadEntry(ctx, id)
	if err != nil {
		return nil, err
	}
	requester, err := s.requester(ctx, actorID)
	if err != nil {
		return nil, err
	}

	amounts := workflow.Amounts{Month1: req.Month1, Month2: req.Month2, Month3: req.Month3}
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.engine.FillProfits(txCtx, entry, amounts, requester); err != nil {
			return err
		}
		return recordAudit(txCtx, s.auditRepo, actorID, model.ActionFillProfits, entry.ID.String(), "", map[string]string{
			"lucro_mes1": amounts.Month1.StringFixed(2),
			"lucro_mes2": amounts.Month2.StringFixed(2),
			"lucro_mes3": amounts.Month3.StringFixed(2),
		})
	})
	if err != nil {
		return nil, err
	}

	res, err := s.respond(ctx, entry.ID)
	if err != nil {
		return nil, err
	}
	s.events.Publish(websocket.EventEntryFilled, res)
	return res, nil
}

// AdvanceEntry moves the entry one stage forward. A stale expected_status
// surfaces as apperr.ErrConcurrentModification; the caller must reload.
func (s *entryService) AdvanceEntry(ctx context.Context, actorID uuid.UUID, id string, req AdvanceEntryRequest) (*EntryResponse, error) {
	entry, err := s.loadEntry(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.ExpectedStatus != "" {
		if !model.IsValidStatus(req.ExpectedStatus) {
			return nil, fmt.Errorf("%w: unknown status %q", apperr.ErrValidation, req.ExpectedStatus)
		}
		if req.ExpectedStatus != entry.Status {
			s.metrics.Conflict("advance")
			return nil, fmt.Errorf("%w: entry is %s, not %s", apperr.ErrConcurrentModification, entry.Status, req.ExpectedStatus)
		}
	}
	requester, err := s.requester(ctx, actorID)
	if err != nil {
		return nil, err
	}

	from := entry.Status
	var updated *model.ReinfEntry
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		var err error
		if updated, err = s.engine.Advance(txCtx, entry, requester); err != nil {
			return err
		}
		return recordAudit(txCtx, s.auditRepo, actorID, model.ActionAdvanceEntry, entry.ID.String(), "", map[string]string{
			"from": from,
			"to":   updated.Status,
		})
	})
	if err != nil {
		if errors.Is(err, apperr.ErrConcurrentModification) {
			s.metrics.Conflict("advance")
		}
		return nil, err
	}

	s.metrics.Transition(from, updated.Status)
	res, err := s.respond(ctx, updated.ID)
	if err != nil {
		return nil, err
	}
	s.events.Publish(websocket.EventEntryAdvanced, res)
	return res, nil
}
