package repository

import (
	"context"
	"fmt"

	"reinf/internal/apperr"
	"reinf/internal/model"
	"reinf/internal/workflow"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EntryFilter narrows entry listings. Zero values mean "any".
type EntryFilter struct {
	Year      int
	Quarter   int
	Status    string
	CompanyID *uuid.UUID
	// OrderBy replaces the default period ordering. It is passed to SQL as
	// is, so callers must only set it from a whitelist.
	OrderBy string
}

// EntryRepository is the gorm-backed workflow.EntryStore plus listing queries.
type EntryRepository interface {
	workflow.EntryStore
	List(ctx context.Context, filter EntryFilter, page, limit int) ([]model.ReinfEntry, int64, error)
	GetWithCompany(ctx context.Context, id uuid.UUID) (*model.ReinfEntry, error)
	CountByCompany(ctx context.Context, companyID uuid.UUID) (int64, error)
}

type entryRepository struct {
	db *gorm.DB
}

func NewEntryRepository(db *gorm.DB) EntryRepository {
	return &entryRepository{db: db}
}

var _ workflow.EntryStore = (*entryRepository)(nil)

// InsertIfAbsent maps a violation of the (company_id, ano, trimestre) index
// to apperr.ErrDuplicateEntry.
func (r *entryRepository) InsertIfAbsent(ctx context.Context, entry *model.ReinfEntry) error {
	if err := GetDB(ctx, r.db).Create(entry).Error; err != nil {
		if IsUniqueViolation(err) {
			return fmt.Errorf("%w: company %s, %d Q%d", apperr.ErrDuplicateEntry, entry.CompanyID, entry.Year, entry.Quarter)
		}
		return fmt.Errorf("failed to create entry: %w", err)
	}
	return nil
}

// CompareAndUpdateStatus checks the expected status and, for transitions
// that need them, non-zero profits in the WHERE clause of the update itself.
func (r *entryRepository) CompareAndUpdateStatus(ctx context.Context, id uuid.UUID, t workflow.Transition, stamp workflow.Stamp) (*model.ReinfEntry, error) {
	updates := map[string]interface{}{"status": t.To}
	if actorCol, atCol, ok := stampColumns(t.To); ok {
		updates[actorCol] = stamp.ActorID
		updates[atCol] = stamp.At
	}

	q := GetDB(ctx, r.db).Model(&model.ReinfEntry{}).
		Where("id = ? AND status = ?", id, t.From)
	if t.RequireProfits {
		q = q.Where("(lucro_mes1 <> 0 OR lucro_mes2 <> 0 OR lucro_mes3 <> 0)")
	}
	res := q.Updates(updates)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to update entry status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, r.rejectedTransition(ctx, id, t)
	}
	return r.Get(ctx, id)
}

func (r *entryRepository) UpdateAmounts(ctx context.Context, id uuid.UUID, expectedStatus string, amounts workflow.Amounts) (*model.ReinfEntry, error) {
	res := GetDB(ctx, r.db).Model(&model.ReinfEntry{}).
		Where("id = ? AND status = ?", id, expectedStatus).
		Updates(map[string]interface{}{
			"lucro_mes1": amounts.Month1,
			"lucro_mes2": amounts.Month2,
			"lucro_mes3": amounts.Month3,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to update entry amounts: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, r.missOrConflict(ctx, id)
	}
	return r.Get(ctx, id)
}

func (r *entryRepository) Get(ctx context.Context, id uuid.UUID) (*model.ReinfEntry, error) {
	var entry model.ReinfEntry
	if err := GetDB(ctx, r.db).First(&entry, "id = ?", id).Error; err != nil {
		if IsNotFound(err) {
			return nil, fmt.Errorf("%w: entry %s", apperr.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to fetch entry: %w", err)
	}
	return &entry, nil
}

func (r *entryRepository) GetWithCompany(ctx context.Context, id uuid.UUID) (*model.ReinfEntry, error) {
	var entry model.ReinfEntry
	if err := GetDB(ctx, r.db).Preload("Company").First(&entry, "id = ?", id).Error; err != nil {
		if IsNotFound(err) {
			return nil, fmt.Errorf("%w: entry %s", apperr.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to fetch entry: %w", err)
	}
	return &entry, nil
}

func (r *entryRepository) List(ctx context.Context, filter EntryFilter, page, limit int) ([]model.ReinfEntry, int64, error) {
	var entries []model.ReinfEntry
	var total int64

	db := GetDB(ctx, r.db)
	if err := applyEntryFilter(db.Model(&model.ReinfEntry{}), filter).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := "ano DESC, trimestre DESC"
	if filter.OrderBy != "" {
		order = filter.OrderBy
	}

	offset := (page - 1) * limit
	if err := applyEntryFilter(db.Preload("Company"), filter).
		Order(order).Order("created_at ASC").Order("id ASC").
		Offset(offset).Limit(limit).
		Find(&entries).Error; err != nil {
		return nil, 0, err
	}

	return entries, total, nil
}

func (r *entryRepository) CountByCompany(ctx context.Context, companyID uuid.UUID) (int64, error) {
	var count int64
	err := GetDB(ctx, r.db).Model(&model.ReinfEntry{}).Where("company_id = ?", companyID).Count(&count).Error
	return count, err
}

// missOrConflict tells a missing row apart from a lost compare-and-swap
// after a conditional update touched nothing.
func (r *entryRepository) missOrConflict(ctx context.Context, id uuid.UUID) error {
	var count int64
	if err := GetDB(ctx, r.db).Model(&model.ReinfEntry{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check entry: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("%w: entry %s", apperr.ErrNotFound, id)
	}
	return apperr.ErrConcurrentModification
}

// rejectedTransition explains a status update that touched nothing by
// re-reading the stored row.
func (r *entryRepository) rejectedTransition(ctx context.Context, id uuid.UUID, t workflow.Transition) error {
	stored, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if stored.Status == t.From && t.RequireProfits && !stored.HasProfits() {
		return apperr.ErrIncompleteData
	}
	return apperr.ErrConcurrentModification
}

func applyEntryFilter(q *gorm.DB, f EntryFilter) *gorm.DB {
	if f.Year > 0 {
		q = q.Where("ano = ?", f.Year)
	}
	if f.Quarter > 0 {
		q = q.Where("trimestre = ?", f.Quarter)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.CompanyID != nil {
		q = q.Where("company_id = ?", *f.CompanyID)
	}
	return q
}

func stampColumns(next string) (actorCol, atCol string, ok bool) {
	switch next {
	case model.StatusAccountingDone:
		return "contabil_usuario_id", "contabil_preenchido_em", true
	case model.StatusHRApproved:
		return "dp_usuario_id", "dp_aprovado_em", true
	case model.StatusSent:
		return "fiscal_usuario_id", "fiscal_enviado_em", true
	}
	return "", "", false
}
