package workflow

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"reinf/internal/model"
)

// Stamp records who performed a transition and when
type Stamp struct {
	ActorID uuid.UUID
	At      time.Time
}

// Amounts are the three monthly profits of a quarter
type Amounts struct {
	Month1 decimal.Decimal
	Month2 decimal.Decimal
	Month3 decimal.Decimal
}

// EntryStore persists declaration entries. Uniqueness of (company, year,
// quarter) and the status compare-and-swap must be enforced atomically by
// the store itself.
type EntryStore interface {
	// InsertIfAbsent returns apperr.ErrDuplicateEntry if an entry already
	// exists for the entry's company and period.
	InsertIfAbsent(ctx context.Context, entry *model.ReinfEntry) error
	// CompareAndUpdateStatus moves the entry from t.From to t.To only if its
	// stored status still equals t.From and, when t.RequireProfits is set, the
	// stored amounts are not all zero. Both conditions are part of the same
	// write. It returns apperr.ErrIncompleteData if the stored entry is still
	// in t.From with zero amounts, apperr.ErrConcurrentModification on any
	// other mismatch and apperr.ErrNotFound if the entry does not exist.
	CompareAndUpdateStatus(ctx context.Context, id uuid.UUID, t Transition, stamp Stamp) (*model.ReinfEntry, error)
	// UpdateAmounts overwrites the monthly amounts only if the stored status
	// equals expectedStatus. Errors follow CompareAndUpdateStatus.
	UpdateAmounts(ctx context.Context, id uuid.UUID, expectedStatus string, amounts Amounts) (*model.ReinfEntry, error)
	Get(ctx context.Context, id uuid.UUID) (*model.ReinfEntry, error)
}
