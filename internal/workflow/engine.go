// Package workflow implements the declaration-entry state machine:
// pendente_contabil -> contabil_ok -> dp_aprovado -> enviado.
// Each forward transition needs a specific department authority and is
// written through an EntryStore compare-and-swap on status.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"reinf/internal/apperr"
	"reinf/internal/model"
)

// Transition describes the single forward step out of a stage
type Transition struct {
	From           string
	To             string
	Requires       model.Authority
	RequireProfits bool
}

var transitions = map[string]Transition{
	model.StatusPendingAccounting: {
		From:           model.StatusPendingAccounting,
		To:             model.StatusAccountingDone,
		Requires:       model.AuthorityAccounting,
		RequireProfits: true,
	},
	model.StatusAccountingDone: {
		From:     model.StatusAccountingDone,
		To:       model.StatusHRApproved,
		Requires: model.AuthorityHR,
	},
	model.StatusHRApproved: {
		From:     model.StatusHRApproved,
		To:       model.StatusSent,
		Requires: model.AuthorityFiscal,
	},
}

// NextTransition returns the transition out of status. ok is false for the
// terminal stage and for unknown values.
func NextTransition(status string) (Transition, bool) {
	t, ok := transitions[status]
	return t, ok
}

// Requester is the caller of a workflow operation with its resolved authority
type Requester struct {
	UserID    uuid.UUID
	Authority model.Authority
}

// Engine applies workflow operations. It holds no per-entry state; all
// coordination between concurrent callers happens in the store.
type Engine struct {
	store EntryStore
	now   func() time.Time
}

// NewEngine builds an Engine. A nil clock defaults to time.Now.
func NewEngine(store EntryStore, clock func() time.Time) *Engine {
	if clock == nil {
		clock = time.Now
	}
	return &Engine{store: store, now: clock}
}

// Create opens a new entry in pendente_contabil with zeroed amounts.
func (e *Engine) Create(ctx context.Context, companyID uuid.UUID, period Period, req Requester) (*model.ReinfEntry, error) {
	if companyID == uuid.Nil {
		return nil, fmt.Errorf("%w: company is required", apperr.ErrValidation)
	}
	if err := period.Validate(); err != nil {
		return nil, err
	}
	if !Permits(req.Authority, model.AuthorityAccounting) {
		return nil, fmt.Errorf("%w: only accounting can create entries", apperr.ErrUnauthorized)
	}

	entry := &model.ReinfEntry{
		CompanyID:    companyID,
		Year:         period.Year,
		Quarter:      period.Quarter,
		ProfitMonth1: decimal.Zero,
		ProfitMonth2: decimal.Zero,
		ProfitMonth3: decimal.Zero,
		Status:       model.StatusPendingAccounting,
	}
	if err := e.store.InsertIfAbsent(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// FillProfits overwrites the monthly amounts of an entry that is still
// pending accounting. It does not change the stage.
func (e *Engine) FillProfits(ctx context.Context, entry *model.ReinfEntry, amounts Amounts, req Requester) (*model.ReinfEntry, error) {
	if entry.Status != model.StatusPendingAccounting {
		return nil, fmt.Errorf("%w: profits can only be filled while %s", apperr.ErrInvalidState, model.StatusPendingAccounting)
	}
	if !Permits(req.Authority, model.AuthorityAccounting) {
		return nil, fmt.Errorf("%w: only accounting can fill profits", apperr.ErrUnauthorized)
	}
	for i, v := range []decimal.Decimal{amounts.Month1, amounts.Month2, amounts.Month3} {
		if v.IsNegative() {
			return nil, fmt.Errorf("%w: month %d profit must not be negative", apperr.ErrValidation, i+1)
		}
	}

	updated, err := e.store.UpdateAmounts(ctx, entry.ID, model.StatusPendingAccounting, amounts)
	if errors.Is(err, apperr.ErrConcurrentModification) {
		// advanced by someone else since it was read
		return nil, fmt.Errorf("%w: entry has already left %s", apperr.ErrInvalidState, model.StatusPendingAccounting)
	}
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Advance moves entry one stage forward. entry is the caller's snapshot: the
// write only succeeds if the stored status still equals entry.Status. The
// profit check here is a fast path; the store re-checks the stored amounts
// in the same write.
// There is no retry on ErrConcurrentModification; the caller must re-read.
func (e *Engine) Advance(ctx context.Context, entry *model.ReinfEntry, req Requester) (*model.ReinfEntry, error) {
	if entry.Status == model.StatusSent {
		return nil, apperr.ErrTerminalState
	}
	t, ok := NextTransition(entry.Status)
	if !ok {
		return nil, fmt.Errorf("%w: unknown status %q", apperr.ErrInvalidState, entry.Status)
	}
	if !Permits(req.Authority, t.Requires) {
		return nil, fmt.Errorf("%w: %s requires %s", apperr.ErrUnauthorized, t.To, t.Requires)
	}
	if t.RequireProfits && !entry.HasProfits() {
		return nil, apperr.ErrIncompleteData
	}

	stamp := Stamp{ActorID: req.UserID, At: e.now().UTC()}
	return e.store.CompareAndUpdateStatus(ctx, entry.ID, t, stamp)
}
