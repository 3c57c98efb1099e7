package workflow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reinf/internal/apperr"
	"reinf/internal/model"
)

// memStore is an in-memory EntryStore. The mutex makes every operation
// atomic, which is what the real store gets from the database.
type memStore struct {
	mu      sync.Mutex
	entries map[uuid.UUID]model.ReinfEntry
}

func newMemStore() *memStore {
	return &memStore{entries: make(map[uuid.UUID]model.ReinfEntry)}
}

func (s *memStore) InsertIfAbsent(ctx context.Context, entry *model.ReinfEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.CompanyID == entry.CompanyID && e.Year == entry.Year && e.Quarter == entry.Quarter {
			return apperr.ErrDuplicateEntry
		}
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	s.entries[entry.ID] = *entry
	return nil
}

func (s *memStore) CompareAndUpdateStatus(ctx context.Context, id uuid.UUID, t Transition, stamp Stamp) (*model.ReinfEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	if e.Status != t.From {
		return nil, apperr.ErrConcurrentModification
	}
	if t.RequireProfits && !e.HasProfits() {
		return nil, apperr.ErrIncompleteData
	}
	applyStamp(&e, t.To, stamp)
	s.entries[id] = e
	return &e, nil
}

// applyStamp sets the status and the actor/timestamp pair belonging to the
// transition into next.
func applyStamp(entry *model.ReinfEntry, next string, stamp Stamp) {
	actor := stamp.ActorID
	at := stamp.At
	entry.Status = next
	switch next {
	case model.StatusAccountingDone:
		entry.AccountingUserID, entry.AccountingFilledAt = &actor, &at
	case model.StatusHRApproved:
		entry.HRUserID, entry.HRApprovedAt = &actor, &at
	case model.StatusSent:
		entry.FiscalUserID, entry.FiscalSentAt = &actor, &at
	}
}

func (s *memStore) UpdateAmounts(ctx context.Context, id uuid.UUID, expectedStatus string, amounts Amounts) (*model.ReinfEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	if e.Status != expectedStatus {
		return nil, apperr.ErrConcurrentModification
	}
	e.ProfitMonth1, e.ProfitMonth2, e.ProfitMonth3 = amounts.Month1, amounts.Month2, amounts.Month3
	s.entries[id] = e
	return &e, nil
}

func (s *memStore) Get(ctx context.Context, id uuid.UUID) (*model.ReinfEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return &e, nil
}

var fixedNow = time.Date(2024, time.April, 10, 12, 0, 0, 0, time.UTC)

func newTestEngine() (*Engine, *memStore) {
	store := newMemStore()
	return NewEngine(store, func() time.Time { return fixedNow }), store
}

func requester(a model.Authority) Requester {
	return Requester{UserID: uuid.New(), Authority: a}
}

func createEntry(t *testing.T, e *Engine) *model.ReinfEntry {
	t.Helper()
	entry, err := e.Create(context.Background(), uuid.New(), Period{Year: 2024, Quarter: 1}, requester(model.AuthorityAccounting))
	require.NoError(t, err)
	return entry
}

func TestEngine_Create(t *testing.T) {
	e, _ := newTestEngine()
	ctx := context.Background()
	companyID := uuid.New()

	entry, err := e.Create(ctx, companyID, Period{Year: 2024, Quarter: 2}, requester(model.AuthorityAccounting))
	require.NoError(t, err)
	assert.Equal(t, model.StatusPendingAccounting, entry.Status)
	assert.True(t, entry.Total().IsZero())
	assert.Nil(t, entry.AccountingUserID)

	_, err = e.Create(ctx, companyID, Period{Year: 2024, Quarter: 2}, requester(model.AuthorityAll))
	assert.True(t, errors.Is(err, apperr.ErrDuplicateEntry))

	_, err = e.Create(ctx, companyID, Period{Year: 2024, Quarter: 3}, requester(model.AuthorityFiscal))
	assert.True(t, errors.Is(err, apperr.ErrUnauthorized))

	_, err = e.Create(ctx, companyID, Period{Year: 2024, Quarter: 7}, requester(model.AuthorityAccounting))
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestEngine_FillProfits(t *testing.T) {
	e, _ := newTestEngine()
	ctx := context.Background()
	entry := createEntry(t, e)

	t.Run("rejects negative amounts", func(t *testing.T) {
		_, err := e.FillProfits(ctx, entry, Amounts{Month1: decimal.NewFromInt(-1)}, requester(model.AuthorityAccounting))
		assert.True(t, errors.Is(err, apperr.ErrValidation))
	})

	t.Run("rejects other departments", func(t *testing.T) {
		_, err := e.FillProfits(ctx, entry, Amounts{Month1: decimal.NewFromInt(10)}, requester(model.AuthorityHR))
		assert.True(t, errors.Is(err, apperr.ErrUnauthorized))
	})

	t.Run("overwrites amounts without changing stage", func(t *testing.T) {
		updated, err := e.FillProfits(ctx, entry, Amounts{
			Month1: decimal.NewFromInt(1000),
			Month2: decimal.Zero,
			Month3: decimal.RequireFromString("250.50"),
		}, requester(model.AuthorityAccounting))
		require.NoError(t, err)
		assert.Equal(t, model.StatusPendingAccounting, updated.Status)
		assert.True(t, updated.Total().Equal(decimal.RequireFromString("1250.50")))
		assert.Nil(t, updated.AccountingFilledAt)
	})

	t.Run("rejected after advancing", func(t *testing.T) {
		current, err := e.store.Get(ctx, entry.ID)
		require.NoError(t, err)
		advanced, err := e.Advance(ctx, current, requester(model.AuthorityAccounting))
		require.NoError(t, err)

		_, err = e.FillProfits(ctx, advanced, Amounts{Month1: decimal.NewFromInt(1)}, requester(model.AuthorityAll))
		assert.True(t, errors.Is(err, apperr.ErrInvalidState))
	})

	t.Run("stale snapshot is rejected", func(t *testing.T) {
		// entry still claims pendente_contabil but the store has moved on
		_, err := e.FillProfits(ctx, entry, Amounts{Month1: decimal.NewFromInt(5)}, requester(model.AuthorityAccounting))
		assert.True(t, errors.Is(err, apperr.ErrInvalidState))
	})
}

func TestEngine_Advance_IncompleteData(t *testing.T) {
	e, _ := newTestEngine()
	entry := createEntry(t, e)

	_, err := e.Advance(context.Background(), entry, requester(model.AuthorityAccounting))
	assert.True(t, errors.Is(err, apperr.ErrIncompleteData))
}

func TestEngine_Advance_ProfitsZeroedAfterRead(t *testing.T) {
	e, store := newTestEngine()
	ctx := context.Background()
	entry := createEntry(t, e)
	accountant := requester(model.AuthorityAccounting)

	filled, err := e.FillProfits(ctx, entry, Amounts{Month1: decimal.NewFromInt(1000)}, accountant)
	require.NoError(t, err)
	_, err = e.FillProfits(ctx, entry, Amounts{}, accountant)
	require.NoError(t, err)

	_, err = e.Advance(ctx, filled, accountant)
	assert.True(t, errors.Is(err, apperr.ErrIncompleteData))

	stored, err := store.Get(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPendingAccounting, stored.Status)
	assert.Nil(t, stored.AccountingUserID)
}

func TestEngine_Advance_FullLifecycle(t *testing.T) {
	e, store := newTestEngine()
	ctx := context.Background()
	entry := createEntry(t, e)

	filled, err := e.FillProfits(ctx, entry, Amounts{Month1: decimal.NewFromInt(1000)}, requester(model.AuthorityAccounting))
	require.NoError(t, err)

	accountant := requester(model.AuthorityAccounting)
	step1, err := e.Advance(ctx, filled, accountant)
	require.NoError(t, err)
	assert.Equal(t, model.StatusAccountingDone, step1.Status)
	require.NotNil(t, step1.AccountingUserID)
	assert.Equal(t, accountant.UserID, *step1.AccountingUserID)
	require.NotNil(t, step1.AccountingFilledAt)
	assert.True(t, fixedNow.Equal(*step1.AccountingFilledAt))
	assert.Nil(t, step1.HRUserID)
	assert.Nil(t, step1.FiscalUserID)

	_, err = e.Advance(ctx, step1, requester(model.AuthorityFiscal))
	assert.True(t, errors.Is(err, apperr.ErrUnauthorized))

	hr := requester(model.AuthorityHR)
	step2, err := e.Advance(ctx, step1, hr)
	require.NoError(t, err)
	assert.Equal(t, model.StatusHRApproved, step2.Status)
	assert.Equal(t, hr.UserID, *step2.HRUserID)
	assert.Equal(t, accountant.UserID, *step2.AccountingUserID)
	assert.Nil(t, step2.FiscalUserID)

	fiscal := requester(model.AuthorityFiscal)
	step3, err := e.Advance(ctx, step2, fiscal)
	require.NoError(t, err)
	assert.Equal(t, model.StatusSent, step3.Status)
	assert.Equal(t, fiscal.UserID, *step3.FiscalUserID)

	stored, err := store.Get(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusSent, stored.Status)
	assert.True(t, stored.ProfitMonth1.Equal(decimal.NewFromInt(1000)))
}

func TestEngine_Advance_TerminalState(t *testing.T) {
	e, _ := newTestEngine()
	entry := &model.ReinfEntry{ID: uuid.New(), Status: model.StatusSent}

	for _, a := range []model.Authority{model.AuthorityAll, model.AuthorityFiscal, model.AuthorityNone} {
		_, err := e.Advance(context.Background(), entry, requester(a))
		assert.True(t, errors.Is(err, apperr.ErrTerminalState), "authority %s", a)
	}
}

func TestEngine_Advance_AdminCanActOnEveryStage(t *testing.T) {
	e, _ := newTestEngine()
	ctx := context.Background()
	admin := requester(model.AuthorityAll)

	entry, err := e.Create(ctx, uuid.New(), Period{Year: 2025, Quarter: 4}, admin)
	require.NoError(t, err)
	entry, err = e.FillProfits(ctx, entry, Amounts{Month3: decimal.NewFromInt(1)}, admin)
	require.NoError(t, err)

	for _, want := range []string{model.StatusAccountingDone, model.StatusHRApproved, model.StatusSent} {
		entry, err = e.Advance(ctx, entry, admin)
		require.NoError(t, err)
		assert.Equal(t, want, entry.Status)
	}
}

func TestEngine_Advance_StaleSnapshot(t *testing.T) {
	e, _ := newTestEngine()
	ctx := context.Background()
	entry := createEntry(t, e)
	filled, err := e.FillProfits(ctx, entry, Amounts{Month2: decimal.NewFromInt(5)}, requester(model.AuthorityAccounting))
	require.NoError(t, err)

	_, err = e.Advance(ctx, filled, requester(model.AuthorityAccounting))
	require.NoError(t, err)

	// a second actor still holding the pre-advance snapshot
	_, err = e.Advance(ctx, filled, requester(model.AuthorityAll))
	assert.True(t, errors.Is(err, apperr.ErrConcurrentModification))
}

func TestEngine_Advance_ConcurrentCallsHaveOneWinner(t *testing.T) {
	e, store := newTestEngine()
	ctx := context.Background()
	entry := createEntry(t, e)
	filled, err := e.FillProfits(ctx, entry, Amounts{Month1: decimal.NewFromInt(1)}, requester(model.AuthorityAccounting))
	require.NoError(t, err)

	const workers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			snapshot := *filled
			<-start
			_, err := e.Advance(ctx, &snapshot, requester(model.AuthorityAccounting))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, apperr.ErrConcurrentModification):
				conflicts++
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, workers-1, conflicts)

	stored, err := store.Get(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusAccountingDone, stored.Status)
}

func TestEngine_Create_ConcurrentCallsHaveOneWinner(t *testing.T) {
	e, _ := newTestEngine()
	ctx := context.Background()
	companyID := uuid.New()

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.Create(ctx, companyID, Period{Year: 2024, Quarter: 1}, requester(model.AuthorityAccounting))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var ok, dup int
	for err := range errs {
		if err == nil {
			ok++
		} else if errors.Is(err, apperr.ErrDuplicateEntry) {
			dup++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, workers-1, dup)
}

func TestNextTransition(t *testing.T) {
	tests := []struct {
		from     string
		to       string
		requires model.Authority
	}{
		{model.StatusPendingAccounting, model.StatusAccountingDone, model.AuthorityAccounting},
		{model.StatusAccountingDone, model.StatusHRApproved, model.AuthorityHR},
		{model.StatusHRApproved, model.StatusSent, model.AuthorityFiscal},
	}
	for _, tt := range tests {
		t.Run(tt.from, func(t *testing.T) {
			tr, ok := NextTransition(tt.from)
			require.True(t, ok)
			assert.Equal(t, tt.to, tr.To)
			assert.Equal(t, tt.requires, tr.Requires)
		})
	}

	_, ok := NextTransition(model.StatusSent)
	assert.False(t, ok)
}
