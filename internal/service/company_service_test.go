package service

import (
	"context"
	"testing"

	"reinf/internal/apperr"
	"reinf/internal/model"
	"reinf/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestCompanyService_CreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.addUser(t, "admin@example.com", "", true)

	c, err := f.companySvc.CreateCompany(ctx, admin, CreateCompanyRequest{
		Name:   " Padaria Central ",
		CNPJ:   "12.345.678/0001-90",
		Regime: model.RegimeSimplesNacional,
	})
	require.NoError(t, err)
	assert.Equal(t, "Padaria Central", c.Name)
	assert.Equal(t, "12345678000190", c.CNPJ)
	assert.Equal(t, "12.345.678/0001-90", c.CNPJFormatted)
	assert.Nil(t, c.PeriodOverride)
	assert.Equal(t, model.PeriodQuarterly, c.EffectivePeriod)

	tests := []struct {
		name string
		req  CreateCompanyRequest
		want error
	}{
		{name: "duplicate cnpj", req: CreateCompanyRequest{Name: "X", CNPJ: "12345678000190", Regime: model.RegimeMEI}, want: apperr.ErrConflict},
		{name: "short cnpj", req: CreateCompanyRequest{Name: "X", CNPJ: "123", Regime: model.RegimeMEI}, want: apperr.ErrValidation},
		{name: "unknown regime", req: CreateCompanyRequest{Name: "X", CNPJ: "11222333000181", Regime: "Imaginary"}, want: apperr.ErrValidation},
		{name: "bad override", req: CreateCompanyRequest{Name: "X", CNPJ: "11222333000181", Regime: model.RegimeMEI, PeriodOverride: strPtr("anual")}, want: apperr.ErrValidation},
		{name: "missing name", req: CreateCompanyRequest{CNPJ: "11222333000181", Regime: model.RegimeMEI}, want: apperr.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.companySvc.CreateCompany(ctx, admin, tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCompanyService_EffectivePeriod(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.addUser(t, "admin@example.com", "", true)

	plain, err := f.companySvc.CreateCompany(ctx, admin, CreateCompanyRequest{Name: "Plain", CNPJ: "11222333000181", Regime: model.RegimeLucroReal})
	require.NoError(t, err)
	monthly, err := f.companySvc.CreateCompany(ctx, admin, CreateCompanyRequest{Name: "Monthly", CNPJ: "12345678000190", Regime: model.RegimeLucroReal, PeriodOverride: strPtr("mensal")})
	require.NoError(t, err)
	assert.Equal(t, model.PeriodMonthly, monthly.EffectivePeriod)

	// switching the regime default only affects companies without an override
	regime, err := f.regimes.FindByName(ctx, model.RegimeLucroReal)
	require.NoError(t, err)
	_, err = f.regimeSvc.UpdatePeriod(ctx, admin, regime.ID.String(), UpdateRegimePeriodRequest{PeriodType: model.PeriodMonthly})
	require.NoError(t, err)

	got, err := f.companySvc.GetCompany(ctx, plain.ID.String())
	require.NoError(t, err)
	assert.Equal(t, model.PeriodMonthly, got.EffectivePeriod)

	_, err = f.regimeSvc.UpdatePeriod(ctx, admin, regime.ID.String(), UpdateRegimePeriodRequest{PeriodType: model.PeriodQuarterly})
	require.NoError(t, err)

	list, total, err := f.companySvc.ListCompanies(ctx, model.RegimeLucroReal, "", 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	byName := map[string]string{}
	for _, c := range list {
		byName[c.Name] = c.EffectivePeriod
	}
	assert.Equal(t, model.PeriodMonthly, byName["Monthly"])
	assert.Equal(t, model.PeriodQuarterly, byName["Plain"])

	// clearing the override falls back to the regime
	cleared, err := f.companySvc.UpdateCompany(ctx, admin, monthly.ID.String(), UpdateCompanyRequest{PeriodOverride: strPtr("")})
	require.NoError(t, err)
	assert.Nil(t, cleared.PeriodOverride)
	assert.Equal(t, model.PeriodQuarterly, cleared.EffectivePeriod)
}

func TestCompanyService_Search(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.addUser(t, "admin@example.com", "", true)
	f.addCompany(t, admin, "11222333000181")
	_, err := f.companySvc.CreateCompany(ctx, admin, CreateCompanyRequest{Name: "Oficina Mecânica", CNPJ: "12345678000190", Regime: model.RegimeMEI})
	require.NoError(t, err)

	list, total, err := f.companySvc.ListCompanies(ctx, "", "oficina", 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, list, 1)
	assert.Equal(t, "12345678000190", list[0].CNPJ)

	_, total, err = f.companySvc.ListCompanies(ctx, "", "112223", 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
}

func TestCompanyService_DeleteRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.addUser(t, "admin@example.com", "", true)
	used := f.addCompany(t, admin, "11222333000181")
	unused := f.addCompany(t, admin, "12345678000190")

	_, err := f.entrySvc.CreateEntry(ctx, admin, CreateEntryRequest{CompanyID: used.ID.String(), Year: 2024, Quarter: 1})
	require.NoError(t, err)

	err = f.companySvc.DeleteCompany(ctx, admin, used.ID.String())
	assert.ErrorIs(t, err, apperr.ErrConflict)

	require.NoError(t, f.companySvc.DeleteCompany(ctx, admin, unused.ID.String()))
	_, err = f.companySvc.GetCompany(ctx, unused.ID.String())
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	// the regime still has a company
	regime, err := f.regimes.FindByName(ctx, model.RegimeLucroPresumido)
	require.NoError(t, err)
	err = f.regimeSvc.DeleteRegime(ctx, admin, regime.ID.String())
	assert.ErrorIs(t, err, apperr.ErrConflict)

	mei, err := f.regimes.FindByName(ctx, model.RegimeMEI)
	require.NoError(t, err)
	assert.NoError(t, f.regimeSvc.DeleteRegime(ctx, admin, mei.ID.String()))
}

// staleCompanyCount reports no companies for any regime, as a count taken
// before a concurrent company creation would.
type staleCompanyCount struct {
	repository.CompanyRepository
}

func (staleCompanyCount) CountByRegime(context.Context, string) (int64, error) { return 0, nil }

func TestRegimeService_DeleteRaceIsRejectedByForeignKey(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.addUser(t, "admin@example.com", "", true)
	f.addCompany(t, admin, "11222333000181")

	svc := NewRegimeService(f.regimes, staleCompanyCount{f.companies}, f.audit, repository.NewTransactionManager(f.db))
	regime, err := f.regimes.FindByName(ctx, model.RegimeLucroPresumido)
	require.NoError(t, err)

	err = svc.DeleteRegime(ctx, admin, regime.ID.String())
	assert.ErrorIs(t, err, apperr.ErrConflict)

	_, err = f.regimes.FindByName(ctx, model.RegimeLucroPresumido)
	assert.NoError(t, err)
	list, total, err := f.companySvc.ListCompanies(ctx, model.RegimeLucroPresumido, "", 1, 20)
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	assert.Equal(t, model.PeriodQuarterly, list[0].EffectivePeriod)
}

func TestRegimeService_SeedIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.regimeSvc.SeedDefaultRegimes(ctx))
	regimes, err := f.regimeSvc.ListRegimes(ctx)
	require.NoError(t, err)
	assert.Len(t, regimes, 4)
	for _, r := range regimes {
		assert.Equal(t, model.PeriodQuarterly, r.PeriodType)
	}

	admin := f.addUser(t, "admin@example.com", "", true)
	_, err = f.regimeSvc.CreateRegime(ctx, admin, CreateRegimeRequest{Regime: model.RegimeMEI})
	assert.ErrorIs(t, err, apperr.ErrConflict)
	_, err = f.regimeSvc.UpdatePeriod(ctx, admin, regimes[0].ID.String(), UpdateRegimePeriodRequest{PeriodType: "semanal"})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}
