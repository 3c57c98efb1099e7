package service

import (
	"context"
	"testing"

	"reinf/internal/apperr"
	"reinf/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoleService_SeedIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.roleSvc.SeedDefaultRoles(ctx))
	roles, err := f.roleSvc.ListRoles(ctx)
	require.NoError(t, err)
	require.Len(t, roles, 3)

	byName := map[string]model.Authority{}
	for _, r := range roles {
		byName[r.Name] = r.Authority
	}
	assert.Equal(t, model.AuthorityAccounting, byName["Contabilidade"])
	assert.Equal(t, model.AuthorityHR, byName["Departamento Pessoal"])
	assert.Equal(t, model.AuthorityFiscal, byName["Fiscal"])
}

func TestRoleService_CreateDerivesAuthority(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.addUser(t, "admin@example.com", "", true)

	payroll, err := f.roleSvc.CreateRole(ctx, admin, CreateRoleRequest{Name: "Folha de Pagamento"})
	require.NoError(t, err)
	assert.Equal(t, model.AuthorityHR, payroll.Authority)

	explicit, err := f.roleSvc.CreateRole(ctx, admin, CreateRoleRequest{Name: "Diretoria", Authority: "Fiscal"})
	require.NoError(t, err)
	assert.Equal(t, model.AuthorityFiscal, explicit.Authority)

	_, err = f.roleSvc.CreateRole(ctx, admin, CreateRoleRequest{Name: "Superusers", Authority: "all"})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.roleSvc.CreateRole(ctx, admin, CreateRoleRequest{Name: "Fiscal"})
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestRoleService_BackfillAuthorities(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.addUser(t, "admin@example.com", "", true)

	tax, err := f.roleSvc.CreateRole(ctx, admin, CreateRoleRequest{Name: "Tributário", Authority: "none"})
	require.NoError(t, err)
	other, err := f.roleSvc.CreateRole(ctx, admin, CreateRoleRequest{Name: "Marketing"})
	require.NoError(t, err)
	assert.Equal(t, model.AuthorityNone, other.Authority)

	changed, err := f.roleSvc.BackfillAuthorities(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, changed)

	got, err := f.roleSvc.GetRole(ctx, tax.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AuthorityFiscal, got.Authority)

	got, err = f.roleSvc.GetRole(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AuthorityNone, got.Authority)
}

func TestRoleService_UpdateAndDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.addUser(t, "admin@example.com", "", true)
	f.addUser(t, "member@example.com", "Fiscal", false)

	fiscal, err := f.roles.FindByName(ctx, "Fiscal")
	require.NoError(t, err)

	err = f.roleSvc.DeleteRole(ctx, admin, fiscal.ID.String())
	assert.ErrorIs(t, err, apperr.ErrConflict)

	auth := "accounting"
	updated, err := f.roleSvc.UpdateRole(ctx, admin, fiscal.ID.String(), UpdateRoleRequest{Authority: &auth})
	require.NoError(t, err)
	assert.Equal(t, model.AuthorityAccounting, updated.Authority)

	// members act with the new authority immediately
	member, err := f.users.GetAccountByEmail(ctx, "member@example.com")
	require.NoError(t, err)
	me, err := f.userSvc.Me(ctx, member.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AuthorityAccounting, me.Authority)

	empty, err := f.roleSvc.CreateRole(ctx, admin, CreateRoleRequest{Name: "Vazio"})
	require.NoError(t, err)
	require.NoError(t, f.roleSvc.DeleteRole(ctx, admin, empty.ID))
	_, err = f.roleSvc.GetRole(ctx, empty.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
