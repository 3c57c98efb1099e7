package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"reinf/internal/auth"
	"reinf/internal/database"
	"reinf/internal/metrics"
	"reinf/internal/middleware"
	"reinf/internal/model"
	"reinf/internal/repository"
	"reinf/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type testAPI struct {
	router *gin.Engine
	tokens *auth.TokenIssuer
	users  repository.UserRepository
	roles  repository.RoleRepository
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	userRepo := repository.NewUserRepository(db)
	roleRepo := repository.NewRoleRepository(db)
	regimeRepo := repository.NewRegimeRepository(db)
	companyRepo := repository.NewCompanyRepository(db)
	entryRepo := repository.NewEntryRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	tx := repository.NewTransactionManager(db)
	tokens := auth.NewTokenIssuer("handler-secret", time.Hour)

	userSvc := service.NewUserService(userRepo, roleRepo, auditRepo, tx, tokens)
	roleSvc := service.NewRoleService(roleRepo, auditRepo, tx)
	regimeSvc := service.NewRegimeService(regimeRepo, companyRepo, auditRepo, tx)
	companySvc := service.NewCompanyService(companyRepo, regimeRepo, entryRepo, auditRepo, tx)
	entrySvc := service.NewEntryService(entryRepo, companyRepo, userRepo, auditRepo, tx, nil, metrics.Noop())

	ctx := context.Background()
	require.NoError(t, roleSvc.SeedDefaultRoles(ctx))
	require.NoError(t, regimeSvc.SeedDefaultRegimes(ctx))

	authMW := middleware.NewAuth(tokens, userSvc)
	r := gin.New()
	api := r.Group("")
	NewUserHandler(userSvc).RegisterRoutes(api, authMW)
	NewAdminOperationsHandler(userSvc).RegisterRoutes(api, authMW)
	NewRoleHandler(roleSvc).RegisterRoutes(api, authMW)
	NewRegimeHandler(regimeSvc).RegisterRoutes(api, authMW)
	NewCompanyHandler(companySvc).RegisterRoutes(api, authMW)
	NewEntryHandler(entrySvc).RegisterRoutes(api, authMW)
	NewStatisticsHandler(service.NewStatisticsService(repository.NewStatisticsRepository(db))).RegisterRoutes(api, authMW)

	return &testAPI{router: r, tokens: tokens, users: userRepo, roles: roleRepo}
}

// addUser stores an account and profile and returns a bearer token for it
func (a *testAPI) addUser(t *testing.T, email, department string, isAdmin bool) (uuid.UUID, string) {
	t.Helper()
	ctx := context.Background()

	hashed, err := bcrypt.GenerateFromPassword([]byte("secret123"), bcrypt.MinCost)
	require.NoError(t, err)
	account := &model.Account{Email: email, PasswordHash: string(hashed)}
	require.NoError(t, a.users.CreateAccount(ctx, account))

	profile := &model.Profile{ID: account.ID, FullName: email, Email: email, IsAdmin: isAdmin}
	if department != "" {
		role, err := a.roles.FindByName(ctx, department)
		require.NoError(t, err)
		profile.RoleID = &role.ID
	}
	require.NoError(t, a.users.CreateProfile(ctx, profile))

	token, _, err := a.tokens.Issue(account.ID, isAdmin)
	require.NoError(t, err)
	return account.ID, token
}

type envelope struct {
	Status     string          `json:"status"`
	StatusCode int             `json:"status_code"`
	Data       json.RawMessage `json:"data"`
	Error      string          `json:"error"`
}

func (a *testAPI) do(t *testing.T, method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w, env
}

func TestAdminOperations_Access(t *testing.T) {
	api := newTestAPI(t)
	_, memberToken := api.addUser(t, "member@example.com", "Fiscal", false)

	w, _ := api.do(t, http.MethodPost, "/api/admin-operations", "", gin.H{"action": "create-user"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, env := api.do(t, http.MethodPost, "/api/admin-operations", memberToken, gin.H{"action": "create-user"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "error", env.Status)

	// valid signature, but the profile no longer exists
	ghost, _, err := api.tokens.Issue(uuid.New(), true)
	require.NoError(t, err)
	w, _ = api.do(t, http.MethodPost, "/api/admin-operations", ghost, gin.H{"action": "create-user"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminOperations_Dispatch(t *testing.T) {
	api := newTestAPI(t)
	adminID, adminToken := api.addUser(t, "admin@example.com", "", true)

	w, env := api.do(t, http.MethodPost, "/api/admin-operations", adminToken, gin.H{"action": "rename-user"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, env.Error, "Unknown action")

	w, _ = api.do(t, http.MethodPost, "/api/admin-operations", adminToken, gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env = api.do(t, http.MethodPost, "/api/admin-operations", adminToken, gin.H{
		"action":    "create-user",
		"email":     "new@example.com",
		"password":  "secret123",
		"full_name": "New User",
	})
	require.Equal(t, http.StatusCreated, w.Code, env.Error)
	var created service.CreateUserResponse
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.NotEqual(t, uuid.Nil, created.UserID)

	w, _ = api.do(t, http.MethodPost, "/api/admin-operations", adminToken, gin.H{
		"action":    "create-user",
		"email":     "new@example.com",
		"password":  "secret123",
		"full_name": "Again",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	w, _ = api.do(t, http.MethodPost, "/api/admin-operations", adminToken, gin.H{
		"action":   "reset-password",
		"user_id":  created.UserID.String(),
		"password": "changed1",
	})
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = api.do(t, http.MethodPost, "/api/admin-operations", adminToken, gin.H{
		"action":  "delete-user",
		"user_id": adminID.String(),
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = api.do(t, http.MethodPost, "/api/admin-operations", adminToken, gin.H{
		"action":  "delete-user",
		"user_id": created.UserID.String(),
	})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestEntryEndpoints_Workflow(t *testing.T) {
	api := newTestAPI(t)
	_, adminToken := api.addUser(t, "admin@example.com", "", true)
	_, accToken := api.addUser(t, "contab@example.com", "Contabilidade", false)
	_, hrToken := api.addUser(t, "dp@example.com", "Departamento Pessoal", false)

	w, env := api.do(t, http.MethodPost, "/api/companies", adminToken, gin.H{
		"nome":   "Empresa Teste",
		"cnpj":   "11.222.333/0001-81",
		"regime": model.RegimeLucroPresumido,
	})
	require.Equal(t, http.StatusCreated, w.Code, env.Error)
	var company service.CompanyResponse
	require.NoError(t, json.Unmarshal(env.Data, &company))
	assert.Equal(t, "11222333000181", company.CNPJ)

	w, _ = api.do(t, http.MethodPost, "/api/entries", hrToken, gin.H{"company_id": company.ID, "ano": 2025, "trimestre": 1})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, env = api.do(t, http.MethodPost, "/api/entries", accToken, gin.H{"company_id": company.ID, "ano": 2025, "trimestre": 1})
	require.Equal(t, http.StatusCreated, w.Code, env.Error)
	var entry service.EntryResponse
	require.NoError(t, json.Unmarshal(env.Data, &entry))
	assert.Equal(t, model.StatusPendingAccounting, entry.Status)

	w, _ = api.do(t, http.MethodPost, "/api/entries", accToken, gin.H{"company_id": company.ID, "ano": 2025, "trimestre": 1})
	assert.Equal(t, http.StatusConflict, w.Code)

	base := "/api/entries/" + entry.ID.String()

	// advance with no body and no profits
	w, _ = api.do(t, http.MethodPost, base+"/advance", accToken, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w, env = api.do(t, http.MethodPut, base+"/profits", accToken, gin.H{"lucro_mes1": "1000.50", "lucro_mes2": 0, "lucro_mes3": "250"})
	require.Equal(t, http.StatusOK, w.Code, env.Error)
	require.NoError(t, json.Unmarshal(env.Data, &entry))
	assert.Equal(t, "1250.5", entry.Total.String())

	w, _ = api.do(t, http.MethodPost, base+"/advance", hrToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, env = api.do(t, http.MethodPost, base+"/advance", accToken, nil)
	require.Equal(t, http.StatusOK, w.Code, env.Error)
	require.NoError(t, json.Unmarshal(env.Data, &entry))
	assert.Equal(t, model.StatusAccountingDone, entry.Status)

	// stale view of the entry
	w, _ = api.do(t, http.MethodPost, base+"/advance", adminToken, gin.H{"expected_status": model.StatusPendingAccounting})
	assert.Equal(t, http.StatusConflict, w.Code)

	w, _ = api.do(t, http.MethodGet, "/api/entries?ano=2025&status="+model.StatusAccountingDone, accToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = api.do(t, http.MethodGet, "/api/entries?trimestre=abc", accToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = api.do(t, http.MethodGet, "/api/entries/"+uuid.NewString(), accToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, env = api.do(t, http.MethodGet, "/api/statistics?ano=2025&trimestre=1", hrToken, nil)
	require.Equal(t, http.StatusOK, w.Code, env.Error)
	var stats model.StatisticsResponse
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.Equal(t, int64(1), stats.TotalEntries)
	assert.Equal(t, int64(1), stats.ByStatus[model.StatusAccountingDone])
	assert.Equal(t, "1250.5", stats.DeclaredTotal.String())

	w, _ = api.do(t, http.MethodGet, "/api/statistics?trimestre=7", hrToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
