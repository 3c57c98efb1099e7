package service

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"reinf/internal/apperr"
	"reinf/internal/auth"
	"reinf/internal/model"
	"reinf/internal/repository"
	"reinf/internal/workflow"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 6

// overridden in tests
var passwordCost = bcrypt.DefaultCost

// --- DTOs ---

type LoginUserRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type TokenResponse struct {
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expires_at"`
	User      *UserResponse `json:"user"`
}

// CreateUserRequest is the create-user administrative operation
type CreateUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	RoleID   string `json:"role_id"`
}

type CreateUserResponse struct {
	UserID uuid.UUID `json:"user_id"`
}

type ResetPasswordRequest struct {
	UserID   string `json:"user_id"`
	Password string `json:"password"`
}

type DeleteUserRequest struct {
	UserID string `json:"user_id"`
}

// UpdateUserRequest uses pointers so absent fields are left untouched.
// An empty role_id detaches the user from its department.
type UpdateUserRequest struct {
	FullName *string `json:"full_name"`
	RoleID   *string `json:"role_id"`
	IsAdmin  *bool   `json:"is_admin"`
}

type DepartmentSummary struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// UserResponse is a profile as exposed by the API, never the credentials
type UserResponse struct {
	ID         uuid.UUID          `json:"id"`
	Email      string             `json:"email"`
	FullName   string             `json:"full_name"`
	IsAdmin    bool               `json:"is_admin"`
	Department *DepartmentSummary `json:"department"`
	Authority  model.Authority    `json:"authority"`
	CreatedAt  string             `json:"created_at"`
	UpdatedAt  string             `json:"updated_at"`
}

// --- Interface ---

type UserService interface {
	Login(ctx context.Context, req LoginUserRequest) (*TokenResponse, error)
	Me(ctx context.Context, userID uuid.UUID) (*UserResponse, error)
	IsAdmin(ctx context.Context, userID uuid.UUID) (bool, error)
	ListUsers(ctx context.Context, page, limit int) ([]UserResponse, int64, error)
	UpdateUser(ctx context.Context, callerID uuid.UUID, id string, req UpdateUserRequest) (*UserResponse, error)

	CreateUser(ctx context.Context, callerID uuid.UUID, req CreateUserRequest) (*CreateUserResponse, error)
	ResetPassword(ctx context.Context, callerID uuid.UUID, req ResetPasswordRequest) error
	DeleteUser(ctx context.Context, callerID uuid.UUID, req DeleteUserRequest) error

	// EnsureAdmin creates the administrator if no account uses email yet.
	// created is false when it already existed.
	EnsureAdmin(ctx context.Context, email, password, fullName string) (id uuid.UUID, created bool, err error)
}

// --- Implementation ---

type userService struct {
	userRepo  repository.UserRepository
	roleRepo  repository.RoleRepository
	auditRepo repository.AuditRepository
	txManager repository.TransactionManager
	tokens    *auth.TokenIssuer
}

func NewUserService(
	userRepo repository.UserRepository,
	roleRepo repository.RoleRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	tokens *auth.TokenIssuer,
) UserService {
	return &userService{
		userRepo:  userRepo,
		roleRepo:  roleRepo,
		auditRepo: auditRepo,
		txManager: txManager,
		tokens:    tokens,
	}
}

func mapToUserResponse(p *model.Profile) *UserResponse {
	res := &UserResponse{
		ID:        p.ID,
		Email:     p.Email,
		FullName:  p.FullName,
		IsAdmin:   p.IsAdmin,
		Authority: profileAuthority(p),
		CreatedAt: p.CreatedAt.Format(time.RFC3339),
		UpdatedAt: p.UpdatedAt.Format(time.RFC3339),
	}
	if p.Role != nil {
		res.Department = &DepartmentSummary{ID: p.Role.ID, Name: p.Role.Name}
	}
	return res
}

func profileAuthority(p *model.Profile) model.Authority {
	var configured model.Authority
	if p.Role != nil {
		configured = p.Role.Authority
	}
	return workflow.EffectiveAuthority(configured, p.IsAdmin)
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", fmt.Errorf("%w: email is required", apperr.ErrValidation)
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return "", fmt.Errorf("%w: invalid email format", apperr.ErrValidation)
	}
	return email, nil
}

func hashPassword(password string) (string, error) {
	if len(password) < minPasswordLength {
		return "", fmt.Errorf("%w: password must be at least %d characters", apperr.ErrValidation, minPasswordLength)
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), passwordCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

func parseID(raw, field string) (uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return uuid.Nil, fmt.Errorf("%w: %s is required", apperr.ErrValidation, field)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid %s", apperr.ErrValidation, field)
	}
	return id, nil
}

// requireAdmin re-reads the caller's profile; the token's admin claim is not trusted
func (s *userService) requireAdmin(ctx context.Context, callerID uuid.UUID) error {
	caller, err := s.userRepo.GetProfile(ctx, callerID)
	if err != nil {
		if repository.IsNotFound(err) {
			return fmt.Errorf("%w: unknown caller", apperr.ErrUnauthenticated)
		}
		return err
	}
	if !caller.IsAdmin {
		return fmt.Errorf("%w: administrator only", apperr.ErrForbidden)
	}
	return nil
}

func (s *userService) resolveRole(ctx context.Context, raw string) (*uuid.UUID, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	roleID, err := parseID(raw, "role_id")
	if err != nil {
		return nil, err
	}
	if _, err := s.roleRepo.FindByID(ctx, roleID); err != nil {
		if repository.IsNotFound(err) {
			return nil, fmt.Errorf("%w: department %s does not exist", apperr.ErrValidation, roleID)
		}
		return nil, err
	}
	return &roleID, nil
}

// --- Session ---

func (s *userService) Login(ctx context.Context, req LoginUserRequest) (*TokenResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	account, err := s.userRepo.GetAccountByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid email or password", apperr.ErrUnauthenticated)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(req.Password)); err != nil {
		return nil, fmt.Errorf("%w: invalid email or password", apperr.ErrUnauthenticated)
	}

	profile, err := s.userRepo.GetProfile(ctx, account.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: account has no profile", apperr.ErrUnauthenticated)
	}

	token, expiresAt, err := s.tokens.Issue(account.ID, profile.IsAdmin)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	return &TokenResponse{Token: token, ExpiresAt: expiresAt, User: mapToUserResponse(profile)}, nil
}

func (s *userService) Me(ctx context.Context, userID uuid.UUID) (*UserResponse, error) {
	profile, err := s.userRepo.GetProfile(ctx, userID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, fmt.Errorf("%w: user %s", apperr.ErrNotFound, userID)
		}
		return nil, err
	}
	return mapToUserResponse(profile), nil
}

func (s *userService) IsAdmin(ctx context.Context, userID uuid.UUID) (bool, error) {
	profile, err := s.userRepo.GetProfile(ctx, userID)
	if err != nil {
		return false, err
	}
	return profile.IsAdmin, nil
}

// --- Management ---

func (s *userService) ListUsers(ctx context.Context, page, limit int) ([]UserResponse, int64, error) {
	profiles, total, err := s.userRepo.ListProfiles(ctx, page, limit)
	if err != nil {
		return nil, 0, err
	}

	responses := make([]UserResponse, 0, len(profiles))
	for i := range profiles {
		responses = append(responses, *mapToUserResponse(&profiles[i]))
	}
	return responses, total, nil
}

func (s *userService) UpdateUser(ctx context.Context, callerID uuid.UUID, id string, req UpdateUserRequest) (*UserResponse, error) {
	userID, err := parseID(id, "user id")
	if err != nil {
		return nil, err
	}

	profile, err := s.userRepo.GetProfile(ctx, userID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, fmt.Errorf("%w: user %s", apperr.ErrNotFound, userID)
		}
		return nil, err
	}

	if req.FullName != nil {
		name := strings.TrimSpace(*req.FullName)
		if name == "" {
			return nil, fmt.Errorf("%w: full_name cannot be empty", apperr.ErrValidation)
		}
		profile.FullName = name
	}
	if req.RoleID != nil {
		roleID, err := s.resolveRole(ctx, *req.RoleID)
		if err != nil {
			return nil, err
		}
		profile.RoleID = roleID
	}
	if req.IsAdmin != nil {
		if userID == callerID && !*req.IsAdmin {
			return nil, fmt.Errorf("%w: you cannot revoke your own administrator flag", apperr.ErrValidation)
		}
		profile.IsAdmin = *req.IsAdmin
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.userRepo.UpdateProfile(txCtx, profile); err != nil {
			return err
		}
		return recordAudit(txCtx, s.auditRepo, callerID, model.ActionUpdateUser, userID.String(), profile.Email, req)
	})
	if err != nil {
		return nil, err
	}

	return s.Me(ctx, userID)
}

// --- Provisioning ---

// CreateUser writes the account and its profile in one transaction, so a
// failure on either side leaves nothing behind.
func (s *userService) CreateUser(ctx context.Context, callerID uuid.UUID, req CreateUserRequest) (*CreateUserResponse, error) {
	if err := s.requireAdmin(ctx, callerID); err != nil {
		return nil, err
	}

	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, err
	}
	fullName := strings.TrimSpace(req.FullName)
	if fullName == "" {
		return nil, fmt.Errorf("%w: full_name is required", apperr.ErrValidation)
	}
	hashed, err := hashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	roleID, err := s.resolveRole(ctx, req.RoleID)
	if err != nil {
		return nil, err
	}

	account := &model.Account{Email: email, PasswordHash: hashed}
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.userRepo.CreateAccount(txCtx, account); err != nil {
			if repository.IsUniqueViolation(err) {
				return fmt.Errorf("%w: email %s is already registered", apperr.ErrConflict, email)
			}
			return fmt.Errorf("failed to create account: %w", err)
		}

		profile := &model.Profile{
			ID:       account.ID,
			FullName: fullName,
			Email:    email,
			RoleID:   roleID,
		}
		if err := s.userRepo.CreateProfile(txCtx, profile); err != nil {
			return fmt.Errorf("failed to create profile: %w", err)
		}

		return recordAudit(txCtx, s.auditRepo, callerID, model.ActionCreateUser, account.ID.String(), email, map[string]interface{}{
			"full_name": fullName,
			"role_id":   roleID,
		})
	})
	if err != nil {
		return nil, err
	}

	return &CreateUserResponse{UserID: account.ID}, nil
}

func (s *userService) ResetPassword(ctx context.Context, callerID uuid.UUID, req ResetPasswordRequest) error {
	if err := s.requireAdmin(ctx, callerID); err != nil {
		return err
	}

	userID, err := parseID(req.UserID, "user_id")
	if err != nil {
		return err
	}
	hashed, err := hashPassword(req.Password)
	if err != nil {
		return err
	}

	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.userRepo.UpdatePassword(txCtx, userID, hashed); err != nil {
			if repository.IsNotFound(err) {
				return fmt.Errorf("%w: user %s", apperr.ErrNotFound, userID)
			}
			return fmt.Errorf("failed to update password: %w", err)
		}
		return recordAudit(txCtx, s.auditRepo, callerID, model.ActionResetPassword, userID.String(), "", nil)
	})
}

// DeleteUser removes the profile and the account together. Entry stamps
// keep the deleted id as a historical reference.
func (s *userService) DeleteUser(ctx context.Context, callerID uuid.UUID, req DeleteUserRequest) error {
	if err := s.requireAdmin(ctx, callerID); err != nil {
		return err
	}

	userID, err := parseID(req.UserID, "user_id")
	if err != nil {
		return err
	}
	if userID == callerID {
		return apperr.ErrSelfDeletion
	}

	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		account, err := s.userRepo.GetAccountByID(txCtx, userID)
		if err != nil {
			if repository.IsNotFound(err) {
				return fmt.Errorf("%w: user %s", apperr.ErrNotFound, userID)
			}
			return err
		}
		if err := s.userRepo.Delete(txCtx, userID); err != nil {
			return fmt.Errorf("failed to delete user: %w", err)
		}
		return recordAudit(txCtx, s.auditRepo, callerID, model.ActionDeleteUser, userID.String(), account.Email, nil)
	})
}

// --- Bootstrap ---

func (s *userService) EnsureAdmin(ctx context.Context, email, password, fullName string) (uuid.UUID, bool, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return uuid.Nil, false, err
	}
	if strings.TrimSpace(fullName) == "" {
		fullName = "Administrator"
	}

	existing, err := s.userRepo.GetAccountByEmail(ctx, email)
	if err == nil {
		return existing.ID, false, s.promote(ctx, existing, fullName)
	}
	if !repository.IsNotFound(err) {
		return uuid.Nil, false, err
	}

	hashed, err := hashPassword(password)
	if err != nil {
		return uuid.Nil, false, err
	}

	account := &model.Account{Email: email, PasswordHash: hashed}
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.userRepo.CreateAccount(txCtx, account); err != nil {
			return fmt.Errorf("failed to create account: %w", err)
		}
		profile := &model.Profile{ID: account.ID, FullName: fullName, Email: email, IsAdmin: true}
		if err := s.userRepo.CreateProfile(txCtx, profile); err != nil {
			return fmt.Errorf("failed to create profile: %w", err)
		}
		return recordAudit(txCtx, s.auditRepo, uuid.Nil, model.ActionCreateUser, account.ID.String(), email, map[string]bool{"is_admin": true})
	})
	if err != nil {
		return uuid.Nil, false, err
	}
	return account.ID, true, nil
}

// promote makes sure an existing account has an administrator profile
func (s *userService) promote(ctx context.Context, account *model.Account, fullName string) error {
	profile, err := s.userRepo.GetProfile(ctx, account.ID)
	if err != nil {
		if !repository.IsNotFound(err) {
			return err
		}
		return s.userRepo.CreateProfile(ctx, &model.Profile{ID: account.ID, FullName: fullName, Email: account.Email, IsAdmin: true})
	}
	if profile.IsAdmin {
		return nil
	}
	profile.IsAdmin = true
	return s.userRepo.UpdateProfile(ctx, profile)
}
