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

	"github.com/google/uuid"
)

// --- DTOs ---

type CreateRoleRequest struct {
	Name string `json:"name" binding:"required"`
	// Authority is optional; when empty it is derived from the name
	Authority string `json:"authority"`
}

type UpdateRoleRequest struct {
	Name      *string `json:"name"`
	Authority *string `json:"authority"`
}

type RoleResponse struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Authority model.Authority `json:"authority"`
	CreatedAt string          `json:"created_at"`
}

// --- Interface ---

// RoleService manages departments and the workflow authority each one holds
type RoleService interface {
	ListRoles(ctx context.Context) ([]RoleResponse, error)
	GetRole(ctx context.Context, id string) (*RoleResponse, error)
	CreateRole(ctx context.Context, actorID uuid.UUID, req CreateRoleRequest) (*RoleResponse, error)
	UpdateRole(ctx context.Context, actorID uuid.UUID, id string, req UpdateRoleRequest) (*RoleResponse, error)
	DeleteRole(ctx context.Context, actorID uuid.UUID, id string) error
	SeedDefaultRoles(ctx context.Context) error
	// BackfillAuthorities derives an authority for every department still
	// configured with none, and returns how many were changed.
	BackfillAuthorities(ctx context.Context) (int, error)
}

type roleService struct {
	roleRepo  repository.RoleRepository
	auditRepo repository.AuditRepository
	txManager repository.TransactionManager
}

func NewRoleService(roleRepo repository.RoleRepository, auditRepo repository.AuditRepository, txManager repository.TransactionManager) RoleService {
	return &roleService{roleRepo: roleRepo, auditRepo: auditRepo, txManager: txManager}
}

var defaultRoles = []model.Role{
	{Name: "Contabilidade", Authority: model.AuthorityAccounting},
	{Name: "Departamento Pessoal", Authority: model.AuthorityHR},
	{Name: "Fiscal", Authority: model.AuthorityFiscal},
}

func mapRoleResponse(r *model.Role) *RoleResponse {
	return &RoleResponse{
		ID:        r.ID.String(),
		Name:      r.Name,
		Authority: r.Authority,
		CreatedAt: r.CreatedAt.Format(time.RFC3339),
	}
}

func parseAuthority(raw string) (model.Authority, error) {
	a := model.Authority(strings.ToLower(strings.TrimSpace(raw)))
	if !a.IsAssignable() {
		return "", fmt.Errorf("%w: authority must be one of accounting, hr, fiscal, none", apperr.ErrValidation)
	}
	return a, nil
}

func (s *roleService) ListRoles(ctx context.Context) ([]RoleResponse, error) {
	roles, err := s.roleRepo.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	res := make([]RoleResponse, 0, len(roles))
	for i := range roles {
		res = append(res, *mapRoleResponse(&roles[i]))
	}
	return res, nil
}

func (s *roleService) GetRole(ctx context.Context, id string) (*RoleResponse, error) {
	role, err := s.findRole(ctx, id)
	if err != nil {
		return nil, err
	}
	return mapRoleResponse(role), nil
}

func (s *roleService) findRole(ctx context.Context, id string) (*model.Role, error) {
	roleID, err := parseID(id, "department id")
	if err != nil {
		return nil, err
	}
	role, err := s.roleRepo.FindByID(ctx, roleID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, fmt.Errorf("%w: department %s", apperr.ErrNotFound, roleID)
		}
		return nil, err
	}
	return role, nil
}

func (s *roleService) CreateRole(ctx context.Context, actorID uuid.UUID, req CreateRoleRequest) (*RoleResponse, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", apperr.ErrValidation)
	}

	authority := workflow.ResolvePermission(name, false)
	if req.Authority != "" {
		var err error
		if authority, err = parseAuthority(req.Authority); err != nil {
			return nil, err
		}
	}

	role := &model.Role{Name: name, Authority: authority}
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.roleRepo.Create(txCtx, role); err != nil {
			if repository.IsUniqueViolation(err) {
				return fmt.Errorf("%w: department %q already exists", apperr.ErrConflict, name)
			}
			return err
		}
		return recordAudit(txCtx, s.auditRepo, actorID, model.ActionCreateDepartment, role.ID.String(), role.Name, map[string]model.Authority{"authority": authority})
	})
	if err != nil {
		return nil, err
	}
	return mapRoleResponse(role), nil
}

func (s *roleService) UpdateRole(ctx context.Context, actorID uuid.UUID, id string, req UpdateRoleRequest) (*RoleResponse, error) {
	role, err := s.findRole(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name cannot be empty", apperr.ErrValidation)
		}
		role.Name = name
	}
	if req.Authority != nil {
		if role.Authority, err = parseAuthority(*req.Authority); err != nil {
			return nil, err
		}
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.roleRepo.Update(txCtx, role); err != nil {
			if repository.IsUniqueViolation(err) {
				return fmt.Errorf("%w: department %q already exists", apperr.ErrConflict, role.Name)
			}
			return err
		}
		return recordAudit(txCtx, s.auditRepo, actorID, model.ActionUpdateDepartment, role.ID.String(), role.Name, req)
	})
	if err != nil {
		return nil, err
	}
	return mapRoleResponse(role), nil
}

func (s *roleService) DeleteRole(ctx context.Context, actorID uuid.UUID, id string) error {
	role, err := s.findRole(ctx, id)
	if err != nil {
		return err
	}

	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		members, err := s.roleRepo.CountMembers(txCtx, role.ID)
		if err != nil {
			return err
		}
		if members > 0 {
			return fmt.Errorf("%w: department %q still has %d member(s)", apperr.ErrConflict, role.Name, members)
		}
		if err := s.roleRepo.Delete(txCtx, role.ID); err != nil {
			if repository.IsForeignKeyViolation(err) {
				return fmt.Errorf("%w: department %q is in use", apperr.ErrConflict, role.Name)
			}
			return err
		}
		return recordAudit(txCtx, s.auditRepo, actorID, model.ActionDeleteDepartment, role.ID.String(), role.Name, nil)
	})
}

// SeedDefaultRoles creates the three stage departments if missing.
// Existing rows are left as they are.
func (s *roleService) SeedDefaultRoles(ctx context.Context) error {
	for _, def := range defaultRoles {
		role := def
		if err := s.roleRepo.FindOrCreate(ctx, &role); err != nil {
			return fmt.Errorf("failed to seed department %q: %w", def.Name, err)
		}
	}
	return nil
}

func (s *roleService) BackfillAuthorities(ctx context.Context) (int, error) {
	roles, err := s.roleRepo.ListAll(ctx)
	if err != nil {
		return 0, err
	}

	changed := 0
	for i := range roles {
		role := &roles[i]
		if role.Authority != "" && role.Authority != model.AuthorityNone {
			continue
		}
		derived := workflow.ResolvePermission(role.Name, false)
		if derived == model.AuthorityNone {
			continue
		}
		role.Authority = derived
		if err := s.roleRepo.Update(ctx, role); err != nil {
			return changed, fmt.Errorf("failed to backfill department %q: %w", role.Name, err)
		}
		changed++
	}
	return changed, nil
}
