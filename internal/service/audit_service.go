package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"reinf/internal/model"
	"reinf/internal/repository"

	"github.com/google/uuid"
)

type AuditLogResponse struct {
	ID         string `json:"id"`
	UserID     string `json:"user_id"`
	Username   string `json:"username"`
	Action     string `json:"action"`
	EntityID   string `json:"entity_id"`
	EntityName string `json:"entity_name"`
	Details    string `json:"details"`
	CreatedAt  string `json:"created_at"`
}

// AuditQuery filters the trail by action, entity or acting user
type AuditQuery struct {
	Action   string
	EntityID string
	UserID   string
}

type AuditService interface {
	GetAuditLogs(ctx context.Context, query AuditQuery, page, limit int) ([]AuditLogResponse, int64, error)
}

type auditService struct {
	auditRepo repository.AuditRepository
}

// NewAuditService creates a new AuditService instance
func NewAuditService(auditRepo repository.AuditRepository) AuditService {
	return &auditService{auditRepo: auditRepo}
}

// GetAuditLogs returns one page of the trail, newest first, with the acting user's name
func (s *auditService) GetAuditLogs(ctx context.Context, query AuditQuery, page, limit int) ([]AuditLogResponse, int64, error) {
	filter := repository.AuditFilter{
		Action:   strings.ToUpper(strings.TrimSpace(query.Action)),
		EntityID: strings.TrimSpace(query.EntityID),
	}
	if strings.TrimSpace(query.UserID) != "" {
		userID, err := parseID(query.UserID, "user_id")
		if err != nil {
			return nil, 0, err
		}
		filter.UserID = &userID
	}

	logs, total, err := s.auditRepo.List(ctx, filter, page, limit)
	if err != nil {
		return nil, 0, err
	}

	res := make([]AuditLogResponse, 0, len(logs))
	for _, l := range logs {
		username := "System"
		userID := ""
		if l.User != nil {
			username = l.User.FullName
		}
		if l.UserID != nil {
			userID = l.UserID.String()
		}

		res = append(res, AuditLogResponse{
			ID:         l.ID.String(),
			UserID:     userID,
			Username:   username,
			Action:     l.Action,
			EntityID:   l.EntityID,
			EntityName: l.EntityName,
			Details:    l.Details,
			CreatedAt:  l.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}

	return res, total, nil
}

// recordAudit appends one audit row. Call it with the transaction context so
// the row commits or rolls back together with the change it describes.
func recordAudit(ctx context.Context, repo repository.AuditRepository, actorID uuid.UUID, action, entityID, entityName string, details interface{}) error {
	payload := ""
	if details != nil {
		b, err := json.Marshal(details)
		if err != nil {
			return fmt.Errorf("failed to encode audit details: %w", err)
		}
		payload = string(b)
	}

	var userID *uuid.UUID
	if actorID != uuid.Nil {
		userID = &actorID
	}

	return repo.Log(ctx, &model.AuditLog{
		UserID:     userID,
		Action:     action,
		EntityID:   entityID,
		EntityName: entityName,
		Details:    payload,
	})
}
