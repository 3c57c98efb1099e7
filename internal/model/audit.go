package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ActionCreateEntry   = "CREATE_ENTRY"
	ActionFillProfits   = "FILL_PROFITS"
	ActionAdvanceEntry  = "ADVANCE_ENTRY"
	ActionCreateCompany = "CREATE_COMPANY"
	ActionUpdateCompany = "UPDATE_COMPANY"
	ActionDeleteCompany = "DELETE_COMPANY"
	ActionCreateRegime  = "CREATE_REGIME"
	ActionUpdateRegime  = "UPDATE_REGIME"
	ActionDeleteRegime  = "DELETE_REGIME"

	ActionCreateDepartment = "CREATE_DEPARTMENT"
	ActionUpdateDepartment = "UPDATE_DEPARTMENT"
	ActionDeleteDepartment = "DELETE_DEPARTMENT"
	ActionUpdateUser       = "UPDATE_USER"

	// Provisioning actions
	ActionCreateUser    = "CREATE_USER"
	ActionResetPassword = "RESET_PASSWORD"
	ActionDeleteUser    = "DELETE_USER"
)

// AuditLog tracks Who, What, and When for critical system changes
type AuditLog struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     *uuid.UUID `gorm:"type:uuid;index" json:"user_id"` // nil for bootstrap/system actions
	User       *Profile   `gorm:"foreignKey:UserID;constraint:OnDelete:SET NULL" json:"user"`
	Action     string     `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityID   string     `gorm:"type:varchar(50);index" json:"entity_id"`
	EntityName string     `gorm:"type:varchar(255)" json:"entity_name,omitempty"`
	Details    string     `gorm:"type:text" json:"details"` // serialized JSON payload
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`
}

func (l *AuditLog) BeforeCreate(tx *gorm.DB) error {
	assignID(&l.ID)
	return nil
}
