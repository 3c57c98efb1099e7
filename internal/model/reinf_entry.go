package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Entry status constants, in workflow order
const (
	StatusPendingAccounting = "pendente_contabil"
	StatusAccountingDone    = "contabil_ok"
	StatusHRApproved        = "dp_aprovado"
	StatusSent              = "enviado"
)

// IsValidStatus reports whether s is one of the four workflow stages
func IsValidStatus(s string) bool {
	switch s {
	case StatusPendingAccounting, StatusAccountingDone, StatusHRApproved, StatusSent:
		return true
	}
	return false
}

// ReinfEntry is one quarterly profit declaration for one company.
// At most one exists per (company, year, quarter).
type ReinfEntry struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CompanyID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_reinf_company_period,priority:1" json:"company_id"`
	Company   *Company  `gorm:"foreignKey:CompanyID;constraint:OnDelete:RESTRICT" json:"company,omitempty"`
	Year      int       `gorm:"column:ano;not null;uniqueIndex:idx_reinf_company_period,priority:2;index" json:"ano"`
	Quarter   int       `gorm:"column:trimestre;not null;uniqueIndex:idx_reinf_company_period,priority:3;index" json:"trimestre"`

	ProfitMonth1 decimal.Decimal `gorm:"column:lucro_mes1;type:decimal(15,2);not null;default:0" json:"lucro_mes1"`
	ProfitMonth2 decimal.Decimal `gorm:"column:lucro_mes2;type:decimal(15,2);not null;default:0" json:"lucro_mes2"`
	ProfitMonth3 decimal.Decimal `gorm:"column:lucro_mes3;type:decimal(15,2);not null;default:0" json:"lucro_mes3"`

	Status string `gorm:"type:varchar(20);not null;default:'pendente_contabil';index" json:"status"`

	// Actor/timestamp per transition, null until the transition happens
	AccountingUserID   *uuid.UUID `gorm:"column:contabil_usuario_id;type:uuid" json:"contabil_usuario_id"`
	AccountingFilledAt *time.Time `gorm:"column:contabil_preenchido_em" json:"contabil_preenchido_em"`
	HRUserID           *uuid.UUID `gorm:"column:dp_usuario_id;type:uuid" json:"dp_usuario_id"`
	HRApprovedAt       *time.Time `gorm:"column:dp_aprovado_em" json:"dp_aprovado_em"`
	FiscalUserID       *uuid.UUID `gorm:"column:fiscal_usuario_id;type:uuid" json:"fiscal_usuario_id"`
	FiscalSentAt       *time.Time `gorm:"column:fiscal_enviado_em" json:"fiscal_enviado_em"`

	CreatedAt time.Time `json:"created_at"`
}

func (ReinfEntry) TableName() string { return "reinf_entries" }

func (e *ReinfEntry) BeforeCreate(tx *gorm.DB) error {
	assignID(&e.ID)
	return nil
}

// Total is the sum of the three monthly profits
func (e *ReinfEntry) Total() decimal.Decimal {
	return e.ProfitMonth1.Add(e.ProfitMonth2).Add(e.ProfitMonth3)
}

// HasProfits reports whether at least one month has a non-zero amount
func (e *ReinfEntry) HasProfits() bool {
	return !e.ProfitMonth1.IsZero() || !e.ProfitMonth2.IsZero() || !e.ProfitMonth3.IsZero()
}
