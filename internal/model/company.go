package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Company is a taxpayer whose quarterly profits are declared
type Company struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name           string    `gorm:"column:nome;type:varchar(255);not null" json:"nome"`
	LegalName      string    `gorm:"column:razao_social;type:varchar(255)" json:"razao_social"`
	CNPJ           string    `gorm:"column:cnpj;type:varchar(14);uniqueIndex;not null" json:"cnpj"` // digits only
	Regime         string    `gorm:"type:varchar(100);not null;index" json:"regime"`                // references regime_period_config.regime
	PeriodOverride *string   `gorm:"column:periodo_tipo;type:varchar(20)" json:"periodo_tipo"`      // nil = use regime default
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (c *Company) BeforeCreate(tx *gorm.DB) error {
	assignID(&c.ID)
	return nil
}
