package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PeriodType enum constants
const (
	PeriodQuarterly = "trimestral"
	PeriodMonthly   = "mensal"
)

// Default tax regimes
const (
	RegimeSimplesNacional = "Simples Nacional"
	RegimeLucroPresumido  = "Lucro Presumido"
	RegimeLucroReal       = "Lucro Real"
	RegimeMEI             = "MEI"
)

// RegimePeriodConfig stores the default reporting period for a tax regime
type RegimePeriodConfig struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Regime     string    `gorm:"type:varchar(100);uniqueIndex;not null" json:"regime"`
	PeriodType string    `gorm:"column:periodo_tipo;type:varchar(20);not null;default:'trimestral'" json:"periodo_tipo"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	// Companies is never loaded. It declares the companies.regime foreign key
	// that keeps a regime in use from being deleted or renamed.
	Companies []Company `gorm:"foreignKey:Regime;references:Regime;constraint:OnUpdate:RESTRICT,OnDelete:RESTRICT" json:"-"`
}

func (RegimePeriodConfig) TableName() string { return "regime_period_config" }

func (r *RegimePeriodConfig) BeforeCreate(tx *gorm.DB) error {
	assignID(&r.ID)
	return nil
}

// IsValidPeriodType reports whether p is a known period granularity
func IsValidPeriodType(p string) bool {
	return p == PeriodQuarterly || p == PeriodMonthly
}
