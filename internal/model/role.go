package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Authority is the workflow stage a department may act on
type Authority string

const (
	AuthorityAll        Authority = "all"
	AuthorityAccounting Authority = "accounting"
	AuthorityHR         Authority = "hr"
	AuthorityFiscal     Authority = "fiscal"
	AuthorityNone       Authority = "none"
)

// IsAssignable reports whether a department may be configured with a.
// "all" is reserved for administrators.
func (a Authority) IsAssignable() bool {
	switch a {
	case AuthorityAccounting, AuthorityHR, AuthorityFiscal, AuthorityNone:
		return true
	}
	return false
}

// Role is a department. Its Authority is configured explicitly and decides
// which workflow stage its members may advance.
type Role struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(100);uniqueIndex;not null" json:"name"`
	Authority Authority `gorm:"type:varchar(20);not null;default:'none'" json:"authority"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (r *Role) BeforeCreate(tx *gorm.DB) error {
	assignID(&r.ID)
	return nil
}
