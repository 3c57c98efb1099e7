package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Account holds login credentials. Its ID is shared with the Profile.
type Account struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Email        string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"type:varchar(255);not null" json:"-"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (a *Account) BeforeCreate(tx *gorm.DB) error {
	assignID(&a.ID)
	return nil
}

// Profile is the user as seen by the workflow: display data, department and admin flag
type Profile struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"` // = Account.ID
	FullName  string     `gorm:"type:varchar(255);not null" json:"full_name"`
	Email     string     `gorm:"type:varchar(255);index;not null" json:"email"`
	RoleID    *uuid.UUID `gorm:"type:uuid;index" json:"role_id"`
	Role      *Role      `gorm:"foreignKey:RoleID" json:"role,omitempty"`
	IsAdmin   bool       `gorm:"not null;default:false" json:"is_admin"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
