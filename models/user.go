package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role is the coarse authorization level of a user.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Profile is the identity projection the API reads for display and mail.
// PasswordHash is only set for accounts created through local sign-up.
type Profile struct {
	ID           string    `gorm:"primaryKey;column:id;type:varchar(36)" json:"id"`
	UserID       string    `gorm:"column:user_id;type:varchar(36);uniqueIndex;not null" json:"user_id"`
	Email        string    `gorm:"column:email;uniqueIndex;not null" json:"email"`
	FullName     *string   `gorm:"column:full_name" json:"full_name"`
	PasswordHash string    `gorm:"column:password_hash" json:"-"`
	CreatedAt    time.Time `gorm:"column:created_at" json:"created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at" json:"updated_at"`
}

// UserRole assigns a Role to a user id.
type UserRole struct {
	ID        string    `gorm:"primaryKey;column:id;type:varchar(36)" json:"id"`
	UserID    string    `gorm:"column:user_id;type:varchar(36);index;not null" json:"user_id"`
	Role      Role      `gorm:"column:role;not null" json:"role"`
	CreatedAt time.Time `gorm:"column:created_at" json:"created_at"`
}

// TableName overrides
func (Profile) TableName() string {
	return "profiles"
}

func (UserRole) TableName() string {
	return "user_roles"
}

func (p *Profile) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.UserID == "" {
		p.UserID = uuid.NewString()
	}
	return nil
}

func (r *UserRole) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}

// DisplayName returns the full name, falling back to the email address.
func (p Profile) DisplayName() string {
	if p.FullName != nil && *p.FullName != "" {
		return *p.FullName
	}
	return p.Email
}

// AllModels lists every table owned by the API, in migration order.
func AllModels() []any {
	return []any{
		&Profile{},
		&UserRole{},
		&FormType{},
		&CustomField{},
		&Application{},
	}
}
