package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Role string

const (
	RoleClient Role = "client"
	RoleTasker Role = "tasker"
	RoleAdmin  Role = "admin"
)

type VerificationLevel string

const (
	LevelBasic    VerificationLevel = "basic"
	LevelStandard VerificationLevel = "standard"
	LevelPremium  VerificationLevel = "premium"
)

type User struct {
	ID    uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name  string    `gorm:"not null" json:"name"`
	Email string    `gorm:"uniqueIndex;not null" json:"email"`
	Phone string    `gorm:"type:varchar(30);index" json:"phone"`

	Password string `gorm:"not null" json:"-"`
	Role     Role   `gorm:"type:varchar(20);not null;index" json:"role"`
	IsActive bool   `gorm:"default:true" json:"is_active"`

	EmailVerified bool `gorm:"default:false" json:"email_verified"`
	PhoneVerified bool `gorm:"default:false" json:"phone_verified"`

	TrustScore int   `gorm:"default:0" json:"trust_score"`
	Balance    int64 `gorm:"default:0" json:"balance"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	DocumentVerifications []DocumentVerification `gorm:"foreignKey:UserID" json:"document_verifications,omitempty"`
}

func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return
}
