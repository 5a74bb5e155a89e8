package models

import (
	"time"

	"github.com/google/uuid"
)

type EmailVerification struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	AccountID     uuid.UUID `gorm:"type:uuid;not null;index"`
	Token         string    `gorm:"type:varchar(255);not null;uniqueIndex"`
	ExpiresAt     time.Time `gorm:"not null"`
	VerifiedAt    *time.Time
	InvalidatedAt *time.Time
	CreatedAt     time.Time
}

func (EmailVerification) TableName() string {
	return "email_verifications"
}
