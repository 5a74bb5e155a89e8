package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Account struct {
	ID              uuid.UUID         `gorm:"type:uuid;primaryKey"`
	Email           string            `gorm:"type:varchar(255);uniqueIndex;not null"`
	PasswordHash    string            `gorm:"type:varchar(255);not null"`
	Role            string            `gorm:"type:varchar(20);not null"`
	EmailVerifiedAt *time.Time        `gorm:"type:timestamp"`
	Metadata        datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (Account) TableName() string {
	return "accounts"
}
