package models

import (
	"time"

	"github.com/google/uuid"
)

type AuditEntry struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	ProfileID   uuid.UUID `gorm:"type:uuid;not null;index"`
	ProfileRole string    `gorm:"type:varchar(20);not null"`
	ActorID     uuid.UUID `gorm:"type:uuid;not null"`
	ActorRole   string    `gorm:"type:varchar(20);not null"`
	Action      string    `gorm:"type:varchar(30);not null"`
	Reason      *string   `gorm:"type:text"`
	FromStatus  string    `gorm:"type:varchar(20);not null"`
	ToStatus    string    `gorm:"type:varchar(20);not null"`
	CreatedAt   time.Time `gorm:"not null;index"`
}

func (AuditEntry) TableName() string {
	return "audit_entries"
}
