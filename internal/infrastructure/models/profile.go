package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// ProfileBase holds the columns shared by every role table.
type ProfileBase struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey"`
	AccountID       uuid.UUID  `gorm:"type:uuid;not null;index"`
	Status          string     `gorm:"type:varchar(20);not null;index"`
	DisplayName     string     `gorm:"type:varchar(255);not null"`
	ApproverID      *uuid.UUID `gorm:"type:uuid"`
	ApprovedAt      *time.Time
	RejectedBy      *uuid.UUID `gorm:"type:uuid"`
	RejectionReason *string    `gorm:"type:text"`
	RejectedAt      *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type StudentProfile struct {
	ProfileBase
	ClassLevel      string                      `gorm:"type:varchar(50);not null"`
	GuardianContact string                      `gorm:"type:varchar(255);not null"`
	Subjects        datatypes.JSONSlice[string] `gorm:"type:jsonb"`
	// SubjectIndex is ",physics,biology," for portable LIKE filtering.
	SubjectIndex string `gorm:"type:text;not null;default:''"`
}

func (StudentProfile) TableName() string {
	return "student_profiles"
}

type TeacherProfile struct {
	ProfileBase
	SubjectExpertise  datatypes.JSONSlice[string] `gorm:"type:jsonb"`
	YearsOfExperience *int
}

func (TeacherProfile) TableName() string {
	return "teacher_profiles"
}

type AdminProfile struct {
	ProfileBase
}

func (AdminProfile) TableName() string {
	return "admin_profiles"
}
