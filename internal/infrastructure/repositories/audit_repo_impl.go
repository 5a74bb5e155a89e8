package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
	"gorm.io/gorm"
	"school-onboarding.backend/internal/domain/entities"
	"school-onboarding.backend/internal/infrastructure/models"
	"school-onboarding.backend/pkg/utils"
)

// AuditRepository implements the append-only audit log
type AuditRepository struct {
	db *gorm.DB
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Append records one committed transition
func (r *AuditRepository) Append(ctx context.Context, entry *entities.AuditEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = utils.GenerateUUIDv7()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	m := &models.AuditEntry{
		ID:          entry.ID,
		ProfileID:   entry.ProfileID,
		ProfileRole: string(entry.ProfileRole),
		ActorID:     entry.ActorID,
		ActorRole:   string(entry.ActorRole),
		Action:      string(entry.Action),
		Reason:      entry.Reason.Ptr(),
		FromStatus:  string(entry.FromStatus),
		ToStatus:    string(entry.ToStatus),
		CreatedAt:   entry.CreatedAt,
	}
	return GetDB(ctx, r.db).Create(m).Error
}

// ListByProfile returns a profile's history oldest first
func (r *AuditRepository) ListByProfile(ctx context.Context, profileID uuid.UUID) ([]*entities.AuditEntry, error) {
	var rows []models.AuditEntry
	err := GetDB(ctx, r.db).
		Where("profile_id = ?", profileID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	entries := make([]*entities.AuditEntry, 0, len(rows))
	for i := range rows {
		e, err := toAuditEntity(&rows[i])
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func toAuditEntity(m *models.AuditEntry) (*entities.AuditEntry, error) {
	from, err := entities.ParseProfileStatus(m.FromStatus)
	if err != nil {
		return nil, fmt.Errorf("audit entry %s: %w", m.ID, err)
	}
	to, err := entities.ParseProfileStatus(m.ToStatus)
	if err != nil {
		return nil, fmt.Errorf("audit entry %s: %w", m.ID, err)
	}
	return &entities.AuditEntry{
		ID:          m.ID,
		ProfileID:   m.ProfileID,
		ProfileRole: entities.Role(m.ProfileRole),
		ActorID:     m.ActorID,
		ActorRole:   entities.Role(m.ActorRole),
		Action:      entities.AuditAction(m.Action),
		Reason:      null.StringFromPtr(m.Reason),
		FromStatus:  from,
		ToStatus:    to,
		CreatedAt:   m.CreatedAt,
	}, nil
}
