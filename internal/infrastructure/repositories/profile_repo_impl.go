package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"school-onboarding.backend/internal/domain/entities"
	domainerrors "school-onboarding.backend/internal/domain/errors"
	"school-onboarding.backend/internal/infrastructure/models"
	"school-onboarding.backend/pkg/utils"
)

var profileRoles = []entities.Role{entities.RoleStudent, entities.RoleTeacher, entities.RoleAdmin}

// ProfileRepository implements role profile operations over one table per role
type ProfileRepository struct {
	db *gorm.DB
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(db *gorm.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

func tableFor(role entities.Role) (string, error) {
	switch role {
	case entities.RoleStudent:
		return models.StudentProfile{}.TableName(), nil
	case entities.RoleTeacher:
		return models.TeacherProfile{}.TableName(), nil
	case entities.RoleAdmin:
		return models.AdminProfile{}.TableName(), nil
	default:
		return "", fmt.Errorf("%w: %q", domainerrors.ErrUnknownRole, role)
	}
}

// Create inserts a profile into its role table
func (r *ProfileRepository) Create(ctx context.Context, p *entities.Profile) error {
	if p.ID == uuid.Nil {
		p.ID = utils.GenerateUUIDv7()
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = p.CreatedAt
	}

	var row interface{}
	switch p.Role {
	case entities.RoleStudent:
		row = &models.StudentProfile{
			ProfileBase:     baseFromEntity(p),
			ClassLevel:      p.ClassLevel.String,
			GuardianContact: p.GuardianContact.String,
			Subjects:        datatypes.JSONSlice[string](p.Subjects),
			SubjectIndex:    subjectIndex(p.Subjects),
		}
	case entities.RoleTeacher:
		row = &models.TeacherProfile{
			ProfileBase:       baseFromEntity(p),
			SubjectExpertise:  datatypes.JSONSlice[string](p.SubjectExpertise),
			YearsOfExperience: p.YearsOfExperience.Ptr(),
		}
	case entities.RoleAdmin:
		row = &models.AdminProfile{ProfileBase: baseFromEntity(p)}
	default:
		return fmt.Errorf("%w: %q", domainerrors.ErrUnknownRole, p.Role)
	}

	if err := GetDB(ctx, r.db).Create(row).Error; err != nil {
		if isDuplicateKey(err) {
			return domainerrors.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// GetByID looks the id up in every role table
func (r *ProfileRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.Profile, error) {
	for _, role := range profileRoles {
		p, err := r.first(ctx, role, "id = ?", id)
		if errors.Is(err, domainerrors.ErrNotFound) {
			continue
		}
		return p, err
	}
	return nil, domainerrors.ErrNotFound
}

// GetActiveByAccount returns the non-deleted profile of an account in a role
func (r *ProfileRepository) GetActiveByAccount(ctx context.Context, accountID uuid.UUID, role entities.Role) (*entities.Profile, error) {
	return r.first(ctx, role, "account_id = ? AND status <> ?", accountID, string(entities.ProfileStatusDeleted))
}

// ListActiveByAccount returns the non-deleted profiles of an account across roles
func (r *ProfileRepository) ListActiveByAccount(ctx context.Context, accountID uuid.UUID) ([]*entities.Profile, error) {
	var out []*entities.Profile
	for _, role := range profileRoles {
		p, err := r.GetActiveByAccount(ctx, accountID, role)
		if errors.Is(err, domainerrors.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// ListPending lists PENDING profiles oldest first. Subject filtering applies
// to student profiles only. The role tables are merged with UNION ALL so
// ordering and paging happen in the database.
func (r *ProfileRepository) ListPending(ctx context.Context, filter entities.PendingFilter) ([]*entities.Profile, int64, error) {
	roles := filter.Roles
	if len(roles) == 0 {
		roles = []entities.Role{entities.RoleStudent, entities.RoleTeacher}
	}

	parts := make([]string, 0, len(roles))
	var args []interface{}
	for _, role := range roles {
		part, partArgs, err := pendingSelect(role, filter.Subjects)
		if err != nil {
			return nil, 0, err
		}
		parts = append(parts, part)
		args = append(args, partArgs...)
	}
	pending := "(" + strings.Join(parts, " UNION ALL ") + ") pending"

	db := GetDB(ctx, r.db)
	var total int64
	if err := db.Raw("SELECT COUNT(*) FROM "+pending, args...).Scan(&total).Error; err != nil {
		return nil, 0, err
	}

	query := "SELECT id, role FROM " + pending + " ORDER BY created_at ASC, id ASC"
	params := utils.GetPaginationParams(filter.Page, filter.Limit)
	if params.Paged() {
		query += " LIMIT ? OFFSET ?"
		args = append(args, params.Limit, params.CalculateOffset())
	}
	var keys []pendingKey
	if err := db.Raw(query, args...).Scan(&keys).Error; err != nil {
		return nil, 0, err
	}

	items, err := r.loadPage(ctx, keys)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

type pendingKey struct {
	ID   uuid.UUID
	Role string
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// pendingSelect builds one branch of the pending union. Subjects are matched
// literally; LIKE wildcards in them are escaped.
func pendingSelect(role entities.Role, subjects []string) (string, []interface{}, error) {
	table, err := tableFor(role)
	if err != nil {
		return "", nil, err
	}
	query := "SELECT id, created_at, '" + string(role) + "' AS role FROM " + table + " WHERE status = ?"
	args := []interface{}{string(entities.ProfileStatusPending)}
	if role == entities.RoleStudent && len(subjects) > 0 {
		clauses := make([]string, 0, len(subjects))
		for _, s := range subjects {
			clauses = append(clauses, `subject_index LIKE ? ESCAPE '\'`)
			args = append(args, "%,"+likeEscaper.Replace(entities.NormalizeSubject(s))+",%")
		}
		query += " AND (" + strings.Join(clauses, " OR ") + ")"
	}
	return query, args, nil
}

// loadPage fetches full rows for a page of keys and keeps the key order
func (r *ProfileRepository) loadPage(ctx context.Context, keys []pendingKey) ([]*entities.Profile, error) {
	idsByRole := make(map[entities.Role][]uuid.UUID)
	for _, k := range keys {
		role := entities.Role(k.Role)
		idsByRole[role] = append(idsByRole[role], k.ID)
	}

	byID := make(map[uuid.UUID]*entities.Profile, len(keys))
	for role, ids := range idsByRole {
		table, err := tableFor(role)
		if err != nil {
			return nil, err
		}
		rows, err := r.find(GetDB(ctx, r.db).Table(table).Where("id IN ?", ids), role)
		if err != nil {
			return nil, err
		}
		for _, p := range rows {
			byID[p.ID] = p
		}
	}

	out := make([]*entities.Profile, 0, len(keys))
	for _, k := range keys {
		if p, ok := byID[k.ID]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// UpdateStatus is a compare-and-set on status. Zero affected rows on an
// existing record means another writer got there first.
func (r *ProfileRepository) UpdateStatus(ctx context.Context, change entities.StatusChange) (*entities.Profile, error) {
	table, err := tableFor(change.Role)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{
		"status":     string(change.To),
		"updated_at": change.At,
	}
	switch change.To {
	case entities.ProfileStatusApproved:
		updates["approver_id"] = change.ActorID
		updates["approved_at"] = change.At
	case entities.ProfileStatusRejected, entities.ProfileStatusDeleted:
		updates["rejected_by"] = change.ActorID
		updates["rejection_reason"] = change.Reason
		updates["rejected_at"] = change.At
	}

	result := GetDB(ctx, r.db).
		Table(table).
		Where("id = ? AND status = ?", change.ProfileID, string(change.From)).
		Updates(updates)
	if result.Error != nil {
		if isDuplicateKey(result.Error) {
			return nil, domainerrors.ErrAlreadyExists
		}
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		if _, err := r.first(ctx, change.Role, "id = ?", change.ProfileID); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: profile %s is no longer %s", domainerrors.ErrConcurrentModification, change.ProfileID, change.From)
	}
	return r.first(ctx, change.Role, "id = ?", change.ProfileID)
}

func (r *ProfileRepository) first(ctx context.Context, role entities.Role, where string, args ...interface{}) (*entities.Profile, error) {
	table, err := tableFor(role)
	if err != nil {
		return nil, err
	}
	items, err := r.find(GetDB(ctx, r.db).Table(table).Where(where, args...).Limit(1), role)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, domainerrors.ErrNotFound
	}
	return items[0], nil
}

func (r *ProfileRepository) find(query *gorm.DB, role entities.Role) ([]*entities.Profile, error) {
	var out []*entities.Profile
	switch role {
	case entities.RoleStudent:
		var rows []models.StudentProfile
		if err := query.Find(&rows).Error; err != nil {
			return nil, err
		}
		for i := range rows {
			p, err := toProfileEntity(&rows[i].ProfileBase, role)
			if err != nil {
				return nil, err
			}
			p.ClassLevel = null.NewString(rows[i].ClassLevel, rows[i].ClassLevel != "")
			p.GuardianContact = null.NewString(rows[i].GuardianContact, rows[i].GuardianContact != "")
			p.Subjects = []string(rows[i].Subjects)
			out = append(out, p)
		}
	case entities.RoleTeacher:
		var rows []models.TeacherProfile
		if err := query.Find(&rows).Error; err != nil {
			return nil, err
		}
		for i := range rows {
			p, err := toProfileEntity(&rows[i].ProfileBase, role)
			if err != nil {
				return nil, err
			}
			p.SubjectExpertise = []string(rows[i].SubjectExpertise)
			p.YearsOfExperience = null.IntFromPtr(rows[i].YearsOfExperience)
			out = append(out, p)
		}
	case entities.RoleAdmin:
		var rows []models.AdminProfile
		if err := query.Find(&rows).Error; err != nil {
			return nil, err
		}
		for i := range rows {
			p, err := toProfileEntity(&rows[i].ProfileBase, role)
			if err != nil {
				return nil, err
			}
			out = append(out, p)
		}
	default:
		return nil, fmt.Errorf("%w: %q", domainerrors.ErrUnknownRole, role)
	}
	return out, nil
}

func baseFromEntity(p *entities.Profile) models.ProfileBase {
	return models.ProfileBase{
		ID:              p.ID,
		AccountID:       p.AccountID,
		Status:          string(p.Status),
		DisplayName:     p.DisplayName,
		ApproverID:      uuidPtr(p.ApproverID),
		ApprovedAt:      p.ApprovedAt.Ptr(),
		RejectedBy:      uuidPtr(p.RejectedBy),
		RejectionReason: p.RejectionReason.Ptr(),
		RejectedAt:      p.RejectedAt.Ptr(),
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
}

// toProfileEntity is the storage boundary for status values.
func toProfileEntity(m *models.ProfileBase, role entities.Role) (*entities.Profile, error) {
	status, err := entities.ParseProfileStatus(m.Status)
	if err != nil {
		return nil, fmt.Errorf("profile %s: %w", m.ID, err)
	}
	return &entities.Profile{
		ID:              m.ID,
		AccountID:       m.AccountID,
		Role:            role,
		Status:          status,
		DisplayName:     m.DisplayName,
		ApproverID:      uuidString(m.ApproverID),
		ApprovedAt:      null.TimeFromPtr(m.ApprovedAt),
		RejectedBy:      uuidString(m.RejectedBy),
		RejectionReason: null.StringFromPtr(m.RejectionReason),
		RejectedAt:      null.TimeFromPtr(m.RejectedAt),
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}, nil
}

func uuidPtr(s null.String) *uuid.UUID {
	if !s.Valid {
		return nil
	}
	id, err := uuid.Parse(s.String)
	if err != nil {
		return nil
	}
	return &id
}

func uuidString(id *uuid.UUID) null.String {
	if id == nil {
		return null.String{}
	}
	return null.StringFrom(id.String())
}

func subjectIndex(subjects []string) string {
	if len(subjects) == 0 {
		return ""
	}
	normalized := make([]string, 0, len(subjects))
	for _, s := range subjects {
		if n := entities.NormalizeSubject(s); n != "" {
			normalized = append(normalized, n)
		}
	}
	return "," + strings.Join(normalized, ",") + ","
}
