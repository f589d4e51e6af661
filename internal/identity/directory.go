package identity

import (
	"context"

	"gorm.io/gorm"

	"cadet-chat-service/internal/domain"
)

// UserRecord is a user as seen by the external profile directory.
type UserRecord struct {
	UserID   int64  `json:"user_id"`
	ScopeID  *int64 `json:"college_id"`
	Role     string `json:"role"`
	RankName string `json:"rank_name"`
	FullName string `json:"full_name"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

func (u UserRecord) DisplayName() string {
	return domain.DisplayName(u.UserID, u.FullName, u.Username, u.Email)
}

// ChatRole maps the record to a chat role.
func (u UserRecord) ChatRole() (domain.ChatRole, bool) {
	return domain.ResolveChatRole(u.Role, u.RankName)
}

// Directory looks users up in the profile store. FindUser returns
// ErrUserNotFound for unknown ids.
type Directory interface {
	FindUser(ctx context.Context, userID int64) (*UserRecord, error)
	FindUsers(ctx context.Context, userIDs []int64) ([]UserRecord, error)
	// ListScope returns every user in scope except excludeID. A nil scope lists all users.
	ListScope(ctx context.Context, scopeID *int64, excludeID int64) ([]UserRecord, error)
}

type dbDirectory struct {
	db *gorm.DB
}

// NewDBDirectory reads users, cadet_profiles and cadet_ranks from the shared database.
func NewDBDirectory(db *gorm.DB) Directory {
	return &dbDirectory{db: db}
}

const directorySelect = `u.user_id, u.college_id AS scope_id, u.role, COALESCE(cr.rank_name, '') AS rank_name,
	COALESCE(cp.full_name, '') AS full_name, COALESCE(u.username, '') AS username, COALESCE(u.email, '') AS email`

func (d *dbDirectory) base(ctx context.Context) *gorm.DB {
	return d.db.WithContext(ctx).
		Table("users AS u").
		Joins("LEFT JOIN cadet_profiles cp ON cp.user_id = u.user_id").
		Joins("LEFT JOIN cadet_ranks cr ON cr.id = cp.rank_id").
		Select(directorySelect)
}

func (d *dbDirectory) FindUser(ctx context.Context, userID int64) (*UserRecord, error) {
	var rows []UserRecord
	if err := d.base(ctx).Where("u.user_id = ?", userID).Limit(1).Scan(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrUserNotFound
	}
	return &rows[0], nil
}

func (d *dbDirectory) FindUsers(ctx context.Context, userIDs []int64) ([]UserRecord, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	var rows []UserRecord
	err := d.base(ctx).Where("u.user_id IN ?", userIDs).Scan(&rows).Error
	return rows, err
}

func (d *dbDirectory) ListScope(ctx context.Context, scopeID *int64, excludeID int64) ([]UserRecord, error) {
	query := d.base(ctx).Where("u.user_id <> ?", excludeID)
	if scopeID != nil {
		query = query.Where("u.college_id = ?", *scopeID)
	}
	var rows []UserRecord
	err := query.Order("u.user_id ASC").Scan(&rows).Error
	return rows, err
}
