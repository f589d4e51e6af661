// internal/model/user.go
package model

// The user directory tables belong to the main application. This service only
// reads them; they are migrated here for local sqlite runs and tests.

type User struct {
	UserID    int64  `gorm:"column:user_id;primaryKey;autoIncrement"`
	Username  string `gorm:"column:username;type:varchar(100)"`
	Email     string `gorm:"column:email;type:varchar(255)"`
	Role      string `gorm:"column:role;type:varchar(20);not null"`
	CollegeID *int64 `gorm:"column:college_id;index"`
}

type CadetProfile struct {
	ProfileID int64  `gorm:"column:profile_id;primaryKey;autoIncrement"`
	UserID    int64  `gorm:"column:user_id;uniqueIndex"`
	FullName  string `gorm:"column:full_name;type:varchar(150)"`
	RankID    *int64 `gorm:"column:rank_id"`
}

type CadetRank struct {
	ID       int64  `gorm:"column:id;primaryKey;autoIncrement"`
	RankName string `gorm:"column:rank_name;type:varchar(100)"`
}

func (User) TableName() string {
	return "users"
}

func (CadetProfile) TableName() string {
	return "cadet_profiles"
}

func (CadetRank) TableName() string {
	return "cadet_ranks"
}
