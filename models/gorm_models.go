// models/gorm_models.go
package models

// GormSession 会话模型
type GormSession struct {
	ID        int64   `gorm:"primaryKey"`
	SessionID string  `gorm:"uniqueIndex;not null"`
	Name      *string `gorm:"size:32"`
	CreatedAt int64   `gorm:"not null;autoCreateTime"`
}

func (GormSession) TableName() string { return "session" }

// GormGame 游戏模型
type GormGame struct {
	ID        int64  `gorm:"primaryKey"`
	Ticker    string `gorm:"index;not null"`
	CreatorID int64  `gorm:"not null"`
	Status    string `gorm:"not null;default:pending;check:status IN ('pending','in_progress','completed')"`
	CreatedAt int64  `gorm:"index;not null;autoCreateTime"`
}

func (GormGame) TableName() string { return "game" }

// GormGameParticipant 参与者模型
type GormGameParticipant struct {
	ID       int64 `gorm:"primaryKey"`
	GameID   int64 `gorm:"not null;uniqueIndex:idx_game_user"`
	UserID   int64 `gorm:"not null;uniqueIndex:idx_game_user;index"`
	JoinedAt int64 `gorm:"not null;autoCreateTime"`
}

func (GormGameParticipant) TableName() string { return "game_participant" }
