// persistence/gorm_postgresql.go
package persistence

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/wfunc/boomberg/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// GormPostgreSQL 使用GORM的PostgreSQL实现
type GormPostgreSQL struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormPostgreSQL 创建GORM PostgreSQL数据库连接
func NewGormPostgreSQL(host string, port int, user, password, dbname string) (*GormPostgreSQL, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	// 配置GORM日志
	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold: time.Second,
			LogLevel:      logger.Silent,
			Colorful:      false,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, err
	}

	// 设置连接池
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// 自动迁移表结构
	if err := db.AutoMigrate(
		&models.GormSession{},
		&models.GormGame{},
		&models.GormGameParticipant{},
	); err != nil {
		return nil, err
	}

	return &GormPostgreSQL{db: db, now: time.Now}, nil
}

func toUser(s models.GormSession) *models.User {
	u := &models.User{ID: s.ID, CreatedAt: time.Unix(s.CreatedAt, 0)}
	if s.Name != nil {
		u.Name, u.HasName = *s.Name, true
	}
	return u
}

func toGame(g models.GormGame) models.Game {
	return models.Game{
		ID:        g.ID,
		Ticker:    g.Ticker,
		CreatorID: g.CreatorID,
		Status:    models.GameStatus(g.Status),
		CreatedAt: time.Unix(g.CreatedAt, 0),
	}
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrRecordNotFound
	}
	return err
}

func (p *GormPostgreSQL) SessionByToken(ctx context.Context, token string) (*models.User, error) {
	var s models.GormSession
	if err := p.db.WithContext(ctx).Where("session_id = ?", token).First(&s).Error; err != nil {
		return nil, notFound(err)
	}
	return toUser(s), nil
}

func (p *GormPostgreSQL) CreateSession(ctx context.Context, token string) (*models.User, error) {
	s := models.GormSession{SessionID: token, CreatedAt: p.now().Unix()}
	if err := p.db.WithContext(ctx).Create(&s).Error; err != nil {
		return nil, err
	}
	return toUser(s), nil
}

func (p *GormPostgreSQL) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	var s models.GormSession
	if err := p.db.WithContext(ctx).First(&s, userID).Error; err != nil {
		return nil, notFound(err)
	}
	return toUser(s), nil
}

func (p *GormPostgreSQL) SetUserName(ctx context.Context, userID int64, name string) error {
	res := p.db.WithContext(ctx).Model(&models.GormSession{}).Where("id = ?", userID).Update("name", name)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (p *GormPostgreSQL) ActiveGamesForUser(ctx context.Context, userID int64, since time.Time, limit int) ([]models.Game, error) {
	var rows []models.GormGame
	err := p.db.WithContext(ctx).
		Select("game.*").
		Joins("INNER JOIN game_participant ON game_participant.game_id = game.id").
		Where("game_participant.user_id = ? AND game.status <> ? AND game.created_at > ?",
			userID, string(models.StatusCompleted), since.Unix()).
		Order("game.id").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return convertGames(rows), nil
}

func (p *GormPostgreSQL) ActiveGamesByTicker(ctx context.Context, ticker string, since time.Time) ([]models.Game, error) {
	var rows []models.GormGame
	err := activeByTicker(p.db.WithContext(ctx), ticker, since).Order("id").Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return convertGames(rows), nil
}

func activeByTicker(db *gorm.DB, ticker string, since time.Time) *gorm.DB {
	return db.Where("ticker = ? AND status <> ? AND created_at > ?",
		ticker, string(models.StatusCompleted), since.Unix())
}

func convertGames(rows []models.GormGame) []models.Game {
	games := make([]models.Game, 0, len(rows))
	for _, r := range rows {
		games = append(games, toGame(r))
	}
	return games
}

func (p *GormPostgreSQL) CreateGame(ctx context.Context, creatorID int64, ticker string, since time.Time) (*models.Game, error) {
	var created models.GormGame

	// 使用事务确保数据一致性
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var taken int64
		if err := activeByTicker(tx.Model(&models.GormGame{}), ticker, since).Count(&taken).Error; err != nil {
			return err
		}
		if taken > 0 {
			return ErrTickerTaken
		}

		created = models.GormGame{
			Ticker:    ticker,
			CreatorID: creatorID,
			Status:    string(models.StatusPending),
			CreatedAt: p.now().Unix(),
		}
		if err := tx.Create(&created).Error; err != nil {
			return err
		}
		return tx.Create(&models.GormGameParticipant{
			GameID:   created.ID,
			UserID:   creatorID,
			JoinedAt: created.CreatedAt,
		}).Error
	})
	if err != nil {
		return nil, err
	}

	g := toGame(created)
	return &g, nil
}

func (p *GormPostgreSQL) GetGame(ctx context.Context, gameID int64) (*models.Game, error) {
	var row models.GormGame
	if err := p.db.WithContext(ctx).First(&row, gameID).Error; err != nil {
		return nil, notFound(err)
	}
	g := toGame(row)
	return &g, nil
}

func (p *GormPostgreSQL) SetGameStatus(ctx context.Context, gameID int64, status models.GameStatus) error {
	res := p.db.WithContext(ctx).Model(&models.GormGame{}).Where("id = ?", gameID).Update("status", string(status))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (p *GormPostgreSQL) AddParticipant(ctx context.Context, gameID, userID int64) error {
	return p.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "game_id"}, {Name: "user_id"}},
			DoNothing: true,
		}).
		Create(&models.GormGameParticipant{GameID: gameID, UserID: userID, JoinedAt: p.now().Unix()}).Error
}

func (p *GormPostgreSQL) Participants(ctx context.Context, gameID int64) ([]models.Participant, error) {
	var rows []struct {
		ID   int64
		Name *string
	}
	err := p.db.WithContext(ctx).
		Table("game_participant").
		Select("game_participant.user_id AS id, session.name AS name").
		Joins("INNER JOIN session ON session.id = game_participant.user_id").
		Where("game_participant.game_id = ?", gameID).
		Order("game_participant.id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	users := make([]models.Participant, 0, len(rows))
	for _, r := range rows {
		u := models.Participant{ID: r.ID, Name: models.DefaultName(r.ID)}
		if r.Name != nil && *r.Name != "" {
			u.Name = *r.Name
		}
		users = append(users, u)
	}
	return users, nil
}

// Close 关闭数据库连接
func (p *GormPostgreSQL) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
