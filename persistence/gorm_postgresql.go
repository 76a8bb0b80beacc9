// persistence/gorm_postgresql.go
package persistence

import (
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/gautam-divyanshu/2d-metaverse-sub001/models"
)

// GormStore 使用GORM的PostgreSQL实现
type GormStore struct {
	db *gorm.DB
}

// NewGormStore 创建GORM PostgreSQL数据库连接
func NewGormStore(host string, port int, user, password, dbname string) (*GormStore, error) {
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

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// 设置连接池
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// 自动迁移表结构
	if err := autoMigrate(db); err != nil {
		return nil, err
	}

	return &GormStore{db: db}, nil
}

func autoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.GormUser{},
		&models.GormSpace{},
		&models.GormChatMessage{},
	)
}

// AppendChatMessage 插入消息并返回存储分配的序号与时间戳
func (p *GormStore) AppendChatMessage(roomID string, msg models.ChatMessage) (models.ChatMessage, error) {
	record := models.GormChatMessage{
		RoomID:      roomID,
		UserID:      msg.UserID,
		DisplayName: msg.DisplayName,
		Text:        msg.Text,
	}
	if err := p.db.Create(&record).Error; err != nil {
		return models.ChatMessage{}, err
	}

	msg.ID = int64(record.ID)
	msg.RoomID = roomID
	msg.CreatedAt = record.CreatedAt
	return msg, nil
}

// LoadRecentMessages 返回房间最近 limit 条消息，按序号升序
func (p *GormStore) LoadRecentMessages(roomID string, limit int) ([]models.ChatMessage, error) {
	var records []models.GormChatMessage
	err := p.db.Where("room_id = ?", roomID).
		Order("id DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, err
	}

	// 反转为按时间先后排列
	result := make([]models.ChatMessage, len(records))
	for i, r := range records {
		result[len(records)-1-i] = models.ChatMessage{
			ID:          int64(r.ID),
			RoomID:      r.RoomID,
			UserID:      r.UserID,
			DisplayName: r.DisplayName,
			Text:        r.Text,
			CreatedAt:   r.CreatedAt,
		}
	}
	return result, nil
}

// GetSpace 查询房间几何
func (p *GormStore) GetSpace(roomID string) (models.Space, error) {
	var record models.GormSpace
	if err := p.db.Where("room_id = ?", roomID).First(&record).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return models.Space{}, ErrRecordNotFound
		}
		return models.Space{}, err
	}

	return models.Space{
		RoomID:    record.RoomID,
		Name:      record.Name,
		Width:     record.Width,
		Height:    record.Height,
		Obstacles: decodeObstacles(record.Obstacles),
	}, nil
}

// decodeObstacles 解析 jsonb 中的障碍格列表，形如 {"cells": [{"x":1,"y":2}, ...]}
func decodeObstacles(raw map[string]interface{}) []models.Position {
	cells, ok := raw["cells"].([]interface{})
	if !ok {
		return nil
	}
	result := make([]models.Position, 0, len(cells))
	for _, c := range cells {
		cell, ok := c.(map[string]interface{})
		if !ok {
			continue
		}
		x, xok := cell["x"].(float64)
		y, yok := cell["y"].(float64)
		if !xok || !yok {
			continue
		}
		result = append(result, models.Position{X: int(x), Y: int(y)})
	}
	return result
}

// GetUserProfile 查询用户资料
func (p *GormStore) GetUserProfile(userID string) (models.UserProfile, error) {
	var record models.GormUser
	if err := p.db.Where("user_id = ?", userID).First(&record).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return models.UserProfile{}, ErrRecordNotFound
		}
		return models.UserProfile{}, err
	}

	profile := models.UserProfile{
		UserID:   record.UserID,
		Username: record.Username,
		Avatar:   record.Avatar,
	}
	if sprites, ok := record.Sprites["refs"].([]interface{}); ok {
		for _, s := range sprites {
			if ref, ok := s.(string); ok {
				profile.Sprites = append(profile.Sprites, ref)
			}
		}
	}
	return profile, nil
}

// Close 关闭数据库连接
func (p *GormStore) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
