// models/gorm_models.go
package models

import (
	"gorm.io/gorm"
)

// GormUser 用户模型
type GormUser struct {
	gorm.Model
	UserID   string                 `gorm:"uniqueIndex;not null"`
	Username string                 `gorm:"not null"`
	Avatar   string                 `gorm:"default:''"`
	Sprites  map[string]interface{} `gorm:"type:jsonb"`
}

// GormSpace 空间（房间几何）模型
type GormSpace struct {
	gorm.Model
	RoomID    string                 `gorm:"uniqueIndex;not null"`
	Name      string                 `gorm:"not null"`
	Width     int                    `gorm:"not null"`
	Height    int                    `gorm:"not null"`
	Obstacles map[string]interface{} `gorm:"type:jsonb"`
}

// GormChatMessage 聊天消息模型；主键即房间内消息序号
type GormChatMessage struct {
	gorm.Model
	RoomID      string `gorm:"index;not null"`
	UserID      string `gorm:"index;not null"`
	DisplayName string `gorm:"not null"`
	Text        string `gorm:"not null"`
}
