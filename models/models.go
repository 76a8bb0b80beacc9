// models/models.go
package models

import (
	"time"
)

// Position 网格坐标
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Space 房间几何信息（宽高与障碍物），来自地图存储
type Space struct {
	RoomID    string     `json:"room_id"`
	Name      string     `json:"name"`
	Width     int        `json:"width"`
	Height    int        `json:"height"`
	Obstacles []Position `json:"obstacles"`
}

// InBounds 判断坐标是否落在空间范围内
func (s Space) InBounds(p Position) bool {
	return p.X >= 0 && p.Y >= 0 && p.X < s.Width && p.Y < s.Height
}

// Obstructed 判断坐标是否为障碍格
func (s Space) Obstructed(p Position) bool {
	for _, o := range s.Obstacles {
		if o == p {
			return true
		}
	}
	return false
}

// UserProfile 用户资料，join 成功后解析
type UserProfile struct {
	UserID   string   `json:"user_id"`
	Username string   `json:"username"`
	Avatar   string   `json:"avatar"`
	Sprites  []string `json:"sprites,omitempty"`
}

// ChatMessage 聊天消息，ID 与 CreatedAt 由持久化存储分配
type ChatMessage struct {
	ID          int64     `json:"id"`
	RoomID      string    `json:"room_id"`
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name"`
	Text        string    `json:"text"`
	CreatedAt   time.Time `json:"created_at"`
}

// MemberInfo 房间成员快照（join 应答中的 users 列表）
type MemberInfo struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
	X        int    `json:"x"`
	Y        int    `json:"y"`
}
