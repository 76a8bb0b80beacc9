// protocol/events.go
package protocol

import (
	"time"

	"github.com/gautam-divyanshu/2d-metaverse-sub001/models"
)

// RoomJoinedPayload lifecycle/room-joined，仅发给新加入者
type RoomJoinedPayload struct {
	UserID     string               `json:"userId"`
	Spawn      models.Position      `json:"spawn"`
	Username   string               `json:"username"`
	Avatar     string               `json:"avatar"`
	Users      []models.MemberInfo  `json:"users"`
	RoomMeta   RoomMeta             `json:"roomMeta"`
	RecentChat []models.ChatMessage `json:"recentChat,omitempty"`
}

// RoomMeta 房间几何元数据
type RoomMeta struct {
	RoomID string `json:"roomId"`
	Name   string `json:"name"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// UserJoinedPayload lifecycle/user-joined，发给其余成员
type UserJoinedPayload struct {
	UserID   string `json:"userId"`
	X        int    `json:"x"`
	Y        int    `json:"y"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

// UserMovedPayload movement/user-moved，发给除移动者外的所有成员
type UserMovedPayload struct {
	UserID    string `json:"userId"`
	X         int    `json:"x"`
	Y         int    `json:"y"`
	Direction string `json:"direction,omitempty"`
}

// MovementRejectedPayload movement/movement-rejected，仅发回移动者，
// 携带服务器权威位置供客户端回弹
type MovementRejectedPayload struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// ChatMessagePayload chat/chat-message，发给包括发送者在内的所有成员
type ChatMessagePayload struct {
	ID          int64     `json:"id"`
	UserID      string    `json:"userId"`
	DisplayName string    `json:"displayName"`
	Text        string    `json:"text"`
	CreatedAt   time.Time `json:"createdAt"`
}

// UserLeftPayload lifecycle/user-left
type UserLeftPayload struct {
	UserID string `json:"userId"`
}
