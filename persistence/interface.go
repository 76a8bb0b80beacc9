// persistence/interface.go
package persistence

import (
	"fmt"

	"github.com/gautam-divyanshu/2d-metaverse-sub001/models"
)

// Store 持久层接口：聊天消息、空间几何与用户资料
type Store interface {
	AppendChatMessage(roomID string, msg models.ChatMessage) (models.ChatMessage, error)
	LoadRecentMessages(roomID string, limit int) ([]models.ChatMessage, error)
	GetSpace(roomID string) (models.Space, error)
	GetUserProfile(userID string) (models.UserProfile, error)
	Close() error
}

// 错误定义
var (
	ErrRecordNotFound = fmt.Errorf("record not found")
)
