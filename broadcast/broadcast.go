// broadcast/broadcast.go
package broadcast

import (
	"errors"

	"github.com/gautam-divyanshu/2d-metaverse-sub001/protocol"
	"github.com/gautam-divyanshu/2d-metaverse-sub001/room"
	"github.com/gautam-divyanshu/2d-metaverse-sub001/session"
)

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrUserNotFound = errors.New("user not found in room")
)

// 广播接口
type Broadcaster interface {
	BroadcastToRoom(roomID string, env *protocol.Envelope, excludeUserID string) error
	SendToUser(roomID, userID string, env *protocol.Envelope) error
}

// RoomBroadcaster 基于房间注册表的广播器。发送是尽力而为的入队：
// 单个对端的慢速或失败不会影响其余成员收到事件。
type RoomBroadcaster struct {
	registry       *room.Registry
	sessionManager *session.Manager
}

func NewRoomBroadcaster(registry *room.Registry, sessionManager *session.Manager) *RoomBroadcaster {
	return &RoomBroadcaster{
		registry:       registry,
		sessionManager: sessionManager,
	}
}

// BroadcastToRoom 将事件送达调用时刻房间内的每个成员各一次；
// excludeUserID 非空时跳过该身份（移动事件不回送给移动者本人）。
func (b *RoomBroadcaster) BroadcastToRoom(roomID string, env *protocol.Envelope, excludeUserID string) error {
	r, exists := b.registry.GetRoom(roomID)
	if !exists {
		return ErrRoomNotFound
	}

	// Get a thread-safe copy of the member sessions
	members := r.Members()

	for _, s := range members {
		if excludeUserID != "" && s.UserID() == excludeUserID {
			continue
		}
		if err := s.Send(env); err != nil {
			// 发送失败的对端由其自身的连接处理协程负责清退
			continue
		}
	}

	return nil
}

// SendToUser 仅发送给房间内指定身份（如 movement-rejected 的回执）
func (b *RoomBroadcaster) SendToUser(roomID, userID string, env *protocol.Envelope) error {
	r, exists := b.registry.GetRoom(roomID)
	if !exists {
		return ErrRoomNotFound
	}

	for _, s := range r.Members() {
		if s.UserID() == userID {
			return s.Send(env)
		}
	}
	return ErrUserNotFound
}
