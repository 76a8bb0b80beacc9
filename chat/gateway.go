// chat/gateway.go
package chat

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/gautam-divyanshu/2d-metaverse-sub001/broadcast"
	"github.com/gautam-divyanshu/2d-metaverse-sub001/models"
	"github.com/gautam-divyanshu/2d-metaverse-sub001/protocol"
	"github.com/gautam-divyanshu/2d-metaverse-sub001/session"
)

var (
	// ErrNotJoined 会话尚未加入房间
	ErrNotJoined = errors.New("session not joined to a room")
	// ErrTextTooLong 文本超出长度上限，消息不持久化也不广播
	ErrTextTooLong = errors.New("chat text exceeds length bound")
	// ErrEmptyText 空消息
	ErrEmptyText = errors.New("chat text is empty")
)

// Store 聊天消息的持久化接口（由 persistence 层实现）
type Store interface {
	AppendChatMessage(roomID string, msg models.ChatMessage) (models.ChatMessage, error)
	LoadRecentMessages(roomID string, limit int) ([]models.ChatMessage, error)
}

// Gateway 先持久化后广播：广播给房间内包括发送者在内的所有成员，
// 发送者由此看到服务器确认过的消息序号与时间戳。
type Gateway struct {
	store       Store
	broadcaster broadcast.Broadcaster
	maxLen      int
	recentLimit int
}

func NewGateway(store Store, broadcaster broadcast.Broadcaster, maxLen, recentLimit int) *Gateway {
	if maxLen <= 0 {
		maxLen = 2000
	}
	if recentLimit <= 0 {
		recentLimit = 50
	}
	return &Gateway{
		store:       store,
		broadcaster: broadcaster,
		maxLen:      maxLen,
		recentLimit: recentLimit,
	}
}

// Send 校验、持久化并广播一条聊天消息
func (g *Gateway) Send(s *session.Session, text, displayName string) (models.ChatMessage, error) {
	if s.State() != session.StateJoined {
		return models.ChatMessage{}, ErrNotJoined
	}
	if text == "" {
		return models.ChatMessage{}, ErrEmptyText
	}
	if utf8.RuneCountInString(text) > g.maxLen {
		return models.ChatMessage{}, ErrTextTooLong
	}
	if displayName == "" {
		displayName = s.Username()
	}
	roomID := s.RoomID()

	msg := models.ChatMessage{
		RoomID:      roomID,
		UserID:      s.UserID(),
		DisplayName: displayName,
		Text:        text,
	}

	stored, err := g.store.AppendChatMessage(roomID, msg)
	if err != nil {
		return models.ChatMessage{}, fmt.Errorf("persist chat message: %w", err)
	}

	env, err := protocol.Encode(protocol.ClassChat, protocol.TypeChatMessage, protocol.ChatMessagePayload{
		ID:          stored.ID,
		UserID:      stored.UserID,
		DisplayName: stored.DisplayName,
		Text:        stored.Text,
		CreatedAt:   stored.CreatedAt,
	})
	if err != nil {
		return models.ChatMessage{}, err
	}

	// 发送者也在接收者之列，excludeUserID 留空
	if err := g.broadcaster.BroadcastToRoom(roomID, env, ""); err != nil {
		return stored, err
	}
	return stored, nil
}

// Recent 加载房间最近的消息，作为 join 应答的一部分下发
func (g *Gateway) Recent(roomID string) ([]models.ChatMessage, error) {
	return g.store.LoadRecentMessages(roomID, g.recentLimit)
}
