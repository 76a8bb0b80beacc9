// protocol/protocol.go
package protocol

import (
	"encoding/json"
	"fmt"
)

// 消息分为 class（类别）与 type（具体类型）两级判别字段。
const (
	ClassLifecycle = "lifecycle"
	ClassMovement  = "movement"
	ClassChat      = "chat"
)

// 入站消息类型
const (
	TypeJoin     = "join"
	TypeMove     = "move"
	TypeTeleport = "teleport"
	TypeChat     = "chat"
)

// 出站事件类型
const (
	TypeRoomJoined       = "room-joined"
	TypeUserJoined       = "user-joined"
	TypeUserMoved        = "user-moved"
	TypeMovementRejected = "movement-rejected"
	TypeChatMessage      = "chat-message"
	TypeUserLeft         = "user-left"
)

// Envelope 是连接上传输的统一帧结构
type Envelope struct {
	Class   string          `json:"class"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ErrUnknownMessage indicates an envelope whose class/type pair is not part
// of the protocol.
type ErrUnknownMessage struct {
	Class string
	Type  string
}

func (e *ErrUnknownMessage) Error() string {
	return fmt.Sprintf("unknown message %s/%s", e.Class, e.Type)
}

// Inbound is the closed set of client-to-server messages. Decode returns one
// of JoinRequest, MoveRequest, TeleportRequest or ChatRequest; handlers switch
// over these exhaustively.
type Inbound interface {
	inbound()
}

// JoinRequest lifecycle/join
type JoinRequest struct {
	RoomID     string `json:"roomId"`
	Credential string `json:"credential"`
}

// MoveRequest movement/move
type MoveRequest struct {
	X         int    `json:"x"`
	Y         int    `json:"y"`
	Direction string `json:"direction,omitempty"`
}

// TeleportRequest movement/teleport，跳过步长校验但仍检查边界与障碍
type TeleportRequest struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// ChatRequest chat/chat
type ChatRequest struct {
	Text        string `json:"text"`
	DisplayName string `json:"displayName"`
}

func (*JoinRequest) inbound()     {}
func (*MoveRequest) inbound()     {}
func (*TeleportRequest) inbound() {}
func (*ChatRequest) inbound()     {}

// Decode 解析入站帧为具体消息类型
func Decode(data []byte) (Inbound, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	return env.Decode()
}

// Decode 将帧的载荷解析为具体消息类型
func (env *Envelope) Decode() (Inbound, error) {
	var msg Inbound
	switch {
	case env.Class == ClassLifecycle && env.Type == TypeJoin:
		msg = &JoinRequest{}
	case env.Class == ClassMovement && env.Type == TypeMove:
		msg = &MoveRequest{}
	case env.Class == ClassMovement && env.Type == TypeTeleport:
		msg = &TeleportRequest{}
	case env.Class == ClassChat && env.Type == TypeChat:
		msg = &ChatRequest{}
	default:
		return nil, &ErrUnknownMessage{Class: env.Class, Type: env.Type}
	}

	if len(env.Payload) > 0 {
		if err := json.Unmarshal(env.Payload, msg); err != nil {
			return nil, fmt.Errorf("decode %s/%s payload: %w", env.Class, env.Type, err)
		}
	}
	return msg, nil
}

// Encode 构造一个可发送的出站帧
func Encode(class, typ string, payload interface{}) (*Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s/%s payload: %w", class, typ, err)
	}
	return &Envelope{Class: class, Type: typ, Payload: data}, nil
}
