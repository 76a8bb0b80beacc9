package chat

import (
	"net"
	"strings"
	"testing"
	"time"

	"github.com/gautam-divyanshu/2d-metaverse-sub001/models"
	"github.com/gautam-divyanshu/2d-metaverse-sub001/protocol"
	"github.com/gautam-divyanshu/2d-metaverse-sub001/session"
)

// MockStore records appended messages and assigns sequential IDs.
type MockStore struct {
	appended []models.ChatMessage
	nextID   int64
}

func (m *MockStore) AppendChatMessage(roomID string, msg models.ChatMessage) (models.ChatMessage, error) {
	m.nextID++
	msg.ID = m.nextID
	msg.RoomID = roomID
	msg.CreatedAt = time.Unix(1700000000+m.nextID, 0)
	m.appended = append(m.appended, msg)
	return msg, nil
}

func (m *MockStore) LoadRecentMessages(roomID string, limit int) ([]models.ChatMessage, error) {
	return m.appended, nil
}

// MockBroadcaster records broadcast calls.
type MockBroadcaster struct {
	envelopes []*protocol.Envelope
	excluded  []string
}

func (m *MockBroadcaster) BroadcastToRoom(roomID string, env *protocol.Envelope, excludeUserID string) error {
	m.envelopes = append(m.envelopes, env)
	m.excluded = append(m.excluded, excludeUserID)
	return nil
}

func (m *MockBroadcaster) SendToUser(roomID, userID string, env *protocol.Envelope) error {
	return nil
}

// MockConnection is a test double for the network.Connection interface.
type MockConnection struct{}

func (m *MockConnection) Send(env *protocol.Envelope) error         { return nil }
func (m *MockConnection) ReadEnvelope() (*protocol.Envelope, error) { return nil, nil }
func (m *MockConnection) Close() error                              { return nil }
func (m *MockConnection) RemoteAddr() net.Addr                      { return &net.TCPAddr{} }
func (m *MockConnection) SetHeartbeat(interval time.Duration)       {}
func (m *MockConnection) Dropped() uint64                           { return 0 }

func joinedSession() *session.Session {
	s := session.NewSession("s1", &MockConnection{})
	s.SetProfile(models.UserProfile{UserID: "u1", Username: "alice"})
	s.EnterRoom("room-1", models.Position{X: 0, Y: 0})
	return s
}

func TestSend_PersistsThenBroadcastsIncludingSender(t *testing.T) {
	store := &MockStore{}
	bc := &MockBroadcaster{}
	g := NewGateway(store, bc, 2000, 50)

	msg, err := g.Send(joinedSession(), "hello there", "")
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if len(store.appended) != 1 {
		t.Fatalf("expected 1 persisted message, got %d", len(store.appended))
	}
	if msg.ID != 1 {
		t.Errorf("message should carry the store-assigned ID, got %d", msg.ID)
	}
	if msg.DisplayName != "alice" {
		t.Errorf("empty display name should fall back to the session username, got %q", msg.DisplayName)
	}

	if len(bc.envelopes) != 1 {
		t.Fatalf("expected 1 broadcast, got %d", len(bc.envelopes))
	}
	// 聊天广播包含发送者本人
	if bc.excluded[0] != "" {
		t.Errorf("chat broadcast must not exclude the sender, excluded %q", bc.excluded[0])
	}
	if bc.envelopes[0].Type != protocol.TypeChatMessage {
		t.Errorf("expected chat-message event, got %s", bc.envelopes[0].Type)
	}
}

func TestSend_OverlongTextNeverReachesStore(t *testing.T) {
	store := &MockStore{}
	bc := &MockBroadcaster{}
	g := NewGateway(store, bc, 2000, 50)

	text := strings.Repeat("a", 2001)
	_, err := g.Send(joinedSession(), text, "alice")
	if err != ErrTextTooLong {
		t.Fatalf("expected ErrTextTooLong, got %v", err)
	}

	if len(store.appended) != 0 {
		t.Error("rejected message must not be persisted")
	}
	if len(bc.envelopes) != 0 {
		t.Error("rejected message must not be broadcast")
	}
}

func TestSend_ExactBoundAccepted(t *testing.T) {
	store := &MockStore{}
	g := NewGateway(store, &MockBroadcaster{}, 2000, 50)

	if _, err := g.Send(joinedSession(), strings.Repeat("a", 2000), "alice"); err != nil {
		t.Fatalf("text at exactly the bound should pass, got %v", err)
	}
}

func TestSend_RequiresJoinedState(t *testing.T) {
	g := NewGateway(&MockStore{}, &MockBroadcaster{}, 2000, 50)

	unjoined := session.NewSession("s1", &MockConnection{})
	if _, err := g.Send(unjoined, "hi", "x"); err != ErrNotJoined {
		t.Fatalf("expected ErrNotJoined, got %v", err)
	}
}

func TestSend_EmptyTextRejected(t *testing.T) {
	store := &MockStore{}
	g := NewGateway(store, &MockBroadcaster{}, 2000, 50)

	if _, err := g.Send(joinedSession(), "", "alice"); err != ErrEmptyText {
		t.Fatalf("expected ErrEmptyText, got %v", err)
	}
	if len(store.appended) != 0 {
		t.Error("empty message must not be persisted")
	}
}
