package room

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/gautam-divyanshu/2d-metaverse-sub001/models"
	"github.com/gautam-divyanshu/2d-metaverse-sub001/protocol"
	"github.com/gautam-divyanshu/2d-metaverse-sub001/session"
)

// MockGeometry is a test double for the Geometry interface.
type MockGeometry struct {
	spaces map[string]models.Space
	calls  int
}

func (m *MockGeometry) GetSpace(roomID string) (models.Space, error) {
	m.calls++
	space, ok := m.spaces[roomID]
	if !ok {
		return models.Space{}, errors.New("unknown room")
	}
	return space, nil
}

// MockConnection is a test double for the network.Connection interface.
type MockConnection struct{}

func (m *MockConnection) Send(env *protocol.Envelope) error         { return nil }
func (m *MockConnection) ReadEnvelope() (*protocol.Envelope, error) { return nil, nil }
func (m *MockConnection) Close() error                              { return nil }
func (m *MockConnection) RemoteAddr() net.Addr                      { return &net.TCPAddr{} }
func (m *MockConnection) SetHeartbeat(interval time.Duration)       {}
func (m *MockConnection) Dropped() uint64                           { return 0 }

func newTestGeometry() *MockGeometry {
	return &MockGeometry{
		spaces: map[string]models.Space{
			"room-1":    {RoomID: "room-1", Name: "Lobby", Width: 10, Height: 10},
			"room-flat": {RoomID: "room-flat", Name: "Broken", Width: 0, Height: 10},
		},
	}
}

// newTestSession creates a session with a resolved identity for testing.
func newTestSession(id, userID string) *session.Session {
	s := session.NewSession(id, &MockConnection{})
	s.SetProfile(models.UserProfile{UserID: userID, Username: "user-" + userID})
	return s
}

func spawnAt(x, y int) SpawnFunc {
	return func(models.Space) models.Position {
		return models.Position{X: x, Y: y}
	}
}

func TestRegistry_LazyCreateOnJoin(t *testing.T) {
	geometry := newTestGeometry()
	registry := NewRegistry(geometry)

	if _, exists := registry.GetRoom("room-1"); exists {
		t.Fatal("room should not exist before first join")
	}

	rm, err := registry.Join("room-1", newTestSession("s1", "u1"), spawnAt(0, 0))
	if err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	if rm.ID != "room-1" {
		t.Errorf("expected room ID room-1, got %s", rm.ID)
	}
	if rm.Space.Width != 10 || rm.Space.Height != 10 {
		t.Errorf("room should carry geometry from the provider, got %dx%d", rm.Space.Width, rm.Space.Height)
	}

	if _, exists := registry.GetRoom("room-1"); !exists {
		t.Fatal("room should exist after first join")
	}
}

func TestRegistry_UnknownRoomRejected(t *testing.T) {
	registry := NewRegistry(newTestGeometry())

	_, err := registry.Join("no-such-room", newTestSession("s1", "u1"), spawnAt(0, 0))
	if err == nil {
		t.Fatal("joining an unknown room should fail")
	}
	if registry.RoomCount() != 0 {
		t.Error("failed join must not create a room")
	}
}

func TestRegistry_DegenerateGeometryRejected(t *testing.T) {
	registry := NewRegistry(newTestGeometry())

	_, err := registry.Join("room-flat", newTestSession("s1", "u1"), spawnAt(0, 0))
	if !errors.Is(err, ErrInvalidGeometry) {
		t.Fatalf("expected ErrInvalidGeometry, got %v", err)
	}
	if registry.RoomCount() != 0 {
		t.Error("a room with unusable geometry must not be created")
	}
}

// 成员一旦在成员表中可见，必须已带着出生点处于 Joined 态；
// 并发 join 的应答快照不能把新成员定格在原点
func TestRegistry_JoinPublishesCompleteMember(t *testing.T) {
	registry := NewRegistry(newTestGeometry())
	s := newTestSession("s1", "u1")

	rm, err := registry.Join("room-1", s, spawnAt(5, 7))
	if err != nil {
		t.Fatalf("Join failed: %v", err)
	}

	if s.State() != session.StateJoined {
		t.Fatalf("session must be Joined once it is a member, got %s", s.State())
	}
	if p := s.Position(); p.X != 5 || p.Y != 7 {
		t.Errorf("session should carry the spawn position, got (%d,%d)", p.X, p.Y)
	}
	if s.RoomID() != "room-1" {
		t.Errorf("session should carry the room ID, got %s", s.RoomID())
	}

	infos := rm.MemberInfos("")
	if len(infos) != 1 {
		t.Fatalf("expected 1 member info, got %d", len(infos))
	}
	if infos[0].X != 5 || infos[0].Y != 7 {
		t.Errorf("member snapshot must show the spawn, not the zero position, got (%d,%d)",
			infos[0].X, infos[0].Y)
	}
}

func TestRegistry_DuplicateIdentityRefused(t *testing.T) {
	registry := NewRegistry(newTestGeometry())

	first := newTestSession("s1", "u1")
	if _, err := registry.Join("room-1", first, spawnAt(1, 1)); err != nil {
		t.Fatalf("first join failed: %v", err)
	}

	// 同一身份的第二个会话被拒绝，原会话保持不动
	second := newTestSession("s2", "u1")
	_, err := registry.Join("room-1", second, spawnAt(2, 2))
	if err != ErrAlreadyJoined {
		t.Fatalf("expected ErrAlreadyJoined, got %v", err)
	}
	if second.State() != session.StateConnected {
		t.Errorf("refused session must stay Connected, got %s", second.State())
	}

	rm, _ := registry.GetRoom("room-1")
	if rm.MemberCount() != 1 {
		t.Errorf("membership size for the identity should stay 1, got %d", rm.MemberCount())
	}
	if !rm.HasMember("u1") {
		t.Error("original session should still be a member")
	}
}

func TestRegistry_ConcurrentDuplicateJoins(t *testing.T) {
	registry := NewRegistry(newTestGeometry())

	const attempts = 8
	start := make(chan struct{})
	errs := make(chan error, attempts)
	var wg sync.WaitGroup

	// 同一身份并发抢同一个房间，恰好一个会话胜出
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, err := registry.Join("room-1", newTestSession(fmt.Sprintf("s%d", i), "u1"), spawnAt(1, 1))
			errs <- err
		}(i)
	}
	close(start)
	wg.Wait()
	close(errs)

	var won, refused int
	for err := range errs {
		switch err {
		case nil:
			won++
		case ErrAlreadyJoined:
			refused++
		default:
			t.Fatalf("unexpected join error: %v", err)
		}
	}
	if won != 1 || refused != attempts-1 {
		t.Fatalf("expected exactly one winner, got %d winners and %d refusals", won, refused)
	}

	rm, _ := registry.GetRoom("room-1")
	if rm.MemberCount() != 1 {
		t.Errorf("membership size for the identity should stay 1, got %d", rm.MemberCount())
	}
}

func TestRegistry_LeaveRemovesEmptyRoom(t *testing.T) {
	registry := NewRegistry(newTestGeometry())

	registry.Join("room-1", newTestSession("s1", "u1"), spawnAt(0, 0))
	registry.Join("room-1", newTestSession("s2", "u2"), spawnAt(0, 0))

	registry.Leave("room-1", "u1")
	if _, exists := registry.GetRoom("room-1"); !exists {
		t.Fatal("room with remaining members should survive")
	}

	registry.Leave("room-1", "u2")
	if _, exists := registry.GetRoom("room-1"); exists {
		t.Fatal("empty room should be removed from the registry")
	}
	if registry.RoomCount() != 0 {
		t.Errorf("expected 0 rooms, got %d", registry.RoomCount())
	}
}

func TestRegistry_LeaveThenRejoin(t *testing.T) {
	geometry := newTestGeometry()
	registry := NewRegistry(geometry)

	registry.Join("room-1", newTestSession("s1", "u1"), spawnAt(0, 0))
	registry.Leave("room-1", "u1")

	// 重新加入会重新惰性创建房间
	if _, err := registry.Join("room-1", newTestSession("s2", "u1"), spawnAt(0, 0)); err != nil {
		t.Fatalf("rejoin after leave failed: %v", err)
	}
	rm, _ := registry.GetRoom("room-1")
	if !rm.HasMember("u1") {
		t.Error("identity should be a member after rejoin")
	}
}

func TestRoom_MemberInfosExcludes(t *testing.T) {
	registry := NewRegistry(newTestGeometry())

	registry.Join("room-1", newTestSession("s1", "u1"), spawnAt(1, 2))
	registry.Join("room-1", newTestSession("s2", "u2"), spawnAt(3, 4))

	rm, _ := registry.GetRoom("room-1")
	infos := rm.MemberInfos("u1")
	if len(infos) != 1 {
		t.Fatalf("expected 1 member info, got %d", len(infos))
	}
	if infos[0].UserID != "u2" || infos[0].X != 3 || infos[0].Y != 4 {
		t.Errorf("unexpected member info %+v", infos[0])
	}
}

func TestRoom_MembersIsSnapshot(t *testing.T) {
	registry := NewRegistry(newTestGeometry())
	registry.Join("room-1", newTestSession("s1", "u1"), spawnAt(0, 0))

	rm, _ := registry.GetRoom("room-1")
	members := rm.Members()

	registry.Join("room-1", newTestSession("s2", "u2"), spawnAt(0, 0))
	if len(members) != 1 {
		t.Error("snapshot taken before a join should not grow")
	}
}
