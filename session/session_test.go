package session

import (
	"net"
	"testing"
	"time"

	"github.com/gautam-divyanshu/2d-metaverse-sub001/models"
	"github.com/gautam-divyanshu/2d-metaverse-sub001/protocol"
)

// MockConnection is a test double for the network.Connection interface.
type MockConnection struct{}

func (m *MockConnection) Send(env *protocol.Envelope) error         { return nil }
func (m *MockConnection) ReadEnvelope() (*protocol.Envelope, error) { return nil, nil }
func (m *MockConnection) Close() error                              { return nil }
func (m *MockConnection) RemoteAddr() net.Addr                      { return &net.TCPAddr{} }
func (m *MockConnection) SetHeartbeat(interval time.Duration)       {}
func (m *MockConnection) Dropped() uint64                           { return 0 }

func TestSession_Lifecycle(t *testing.T) {
	sess := NewSession("s1", &MockConnection{})

	if sess.State() != StateConnected {
		t.Fatalf("new session should be Connected, got %s", sess.State())
	}

	sess.SetProfile(models.UserProfile{UserID: "u1", Username: "alice", Avatar: "a1"})
	if sess.State() != StateConnected {
		t.Error("profile resolution alone must not change state")
	}

	sess.EnterRoom("room-1", models.Position{X: 4, Y: 7})
	if sess.State() != StateJoined {
		t.Fatalf("expected Joined after EnterRoom, got %s", sess.State())
	}
	if p := sess.Position(); p.X != 4 || p.Y != 7 {
		t.Errorf("expected spawn (4,7), got (%d,%d)", p.X, p.Y)
	}
	if sess.RoomID() != "room-1" {
		t.Errorf("expected RoomID room-1, got %s", sess.RoomID())
	}

	prev := sess.MarkClosed()
	if prev != StateJoined {
		t.Errorf("MarkClosed should report the previous state, got %s", prev)
	}
	if sess.State() != StateClosed {
		t.Errorf("session should be Closed, got %s", sess.State())
	}

	// 第二次关闭不再报告 Joined，清退因此只发生一次
	if prev := sess.MarkClosed(); prev != StateClosed {
		t.Errorf("second MarkClosed should report Closed, got %s", prev)
	}
}

func TestSession_MemberInfo(t *testing.T) {
	sess := NewSession("s1", &MockConnection{})
	sess.SetProfile(models.UserProfile{UserID: "u1", Username: "alice", Avatar: "a1"})
	sess.EnterRoom("room-1", models.Position{X: 2, Y: 3})

	info := sess.MemberInfo()
	if info.UserID != "u1" || info.Username != "alice" || info.Avatar != "a1" {
		t.Errorf("unexpected identity in member info: %+v", info)
	}
	if info.X != 2 || info.Y != 3 {
		t.Errorf("unexpected position in member info: %+v", info)
	}
}

func TestManager_Add_Get_Remove(t *testing.T) {
	manager := NewManager()
	sess := NewSession("s1", &MockConnection{})

	manager.Add(sess)
	if manager.Count() != 1 {
		t.Fatalf("expected 1 session, got %d", manager.Count())
	}

	retrieved, exists := manager.Get("s1")
	if !exists {
		t.Fatal("Get should find the added session")
	}
	if retrieved != sess {
		t.Fatal("Get should return the same session instance")
	}

	manager.Remove("s1")
	if manager.Count() != 0 {
		t.Fatalf("expected 0 sessions after removal, got %d", manager.Count())
	}
	if _, exists := manager.Get("s1"); exists {
		t.Fatal("Get should not find the removed session")
	}
}

func TestManager_GetByUserID(t *testing.T) {
	manager := NewManager()

	s1 := NewSession("s1", &MockConnection{})
	s1.SetProfile(models.UserProfile{UserID: "u100"})
	s2 := NewSession("s2", &MockConnection{})
	s2.SetProfile(models.UserProfile{UserID: "u200"})
	s3 := NewSession("s3", &MockConnection{})
	s3.SetProfile(models.UserProfile{UserID: "u100"})

	manager.Add(s1)
	manager.Add(s2)
	manager.Add(s3)

	if got := len(manager.GetByUserID("u100")); got != 2 {
		t.Errorf("expected 2 sessions for u100, got %d", got)
	}
	if got := len(manager.GetByUserID("u200")); got != 1 {
		t.Errorf("expected 1 session for u200, got %d", got)
	}
	if got := len(manager.GetByUserID("u300")); got != 0 {
		t.Errorf("expected 0 sessions for u300, got %d", got)
	}
}

func TestSession_TouchUpdatesIdleTime(t *testing.T) {
	sess := NewSession("s1", &MockConnection{})
	before := sess.IdleSince()

	time.Sleep(5 * time.Millisecond)
	sess.Touch()

	if !sess.IdleSince().After(before) {
		t.Error("Touch should advance the last-active time")
	}
}
