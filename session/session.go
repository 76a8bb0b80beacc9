// session/session.go
package session

import (
	"sync"
	"time"

	"github.com/gautam-divyanshu/2d-metaverse-sub001/models"
	"github.com/gautam-divyanshu/2d-metaverse-sub001/network"
	"github.com/gautam-divyanshu/2d-metaverse-sub001/protocol"
)

// State 会话生命周期状态
type State int

const (
	// StateConnected 连接已建立但尚未通过 join 认证
	StateConnected State = iota
	// StateJoined 已认证并加入唯一房间
	StateJoined
	// StateClosed 终态
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateJoined:
		return "joined"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Session 保存单个连接的服务器侧状态。身份字段仅在 join 成功后填充，
// 与状态、位置一样由会话锁保护；位置字段是该用户的权威位置。
type Session struct {
	ID   string
	Conn network.Connection

	CreatedAt time.Time

	userID   string
	username string
	avatar   string
	roomID   string

	lastActive time.Time
	state      State
	x, y       int
	mutex      sync.RWMutex
}

func NewSession(id string, conn network.Connection) *Session {
	now := time.Now()
	return &Session{
		ID:         id,
		Conn:       conn,
		state:      StateConnected,
		CreatedAt:  now,
		lastActive: now,
	}
}

// SetProfile 记录解析后的身份；在房间登记之前调用（房间成员表以
// 用户身份为键）
func (s *Session) SetProfile(profile models.UserProfile) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.userID = profile.UserID
	s.username = profile.Username
	s.avatar = profile.Avatar
}

// EnterRoom 将会话从 Connected 迁移到 Joined 并记录房间与出生点
func (s *Session) EnterRoom(roomID string, spawn models.Position) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.roomID = roomID
	s.x, s.y = spawn.X, spawn.Y
	s.state = StateJoined
}

func (s *Session) State() State {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.state
}

// MarkClosed 迁移到终态；返回先前状态，便于调用方决定是否需要房间清退
func (s *Session) MarkClosed() State {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	prev := s.state
	s.state = StateClosed
	return prev
}

func (s *Session) UserID() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.userID
}

func (s *Session) Username() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.username
}

func (s *Session) Avatar() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.avatar
}

func (s *Session) RoomID() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.roomID
}

func (s *Session) Position() models.Position {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return models.Position{X: s.x, Y: s.y}
}

func (s *Session) SetPosition(p models.Position) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.x, s.y = p.X, p.Y
}

// MemberInfo 返回该会话在成员列表中的快照
func (s *Session) MemberInfo() models.MemberInfo {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return models.MemberInfo{
		UserID:   s.userID,
		Username: s.username,
		Avatar:   s.avatar,
		X:        s.x,
		Y:        s.y,
	}
}

func (s *Session) Send(env *protocol.Envelope) error {
	s.mutex.Lock()
	s.lastActive = time.Now()
	s.mutex.Unlock()
	return s.Conn.Send(env)
}

// Touch 更新活跃时间（由读循环在收到任意帧时调用）
func (s *Session) Touch() {
	s.mutex.Lock()
	s.lastActive = time.Now()
	s.mutex.Unlock()
}

// IdleSince 返回最近一次活跃时间
func (s *Session) IdleSince() time.Time {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.lastActive
}

func (s *Session) GetID() string {
	return s.ID
}

func (s *Session) Close() error {
	return s.Conn.Close()
}

// Manager 维护进程内所有存活会话
type Manager struct {
	sessions map[string]*Session
	mutex    sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
	}
}

func (m *Manager) Add(session *Session) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.sessions[session.ID] = session
}

func (m *Manager) Remove(sessionID string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.sessions, sessionID)
}

func (m *Manager) Get(sessionID string) (*Session, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	session, exists := m.sessions[sessionID]
	return session, exists
}

func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.sessions)
}

func (m *Manager) GetByUserID(userID string) []*Session {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	var result []*Session
	for _, session := range m.sessions {
		if session.UserID() == userID {
			result = append(result, session)
		}
	}
	return result
}

// All 返回当前所有会话的快照
func (m *Manager) All() []*Session {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	result := make([]*Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		result = append(result, session)
	}
	return result
}
