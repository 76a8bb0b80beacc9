// room/room.go
package room

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gautam-divyanshu/2d-metaverse-sub001/models"
	"github.com/gautam-divyanshu/2d-metaverse-sub001/session"
)

var (
	// ErrAlreadyJoined 同一身份在该房间已有存活会话
	ErrAlreadyJoined = errors.New("identity already joined in room")
	// ErrRoomNotFound 房间不存在
	ErrRoomNotFound = errors.New("room not found")
	// ErrInvalidGeometry 存储中的房间几何不可用（宽或高为零）
	ErrInvalidGeometry = errors.New("room geometry is degenerate")
)

// SpawnFunc 为新成员挑选出生点；在房间锁内调用，返回值连同 Joined
// 状态在成员对外可见之前落进会话。
type SpawnFunc func(space models.Space) models.Position

// Room 是一个隔离的参与者集合：共享一块网格与一个广播域。
// 成员表以解析后的用户身份为键，保证同一身份至多一个会话。
type Room struct {
	ID        string
	Space     models.Space
	CreatedAt time.Time

	members     map[string]*session.Session // userID -> session
	memberMutex sync.RWMutex
}

func newRoom(id string, space models.Space) *Room {
	return &Room{
		ID:        id,
		Space:     space,
		CreatedAt: time.Now(),
		members:   make(map[string]*session.Session),
	}
}

// addMember 在房间锁内执行排他性检查并登记会话。出生点与 Joined 状态
// 先写入会话、成员表后可见：并发快照看到的新成员已是完整状态。
func (r *Room) addMember(s *session.Session, spawn SpawnFunc) error {
	r.memberMutex.Lock()
	defer r.memberMutex.Unlock()

	userID := s.UserID()
	if _, exists := r.members[userID]; exists {
		return ErrAlreadyJoined
	}
	s.EnterRoom(r.ID, spawn(r.Space))
	r.members[userID] = s
	return nil
}

// removeMember 移除成员，返回移除后剩余人数
func (r *Room) removeMember(userID string) int {
	r.memberMutex.Lock()
	defer r.memberMutex.Unlock()
	delete(r.members, userID)
	return len(r.members)
}

// Members returns a snapshot of all sessions in the room (thread-safe).
// Broadcast iterates the snapshot so sends never run under the room lock.
func (r *Room) Members() []*session.Session {
	r.memberMutex.RLock()
	defer r.memberMutex.RUnlock()

	members := make([]*session.Session, 0, len(r.members))
	for _, s := range r.members {
		members = append(members, s)
	}
	return members
}

// HasMember 判断某身份当前是否在房间内
func (r *Room) HasMember(userID string) bool {
	r.memberMutex.RLock()
	defer r.memberMutex.RUnlock()
	_, exists := r.members[userID]
	return exists
}

// MemberCount 当前成员数
func (r *Room) MemberCount() int {
	r.memberMutex.RLock()
	defer r.memberMutex.RUnlock()
	return len(r.members)
}

// MemberInfos 返回除 excludeUserID 外所有成员的快照信息
func (r *Room) MemberInfos(excludeUserID string) []models.MemberInfo {
	members := r.Members()
	infos := make([]models.MemberInfo, 0, len(members))
	for _, s := range members {
		if s.UserID() == excludeUserID {
			continue
		}
		infos = append(infos, s.MemberInfo())
	}
	return infos
}

// Registry 是进程级的房间表。房间在首次 join 时按几何信息惰性创建，
// 最后一个成员离开时从表中删除。
type Registry struct {
	rooms    map[string]*Room
	geometry Geometry
	mutex    sync.RWMutex
}

func NewRegistry(geometry Geometry) *Registry {
	return &Registry{
		rooms:    make(map[string]*Room),
		geometry: geometry,
	}
}

// Join 将会话登记进房间，必要时先创建房间。几何查询在注册表锁外进行，
// 存储往返不会阻塞其他房间的操作。登记成功时会话已带着出生点处于
// Joined 态——成员表里不存在半成品成员。
func (r *Registry) Join(roomID string, s *session.Session, spawn SpawnFunc) (*Room, error) {
	r.mutex.RLock()
	room, exists := r.rooms[roomID]
	r.mutex.RUnlock()

	if !exists {
		space, err := r.geometry.GetSpace(roomID)
		if err != nil {
			return nil, fmt.Errorf("resolve room %s: %w", roomID, err)
		}
		if space.Width <= 0 || space.Height <= 0 {
			return nil, fmt.Errorf("resolve room %s: %w", roomID, ErrInvalidGeometry)
		}

		r.mutex.Lock()
		// 再查一次：几何查询期间可能已有并发 join 建好了房间
		if existing, ok := r.rooms[roomID]; ok {
			room = existing
		} else {
			room = newRoom(roomID, space)
			r.rooms[roomID] = room
		}
		r.mutex.Unlock()
	}

	if err := room.addMember(s, spawn); err != nil {
		return nil, err
	}
	return room, nil
}

// Leave 将身份从房间移除；房间空了就从表中删除（惰性生命周期）
func (r *Registry) Leave(roomID, userID string) {
	r.mutex.RLock()
	room, exists := r.rooms[roomID]
	r.mutex.RUnlock()
	if !exists {
		return
	}

	remaining := room.removeMember(userID)
	if remaining > 0 {
		return
	}

	r.mutex.Lock()
	// 空房间才删；删除前重查成员数，避免淘汰刚被并发 join 复活的房间
	if current, ok := r.rooms[roomID]; ok && current == room && room.MemberCount() == 0 {
		delete(r.rooms, roomID)
	}
	r.mutex.Unlock()
}

func (r *Registry) GetRoom(roomID string) (*Room, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	room, exists := r.rooms[roomID]
	return room, exists
}

// RoomCount 当前存活房间数
func (r *Registry) RoomCount() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.rooms)
}

// Occupancy 返回每个房间的成员数快照
func (r *Registry) Occupancy() map[string]int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	result := make(map[string]int, len(r.rooms))
	for id, room := range r.rooms {
		result[id] = room.MemberCount()
	}
	return result
}

// MembersByRoom 返回每个房间的成员身份列表快照
func (r *Registry) MembersByRoom() map[string][]string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	result := make(map[string][]string, len(r.rooms))
	for id, room := range r.rooms {
		members := room.Members()
		ids := make([]string, 0, len(members))
		for _, s := range members {
			ids = append(ids, s.UserID())
		}
		result[id] = ids
	}
	return result
}
