package rpc

import (
	"net"
	"net/rpc"

	"github.com/gautam-divyanshu/2d-metaverse-sub001/logger"
	"github.com/gautam-divyanshu/2d-metaverse-sub001/room"
	"github.com/gautam-divyanshu/2d-metaverse-sub001/session"
)

// Server manages the RPC listener for the admin/presence surface.
type Server struct {
	listener net.Listener
	address  string
}

// NewServer creates a new RPC server.
func NewServer(addr string) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: listener,
		address:  addr,
	}, nil
}

// Start begins listening for RPC requests.
func (s *Server) Start() {
	logger.Log.Infof("RPC server listening on %s", s.address)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if _, ok := err.(*net.OpError); ok {
				logger.Log.Info("RPC server listener closed.")
				return
			}
			logger.Log.Errorf("RPC server accept error: %v", err)
			continue
		}
		go rpc.ServeConn(conn)
	}
}

// Stop closes the RPC listener.
func (s *Server) Stop() {
	if s.listener != nil {
		logger.Log.Info("Stopping RPC server.")
		s.listener.Close()
	}
}

// PresenceService exposes live presence stats over net/rpc.
type PresenceService struct {
	registry       *room.Registry
	sessionManager *session.Manager
}

func NewPresenceService(registry *room.Registry, sessionManager *session.Manager) *PresenceService {
	return &PresenceService{
		registry:       registry,
		sessionManager: sessionManager,
	}
}

type OccupancyArgs struct{}

type OccupancyReply struct {
	Rooms   map[string]int
	Members map[string][]string
}

// RoomOccupancy 返回每个存活房间的成员数与成员身份
func (ps *PresenceService) RoomOccupancy(args *OccupancyArgs, reply *OccupancyReply) error {
	reply.Rooms = ps.registry.Occupancy()
	reply.Members = ps.registry.MembersByRoom()
	return nil
}

type OnlineArgs struct{}

type OnlineReply struct {
	Sessions int
	Rooms    int
}

// OnlineCount 返回存活会话与房间总数
func (ps *PresenceService) OnlineCount(args *OnlineArgs, reply *OnlineReply) error {
	reply.Sessions = ps.sessionManager.Count()
	reply.Rooms = ps.registry.RoomCount()
	return nil
}
