package server

import (
	"math/rand"
	"net/http"
	stdrpc "net/rpc"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/gautam-divyanshu/2d-metaverse-sub001/auth"
	"github.com/gautam-divyanshu/2d-metaverse-sub001/broadcast"
	"github.com/gautam-divyanshu/2d-metaverse-sub001/chat"
	"github.com/gautam-divyanshu/2d-metaverse-sub001/config"
	"github.com/gautam-divyanshu/2d-metaverse-sub001/game"
	"github.com/gautam-divyanshu/2d-metaverse-sub001/logger"
	"github.com/gautam-divyanshu/2d-metaverse-sub001/models"
	"github.com/gautam-divyanshu/2d-metaverse-sub001/monitor"
	"github.com/gautam-divyanshu/2d-metaverse-sub001/network"
	"github.com/gautam-divyanshu/2d-metaverse-sub001/persistence"
	"github.com/gautam-divyanshu/2d-metaverse-sub001/protocol"
	"github.com/gautam-divyanshu/2d-metaverse-sub001/room"
	"github.com/gautam-divyanshu/2d-metaverse-sub001/rpc"
	"github.com/gautam-divyanshu/2d-metaverse-sub001/services"
	"github.com/gautam-divyanshu/2d-metaverse-sub001/session"
	"github.com/gautam-divyanshu/2d-metaverse-sub001/timer"
)

// GameServer 把协议、会话、房间注册表与广播器装配为一个进程。
//
// 协议策略（保持一致并在此注明）：Connected 态收到任何非 join 消息，
// 或 join 失败（凭证非法、房间不存在、身份已在房间内），都直接关闭连接。
type GameServer struct {
	addr        string
	metricsAddr string
	upgrader    websocket.Upgrader

	registry       *room.Registry
	sessionManager *session.Manager
	broadcaster    broadcast.Broadcaster
	chatGateway    *chat.Gateway
	verifier       auth.Verifier
	profiles       auth.Profiles
	monitor        *monitor.Monitor
	timers         *timer.Manager
	rpcServer      *rpc.Server

	queueSize   int
	heartbeat   time.Duration
	idleTimeout time.Duration

	rng      *rand.Rand
	rngMutex sync.Mutex

	shutdownChan chan struct{}
}

func NewGameServer(cfg *config.Config, store persistence.Store) *GameServer {
	registry := room.NewRegistry(store)
	sessionManager := session.NewManager()
	broadcaster := broadcast.NewRoomBroadcaster(registry, sessionManager)

	s := &GameServer{
		addr:           cfg.Server.HTTPAddress,
		metricsAddr:    cfg.Server.MetricsAddress,
		registry:       registry,
		sessionManager: sessionManager,
		broadcaster:    broadcaster,
		chatGateway:    chat.NewGateway(store, broadcaster, cfg.Game.ChatMaxLength, cfg.Game.ChatRecentLimit),
		verifier:       auth.NewTokenVerifier(cfg.Auth.Secret),
		profiles:       services.NewProfileService(store, time.Minute),
		monitor:        monitor.NewMonitor("metaverse"),
		timers:         timer.NewManager(),
		queueSize:      cfg.Game.SendQueueSize,
		heartbeat:      time.Duration(cfg.Game.HeartbeatSeconds) * time.Second,
		idleTimeout:    time.Duration(cfg.Game.IdleTimeoutSecs) * time.Second,
		rng:            rand.New(rand.NewSource(time.Now().UnixNano())),
		shutdownChan:   make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}

	// 注册管理 RPC 服务
	rpcServer, err := rpc.NewServer(cfg.Server.RPCAddress)
	if err != nil {
		logger.Log.Fatalf("Failed to create RPC server: %v", err)
	}
	s.rpcServer = rpcServer
	stdrpc.Register(rpc.NewPresenceService(registry, sessionManager))

	return s
}

func (s *GameServer) Start() error {
	go s.rpcServer.Start()
	s.monitor.StartServer(s.metricsAddr)

	// 周期刷新房间数指标；清理超时静默的会话
	s.timers.Schedule(10*time.Second, 10*time.Second, func() {
		s.monitor.SetActiveRooms(s.registry.RoomCount())
	})
	s.timers.Schedule(s.idleTimeout, 30*time.Second, s.reapIdleSessions)

	http.HandleFunc("/ws", s.handleWebSocket)
	logger.Log.Infof("Game server listening on %s", s.addr)
	return http.ListenAndServe(s.addr, nil)
}

func (s *GameServer) Shutdown() {
	close(s.shutdownChan)
	s.timers.Stop()
	s.rpcServer.Stop()
}

// reapIdleSessions 关闭超时静默的连接；后续清退走正常断开路径
func (s *GameServer) reapIdleSessions() {
	cutoff := time.Now().Add(-s.idleTimeout)
	for _, sess := range s.sessionManager.All() {
		if sess.IdleSince().Before(cutoff) {
			logger.Log.Warnf("Closing idle session %s (user %s)", sess.GetID(), sess.UserID())
			sess.Close()
		}
	}
}

func (s *GameServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	s.handleConnection(conn)
}

func (s *GameServer) handleConnection(conn *websocket.Conn) {
	wsConn := network.NewWSConnection(conn, s.queueSize)
	if s.heartbeat > 0 {
		wsConn.SetHeartbeat(s.heartbeat)
	}

	sess := session.NewSession(uuid.New().String(), wsConn)
	s.sessionManager.Add(sess)
	s.monitor.IncOnlinePlayers()

	logger.Log.Infof("New connection from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())

	defer s.teardown(sess, wsConn)

	for {
		select {
		case <-s.shutdownChan:
			return
		default:
			env, err := wsConn.ReadEnvelope()
			if err != nil {
				return
			}
			sess.Touch()
			s.monitor.IncMessagesReceived()
			if !s.handleEnvelope(sess, env) {
				return
			}
		}
	}
}

// teardown 统一的断开路径：干净关闭与异常断开都走这里。
// 若会话已 Joined，先从房间清退再广播离场事件，保证离场者
// 不再被任何后续广播命中，且 user-left 恰好发出一次。
func (s *GameServer) teardown(sess *session.Session, conn network.Connection) {
	prev := sess.MarkClosed()
	if prev == session.StateJoined {
		s.registry.Leave(sess.RoomID(), sess.UserID())

		env, err := protocol.Encode(protocol.ClassLifecycle, protocol.TypeUserLeft,
			protocol.UserLeftPayload{UserID: sess.UserID()})
		if err == nil {
			// 房间随最后一人离开而消亡，此时广播自然无人接收
			_ = s.broadcaster.BroadcastToRoom(sess.RoomID(), env, sess.UserID())
		}
		s.monitor.SetActiveRooms(s.registry.RoomCount())
	}

	s.sessionManager.Remove(sess.GetID())
	s.monitor.DecOnlinePlayers()
	s.monitor.AddDroppedFrames(conn.Dropped())
	conn.Close()

	logger.Log.Infof("Connection closed, session ID: %s", sess.GetID())
}

// handleEnvelope 分发一帧；返回 false 表示应关闭连接
func (s *GameServer) handleEnvelope(sess *session.Session, env *protocol.Envelope) bool {
	msg, err := env.Decode()
	if err != nil {
		logger.Log.Warnf("Session %s sent undecodable frame: %v", sess.GetID(), err)
		return false
	}

	switch m := msg.(type) {
	case *protocol.JoinRequest:
		if sess.State() != session.StateConnected {
			logger.Log.Warnf("Session %s sent join while %s", sess.GetID(), sess.State())
			return false
		}
		return s.handleJoin(sess, m)

	case *protocol.MoveRequest:
		if sess.State() != session.StateJoined {
			return false
		}
		s.handleMove(sess, m)
		return true

	case *protocol.TeleportRequest:
		if sess.State() != session.StateJoined {
			return false
		}
		s.handleTeleport(sess, m)
		return true

	case *protocol.ChatRequest:
		if sess.State() != session.StateJoined {
			return false
		}
		s.handleChat(sess, m)
		return true
	}
	return false
}

// handleJoin 认证、登记房间成员并下发加入应答；任何失败都关闭连接，
// 且失败发生在产生成员表副作用之前
func (s *GameServer) handleJoin(sess *session.Session, req *protocol.JoinRequest) bool {
	userID, err := s.verifier.Verify(req.Credential)
	if err != nil {
		logger.Log.Warnf("Session %s join rejected: %v", sess.GetID(), err)
		return false
	}

	profile, err := s.profiles.Lookup(userID)
	if err != nil {
		logger.Log.Warnf("Session %s profile lookup failed for %s: %v", sess.GetID(), userID, err)
		return false
	}
	sess.SetProfile(profile)

	// 出生点在房间锁内挑选并随 Joined 状态一起落进会话，成员表可见
	// 之前就已完整；并发快照不会看到停在原点的半成品成员
	rm, err := s.registry.Join(req.RoomID, sess, func(space models.Space) models.Position {
		s.rngMutex.Lock()
		defer s.rngMutex.Unlock()
		return game.NewValidator(space).SpawnPosition(s.rng)
	})
	if err != nil {
		logger.Log.Warnf("Session %s join %s refused: %v", sess.GetID(), req.RoomID, err)
		return false
	}

	spawn := sess.Position()
	s.monitor.SetActiveRooms(s.registry.RoomCount())

	recent, err := s.chatGateway.Recent(req.RoomID)
	if err != nil {
		logger.Log.Warnf("Loading recent chat for %s failed: %v", req.RoomID, err)
		recent = nil
	}

	reply, err := protocol.Encode(protocol.ClassLifecycle, protocol.TypeRoomJoined, protocol.RoomJoinedPayload{
		UserID:   userID,
		Spawn:    spawn,
		Username: profile.Username,
		Avatar:   profile.Avatar,
		Users:    rm.MemberInfos(userID),
		RoomMeta: protocol.RoomMeta{
			RoomID: rm.ID,
			Name:   rm.Space.Name,
			Width:  rm.Space.Width,
			Height: rm.Space.Height,
		},
		RecentChat: recent,
	})
	if err != nil {
		return false
	}
	if err := sess.Send(reply); err != nil {
		return false
	}

	joined, err := protocol.Encode(protocol.ClassLifecycle, protocol.TypeUserJoined, protocol.UserJoinedPayload{
		UserID:   userID,
		X:        spawn.X,
		Y:        spawn.Y,
		Username: profile.Username,
		Avatar:   profile.Avatar,
	})
	if err == nil {
		_ = s.broadcaster.BroadcastToRoom(req.RoomID, joined, userID)
	}

	logger.Log.Infof("User %s joined room %s at (%d,%d)", userID, req.RoomID, spawn.X, spawn.Y)
	return true
}

// handleMove 校验单格位移；通过则更新权威位置并广播给其余成员，
// 否则仅向移动者回发权威位置
func (s *GameServer) handleMove(sess *session.Session, req *protocol.MoveRequest) {
	rm, exists := s.registry.GetRoom(sess.RoomID())
	if !exists {
		return
	}

	from := sess.Position()
	to := models.Position{X: req.X, Y: req.Y}

	if err := game.NewValidator(rm.Space).ValidateMove(from, to); err != nil {
		s.rejectMove(sess, from)
		return
	}

	sess.SetPosition(to)
	s.fanoutMove(sess, to, req.Direction)
}

// handleTeleport 瞬移旁路：跳过步长校验，仍检查边界与障碍
func (s *GameServer) handleTeleport(sess *session.Session, req *protocol.TeleportRequest) {
	rm, exists := s.registry.GetRoom(sess.RoomID())
	if !exists {
		return
	}

	to := models.Position{X: req.X, Y: req.Y}
	if err := game.NewValidator(rm.Space).ValidateTeleport(to); err != nil {
		s.rejectMove(sess, sess.Position())
		return
	}

	sess.SetPosition(to)
	s.fanoutMove(sess, to, "")
}

func (s *GameServer) rejectMove(sess *session.Session, authoritative models.Position) {
	s.monitor.IncRejectedMoves()
	env, err := protocol.Encode(protocol.ClassMovement, protocol.TypeMovementRejected,
		protocol.MovementRejectedPayload{X: authoritative.X, Y: authoritative.Y})
	if err != nil {
		return
	}
	_ = sess.Send(env)
}

func (s *GameServer) fanoutMove(sess *session.Session, to models.Position, direction string) {
	env, err := protocol.Encode(protocol.ClassMovement, protocol.TypeUserMoved, protocol.UserMovedPayload{
		UserID:    sess.UserID(),
		X:         to.X,
		Y:         to.Y,
		Direction: direction,
	})
	if err != nil {
		return
	}

	start := time.Now()
	_ = s.broadcaster.BroadcastToRoom(sess.RoomID(), env, sess.UserID())
	s.monitor.ObserveFanoutLatency(time.Since(start))
}

// handleChat 经由聊天网关持久化并广播；长度越界是非致命错误
func (s *GameServer) handleChat(sess *session.Session, req *protocol.ChatRequest) {
	_, err := s.chatGateway.Send(sess, req.Text, req.DisplayName)
	switch err {
	case nil:
		s.monitor.IncChatMessages()
	case chat.ErrTextTooLong, chat.ErrEmptyText:
		logger.Log.Warnf("Chat from %s rejected: %v", sess.UserID(), err)
	default:
		logger.Log.Errorf("Chat from %s failed: %v", sess.UserID(), err)
	}
}
