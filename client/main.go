// client/main.go
//
// 参考客户端：连接服务器、join 指定房间，周期性随机走一步，并把
// 其他成员的 user-moved 事件喂给插值器，按渲染帧采样打印平滑位置。
// 报告注入与渲染采样跑在同一个事件循环上，插值器无需加锁。
package main

import (
	"encoding/json"
	"flag"
	"math/rand"
	"time"

	"github.com/gorilla/websocket"

	"github.com/gautam-divyanshu/2d-metaverse-sub001/auth"
	"github.com/gautam-divyanshu/2d-metaverse-sub001/interp"
	"github.com/gautam-divyanshu/2d-metaverse-sub001/logger"
	"github.com/gautam-divyanshu/2d-metaverse-sub001/models"
	"github.com/gautam-divyanshu/2d-metaverse-sub001/protocol"
)

var directions = []string{"up", "down", "left", "right"}

func main() {
	var (
		addr   = flag.String("addr", "ws://localhost:8080/ws", "server websocket URL")
		roomID = flag.String("room", "lobby", "room to join")
		userID = flag.String("user", "demo-user", "user identity to present")
		secret = flag.String("secret", "dev-secret", "hmac secret shared with the login service")
	)
	flag.Parse()

	logger.InitDevelopment()
	defer logger.Sync()

	credential, err := auth.IssueToken(*secret, *userID, time.Hour)
	if err != nil {
		logger.Log.Fatalf("issue token: %v", err)
	}

	conn, _, err := websocket.DefaultDialer.Dial(*addr, nil)
	if err != nil {
		logger.Log.Fatalf("dial %s: %v", *addr, err)
	}
	defer conn.Close()

	if err := send(conn, protocol.ClassLifecycle, protocol.TypeJoin, protocol.JoinRequest{
		RoomID:     *roomID,
		Credential: credential,
	}); err != nil {
		logger.Log.Fatalf("join: %v", err)
	}

	// 网络读在独立协程；事件经通道汇入下面的单线程循环
	events := make(chan *protocol.Envelope, 64)
	go func() {
		defer close(events)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var env protocol.Envelope
			if err := json.Unmarshal(data, &env); err != nil {
				continue
			}
			events <- &env
		}
	}()

	tracker := interp.NewTracker(interp.DefaultWindow, interp.DefaultCeiling)
	start := time.Now()
	tick := func() int64 { return time.Since(start).Milliseconds() }

	var self models.Position
	joined := false

	render := time.NewTicker(50 * time.Millisecond) // 渲染采样
	walk := time.NewTicker(400 * time.Millisecond)  // 随机移动
	defer render.Stop()
	defer walk.Stop()

	for {
		select {
		case env, ok := <-events:
			if !ok {
				logger.Log.Info("connection closed")
				return
			}
			handleEvent(env, tracker, tick(), &self, &joined)

		case <-walk.C:
			if !joined {
				continue
			}
			dir := directions[rand.Intn(len(directions))]
			next := self
			switch dir {
			case "up":
				next.Y--
			case "down":
				next.Y++
			case "left":
				next.X--
			case "right":
				next.X++
			}
			// 乐观走一步；非法时服务器会用 movement-rejected 纠正
			self = next
			if err := send(conn, protocol.ClassMovement, protocol.TypeMove, protocol.MoveRequest{
				X: next.X, Y: next.Y, Direction: dir,
			}); err != nil {
				logger.Log.Fatalf("send move: %v", err)
			}

		case <-render.C:
			for peerID, sample := range tracker.Positions(tick()) {
				logger.Log.Debugf("peer %s at (%.2f, %.2f) moving=%v",
					peerID, sample.Pos.X, sample.Pos.Y, sample.Moving)
			}
		}
	}
}

func handleEvent(env *protocol.Envelope, tracker *interp.Tracker, now int64, self *models.Position, joined *bool) {
	switch env.Type {
	case protocol.TypeRoomJoined:
		var p protocol.RoomJoinedPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return
		}
		*self = p.Spawn
		*joined = true
		for _, member := range p.Users {
			tracker.Observe(member.UserID, models.Position{X: member.X, Y: member.Y}, false, now)
		}
		logger.Log.Infof("joined %s as %s at (%d,%d), %d others present",
			p.RoomMeta.RoomID, p.Username, p.Spawn.X, p.Spawn.Y, len(p.Users))

	case protocol.TypeUserJoined:
		var p protocol.UserJoinedPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return
		}
		tracker.Observe(p.UserID, models.Position{X: p.X, Y: p.Y}, false, now)
		logger.Log.Infof("%s joined at (%d,%d)", p.Username, p.X, p.Y)

	case protocol.TypeUserMoved:
		var p protocol.UserMovedPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return
		}
		tracker.Observe(p.UserID, models.Position{X: p.X, Y: p.Y}, true, now)

	case protocol.TypeMovementRejected:
		var p protocol.MovementRejectedPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return
		}
		// 回弹到服务器权威位置
		self.X, self.Y = p.X, p.Y
		logger.Log.Warnf("move rejected, snapped back to (%d,%d)", p.X, p.Y)

	case protocol.TypeChatMessage:
		var p protocol.ChatMessagePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return
		}
		logger.Log.Infof("[chat #%d] %s: %s", p.ID, p.DisplayName, p.Text)

	case protocol.TypeUserLeft:
		var p protocol.UserLeftPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return
		}
		tracker.Remove(p.UserID)
		logger.Log.Infof("%s left", p.UserID)
	}
}

func send(conn *websocket.Conn, class, typ string, payload interface{}) error {
	env, err := protocol.Encode(class, typ, payload)
	if err != nil {
		return err
	}
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}
