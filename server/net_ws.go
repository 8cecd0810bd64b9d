package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// ClientConn 负责发送（写）数据到客户端的轻量包装
type ClientConn struct {
	id string
	ws *websocket.Conn

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

func NewClientConn(ws *websocket.Conn) *ClientConn {
	return &ClientConn{
		id:   uuid.NewString(),
		ws:   ws,
		send: make(chan []byte, 64),
	}
}

// ID 连接标识
func (c *ClientConn) ID() string { return c.id }

// Enqueue 将要发送的消息压入队列（非阻塞，满则丢弃）
func (c *ClientConn) Enqueue(b []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- b:
	default:
		// 为了实时性，丢弃消息（防止阻塞 Tick）
	}
}

// Close 关闭发送队列与底层连接（可重复调用）
func (c *ClientConn) Close() {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		// 关闭发送通道以结束写协程
		close(c.send)
	}
	c.mu.Unlock()
	_ = c.ws.Close()
}

// writePump 独立协程，负责从 send 队列写出到 WS，并定期发送 ping
func (c *ClientConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump 读取客户端消息并交给会话分发；退出即视为断线
func (c *ClientConn) readPump(s *session) {
	defer c.Close()
	defer s.close()
	c.ws.SetReadLimit(1 << 20) // 1MB
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error { return c.ws.SetReadDeadline(time.Now().Add(pongWait)) })

	for {
		_, payload, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				Log.Debugf("conn %s read: %v", c.id, err)
			}
			return
		}
		im, err := DecodeInput(payload)
		if err != nil {
			Log.Debugf("conn %s: %v", c.id, err)
			continue
		}
		s.dispatch(im)
	}
}

// session 单个连接的状态；只由该连接的读协程访问
type session struct {
	conn  Conn
	rooms *RoomManager
	cfg   Config

	room         *Room
	replayGroup  string
	replayCancel context.CancelFunc
}

func newSession(c Conn, rooms *RoomManager, cfg Config) *session {
	return &session{conn: c, rooms: rooms, cfg: cfg}
}

func (s *session) dispatch(im InputMessage) {
	switch im.Type {
	case MsgJoin:
		s.join(im.RoomID(), im.Team)
	case MsgMove:
		dir, ok := ParseDirection(im.Direction)
		if !ok {
			Log.Debugf("conn %s: unknown direction %q", s.conn.ID(), im.Direction)
			return
		}
		if s.room == nil {
			return
		}
		s.room.OnInput(Input{ConnID: s.conn.ID(), Command: dir})
	case MsgReplay:
		s.replay(im.RoomID(), im.File)
	default:
		Log.Debugf("conn %s: unknown message type %q", s.conn.ID(), im.Type)
	}
}

// join 加入房间；已在其他房间时先离开
func (s *session) join(roomID string, team *string) {
	if s.room != nil && s.room.ID != roomID {
		s.leaveRoom()
	}
	// 房间恰好因内部错误退出时，换一个新房间重试一次
	for attempt := 0; attempt < 2; attempt++ {
		if s.room == nil {
			s.room = s.rooms.Acquire(roomID)
		}
		_, err := s.room.RequestJoin(s.conn, team)
		if err == nil {
			return
		}
		if !errors.Is(err, ErrRoomClosed) {
			Log.Warnf("conn %s join room=%s: %v", s.conn.ID(), roomID, err)
		}
		s.leaveRoom()
	}
}

func (s *session) leaveRoom() {
	if s.room == nil {
		return
	}
	if err := s.room.RequestLeave(s.conn.ID()); err != nil && !errors.Is(err, ErrRoomClosed) {
		Log.Warnf("conn %s leave room=%s: %v", s.conn.ID(), s.room.ID, err)
	}
	s.rooms.Release(s.room)
	s.room = nil
}

// replay 加入回放组并在独立协程中推送录像；文件错误时静默放弃
func (s *session) replay(roomID, file string) {
	s.stopReplay()
	s.replayGroup = ReplayGroup(roomID)
	s.rooms.JoinReplay(s.replayGroup)

	ctx, cancel := context.WithCancel(context.Background())
	s.replayCancel = cancel
	go func() {
		rp, err := LoadReplay(s.cfg.SaveDir, file)
		if err != nil {
			Log.Debugf("conn %s replay %q: %v", s.conn.ID(), file, err)
			return
		}
		PlayReplay(ctx, s.conn, rp, s.cfg.Delay.Default)
	}()
}

func (s *session) stopReplay() {
	if s.replayCancel != nil {
		s.replayCancel()
		s.replayCancel = nil
	}
	if s.replayGroup != "" {
		s.rooms.LeaveReplay(s.replayGroup)
		s.replayGroup = ""
	}
}

// close 连接断开：停止回放，离开房间
func (s *session) close() {
	s.stopReplay()
	s.leaveRoom()
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// 演示环境：允许所有来源（生产环境需严格限制）
		return true
	},
}

// HandleWS WebSocket 接入；房间与队伍通过 join 消息指定
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		Log.Warnf("upgrade error: %v", err)
		return
	}

	client := NewClientConn(ws)
	Log.Debugf("conn %s connected from %s", client.ID(), r.RemoteAddr)

	go client.writePump()
	go client.readPump(newSession(client, s.rooms, s.cfg))
}
