package internal

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second // 小於 pongWait，留 6 秒余量
	maxMessageSize = 4096

	// DefaultSendBuffer 每條連線的待送訊息上限
	DefaultSendBuffer = 256
)

// Event 連線上傳送的訊息格式
type Event struct {
	Type string `json:"event"`
	Data any    `json:"data"`
}

// inboundEvent 客戶端送來的訊息
type inboundEvent struct {
	Type string          `json:"event"`
	Data json.RawMessage `json:"data"`
}

// WebSocketHub WebSocket 連接中心
//
// 每條連線在握手時出示 (roomID, sessionToken)，驗證通過後以
// Subscription 掛上房間事件流；驗證失敗立即以 policy violation 關閉，
// 不送出任何事件，也不透露是哪一半憑證錯誤。
type WebSocketHub struct {
	manager     *Manager
	logger      *slog.Logger
	upgrader    websocket.Upgrader
	sendBuffer  int
	connections map[*Connection]struct{}
	mu          sync.Mutex
}

// Connection WebSocket 連接，實作 Socket
type Connection struct {
	RoomID   string
	PlayerID string
	Conn     *websocket.Conn
	Hub      *WebSocketHub

	send chan []byte

	mu       sync.Mutex
	closed   bool
	lastPing time.Time
}

// NewWebSocketHub 創建 WebSocket Hub
func NewWebSocketHub(manager *Manager, logger *slog.Logger, sendBuffer int) *WebSocketHub {
	if sendBuffer <= 0 {
		sendBuffer = DefaultSendBuffer
	}
	return &WebSocketHub{
		manager: manager,
		logger:  logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		sendBuffer:  sendBuffer,
		connections: make(map[*Connection]struct{}),
	}
}

// ServeWS 處理 WebSocket 連接
//
// 握手參數：?roomID=...&sessionToken=...
func (hub *WebSocketHub) ServeWS(w http.ResponseWriter, r *http.Request) {
	roomID := r.URL.Query().Get("roomID")
	sessionToken := r.URL.Query().Get("sessionToken")

	ws, err := hub.upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.logger.Error("升級 WebSocket 失敗", "error", err)
		return
	}

	conn := &Connection{
		RoomID:   roomID,
		Conn:     ws,
		Hub:      hub,
		send:     make(chan []byte, hub.sendBuffer),
		lastPing: time.Now(),
	}

	sub, err := hub.manager.Subscribe(conn, roomID, sessionToken)
	if err != nil {
		reason := "invalid_session"
		if errors.Is(err, ErrRoomNotFound) || errors.Is(err, ErrRoomDestroyed) {
			reason = "unknown_room"
		}
		hub.logger.Debug("拒絕 WebSocket 連接",
			"room_id", roomID,
			"reason", reason)
		conn.reject()
		return
	}
	// 註冊 listener 後房間可能已在呼叫 Emit
	conn.mu.Lock()
	conn.PlayerID = sub.Session().Player.ID()
	conn.mu.Unlock()

	hub.register(conn)

	go conn.writePump()
	go conn.readPump(sub)

	hub.logger.Info("WebSocket 連接建立",
		"room_id", roomID,
		"player_id", conn.PlayerID)
}

// register 註冊連接
func (hub *WebSocketHub) register(conn *Connection) {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	hub.connections[conn] = struct{}{}
}

// unregister 取消註冊連接
func (hub *WebSocketHub) unregister(conn *Connection) {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	delete(hub.connections, conn)
}

// ConnectionCount 目前連接數
func (hub *WebSocketHub) ConnectionCount() int {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	return len(hub.connections)
}

// Stop 關閉所有連接
func (hub *WebSocketHub) Stop() {
	hub.mu.Lock()
	conns := make([]*Connection, 0, len(hub.connections))
	for conn := range hub.connections {
		conns = append(conns, conn)
	}
	hub.mu.Unlock()

	for _, conn := range conns {
		conn.Disconnect()
	}

	hub.logger.Info("WebSocket Hub 已停止")
}

// Emit 實作 Socket
//
// 非阻塞；待送佇列滿時直接斷線，不會跳過事件後繼續送後面的事件。
func (c *Connection) Emit(event string, data any) {
	message, err := json.Marshal(Event{Type: event, Data: data})
	if err != nil {
		c.Hub.logger.Error("序列化事件失敗", "error", err, "event", event)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	select {
	case c.send <- message:
	default:
		c.Hub.logger.Warn("連接緩衝區滿，關閉連接",
			"room_id", c.RoomID,
			"player_id", c.PlayerID)
		c.closeLocked()
	}
}

// Disconnect 實作 Socket：送完已排入的訊息後關閉
func (c *Connection) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
}

func (c *Connection) closeLocked() {
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// reject 驗證失敗：不送任何事件，直接關閉
func (c *Connection) reject() {
	deadline := time.Now().Add(time.Second)
	_ = c.Conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, ""), deadline)
	c.Conn.Close()
}

// LastPing 最後一次收到 pong 的時間
func (c *Connection) LastPing() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastPing
}

// readPump 讀取客戶端消息
//
// 60 秒內沒有任何訊息（包括 Pong）就視為斷線。結束時執行
// Subscription.HandleDisconnect。
func (c *Connection) readPump(sub *Subscription) {
	defer func() {
		sub.HandleDisconnect()
		c.Hub.unregister(c)
		c.Disconnect()
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	if err := c.Conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.Hub.logger.Error("設置讀取期限失敗", "error", err)
	}
	c.Conn.SetPongHandler(func(string) error {
		c.mu.Lock()
		c.lastPing = time.Now()
		c.mu.Unlock()
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.Hub.logger.Error("WebSocket 讀取錯誤",
					"error", err,
					"room_id", c.RoomID,
					"player_id", c.PlayerID)
			}
			return
		}

		if messageType == websocket.TextMessage {
			c.handleMessage(sub, message)
		}
	}
}

// writePump 寫入消息到客戶端，每 54 秒送一次 Ping
func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.Conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.Hub.logger.Error("設置寫入期限失敗", "error", err)
			}
			if !ok {
				// 送出關閉訊息，忽略錯誤（連接可能已關閉）
				_ = c.Conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.Conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.Hub.logger.Error("設置寫入期限失敗", "error", err)
			}
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage 處理客戶端消息
func (c *Connection) handleMessage(sub *Subscription, message []byte) {
	var msg inboundEvent
	if err := json.Unmarshal(message, &msg); err != nil {
		c.Hub.logger.Warn("解析客戶端消息失敗",
			"error", err,
			"room_id", c.RoomID,
			"player_id", c.PlayerID)
		return
	}

	switch msg.Type {
	case EventPlayerMovement:
		var loc Location
		if err := json.Unmarshal(msg.Data, &loc); err != nil {
			c.Hub.logger.Warn("無效的移動訊息", "error", err, "player_id", c.PlayerID)
			return
		}
		if err := loc.Validate(); err != nil {
			c.Hub.logger.Warn("無效的移動訊息", "error", err, "player_id", c.PlayerID)
			return
		}
		sub.HandleMovement(loc)
	default:
		c.Hub.logger.Debug("收到未知消息類型",
			"type", msg.Type,
			"room_id", c.RoomID,
			"player_id", c.PlayerID)
	}
}
