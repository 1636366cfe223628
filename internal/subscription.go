package internal

import "sync"

// 伺服器推送給客戶端的事件名稱
const (
	EventNewPlayer        = "newPlayer"
	EventPlayerMoved      = "playerMoved"
	EventPlayerDisconnect = "playerDisconnect"
	EventRoomClosing      = "roomClosing"

	// 客戶端送來的事件
	EventPlayerMovement = "playerMovement"
)

// Socket 訂閱協議需要的連線能力
//
// Emit 不可阻塞；Disconnect 強制關閉連線，可重複呼叫。
type Socket interface {
	Emit(event string, data any)
	Disconnect()
}

// Subscription 一條已驗證連線與房間事件流之間的橋接
//
// 對房間而言它是 RoomListener；對連線而言它負責把移動訊息轉交給
// Room.UpdatePlayerLocation，並在斷線時拆除 session。
// room 只是關聯，不控制房間的生命週期。
type Subscription struct {
	socket  Socket
	room    *Room
	session *PlayerSession

	teardown sync.Once
}

// Session 此連線對應的 session
func (s *Subscription) Session() *PlayerSession { return s.session }

// OnPlayerJoined 實作 RoomListener
func (s *Subscription) OnPlayerJoined(player *Player) {
	s.socket.Emit(EventNewPlayer, player)
}

// OnPlayerMoved 實作 RoomListener
func (s *Subscription) OnPlayerMoved(player *Player) {
	s.socket.Emit(EventPlayerMoved, player)
}

// OnPlayerDisconnected 實作 RoomListener
func (s *Subscription) OnPlayerDisconnected(player *Player) {
	s.socket.Emit(EventPlayerDisconnect, player)
}

// OnRoomDestroyed 實作 RoomListener：通知後強制斷線
func (s *Subscription) OnRoomDestroyed() {
	s.socket.Emit(EventRoomClosing, nil)
	s.socket.Disconnect()
}

// HandleMovement 處理本連線玩家的移動
//
// 只能移動 session 綁定的玩家，這裡就是信任邊界。
func (s *Subscription) HandleMovement(location Location) {
	s.room.UpdatePlayerLocation(s.session.Player, location)
}

// HandleDisconnect 連線中斷時的拆除
//
// 先移除 listener 再銷毀 session，斷線的連線不會收到自己的
// playerDisconnect。只執行一次。
func (s *Subscription) HandleDisconnect() {
	s.teardown.Do(func() {
		s.room.RemoveRoomListener(s)
		s.room.DestroySession(s.session)
	})
}

// Subscribe 驗證 (roomID, sessionToken) 並把 socket 掛上房間事件流
//
// 驗證失敗回傳 ErrRoomNotFound 或 ErrInvalidSession，呼叫端應直接斷線，
// 不送出任何事件。
func (m *Manager) Subscribe(socket Socket, roomID, sessionToken string) (*Subscription, error) {
	room, session, err := m.Authenticate(roomID, sessionToken)
	if err != nil {
		return nil, err
	}

	sub := &Subscription{
		socket:  socket,
		room:    room,
		session: session,
	}

	if !room.AddRoomListener(sub) {
		return nil, ErrRoomDestroyed
	}

	// 驗證與註冊之間 session 可能已被銷毀
	if _, ok := room.SessionByToken(sessionToken); !ok {
		room.RemoveRoomListener(sub)
		return nil, ErrInvalidSession
	}

	return sub, nil
}
