package internal

import (
	"context"
	"crypto/subtle"
	"fmt"
	"slices"
	"sync"
	"time"
)

// 系統設計問題：
//   多個連線同時對同一個房間加入、移動、離開，如何維持一致的共享狀態，
//   並保證每個 listener 依到達順序、恰好一次收到每個事件？
//
// 設計方案：
//   ✅ 每個房間一把 Mutex - 房間內操作序列化，不同房間互不影響
//   ✅ 同步 fan-out - 依 listener 註冊順序呼叫，測試可斷言呼叫順序
//   ✅ 先提交狀態再廣播 - listener 看到的通知一定有對應的已提交狀態
//   ✅ 有限狀態機 - active → destroyed（終態）

// RoomStatus 房間狀態
type RoomStatus string

const (
	StatusActive    RoomStatus = "active"    // 接受加入、移動、訂閱
	StatusDestroyed RoomStatus = "destroyed" // 已解散，不再接受任何操作
)

// RoomSummary 公開房間列表中的一筆
type RoomSummary struct {
	FriendlyName     string `json:"friendlyName"`
	RoomID           string `json:"coveyRoomID"`
	CurrentOccupancy int    `json:"currentOccupancy"`
	MaxOccupancy     int    `json:"maximumOccupancy"`
}

// Room 房間控制器
//
// 擁有房間的權威狀態：session 集合、listener 集合、房間資訊與修改密碼。
// sessions 與 listeners 只在 mu 內讀寫；fan-out 也在 mu 內進行，
// 因此同一房間的 add/move/destroy/disconnect-all 不會交錯。
type Room struct {
	ID           string    `json:"coveyRoomID"`
	MaxOccupancy int       `json:"maximumOccupancy"`
	CreatedAt    time.Time `json:"createdAt"`

	password string
	video    VideoProvider

	mu               sync.Mutex
	friendlyName     string
	isPubliclyListed bool
	status           RoomStatus
	sessions         []*PlayerSession // 依加入順序
	listeners        []RoomListener   // 依註冊順序，無重複
}

// NewRoom 創建新房間
func NewRoom(id, friendlyName string, isPubliclyListed bool, password string, maxOccupancy int, video VideoProvider) *Room {
	return &Room{
		ID:               id,
		MaxOccupancy:     maxOccupancy,
		CreatedAt:        time.Now(),
		password:         password,
		video:            video,
		friendlyName:     friendlyName,
		isPubliclyListed: isPubliclyListed,
		status:           StatusActive,
	}
}

// AddPlayer 加入玩家
//
// 流程：
//  1. 向影音服務取得 token（不持有任何鎖）；失敗時不留下任何狀態
//  2. 鎖住房間，若已解散回傳 ErrRoomDestroyed
//  3. 產生新的 session token 並加入 session 集合
//  4. 依註冊順序通知所有 listener OnPlayerJoined
func (r *Room) AddPlayer(ctx context.Context, player *Player) (*PlayerSession, error) {
	videoToken, err := r.video.IssueToken(ctx, r.ID, player.ID())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status == StatusDestroyed {
		return nil, ErrRoomDestroyed
	}

	session := newPlayerSession(player, r.ID, videoToken)
	r.sessions = append(r.sessions, session)

	for _, l := range r.listeners {
		l.OnPlayerJoined(player)
	}

	return session, nil
}

// UpdatePlayerLocation 更新玩家位置並通知所有 listener
//
// 這裡不檢查玩家是否屬於此房間，信任邊界在 Subscription。
func (r *Room) UpdatePlayerLocation(player *Player, location Location) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status == StatusDestroyed {
		return
	}

	player.setLocation(location)

	for _, l := range r.listeners {
		l.OnPlayerMoved(player)
	}
}

// DestroySession 移除 session 並通知 OnPlayerDisconnected
//
// session 不存在時為 no-op（冪等）。
func (r *Room) DestroySession(session *PlayerSession) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := slices.Index(r.sessions, session)
	if idx < 0 {
		return
	}
	r.sessions = slices.Delete(r.sessions, idx, idx+1)

	for _, l := range r.listeners {
		l.OnPlayerDisconnected(session.Player)
	}
}

// DisconnectAllPlayers 解散房間
//
// 每個 listener 恰好收到一次 OnRoomDestroyed，接著清空 session 與
// listener 集合並進入 destroyed 終態。重複呼叫為 no-op。
func (r *Room) DisconnectAllPlayers() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status == StatusDestroyed {
		return
	}

	for _, l := range r.listeners {
		l.OnRoomDestroyed()
	}

	r.sessions = nil
	r.listeners = nil
	r.status = StatusDestroyed
}

// AddRoomListener 註冊 listener
//
// 重複註冊會被忽略；房間已解散時回傳 false。
func (r *Room) AddRoomListener(listener RoomListener) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status == StatusDestroyed {
		return false
	}
	if !slices.Contains(r.listeners, listener) {
		r.listeners = append(r.listeners, listener)
	}
	return true
}

// RemoveRoomListener 取消註冊，之後的廣播不會再送達；不存在時為 no-op
func (r *Room) RemoveRoomListener(listener RoomListener) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if idx := slices.Index(r.listeners, listener); idx >= 0 {
		r.listeners = slices.Delete(r.listeners, idx, idx+1)
	}
}

// SessionByToken 以 token 查詢 live session
func (r *Room) SessionByToken(token string) (*PlayerSession, bool) {
	if token == "" {
		return nil, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range r.sessions {
		if s.SessionToken == token && s.RoomID == r.ID {
			return s, true
		}
	}
	return nil, false
}

// Players 目前在房間內的玩家（依加入順序）
func (r *Room) Players() []*Player {
	r.mu.Lock()
	defer r.mu.Unlock()

	players := make([]*Player, 0, len(r.sessions))
	for _, s := range r.sessions {
		players = append(players, s.Player)
	}
	return players
}

// Occupancy 目前人數
func (r *Room) Occupancy() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// ListenerCount 目前訂閱數
func (r *Room) ListenerCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.listeners)
}

// FriendlyName 房間名稱
func (r *Room) FriendlyName() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.friendlyName
}

// IsPubliclyListed 是否出現在公開列表
func (r *Room) IsPubliclyListed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.isPubliclyListed
}

// Status 房間狀態
func (r *Room) Status() RoomStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// IsDestroyed 是否已解散
func (r *Room) IsDestroyed() bool {
	return r.Status() == StatusDestroyed
}

// Summary 列表用的摘要
func (r *Room) Summary() RoomSummary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return RoomSummary{
		FriendlyName:     r.friendlyName,
		RoomID:           r.ID,
		CurrentOccupancy: len(r.sessions),
		MaxOccupancy:     r.MaxOccupancy,
	}
}

// ValidatePassword 驗證修改密碼（完全相符）
func (r *Room) ValidatePassword(password string) bool {
	return subtle.ConstantTimeCompare([]byte(r.password), []byte(password)) == 1
}

// Password 修改密碼，只在創建時回傳給房主
func (r *Room) Password() string {
	return r.password
}

// applyUpdate 套用有提供的欄位
func (r *Room) applyUpdate(update RoomUpdate) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if update.FriendlyName != nil {
		r.friendlyName = *update.FriendlyName
	}
	if update.IsPubliclyListed != nil {
		r.isPubliclyListed = *update.IsPubliclyListed
	}
}
