package internal

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"
)

// DefaultMaxOccupancy 每個房間預設的人數上限（列表顯示用）
const DefaultMaxOccupancy = 50

// RoomUpdate 房間更新內容
//
// nil 表示「未提供」，與空字串、false 不同：未提供的欄位維持原值。
type RoomUpdate struct {
	FriendlyName     *string
	IsPubliclyListed *bool
}

// JoinResult 加入房間的結果
type JoinResult struct {
	PlayerID         string    `json:"coveyUserID"`
	SessionToken     string    `json:"coveySessionToken"`
	VideoToken       string    `json:"providerVideoToken"`
	CurrentPlayers   []*Player `json:"currentPlayers"`
	FriendlyName     string    `json:"friendlyName"`
	IsPubliclyListed bool      `json:"isPubliclyListed"`
}

// Manager 房間註冊表
//
// 由 main 建立一次並注入到 Handler 與 WebSocketHub，不使用全域單例。
// 鎖順序：Manager.mu → Room.mu。
type Manager struct {
	rooms        map[string]*Room // roomID -> Room
	order        []string         // 創建順序，讓列表穩定
	mu           sync.RWMutex
	video        VideoProvider
	maxOccupancy int
	logger       *slog.Logger
}

// ManagerOption 設定 Manager
type ManagerOption func(*Manager)

// WithMaxOccupancy 設定新房間的人數上限
func WithMaxOccupancy(n int) ManagerOption {
	return func(m *Manager) {
		if n > 0 {
			m.maxOccupancy = n
		}
	}
}

// NewManager 創建房間管理器
func NewManager(video VideoProvider, logger *slog.Logger, opts ...ManagerOption) *Manager {
	m := &Manager{
		rooms:        make(map[string]*Room),
		video:        video,
		maxOccupancy: DefaultMaxOccupancy,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CreateRoom 創建房間
//
// friendlyName 為空時回傳 ErrInvalidArgument，且不註冊任何房間。
func (m *Manager) CreateRoom(friendlyName string, isPubliclyListed bool) (*Room, error) {
	if friendlyName == "" {
		return nil, fmt.Errorf("%w: 房間名稱不能為空", ErrInvalidArgument)
	}

	password := generateSecret(12)

	m.mu.Lock()
	roomID := m.generateID("room")
	for m.rooms[roomID] != nil {
		roomID = m.generateID("room")
	}
	room := NewRoom(roomID, friendlyName, isPubliclyListed, password, m.maxOccupancy, m.video)
	m.rooms[roomID] = room
	m.order = append(m.order, roomID)
	m.mu.Unlock()

	m.logger.Info("房間已創建",
		"room_id", roomID,
		"name", friendlyName,
		"public", isPubliclyListed)

	return room, nil
}

// GetRoom 獲取房間；不存在不是錯誤，由呼叫端決定處理方式
func (m *Manager) GetRoom(roomID string) (*Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	room, exists := m.rooms[roomID]
	return room, exists
}

// ListPublicRooms 列出公開房間（依創建順序）
func (m *Manager) ListPublicRooms() []RoomSummary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]RoomSummary, 0, len(m.order))
	for _, roomID := range m.order {
		room := m.rooms[roomID]
		if !room.IsPubliclyListed() {
			continue
		}
		result = append(result, room.Summary())
	}
	return result
}

// UpdateRoom 更新房間名稱或公開狀態
//
// 房間不存在或密碼錯誤回傳 false。密碼正確但沒有任何欄位時仍回傳 true。
func (m *Manager) UpdateRoom(roomID, password string, update RoomUpdate) bool {
	m.mu.RLock()
	room, exists := m.rooms[roomID]
	m.mu.RUnlock()

	if !exists || !room.ValidatePassword(password) {
		return false
	}

	room.applyUpdate(update)

	m.logger.Info("房間已更新", "room_id", roomID)
	return true
}

// DeleteRoom 刪除房間
//
// 在寫鎖內先 DisconnectAllPlayers 再移除，刪除開始後查詢不到此房間，
// 進行中的 AddPlayer 也只會看到 destroyed 狀態。
func (m *Manager) DeleteRoom(roomID, password string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	room, exists := m.rooms[roomID]
	if !exists || !room.ValidatePassword(password) {
		return false
	}

	room.DisconnectAllPlayers()
	m.removeRoom(roomID)

	m.logger.Info("房間已刪除", "room_id", roomID)
	return true
}

// JoinRoom 加入房間並發出 session
//
// AddPlayer 期間影音 token 的取得不可取消；若回來時 ctx 已結束（呼叫端
// 已離開），新建的 session 立即銷毀。
func (m *Manager) JoinRoom(ctx context.Context, roomID, userName string) (*JoinResult, error) {
	room, exists := m.GetRoom(roomID)
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrRoomNotFound, roomID)
	}

	player := NewPlayer(userName)
	session, err := room.AddPlayer(context.WithoutCancel(ctx), player)
	if err != nil {
		m.logger.Warn("加入房間失敗",
			"room_id", roomID,
			"user_name", userName,
			"error", err)
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		room.DestroySession(session)
		return nil, err
	}

	m.logger.Info("玩家加入房間",
		"room_id", roomID,
		"player_id", player.ID(),
		"user_name", userName)

	return &JoinResult{
		PlayerID:         player.ID(),
		SessionToken:     session.SessionToken,
		VideoToken:       session.VideoToken,
		CurrentPlayers:   room.Players(),
		FriendlyName:     room.FriendlyName(),
		IsPubliclyListed: room.IsPubliclyListed(),
	}, nil
}

// Authenticate 驗證 (roomID, sessionToken)
//
// 兩種失敗（房間不存在、token 無效）只用於診斷，對連線的處理相同。
func (m *Manager) Authenticate(roomID, sessionToken string) (*Room, *PlayerSession, error) {
	room, exists := m.GetRoom(roomID)
	if !exists {
		return nil, nil, ErrRoomNotFound
	}

	session, ok := room.SessionByToken(sessionToken)
	if !ok {
		return nil, nil, ErrInvalidSession
	}
	return room, session, nil
}

// removeRoom 移除房間（需持有寫鎖）
func (m *Manager) removeRoom(roomID string) {
	delete(m.rooms, roomID)
	if idx := slices.Index(m.order, roomID); idx >= 0 {
		m.order = slices.Delete(m.order, idx, idx+1)
	}
}

// Stop 停止管理器，解散所有房間
func (m *Manager) Stop() {
	m.mu.Lock()
	for _, roomID := range m.order {
		m.rooms[roomID].DisconnectAllPlayers()
	}
	m.rooms = make(map[string]*Room)
	m.order = nil
	m.mu.Unlock()

	m.logger.Info("房間管理器已停止")
}

// Stats 獲取統計資訊
func (m *Manager) Stats() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()

	publicRooms := 0
	totalPlayers := 0
	for _, room := range m.rooms {
		if room.IsPubliclyListed() {
			publicRooms++
		}
		totalPlayers += room.Occupancy()
	}

	return map[string]any{
		"total_rooms":   len(m.rooms),
		"public_rooms":  publicRooms,
		"total_players": totalPlayers,
	}
}

// generateID 生成唯一 ID
func (m *Manager) generateID(prefix string) string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("%s_%d", prefix, time.Now().UnixNano())
	}
	return fmt.Sprintf("%s_%s", prefix, hex.EncodeToString(b))
}

// generateSecret 生成 n bytes 的隨機密碼（hex）
func generateSecret(n int) string {
	b := make([]byte, n)
	// crypto/rand.Read 在 Go 1.24 之後不會回傳錯誤
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
