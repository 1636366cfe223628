package internal

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Rotation 玩家面向
type Rotation string

const (
	RotationFront Rotation = "front"
	RotationBack  Rotation = "back"
	RotationLeft  Rotation = "left"
	RotationRight Rotation = "right"
)

// Valid 檢查面向是否為合法值
func (r Rotation) Valid() bool {
	switch r {
	case RotationFront, RotationBack, RotationLeft, RotationRight:
		return true
	}
	return false
}

// Location 玩家在房間地圖上的位置
type Location struct {
	X        float64  `json:"x"`
	Y        float64  `json:"y"`
	Rotation Rotation `json:"rotation"`
	Moving   bool     `json:"moving"`
}

// Validate 檢查位置格式
func (l Location) Validate() error {
	if !l.Rotation.Valid() {
		return fmt.Errorf("%w: rotation %q", ErrInvalidArgument, l.Rotation)
	}
	return nil
}

// Player 玩家
//
// ID 在建立時產生且不再變動；位置只透過 Room.UpdatePlayerLocation 修改。
// 位置由 mu 保護，廣播時的 JSON 序列化可能與下一次移動同時發生。
type Player struct {
	id       string
	userName string

	mu       sync.RWMutex
	location Location
}

// NewPlayer 創建玩家，初始位置為原點、面向前方
func NewPlayer(userName string) *Player {
	return &Player{
		id:       uuid.NewString(),
		userName: userName,
		location: Location{Rotation: RotationFront},
	}
}

// ID 玩家 ID
func (p *Player) ID() string { return p.id }

// UserName 顯示名稱
func (p *Player) UserName() string { return p.userName }

// Location 目前位置的快照
func (p *Player) Location() Location {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.location
}

func (p *Player) setLocation(loc Location) {
	p.mu.Lock()
	p.location = loc
	p.mu.Unlock()
}

// playerJSON 與前端約定的玩家格式
type playerJSON struct {
	ID       string   `json:"_id"`
	UserName string   `json:"_userName"`
	Location Location `json:"location"`
}

// MarshalJSON 實作 json.Marshaler
func (p *Player) MarshalJSON() ([]byte, error) {
	return json.Marshal(playerJSON{
		ID:       p.id,
		UserName: p.userName,
		Location: p.Location(),
	})
}

// UnmarshalJSON 實作 json.Unmarshaler（測試端解析伺服器推送時使用）
func (p *Player) UnmarshalJSON(data []byte) error {
	var raw playerJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	p.id = raw.ID
	p.userName = raw.UserName
	p.setLocation(raw.Location)
	return nil
}
