package internal

import "github.com/google/uuid"

// PlayerSession 玩家與房間的綁定
//
// SessionToken 是連線訂閱房間事件時唯一的憑證，只在 session 仍存在於
// 房間的 live-session 集合時有效。VideoToken 由影音服務發出，核心不解讀。
type PlayerSession struct {
	Player       *Player
	SessionToken string
	RoomID       string
	VideoToken   string
}

func newPlayerSession(player *Player, roomID, videoToken string) *PlayerSession {
	return &PlayerSession{
		Player:       player,
		SessionToken: uuid.NewString(),
		RoomID:       roomID,
		VideoToken:   videoToken,
	}
}
