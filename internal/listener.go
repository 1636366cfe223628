package internal

// RoomListener 房間事件的接收端
//
// 回呼在房間鎖內依註冊順序同步呼叫，實作不可阻塞，也不可回頭呼叫同一個
// Room 的方法（會死鎖）。WebSocket 連線以 Subscription 實作，測試使用
// 記錄呼叫的 test double。
type RoomListener interface {
	OnPlayerJoined(player *Player)
	OnPlayerMoved(player *Player)
	OnPlayerDisconnected(player *Player)
	OnRoomDestroyed()
}
