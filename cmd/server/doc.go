// covey-rooms 房間協調服務。
//
// 多人虛擬空間的後端：管理房間註冊表、發出玩家 session 與影音 token，
// 並透過 WebSocket 把房間內的加入、移動、離開事件推送給每個已驗證的連線。
//
// # 房間管理
//
// HTTP 介面（回應一律為 {isOK, message, response}）：
//   - POST   /rooms                      創建房間，回傳 coveyRoomID 與修改密碼
//   - GET    /rooms                      列出公開房間
//   - PATCH  /rooms/{roomID}             以密碼修改名稱或公開狀態
//   - DELETE /rooms/{roomID}/{password}  以密碼刪除房間，所有連線收到 roomClosing
//   - POST   /sessions                   加入房間，取得 session token 與影音 token
//   - GET    /health、GET /stats
//
// # WebSocket 通訊
//
// 連線時出示加入房間取得的憑證：
//
//	ws://localhost:8081/ws?roomID=room_xxx&sessionToken=yyy
//
// 驗證失敗的連線立即以 policy violation 關閉。之後的訊息格式為
// {"event": ..., "data": ...}：
//   - 伺服器推送：newPlayer、playerMoved、playerDisconnect、roomClosing
//   - 客戶端送出：playerMovement，data 為 {x, y, rotation, moving}
//
// 心跳：每 54 秒 Ping，60 秒內沒有回應視為斷線。
//
// # 架構設計
//
//   - Handler 層：HTTP 請求與回應
//   - Manager 層：房間註冊表、密碼驗證、session 驗證
//   - Room 層：單一房間的權威狀態與 listener fan-out
//   - Subscription：把已驗證的連線接到房間事件流
//   - WebSocketHub：連線讀寫與心跳
//
// 鎖順序固定為 Manager → Room，fan-out 在房間鎖內依註冊順序同步進行。
//
// # 配置選項
//
// 預設值 → 設定檔（--config）→ COVEY_ 環境變數 → 命令列參數：
//   - --port：服務監聽端口（預設 8081）
//   - --log.level、--log.format：日誌級別與格式
//   - --room.maxOccupancy：每房間人數上限（列表顯示用）
//   - COVEY_VIDEO_ACCOUNTSID、COVEY_VIDEO_APIKEYSID、COVEY_VIDEO_APIKEYSECRET：
//     影音服務憑證，未設定時使用本地開發用金鑰
package main
