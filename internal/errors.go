package internal

import "errors"

// 錯誤分類
//
//   - NotFound：ErrRoomNotFound、ErrRoomDestroyed
//   - Unauthorized：ErrUnauthorized、ErrInvalidSession
//   - InvalidArgument：ErrInvalidArgument
//   - UpstreamFailure：ErrUpstream（包裝影音服務的原始錯誤）
//
// 呼叫端一律使用 errors.Is 判斷，不比對錯誤字串。
var (
	ErrRoomNotFound    = errors.New("房間不存在")
	ErrRoomDestroyed   = errors.New("房間已關閉")
	ErrUnauthorized    = errors.New("密碼錯誤")
	ErrInvalidSession  = errors.New("無效的 session token")
	ErrInvalidArgument = errors.New("無效的參數")
	ErrUpstream        = errors.New("影音服務錯誤")
)
