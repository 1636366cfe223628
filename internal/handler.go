package internal

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"
)

// Handler HTTP 請求處理器
//
// 回應一律包在 {isOK, message, response} 信封內，與前端 client 約定一致。
type Handler struct {
	manager *Manager
	logger  *slog.Logger
}

// NewHandler 創建 HTTP 處理器
func NewHandler(manager *Manager, logger *slog.Logger) *Handler {
	return &Handler{
		manager: manager,
		logger:  logger,
	}
}

// Routes 設定路由
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	wrap := func(handler http.HandlerFunc) http.HandlerFunc {
		return h.recoverer(h.loggerMiddleware(handler))
	}

	mux.HandleFunc("POST /rooms", wrap(h.createRoom))
	mux.HandleFunc("GET /rooms", wrap(h.listRooms))
	mux.HandleFunc("PATCH /rooms/{room_id}", wrap(h.updateRoom))
	mux.HandleFunc("DELETE /rooms/{room_id}/{password}", wrap(h.deleteRoom))
	mux.HandleFunc("POST /sessions", wrap(h.joinRoom))

	mux.HandleFunc("GET /health", wrap(h.health))
	mux.HandleFunc("GET /stats", wrap(h.stats))

	return mux
}

// envelope 回應信封
type envelope struct {
	IsOK     bool   `json:"isOK"`
	Message  string `json:"message,omitempty"`
	Response any    `json:"response,omitempty"`
}

// 請求結構
type createRoomRequest struct {
	FriendlyName     string `json:"friendlyName"`
	IsPubliclyListed bool   `json:"isPubliclyListed"`
}

type createRoomResponse struct {
	RoomID   string `json:"coveyRoomID"`
	Password string `json:"coveyRoomPassword"`
}

// updateRoomRequest 指標欄位區分「未提供」與零值
type updateRoomRequest struct {
	Password         string  `json:"coveyRoomPassword"`
	FriendlyName     *string `json:"friendlyName,omitempty"`
	IsPubliclyListed *bool   `json:"isPubliclyListed,omitempty"`
}

type joinRoomRequest struct {
	RoomID   string `json:"coveyRoomID"`
	UserName string `json:"userName"`
}

type listRoomsResponse struct {
	Rooms []RoomSummary `json:"rooms"`
}

// createRoom 創建房間
func (h *Handler) createRoom(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.errorResponse(w, "無效的請求格式", http.StatusBadRequest)
		return
	}

	room, err := h.manager.CreateRoom(req.FriendlyName, req.IsPubliclyListed)
	if err != nil {
		h.errorResponse(w, err.Error(), statusFor(err))
		return
	}

	h.okResponse(w, createRoomResponse{
		RoomID:   room.ID,
		Password: room.Password(),
	}, http.StatusCreated)
}

// listRooms 列出公開房間
func (h *Handler) listRooms(w http.ResponseWriter, r *http.Request) {
	h.okResponse(w, listRoomsResponse{
		Rooms: h.manager.ListPublicRooms(),
	}, http.StatusOK)
}

// updateRoom 更新房間
func (h *Handler) updateRoom(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("room_id")

	var req updateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.errorResponse(w, "無效的請求格式", http.StatusBadRequest)
		return
	}

	// 有提供但為空字串的名稱在邊界層拒絕
	if req.FriendlyName != nil && *req.FriendlyName == "" {
		h.errorResponse(w, "房間名稱不能為空", http.StatusBadRequest)
		return
	}

	ok := h.manager.UpdateRoom(roomID, req.Password, RoomUpdate{
		FriendlyName:     req.FriendlyName,
		IsPubliclyListed: req.IsPubliclyListed,
	})
	if !ok {
		h.errorResponse(w, "無效的房間 ID 或密碼", http.StatusBadRequest)
		return
	}

	h.okResponse(w, nil, http.StatusOK)
}

// deleteRoom 刪除房間
func (h *Handler) deleteRoom(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("room_id")
	password := r.PathValue("password")

	if !h.manager.DeleteRoom(roomID, password) {
		h.errorResponse(w, "無效的房間 ID 或密碼", http.StatusBadRequest)
		return
	}

	h.okResponse(w, nil, http.StatusOK)
}

// joinRoom 加入房間（發出 session）
func (h *Handler) joinRoom(w http.ResponseWriter, r *http.Request) {
	var req joinRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.errorResponse(w, "無效的請求格式", http.StatusBadRequest)
		return
	}

	if req.UserName == "" {
		h.errorResponse(w, "玩家名稱不能為空", http.StatusBadRequest)
		return
	}

	result, err := h.manager.JoinRoom(r.Context(), req.RoomID, req.UserName)
	if err != nil {
		h.errorResponse(w, err.Error(), statusFor(err))
		return
	}

	h.okResponse(w, result, http.StatusOK)
}

// health 健康檢查
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	h.okResponse(w, map[string]any{
		"status": "healthy",
		"time":   time.Now().Unix(),
	}, http.StatusOK)
}

// stats 統計資訊
func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	h.okResponse(w, h.manager.Stats(), http.StatusOK)
}

// statusFor 錯誤分類對應的 HTTP 狀態碼
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrRoomNotFound), errors.Is(err, ErrRoomDestroyed):
		return http.StatusNotFound
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrInvalidSession):
		return http.StatusUnauthorized
	case errors.Is(err, ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// jsonResponse 返回 JSON 響應
func (h *Handler) jsonResponse(w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("編碼 JSON 失敗", "error", err)
	}
}

// okResponse 返回成功響應
func (h *Handler) okResponse(w http.ResponseWriter, response any, status int) {
	h.jsonResponse(w, envelope{IsOK: true, Response: response}, status)
}

// errorResponse 返回錯誤響應
func (h *Handler) errorResponse(w http.ResponseWriter, message string, status int) {
	h.jsonResponse(w, envelope{IsOK: false, Message: message}, status)
}

// loggerMiddleware 日誌中間件
func (h *Handler) loggerMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next(ww, r)

		h.logger.Info("HTTP 請求",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.statusCode,
			"duration", time.Since(start))
	}
}

// recoverer panic 恢復中間件
func (h *Handler) recoverer(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				h.logger.Error("處理請求時發生 panic",
					"error", err,
					"method", r.Method,
					"path", r.URL.Path)

				h.errorResponse(w, "內部伺服器錯誤", http.StatusInternalServerError)
			}
		}()

		next(w, r)
	}
}

// responseWriter 包裝 ResponseWriter 以獲取狀態碼
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}
