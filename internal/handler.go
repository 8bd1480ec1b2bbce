package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/koopa0/system-design/14-player-ranking/pkg/errors"
	applog "github.com/koopa0/system-design/14-player-ranking/pkg/logger"
)

// ReadinessCheck 就緒檢查項目
type ReadinessCheck struct {
	Name string
	Ping func(ctx context.Context) error
}

// Handler HTTP 請求處理器（遊戲伺服器與排名服務之間的邊界）
type Handler struct {
	service      *Service
	roster       *Roster
	capabilities CapabilityReader
	checks       []ReadinessCheck
	logger       *slog.Logger
}

// NewHandler 創建 HTTP 處理器；capabilities 可為 nil
func NewHandler(service *Service, roster *Roster, capabilities CapabilityReader, logger *slog.Logger, checks ...ReadinessCheck) *Handler {
	return &Handler{
		service:      service,
		roster:       roster,
		capabilities: capabilities,
		checks:       checks,
		logger:       logger,
	}
}

// Routes 設定路由
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	// 中間件鏈：請求 ID -> 日誌 -> 恢復 -> 業務處理
	wrap := func(handler http.HandlerFunc) http.HandlerFunc {
		return h.requestID(h.loggerMiddleware(h.recoverer(handler)))
	}

	// 會話
	mux.HandleFunc("POST /api/v1/sessions/{slot}", wrap(h.join))
	mux.HandleFunc("DELETE /api/v1/sessions/{slot}", wrap(h.disconnect))
	mux.HandleFunc("GET /api/v1/sessions/{slot}", wrap(h.session))
	mux.HandleFunc("POST /api/v1/sessions/{slot}/points", wrap(h.modifyPoints))
	mux.HandleFunc("POST /api/v1/sessions/{slot}/stats", wrap(h.modifyStat))

	// 遊戲事件
	mux.HandleFunc("POST /api/v1/kills", wrap(h.kill))
	mux.HandleFunc("POST /api/v1/rounds/end", wrap(h.endRound))
	mux.HandleFunc("PUT /api/v1/warmup", wrap(h.warmup))

	// 查詢
	mux.HandleFunc("GET /api/v1/players/{identity}/placement", wrap(h.placement))
	mux.HandleFunc("GET /api/v1/players/{identity}/capabilities", wrap(h.playerCapabilities))
	mux.HandleFunc("GET /api/v1/leaderboard", wrap(h.leaderboard))

	// 健康檢查
	mux.HandleFunc("GET /health", wrap(h.health))
	mux.HandleFunc("GET /ready", wrap(h.ready))

	return mux
}

// 請求和響應結構
type joinRequest struct {
	Identity    string   `json:"identity"`
	Name        string   `json:"name"`
	Bot         bool     `json:"bot"`
	Permissions []string `json:"permissions,omitempty"`
}

type pointsRequest struct {
	Amount int64  `json:"amount"`
	Reason string `json:"reason"`
}

type statRequest struct {
	Counter string `json:"counter"`
	Amount  int64  `json:"amount"`
}

type killRequest struct {
	ForSlot  int    `json:"for_slot"`
	FromSlot int    `json:"from_slot"`
	Amount   int64  `json:"amount"`
	Reason   string `json:"reason"`
}

type warmupRequest struct {
	Active bool `json:"active"`
}

type joinResponse struct {
	Slot    int             `json:"slot"`
	Bot     bool            `json:"bot"`
	Session *PlayerProgress `json:"session,omitempty"`
	Tag     string          `json:"scoreboard_tag,omitempty"`
}

type killResponse struct {
	Applied bool  `json:"applied"`
	Amount  int64 `json:"amount"`
}

type statResponse struct {
	Recorded bool `json:"recorded"`
}

type taskResponse struct {
	Accepted bool `json:"accepted"`
	Applied  bool `json:"applied"`
}

type errorResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code,omitempty"`
	Error   string `json:"error"`
}

// join 玩家加入槽位；BOT 只登記到名單，不載入
func (h *Handler) join(w http.ResponseWriter, r *http.Request) {
	slot, ok := h.slotParam(w, r)
	if !ok {
		return
	}

	var req joinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	h.roster.Join(slot, req.Bot, req.Permissions)
	if req.Bot {
		// BOT 佔用槽位前先讓上一位真人玩家離線
		if h.service.Cache().Contains(slot) {
			h.service.Disconnect(slot)
		}
		h.respondJSON(w, joinResponse{Slot: slot, Bot: true})
		return
	}

	progress, err := h.service.LoadSession(r.Context(), slot, req.Identity, req.Name)
	if err != nil {
		h.roster.Leave(slot)
		h.respondAppError(w, r, "load session failed", err)
		return
	}

	h.respondJSON(w, joinResponse{
		Slot:    slot,
		Session: &progress,
		Tag:     progress.Tier.ScoreboardTag(),
	})
}

// disconnect 玩家離線；?wait=true 時等待最終寫入完成
//
// BOT 或未載入的槽位不需寫入，回報 applied=false。
func (h *Handler) disconnect(w http.ResponseWriter, r *http.Request) {
	slot, ok := h.slotParam(w, r)
	if !ok {
		return
	}

	if !h.service.Cache().Contains(slot) {
		h.logger.DebugContext(r.Context(), "disconnect ignored: slot not loaded", "slot", slot)
		h.roster.Leave(slot)
		h.respondJSON(w, taskResponse{Accepted: false, Applied: false})
		return
	}

	task := h.service.Disconnect(slot)
	h.roster.Leave(slot)
	h.respondTask(w, r, task)
}

// session 查詢槽位目前的進度
func (h *Handler) session(w http.ResponseWriter, r *http.Request) {
	slot, ok := h.slotParam(w, r)
	if !ok {
		return
	}

	progress, err := h.service.Session(slot)
	if err != nil {
		h.respondAppError(w, r, "get session failed", err)
		return
	}
	h.respondJSON(w, progress)
}

// modifyPoints 直接變更點數（回合勝負、炸彈等非擊殺事件）
func (h *Handler) modifyPoints(w http.ResponseWriter, r *http.Request) {
	slot, ok := h.slotParam(w, r)
	if !ok {
		return
	}

	var req pointsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.service.ModifyPoints(r.Context(), slot, req.Amount, req.Reason); err != nil {
		h.respondAppError(w, r, "modify points failed", err)
		return
	}

	progress, err := h.service.Session(slot)
	if err != nil {
		h.respondAppError(w, r, "get session failed", err)
		return
	}
	h.respondJSON(w, progress)
}

// modifyStat 累加統計；規則不允許時不記錄
func (h *Handler) modifyStat(w http.ResponseWriter, r *http.Request) {
	slot, ok := h.slotParam(w, r)
	if !ok {
		return
	}

	var req statRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	// 預設值
	if req.Amount == 0 {
		req.Amount = 1
	}

	if !h.service.StatsAllowed() {
		h.respondJSON(w, statResponse{Recorded: false})
		return
	}

	if err := h.service.ModifyStat(slot, req.Counter, req.Amount); err != nil {
		h.respondAppError(w, r, "modify stat failed", err)
		return
	}
	h.respondJSON(w, statResponse{Recorded: true})
}

// kill 擊殺/死亡事件：依雙方點數比例調整後套用
func (h *Handler) kill(w http.ResponseWriter, r *http.Request) {
	var req killRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	amount := h.service.ScaleByRatio(req.ForSlot, req.FromSlot, req.Amount)
	if err := h.service.ModifyPoints(r.Context(), req.ForSlot, amount, req.Reason); err != nil {
		// 擊殺事件中的 BOT 或未載入玩家不計分
		if apperrors.IsInvalidActor(err) || apperrors.IsNotLoaded(err) {
			h.respondJSON(w, killResponse{Applied: false, Amount: amount})
			return
		}
		h.respondAppError(w, r, "apply kill points failed", err)
		return
	}

	h.respondJSON(w, killResponse{
		Applied: h.service.PointsAllowed() && amount != 0,
		Amount:  amount,
	})
}

// endRound 回合結束
func (h *Handler) endRound(w http.ResponseWriter, r *http.Request) {
	h.respondTask(w, r, h.service.EndRound())
}

// warmup 設定熱身狀態
func (h *Handler) warmup(w http.ResponseWriter, r *http.Request) {
	var req warmupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	h.roster.SetWarmup(req.Active)
	h.respondJSON(w, req)
}

// placement 查詢名次
func (h *Handler) placement(w http.ResponseWriter, r *http.Request) {
	identity := r.PathValue("identity")

	placement, err := h.service.PlacementOf(r.Context(), identity)
	if err != nil {
		h.respondAppError(w, r, "get placement failed", err)
		return
	}
	h.respondJSON(w, placement)
}

// playerCapabilities 查詢玩家持有的權限
func (h *Handler) playerCapabilities(w http.ResponseWriter, r *http.Request) {
	if h.capabilities == nil {
		h.respondAppError(w, r, "capabilities unavailable", apperrors.ErrServiceUnavailable)
		return
	}

	identity := r.PathValue("identity")
	caps, err := h.capabilities.Capabilities(r.Context(), identity)
	if err != nil {
		h.respondAppError(w, r, "list capabilities failed",
			apperrors.Wrap(err, apperrors.ErrCodeUnavailable, "list capabilities"))
		return
	}

	h.respondJSON(w, map[string]any{
		"identity":     identity,
		"capabilities": caps,
	})
}

// leaderboard 排行榜
func (h *Handler) leaderboard(w http.ResponseWriter, r *http.Request) {
	limit := DefaultLeaderboardLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			h.respondError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		if n > MaxLeaderboardLimit {
			h.respondError(w, fmt.Sprintf("maximum %d players allowed", MaxLeaderboardLimit), http.StatusBadRequest)
			return
		}
		limit = n
	}

	entries, err := h.service.Top(r.Context(), limit)
	if err != nil {
		h.respondAppError(w, r, "get leaderboard failed", err)
		return
	}

	h.respondJSON(w, map[string]any{
		"players": entries,
	})
}

// health 健康檢查
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

// ready 就緒檢查
func (h *Handler) ready(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	for _, check := range h.checks {
		if err := check.Ping(ctx); err != nil {
			h.logger.WarnContext(ctx, "readiness check failed", "check", check.Name, "error", err)
			h.respondError(w, check.Name+" not ready", http.StatusServiceUnavailable)
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "Ready")
}

func (h *Handler) slotParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	slot, err := strconv.Atoi(r.PathValue("slot"))
	if err != nil || slot < 0 {
		h.respondError(w, "slot must be a non-negative integer", http.StatusBadRequest)
		return 0, false
	}
	return slot, true
}

// respondTask ?wait=true 時等待背景工作完成，否則立即回覆 202
func (h *Handler) respondTask(w http.ResponseWriter, r *http.Request, task *Task) {
	if r.URL.Query().Get("wait") != "true" {
		select {
		case <-task.Done():
			// 已完成（例如槽位未載入）時直接回報結果
		default:
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusAccepted)
			_ = json.NewEncoder(w).Encode(taskResponse{Accepted: true, Applied: true})
			return
		}
	}

	if err := task.Wait(r.Context()); err != nil {
		h.respondAppError(w, r, "background task failed", err)
		return
	}
	h.respondJSON(w, taskResponse{Accepted: true, Applied: true})
}

// 中間件
// requestID 產生或沿用請求 ID，放入 context 供日誌使用
func (h *Handler) requestID(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)

		ctx := applog.WithRequestID(r.Context(), id)
		if slot, err := strconv.Atoi(r.PathValue("slot")); err == nil {
			ctx = applog.WithSlot(ctx, slot)
		}
		if identity := r.PathValue("identity"); identity != "" {
			ctx = applog.WithIdentity(ctx, identity)
		}
		next(w, r.WithContext(ctx))
	}
}

// loggerMiddleware 記錄請求日誌
func (h *Handler) loggerMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// 包裝 ResponseWriter 以捕獲狀態碼
		ww := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next(ww, r)

		h.logger.InfoContext(r.Context(), "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.statusCode,
			"duration", time.Since(start),
			"remote", r.RemoteAddr,
		)
	}
}

// recoverer 恢復 panic
func (h *Handler) recoverer(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				h.logger.ErrorContext(r.Context(), "panic recovered", "error", err)
				h.respondError(w, "internal server error", http.StatusInternalServerError)
			}
		}()
		next(w, r)
	}
}

func (h *Handler) respondJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) respondError(w http.ResponseWriter, message string, code int) {
	h.writeError(w, errorResponse{Error: message}, code)
}

// respondAppError 依錯誤碼決定 HTTP 狀態
func (h *Handler) respondAppError(w http.ResponseWriter, r *http.Request, message string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		applog.LogError(r.Context(), message, err)
	} else {
		h.logger.DebugContext(r.Context(), message, "error", err)
	}

	resp := errorResponse{Error: err.Error()}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		resp.Code = appErr.Code
	}
	h.writeError(w, resp, status)
}

func (h *Handler) writeError(w http.ResponseWriter, resp errorResponse, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("failed to encode error response", "error", err, "message", resp.Error)
	}
}

func statusFor(err error) int {
	switch {
	case apperrors.IsInvalidInput(err):
		return http.StatusBadRequest
	case apperrors.IsNotFound(err):
		return http.StatusNotFound
	case apperrors.IsNotLoaded(err):
		return http.StatusConflict
	case apperrors.IsInvalidActor(err):
		return http.StatusUnprocessableEntity
	case apperrors.IsStorageUnavailable(err), apperrors.IsUnavailable(err):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// responseWriter 包裝以捕獲狀態碼
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (w *responseWriter) WriteHeader(code int) {
	if !w.written {
		w.statusCode = code
		w.written = true
		w.ResponseWriter.WriteHeader(code)
	}
}
