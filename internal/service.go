// Package internal 實現玩家排名與統計服務的核心功能
//
// 系統設計問題：
//
//	遊戲伺服器在對局中頻繁改變玩家點數與統計，如何在不阻塞遊戲迴圈的前提下，
//	把這些變化可靠地累加進資料庫，且多個伺服器同時寫入時不遺失、不重複計算？
//
// 組成：
//
//	RankTable     段位門檻表（唯讀）
//	SessionCache  槽位 → 玩家進度（對局中的唯一事實來源）
//	Service       點數/統計變動、段位轉換、持久化對帳、排名查詢
//	Pool          背景寫入 worker
//
// 資料流：
//
//	遊戲事件 → ModifyPoints / ModifyStat → SessionCache
//	                                       ↓ 斷線、回合結束、定期、關機
//	                                 flush（差量 upsert）→ PostgreSQL
//	                                       ↓
//	                                 以資料庫總量回寫快取
package internal

import (
	"context"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/koopa0/system-design/14-player-ranking/internal/sqlc"
	apperrors "github.com/koopa0/system-design/14-player-ranking/pkg/errors"
)

// Dependencies 服務需要的外部協作者
type Dependencies struct {
	Queries    sqlc.Querier
	Ranks      *RankTable
	Game       GameState
	Authorizer Authorizer
	Outbox     *Outbox
}

// Service 排名服務
type Service struct {
	queries sqlc.Querier
	ranks   *RankTable
	game    GameState
	auth    Authorizer
	outbox  *Outbox

	cache *SessionCache
	gate  *slotGate
	pool  *Pool

	config *Config
	logger *slog.Logger
	round  func(float64) float64
}

// NewService 建立服務並啟動背景 worker
func NewService(deps Dependencies, config *Config, logger *slog.Logger) *Service {
	round := math.Round
	if config.Rank.RoundingMode == RoundHalfEven {
		round = math.RoundToEven
	}

	return &Service{
		queries: deps.Queries,
		ranks:   deps.Ranks,
		game:    deps.Game,
		auth:    deps.Authorizer,
		outbox:  deps.Outbox,
		cache:   NewSessionCache(),
		gate:    newSlotGate(),
		pool:    NewPool(config.Persist.Workers, config.Persist.QueueSize, logger),
		config:  config,
		logger:  logger,
		round:   round,
	}
}

// Cache 返回會話快取
func (s *Service) Cache() *SessionCache {
	return s.cache
}

// Ranks 返回段位表
func (s *Service) Ranks() *RankTable {
	return s.ranks
}

// LoadSession 載入玩家並放入快取
//
// 同槽位上一位玩家的寫入完成前不會插入，避免舊寫入覆蓋新紀錄。
// 槽位仍有未離線的紀錄時先替上一位玩家提交最終寫入。
func (s *Service) LoadSession(ctx context.Context, slot int, identity, name string) (PlayerProgress, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return PlayerProgress{}, apperrors.ErrInvalidInput.WithDetails("identity required")
	}

	if prev, ok := s.cache.occupied(slot); ok {
		s.logger.Warn("slot still occupied, saving previous player",
			"slot", slot,
			"previous", prev.Identity,
			"identity", identity)
		s.submitSave(slot, true)
	}

	if err := s.gate.wait(ctx, slot); err != nil {
		s.logger.Warn("load cancelled while waiting for previous save",
			"slot", slot,
			"identity", identity,
			"error", err)
		return PlayerProgress{}, err
	}

	row, err := s.queries.TouchPlayer(ctx, sqlc.TouchPlayerParams{
		Identity: identity,
		Name:     name,
		Tier:     s.ranks.Sentinel().Name,
	})
	if err != nil {
		s.logger.Error("load player failed",
			"slot", slot,
			"identity", identity,
			"error", err)
		return PlayerProgress{}, apperrors.Wrap(err, apperrors.ErrCodeStorageUnavailable, "load player")
	}

	if prev, ok := s.cache.occupied(slot); ok {
		s.logger.Warn("unsaved delta discarded",
			"slot", slot,
			"identity", prev.Identity,
			"delta", prev.RoundDeltaPoints,
			"stat_deltas", prev.StatDeltas)
	}

	tier := s.ranks.TierFor(row.Points)
	progress := s.cache.insert(&PlayerProgress{
		Slot:        slot,
		Identity:    identity,
		Name:        name,
		TotalPoints: row.Points,
		Tier:        tier,
		Stats:       statsFromRow(row),
		StatDeltas:  make(map[string]int64),
		LoadedAt:    time.Now(),
	})

	s.syncCapabilities(ctx, identity, tier)

	s.logger.Info("player loaded",
		"slot", slot,
		"identity", identity,
		"points", row.Points,
		"tier", tier.Name)

	return progress, nil
}

// Session 返回槽位紀錄副本
func (s *Service) Session(slot int) (PlayerProgress, error) {
	return s.cache.Get(slot)
}

// Shutdown 等待背景寫入完成
func (s *Service) Shutdown() {
	s.pool.Shutdown()
}
