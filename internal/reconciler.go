package internal

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/koopa0/system-design/14-player-ranking/internal/sqlc"
	apperrors "github.com/koopa0/system-design/14-player-ranking/pkg/errors"
	"github.com/koopa0/system-design/14-player-ranking/pkg/logger"
)

// FlushReport 批次寫入結果
type FlushReport struct {
	Attempted int `json:"attempted"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// SaveSession 非同步寫入單一槽位；final 為 true 時寫入後自快取移除
//
// 槽位在提交前就登記為寫入中，之後載入同一槽位的玩家會等待這次寫入完成。
func (s *Service) SaveSession(slot int, final bool) *Task {
	if !s.cache.Contains(slot) {
		s.logger.Warn("save session: player is not loaded to the cache", "slot", slot, "final", final)
		return finishedTask(apperrors.ErrNotLoaded)
	}
	return s.submitSave(slot, final)
}

func (s *Service) submitSave(slot int, final bool) *Task {
	release := s.gate.begin(slot)
	return s.pool.Submit(fmt.Sprintf("save slot %d", slot), func(ctx context.Context) error {
		defer release()
		return s.flush(ctx, slot, final)
	})
}

// Disconnect 玩家離線：最終寫入並移除
func (s *Service) Disconnect(slot int) *Task {
	return s.SaveSession(slot, true)
}

// SaveAllSessions 寫入所有已載入的真人玩家，阻塞直到全部完成
//
// 先前最終寫入失敗的離線玩家一併以最終寫入重試。
// final 為 true 時（地圖結束、關機）最後清空快取。
func (s *Service) SaveAllSessions(ctx context.Context, final bool) FlushReport {
	start := time.Now()
	snapshot := s.cache.SnapshotAll()

	var (
		report FlushReport
		failed atomic.Int64
	)

	g := new(errgroup.Group)
	g.SetLimit(s.config.Persist.FlushConcurrency)

	for _, p := range snapshot {
		if !p.departed && !s.game.IsHuman(p.Slot) {
			report.Skipped++
			continue
		}
		report.Attempted++

		slot, last := p.Slot, final || p.departed
		release := s.gate.begin(slot)
		g.Go(func() error {
			defer release()
			if err := s.flush(ctx, slot, last); err != nil {
				failed.Add(1)
			}
			// 單一玩家失敗不中止其他玩家
			return nil
		})
	}
	_ = g.Wait()

	if final {
		if n := failed.Load(); n > 0 {
			s.logger.Warn("cache cleared with unsaved deltas", "failed", n)
		}
		s.cache.Clear()
	}

	report.Failed = int(failed.Load())
	logger.Metrics(ctx, "save_all_sessions", time.Since(start),
		slog.Int("attempted", report.Attempted),
		slog.Int("failed", report.Failed),
		slog.Int("skipped", report.Skipped),
		slog.Bool("final", final))

	return report
}

// flush 補償差量寫入
//
//  1. 擷取 D = RoundDeltaPoints（及統計差量）
//  2. 資料庫以單一語句套用 D（下限 0），並返回寫入後的總量
//  3. 快取中扣除 D，寫入期間新增的變動保留在差量中
//  4. 以資料庫總量 + 剩餘差量回寫 TotalPoints，重新判定段位
//
// 寫入失敗時差量保留，下次寫入再試；final 寫入失敗時紀錄標記為離線，
// 由下一次批次寫入或同槽位的下一次載入重試。
func (s *Service) flush(ctx context.Context, slot int, final bool) error {
	unlock := s.gate.lock(slot)
	defer unlock()

	ctx, cancel := context.WithTimeout(ctx, s.config.Persist.FlushTimeout)
	defer cancel()

	ticket, err := s.cache.capture(slot)
	if err != nil {
		s.logger.Warn("flush: player is not loaded to the cache", "slot", slot)
		return err
	}

	row, err := s.queries.ApplyPlayerDelta(ctx, deltaParams(ticket))
	if err != nil {
		s.logger.Error("flush player failed",
			"slot", slot,
			"identity", ticket.identity,
			"delta", ticket.points,
			"stat_deltas", ticket.statDeltas,
			"final", final,
			"error", err)

		if final && s.cache.markDeparted(slot, ticket.session) {
			s.logger.Warn("final save failed, player kept for retry",
				"slot", slot,
				"identity", ticket.identity,
				"delta", ticket.points)
		}
		return apperrors.Wrap(err, apperrors.ErrCodeStorageUnavailable, "flush player")
	}

	row = s.storeTier(ctx, row)

	if s.config.General.LevelRanksCompatibility {
		if err := s.queries.MirrorLevelRanks(ctx, mirrorParams(ticket, row)); err != nil {
			s.logger.Warn("mirror level ranks failed",
				"identity", ticket.identity,
				"error", err)
		}
	}

	if final {
		s.cache.removeSession(slot, ticket.session)
		s.logger.Info("player saved and removed",
			"slot", slot,
			"identity", ticket.identity,
			"points", row.Points)
		return nil
	}

	stored := statsFromRow(row)
	var change tierChange
	err = s.cache.updateSession(slot, ticket.session, func(p *PlayerProgress) {
		p.RoundDeltaPoints -= ticket.points
		for k, v := range ticket.statDeltas {
			p.StatDeltas[k] -= v
			if p.StatDeltas[k] == 0 {
				delete(p.StatDeltas, k)
			}
		}

		for k, v := range stored {
			p.Stats[k] = v + p.StatDeltas[k]
		}
		p.TotalPoints = max(0, row.Points+p.RoundDeltaPoints)

		change = s.retier(p)
	})
	if err != nil {
		// 寫入期間槽位已離線或被重用，資料已落地，不需回寫
		s.logger.Debug("flush: slot changed during save", "slot", slot, "identity", ticket.identity)
		return nil
	}

	s.applyTransition(ctx, change)

	s.logger.Debug("player saved",
		"slot", slot,
		"identity", ticket.identity,
		"delta", ticket.points,
		"points", row.Points)
	return nil
}

// storeTier 段位欄位依寫入後的點數重新判定
//
// 差量寫入帶的是寫入前的段位；其他伺服器同時寫入時兩者可能不一致。
// 更新以點數為條件，點數已再次改變時交給那次寫入處理。
func (s *Service) storeTier(ctx context.Context, row sqlc.PlayerRank) sqlc.PlayerRank {
	tier := s.ranks.TierFor(row.Points).Name
	if tier == row.Tier {
		return row
	}

	err := s.queries.SetPlayerTier(ctx, sqlc.SetPlayerTierParams{
		Identity: row.Identity,
		Tier:     tier,
		Points:   row.Points,
	})
	if err != nil {
		s.logger.Warn("store tier failed",
			"identity", row.Identity,
			"points", row.Points,
			"tier", tier,
			"error", err)
		return row
	}

	row.Tier = tier
	return row
}

// EndRound 回合結束：送出回合總結、歸零回合累計，並在背景寫入所有玩家
func (s *Service) EndRound() *Task {
	for _, p := range s.cache.SnapshotAll() {
		if s.config.Rank.RoundEndPoints && p.RoundEarned != 0 {
			s.outbox.Enqueue(Notification{
				Identity: p.Identity,
				Slot:     p.Slot,
				Template: TemplateRoundSummary,
				Args:     []any{p.TotalPoints, p.RoundEarned},
			})
		}
		_ = s.cache.update(p.Slot, func(p *PlayerProgress) {
			p.RoundEarned = 0
		})
	}

	return s.pool.Submit("round end save", func(ctx context.Context) error {
		report := s.SaveAllSessions(ctx, false)
		if report.Failed > 0 {
			return apperrors.ErrStorageUnavailable.WithDetails(
				fmt.Sprintf("%d of %d players failed to save", report.Failed, report.Attempted))
		}
		return nil
	})
}
