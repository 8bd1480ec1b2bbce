package internal

import (
	"context"

	apperrors "github.com/koopa0/system-design/14-player-ranking/pkg/errors"
)

// PointsAllowed 本回合是否允許加減點數，每次呼叫重新判斷
func (s *Service) PointsAllowed() bool {
	warmupOK := !s.game.WarmupPeriod() || s.config.Rank.WarmupPoints
	return warmupOK && s.game.HumanPlayers() >= s.config.Rank.MinPlayers
}

// StatsAllowed 是否記錄統計；ModifyStat 本身不檢查，由呼叫端決定
func (s *Service) StatsAllowed() bool {
	warmupOK := !s.game.WarmupPeriod() || s.config.Stats.WarmupStats
	return warmupOK && s.game.HumanPlayers() >= s.config.Stats.MinPlayers
}

// ModifyPoints 變更玩家點數
//
// 規則不允許或 amount 為 0 時靜默略過；非真人或未載入時記錄後略過。
// 總分以 0 為下限，RoundDeltaPoints 不設下限（資料庫會獨立套用同樣的下限）。
func (s *Service) ModifyPoints(ctx context.Context, slot int, amount int64, reason string) error {
	if !s.PointsAllowed() || amount == 0 {
		return nil
	}

	if !s.game.IsHuman(slot) {
		s.logger.Warn("modify points: player is bot or invalid", "slot", slot)
		return apperrors.ErrInvalidActor
	}

	current, err := s.cache.Get(slot)
	if err != nil {
		s.logger.Warn("modify points: player is not loaded to the cache", "slot", slot)
		return err
	}

	if amount > 0 && s.hasCapability(ctx, current, s.config.Rank.MultiplierCapability) {
		amount = int64(s.round(float64(amount) * s.config.Rank.VIPMultiplier))
		if amount == 0 {
			return nil
		}
	}

	var (
		oldPoints int64
		identity  string
		change    tierChange
	)
	err = s.cache.update(slot, func(p *PlayerProgress) {
		oldPoints = p.TotalPoints
		identity = p.Identity

		p.TotalPoints = max(0, p.TotalPoints+amount)
		p.RoundDeltaPoints += amount
		p.RoundEarned += amount

		change = s.retier(p)
	})
	if err != nil {
		// 在檢查與更新之間被移除
		s.logger.Warn("modify points: player is not loaded to the cache", "slot", slot)
		return err
	}

	if !s.config.Rank.RoundEndPoints {
		template := TemplatePointsGain
		shown := amount
		if amount < 0 {
			template = TemplatePointsLoss
			shown = -amount
		}
		s.outbox.Enqueue(Notification{
			Identity: identity,
			Slot:     slot,
			Template: template,
			Args:     []any{oldPoints, shown, reason},
		})
	}

	s.applyTransition(ctx, change)
	return nil
}

// ModifyStat 累加統計欄位，無規則限制、無下限
func (s *Service) ModifyStat(slot int, counter string, amount int64) error {
	if !IsKnownStat(counter) {
		s.logger.Warn("modify stat: unknown counter", "slot", slot, "counter", counter)
		return apperrors.ErrInvalidInput.WithDetails("unknown counter " + counter)
	}

	if !s.game.IsHuman(slot) {
		s.logger.Warn("modify stat: player is bot or invalid", "slot", slot, "counter", counter)
		return apperrors.ErrInvalidActor
	}

	err := s.cache.update(slot, func(p *PlayerProgress) {
		p.Stats[counter] += amount
		p.StatDeltas[counter] += amount
		if p.StatDeltas[counter] == 0 {
			delete(p.StatDeltas, counter)
		}
	})
	if err != nil {
		s.logger.Warn("modify stat: player is not loaded to the cache", "slot", slot, "counter", counter)
		return err
	}
	return nil
}

// ScaleByRatio 依雙方點數比例調整擊殺/死亡點數
//
// 停用、任一方為 BOT 或任一方總分 <= 0 時原樣返回。
func (s *Service) ScaleByRatio(forSlot, fromSlot int, base int64) int64 {
	if !s.config.Rank.DynamicDeathPoints || !s.game.IsHuman(forSlot) || !s.game.IsHuman(fromSlot) {
		return base
	}

	forP, err := s.cache.Get(forSlot)
	if err != nil {
		return base
	}
	fromP, err := s.cache.Get(fromSlot)
	if err != nil {
		return base
	}
	if forP.TotalPoints <= 0 || fromP.TotalPoints <= 0 {
		return base
	}

	ratio := float64(forP.TotalPoints) / float64(fromP.TotalPoints)
	ratio = min(max(ratio, s.config.Rank.DynamicMinMultiplier), s.config.Rank.DynamicMaxMultiplier)

	return int64(s.round(ratio * float64(base)))
}
