package internal

import (
	"context"
	"slices"
)

// tierChange 一次段位轉換；to.Name 為空表示沒有變化
type tierChange struct {
	slot     int
	identity string
	from     Tier
	to       Tier
}

func (c tierChange) changed() bool {
	return c.to.Name != ""
}

func (c tierChange) promotion() bool {
	return c.to.MinPoints > c.from.MinPoints
}

// capabilityReplacer 能在單一操作內撤銷並授予權限的 Authorizer
type capabilityReplacer interface {
	Replace(ctx context.Context, identity string, revoke, grant []string) error
}

// retier 依目前總分重新判定段位，必須在快取鎖內呼叫
//
// 段位只在鎖內改變，同一次跨越門檻只會產生一次 tierChange。
func (s *Service) retier(p *PlayerProgress) tierChange {
	next := s.ranks.TierFor(p.TotalPoints)
	if next.Name == p.Tier.Name {
		return tierChange{}
	}

	change := tierChange{
		slot:     p.Slot,
		identity: p.Identity,
		from:     p.Tier,
		to:       next,
	}
	p.Tier = next
	return change
}

// applyTransition 處理段位轉換的副作用：權限與通知
//
// 在快取鎖外呼叫。
func (s *Service) applyTransition(ctx context.Context, c tierChange) {
	if !c.changed() {
		return
	}

	revoke := difference(c.from.Capabilities, c.to.Capabilities)
	grant := difference(c.to.Capabilities, c.from.Capabilities)
	s.replaceCapabilities(ctx, c.identity, revoke, grant)

	template := TemplateDemote
	if c.promotion() {
		template = TemplatePromote
	}
	s.outbox.Enqueue(Notification{
		Identity: c.identity,
		Slot:     c.slot,
		Template: template,
		Args:     []any{c.to.Color, c.to.Name},
	})

	s.logger.Info("tier changed",
		"slot", c.slot,
		"identity", c.identity,
		"from", c.from.Name,
		"to", c.to.Name,
		"promotion", c.promotion())
}

// syncCapabilities 載入時讓權限與段位一致：授予本段位、撤銷其他段位獨有的權限
func (s *Service) syncCapabilities(ctx context.Context, identity string, tier Tier) {
	var others []string
	for _, t := range s.ranks.Tiers() {
		if t.Name == tier.Name {
			continue
		}
		others = append(others, t.Capabilities...)
	}
	s.replaceCapabilities(ctx, identity, difference(others, tier.Capabilities), tier.Capabilities)
}

// hasCapability 玩家是否持有權限：遊戲端授予、目前段位授予或權限服務中的授予皆算
func (s *Service) hasCapability(ctx context.Context, p PlayerProgress, capability string) bool {
	if capability == "" {
		return false
	}
	if s.game.HasPermission(p.Slot, capability) || slices.Contains(p.Tier.Capabilities, capability) {
		return true
	}

	reader, ok := s.auth.(CapabilityReader)
	if !ok {
		return false
	}
	held, err := reader.Capabilities(ctx, p.Identity)
	if err != nil {
		s.logger.Warn("read capabilities failed",
			"slot", p.Slot,
			"identity", p.Identity,
			"capability", capability,
			"error", err)
		return false
	}
	return slices.Contains(held, capability)
}

func (s *Service) replaceCapabilities(ctx context.Context, identity string, revoke, grant []string) {
	if len(revoke) == 0 && len(grant) == 0 {
		return
	}

	if r, ok := s.auth.(capabilityReplacer); ok {
		if err := r.Replace(ctx, identity, revoke, grant); err != nil {
			s.logger.Error("replace capabilities failed",
				"identity", identity,
				"revoke", revoke,
				"grant", grant,
				"error", err)
		}
		return
	}

	for _, c := range revoke {
		if err := s.auth.Revoke(ctx, identity, c); err != nil {
			s.logger.Error("revoke capability failed", "identity", identity, "capability", c, "error", err)
		}
	}
	for _, c := range grant {
		if err := s.auth.Grant(ctx, identity, c); err != nil {
			s.logger.Error("grant capability failed", "identity", identity, "capability", c, "error", err)
		}
	}
}

// difference a \ b，保留 a 的順序並去重
func difference(a, b []string) []string {
	var out []string
	for _, x := range a {
		if slices.Contains(b, x) || slices.Contains(out, x) {
			continue
		}
		out = append(out, x)
	}
	return out
}
