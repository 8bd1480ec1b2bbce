package internal_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koopa0/system-design/14-player-ranking/internal"
	"github.com/koopa0/system-design/14-player-ranking/internal/testutils"
	apperrors "github.com/koopa0/system-design/14-player-ranking/pkg/errors"
)

// TestModifyPoints_Clamp 總分以 0 為下限，差量不設下限
func TestModifyPoints_Clamp(t *testing.T) {
	f := testutils.NewServiceFixture(t, nil)
	f.Join(t, 1, "STEAM_1:0:1", 30)

	require.NoError(t, f.Service.ModifyPoints(context.Background(), 1, -50, "suicide"))

	p, err := f.Service.Session(1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), p.TotalPoints)
	assert.Equal(t, int64(-50), p.RoundDeltaPoints)
	assert.Equal(t, int64(-50), p.RoundEarned)

	notes := f.Outbox.Drain()
	require.Len(t, notes, 1)
	assert.Equal(t, internal.TemplatePointsLoss, notes[0].Template)
	assert.Equal(t, []any{int64(30), int64(50), "suicide"}, notes[0].Args)
}

func TestModifyPoints_Gain(t *testing.T) {
	f := testutils.NewServiceFixture(t, nil)
	f.Join(t, 1, "STEAM_1:0:1", 10)

	require.NoError(t, f.Service.ModifyPoints(context.Background(), 1, 7, "kill"))

	p, err := f.Service.Session(1)
	require.NoError(t, err)
	assert.Equal(t, int64(17), p.TotalPoints)
	assert.Equal(t, int64(7), p.RoundDeltaPoints)

	notes := f.Outbox.Drain()
	require.Len(t, notes, 1)
	assert.Equal(t, internal.TemplatePointsGain, notes[0].Template)
	assert.Equal(t, "STEAM_1:0:1", notes[0].Identity)
	assert.Equal(t, []any{int64(10), int64(7), "kill"}, notes[0].Args)
}

// TestModifyPoints_SilverPromotion 90 + 15 → 105，只產生一次晉升
func TestModifyPoints_SilverPromotion(t *testing.T) {
	f := testutils.NewServiceFixture(t, nil)
	f.Join(t, 1, "STEAM_1:0:1", 90)
	f.Outbox.Drain()

	require.NoError(t, f.Service.ModifyPoints(context.Background(), 1, 15, "kill"))

	p, err := f.Service.Session(1)
	require.NoError(t, err)
	assert.Equal(t, int64(105), p.TotalPoints)
	assert.Equal(t, "Silver", p.Tier.Name)

	notes := f.Outbox.Drain()
	require.Len(t, notes, 2)
	assert.Equal(t, internal.TemplatePointsGain, notes[0].Template)
	assert.Equal(t, internal.TemplatePromote, notes[1].Template)
	assert.Equal(t, []any{"silver", "Silver"}, notes[1].Args)

	caps, err := f.Authorizer.Capabilities(context.Background(), "STEAM_1:0:1")
	require.NoError(t, err)
	assert.Equal(t, []string{testutils.CapSilverTag}, caps)

	// 同段位內再加分不會再次晉升
	require.NoError(t, f.Service.ModifyPoints(context.Background(), 1, 5, "kill"))
	assert.Equal(t, []string{internal.TemplatePointsGain}, f.Templates())
}

// TestModifyPoints_MultiplierFromTier 段位授予的權限同樣觸發倍率
func TestModifyPoints_MultiplierFromTier(t *testing.T) {
	cfg := testutils.DefaultTestConfig()
	cfg.Rank.MultiplierCapability = testutils.CapGoldChat
	cfg.Rank.VIPMultiplier = 2

	f := testutils.NewServiceFixture(t, cfg)
	f.Join(t, 1, "STEAM_1:0:1", 600)
	f.Join(t, 2, "STEAM_1:0:2", 0)

	ctx := context.Background()
	require.NoError(t, f.Service.ModifyPoints(ctx, 1, 10, "kill"))
	require.NoError(t, f.Service.ModifyPoints(ctx, 2, 10, "kill"))

	p, err := f.Service.Session(1)
	require.NoError(t, err)
	assert.Equal(t, int64(620), p.TotalPoints)

	p, err = f.Service.Session(2)
	require.NoError(t, err)
	assert.Equal(t, int64(10), p.TotalPoints)
}

// TestModifyPoints_MultiplierFromAuthorizer 權限服務另外授予的權限也算
func TestModifyPoints_MultiplierFromAuthorizer(t *testing.T) {
	cfg := testutils.DefaultTestConfig()
	cfg.Rank.MultiplierCapability = "@rank/vip/points-multiplier"
	cfg.Rank.VIPMultiplier = 1.5

	f := testutils.NewServiceFixture(t, cfg)
	f.Join(t, 1, "STEAM_1:0:1", 0)

	ctx := context.Background()
	require.NoError(t, f.Authorizer.Grant(ctx, "STEAM_1:0:1", "@rank/vip/points-multiplier"))
	require.NoError(t, f.Service.ModifyPoints(ctx, 1, 10, "kill"))

	p, err := f.Service.Session(1)
	require.NoError(t, err)
	assert.Equal(t, int64(15), p.TotalPoints)

	// 扣分不套用倍率
	require.NoError(t, f.Service.ModifyPoints(ctx, 1, -4, "death"))
	p, err = f.Service.Session(1)
	require.NoError(t, err)
	assert.Equal(t, int64(11), p.TotalPoints)
}

func TestModifyPoints_DemotionRevokes(t *testing.T) {
	f := testutils.NewServiceFixture(t, nil)
	f.Join(t, 1, "STEAM_1:0:1", 520)
	f.Outbox.Drain()

	require.NoError(t, f.Service.ModifyPoints(context.Background(), 1, -30, "teamkill"))

	p, err := f.Service.Session(1)
	require.NoError(t, err)
	assert.Equal(t, "Silver", p.Tier.Name)
	assert.Equal(t, []string{internal.TemplatePointsLoss, internal.TemplateDemote}, f.Templates())

	caps, err := f.Authorizer.Capabilities(context.Background(), "STEAM_1:0:1")
	require.NoError(t, err)
	assert.Equal(t, []string{testutils.CapSilverTag}, caps)

	ops := f.Authorizer.Operations()
	assert.Contains(t, ops, "revoke:STEAM_1:0:1:"+testutils.CapGoldTag)
	assert.Contains(t, ops, "revoke:STEAM_1:0:1:"+testutils.CapGoldChat)
	assert.Contains(t, ops, "grant:STEAM_1:0:1:"+testutils.CapSilverTag)
}

// TestModifyPoints_IdempotentTier 段位只由總分決定
func TestModifyPoints_IdempotentTier(t *testing.T) {
	f := testutils.NewServiceFixture(t, nil)
	f.Join(t, 1, "STEAM_1:0:1", 95)

	ctx := context.Background()
	require.NoError(t, f.Service.ModifyPoints(ctx, 1, 10, "up"))
	require.NoError(t, f.Service.ModifyPoints(ctx, 1, -10, "down"))
	require.NoError(t, f.Service.ModifyPoints(ctx, 1, 10, "up"))

	p, err := f.Service.Session(1)
	require.NoError(t, err)
	assert.Equal(t, f.Service.Ranks().TierFor(p.TotalPoints), p.Tier)

	var promotes, demotes int
	for _, tmpl := range f.Templates() {
		switch tmpl {
		case internal.TemplatePromote:
			promotes++
		case internal.TemplateDemote:
			demotes++
		}
	}
	assert.Equal(t, 2, promotes)
	assert.Equal(t, 1, demotes)
}

func TestModifyPoints_Multiplier(t *testing.T) {
	tests := []struct {
		name     string
		mode     string
		amount   int64
		expected int64
	}{
		{"half up", internal.RoundHalfUp, 10, 13},
		{"half even", internal.RoundHalfEven, 10, 12},
		{"not applied to losses", internal.RoundHalfUp, -10, -10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testutils.DefaultTestConfig()
			cfg.Rank.RoundingMode = tt.mode
			cfg.Rank.VIPMultiplier = 1.25

			f := testutils.NewServiceFixture(t, cfg)
			f.Join(t, 1, "STEAM_1:0:1", 200, cfg.Rank.MultiplierCapability)

			require.NoError(t, f.Service.ModifyPoints(context.Background(), 1, tt.amount, "kill"))

			p, err := f.Service.Session(1)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, p.RoundDeltaPoints)
			assert.Equal(t, 200+tt.expected, p.TotalPoints)
		})
	}
}

// TestModifyPoints_Gating 規則不允許時不變動、不通知
func TestModifyPoints_Gating(t *testing.T) {
	tests := []struct {
		name  string
		setup func(cfg *internal.Config)
		game  func(r *internal.Roster)
	}{
		{
			name:  "not enough players",
			setup: func(cfg *internal.Config) { cfg.Rank.MinPlayers = 4 },
		},
		{
			name:  "warmup without warmup points",
			setup: func(cfg *internal.Config) { cfg.Rank.WarmupPoints = false },
			game:  func(r *internal.Roster) { r.SetWarmup(true) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testutils.DefaultTestConfig()
			tt.setup(cfg)

			f := testutils.NewServiceFixture(t, cfg)
			f.Join(t, 1, "STEAM_1:0:1", 90)
			f.Outbox.Drain()
			if tt.game != nil {
				tt.game(f.Roster)
			}

			assert.False(t, f.Service.PointsAllowed())
			require.NoError(t, f.Service.ModifyPoints(context.Background(), 1, 50, "kill"))

			p, err := f.Service.Session(1)
			require.NoError(t, err)
			assert.Equal(t, int64(90), p.TotalPoints)
			assert.Zero(t, p.RoundDeltaPoints)
			assert.Zero(t, f.Outbox.Len())
		})
	}
}

func TestModifyPoints_WarmupAllowed(t *testing.T) {
	cfg := testutils.DefaultTestConfig()
	cfg.Rank.WarmupPoints = true

	f := testutils.NewServiceFixture(t, cfg)
	f.Join(t, 1, "STEAM_1:0:1", 0)
	f.Roster.SetWarmup(true)

	assert.True(t, f.Service.PointsAllowed())
	require.NoError(t, f.Service.ModifyPoints(context.Background(), 1, 5, "kill"))

	p, err := f.Service.Session(1)
	require.NoError(t, err)
	assert.Equal(t, int64(5), p.TotalPoints)
}

func TestModifyPoints_InvalidTargets(t *testing.T) {
	f := testutils.NewServiceFixture(t, nil)
	f.Roster.Join(2, true, nil)  // BOT
	f.Roster.Join(3, false, nil) // 尚未載入

	ctx := context.Background()
	assert.True(t, apperrors.IsInvalidActor(f.Service.ModifyPoints(ctx, 2, 5, "kill")))
	assert.True(t, apperrors.IsInvalidActor(f.Service.ModifyPoints(ctx, 8, 5, "kill")))
	assert.True(t, apperrors.IsNotLoaded(f.Service.ModifyPoints(ctx, 3, 5, "kill")))

	// amount 為 0 時靜默略過
	assert.NoError(t, f.Service.ModifyPoints(ctx, 3, 0, "noop"))
	assert.Zero(t, f.Outbox.Len())
}

func TestModifyPoints_RoundEndPointsSuppressesPerEvent(t *testing.T) {
	cfg := testutils.DefaultTestConfig()
	cfg.Rank.RoundEndPoints = true

	f := testutils.NewServiceFixture(t, cfg)
	f.Join(t, 1, "STEAM_1:0:1", 0)

	require.NoError(t, f.Service.ModifyPoints(context.Background(), 1, 5, "kill"))
	assert.Zero(t, f.Outbox.Len())
}

func TestModifyStat(t *testing.T) {
	f := testutils.NewServiceFixture(t, nil)
	f.Join(t, 1, "STEAM_1:0:1", 0)
	f.Roster.Join(2, true, nil)

	require.NoError(t, f.Service.ModifyStat(1, internal.StatKills, 2))
	require.NoError(t, f.Service.ModifyStat(1, internal.StatDeaths, 1))
	require.NoError(t, f.Service.ModifyStat(1, internal.StatDeaths, -1))

	p, err := f.Service.Session(1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), p.Stats[internal.StatKills])
	assert.Equal(t, int64(0), p.Stats[internal.StatDeaths])
	assert.Equal(t, map[string]int64{internal.StatKills: 2}, p.StatDeltas)

	assert.True(t, apperrors.IsInvalidInput(f.Service.ModifyStat(1, "bogus", 1)))
	assert.True(t, apperrors.IsInvalidActor(f.Service.ModifyStat(2, internal.StatKills, 1)))
	assert.True(t, apperrors.IsInvalidActor(f.Service.ModifyStat(5, internal.StatKills, 1)))

	f.Roster.Join(6, false, nil)
	assert.True(t, apperrors.IsNotLoaded(f.Service.ModifyStat(6, internal.StatKills, 1)))
}

func TestStatsAllowed(t *testing.T) {
	cfg := testutils.DefaultTestConfig()
	cfg.Stats.MinPlayers = 2

	f := testutils.NewServiceFixture(t, cfg)
	f.Join(t, 1, "STEAM_1:0:1", 0)
	assert.False(t, f.Service.StatsAllowed())

	f.Join(t, 2, "STEAM_1:0:2", 0)
	assert.True(t, f.Service.StatsAllowed())

	f.Roster.SetWarmup(true)
	assert.False(t, f.Service.StatsAllowed())
}

// TestScaleByRatio 比例夾在 [min, max] 之間
func TestScaleByRatio(t *testing.T) {
	tests := []struct {
		name       string
		enabled    bool
		forPoints  int64
		fromPoints int64
		base       int64
		expected   int64
	}{
		{"weaker player clamped to min", true, 50, 200, 10, 5},
		{"stronger player clamped to max", true, 400, 100, 10, 20},
		{"equal players", true, 100, 100, 10, 10},
		{"ratio inside range", true, 150, 100, 10, 15},
		{"disabled", false, 50, 200, 10, 10},
		{"zero points falls back", true, 0, 200, 10, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testutils.DefaultTestConfig()
			cfg.Rank.DynamicDeathPoints = tt.enabled
			cfg.Rank.DynamicMinMultiplier = 0.5
			cfg.Rank.DynamicMaxMultiplier = 2.0

			f := testutils.NewServiceFixture(t, cfg)
			f.Join(t, 1, "STEAM_1:0:1", tt.forPoints)
			f.Join(t, 2, "STEAM_1:0:2", tt.fromPoints)

			assert.Equal(t, tt.expected, f.Service.ScaleByRatio(1, 2, tt.base))
		})
	}
}

func TestScaleByRatio_BotsUseBase(t *testing.T) {
	cfg := testutils.DefaultTestConfig()
	cfg.Rank.DynamicDeathPoints = true

	f := testutils.NewServiceFixture(t, cfg)
	f.Join(t, 1, "STEAM_1:0:1", 50)
	f.Roster.Join(2, true, nil)

	assert.Equal(t, int64(10), f.Service.ScaleByRatio(1, 2, 10))
	assert.Equal(t, int64(10), f.Service.ScaleByRatio(2, 1, 10))
}
