package internal_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/koopa0/system-design/14-player-ranking/internal"
)

func TestRoster(t *testing.T) {
	r := internal.NewRoster()
	var _ internal.GameState = r

	r.Join(1, false, []string{"@rank/vip/points-multiplier"})
	r.Join(2, true, nil)
	r.Join(3, false, nil)

	assert.Equal(t, 2, r.HumanPlayers())
	assert.True(t, r.IsHuman(1))
	assert.False(t, r.IsHuman(2), "bot")
	assert.False(t, r.IsHuman(9), "empty slot")

	assert.True(t, r.HasPermission(1, "@rank/vip/points-multiplier"))
	assert.False(t, r.HasPermission(3, "@rank/vip/points-multiplier"))
	assert.False(t, r.HasPermission(9, "@rank/vip/points-multiplier"))

	// 槽位重用時覆蓋前一位玩家
	r.Join(1, true, nil)
	assert.False(t, r.IsHuman(1))
	assert.False(t, r.HasPermission(1, "@rank/vip/points-multiplier"))

	r.Leave(3)
	assert.Equal(t, 0, r.HumanPlayers())

	assert.False(t, r.WarmupPeriod())
	r.SetWarmup(true)
	assert.True(t, r.WarmupPeriod())
}
