package internal_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koopa0/system-design/14-player-ranking/internal"
	"github.com/koopa0/system-design/14-player-ranking/internal/testutils"
)

// TestRankTable_TierFor 測試門檻邊界
func TestRankTable_TierFor(t *testing.T) {
	table := testutils.NewTestRankTable(t)

	tests := []struct {
		name     string
		points   int64
		expected string
	}{
		{"zero", 0, "None"},
		{"below silver", 99, "None"},
		{"exactly silver", 100, "Silver"},
		{"between", 499, "Silver"},
		{"exactly gold", 500, "Gold"},
		{"far above", 1_000_000, "Gold"},
		{"negative falls back to sentinel", -5, "None"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, table.TierFor(tt.points).Name)
		})
	}
}

// TestRankTable_Monotonic 點數增加時段位門檻不會下降
func TestRankTable_Monotonic(t *testing.T) {
	table := testutils.NewTestRankTable(t)

	prev := table.TierFor(0).MinPoints
	for p := int64(0); p <= 1000; p++ {
		cur := table.TierFor(p).MinPoints
		require.GreaterOrEqual(t, cur, prev, "points=%d", p)
		require.LessOrEqual(t, cur, p)
		prev = cur
	}
}

func TestNewRankTable_Validation(t *testing.T) {
	tests := []struct {
		name    string
		tiers   []internal.Tier
		wantErr bool
	}{
		{
			name:  "adds sentinel when missing",
			tiers: []internal.Tier{{Name: "Silver", MinPoints: 100}},
		},
		{
			name:  "unsorted input",
			tiers: []internal.Tier{{Name: "Gold", MinPoints: 500}, {Name: "Bronze", MinPoints: 0}, {Name: "Silver", MinPoints: 100}},
		},
		{
			name:    "empty name",
			tiers:   []internal.Tier{{Name: "", MinPoints: 10}},
			wantErr: true,
		},
		{
			name:    "negative threshold",
			tiers:   []internal.Tier{{Name: "Broken", MinPoints: -1}},
			wantErr: true,
		},
		{
			name:    "duplicate name",
			tiers:   []internal.Tier{{Name: "Silver", MinPoints: 100}, {Name: "Silver", MinPoints: 200}},
			wantErr: true,
		},
		{
			name:    "duplicate threshold",
			tiers:   []internal.Tier{{Name: "Silver", MinPoints: 100}, {Name: "Silver II", MinPoints: 100}},
			wantErr: true,
		},
		{
			name:    "two zero tiers",
			tiers:   []internal.Tier{{Name: "A", MinPoints: 0}, {Name: "B", MinPoints: 0}},
			wantErr: true,
		},
		{
			name:    "sentinel name with threshold",
			tiers:   []internal.Tier{{Name: internal.SentinelTierName, MinPoints: 50}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := internal.NewRankTable(tt.tiers)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, int64(0), table.Sentinel().MinPoints)

			tiers := table.Tiers()
			for i := 1; i < len(tiers); i++ {
				assert.Less(t, tiers[i-1].MinPoints, tiers[i].MinPoints)
			}
		})
	}
}

func TestLoadRankTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ranks.yaml")
	content := `
ranks:
  - name: Silver I
    points: 100
    color: grey
    permissions:
      - "@rank/silver/tag"
  - name: Gold Nova
    points: 700
    tag: "[GN]"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	table, err := internal.LoadRankTable(path)
	require.NoError(t, err)

	assert.Equal(t, internal.SentinelTierName, table.TierFor(0).Name)

	silver := table.TierFor(150)
	assert.Equal(t, "Silver I", silver.Name)
	assert.Equal(t, []string{"@rank/silver/tag"}, silver.Capabilities)
	assert.Equal(t, "[Silver I]", silver.ScoreboardTag())

	gold, ok := table.Lookup("Gold Nova")
	require.True(t, ok)
	assert.Equal(t, "[GN]", gold.ScoreboardTag())

	_, err = internal.LoadRankTable(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
