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

func seedLeaderboard(f *testutils.ServiceFixture) {
	f.Queries.SetPlayerPoints("A", 300)
	f.Queries.SetPlayerPoints("B", 100)
	f.Queries.SetPlayerPoints("C", 100)
	f.Queries.SetPlayerPoints("D", 50)
}

// TestPlacementOf 名次 = 1 + 點數嚴格較高的人數
func TestPlacementOf(t *testing.T) {
	f := testutils.NewServiceFixture(t, nil)
	seedLeaderboard(f)

	tests := []struct {
		identity string
		rank     int64
	}{
		{"A", 1},
		{"B", 2},
		{"C", 2},
		{"D", 4},
	}

	for _, tt := range tests {
		t.Run(tt.identity, func(t *testing.T) {
			placement, err := f.Service.PlacementOf(context.Background(), tt.identity)
			require.NoError(t, err)
			assert.Equal(t, tt.rank, placement.Rank)
			assert.Equal(t, int64(4), placement.Total)
		})
	}
}

func TestPlacementOf_Errors(t *testing.T) {
	f := testutils.NewServiceFixture(t, nil)
	seedLeaderboard(f)

	_, err := f.Service.PlacementOf(context.Background(), "nobody")
	assert.True(t, apperrors.IsNotFound(err))

	f.Queries.FailNextCall(assert.AnError)
	_, err = f.Service.PlacementOf(context.Background(), "A")
	assert.True(t, apperrors.IsStorageUnavailable(err))
}

// TestPlacementOf_IgnoresUnsavedDelta 只看已落地的資料
func TestPlacementOf_IgnoresUnsavedDelta(t *testing.T) {
	f := testutils.NewServiceFixture(t, nil)
	seedLeaderboard(f)
	f.Join(t, 1, "D", 50)

	ctx := context.Background()
	require.NoError(t, f.Service.ModifyPoints(ctx, 1, 500, "bomb"))

	placement, err := f.Service.PlacementOf(ctx, "D")
	require.NoError(t, err)
	assert.Equal(t, int64(4), placement.Rank)

	require.NoError(t, f.Service.SaveSession(1, false).Wait(ctx))

	placement, err = f.Service.PlacementOf(ctx, "D")
	require.NoError(t, err)
	assert.Equal(t, int64(1), placement.Rank)
}

func TestTop(t *testing.T) {
	f := testutils.NewServiceFixture(t, nil)
	seedLeaderboard(f)

	entries, err := f.Service.Top(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, internal.LeaderboardEntry{Position: 1, Identity: "A", Points: 300, Tier: "Silver"}, entries[0])
	assert.Equal(t, int64(2), entries[1].Position)
	assert.Equal(t, int64(2), entries[2].Position)
	assert.Equal(t, []string{"B", "C"}, []string{entries[1].Identity, entries[2].Identity})

	all, err := f.Service.Top(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, all, 4)
	assert.Equal(t, int64(4), all[3].Position)
}
