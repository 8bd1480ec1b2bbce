package internal_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koopa0/system-design/14-player-ranking/internal"
	"github.com/koopa0/system-design/14-player-ranking/internal/sqlc"
	"github.com/koopa0/system-design/14-player-ranking/internal/testutils"
)

// newPostgresService 以真實 PostgreSQL 與 Redis 組裝服務
func newPostgresService(t *testing.T, env *testutils.TestEnvironment, cfg *internal.Config) (*internal.Service, *internal.Roster, *internal.Outbox) {
	t.Helper()

	if cfg == nil {
		cfg = testutils.DefaultTestConfig()
	}

	roster := internal.NewRoster()
	outbox := internal.NewOutbox()
	service := internal.NewService(internal.Dependencies{
		Queries:    sqlc.New(env.PostgresPool),
		Ranks:      testutils.NewTestRankTable(t),
		Game:       roster,
		Authorizer: internal.NewRedisAuthorizer(env.RedisClient, "test"),
		Outbox:     outbox,
	}, cfg, env.Logger)
	t.Cleanup(service.Shutdown)

	return service, roster, outbox
}

// TestPostgres_ApplyPlayerDelta 測試差量寫入的 SQL 語意
func TestPostgres_ApplyPlayerDelta(t *testing.T) {
	env := testutils.SetupTestEnvironment(t)
	defer env.Cleanup()

	ctx := context.Background()
	queries := sqlc.New(env.PostgresPool)

	t.Run("insert then accumulate", func(t *testing.T) {
		env.TruncatePostgresTables(t)

		row, err := queries.ApplyPlayerDelta(ctx, sqlc.ApplyPlayerDeltaParams{
			Identity: "STEAM_1:0:1", Name: "Alice", Tier: "None", Points: 40, Kills: 2,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(40), row.Points)

		row, err = queries.ApplyPlayerDelta(ctx, sqlc.ApplyPlayerDeltaParams{
			Identity: "STEAM_1:0:1", Name: "Alice2", Tier: "None", Points: 15, Kills: 1, Deaths: 3,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(55), row.Points)
		assert.Equal(t, int64(3), row.Kills)
		assert.Equal(t, int64(3), row.Deaths)
		assert.Equal(t, "Alice2", row.Name)
	})

	t.Run("points never go below zero", func(t *testing.T) {
		env.TruncatePostgresTables(t)

		row, err := queries.ApplyPlayerDelta(ctx, sqlc.ApplyPlayerDeltaParams{
			Identity: "STEAM_1:0:2", Tier: "None", Points: -30,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(0), row.Points)

		_, err = queries.ApplyPlayerDelta(ctx, sqlc.ApplyPlayerDeltaParams{
			Identity: "STEAM_1:0:2", Tier: "None", Points: 10,
		})
		require.NoError(t, err)

		row, err = queries.ApplyPlayerDelta(ctx, sqlc.ApplyPlayerDeltaParams{
			Identity: "STEAM_1:0:2", Tier: "None", Points: -25,
		})
		require.NoError(t, err)
		assert.Equal(t, int64(0), row.Points)
	})

	t.Run("concurrent writers do not lose updates", func(t *testing.T) {
		env.TruncatePostgresTables(t)

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := queries.ApplyPlayerDelta(ctx, sqlc.ApplyPlayerDeltaParams{
					Identity: "shared", Tier: "None", Points: 5, Shots: 1,
				})
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		row, err := queries.GetPlayer(ctx, "shared")
		require.NoError(t, err)
		assert.Equal(t, int64(100), row.Points)
		assert.Equal(t, int64(20), row.Shots)
	})
}

// TestPostgres_ServiceRoundTrip 載入、變動、寫入、再載入
func TestPostgres_ServiceRoundTrip(t *testing.T) {
	env := testutils.SetupTestEnvironment(t)
	defer env.Cleanup()
	env.ResetTestData(t)

	cfg := testutils.DefaultTestConfig()
	cfg.General.LevelRanksCompatibility = true
	service, roster, _ := newPostgresService(t, env, cfg)

	ctx := context.Background()
	queries := sqlc.New(env.PostgresPool)

	roster.Join(1, false, nil)
	p, err := service.LoadSession(ctx, 1, "STEAM_1:0:1", "Alice")
	require.NoError(t, err)
	assert.Equal(t, int64(0), p.TotalPoints)

	require.NoError(t, service.ModifyPoints(ctx, 1, 120, "bomb"))
	require.NoError(t, service.ModifyStat(1, internal.StatKills, 4))

	// 外部寫入者同時增加點數
	_, err = queries.ApplyPlayerDelta(ctx, sqlc.ApplyPlayerDeltaParams{
		Identity: "STEAM_1:0:1", Name: "Alice", Tier: "None", Points: 400,
	})
	require.NoError(t, err)

	require.NoError(t, service.SaveSession(1, false).Wait(ctx))

	p, err = service.Session(1)
	require.NoError(t, err)
	assert.Equal(t, int64(520), p.TotalPoints)
	assert.Equal(t, "Gold", p.Tier.Name)
	assert.Zero(t, p.RoundDeltaPoints)
	assert.Equal(t, int64(4), p.Stats[internal.StatKills])

	caps, err := internal.NewRedisAuthorizer(env.RedisClient, "test").Capabilities(ctx, "STEAM_1:0:1")
	require.NoError(t, err)
	assert.Equal(t, []string{testutils.CapGoldChat, testutils.CapGoldTag}, caps)

	// 段位欄位依寫入後的點數判定
	row, err := queries.GetPlayer(ctx, "STEAM_1:0:1")
	require.NoError(t, err)
	assert.Equal(t, "Gold", row.Tier)

	var (
		value, kills int64
		rank         string
	)
	err = env.PostgresPool.QueryRow(ctx,
		"SELECT value, kills, rank FROM lvl_base WHERE steam = $1", "STEAM_1:0:1").Scan(&value, &kills, &rank)
	require.NoError(t, err)
	assert.Equal(t, int64(120), value)
	assert.Equal(t, int64(4), kills)
	assert.Equal(t, "Gold", rank)

	// 點數已被其他寫入改變時不覆蓋段位
	require.NoError(t, queries.SetPlayerTier(ctx, sqlc.SetPlayerTierParams{
		Identity: "STEAM_1:0:1", Tier: "None", Points: 1,
	}))
	row, err = queries.GetPlayer(ctx, "STEAM_1:0:1")
	require.NoError(t, err)
	assert.Equal(t, "Gold", row.Tier)

	require.NoError(t, service.Disconnect(1).Wait(ctx))
	assert.False(t, service.Cache().Contains(1))

	// 重新載入看到持久化結果
	p, err = service.LoadSession(ctx, 1, "STEAM_1:0:1", "Alice")
	require.NoError(t, err)
	assert.Equal(t, int64(520), p.TotalPoints)
	assert.Equal(t, int64(4), p.Stats[internal.StatKills])
}

func TestPostgres_PlacementAndTop(t *testing.T) {
	env := testutils.SetupTestEnvironment(t)
	defer env.Cleanup()
	env.ResetTestData(t)

	service, _, _ := newPostgresService(t, env, nil)
	queries := sqlc.New(env.PostgresPool)
	ctx := context.Background()

	for identity, points := range map[string]int64{"A": 300, "B": 100, "C": 100, "D": 50} {
		_, err := queries.ApplyPlayerDelta(ctx, sqlc.ApplyPlayerDeltaParams{
			Identity: identity, Name: identity, Tier: "None", Points: points,
		})
		require.NoError(t, err)
	}

	for identity, rank := range map[string]int64{"A": 1, "B": 2, "C": 2, "D": 4} {
		placement, err := service.PlacementOf(ctx, identity)
		require.NoError(t, err, identity)
		assert.Equal(t, rank, placement.Rank, identity)
		assert.Equal(t, int64(4), placement.Total)
	}

	_, err := service.PlacementOf(ctx, "nobody")
	assert.Error(t, err)

	entries, err := service.Top(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 4)
	got := make([]string, 0, len(entries))
	for _, e := range entries {
		got = append(got, fmt.Sprintf("%d:%s", e.Position, e.Identity))
	}
	assert.Equal(t, []string{"1:A", "2:B", "2:C", "4:D"}, got)
}

// TestRedisAuthorizer 測試 Redis 權限集合
func TestRedisAuthorizer(t *testing.T) {
	env := testutils.SetupTestEnvironment(t)
	defer env.Cleanup()
	env.FlushRedis(t)

	ctx := context.Background()
	auth := internal.NewRedisAuthorizer(env.RedisClient, "test")

	require.NoError(t, auth.Grant(ctx, "p1", "b"))
	require.NoError(t, auth.Grant(ctx, "p1", "a"))
	require.NoError(t, auth.Grant(ctx, "p1", "a"))

	caps, err := auth.Capabilities(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, caps)

	require.NoError(t, auth.Revoke(ctx, "p1", "b"))
	require.NoError(t, auth.Replace(ctx, "p1", []string{"a"}, []string{"c", "d"}))

	caps, err = auth.Capabilities(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "d"}, caps)

	members, err := env.RedisClient.SMembers(ctx, "test:capabilities:p1").Result()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"c", "d"}, members)
}
