package testutils

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/koopa0/system-design/14-player-ranking/internal/sqlc"
)

// MockQuerier 實作 sqlc.Querier 介面的 mock，語意與 SQL 相同（點數下限 0、統計累加）
type MockQuerier struct {
	mu      sync.Mutex
	players map[string]sqlc.PlayerRank
	mirror  map[string]sqlc.LvlBase

	// 記錄呼叫次數
	ApplyCalls     atomic.Int32
	TouchCalls     atomic.Int32
	GetCalls       atomic.Int32
	PlacementCalls atomic.Int32
	MirrorCalls    atomic.Int32
	TierCalls      atomic.Int32
	TopCalls       atomic.Int32

	// 錯誤注入：ShouldFailNext 只影響下一次呼叫，ApplyErr 持續影響 ApplyPlayerDelta
	ShouldFailNext bool
	FailError      error
	ApplyErr       error

	// BeforeApply 在套用差量前呼叫（鎖外），用於模擬寫入期間的並發變動
	BeforeApply func(params sqlc.ApplyPlayerDeltaParams)
}

var _ sqlc.Querier = (*MockQuerier)(nil)

// NewMockQuerier 創建新的 MockQuerier
func NewMockQuerier() *MockQuerier {
	return &MockQuerier{
		players: make(map[string]sqlc.PlayerRank),
		mirror:  make(map[string]sqlc.LvlBase),
	}
}

func (m *MockQuerier) failNext() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ShouldFailNext {
		m.ShouldFailNext = false
		return m.FailError
	}
	return nil
}

// ApplyPlayerDelta 實作 sqlc 的 ApplyPlayerDelta 方法
func (m *MockQuerier) ApplyPlayerDelta(ctx context.Context, arg sqlc.ApplyPlayerDeltaParams) (sqlc.PlayerRank, error) {
	m.ApplyCalls.Add(1)

	if err := m.failNext(); err != nil {
		return sqlc.PlayerRank{}, err
	}

	m.mu.Lock()
	applyErr, hook := m.ApplyErr, m.BeforeApply
	m.mu.Unlock()

	if applyErr != nil {
		return sqlc.PlayerRank{}, applyErr
	}
	if hook != nil {
		hook(arg)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	row, ok := m.players[arg.Identity]
	if !ok {
		row = sqlc.PlayerRank{Identity: arg.Identity}
	}
	row.Name = arg.Name
	row.Tier = arg.Tier
	row.Points = max(0, row.Points+arg.Points)
	row.LastSeen = now()
	row.Kills += arg.Kills
	row.Deaths += arg.Deaths
	row.Assists += arg.Assists
	row.Headshots += arg.Headshots
	row.Shots += arg.Shots
	row.Grenades += arg.Grenades
	row.RoundWin += arg.RoundWin
	row.RoundLose += arg.RoundLose
	row.GameWin += arg.GameWin
	row.GameLose += arg.GameLose
	row.Mvp += arg.Mvp
	row.FirstBlood += arg.FirstBlood
	row.HitsGiven += arg.HitsGiven
	row.HitsTaken += arg.HitsTaken

	m.players[arg.Identity] = row
	return row, nil
}

// CountPlayers 實作 sqlc 的 CountPlayers 方法
func (m *MockQuerier) CountPlayers(ctx context.Context) (int64, error) {
	if err := m.failNext(); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.players)), nil
}

// GetPlacement 實作 sqlc 的 GetPlacement 方法
func (m *MockQuerier) GetPlacement(ctx context.Context, identity string) (sqlc.GetPlacementRow, error) {
	m.PlacementCalls.Add(1)

	if err := m.failNext(); err != nil {
		return sqlc.GetPlacementRow{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	result := sqlc.GetPlacementRow{Total: int64(len(m.players))}
	target, ok := m.players[identity]
	if !ok {
		return result, nil
	}

	result.Found = true
	for _, row := range m.players {
		if row.Points > target.Points {
			result.Ahead++
		}
	}
	return result, nil
}

// GetPlayer 實作 sqlc 的 GetPlayer 方法
func (m *MockQuerier) GetPlayer(ctx context.Context, identity string) (sqlc.PlayerRank, error) {
	m.GetCalls.Add(1)

	if err := m.failNext(); err != nil {
		return sqlc.PlayerRank{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	row, ok := m.players[identity]
	if !ok {
		return sqlc.PlayerRank{}, pgx.ErrNoRows
	}
	return row, nil
}

// ListTopPlayers 實作 sqlc 的 ListTopPlayers 方法
func (m *MockQuerier) ListTopPlayers(ctx context.Context, limit int32) ([]sqlc.PlayerRank, error) {
	m.TopCalls.Add(1)

	if err := m.failNext(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	rows := make([]sqlc.PlayerRank, 0, len(m.players))
	for _, row := range m.players {
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Points != rows[j].Points {
			return rows[i].Points > rows[j].Points
		}
		return rows[i].Identity < rows[j].Identity
	})

	if int(limit) < len(rows) {
		rows = rows[:limit]
	}
	return rows, nil
}

// MirrorLevelRanks 實作 sqlc 的 MirrorLevelRanks 方法
func (m *MockQuerier) MirrorLevelRanks(ctx context.Context, arg sqlc.MirrorLevelRanksParams) error {
	m.MirrorCalls.Add(1)

	if err := m.failNext(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	row := m.mirror[arg.Steam]
	m.mirror[arg.Steam] = sqlc.LvlBase{
		Steam:       arg.Steam,
		Name:        arg.Name,
		Rank:        arg.Rank,
		Value:       max(0, row.Value+arg.Value),
		Kills:       arg.Kills,
		Deaths:      arg.Deaths,
		Shoots:      arg.Shoots,
		Hits:        arg.Hits,
		Headshots:   arg.Headshots,
		Assists:     arg.Assists,
		RoundWin:    arg.RoundWin,
		RoundLose:   arg.RoundLose,
		Lastconnect: now(),
	}
	return nil
}

// SetPlayerTier 實作 sqlc 的 SetPlayerTier 方法
func (m *MockQuerier) SetPlayerTier(ctx context.Context, arg sqlc.SetPlayerTierParams) error {
	m.TierCalls.Add(1)

	if err := m.failNext(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	row, ok := m.players[arg.Identity]
	if !ok || row.Points != arg.Points {
		return nil
	}
	row.Tier = arg.Tier
	m.players[arg.Identity] = row
	return nil
}

// TouchPlayer 實作 sqlc 的 TouchPlayer 方法
func (m *MockQuerier) TouchPlayer(ctx context.Context, arg sqlc.TouchPlayerParams) (sqlc.PlayerRank, error) {
	m.TouchCalls.Add(1)

	if err := m.failNext(); err != nil {
		return sqlc.PlayerRank{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	row, ok := m.players[arg.Identity]
	if !ok {
		row = sqlc.PlayerRank{Identity: arg.Identity, Tier: arg.Tier}
	}
	row.Name = arg.Name
	row.LastSeen = now()

	m.players[arg.Identity] = row
	return row, nil
}

// SetPlayerPoints 直接設置玩家點數（測試用）
func (m *MockQuerier) SetPlayerPoints(identity string, points int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	row := m.players[identity]
	row.Identity = identity
	row.Points = points
	m.players[identity] = row
}

// SetPlayer 直接設置整列資料（測試用）
func (m *MockQuerier) SetPlayer(row sqlc.PlayerRank) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.players[row.Identity] = row
}

// Player 直接獲取資料列（測試用）
func (m *MockQuerier) Player(identity string) (sqlc.PlayerRank, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.players[identity]
	return row, ok
}

// Mirror 直接獲取 LevelRanks 鏡像列（測試用）
func (m *MockQuerier) Mirror(identity string) (sqlc.LvlBase, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.mirror[identity]
	return row, ok
}

// SetApplyError 設定或清除持續性的寫入錯誤
func (m *MockQuerier) SetApplyError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ApplyErr = err
}

// FailNextCall 讓下一次呼叫返回 err
func (m *MockQuerier) FailNextCall(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ShouldFailNext = true
	m.FailError = err
}

func now() pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: time.Now(), Valid: true}
}
