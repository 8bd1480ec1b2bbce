package internal

import (
	"context"

	apperrors "github.com/koopa0/system-design/14-player-ranking/pkg/errors"
)

// 排行榜查詢上限
const (
	DefaultLeaderboardLimit = 10
	MaxLeaderboardLimit     = 100
)

// Placement 玩家在全體中的名次
type Placement struct {
	Identity string `json:"identity"`
	Rank     int64  `json:"rank"`
	Total    int64  `json:"total"`
}

// LeaderboardEntry 排行榜上的一列
type LeaderboardEntry struct {
	Position int64  `json:"position"`
	Identity string `json:"identity"`
	Name     string `json:"name"`
	Points   int64  `json:"points"`
	Tier     string `json:"tier"`
}

// PlacementOf 查詢名次：1 + 持久層中點數嚴格高於該玩家的人數
//
// 只看已落地的資料，快取中尚未寫入的差量不計入。
func (s *Service) PlacementOf(ctx context.Context, identity string) (Placement, error) {
	row, err := s.queries.GetPlacement(ctx, identity)
	if err != nil {
		s.logger.Error("get placement failed", "identity", identity, "error", err)
		return Placement{}, apperrors.Wrap(err, apperrors.ErrCodeStorageUnavailable, "get placement")
	}
	if !row.Found {
		return Placement{}, apperrors.ErrPlayerNotFound
	}

	return Placement{
		Identity: identity,
		Rank:     row.Ahead + 1,
		Total:    row.Total,
	}, nil
}

// Top 點數最高的前 limit 名，同分同名次
func (s *Service) Top(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		limit = DefaultLeaderboardLimit
	}
	limit = min(limit, MaxLeaderboardLimit)

	rows, err := s.queries.ListTopPlayers(ctx, int32(limit))
	if err != nil {
		s.logger.Error("list top players failed", "limit", limit, "error", err)
		return nil, apperrors.Wrap(err, apperrors.ErrCodeStorageUnavailable, "list top players")
	}

	entries := make([]LeaderboardEntry, 0, len(rows))
	for i, row := range rows {
		position := int64(i + 1)
		if i > 0 && row.Points == entries[i-1].Points {
			position = entries[i-1].Position
		}
		entries = append(entries, LeaderboardEntry{
			Position: position,
			Identity: row.Identity,
			Name:     row.Name,
			Points:   row.Points,
			Tier:     s.ranks.TierFor(row.Points).Name,
		})
	}
	return entries, nil
}
