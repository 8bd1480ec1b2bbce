package internal

import (
	"github.com/koopa0/system-design/14-player-ranking/internal/sqlc"
)

// 統計欄位名稱（與 player_ranks 的欄位一一對應）
const (
	StatKills      = "kills"
	StatDeaths     = "deaths"
	StatAssists    = "assists"
	StatHeadshots  = "headshots"
	StatShots      = "shots"
	StatGrenades   = "grenades"
	StatRoundWin   = "round_win"
	StatRoundLose  = "round_lose"
	StatGameWin    = "game_win"
	StatGameLose   = "game_lose"
	StatMVP        = "mvp"
	StatFirstBlood = "first_blood"
	StatHitsGiven  = "hits_given"
	StatHitsTaken  = "hits_taken"
)

// StatNames 所有可追蹤的統計欄位
var StatNames = []string{
	StatKills, StatDeaths, StatAssists, StatHeadshots, StatShots, StatGrenades,
	StatRoundWin, StatRoundLose, StatGameWin, StatGameLose,
	StatMVP, StatFirstBlood, StatHitsGiven, StatHitsTaken,
}

var knownStats = func() map[string]struct{} {
	m := make(map[string]struct{}, len(StatNames))
	for _, name := range StatNames {
		m[name] = struct{}{}
	}
	return m
}()

// IsKnownStat 檢查統計欄位是否存在
func IsKnownStat(name string) bool {
	_, ok := knownStats[name]
	return ok
}

// statsFromRow 從資料列取出統計總量
func statsFromRow(row sqlc.PlayerRank) map[string]int64 {
	return map[string]int64{
		StatKills:      row.Kills,
		StatDeaths:     row.Deaths,
		StatAssists:    row.Assists,
		StatHeadshots:  row.Headshots,
		StatShots:      row.Shots,
		StatGrenades:   row.Grenades,
		StatRoundWin:   row.RoundWin,
		StatRoundLose:  row.RoundLose,
		StatGameWin:    row.GameWin,
		StatGameLose:   row.GameLose,
		StatMVP:        row.Mvp,
		StatFirstBlood: row.FirstBlood,
		StatHitsGiven:  row.HitsGiven,
		StatHitsTaken:  row.HitsTaken,
	}
}

// deltaParams 組裝差量寫入參數
func deltaParams(t flushTicket) sqlc.ApplyPlayerDeltaParams {
	d := t.statDeltas
	return sqlc.ApplyPlayerDeltaParams{
		Identity:   t.identity,
		Name:       t.name,
		Tier:       t.tier,
		Points:     t.points,
		Kills:      d[StatKills],
		Deaths:     d[StatDeaths],
		Assists:    d[StatAssists],
		Headshots:  d[StatHeadshots],
		Shots:      d[StatShots],
		Grenades:   d[StatGrenades],
		RoundWin:   d[StatRoundWin],
		RoundLose:  d[StatRoundLose],
		GameWin:    d[StatGameWin],
		GameLose:   d[StatGameLose],
		Mvp:        d[StatMVP],
		FirstBlood: d[StatFirstBlood],
		HitsGiven:  d[StatHitsGiven],
		HitsTaken:  d[StatHitsTaken],
	}
}

// mirrorParams LevelRanks 鏡像只接收精簡投影
func mirrorParams(t flushTicket, row sqlc.PlayerRank) sqlc.MirrorLevelRanksParams {
	return sqlc.MirrorLevelRanksParams{
		Steam:     row.Identity,
		Name:      row.Name,
		Rank:      row.Tier,
		Value:     t.points,
		Kills:     row.Kills,
		Deaths:    row.Deaths,
		Shoots:    row.Shots,
		Hits:      row.HitsGiven,
		Headshots: row.Headshots,
		Assists:   row.Assists,
		RoundWin:  row.RoundWin,
		RoundLose: row.RoundLose,
	}
}
