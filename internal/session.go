package internal

import (
	"maps"
	"sort"
	"sync"
	"time"

	apperrors "github.com/koopa0/system-design/14-player-ranking/pkg/errors"
)

// PlayerProgress 單一連線槽位的玩家進度
type PlayerProgress struct {
	Slot     int    `json:"slot"`
	Identity string `json:"identity"`
	Name     string `json:"name"`

	TotalPoints int64 `json:"total_points"`
	Tier        Tier  `json:"tier"`

	// RoundDeltaPoints 尚未寫入持久層的點數差量，不設下限
	RoundDeltaPoints int64 `json:"round_delta_points"`
	// RoundEarned 本回合累計變化，回合結束時歸零
	RoundEarned int64 `json:"round_earned"`

	// Stats 統計總量（已持久化 + 未寫入差量）
	Stats map[string]int64 `json:"stats"`
	// StatDeltas 尚未寫入持久層的統計差量
	StatDeltas map[string]int64 `json:"stat_deltas,omitempty"`

	LoadedAt time.Time `json:"loaded_at"`

	// session 每次載入遞增，用於辨識槽位是否已被新玩家重用
	session uint64
	// departed 玩家已離線但最終寫入失敗，保留差量等待重試
	departed bool
}

func (p *PlayerProgress) clone() PlayerProgress {
	cp := *p
	cp.Stats = maps.Clone(p.Stats)
	cp.StatDeltas = maps.Clone(p.StatDeltas)
	return cp
}

// flushTicket 寫入開始時擷取的快照
type flushTicket struct {
	slot       int
	session    uint64
	identity   string
	name       string
	tier       string
	points     int64
	statDeltas map[string]int64
}

// SessionCache 槽位 → 玩家進度
//
// 槽位已載入 iff 該槽位有玩家且已完成載入；最終寫入失敗的紀錄仍留在快取中，
// 但不再視為已載入，只等待重試。
// 對外只回傳副本，所有修改都經由 update 在鎖內完成。
type SessionCache struct {
	mu          sync.RWMutex
	entries     map[int]*PlayerProgress
	nextSession uint64
}

// NewSessionCache 建立空快取
func NewSessionCache() *SessionCache {
	return &SessionCache{
		entries: make(map[int]*PlayerProgress),
	}
}

// insert 放入新載入的紀錄，覆蓋同槽位的舊紀錄
func (c *SessionCache) insert(p *PlayerProgress) PlayerProgress {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextSession++
	p.session = c.nextSession
	c.entries[p.Slot] = p
	return p.clone()
}

// Get 返回槽位紀錄的副本；未載入時返回 ErrNotLoaded
func (c *SessionCache) Get(slot int) (PlayerProgress, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	p, ok := c.entries[slot]
	if !ok || p.departed {
		return PlayerProgress{}, apperrors.ErrNotLoaded
	}
	return p.clone(), nil
}

// Contains 檢查槽位是否已載入
func (c *SessionCache) Contains(slot int) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	p, ok := c.entries[slot]
	return ok && !p.departed
}

// occupied 槽位是否仍有紀錄（包含等待重試的離線玩家）
func (c *SessionCache) occupied(slot int) (PlayerProgress, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	p, ok := c.entries[slot]
	if !ok {
		return PlayerProgress{}, false
	}
	return p.clone(), true
}

// Remove 移除槽位
func (c *SessionCache) Remove(slot int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.entries[slot]
	delete(c.entries, slot)
	return ok
}

// removeSession 只在槽位仍屬於同一次載入時移除
func (c *SessionCache) removeSession(slot int, session uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.entries[slot]
	if !ok || p.session != session {
		return false
	}
	delete(c.entries, slot)
	return true
}

// Clear 清空快取
func (c *SessionCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	clear(c.entries)
}

// Len 已載入的槽位數
func (c *SessionCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}

// SnapshotAll 依槽位排序的副本
func (c *SessionCache) SnapshotAll() []PlayerProgress {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]PlayerProgress, 0, len(c.entries))
	for _, p := range c.entries {
		out = append(out, p.clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Slot < out[j].Slot
	})
	return out
}

// update 在鎖內修改槽位紀錄；已離線等待重試的紀錄視為未載入
func (c *SessionCache) update(slot int, fn func(p *PlayerProgress)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.entries[slot]
	if !ok || p.departed {
		return apperrors.ErrNotLoaded
	}
	fn(p)
	return nil
}

// updateSession 同 update，但槽位必須仍屬於指定的載入
func (c *SessionCache) updateSession(slot int, session uint64, fn func(p *PlayerProgress)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.entries[slot]
	if !ok || p.session != session {
		return apperrors.ErrNotLoaded
	}
	fn(p)
	return nil
}

// markDeparted 最終寫入失敗時保留紀錄，之後的批次寫入會以最終寫入重試
func (c *SessionCache) markDeparted(slot int, session uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.entries[slot]
	if !ok || p.session != session {
		return false
	}
	p.departed = true
	return true
}

// capture 擷取寫入所需的差量快照
func (c *SessionCache) capture(slot int) (flushTicket, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	p, ok := c.entries[slot]
	if !ok {
		return flushTicket{}, apperrors.ErrNotLoaded
	}
	return flushTicket{
		slot:       slot,
		session:    p.session,
		identity:   p.Identity,
		name:       p.Name,
		tier:       p.Tier.Name,
		points:     p.RoundDeltaPoints,
		statDeltas: maps.Clone(p.StatDeltas),
	}, nil
}
