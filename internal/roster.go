package internal

import "sync"

// GameState 遊戲引擎提供的狀態查詢
//
// 引擎的實體模型不在本服務範圍內，服務只透過這個介面判斷玩家身分與回合狀態。
type GameState interface {
	WarmupPeriod() bool
	HumanPlayers() int
	IsHuman(slot int) bool
	HasPermission(slot int, permission string) bool
}

// Roster 以加入/離開事件維護的 GameState 實作
type Roster struct {
	mu      sync.RWMutex
	warmup  bool
	players map[int]rosterEntry
}

type rosterEntry struct {
	bot         bool
	permissions map[string]struct{}
}

// NewRoster 建立空名單
func NewRoster() *Roster {
	return &Roster{
		players: make(map[int]rosterEntry),
	}
}

// Join 記錄槽位上的玩家
func (r *Roster) Join(slot int, bot bool, permissions []string) {
	perms := make(map[string]struct{}, len(permissions))
	for _, p := range permissions {
		perms[p] = struct{}{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.players[slot] = rosterEntry{bot: bot, permissions: perms}
}

// Leave 移除槽位
func (r *Roster) Leave(slot int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.players, slot)
}

// SetWarmup 設定熱身狀態
func (r *Roster) SetWarmup(active bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warmup = active
}

// WarmupPeriod 是否處於熱身
func (r *Roster) WarmupPeriod() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.warmup
}

// HumanPlayers 非 BOT 玩家數
func (r *Roster) HumanPlayers() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, p := range r.players {
		if !p.bot {
			n++
		}
	}
	return n
}

// IsHuman 槽位上有真人玩家
func (r *Roster) IsHuman(slot int) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.players[slot]
	return ok && !p.bot
}

// HasPermission 玩家是否持有權限
func (r *Roster) HasPermission(slot int, permission string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.players[slot]
	if !ok {
		return false
	}
	_, has := p.permissions[permission]
	return has
}
