package internal

import (
	"context"
	"sync"
)

// slotGate 追蹤每個槽位上尚未完成的寫入
//
// 寫入在提交前 begin，完成後呼叫回傳的 release；
// 載入在插入快取前 wait，保證同槽位的舊寫入先完成。
// 同一槽位的寫入經由 lock 串行，避免同一筆差量被擷取兩次。
type slotGate struct {
	mu      sync.Mutex
	pending map[int]*slotPending
	flushes map[int]*sync.Mutex
}

type slotPending struct {
	n    int
	idle chan struct{}
}

func newSlotGate() *slotGate {
	return &slotGate{
		pending: make(map[int]*slotPending),
		flushes: make(map[int]*sync.Mutex),
	}
}

// begin 登記一筆進行中的寫入
func (g *slotGate) begin(slot int) (release func()) {
	g.mu.Lock()
	defer g.mu.Unlock()

	p, ok := g.pending[slot]
	if !ok {
		p = &slotPending{idle: make(chan struct{})}
		g.pending[slot] = p
	}
	p.n++

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			defer g.mu.Unlock()

			p.n--
			if p.n == 0 {
				close(p.idle)
				if g.pending[slot] == p {
					delete(g.pending, slot)
				}
			}
		})
	}
}

// wait 等待槽位上所有進行中的寫入完成
func (g *slotGate) wait(ctx context.Context, slot int) error {
	g.mu.Lock()
	p, ok := g.pending[slot]
	g.mu.Unlock()

	if !ok {
		return nil
	}

	select {
	case <-p.idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// busy 槽位是否有進行中的寫入
func (g *slotGate) busy(slot int) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.pending[slot]
	return ok
}

// lock 取得槽位的寫入鎖；槽位數有上限，鎖不回收
func (g *slotGate) lock(slot int) (unlock func()) {
	g.mu.Lock()
	m, ok := g.flushes[slot]
	if !ok {
		m = &sync.Mutex{}
		g.flushes[slot] = m
	}
	g.mu.Unlock()

	m.Lock()
	return m.Unlock
}
