package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// 通知模板鍵（文字由遊戲端在地化）
const (
	TemplatePointsGain   = "rank.points.gain"
	TemplatePointsLoss   = "rank.points.loss"
	TemplatePromote      = "rank.promote"
	TemplateDemote       = "rank.demote"
	TemplateRoundSummary = "rank.points.round_summary"
)

// Notification 給玩家的訊息事件
type Notification struct {
	Identity  string    `json:"identity"`
	Slot      int       `json:"slot"`
	Template  string    `json:"template"`
	Args      []any     `json:"args"`
	CreatedAt time.Time `json:"created_at"`
}

// Notifier 通知的外部協作者
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Outbox 待送出的通知佇列
//
// 點數變動只負責 Enqueue；送出延後到 Dispatcher 的安全點，不阻塞變動本身。
type Outbox struct {
	mu      sync.Mutex
	pending []Notification
}

// NewOutbox 建立空佇列
func NewOutbox() *Outbox {
	return &Outbox{}
}

// Enqueue 加入通知
func (o *Outbox) Enqueue(n Notification) {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.pending = append(o.pending, n)
}

// Drain 取出所有待送通知
func (o *Outbox) Drain() []Notification {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := o.pending
	o.pending = nil
	return out
}

// Len 待送通知數
func (o *Outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.pending)
}

// Dispatcher 定期清空 Outbox 並交給 Notifier
type Dispatcher struct {
	outbox   *Outbox
	notifier Notifier
	interval time.Duration
	logger   *slog.Logger

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// NewDispatcher 建立派送器
func NewDispatcher(outbox *Outbox, notifier Notifier, interval time.Duration, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		outbox:   outbox,
		notifier: notifier,
		interval: interval,
		logger:   logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start 啟動派送迴圈
func (d *Dispatcher) Start() {
	go d.run()
}

// Stop 停止迴圈並送出剩餘通知
func (d *Dispatcher) Stop() {
	d.once.Do(func() {
		close(d.stop)
	})
	<-d.done
}

func (d *Dispatcher) run() {
	defer close(d.done)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			d.DispatchOnce(context.Background())
		case <-d.stop:
			d.DispatchOnce(context.Background())
			return
		}
	}
}

// DispatchOnce 送出目前所有待送通知，返回成功數
func (d *Dispatcher) DispatchOnce(ctx context.Context) int {
	sent := 0
	for _, n := range d.outbox.Drain() {
		if err := d.notifier.Notify(ctx, n); err != nil {
			// 通知是 fire-and-forget，失敗只記錄
			d.logger.Warn("notify failed",
				"identity", n.Identity,
				"template", n.Template,
				"error", err)
			continue
		}
		sent++
	}
	return sent
}

// LogNotifier 只寫日誌的 Notifier
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier 建立日誌通知器
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify 記錄通知
func (n *LogNotifier) Notify(ctx context.Context, msg Notification) error {
	n.logger.InfoContext(ctx, "player notification",
		"identity", msg.Identity,
		"slot", msg.Slot,
		"template", msg.Template,
		"args", msg.Args)
	return nil
}

// NATSNotifier 將通知發佈到 NATS，主題為 {prefix}.{template}
type NATSNotifier struct {
	conn   *nats.Conn
	prefix string
}

// NewNATSNotifier 連線 NATS
func NewNATSNotifier(url, prefix string) (*NATSNotifier, error) {
	conn, err := nats.Connect(
		url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.PingInterval(20*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	return &NATSNotifier{conn: conn, prefix: prefix}, nil
}

// Notify 發佈通知
func (n *NATSNotifier) Notify(_ context.Context, msg Notification) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	subject := n.prefix + "." + msg.Template
	if err := n.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// Close 送出緩衝後關閉連線
func (n *NATSNotifier) Close() error {
	return n.conn.Drain()
}
