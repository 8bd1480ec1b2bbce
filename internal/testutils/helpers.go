package testutils

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/koopa0/system-design/14-player-ranking/internal"
)

// 測試用段位權限
const (
	CapSilverTag = "@rank/silver/tag"
	CapGoldTag   = "@rank/gold/tag"
	CapGoldChat  = "@rank/gold/chat-color"
)

// DefaultTestConfig 返回測試用的預設配置
func DefaultTestConfig() *internal.Config {
	cfg := internal.DefaultConfig()

	cfg.Rank.MinPlayers = 0
	cfg.Rank.WarmupPoints = false
	cfg.Stats.MinPlayers = 0

	cfg.Persist.Workers = 2
	cfg.Persist.QueueSize = 16
	cfg.Persist.FlushConcurrency = 4
	cfg.Persist.FlushTimeout = 2 * time.Second
	cfg.Persist.SaveInterval = 50 * time.Millisecond

	cfg.Notify.DispatchInterval = 10 * time.Millisecond

	// Log 配置
	cfg.Log.Level = "warn"
	cfg.Log.Format = "json"

	return cfg
}

// TestTiers None(0) / Silver(100) / Gold(500)
func TestTiers() []internal.Tier {
	return []internal.Tier{
		{Name: "None", MinPoints: 0},
		{Name: "Silver", MinPoints: 100, Color: "silver", Capabilities: []string{CapSilverTag}},
		{Name: "Gold", MinPoints: 500, Color: "gold", Tag: "[GOLD]", Capabilities: []string{CapGoldTag, CapGoldChat}},
	}
}

// NewTestRankTable 建立測試段位表
func NewTestRankTable(t testing.TB) *internal.RankTable {
	t.Helper()

	table, err := internal.NewRankTable(TestTiers())
	require.NoError(t, err)
	return table
}

// TestLogger 測試時只輸出警告以上的日誌
func TestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

// ServiceFixture 以 mock 組裝的完整服務
type ServiceFixture struct {
	Service    *internal.Service
	Queries    *MockQuerier
	Roster     *internal.Roster
	Authorizer *internal.MemoryAuthorizer
	Outbox     *internal.Outbox
	Config     *internal.Config
}

// NewServiceFixture 建立服務；cfg 為 nil 時使用 DefaultTestConfig
func NewServiceFixture(t testing.TB, cfg *internal.Config) *ServiceFixture {
	t.Helper()

	if cfg == nil {
		cfg = DefaultTestConfig()
	}

	f := &ServiceFixture{
		Queries:    NewMockQuerier(),
		Roster:     internal.NewRoster(),
		Authorizer: internal.NewMemoryAuthorizer(),
		Outbox:     internal.NewOutbox(),
		Config:     cfg,
	}

	f.Service = internal.NewService(internal.Dependencies{
		Queries:    f.Queries,
		Ranks:      NewTestRankTable(t),
		Game:       f.Roster,
		Authorizer: f.Authorizer,
		Outbox:     f.Outbox,
	}, cfg, TestLogger())

	t.Cleanup(f.Service.Shutdown)
	return f
}

// Join 把真人玩家加入名單並載入
func (f *ServiceFixture) Join(t testing.TB, slot int, identity string, points int64, permissions ...string) internal.PlayerProgress {
	t.Helper()

	if points > 0 {
		f.Queries.SetPlayerPoints(identity, points)
	}
	f.Roster.Join(slot, false, permissions)

	progress, err := f.Service.LoadSession(context.Background(), slot, identity, identity)
	require.NoError(t, err)
	return progress
}

// Templates 取出 Outbox 中的通知模板鍵
func (f *ServiceFixture) Templates() []string {
	var out []string
	for _, n := range f.Outbox.Drain() {
		out = append(out, n.Template)
	}
	return out
}

// MakeHTTPRequest 執行 HTTP 請求的輔助函數
func MakeHTTPRequest(t testing.TB, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var bodyReader io.Reader
	if body != nil {
		if str, ok := body.(string); ok {
			bodyReader = strings.NewReader(str)
		} else {
			jsonBytes, err := json.Marshal(body)
			require.NoError(t, err)
			bodyReader = strings.NewReader(string(jsonBytes))
		}
	}

	req := httptest.NewRequest(method, path, bodyReader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, req)

	return recorder
}

// ParseJSONResponse 解析 JSON 響應
func ParseJSONResponse(t testing.TB, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()

	err := json.NewDecoder(recorder.Body).Decode(target)
	require.NoError(t, err, "failed to parse JSON response")
}

// WaitForCondition 等待條件滿足
func WaitForCondition(t testing.TB, condition func() bool, timeout time.Duration, message string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.Fatalf("timeout waiting for condition: %s", message)
		case <-ticker.C:
			if condition() {
				return
			}
		}
	}
}

// RunConcurrently 並發執行測試函數
func RunConcurrently(t testing.TB, concurrency int, iterations int, fn func(workerID, iteration int)) {
	t.Helper()

	done := make(chan struct{})
	for i := 0; i < concurrency; i++ {
		workerID := i
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < iterations; j++ {
				fn(workerID, j)
			}
		}()
	}

	// 等待所有 goroutine 完成
	for i := 0; i < concurrency; i++ {
		<-done
	}
}
