package internal_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koopa0/system-design/14-player-ranking/internal"
	"github.com/koopa0/system-design/14-player-ranking/internal/testutils"
)

// TestSaveScheduler_PersistsPeriodically 測試定期寫入
func TestSaveScheduler_PersistsPeriodically(t *testing.T) {
	f := testutils.NewServiceFixture(t, nil)
	f.Join(t, 1, "STEAM_1:0:1", 40)

	require.NoError(t, f.Service.ModifyPoints(context.Background(), 1, 25, "kill"))

	scheduler := internal.NewSaveScheduler(f.Service, 20*time.Millisecond, testutils.TestLogger())
	scheduler.Start()
	defer scheduler.Stop()

	testutils.WaitForCondition(t, func() bool {
		row, ok := f.Queries.Player("STEAM_1:0:1")
		return ok && row.Points == 65
	}, 2*time.Second, "scheduler should flush pending delta")

	// 寫入後差量歸零，玩家仍留在快取
	testutils.WaitForCondition(t, func() bool {
		p, err := f.Service.Session(1)
		return err == nil && p.RoundDeltaPoints == 0
	}, time.Second, "delta should be compensated after flush")

	p, err := f.Service.Session(1)
	require.NoError(t, err)
	assert.Equal(t, int64(65), p.TotalPoints)
}

func TestSaveScheduler_SkipsEmptyCache(t *testing.T) {
	f := testutils.NewServiceFixture(t, nil)

	scheduler := internal.NewSaveScheduler(f.Service, 10*time.Millisecond, testutils.TestLogger())
	scheduler.Start()
	time.Sleep(50 * time.Millisecond)
	scheduler.Stop()

	assert.Zero(t, f.Queries.ApplyCalls.Load())
}

func TestSaveScheduler_StopIsIdempotent(t *testing.T) {
	f := testutils.NewServiceFixture(t, nil)

	scheduler := internal.NewSaveScheduler(f.Service, time.Hour, testutils.TestLogger())
	scheduler.Start()

	done := make(chan struct{})
	go func() {
		scheduler.Stop()
		scheduler.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return")
	}
}
