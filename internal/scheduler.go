package internal

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// SaveScheduler 定期寫入所有玩家，縮短當機時可能遺失的差量
type SaveScheduler struct {
	service  *Service
	interval time.Duration
	logger   *slog.Logger

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// NewSaveScheduler 創建定期寫入排程器
func NewSaveScheduler(service *Service, interval time.Duration, logger *slog.Logger) *SaveScheduler {
	return &SaveScheduler{
		service:  service,
		interval: interval,
		logger:   logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start 啟動排程器
func (ss *SaveScheduler) Start() {
	go ss.run()
}

// Stop 停止排程器，等待進行中的寫入結束
func (ss *SaveScheduler) Stop() {
	ss.once.Do(func() {
		close(ss.stop)
	})
	<-ss.done
}

func (ss *SaveScheduler) run() {
	defer close(ss.done)

	ss.logger.Info("save scheduler started", "interval", ss.interval)

	ticker := time.NewTicker(ss.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ss.saveAll()

		case <-ss.stop:
			ss.logger.Info("save scheduler stopped")
			return
		}
	}
}

func (ss *SaveScheduler) saveAll() {
	if ss.service.Cache().Len() == 0 {
		return
	}

	report := ss.service.SaveAllSessions(context.Background(), false)
	if report.Failed > 0 {
		ss.logger.Warn("periodic save incomplete",
			"attempted", report.Attempted,
			"failed", report.Failed)
	}
}
