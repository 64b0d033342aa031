package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/jeffRnR/noizy-hub/internal/pkg/logger"
	"github.com/jeffRnR/noizy-hub/internal/pkg/metrics"
)

// reclaimBatchSize は1回のスイープで回収するオファーの上限
const reclaimBatchSize = 100

// OfferReclaimer は期限切れオファーを回収するインターフェース
type OfferReclaimer interface {
	ExpireOverdueOffers(ctx context.Context, limit int) (int, error)
}

// OverdueOfferReclaimer は期限切れオファーを回収するワーカー
// インプロセスタイマーが取りこぼしたオファー（再起動、発火失敗）の
// バックストップとしてDBを定期的にスキャンする
type OverdueOfferReclaimer struct {
	waitlistService OfferReclaimer
	interval        time.Duration
	stopCh          chan struct{}
	doneCh          chan struct{}
}

// NewOverdueOfferReclaimer は新しい回収ワーカーを作成
func NewOverdueOfferReclaimer(ws OfferReclaimer, interval time.Duration) *OverdueOfferReclaimer {
	return &OverdueOfferReclaimer{
		waitlistService: ws,
		interval:        interval,
		stopCh:          make(chan struct{}),
		doneCh:          make(chan struct{}),
	}
}

// Start は回収ワーカーを開始
func (r *OverdueOfferReclaimer) Start(ctx context.Context) {
	logger.Info("期限切れオファー回収ワーカー開始",
		zap.Duration("interval", r.interval),
	)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	defer close(r.doneCh)

	for {
		select {
		case <-ctx.Done():
			logger.Info("期限切れオファー回収ワーカー停止（コンテキストキャンセル）")
			return
		case <-r.stopCh:
			logger.Info("期限切れオファー回収ワーカー停止（シグナル受信）")
			return
		case <-ticker.C:
			r.reclaim(ctx)
		}
	}
}

// Stop は回収ワーカーを停止
func (r *OverdueOfferReclaimer) Stop() {
	close(r.stopCh)
	<-r.doneCh
}

// reclaim は期限切れオファーを回収
func (r *OverdueOfferReclaimer) reclaim(ctx context.Context) {
	log := logger.Get()
	log.Debug("期限切れオファーのスキャン開始")

	count, err := r.waitlistService.ExpireOverdueOffers(ctx, reclaimBatchSize)
	if err != nil {
		log.Error("期限切れオファーの回収失敗", zap.Error(err))
		if m := metrics.Get(); m != nil {
			m.AdmissionSweepsTotal.WithLabelValues("error").Inc()
		}
		return
	}

	if count > 0 {
		log.Info("期限切れオファーを回収", zap.Int("count", count))
	} else {
		log.Debug("期限切れオファーなし")
	}
}
