package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jeffRnR/noizy-hub/internal/pkg/logger"
)

// ReclaimFunc はオファー期限切れ時に呼ばれるコールバック
// offered でないエントリに対しては no-op となる冪等な実装であること
type ReclaimFunc func(ctx context.Context, entryID, eventID string) error

// OfferTimer はオファーごとの遅延回収コールバックを登録するインプロセスタイマー
// 配送は at-least-once：プロセス再起動で失われたタイマーは回収ワーカーが拾い、
// 購入・解放済みエントリへの遅延発火は回収側の冪等性ガードで no-op になる
type OfferTimer struct {
	reclaim ReclaimFunc
	timeout time.Duration

	mu     sync.Mutex
	timers map[string]*time.Timer
	closed bool
}

// NewOfferTimer は新しいOfferTimerを作成する
// timeout は1回の回収処理に許す実行時間
func NewOfferTimer(reclaim ReclaimFunc, timeout time.Duration) *OfferTimer {
	return &OfferTimer{
		reclaim: reclaim,
		timeout: timeout,
		timers:  make(map[string]*time.Timer),
	}
}

// Schedule は delay 経過後にエントリの回収を発火するタイマーを登録する
// 同じエントリに対する既存のタイマーがあれば置き換える
func (t *OfferTimer) Schedule(entryID, eventID string, delay time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}

	if existing, ok := t.timers[entryID]; ok {
		existing.Stop()
	}

	t.timers[entryID] = time.AfterFunc(delay, func() {
		t.fire(entryID, eventID)
	})
}

func (t *OfferTimer) fire(entryID, eventID string) {
	t.mu.Lock()
	delete(t.timers, entryID)
	t.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
	defer cancel()

	if err := t.reclaim(ctx, entryID, eventID); err != nil {
		// 失敗してもリトライしない。回収ワーカーが再配送する
		logger.Error("オファー回収コールバック失敗",
			zap.String("entry_id", entryID),
			zap.String("event_id", eventID),
			zap.Error(err),
		)
	}
}

// Stop は未発火のタイマーをすべて停止する
// 停止したオファーの回収は回収ワーカーに委ねられる
func (t *OfferTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	for id, timer := range t.timers {
		timer.Stop()
		delete(t.timers, id)
	}
}

// Pending は未発火のタイマー数を返す
func (t *OfferTimer) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.timers)
}
