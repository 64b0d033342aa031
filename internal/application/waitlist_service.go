package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jeffRnR/noizy-hub/internal/domain/event"
	"github.com/jeffRnR/noizy-hub/internal/domain/inventory"
	"github.com/jeffRnR/noizy-hub/internal/domain/transaction"
	"github.com/jeffRnR/noizy-hub/internal/domain/waitlist"
	redisinfra "github.com/jeffRnR/noizy-hub/internal/infrastructure/redis"
	"github.com/jeffRnR/noizy-hub/internal/pkg/logger"
	"github.com/jeffRnR/noizy-hub/internal/pkg/metrics"
)

// OfferScheduler はオファーの遅延回収コールバックを登録するインターフェース
type OfferScheduler interface {
	Schedule(entryID, eventID string, delay time.Duration)
}

// EventLockKey はイベント単位の直列化に使うロックキーを返す
// 台帳と定員集計を変更する操作はすべてこのロックの中で実行される
func EventLockKey(eventID string) string {
	return "waitlist:event:" + eventID
}

// WaitlistService はウェイティングリスト台帳の唯一の書き手
// 参加・スイープ・解放・タイムアウト回収のすべての遷移を司る
type WaitlistService struct {
	txManager    transaction.Manager
	waitlistRepo waitlist.Repository
	eventRepo    event.Repository
	accountant   inventory.Accountant
	lockManager  redisinfra.LockManagerInterface
	cache        AvailabilityCacheInterface
	scheduler    OfferScheduler
	offerTTL     time.Duration
	lockTTL      time.Duration
}

func NewWaitlistService(
	txManager transaction.Manager,
	wr waitlist.Repository,
	er event.Repository,
	acc inventory.Accountant,
	lm redisinfra.LockManagerInterface,
	cache AvailabilityCacheInterface,
	offerTTL time.Duration,
	lockTTL time.Duration,
) *WaitlistService {
	return &WaitlistService{
		txManager:    txManager,
		waitlistRepo: wr,
		eventRepo:    er,
		accountant:   acc,
		lockManager:  lm,
		cache:        cache,
		offerTTL:     offerTTL,
		lockTTL:      lockTTL,
	}
}

// SetOfferScheduler は遅延回収スケジューラーを設定する
// スケジューラー側がサービスの回収メソッドを参照するため、生成後に注入する
func (s *WaitlistService) SetOfferScheduler(sched OfferScheduler) {
	s.scheduler = sched
}

// OfferTTL はオファーの有効期限を返す
func (s *WaitlistService) OfferTTL() time.Duration {
	return s.offerTTL
}

// JoinResult はウェイティングリスト参加の結果
type JoinResult struct {
	Success bool
	Status  waitlist.Status
	Message string
	Entry   *waitlist.Entry
}

// QueuePosition はエントリとその1始まりの順位
type QueuePosition struct {
	Entry    *waitlist.Entry
	Position int
}

// JoinQueue はユーザーをイベントのウェイティングリストに参加させる
// 空きがあれば即座にオファーを発行し、なければ waiting でキューに積む
func (s *WaitlistService) JoinQueue(ctx context.Context, eventID, userID string) (*JoinResult, error) {
	ev, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		s.countJoin("error")
		return nil, err
	}
	if !ev.IsSellable() {
		s.countJoin("error")
		return nil, event.ErrEventNotSellable
	}

	lock, err := s.lockEvent(ctx, eventID)
	if err != nil {
		s.countJoin("error")
		return nil, err
	}
	defer s.unlockEvent(ctx, lock)

	// 二重参加チェック：expired 以外のエントリが既にあれば拒否
	if _, err := s.waitlistRepo.GetActiveByUserAndEvent(ctx, eventID, userID); err == nil {
		s.countJoin("duplicate")
		return nil, waitlist.ErrAlreadyInWaitlist
	} else if !errors.Is(err, waitlist.ErrEntryNotFound) {
		s.countJoin("error")
		return nil, fmt.Errorf("二重参加チェックに失敗: %w", err)
	}

	now := time.Now()
	snap, err := s.accountant.Snapshot(ctx, eventID, now)
	if err != nil {
		s.countJoin("error")
		return nil, fmt.Errorf("定員スナップショット取得に失敗: %w", err)
	}

	entry := waitlist.NewEntry(eventID, userID)
	if err := entry.Validate(); err != nil {
		s.countJoin("error")
		return nil, err
	}

	offered := snap.Remaining() > 0
	if offered {
		if err := entry.Offer(now, s.offerTTL); err != nil {
			s.countJoin("error")
			return nil, err
		}
	}

	tx, err := s.txManager.Begin(ctx)
	if err != nil {
		s.countJoin("error")
		return nil, fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback()

	if err := s.waitlistRepo.Create(ctx, tx, entry); err != nil {
		s.countJoin("error")
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		s.countJoin("error")
		return nil, fmt.Errorf("コミットに失敗: %w", err)
	}

	s.invalidateCache(ctx, eventID)

	result := &JoinResult{Success: true, Status: entry.Status, Entry: entry}
	if offered {
		s.scheduleReclaim(entry)
		s.countJoin("offered")
		s.countOfferIssued("join", eventID)
		result.Message = fmt.Sprintf("チケットをオファーしました。%d分以内に購入してください", int(s.offerTTL.Minutes()))
	} else {
		s.countJoin("waiting")
		result.Message = "ウェイティングリストに追加しました。チケットが利用可能になり次第オファーされます"
	}

	logger.Info("ウェイティングリスト参加",
		zap.String("event_id", eventID),
		zap.String("user_id", userID),
		zap.String("status", string(entry.Status)),
	)
	return result, nil
}

// GetQueuePosition はユーザーのエントリと順位を返す
// 順位は同一イベントの waiting/offered エントリのうち、
// 自分より先に作成されたものの数 + 1
func (s *WaitlistService) GetQueuePosition(ctx context.Context, eventID, userID string) (*QueuePosition, error) {
	entry, err := s.waitlistRepo.GetActiveByUserAndEvent(ctx, eventID, userID)
	if err != nil {
		return nil, err
	}

	ahead, err := s.waitlistRepo.CountActiveAhead(ctx, entry)
	if err != nil {
		return nil, fmt.Errorf("順位取得に失敗: %w", err)
	}
	return &QueuePosition{Entry: entry, Position: ahead + 1}, nil
}

// ProcessQueue はアドミッションスイープを実行する
// 空き定員を waiting エントリへ作成順（古い順）に再配分する。
// 定員が増えうるすべての変更（解放・期限切れ・払い戻し・種別追加）の後に呼ぶこと
func (s *WaitlistService) ProcessQueue(ctx context.Context, eventID string) error {
	lock, err := s.lockEvent(ctx, eventID)
	if err != nil {
		return err
	}
	defer s.unlockEvent(ctx, lock)

	return s.processQueueLocked(ctx, eventID)
}

// processQueueLocked はイベントロック保持中にスイープ本体を実行する
func (s *WaitlistService) processQueueLocked(ctx context.Context, eventID string) error {
	now := time.Now()
	snap, err := s.accountant.Snapshot(ctx, eventID, now)
	if err != nil {
		s.countSweep("error")
		return fmt.Errorf("定員スナップショット取得に失敗: %w", err)
	}

	// 防御的チェック：ここに到達するのはロック規律が破れている場合のみ
	if snap.IsOverCommitted() {
		s.countSweep("error")
		logger.Error("定員不変条件違反を検出。ロックのバグの可能性",
			zap.String("event_id", eventID),
			zap.Int("total_capacity", snap.TotalCapacity),
			zap.Int("purchased", snap.PurchasedCount),
			zap.Int("active_offers", snap.ActiveOffers),
		)
		return waitlist.ErrCapacityExceeded
	}

	remaining := snap.Remaining()
	if remaining <= 0 {
		s.countSweep("noop")
		return nil
	}

	entries, err := s.waitlistRepo.SelectOldestWaiting(ctx, eventID, remaining)
	if err != nil {
		s.countSweep("error")
		return fmt.Errorf("waiting エントリ取得に失敗: %w", err)
	}
	if len(entries) == 0 {
		s.countSweep("noop")
		return nil
	}

	tx, err := s.txManager.Begin(ctx)
	if err != nil {
		s.countSweep("error")
		return fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback()

	for _, entry := range entries {
		if err := entry.Offer(now, s.offerTTL); err != nil {
			s.countSweep("error")
			return err
		}
		if err := s.waitlistRepo.UpdateStatus(ctx, tx, entry); err != nil {
			s.countSweep("error")
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		s.countSweep("error")
		return fmt.Errorf("コミットに失敗: %w", err)
	}

	s.invalidateCache(ctx, eventID)
	for _, entry := range entries {
		s.scheduleReclaim(entry)
		s.countOfferIssued("sweep", eventID)
	}
	s.countSweep("offered")

	logger.Info("アドミッションスイープ実行",
		zap.String("event_id", eventID),
		zap.Int("offered", len(entries)),
		zap.Int("remaining_before", remaining),
	)
	return nil
}

// ExpireOffer はタイムアウトしたオファーを回収する（タイマー・ワーカー経由）
// offered でないエントリに対しては no-op。at-least-once 配送による
// 重複・遅延発火はここで吸収される
func (s *WaitlistService) ExpireOffer(ctx context.Context, entryID, eventID string) error {
	lock, err := s.lockEvent(ctx, eventID)
	if err != nil {
		return err
	}
	defer s.unlockEvent(ctx, lock)

	entry, err := s.waitlistRepo.GetByID(ctx, entryID)
	if err != nil {
		return err
	}
	if entry.Status != waitlist.StatusOffered {
		// 購入済み・解放済みエントリへの遅延発火。正常系
		logger.Debug("オファー回収をスキップ（offered でない）",
			zap.String("entry_id", entryID),
			zap.String("status", string(entry.Status)),
		)
		return nil
	}

	if err := s.expireEntryLocked(ctx, entry); err != nil {
		return err
	}
	s.countOfferExpired("timeout", eventID)

	// 解放された枠を即座に次の waiting エントリへ再配分
	return s.processQueueLocked(ctx, eventID)
}

// ReleaseOffer はユーザーによる自発的なオファー返上
// タイムアウト回収と同じ終端状態に収束するが、offered でない場合はエラーを返す
func (s *WaitlistService) ReleaseOffer(ctx context.Context, eventID, entryID string) error {
	lock, err := s.lockEvent(ctx, eventID)
	if err != nil {
		return err
	}
	defer s.unlockEvent(ctx, lock)

	entry, err := s.waitlistRepo.GetByID(ctx, entryID)
	if err != nil {
		return err
	}
	if entry.EventID != eventID {
		return waitlist.ErrEntryNotFound
	}
	if entry.Status != waitlist.StatusOffered {
		return waitlist.ErrNoActiveOffer
	}

	if err := s.expireEntryLocked(ctx, entry); err != nil {
		return err
	}
	s.countOfferExpired("released", eventID)

	logger.Info("オファー返上",
		zap.String("event_id", eventID),
		zap.String("entry_id", entryID),
	)
	return s.processQueueLocked(ctx, eventID)
}

// expireEntryLocked はイベントロック保持中にエントリを expired へ遷移させる
func (s *WaitlistService) expireEntryLocked(ctx context.Context, entry *waitlist.Entry) error {
	if err := entry.Expire(); err != nil {
		return err
	}

	tx, err := s.txManager.Begin(ctx)
	if err != nil {
		return fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback()

	if err := s.waitlistRepo.UpdateStatus(ctx, tx, entry); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("コミットに失敗: %w", err)
	}

	s.invalidateCache(ctx, entry.EventID)
	return nil
}

// MarkEntryPurchased はオファーを行使してエントリを purchased にする
// 購入コラボレーター（チケット発行フロー）がイベントロックと
// トランザクションを保持した状態で呼び出すこと
func (s *WaitlistService) MarkEntryPurchased(ctx context.Context, tx transaction.Tx, entryID string, now time.Time) (*waitlist.Entry, error) {
	entry, err := s.waitlistRepo.GetByID(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if err := entry.MarkPurchased(now); err != nil {
		return nil, err
	}
	if err := s.waitlistRepo.UpdateStatus(ctx, tx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// GetActiveEntry はユーザーの expired でないエントリを返す
func (s *WaitlistService) GetActiveEntry(ctx context.Context, eventID, userID string) (*waitlist.Entry, error) {
	return s.waitlistRepo.GetActiveByUserAndEvent(ctx, eventID, userID)
}

// ExpireOverdueOffers は期限を過ぎた offered エントリをまとめて回収する
// 回収ワーカーのバックストップ用エントリポイント。回収数を返す
func (s *WaitlistService) ExpireOverdueOffers(ctx context.Context, limit int) (int, error) {
	entries, err := s.waitlistRepo.ListOverdueOffers(ctx, time.Now(), limit)
	if err != nil {
		return 0, fmt.Errorf("期限切れオファー取得に失敗: %w", err)
	}

	count := 0
	for _, entry := range entries {
		if err := s.ExpireOffer(ctx, entry.ID, entry.EventID); err != nil {
			logger.Error("期限切れオファー回収に失敗",
				zap.String("entry_id", entry.ID),
				zap.String("event_id", entry.EventID),
				zap.Error(err),
			)
			continue
		}
		count++
	}
	return count, nil
}

// ExpireActiveEntriesForEvent はイベントの waiting/offered エントリをすべて expired にする
// イベント中止時に呼ばれる
func (s *WaitlistService) ExpireActiveEntriesForEvent(ctx context.Context, eventID string) (int, error) {
	lock, err := s.lockEvent(ctx, eventID)
	if err != nil {
		return 0, err
	}
	defer s.unlockEvent(ctx, lock)

	entries, err := s.waitlistRepo.ListActiveByEvent(ctx, eventID)
	if err != nil {
		return 0, fmt.Errorf("アクティブエントリ取得に失敗: %w", err)
	}
	if len(entries) == 0 {
		return 0, nil
	}

	tx, err := s.txManager.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback()

	for _, entry := range entries {
		if err := entry.ExpireForCancellation(); err != nil {
			return 0, err
		}
		if err := s.waitlistRepo.UpdateStatus(ctx, tx, entry); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("コミットに失敗: %w", err)
	}

	s.invalidateCache(ctx, eventID)
	for range entries {
		s.countOfferExpired("event_cancelled", eventID)
	}
	return len(entries), nil
}

// === 内部ヘルパー ===

func (s *WaitlistService) lockEvent(ctx context.Context, eventID string) (redisinfra.Lock, error) {
	if s.lockManager == nil {
		return nil, nil
	}
	start := time.Now()
	lock, err := s.lockManager.AcquireLockWithRetry(ctx, EventLockKey(eventID), s.lockTTL, 3, 100*time.Millisecond)
	s.observeLock("acquire", start, err)
	if err != nil {
		if errors.Is(err, redisinfra.ErrLockNotAcquired) {
			return nil, fmt.Errorf("イベントが他の操作によって処理中です")
		}
		return nil, fmt.Errorf("ロック取得に失敗: %w", err)
	}
	return lock, nil
}

func (s *WaitlistService) unlockEvent(ctx context.Context, lock redisinfra.Lock) {
	if lock == nil {
		return
	}
	start := time.Now()
	err := lock.Release(ctx)
	s.observeLock("release", start, err)
	if err != nil {
		logger.Warn("ロック解放に失敗", zap.Error(err))
	}
}

func (s *WaitlistService) scheduleReclaim(entry *waitlist.Entry) {
	if s.scheduler == nil || entry.OfferExpiresAt == nil {
		return
	}
	s.scheduler.Schedule(entry.ID, entry.EventID, time.Until(*entry.OfferExpiresAt))
}

func (s *WaitlistService) invalidateCache(ctx context.Context, eventID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, eventID); err != nil {
		logger.Warn("キャッシュ無効化に失敗", zap.String("event_id", eventID), zap.Error(err))
	}
}

func (s *WaitlistService) countJoin(result string) {
	if m := metrics.Get(); m != nil {
		m.WaitlistJoinsTotal.WithLabelValues(result).Inc()
	}
}

func (s *WaitlistService) countOfferIssued(source, eventID string) {
	if m := metrics.Get(); m != nil {
		m.OffersIssuedTotal.WithLabelValues(source).Inc()
		m.ActiveOffers.WithLabelValues(eventID).Inc()
	}
}

func (s *WaitlistService) countOfferExpired(reason, eventID string) {
	if m := metrics.Get(); m != nil {
		m.OffersExpiredTotal.WithLabelValues(reason).Inc()
		m.ActiveOffers.WithLabelValues(eventID).Dec()
	}
}

func (s *WaitlistService) countSweep(result string) {
	if m := metrics.Get(); m != nil {
		m.AdmissionSweepsTotal.WithLabelValues(result).Inc()
	}
}

func (s *WaitlistService) observeLock(operation string, start time.Time, err error) {
	m := metrics.Get()
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failed"
	}
	m.DistributedLockDuration.WithLabelValues(operation, status).Observe(time.Since(start).Seconds())
}
