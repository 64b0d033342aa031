package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jeffRnR/noizy-hub/internal/domain/event"
	"github.com/jeffRnR/noizy-hub/internal/domain/inventory"
	redisinfra "github.com/jeffRnR/noizy-hub/internal/infrastructure/redis"
)

// AvailabilityCacheInterface は残数キャッシュのインターフェース
type AvailabilityCacheInterface interface {
	GetRemaining(ctx context.Context, eventID string) (int, error)
	SetRemaining(ctx context.Context, eventID string, count int, ttl time.Duration) error
	Invalidate(ctx context.Context, eventID string) error
}

// availabilityCacheTTL は残数キャッシュの有効期限
// 台帳の変更時には明示的に無効化されるため短くてよい
const availabilityCacheTTL = 10 * time.Second

// InventoryService はイベント定員の読み取りを提供する
type InventoryService struct {
	eventRepo  event.Repository
	accountant inventory.Accountant
	cache      AvailabilityCacheInterface
}

func NewInventoryService(eventRepo event.Repository, accountant inventory.Accountant, cache AvailabilityCacheInterface) *InventoryService {
	return &InventoryService{eventRepo: eventRepo, accountant: accountant, cache: cache}
}

// Availability はイベントの販売状況を表す
type Availability struct {
	IsSoldOut        bool
	TotalTickets     int
	PurchasedCount   int
	ActiveOffers     int
	RemainingTickets int
}

// GetEventAvailability はイベントの販売状況を単一スナップショットから返す
func (s *InventoryService) GetEventAvailability(ctx context.Context, eventID string) (*Availability, error) {
	if _, err := s.eventRepo.GetByID(ctx, eventID); err != nil {
		return nil, err
	}

	snap, err := s.accountant.Snapshot(ctx, eventID, time.Now())
	if err != nil {
		return nil, fmt.Errorf("定員スナップショット取得に失敗: %w", err)
	}

	if s.cache != nil {
		// ベストエフォートで残数をキャッシュ（失敗しても読み取りは成功させる）
		_ = s.cache.SetRemaining(ctx, eventID, snap.Remaining(), availabilityCacheTTL)
	}

	return &Availability{
		IsSoldOut:        snap.IsSoldOut(),
		TotalTickets:     snap.TotalCapacity,
		PurchasedCount:   snap.PurchasedCount,
		ActiveOffers:     snap.ActiveOffers,
		RemainingTickets: snap.Remaining(),
	}, nil
}

// GetRemainingTickets は残り販売可能数を返す（キャッシュ優先）
func (s *InventoryService) GetRemainingTickets(ctx context.Context, eventID string) (int, error) {
	if s.cache != nil {
		if count, err := s.cache.GetRemaining(ctx, eventID); err == nil {
			return count, nil
		} else if !errors.Is(err, redisinfra.ErrCacheMiss) {
			return 0, err
		}
	}

	snap, err := s.accountant.Snapshot(ctx, eventID, time.Now())
	if err != nil {
		return 0, fmt.Errorf("定員スナップショット取得に失敗: %w", err)
	}
	remaining := snap.Remaining()

	if s.cache != nil {
		_ = s.cache.SetRemaining(ctx, eventID, remaining, availabilityCacheTTL)
	}
	return remaining, nil
}
