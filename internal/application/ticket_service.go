package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jeffRnR/noizy-hub/internal/domain/event"
	"github.com/jeffRnR/noizy-hub/internal/domain/ticket"
	"github.com/jeffRnR/noizy-hub/internal/domain/transaction"
	"github.com/jeffRnR/noizy-hub/internal/domain/waitlist"
	redisinfra "github.com/jeffRnR/noizy-hub/internal/infrastructure/redis"
	"github.com/jeffRnR/noizy-hub/internal/pkg/logger"
)

// ErrTicketTypeSaleEnded はチケット種別の販売終了後の購入試行
var ErrTicketTypeSaleEnded = errors.New("このチケット種別の販売は終了しています")

// TicketService はチケットの発行と状態遷移を提供する
// 購入はアクティブなオファーの行使としてのみ成立する
type TicketService struct {
	txManager       transaction.Manager
	ticketRepo      ticket.Repository
	ticketTypeRepo  ticket.TypeRepository
	eventRepo       event.Repository
	waitlistService *WaitlistService
	lockManager     redisinfra.LockManagerInterface
	cache           AvailabilityCacheInterface
	lockTTL         time.Duration
}

func NewTicketService(
	txManager transaction.Manager,
	ticketRepo ticket.Repository,
	ticketTypeRepo ticket.TypeRepository,
	eventRepo event.Repository,
	waitlistService *WaitlistService,
	lockManager redisinfra.LockManagerInterface,
	cache AvailabilityCacheInterface,
	lockTTL time.Duration,
) *TicketService {
	return &TicketService{
		txManager:       txManager,
		ticketRepo:      ticketRepo,
		ticketTypeRepo:  ticketTypeRepo,
		eventRepo:       eventRepo,
		waitlistService: waitlistService,
		lockManager:     lockManager,
		cache:           cache,
		lockTTL:         lockTTL,
	}
}

type AddTicketTypeInput struct {
	EventID       string
	Name          string
	Price         int
	TotalQuantity int
	ExpiresAt     *time.Time
}

// AddTicketType はイベントにチケット種別を追加する
// 総定員が増えるため、追加後にアドミッションスイープを実行する
func (s *TicketService) AddTicketType(ctx context.Context, input AddTicketTypeInput) (*ticket.TicketType, error) {
	ev, err := s.eventRepo.GetByID(ctx, input.EventID)
	if err != nil {
		return nil, err
	}
	if ev.IsCancelled {
		return nil, event.ErrEventAlreadyCancelled
	}

	tt := ticket.NewTicketType(input.EventID, input.Name, input.Price, input.TotalQuantity, input.ExpiresAt)
	if err := tt.Validate(); err != nil {
		return nil, fmt.Errorf("バリデーションエラー: %w", err)
	}
	if err := s.ticketTypeRepo.Create(ctx, tt); err != nil {
		return nil, fmt.Errorf("チケット種別作成に失敗: %w", err)
	}

	s.invalidateCache(ctx, input.EventID)
	if s.waitlistService != nil {
		if err := s.waitlistService.ProcessQueue(ctx, input.EventID); err != nil {
			logger.Warn("チケット種別追加後のスイープに失敗",
				zap.String("event_id", input.EventID), zap.Error(err))
		}
	}
	return tt, nil
}

// ListTicketTypes はイベントのチケット種別一覧を返す
func (s *TicketService) ListTicketTypes(ctx context.Context, eventID string) ([]*ticket.TicketType, error) {
	if _, err := s.eventRepo.GetByID(ctx, eventID); err != nil {
		return nil, err
	}
	return s.ticketTypeRepo.GetByEventID(ctx, eventID)
}

type PurchaseTicketInput struct {
	EventID         string
	UserID          string
	TicketTypeID    string
	PaymentIntentID string
}

// PurchaseTicket はアクティブなオファーを行使してチケットを発行する
// チケット発行とエントリの purchased 遷移は同一トランザクションで行う
func (s *TicketService) PurchaseTicket(ctx context.Context, input PurchaseTicketInput) (*ticket.Ticket, error) {
	ev, err := s.eventRepo.GetByID(ctx, input.EventID)
	if err != nil {
		return nil, err
	}
	if ev.IsCancelled {
		return nil, event.ErrEventAlreadyCancelled
	}

	// オファーの検証からチケット発行までをイベントロックで直列化する
	var lock redisinfra.Lock
	if s.lockManager != nil {
		lock, err = s.lockManager.AcquireLockWithRetry(ctx, EventLockKey(input.EventID), s.lockTTL, 3, 100*time.Millisecond)
		if err != nil {
			if errors.Is(err, redisinfra.ErrLockNotAcquired) {
				return nil, fmt.Errorf("イベントが他の操作によって処理中です")
			}
			return nil, fmt.Errorf("ロック取得に失敗: %w", err)
		}
		defer lock.Release(ctx)
	}

	entry, err := s.waitlistService.GetActiveEntry(ctx, input.EventID, input.UserID)
	if err != nil {
		if errors.Is(err, waitlist.ErrEntryNotFound) {
			return nil, waitlist.ErrNoActiveOffer
		}
		return nil, err
	}

	tt, err := s.ticketTypeRepo.GetByID(ctx, input.TicketTypeID)
	if err != nil {
		return nil, err
	}
	if tt.EventID != input.EventID {
		return nil, ticket.ErrTicketTypeNotFound
	}
	now := time.Now()
	if tt.ExpiresAt != nil && now.After(*tt.ExpiresAt) {
		return nil, ErrTicketTypeSaleEnded
	}

	t := ticket.NewTicket(input.EventID, input.TicketTypeID, input.UserID, tt.Price)
	if input.PaymentIntentID != "" {
		t.PaymentIntentID = &input.PaymentIntentID
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}

	tx, err := s.txManager.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback()

	if err := s.ticketRepo.Create(ctx, tx, t); err != nil {
		return nil, err
	}
	if _, err := s.waitlistService.MarkEntryPurchased(ctx, tx, entry.ID, now); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("コミットに失敗: %w", err)
	}

	s.invalidateCache(ctx, input.EventID)
	logger.Info("チケット購入",
		zap.String("event_id", input.EventID),
		zap.String("user_id", input.UserID),
		zap.String("ticket_id", t.ID),
	)
	return t, nil
}

func (s *TicketService) GetTicket(ctx context.Context, id string) (*ticket.Ticket, error) {
	return s.ticketRepo.GetByID(ctx, id)
}

// GetUserTicketForEvent はユーザーがイベントに対して持つチケットを返す
func (s *TicketService) GetUserTicketForEvent(ctx context.Context, eventID, userID string) (*ticket.Ticket, error) {
	return s.ticketRepo.GetByUserAndEvent(ctx, eventID, userID)
}

// UseTicket はチケットを入場済みにする
func (s *TicketService) UseTicket(ctx context.Context, id string) (*ticket.Ticket, error) {
	t, err := s.ticketRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := t.Use(); err != nil {
		return nil, err
	}
	if err := s.updateTicket(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// RefundTicket はチケットを払い戻す
// 定員が1枠解放されるため、払い戻し後にアドミッションスイープを実行する
func (s *TicketService) RefundTicket(ctx context.Context, id string) (*ticket.Ticket, error) {
	return s.releaseTicket(ctx, id, (*ticket.Ticket).Refund)
}

// CancelTicket はチケットを取り消す。払い戻しと同様に枠を解放する
func (s *TicketService) CancelTicket(ctx context.Context, id string) (*ticket.Ticket, error) {
	return s.releaseTicket(ctx, id, (*ticket.Ticket).Cancel)
}

func (s *TicketService) releaseTicket(ctx context.Context, id string, transition func(*ticket.Ticket) error) (*ticket.Ticket, error) {
	t, err := s.ticketRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := transition(t); err != nil {
		return nil, err
	}
	if err := s.updateTicket(ctx, t); err != nil {
		return nil, err
	}

	s.invalidateCache(ctx, t.EventID)
	if s.waitlistService != nil {
		if err := s.waitlistService.ProcessQueue(ctx, t.EventID); err != nil {
			logger.Warn("払い戻し後のスイープに失敗",
				zap.String("event_id", t.EventID), zap.Error(err))
		}
	}
	return t, nil
}

func (s *TicketService) updateTicket(ctx context.Context, t *ticket.Ticket) error {
	tx, err := s.txManager.Begin(ctx)
	if err != nil {
		return fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback()

	if err := s.ticketRepo.Update(ctx, tx, t); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("コミットに失敗: %w", err)
	}
	return nil
}

func (s *TicketService) invalidateCache(ctx context.Context, eventID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, eventID); err != nil {
		logger.Warn("キャッシュ無効化に失敗", zap.String("event_id", eventID), zap.Error(err))
	}
}
