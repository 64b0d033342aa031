package application

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jeffRnR/noizy-hub/internal/domain/event"
	"github.com/jeffRnR/noizy-hub/internal/domain/ticket"
	"github.com/jeffRnR/noizy-hub/internal/domain/transaction"
	"github.com/jeffRnR/noizy-hub/internal/pkg/logger"
)

// EventService はイベントカタログを提供する
type EventService struct {
	txManager       transaction.Manager
	eventRepo       event.Repository
	ticketTypeRepo  ticket.TypeRepository
	ticketRepo      ticket.Repository
	waitlistService *WaitlistService
}

func NewEventService(
	txManager transaction.Manager,
	eventRepo event.Repository,
	ticketTypeRepo ticket.TypeRepository,
	ticketRepo ticket.Repository,
	waitlistService *WaitlistService,
) *EventService {
	return &EventService{
		txManager:       txManager,
		eventRepo:       eventRepo,
		ticketTypeRepo:  ticketTypeRepo,
		ticketRepo:      ticketRepo,
		waitlistService: waitlistService,
	}
}

type CreateEventInput struct {
	Name        string
	Description string
	Location    string
	EventDate   time.Time
	OwnerID     string
	ImageURL    string
}

func (s *EventService) CreateEvent(ctx context.Context, input CreateEventInput) (*event.Event, error) {
	e := event.NewEvent(input.Name, input.Description, input.Location, input.EventDate, input.OwnerID)
	e.ImageURL = input.ImageURL
	if err := e.Validate(); err != nil {
		return nil, fmt.Errorf("バリデーションエラー: %w", err)
	}
	if err := s.eventRepo.Create(ctx, e); err != nil {
		return nil, fmt.Errorf("イベント作成に失敗しました: %w", err)
	}
	return e, nil
}

func (s *EventService) GetEvent(ctx context.Context, id string) (*event.Event, error) {
	return s.eventRepo.GetByID(ctx, id)
}

func (s *EventService) ListEvents(ctx context.Context, limit, offset int) ([]*event.Event, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return s.eventRepo.ListActive(ctx, limit, offset)
}

type UpdateEventInput struct {
	ID          string
	Name        string
	Description string
	Location    string
	EventDate   time.Time
	ImageURL    string
}

func (s *EventService) UpdateEvent(ctx context.Context, input UpdateEventInput) (*event.Event, error) {
	e, err := s.eventRepo.GetByID(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	if e.IsCancelled {
		return nil, event.ErrEventAlreadyCancelled
	}
	e.Name = input.Name
	e.Description = input.Description
	e.Location = input.Location
	e.EventDate = input.EventDate
	e.ImageURL = input.ImageURL
	e.UpdatedAt = time.Now()
	if err := e.Validate(); err != nil {
		return nil, fmt.Errorf("バリデーションエラー: %w", err)
	}
	if err := s.eventRepo.Update(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// CancelEvent はイベントを中止する
// 有効なチケットをすべて払い戻し、ウェイティングリストの
// アクティブなエントリをすべて expired に遷移させる
func (s *EventService) CancelEvent(ctx context.Context, id string) (*event.Event, error) {
	e, err := s.eventRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := e.Cancel(); err != nil {
		return nil, err
	}
	if err := s.eventRepo.Update(ctx, e); err != nil {
		return nil, fmt.Errorf("イベント更新に失敗: %w", err)
	}

	refunded, err := s.refundValidTickets(ctx, id)
	if err != nil {
		return nil, err
	}

	expired := 0
	if s.waitlistService != nil {
		expired, err = s.waitlistService.ExpireActiveEntriesForEvent(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("ウェイティングリストの失効処理に失敗: %w", err)
		}
	}

	logger.Info("イベント中止",
		zap.String("event_id", id),
		zap.Int("refunded_tickets", refunded),
		zap.Int("expired_entries", expired),
	)
	return e, nil
}

// refundValidTickets はイベントの有効なチケットをすべて払い戻す
func (s *EventService) refundValidTickets(ctx context.Context, eventID string) (int, error) {
	tickets, err := s.ticketRepo.GetByEventID(ctx, eventID)
	if err != nil {
		return 0, fmt.Errorf("チケット取得に失敗: %w", err)
	}

	var targets []*ticket.Ticket
	for _, t := range tickets {
		if t.Status == ticket.StatusValid {
			targets = append(targets, t)
		}
	}
	if len(targets) == 0 {
		return 0, nil
	}

	tx, err := s.txManager.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback()

	for _, t := range targets {
		if err := t.Refund(); err != nil {
			return 0, err
		}
		if err := s.ticketRepo.Update(ctx, tx, t); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("コミットに失敗: %w", err)
	}
	return len(targets), nil
}

// OwnerEventStats は主催者ダッシュボード向けのイベント別集計
type OwnerEventStats struct {
	Event          *event.Event
	TotalCapacity  int
	SoldCount      int
	UsedCount      int
	RefundedCount  int
	CancelledCount int
	Revenue        int
}

// ListOwnerEvents は主催者のイベント一覧を販売集計つきで返す
func (s *EventService) ListOwnerEvents(ctx context.Context, ownerID string) ([]*OwnerEventStats, error) {
	events, err := s.eventRepo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("イベント一覧取得に失敗: %w", err)
	}

	result := make([]*OwnerEventStats, 0, len(events))
	for _, e := range events {
		stats, err := s.collectEventStats(ctx, e)
		if err != nil {
			return nil, err
		}
		result = append(result, stats)
	}
	return result, nil
}

// GetEventStats は単一イベントの販売集計を返す
func (s *EventService) GetEventStats(ctx context.Context, eventID string) (*OwnerEventStats, error) {
	e, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	return s.collectEventStats(ctx, e)
}

func (s *EventService) collectEventStats(ctx context.Context, e *event.Event) (*OwnerEventStats, error) {
	stats := &OwnerEventStats{Event: e}

	types, err := s.ticketTypeRepo.GetByEventID(ctx, e.ID)
	if err != nil {
		return nil, fmt.Errorf("チケット種別取得に失敗: %w", err)
	}
	for _, tt := range types {
		stats.TotalCapacity += tt.TotalQuantity
	}

	tickets, err := s.ticketRepo.GetByEventID(ctx, e.ID)
	if err != nil {
		return nil, fmt.Errorf("チケット取得に失敗: %w", err)
	}
	for _, t := range tickets {
		switch t.Status {
		case ticket.StatusValid:
			stats.SoldCount++
			stats.Revenue += t.Amount
		case ticket.StatusUsed:
			stats.UsedCount++
			stats.Revenue += t.Amount
		case ticket.StatusRefunded:
			stats.RefundedCount++
		case ticket.StatusCancelled:
			stats.CancelledCount++
		}
	}
	return stats, nil
}

// DailySales は1日分の販売集計
type DailySales struct {
	Date    time.Time
	Count   int
	Revenue int
}

// GetSalesTrend は直近days日の日別販売推移を返す
// 払い戻し・取り消し済みチケットは集計に含めない
func (s *EventService) GetSalesTrend(ctx context.Context, eventID string, days int) ([]DailySales, error) {
	if days <= 0 {
		days = 7
	}
	if days > 90 {
		days = 90
	}

	if _, err := s.eventRepo.GetByID(ctx, eventID); err != nil {
		return nil, err
	}

	tickets, err := s.ticketRepo.GetByEventID(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("チケット取得に失敗: %w", err)
	}

	start := time.Now().UTC().Truncate(24 * time.Hour).AddDate(0, 0, -(days - 1))
	trend := make([]DailySales, days)
	for i := range trend {
		trend[i].Date = start.AddDate(0, 0, i)
	}

	for _, t := range tickets {
		if !t.CountsAgainstCapacity() {
			continue
		}
		day := t.PurchasedAt.UTC().Truncate(24 * time.Hour)
		if day.Before(start) {
			continue
		}
		idx := int(day.Sub(start) / (24 * time.Hour))
		if idx >= 0 && idx < days {
			trend[idx].Count++
			trend[idx].Revenue += t.Amount
		}
	}
	return trend, nil
}
