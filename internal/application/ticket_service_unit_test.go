package application

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jeffRnR/noizy-hub/internal/domain/event"
	"github.com/jeffRnR/noizy-hub/internal/domain/inventory"
	"github.com/jeffRnR/noizy-hub/internal/domain/ticket"
	"github.com/jeffRnR/noizy-hub/internal/domain/transaction"
	"github.com/jeffRnR/noizy-hub/internal/domain/waitlist"
)

// MockTicketTypeRepository implements ticket.TypeRepository
type MockTicketTypeRepository struct {
	mock.Mock
}

func (m *MockTicketTypeRepository) Create(ctx context.Context, tt *ticket.TicketType) error {
	args := m.Called(ctx, tt)
	return args.Error(0)
}

func (m *MockTicketTypeRepository) GetByID(ctx context.Context, id string) (*ticket.TicketType, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ticket.TicketType), args.Error(1)
}

func (m *MockTicketTypeRepository) GetByEventID(ctx context.Context, eventID string) ([]*ticket.TicketType, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*ticket.TicketType), args.Error(1)
}

// MockTicketRepository implements ticket.Repository
type MockTicketRepository struct {
	mock.Mock
}

func (m *MockTicketRepository) Create(ctx context.Context, tx transaction.Tx, t *ticket.Ticket) error {
	args := m.Called(ctx, tx, t)
	return args.Error(0)
}

func (m *MockTicketRepository) GetByID(ctx context.Context, id string) (*ticket.Ticket, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ticket.Ticket), args.Error(1)
}

func (m *MockTicketRepository) GetByUserAndEvent(ctx context.Context, eventID, userID string) (*ticket.Ticket, error) {
	args := m.Called(ctx, eventID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ticket.Ticket), args.Error(1)
}

func (m *MockTicketRepository) GetByEventID(ctx context.Context, eventID string) ([]*ticket.Ticket, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*ticket.Ticket), args.Error(1)
}

func (m *MockTicketRepository) Update(ctx context.Context, tx transaction.Tx, t *ticket.Ticket) error {
	args := m.Called(ctx, tx, t)
	return args.Error(0)
}

// === Test helper ===

type ticketTestDeps struct {
	*waitlistTestDeps
	ticketRepo     *MockTicketRepository
	ticketTypeRepo *MockTicketTypeRepository
	ticketService  *TicketService
}

func newTicketTestDeps() *ticketTestDeps {
	wl := newWaitlistTestDeps()
	ticketRepo := new(MockTicketRepository)
	ticketTypeRepo := new(MockTicketTypeRepository)

	ticketService := NewTicketService(
		wl.txManager, ticketRepo, ticketTypeRepo, wl.eventRepo,
		wl.service, wl.lockManager, wl.cache, 10*time.Second,
	)

	return &ticketTestDeps{
		waitlistTestDeps: wl,
		ticketRepo:       ticketRepo,
		ticketTypeRepo:   ticketTypeRepo,
		ticketService:    ticketService,
	}
}

// === Tests ===

func TestTicketService_PurchaseTicket_Success(t *testing.T) {
	deps := newTicketTestDeps()
	ctx := context.Background()

	deps.eventRepo.On("GetByID", ctx, "event-1").Return(sellableEvent("event-1"), nil)
	deps.expectLock(ctx)

	offered := waitlist.NewEntry("event-1", "user-1")
	offered.ID = "entry-1"
	require.NoError(t, offered.Offer(time.Now(), 30*time.Minute))
	deps.waitlistRepo.On("GetActiveByUserAndEvent", ctx, "event-1", "user-1").Return(offered, nil)

	tt := ticket.NewTicketType("event-1", "一般", 5000, 10, nil)
	tt.ID = "type-1"
	deps.ticketTypeRepo.On("GetByID", ctx, "type-1").Return(tt, nil)

	deps.txManager.On("Begin", ctx).Return(deps.tx, nil)
	deps.tx.On("Rollback").Return(nil)
	deps.tx.On("Commit").Return(nil)
	deps.ticketRepo.On("Create", ctx, deps.tx, mock.AnythingOfType("*ticket.Ticket")).Return(nil)
	deps.waitlistRepo.On("GetByID", ctx, "entry-1").Return(offered, nil)
	deps.waitlistRepo.On("UpdateStatus", ctx, deps.tx, offered).Return(nil)
	deps.cache.On("Invalidate", ctx, "event-1").Return(nil)

	result, err := deps.ticketService.PurchaseTicket(ctx, PurchaseTicketInput{
		EventID:      "event-1",
		UserID:       "user-1",
		TicketTypeID: "type-1",
	})

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, ticket.StatusValid, result.Status)
	assert.Equal(t, 5000, result.Amount)
	assert.Equal(t, waitlist.StatusPurchased, offered.Status)
	deps.ticketRepo.AssertExpectations(t)
}

func TestTicketService_PurchaseTicket_NoActiveOffer(t *testing.T) {
	deps := newTicketTestDeps()
	ctx := context.Background()

	deps.eventRepo.On("GetByID", ctx, "event-1").Return(sellableEvent("event-1"), nil)
	deps.expectLock(ctx)
	deps.waitlistRepo.On("GetActiveByUserAndEvent", ctx, "event-1", "user-1").
		Return(nil, waitlist.ErrEntryNotFound)

	result, err := deps.ticketService.PurchaseTicket(ctx, PurchaseTicketInput{
		EventID: "event-1", UserID: "user-1", TicketTypeID: "type-1",
	})

	require.Error(t, err)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, waitlist.ErrNoActiveOffer)
	deps.txManager.AssertNotCalled(t, "Begin")
}

func TestTicketService_PurchaseTicket_WaitingEntryCannotPurchase(t *testing.T) {
	deps := newTicketTestDeps()
	ctx := context.Background()

	deps.eventRepo.On("GetByID", ctx, "event-1").Return(sellableEvent("event-1"), nil)
	deps.expectLock(ctx)

	// waiting のままではオファーを行使できない
	waiting := waitlist.NewEntry("event-1", "user-1")
	waiting.ID = "entry-1"
	deps.waitlistRepo.On("GetActiveByUserAndEvent", ctx, "event-1", "user-1").Return(waiting, nil)

	tt := ticket.NewTicketType("event-1", "一般", 5000, 10, nil)
	tt.ID = "type-1"
	deps.ticketTypeRepo.On("GetByID", ctx, "type-1").Return(tt, nil)

	deps.txManager.On("Begin", ctx).Return(deps.tx, nil)
	deps.tx.On("Rollback").Return(nil)
	deps.ticketRepo.On("Create", ctx, deps.tx, mock.AnythingOfType("*ticket.Ticket")).Return(nil)
	deps.waitlistRepo.On("GetByID", ctx, "entry-1").Return(waiting, nil)

	result, err := deps.ticketService.PurchaseTicket(ctx, PurchaseTicketInput{
		EventID: "event-1", UserID: "user-1", TicketTypeID: "type-1",
	})

	require.Error(t, err)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, waitlist.ErrNoActiveOffer)
	deps.tx.AssertNotCalled(t, "Commit")
}

func TestTicketService_PurchaseTicket_OfferLapsed(t *testing.T) {
	deps := newTicketTestDeps()
	ctx := context.Background()

	deps.eventRepo.On("GetByID", ctx, "event-1").Return(sellableEvent("event-1"), nil)
	deps.expectLock(ctx)

	// TTLを過ぎたオファー。回収前でも行使は拒否される
	lapsed := waitlist.NewEntry("event-1", "user-1")
	lapsed.ID = "entry-1"
	require.NoError(t, lapsed.Offer(time.Now().Add(-1*time.Hour), 30*time.Minute))
	deps.waitlistRepo.On("GetActiveByUserAndEvent", ctx, "event-1", "user-1").Return(lapsed, nil)

	tt := ticket.NewTicketType("event-1", "一般", 5000, 10, nil)
	tt.ID = "type-1"
	deps.ticketTypeRepo.On("GetByID", ctx, "type-1").Return(tt, nil)

	deps.txManager.On("Begin", ctx).Return(deps.tx, nil)
	deps.tx.On("Rollback").Return(nil)
	deps.ticketRepo.On("Create", ctx, deps.tx, mock.AnythingOfType("*ticket.Ticket")).Return(nil)
	deps.waitlistRepo.On("GetByID", ctx, "entry-1").Return(lapsed, nil)

	result, err := deps.ticketService.PurchaseTicket(ctx, PurchaseTicketInput{
		EventID: "event-1", UserID: "user-1", TicketTypeID: "type-1",
	})

	require.Error(t, err)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, waitlist.ErrNoActiveOffer)
}

func TestTicketService_PurchaseTicket_TypeBelongsToOtherEvent(t *testing.T) {
	deps := newTicketTestDeps()
	ctx := context.Background()

	deps.eventRepo.On("GetByID", ctx, "event-1").Return(sellableEvent("event-1"), nil)
	deps.expectLock(ctx)

	offered := waitlist.NewEntry("event-1", "user-1")
	offered.ID = "entry-1"
	require.NoError(t, offered.Offer(time.Now(), 30*time.Minute))
	deps.waitlistRepo.On("GetActiveByUserAndEvent", ctx, "event-1", "user-1").Return(offered, nil)

	other := ticket.NewTicketType("event-2", "一般", 5000, 10, nil)
	other.ID = "type-1"
	deps.ticketTypeRepo.On("GetByID", ctx, "type-1").Return(other, nil)

	result, err := deps.ticketService.PurchaseTicket(ctx, PurchaseTicketInput{
		EventID: "event-1", UserID: "user-1", TicketTypeID: "type-1",
	})

	require.Error(t, err)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, ticket.ErrTicketTypeNotFound)
}

func TestTicketService_PurchaseTicket_SaleEnded(t *testing.T) {
	deps := newTicketTestDeps()
	ctx := context.Background()

	deps.eventRepo.On("GetByID", ctx, "event-1").Return(sellableEvent("event-1"), nil)
	deps.expectLock(ctx)

	offered := waitlist.NewEntry("event-1", "user-1")
	offered.ID = "entry-1"
	require.NoError(t, offered.Offer(time.Now(), 30*time.Minute))
	deps.waitlistRepo.On("GetActiveByUserAndEvent", ctx, "event-1", "user-1").Return(offered, nil)

	ended := time.Now().Add(-1 * time.Hour)
	tt := ticket.NewTicketType("event-1", "早割", 3000, 10, &ended)
	tt.ID = "type-1"
	deps.ticketTypeRepo.On("GetByID", ctx, "type-1").Return(tt, nil)

	result, err := deps.ticketService.PurchaseTicket(ctx, PurchaseTicketInput{
		EventID: "event-1", UserID: "user-1", TicketTypeID: "type-1",
	})

	require.Error(t, err)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrTicketTypeSaleEnded)
}

func TestTicketService_PurchaseTicket_EventCancelled(t *testing.T) {
	deps := newTicketTestDeps()
	ctx := context.Background()

	cancelled := sellableEvent("event-1")
	cancelled.IsCancelled = true
	deps.eventRepo.On("GetByID", ctx, "event-1").Return(cancelled, nil)

	result, err := deps.ticketService.PurchaseTicket(ctx, PurchaseTicketInput{
		EventID: "event-1", UserID: "user-1", TicketTypeID: "type-1",
	})

	require.Error(t, err)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, event.ErrEventAlreadyCancelled)
	deps.lockManager.AssertNotCalled(t, "AcquireLockWithRetry")
}

func TestTicketService_AddTicketType_TriggersSweep(t *testing.T) {
	deps := newTicketTestDeps()
	ctx := context.Background()

	deps.eventRepo.On("GetByID", ctx, "event-1").Return(sellableEvent("event-1"), nil)
	deps.ticketTypeRepo.On("Create", ctx, mock.AnythingOfType("*ticket.TicketType")).Return(nil)
	deps.cache.On("Invalidate", ctx, "event-1").Return(nil)

	// 定員が増えたのでスイープが走る
	deps.expectLock(ctx)
	deps.accountant.On("Snapshot", ctx, "event-1", mock.AnythingOfType("time.Time")).
		Return(inventory.Snapshot{TotalCapacity: 20, PurchasedCount: 10}, nil)
	deps.waitlistRepo.On("SelectOldestWaiting", ctx, "event-1", 10).
		Return([]*waitlist.Entry{}, nil)

	tt, err := deps.ticketService.AddTicketType(ctx, AddTicketTypeInput{
		EventID: "event-1", Name: "追加席", Price: 4000, TotalQuantity: 10,
	})

	require.NoError(t, err)
	assert.Equal(t, 10, tt.TotalQuantity)
	deps.accountant.AssertExpectations(t)
}

func TestTicketService_AddTicketType_InvalidQuantity(t *testing.T) {
	deps := newTicketTestDeps()
	ctx := context.Background()

	deps.eventRepo.On("GetByID", ctx, "event-1").Return(sellableEvent("event-1"), nil)

	tt, err := deps.ticketService.AddTicketType(ctx, AddTicketTypeInput{
		EventID: "event-1", Name: "不正", Price: 1000, TotalQuantity: 0,
	})

	require.Error(t, err)
	assert.Nil(t, tt)
	assert.ErrorIs(t, err, ticket.ErrInvalidQuantity)
	deps.ticketTypeRepo.AssertNotCalled(t, "Create")
}

func TestTicketService_UseTicket(t *testing.T) {
	deps := newTicketTestDeps()
	ctx := context.Background()

	valid := ticket.NewTicket("event-1", "type-1", "user-1", 5000)
	valid.ID = "ticket-1"
	deps.ticketRepo.On("GetByID", ctx, "ticket-1").Return(valid, nil)
	deps.txManager.On("Begin", ctx).Return(deps.tx, nil)
	deps.tx.On("Rollback").Return(nil)
	deps.tx.On("Commit").Return(nil)
	deps.ticketRepo.On("Update", ctx, deps.tx, valid).Return(nil)

	result, err := deps.ticketService.UseTicket(ctx, "ticket-1")

	require.NoError(t, err)
	assert.Equal(t, ticket.StatusUsed, result.Status)
}

func TestTicketService_UseTicket_AlreadyUsed(t *testing.T) {
	deps := newTicketTestDeps()
	ctx := context.Background()

	used := ticket.NewTicket("event-1", "type-1", "user-1", 5000)
	used.ID = "ticket-1"
	require.NoError(t, used.Use())
	deps.ticketRepo.On("GetByID", ctx, "ticket-1").Return(used, nil)

	result, err := deps.ticketService.UseTicket(ctx, "ticket-1")

	require.Error(t, err)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, ticket.ErrTicketNotValid)
}

func TestTicketService_RefundTicket_TriggersSweep(t *testing.T) {
	deps := newTicketTestDeps()
	ctx := context.Background()

	valid := ticket.NewTicket("event-1", "type-1", "user-1", 5000)
	valid.ID = "ticket-1"
	deps.ticketRepo.On("GetByID", ctx, "ticket-1").Return(valid, nil)
	deps.txManager.On("Begin", ctx).Return(deps.tx, nil)
	deps.tx.On("Rollback").Return(nil)
	deps.tx.On("Commit").Return(nil)
	deps.ticketRepo.On("Update", ctx, deps.tx, valid).Return(nil)
	deps.cache.On("Invalidate", ctx, "event-1").Return(nil)

	// 解放された枠が次の waiting エントリへ
	next := waitlist.NewEntry("event-1", "user-2")
	next.ID = "entry-2"
	deps.expectLock(ctx)
	deps.accountant.On("Snapshot", ctx, "event-1", mock.AnythingOfType("time.Time")).
		Return(inventory.Snapshot{TotalCapacity: 10, PurchasedCount: 9}, nil)
	deps.waitlistRepo.On("SelectOldestWaiting", ctx, "event-1", 1).
		Return([]*waitlist.Entry{next}, nil)
	deps.waitlistRepo.On("UpdateStatus", ctx, deps.tx, next).Return(nil)
	deps.scheduler.On("Schedule", "entry-2", "event-1", mock.AnythingOfType("time.Duration")).Return()

	result, err := deps.ticketService.RefundTicket(ctx, "ticket-1")

	require.NoError(t, err)
	assert.Equal(t, ticket.StatusRefunded, result.Status)
	assert.Equal(t, waitlist.StatusOffered, next.Status)
	deps.scheduler.AssertExpectations(t)
}

func TestTicketService_RefundTicket_AlreadyReleased(t *testing.T) {
	deps := newTicketTestDeps()
	ctx := context.Background()

	refunded := ticket.NewTicket("event-1", "type-1", "user-1", 5000)
	refunded.ID = "ticket-1"
	require.NoError(t, refunded.Refund())
	deps.ticketRepo.On("GetByID", ctx, "ticket-1").Return(refunded, nil)

	result, err := deps.ticketService.RefundTicket(ctx, "ticket-1")

	require.Error(t, err)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, ticket.ErrTicketAlreadyReleased)
	deps.txManager.AssertNotCalled(t, "Begin")
}

func TestTicketService_GetUserTicketForEvent(t *testing.T) {
	deps := newTicketTestDeps()
	ctx := context.Background()

	owned := ticket.NewTicket("event-1", "type-1", "user-1", 5000)
	owned.ID = "ticket-1"
	deps.ticketRepo.On("GetByUserAndEvent", ctx, "event-1", "user-1").Return(owned, nil)

	result, err := deps.ticketService.GetUserTicketForEvent(ctx, "event-1", "user-1")

	require.NoError(t, err)
	assert.Equal(t, "ticket-1", result.ID)
}
