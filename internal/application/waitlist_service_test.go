//go:build integration
// +build integration

package application

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeffRnR/noizy-hub/internal/config"
	"github.com/jeffRnR/noizy-hub/internal/domain/waitlist"
	"github.com/jeffRnR/noizy-hub/internal/infrastructure/postgres"
	redisinfra "github.com/jeffRnR/noizy-hub/internal/infrastructure/redis"
)

func setupTestEnv(t *testing.T) (*WaitlistService, *TicketService, *EventService, *InventoryService, func()) {
	cfg := config.Load()

	db, err := postgres.NewConnection(&cfg.Database)
	if err != nil {
		t.Skipf("DB接続エラー: %v", err)
	}

	redisClient, err := redisinfra.NewClient(&redisinfra.Config{
		Host: cfg.Redis.Host, Port: cfg.Redis.Port,
	})
	if err != nil {
		t.Skipf("Redis接続エラー: %v", err)
	}
	lockManager := redisinfra.NewLockManager(redisClient)
	cache := redisinfra.NewAvailabilityCache(redisClient)

	eventRepo := postgres.NewEventRepository(db)
	ticketTypeRepo := postgres.NewTicketTypeRepository(db)
	ticketRepo := postgres.NewTicketRepository(db)
	waitlistRepo := postgres.NewWaitlistRepository(db)
	accountant := postgres.NewInventoryRepository(db)
	txManager := postgres.NewTxManager(db)

	waitlistService := NewWaitlistService(
		txManager, waitlistRepo, eventRepo, accountant, lockManager, cache,
		cfg.Waitlist.OfferTTL, cfg.Waitlist.LockTTL,
	)
	ticketService := NewTicketService(
		txManager, ticketRepo, ticketTypeRepo, eventRepo,
		waitlistService, lockManager, cache, cfg.Waitlist.LockTTL,
	)
	eventService := NewEventService(txManager, eventRepo, ticketTypeRepo, ticketRepo, waitlistService)
	inventoryService := NewInventoryService(eventRepo, accountant, cache)

	cleanup := func() {
		db.Exec("DELETE FROM waiting_list")
		db.Exec("DELETE FROM tickets")
		db.Exec("DELETE FROM ticket_types")
		db.Exec("DELETE FROM events")
		redisClient.Close()
		db.Close()
	}

	return waitlistService, ticketService, eventService, inventoryService, cleanup
}

func TestConcurrentJoinQueue(t *testing.T) {
	waitlistService, ticketService, eventService, inventoryService, cleanup := setupTestEnv(t)
	defer cleanup()
	_ = waitlistService

	ctx := context.Background()

	ev, err := eventService.CreateEvent(ctx, CreateEventInput{
		Name: "並行参加テスト", Location: "テスト会場",
		EventDate: time.Now().Add(24 * time.Hour), OwnerID: "owner-1",
	})
	require.NoError(t, err)

	// 定員1枠のみ
	_, err = ticketService.AddTicketType(ctx, AddTicketTypeInput{
		EventID: ev.ID, Name: "一般", Price: 5000, TotalQuantity: 1,
	})
	require.NoError(t, err)

	t.Run("20並行参加でオファーは1件のみ", func(t *testing.T) {
		const numUsers = 20
		var offeredCount int32
		var waitingCount int32
		var wg sync.WaitGroup

		for i := 0; i < numUsers; i++ {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				result, err := waitlistService.JoinQueue(ctx, ev.ID, "user-"+string(rune('A'+n)))
				if err != nil {
					return
				}
				if result.Status == waitlist.StatusOffered {
					atomic.AddInt32(&offeredCount, 1)
				} else {
					atomic.AddInt32(&waitingCount, 1)
				}
			}(i)
		}
		wg.Wait()

		assert.Equal(t, int32(1), offeredCount, "オファーは定員分だけ")
		assert.Equal(t, int32(numUsers-1), waitingCount)

		// 定員不変条件：purchased + activeOffers <= capacity
		avail, err := inventoryService.GetEventAvailability(ctx, ev.ID)
		require.NoError(t, err)
		assert.LessOrEqual(t, avail.PurchasedCount+avail.ActiveOffers, avail.TotalTickets)
		assert.True(t, avail.IsSoldOut)
	})
}
