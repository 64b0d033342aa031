package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/jeffRnR/noizy-hub/internal/api"
	"github.com/jeffRnR/noizy-hub/internal/api/handler"
	custommw "github.com/jeffRnR/noizy-hub/internal/api/middleware"
	"github.com/jeffRnR/noizy-hub/internal/application"
	"github.com/jeffRnR/noizy-hub/internal/config"
	"github.com/jeffRnR/noizy-hub/internal/infrastructure/postgres"
	redisinfra "github.com/jeffRnR/noizy-hub/internal/infrastructure/redis"
	"github.com/jeffRnR/noizy-hub/internal/pkg/logger"
	"github.com/jeffRnR/noizy-hub/internal/pkg/metrics"
	"github.com/jeffRnR/noizy-hub/internal/scheduler"
	"github.com/jeffRnR/noizy-hub/internal/worker"
)

func main() {
	// .env があれば読み込む（本番では環境変数を直接使用）
	_ = godotenv.Load()

	cfg := config.Load()

	log := logger.NewLogger(os.Getenv("APP_ENV"))
	logger.Set(log)
	defer logger.Sync()

	m := metrics.Init()

	// PostgreSQL接続
	db, err := postgres.NewConnection(&cfg.Database)
	if err != nil {
		logger.Fatal("データベース接続に失敗しました", zap.Error(err))
	}
	defer db.Close()

	// マイグレーション実行
	migrationsPath := os.Getenv("MIGRATIONS_PATH")
	if migrationsPath == "" {
		migrationsPath = "migrations"
	}
	if err := postgres.RunMigrations(db.DB, migrationsPath); err != nil {
		logger.Fatal("マイグレーションに失敗しました", zap.Error(err))
	}

	// Redis接続
	redisClient, err := redisinfra.NewClient(&redisinfra.Config{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		logger.Fatal("Redis接続に失敗しました", zap.Error(err))
	}
	defer redisClient.Close()

	lockManager := redisinfra.NewLockManager(redisClient)
	availabilityCache := redisinfra.NewAvailabilityCache(redisClient)

	// リポジトリ
	eventRepo := postgres.NewEventRepository(db)
	ticketTypeRepo := postgres.NewTicketTypeRepository(db)
	ticketRepo := postgres.NewTicketRepository(db)
	waitlistRepo := postgres.NewWaitlistRepository(db)
	inventoryRepo := postgres.NewInventoryRepository(db)
	txManager := postgres.NewTxManager(db)

	// サービス
	waitlistService := application.NewWaitlistService(
		txManager, waitlistRepo, eventRepo, inventoryRepo,
		lockManager, availabilityCache,
		cfg.Waitlist.OfferTTL, cfg.Waitlist.LockTTL,
	)
	ticketService := application.NewTicketService(
		txManager, ticketRepo, ticketTypeRepo, eventRepo,
		waitlistService, lockManager, availabilityCache, cfg.Waitlist.LockTTL,
	)
	eventService := application.NewEventService(
		txManager, eventRepo, ticketTypeRepo, ticketRepo, waitlistService,
	)
	inventoryService := application.NewInventoryService(eventRepo, inventoryRepo, availabilityCache)

	// オファー期限のインプロセスタイマー
	offerTimer := scheduler.NewOfferTimer(waitlistService.ExpireOffer, 30*time.Second)
	waitlistService.SetOfferScheduler(offerTimer)
	defer offerTimer.Stop()

	// タイマー取りこぼしを回収するDBスキャンワーカー
	reclaimer := worker.NewOverdueOfferReclaimer(waitlistService, cfg.Waitlist.SweepInterval)
	workerCtx, cancelWorker := context.WithCancel(context.Background())
	go reclaimer.Start(workerCtx)
	defer cancelWorker()

	// ハンドラー
	eventHandler := handler.NewEventHandler(eventService, inventoryService)
	waitlistHandler := handler.NewWaitlistHandler(waitlistService)
	ticketHandler := handler.NewTicketHandler(ticketService)
	healthHandler := handler.NewHealthHandler()

	// Echo セットアップ
	e := echo.New()
	e.HideBanner = true
	e.Validator = api.NewValidator()
	e.HTTPErrorHandler = api.CustomHTTPErrorHandler
	custommw.SetupMiddleware(e)
	e.Use(custommw.PrometheusMiddleware(m))

	e.GET("/health", healthHandler.Check)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()), custommw.MetricsBasicAuth())

	v1 := e.Group("/api/v1")
	v1.POST("/events", eventHandler.Create)
	v1.GET("/events", eventHandler.List)
	v1.GET("/events/:id", eventHandler.GetByID)
	v1.PUT("/events/:id", eventHandler.Update)
	v1.POST("/events/:id/cancel", eventHandler.Cancel)
	v1.GET("/events/:id/availability", eventHandler.Availability)
	v1.GET("/events/:id/stats", eventHandler.Stats)
	v1.GET("/events/:id/sales-trend", eventHandler.SalesTrend)
	v1.GET("/owners/:owner_id/events", eventHandler.OwnerEvents)

	v1.POST("/events/:id/ticket-types", ticketHandler.AddTicketType)
	v1.GET("/events/:id/ticket-types", ticketHandler.ListTicketTypes)

	v1.POST("/events/:id/waitlist", waitlistHandler.Join)
	v1.GET("/events/:id/waitlist/position", waitlistHandler.Position)
	v1.DELETE("/events/:id/waitlist/offers/:entry_id", waitlistHandler.ReleaseOffer)

	v1.POST("/events/:id/tickets", ticketHandler.Purchase)
	v1.GET("/events/:id/tickets", ticketHandler.GetUserTicket)
	v1.GET("/tickets/:id", ticketHandler.GetByID)
	v1.POST("/tickets/:id/use", ticketHandler.Use)
	v1.POST("/tickets/:id/refund", ticketHandler.Refund)
	v1.POST("/tickets/:id/cancel", ticketHandler.Cancel)

	// サーバー起動
	go func() {
		addr := fmt.Sprintf(":%s", cfg.Server.Port)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal("サーバー起動エラー", zap.Error(err))
		}
	}()

	logger.Info("サーバーを起動しました", zap.String("port", cfg.Server.Port))

	// シグナル待機
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("サーバーをシャットダウンしています...")

	// ワーカーとタイマーを先に止め、処理中のリクエストを待つ
	cancelWorker()
	reclaimer.Stop()
	offerTimer.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		logger.Fatal("サーバーシャットダウンエラー", zap.Error(err))
	}

	logger.Info("サーバーが正常にシャットダウンしました")
}
