package e2e

import (
	"os"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/jeffRnR/noizy-hub/internal/config"
	"github.com/jeffRnR/noizy-hub/internal/infrastructure/postgres"
	redisinfra "github.com/jeffRnR/noizy-hub/internal/infrastructure/redis"
)

var (
	testDB          *sqlx.DB
	testRedisClient *redis.Client
)

// TestMain はE2Eテストのエントリポイント
// DBまたはRedisが起動していない環境ではパッケージ全体をスキップする
func TestMain(m *testing.M) {
	cfg := config.Load()

	db, err := postgres.NewConnection(&cfg.Database)
	if err != nil {
		os.Exit(0) // DB未起動時はスキップ
	}
	testDB = db

	rc, err := redisinfra.NewClient(&redisinfra.Config{
		Host: cfg.Redis.Host, Port: cfg.Redis.Port,
	})
	if err != nil {
		db.Close()
		os.Exit(0) // Redis未起動時はスキップ
	}
	testRedisClient = rc

	code := m.Run()

	cleanupTables()
	testRedisClient.Close()
	testDB.Close()

	os.Exit(code)
}

// cleanupTables はテーブルをクリーンアップ
func cleanupTables() {
	testDB.Exec("TRUNCATE TABLE waiting_list, tickets, ticket_types, events RESTART IDENTITY CASCADE")
}
