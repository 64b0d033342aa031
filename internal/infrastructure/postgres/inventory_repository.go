package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jeffRnR/noizy-hub/internal/domain/inventory"
)

// InventoryRepository はイベント定員のスナップショットを計算する
// 3つのカウントを REPEATABLE READ トランザクション内で読むことで、
// 並行する購入・オファー・期限切れに対して一貫した単一時点の値を返す
type InventoryRepository struct{ db *sqlx.DB }

func NewInventoryRepository(db *sqlx.DB) *InventoryRepository {
	return &InventoryRepository{db: db}
}

// Snapshot は now 時点の定員スナップショットを返す
func (r *InventoryRepository) Snapshot(ctx context.Context, eventID string, now time.Time) (inventory.Snapshot, error) {
	var snap inventory.Snapshot

	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{
		Isolation: sql.LevelRepeatableRead,
		ReadOnly:  true,
	})
	if err != nil {
		return snap, fmt.Errorf("スナップショット用トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback()

	capacityQuery := `SELECT COALESCE(SUM(total_quantity), 0) FROM ticket_types WHERE event_id = $1`
	if err := tx.GetContext(ctx, &snap.TotalCapacity, capacityQuery, eventID); err != nil {
		return snap, fmt.Errorf("総定員の取得に失敗: %w", err)
	}

	purchasedQuery := `SELECT COUNT(*) FROM tickets WHERE event_id = $1 AND status IN ('valid', 'used')`
	if err := tx.GetContext(ctx, &snap.PurchasedCount, purchasedQuery, eventID); err != nil {
		return snap, fmt.Errorf("購入数の取得に失敗: %w", err)
	}

	offersQuery := `SELECT COUNT(*) FROM waiting_list WHERE event_id = $1 AND status = 'offered' AND offer_expires_at > $2`
	if err := tx.GetContext(ctx, &snap.ActiveOffers, offersQuery, eventID, now); err != nil {
		return snap, fmt.Errorf("アクティブオファー数の取得に失敗: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return snap, fmt.Errorf("スナップショットのコミットに失敗: %w", err)
	}
	return snap, nil
}

var _ inventory.Accountant = (*InventoryRepository)(nil)
