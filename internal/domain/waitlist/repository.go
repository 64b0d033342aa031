package waitlist

import (
	"context"
	"time"

	"github.com/jeffRnR/noizy-hub/internal/domain/transaction"
)

// Repository はウェイティングリストリポジトリのインターフェース
// エントリは追記専用で、状態更新のみ許される
type Repository interface {
	// Create は新しいエントリを作成する（トランザクション必須）
	Create(ctx context.Context, tx transaction.Tx, entry *Entry) error

	// GetByID はIDからエントリを取得する
	GetByID(ctx context.Context, id string) (*Entry, error)

	// GetActiveByUserAndEvent は (イベント, ユーザー) の expired でないエントリを取得する
	GetActiveByUserAndEvent(ctx context.Context, eventID, userID string) (*Entry, error)

	// CountActiveAhead はエントリより先に作成された waiting/offered エントリ数を返す
	// FIFO順は (created_at, seq) で決まる
	CountActiveAhead(ctx context.Context, entry *Entry) (int, error)

	// SelectOldestWaiting は waiting エントリを作成順（古い順）に最大 limit 件取得する
	SelectOldestWaiting(ctx context.Context, eventID string, limit int) ([]*Entry, error)

	// CountActiveOffers は offerExpiresAt が now より先の offered エントリ数を返す
	CountActiveOffers(ctx context.Context, eventID string, now time.Time) (int, error)

	// UpdateStatus はエントリの状態と offer_expires_at を更新する（トランザクション必須）
	UpdateStatus(ctx context.Context, tx transaction.Tx, entry *Entry) error

	// ListActiveByEvent はイベントの waiting/offered エントリを取得する
	ListActiveByEvent(ctx context.Context, eventID string) ([]*Entry, error)

	// ListOverdueOffers は期限を過ぎた offered エントリを最大 limit 件取得する
	// 回収ワーカーのバックストップ用
	ListOverdueOffers(ctx context.Context, now time.Time, limit int) ([]*Entry, error)
}
