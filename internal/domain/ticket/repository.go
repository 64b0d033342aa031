package ticket

import (
	"context"

	"github.com/jeffRnR/noizy-hub/internal/domain/transaction"
)

// TypeRepository はチケット種別リポジトリのインターフェース
type TypeRepository interface {
	// Create は新しいチケット種別を作成する
	Create(ctx context.Context, tt *TicketType) error

	// GetByID はIDからチケット種別を取得する
	GetByID(ctx context.Context, id string) (*TicketType, error)

	// GetByEventID はイベントのチケット種別一覧を取得する
	GetByEventID(ctx context.Context, eventID string) ([]*TicketType, error)
}

// Repository はチケットリポジトリのインターフェース
type Repository interface {
	// Create は新しいチケットを作成する（トランザクション必須）
	Create(ctx context.Context, tx transaction.Tx, t *Ticket) error

	// GetByID はIDからチケットを取得する
	GetByID(ctx context.Context, id string) (*Ticket, error)

	// GetByUserAndEvent はユーザーがイベントに対して持つチケットを取得する
	GetByUserAndEvent(ctx context.Context, eventID, userID string) (*Ticket, error)

	// GetByEventID はイベントのチケット一覧を取得する
	GetByEventID(ctx context.Context, eventID string) ([]*Ticket, error)

	// Update はチケットの状態を更新する（トランザクション必須）
	Update(ctx context.Context, tx transaction.Tx, t *Ticket) error
}
