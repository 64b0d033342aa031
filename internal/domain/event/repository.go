package event

import "context"

// Repository はイベントリポジトリのインターフェース
type Repository interface {
	// Create は新しいイベントを作成する
	Create(ctx context.Context, event *Event) error

	// GetByID はIDからイベントを取得する
	GetByID(ctx context.Context, id string) (*Event, error)

	// ListActive は中止されていないイベント一覧を取得する
	ListActive(ctx context.Context, limit, offset int) ([]*Event, error)

	// ListByOwner は主催者のイベント一覧を取得する
	ListByOwner(ctx context.Context, ownerID string) ([]*Event, error)

	// Update はイベントを更新する
	Update(ctx context.Context, event *Event) error
}
