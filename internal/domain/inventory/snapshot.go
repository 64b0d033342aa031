package inventory

import (
	"context"
	"time"
)

// Snapshot はイベント定員の単一時点のスナップショットを表す
// 3つのカウントは必ず同一の一貫した読み取りから得ること。部分的に読み取ると、
// 並行するオファー・期限切れに対して残数が古くなり二重オファーの原因になる
type Snapshot struct {
	// TotalCapacity はイベントの全チケット種別の totalQuantity の合計
	TotalCapacity int
	// PurchasedCount は valid/used 状態のチケット数
	PurchasedCount int
	// ActiveOffers は期限の切れていない offered エントリ数
	ActiveOffers int
}

// Remaining は残りの販売可能数を返す（負にはならない）
func (s Snapshot) Remaining() int {
	remaining := s.TotalCapacity - (s.PurchasedCount + s.ActiveOffers)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// IsSoldOut は売り切れかを返す
func (s Snapshot) IsSoldOut() bool {
	return s.PurchasedCount+s.ActiveOffers >= s.TotalCapacity
}

// IsOverCommitted は定員不変条件が破れているかを返す
// 直列化規律が守られている限り真にはならない
func (s Snapshot) IsOverCommitted() bool {
	return s.PurchasedCount+s.ActiveOffers > s.TotalCapacity
}

// Accountant はイベント定員の会計を行うインターフェース
// 読み取り専用で、内部状態を持たない
type Accountant interface {
	// Snapshot は now 時点の定員スナップショットを単一の一貫した読み取りで返す
	Snapshot(ctx context.Context, eventID string, now time.Time) (Snapshot, error)
}
