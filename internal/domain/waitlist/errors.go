package waitlist

import "errors"

// Waitlist ドメインのエラー定義
var (
	ErrEntryNotFound     = errors.New("ウェイティングリストエントリが見つかりません")
	ErrAlreadyInWaitlist = errors.New("既にこのイベントのウェイティングリストに参加しています")
	ErrEntryNotWaiting   = errors.New("エントリは waiting 状態ではありません")
	ErrEntryNotOffered   = errors.New("エントリは offered 状態ではありません")
	ErrNoActiveOffer     = errors.New("有効な購入オファーがありません")
	ErrEventIDRequired   = errors.New("イベントIDは必須です")
	ErrUserIDRequired    = errors.New("ユーザーIDは必須です")

	// ErrCapacityExceeded はイベント単位の直列化が破れた場合にのみ到達しうる防御的エラー
	// 観測された場合はロックのバグであり、握りつぶしてはならない
	ErrCapacityExceeded = errors.New("定員不変条件違反: 購入数+オファー数が総定員を超過")
)
