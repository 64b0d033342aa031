package event

import "errors"

// Event ドメインのエラー定義
var (
	ErrEventNotFound         = errors.New("イベントが見つかりません")
	ErrEventNameRequired     = errors.New("イベント名は必須です")
	ErrOwnerIDRequired       = errors.New("主催者IDは必須です")
	ErrEventDateRequired     = errors.New("開催日時は必須です")
	ErrEventAlreadyCancelled = errors.New("イベントは既に中止されています")
	ErrEventNotSellable      = errors.New("イベントはチケット販売期間外です")
)
