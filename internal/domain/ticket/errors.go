package ticket

import "errors"

// Ticket ドメインのエラー定義
var (
	ErrTicketNotFound         = errors.New("チケットが見つかりません")
	ErrTicketTypeNotFound     = errors.New("チケット種別が見つかりません")
	ErrTicketNotValid         = errors.New("チケットは有効ではありません")
	ErrTicketAlreadyReleased  = errors.New("チケットは既に払い戻し・取り消し済みです")
	ErrEventIDRequired        = errors.New("イベントIDは必須です")
	ErrTicketTypeIDRequired   = errors.New("チケット種別IDは必須です")
	ErrUserIDRequired         = errors.New("ユーザーIDは必須です")
	ErrTicketTypeNameRequired = errors.New("チケット種別名は必須です")
	ErrInvalidPrice           = errors.New("価格は0以上である必要があります")
	ErrInvalidQuantity        = errors.New("枚数は1以上である必要があります")
)
