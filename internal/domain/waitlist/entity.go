package waitlist

import "time"

// Status はウェイティングリストエントリの状態を表す
type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusOffered   Status = "offered"
	StatusPurchased Status = "purchased"
	StatusExpired   Status = "expired"
)

// Entry はウェイティングリストエントリを表す
// (イベント, ユーザー) の競合1回につき1件。物理削除はせず、expired への遷移で
// 「削除」を表現する追記専用の台帳
type Entry struct {
	ID      string
	EventID string
	UserID  string
	Status  Status
	// OfferExpiresAt は offered の間だけ非nil
	OfferExpiresAt *time.Time
	CreatedAt      time.Time
	// Seq は挿入順のシーケンス番号
	// CreatedAt が衝突した場合のFIFOタイブレーカー
	Seq int64
}

// NewEntry は waiting 状態の新しいエントリを作成する
func NewEntry(eventID, userID string) *Entry {
	return &Entry{
		EventID:   eventID,
		UserID:    userID,
		Status:    StatusWaiting,
		CreatedAt: time.Now(),
	}
}

// IsActive は非終端（waiting または offered）かを返す
func (e *Entry) IsActive() bool {
	return e.Status == StatusWaiting || e.Status == StatusOffered
}

// IsTerminal は終端状態（purchased または expired）かを返す
// 終端状態からの遷移は存在しない
func (e *Entry) IsTerminal() bool {
	return e.Status == StatusPurchased || e.Status == StatusExpired
}

// IsActiveOffer は期限の切れていないオファーを保持しているかを返す
// アクティブオファーは定員を消費する
func (e *Entry) IsActiveOffer(now time.Time) bool {
	return e.Status == StatusOffered && e.OfferExpiresAt != nil && e.OfferExpiresAt.After(now)
}

// Offer はエントリに時限付き購入オファーを発行する
// waiting からのみ遷移できる
func (e *Entry) Offer(now time.Time, ttl time.Duration) error {
	if e.Status != StatusWaiting {
		return ErrEntryNotWaiting
	}
	expiresAt := now.Add(ttl)
	e.Status = StatusOffered
	e.OfferExpiresAt = &expiresAt
	return nil
}

// Expire はオファーを回収して expired にする
// offered 以外からの呼び出しはエラー（呼び出し側で no-op 判定に使う）
func (e *Entry) Expire() error {
	if e.Status != StatusOffered {
		return ErrEntryNotOffered
	}
	e.Status = StatusExpired
	e.OfferExpiresAt = nil
	return nil
}

// ExpireForCancellation はイベント中止に伴いエントリを expired にする
// 通常の状態機械には waiting → expired の遷移は存在しないが、
// イベントが販売不能になった場合のみ waiting/offered の両方から遷移できる
func (e *Entry) ExpireForCancellation() error {
	if e.IsTerminal() {
		return ErrEntryNotOffered
	}
	e.Status = StatusExpired
	e.OfferExpiresAt = nil
	return nil
}

// MarkPurchased はオファーを行使して purchased にする
// 期限内の offered からのみ遷移できる
func (e *Entry) MarkPurchased(now time.Time) error {
	if !e.IsActiveOffer(now) {
		return ErrNoActiveOffer
	}
	e.Status = StatusPurchased
	e.OfferExpiresAt = nil
	return nil
}

// Validate はエントリの検証を行う
func (e *Entry) Validate() error {
	if e.EventID == "" {
		return ErrEventIDRequired
	}
	if e.UserID == "" {
		return ErrUserIDRequired
	}
	return nil
}
