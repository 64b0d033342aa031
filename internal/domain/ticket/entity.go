package ticket

import "time"

// Status はチケットの状態を表す
type Status string

const (
	StatusValid     Status = "valid"
	StatusUsed      Status = "used"
	StatusRefunded  Status = "refunded"
	StatusCancelled Status = "cancelled"
)

// TicketType はチケット種別を表す（VIP、一般、早割など）
// イベントの総定員は、そのイベントの全チケット種別の TotalQuantity の合計
type TicketType struct {
	ID            string
	EventID       string
	Name          string
	Price         int
	TotalQuantity int
	ExpiresAt     *time.Time // この種別の販売終了日時（任意）
	CreatedAt     time.Time
}

// NewTicketType は新しいチケット種別を作成する
func NewTicketType(eventID, name string, price, totalQuantity int, expiresAt *time.Time) *TicketType {
	return &TicketType{
		EventID:       eventID,
		Name:          name,
		Price:         price,
		TotalQuantity: totalQuantity,
		ExpiresAt:     expiresAt,
		CreatedAt:     time.Now(),
	}
}

// Validate はチケット種別の検証を行う
func (t *TicketType) Validate() error {
	if t.EventID == "" {
		return ErrEventIDRequired
	}
	if t.Name == "" {
		return ErrTicketTypeNameRequired
	}
	if t.Price < 0 {
		return ErrInvalidPrice
	}
	if t.TotalQuantity <= 0 {
		return ErrInvalidQuantity
	}
	return nil
}

// Ticket は消費済みの購入権を表す
type Ticket struct {
	ID              string
	EventID         string
	TicketTypeID    string
	UserID          string
	Status          Status
	PurchasedAt     time.Time
	PaymentIntentID *string
	Amount          int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewTicket は新しいチケットを作成する
func NewTicket(eventID, ticketTypeID, userID string, amount int) *Ticket {
	now := time.Now()
	return &Ticket{
		EventID:      eventID,
		TicketTypeID: ticketTypeID,
		UserID:       userID,
		Status:       StatusValid,
		PurchasedAt:  now,
		Amount:       amount,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// CountsAgainstCapacity は定員を消費している状態かを返す
// valid/used は定員を消費し、refunded/cancelled は定員を解放する
func (t *Ticket) CountsAgainstCapacity() bool {
	return t.Status == StatusValid || t.Status == StatusUsed
}

// Use はチケットを使用済みにする
func (t *Ticket) Use() error {
	if t.Status != StatusValid {
		return ErrTicketNotValid
	}
	t.Status = StatusUsed
	t.UpdatedAt = time.Now()
	return nil
}

// Refund はチケットを払い戻す
func (t *Ticket) Refund() error {
	if t.Status == StatusRefunded || t.Status == StatusCancelled {
		return ErrTicketAlreadyReleased
	}
	t.Status = StatusRefunded
	t.UpdatedAt = time.Now()
	return nil
}

// Cancel はチケットを取り消す
func (t *Ticket) Cancel() error {
	if t.Status == StatusRefunded || t.Status == StatusCancelled {
		return ErrTicketAlreadyReleased
	}
	t.Status = StatusCancelled
	t.UpdatedAt = time.Now()
	return nil
}

// Validate はチケットの検証を行う
func (t *Ticket) Validate() error {
	if t.EventID == "" {
		return ErrEventIDRequired
	}
	if t.TicketTypeID == "" {
		return ErrTicketTypeIDRequired
	}
	if t.UserID == "" {
		return ErrUserIDRequired
	}
	return nil
}
