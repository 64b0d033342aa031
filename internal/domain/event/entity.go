package event

import "time"

// Event はイベントエンティティを表す
// チケット定員は保持せず、イベントに紐づくチケット種別の totalQuantity の合計から導出する
type Event struct {
	ID          string
	Name        string
	Description string
	Location    string
	EventDate   time.Time
	OwnerID     string
	ImageURL    string
	IsCancelled bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewEvent は新しいイベントを作成する
func NewEvent(name, description, location string, eventDate time.Time, ownerID string) *Event {
	now := time.Now()
	return &Event{
		Name:        name,
		Description: description,
		Location:    location,
		EventDate:   eventDate,
		OwnerID:     ownerID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// IsPast はイベントの開催日時を過ぎているかを返す
func (e *Event) IsPast() bool {
	return e.EventDate.Before(time.Now())
}

// IsSellable はチケットを販売できる状態かを返す
func (e *Event) IsSellable() bool {
	return !e.IsCancelled && !e.IsPast()
}

// Cancel はイベントを中止する
func (e *Event) Cancel() error {
	if e.IsCancelled {
		return ErrEventAlreadyCancelled
	}
	e.IsCancelled = true
	e.UpdatedAt = time.Now()
	return nil
}

// Validate はイベントの検証を行う
func (e *Event) Validate() error {
	if e.Name == "" {
		return ErrEventNameRequired
	}
	if e.OwnerID == "" {
		return ErrOwnerIDRequired
	}
	if e.EventDate.IsZero() {
		return ErrEventDateRequired
	}
	return nil
}
