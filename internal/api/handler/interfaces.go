package handler

import (
	"context"

	"github.com/jeffRnR/noizy-hub/internal/application"
	"github.com/jeffRnR/noizy-hub/internal/domain/event"
	"github.com/jeffRnR/noizy-hub/internal/domain/ticket"
)

// EventServiceInterface はイベントサービスのインターフェース
type EventServiceInterface interface {
	CreateEvent(ctx context.Context, input application.CreateEventInput) (*event.Event, error)
	GetEvent(ctx context.Context, id string) (*event.Event, error)
	ListEvents(ctx context.Context, limit, offset int) ([]*event.Event, error)
	UpdateEvent(ctx context.Context, input application.UpdateEventInput) (*event.Event, error)
	CancelEvent(ctx context.Context, id string) (*event.Event, error)
	ListOwnerEvents(ctx context.Context, ownerID string) ([]*application.OwnerEventStats, error)
	GetEventStats(ctx context.Context, eventID string) (*application.OwnerEventStats, error)
	GetSalesTrend(ctx context.Context, eventID string, days int) ([]application.DailySales, error)
}

// WaitlistServiceInterface はウェイティングリストサービスのインターフェース
type WaitlistServiceInterface interface {
	JoinQueue(ctx context.Context, eventID, userID string) (*application.JoinResult, error)
	GetQueuePosition(ctx context.Context, eventID, userID string) (*application.QueuePosition, error)
	ReleaseOffer(ctx context.Context, eventID, entryID string) error
}

// TicketServiceInterface はチケットサービスのインターフェース
type TicketServiceInterface interface {
	AddTicketType(ctx context.Context, input application.AddTicketTypeInput) (*ticket.TicketType, error)
	ListTicketTypes(ctx context.Context, eventID string) ([]*ticket.TicketType, error)
	PurchaseTicket(ctx context.Context, input application.PurchaseTicketInput) (*ticket.Ticket, error)
	GetTicket(ctx context.Context, id string) (*ticket.Ticket, error)
	GetUserTicketForEvent(ctx context.Context, eventID, userID string) (*ticket.Ticket, error)
	UseTicket(ctx context.Context, id string) (*ticket.Ticket, error)
	RefundTicket(ctx context.Context, id string) (*ticket.Ticket, error)
	CancelTicket(ctx context.Context, id string) (*ticket.Ticket, error)
}

// InventoryServiceInterface は定員サービスのインターフェース
type InventoryServiceInterface interface {
	GetEventAvailability(ctx context.Context, eventID string) (*application.Availability, error)
}
