package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jeffRnR/noizy-hub/internal/domain/ticket"
	"github.com/jeffRnR/noizy-hub/internal/domain/transaction"
)

type ticketTypeRow struct {
	ID            string     `db:"id"`
	EventID       string     `db:"event_id"`
	Name          string     `db:"name"`
	Price         int        `db:"price"`
	TotalQuantity int        `db:"total_quantity"`
	ExpiresAt     *time.Time `db:"expires_at"`
	CreatedAt     time.Time  `db:"created_at"`
}

func (r *ticketTypeRow) toEntity() *ticket.TicketType {
	return &ticket.TicketType{
		ID: r.ID, EventID: r.EventID, Name: r.Name,
		Price: r.Price, TotalQuantity: r.TotalQuantity,
		ExpiresAt: r.ExpiresAt, CreatedAt: r.CreatedAt,
	}
}

// TicketTypeRepository はチケット種別リポジトリのPostgreSQL実装
type TicketTypeRepository struct{ db *sqlx.DB }

func NewTicketTypeRepository(db *sqlx.DB) *TicketTypeRepository {
	return &TicketTypeRepository{db: db}
}

func (r *TicketTypeRepository) Create(ctx context.Context, tt *ticket.TicketType) error {
	query := `INSERT INTO ticket_types (event_id, name, price, total_quantity, expires_at, created_at) VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`
	if err := r.db.QueryRowContext(ctx, query, tt.EventID, tt.Name, tt.Price, tt.TotalQuantity, tt.ExpiresAt, tt.CreatedAt).Scan(&tt.ID); err != nil {
		return fmt.Errorf("チケット種別作成に失敗: %w", err)
	}
	return nil
}

func (r *TicketTypeRepository) GetByID(ctx context.Context, id string) (*ticket.TicketType, error) {
	var row ticketTypeRow
	query := `SELECT id, event_id, name, price, total_quantity, expires_at, created_at FROM ticket_types WHERE id = $1`
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ticket.ErrTicketTypeNotFound
		}
		return nil, fmt.Errorf("チケット種別取得に失敗: %w", err)
	}
	return row.toEntity(), nil
}

func (r *TicketTypeRepository) GetByEventID(ctx context.Context, eventID string) ([]*ticket.TicketType, error) {
	var rows []ticketTypeRow
	query := `SELECT id, event_id, name, price, total_quantity, expires_at, created_at FROM ticket_types WHERE event_id = $1 ORDER BY created_at`
	if err := r.db.SelectContext(ctx, &rows, query, eventID); err != nil {
		return nil, fmt.Errorf("チケット種別一覧取得に失敗: %w", err)
	}
	types := make([]*ticket.TicketType, len(rows))
	for i, row := range rows {
		types[i] = row.toEntity()
	}
	return types, nil
}

var _ ticket.TypeRepository = (*TicketTypeRepository)(nil)

type ticketRow struct {
	ID              string    `db:"id"`
	EventID         string    `db:"event_id"`
	TicketTypeID    string    `db:"ticket_type_id"`
	UserID          string    `db:"user_id"`
	Status          string    `db:"status"`
	PurchasedAt     time.Time `db:"purchased_at"`
	PaymentIntentID *string   `db:"payment_intent_id"`
	Amount          int       `db:"amount"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

func (r *ticketRow) toEntity() *ticket.Ticket {
	return &ticket.Ticket{
		ID: r.ID, EventID: r.EventID, TicketTypeID: r.TicketTypeID,
		UserID: r.UserID, Status: ticket.Status(r.Status),
		PurchasedAt: r.PurchasedAt, PaymentIntentID: r.PaymentIntentID,
		Amount: r.Amount, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt,
	}
}

// TicketRepository はチケットリポジトリのPostgreSQL実装
type TicketRepository struct{ db *sqlx.DB }

func NewTicketRepository(db *sqlx.DB) *TicketRepository {
	return &TicketRepository{db: db}
}

func (r *TicketRepository) Create(ctx context.Context, tx transaction.Tx, t *ticket.Ticket) error {
	sqlxTx := UnwrapTx(tx)
	if sqlxTx == nil {
		return fmt.Errorf("不正なトランザクション型です")
	}
	query := `INSERT INTO tickets (event_id, ticket_type_id, user_id, status, purchased_at, payment_intent_id, amount, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`
	if err := sqlxTx.QueryRowContext(ctx, query,
		t.EventID, t.TicketTypeID, t.UserID, string(t.Status), t.PurchasedAt, t.PaymentIntentID, t.Amount, t.CreatedAt, t.UpdatedAt,
	).Scan(&t.ID); err != nil {
		return fmt.Errorf("チケット作成に失敗: %w", err)
	}
	return nil
}

func (r *TicketRepository) GetByID(ctx context.Context, id string) (*ticket.Ticket, error) {
	var row ticketRow
	query := `SELECT id, event_id, ticket_type_id, user_id, status, purchased_at, payment_intent_id, amount, created_at, updated_at FROM tickets WHERE id = $1`
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ticket.ErrTicketNotFound
		}
		return nil, fmt.Errorf("チケット取得に失敗: %w", err)
	}
	return row.toEntity(), nil
}

func (r *TicketRepository) GetByUserAndEvent(ctx context.Context, eventID, userID string) (*ticket.Ticket, error) {
	var row ticketRow
	query := `SELECT id, event_id, ticket_type_id, user_id, status, purchased_at, payment_intent_id, amount, created_at, updated_at FROM tickets WHERE event_id = $1 AND user_id = $2 AND status IN ('valid', 'used') LIMIT 1`
	if err := r.db.GetContext(ctx, &row, query, eventID, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ticket.ErrTicketNotFound
		}
		return nil, fmt.Errorf("チケット取得に失敗: %w", err)
	}
	return row.toEntity(), nil
}

func (r *TicketRepository) GetByEventID(ctx context.Context, eventID string) ([]*ticket.Ticket, error) {
	var rows []ticketRow
	query := `SELECT id, event_id, ticket_type_id, user_id, status, purchased_at, payment_intent_id, amount, created_at, updated_at FROM tickets WHERE event_id = $1 ORDER BY purchased_at`
	if err := r.db.SelectContext(ctx, &rows, query, eventID); err != nil {
		return nil, fmt.Errorf("チケット一覧取得に失敗: %w", err)
	}
	tickets := make([]*ticket.Ticket, len(rows))
	for i, row := range rows {
		tickets[i] = row.toEntity()
	}
	return tickets, nil
}

func (r *TicketRepository) Update(ctx context.Context, tx transaction.Tx, t *ticket.Ticket) error {
	sqlxTx := UnwrapTx(tx)
	if sqlxTx == nil {
		return fmt.Errorf("不正なトランザクション型です")
	}
	query := `UPDATE tickets SET status = $1, updated_at = $2 WHERE id = $3`
	result, err := sqlxTx.ExecContext(ctx, query, string(t.Status), t.UpdatedAt, t.ID)
	if err != nil {
		return fmt.Errorf("チケット更新に失敗: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ticket.ErrTicketNotFound
	}
	return nil
}

var _ ticket.Repository = (*TicketRepository)(nil)
