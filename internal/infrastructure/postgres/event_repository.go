package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jeffRnR/noizy-hub/internal/domain/event"
)

// eventRow はDBの行を表す構造体
type eventRow struct {
	ID          string    `db:"id"`
	Name        string    `db:"name"`
	Description *string   `db:"description"`
	Location    *string   `db:"location"`
	EventDate   time.Time `db:"event_date"`
	OwnerID     string    `db:"owner_id"`
	ImageURL    *string   `db:"image_url"`
	IsCancelled bool      `db:"is_cancelled"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// toEntity はeventRowをEventエンティティに変換する
func (r *eventRow) toEntity() *event.Event {
	var desc, location, imageURL string
	if r.Description != nil {
		desc = *r.Description
	}
	if r.Location != nil {
		location = *r.Location
	}
	if r.ImageURL != nil {
		imageURL = *r.ImageURL
	}
	return &event.Event{
		ID:          r.ID,
		Name:        r.Name,
		Description: desc,
		Location:    location,
		EventDate:   r.EventDate,
		OwnerID:     r.OwnerID,
		ImageURL:    imageURL,
		IsCancelled: r.IsCancelled,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

// EventRepository はイベントリポジトリのPostgreSQL実装
type EventRepository struct {
	db *sqlx.DB
}

// NewEventRepository はEventRepositoryを作成する
func NewEventRepository(db *sqlx.DB) *EventRepository {
	return &EventRepository{db: db}
}

// Create は新しいイベントを作成する
func (r *EventRepository) Create(ctx context.Context, e *event.Event) error {
	query := `
		INSERT INTO events (name, description, location, event_date, owner_id, image_url, is_cancelled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`
	var desc, location, imageURL *string
	if e.Description != "" {
		desc = &e.Description
	}
	if e.Location != "" {
		location = &e.Location
	}
	if e.ImageURL != "" {
		imageURL = &e.ImageURL
	}

	err := r.db.QueryRowContext(ctx, query,
		e.Name, desc, location, e.EventDate, e.OwnerID, imageURL, e.IsCancelled, e.CreatedAt, e.UpdatedAt,
	).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("イベント作成に失敗しました: %w", err)
	}
	return nil
}

// GetByID はIDからイベントを取得する
func (r *EventRepository) GetByID(ctx context.Context, id string) (*event.Event, error) {
	query := `SELECT id, name, description, location, event_date, owner_id, image_url, is_cancelled, created_at, updated_at FROM events WHERE id = $1`

	var row eventRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, event.ErrEventNotFound
		}
		return nil, fmt.Errorf("イベント取得に失敗しました: %w", err)
	}
	return row.toEntity(), nil
}

// ListActive は中止されていないイベント一覧を取得する
func (r *EventRepository) ListActive(ctx context.Context, limit, offset int) ([]*event.Event, error) {
	query := `SELECT id, name, description, location, event_date, owner_id, image_url, is_cancelled, created_at, updated_at FROM events WHERE is_cancelled = FALSE ORDER BY event_date ASC LIMIT $1 OFFSET $2`

	var rows []eventRow
	if err := r.db.SelectContext(ctx, &rows, query, limit, offset); err != nil {
		return nil, fmt.Errorf("イベント一覧取得に失敗しました: %w", err)
	}
	events := make([]*event.Event, len(rows))
	for i, row := range rows {
		events[i] = row.toEntity()
	}
	return events, nil
}

// ListByOwner は主催者のイベント一覧を取得する
func (r *EventRepository) ListByOwner(ctx context.Context, ownerID string) ([]*event.Event, error) {
	query := `SELECT id, name, description, location, event_date, owner_id, image_url, is_cancelled, created_at, updated_at FROM events WHERE owner_id = $1 ORDER BY created_at DESC`

	var rows []eventRow
	if err := r.db.SelectContext(ctx, &rows, query, ownerID); err != nil {
		return nil, fmt.Errorf("イベント一覧取得に失敗しました: %w", err)
	}
	events := make([]*event.Event, len(rows))
	for i, row := range rows {
		events[i] = row.toEntity()
	}
	return events, nil
}

// Update はイベントを更新する
func (r *EventRepository) Update(ctx context.Context, e *event.Event) error {
	query := `UPDATE events SET name = $1, description = $2, location = $3, event_date = $4, image_url = $5, is_cancelled = $6, updated_at = $7 WHERE id = $8`

	result, err := r.db.ExecContext(ctx, query,
		e.Name, e.Description, e.Location, e.EventDate, e.ImageURL, e.IsCancelled, e.UpdatedAt, e.ID,
	)
	if err != nil {
		return fmt.Errorf("イベント更新に失敗しました: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return event.ErrEventNotFound
	}
	return nil
}

var _ event.Repository = (*EventRepository)(nil)
