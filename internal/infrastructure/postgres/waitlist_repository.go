package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jeffRnR/noizy-hub/internal/domain/transaction"
	"github.com/jeffRnR/noizy-hub/internal/domain/waitlist"
)

type waitlistRow struct {
	ID             string     `db:"id"`
	EventID        string     `db:"event_id"`
	UserID         string     `db:"user_id"`
	Status         string     `db:"status"`
	OfferExpiresAt *time.Time `db:"offer_expires_at"`
	CreatedAt      time.Time  `db:"created_at"`
	Seq            int64      `db:"seq"`
}

func (r *waitlistRow) toEntity() *waitlist.Entry {
	return &waitlist.Entry{
		ID: r.ID, EventID: r.EventID, UserID: r.UserID,
		Status: waitlist.Status(r.Status), OfferExpiresAt: r.OfferExpiresAt,
		CreatedAt: r.CreatedAt, Seq: r.Seq,
	}
}

const waitlistColumns = `id, event_id, user_id, status, offer_expires_at, created_at, seq`

// WaitlistRepository はウェイティングリストリポジトリのPostgreSQL実装
type WaitlistRepository struct{ db *sqlx.DB }

func NewWaitlistRepository(db *sqlx.DB) *WaitlistRepository {
	return &WaitlistRepository{db: db}
}

func (r *WaitlistRepository) Create(ctx context.Context, tx transaction.Tx, entry *waitlist.Entry) error {
	sqlxTx := UnwrapTx(tx)
	if sqlxTx == nil {
		return fmt.Errorf("不正なトランザクション型です")
	}
	query := `INSERT INTO waiting_list (event_id, user_id, status, offer_expires_at, created_at) VALUES ($1, $2, $3, $4, $5) RETURNING id, seq`
	if err := sqlxTx.QueryRowContext(ctx, query,
		entry.EventID, entry.UserID, string(entry.Status), entry.OfferExpiresAt, entry.CreatedAt,
	).Scan(&entry.ID, &entry.Seq); err != nil {
		// 部分一意インデックス（expired 以外の (event_id, user_id) は一意）への違反
		if pgErr, ok := err.(*pq.Error); ok && pgErr.Code == "23505" {
			return waitlist.ErrAlreadyInWaitlist
		}
		return fmt.Errorf("エントリ作成に失敗: %w", err)
	}
	return nil
}

func (r *WaitlistRepository) GetByID(ctx context.Context, id string) (*waitlist.Entry, error) {
	var row waitlistRow
	query := `SELECT ` + waitlistColumns + ` FROM waiting_list WHERE id = $1`
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, waitlist.ErrEntryNotFound
		}
		return nil, fmt.Errorf("エントリ取得に失敗: %w", err)
	}
	return row.toEntity(), nil
}

func (r *WaitlistRepository) GetActiveByUserAndEvent(ctx context.Context, eventID, userID string) (*waitlist.Entry, error) {
	var row waitlistRow
	query := `SELECT ` + waitlistColumns + ` FROM waiting_list WHERE event_id = $1 AND user_id = $2 AND status <> 'expired' LIMIT 1`
	if err := r.db.GetContext(ctx, &row, query, eventID, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, waitlist.ErrEntryNotFound
		}
		return nil, fmt.Errorf("エントリ取得に失敗: %w", err)
	}
	return row.toEntity(), nil
}

func (r *WaitlistRepository) CountActiveAhead(ctx context.Context, entry *waitlist.Entry) (int, error) {
	var count int
	query := `
		SELECT COUNT(*) FROM waiting_list
		WHERE event_id = $1
		  AND status IN ('waiting', 'offered')
		  AND (created_at, seq) < ($2, $3)
	`
	if err := r.db.GetContext(ctx, &count, query, entry.EventID, entry.CreatedAt, entry.Seq); err != nil {
		return 0, fmt.Errorf("待ち人数の取得に失敗: %w", err)
	}
	return count, nil
}

func (r *WaitlistRepository) SelectOldestWaiting(ctx context.Context, eventID string, limit int) ([]*waitlist.Entry, error) {
	var rows []waitlistRow
	query := `SELECT ` + waitlistColumns + ` FROM waiting_list WHERE event_id = $1 AND status = 'waiting' ORDER BY created_at ASC, seq ASC LIMIT $2`
	if err := r.db.SelectContext(ctx, &rows, query, eventID, limit); err != nil {
		return nil, fmt.Errorf("waiting エントリ取得に失敗: %w", err)
	}
	entries := make([]*waitlist.Entry, len(rows))
	for i, row := range rows {
		entries[i] = row.toEntity()
	}
	return entries, nil
}

func (r *WaitlistRepository) CountActiveOffers(ctx context.Context, eventID string, now time.Time) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM waiting_list WHERE event_id = $1 AND status = 'offered' AND offer_expires_at > $2`
	if err := r.db.GetContext(ctx, &count, query, eventID, now); err != nil {
		return 0, fmt.Errorf("アクティブオファー数の取得に失敗: %w", err)
	}
	return count, nil
}

func (r *WaitlistRepository) UpdateStatus(ctx context.Context, tx transaction.Tx, entry *waitlist.Entry) error {
	sqlxTx := UnwrapTx(tx)
	if sqlxTx == nil {
		return fmt.Errorf("不正なトランザクション型です")
	}
	query := `UPDATE waiting_list SET status = $1, offer_expires_at = $2 WHERE id = $3`
	result, err := sqlxTx.ExecContext(ctx, query, string(entry.Status), entry.OfferExpiresAt, entry.ID)
	if err != nil {
		return fmt.Errorf("エントリ更新に失敗: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return waitlist.ErrEntryNotFound
	}
	return nil
}

func (r *WaitlistRepository) ListActiveByEvent(ctx context.Context, eventID string) ([]*waitlist.Entry, error) {
	var rows []waitlistRow
	query := `SELECT ` + waitlistColumns + ` FROM waiting_list WHERE event_id = $1 AND status IN ('waiting', 'offered') ORDER BY created_at ASC, seq ASC`
	if err := r.db.SelectContext(ctx, &rows, query, eventID); err != nil {
		return nil, fmt.Errorf("アクティブエントリ取得に失敗: %w", err)
	}
	entries := make([]*waitlist.Entry, len(rows))
	for i, row := range rows {
		entries[i] = row.toEntity()
	}
	return entries, nil
}

func (r *WaitlistRepository) ListOverdueOffers(ctx context.Context, now time.Time, limit int) ([]*waitlist.Entry, error) {
	var rows []waitlistRow
	query := `SELECT ` + waitlistColumns + ` FROM waiting_list WHERE status = 'offered' AND offer_expires_at <= $1 ORDER BY offer_expires_at ASC LIMIT $2`
	if err := r.db.SelectContext(ctx, &rows, query, now, limit); err != nil {
		return nil, fmt.Errorf("期限切れオファー取得に失敗: %w", err)
	}
	entries := make([]*waitlist.Entry, len(rows))
	for i, row := range rows {
		entries[i] = row.toEntity()
	}
	return entries, nil
}

var _ waitlist.Repository = (*WaitlistRepository)(nil)
