package repositories

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prudhvinik1/chatweet/internal/models"
)

// rowQuerier is satisfied by both *pgxpool.Pool and pgx.Tx.
type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PostgresLoginHistoryRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresLoginHistoryRepository(pool *pgxpool.Pool) *PostgresLoginHistoryRepository {
	return &PostgresLoginHistoryRepository{pool: pool}
}

func (r *PostgresLoginHistoryRepository) Append(ctx context.Context, entry *models.LoginHistoryEntry) error {
	return insertHistory(ctx, r.pool, entry)
}

func (r *PostgresLoginHistoryRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*models.LoginHistoryEntry, error) {
	query := `SELECT id, user_id, device_id, ip_address, action, created_at
	          FROM login_history
	          WHERE user_id = $1
	          ORDER BY created_at DESC
	          LIMIT $2`

	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query login history: %w", err)
	}
	defer rows.Close()

	entries := make([]*models.LoginHistoryEntry, 0)
	for rows.Next() {
		var entry models.LoginHistoryEntry
		err := rows.Scan(
			&entry.ID,
			&entry.UserID,
			&entry.DeviceID,
			&entry.IPAddress,
			&entry.Action,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan login history: %w", err)
		}
		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating login history: %w", err)
	}

	return entries, nil
}

// insertHistory uses clock_timestamp so entries written in one transaction keep their order.
func insertHistory(ctx context.Context, q rowQuerier, entry *models.LoginHistoryEntry) error {
	query := `INSERT INTO login_history (user_id, device_id, ip_address, action, created_at)
	          VALUES ($1, $2, $3, $4, clock_timestamp())
	          RETURNING id, created_at`

	err := q.QueryRow(ctx, query, entry.UserID, entry.DeviceID, entry.IPAddress, string(entry.Action)).
		Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append %s history: %w", entry.Action, err)
	}
	return nil
}
