package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prudhvinik1/chatweet/internal/database"
	"github.com/prudhvinik1/chatweet/internal/models"
)

const (
	uniqueViolation       = "23505"
	oneActivePerUserIndex = "user_sessions_one_active_per_user"
)

const sessionColumns = `id, user_id, session_token, device_id, device_label, user_agent, ip_address,
	created_at, expires_at, last_activity, is_active`

type PostgresSessionRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresSessionRepository(pool *pgxpool.Pool) *PostgresSessionRepository {
	return &PostgresSessionRepository{pool: pool}
}

func (r *PostgresSessionRepository) Replace(ctx context.Context, session *models.Session, audit AuditFunc) (int64, error) {
	var displaced int64

	err := database.WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		// Serializes concurrent logins of the same user until commit.
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, session.UserID); err != nil {
			return fmt.Errorf("failed to lock user sessions: %w", err)
		}

		tag, err := tx.Exec(ctx,
			`UPDATE user_sessions SET is_active = FALSE WHERE user_id = $1 AND is_active`,
			session.UserID,
		)
		if err != nil {
			return fmt.Errorf("failed to deactivate sessions: %w", err)
		}
		displaced = tag.RowsAffected()

		query := `INSERT INTO user_sessions
		              (user_id, session_token, device_id, device_label, user_agent, ip_address,
		               created_at, expires_at, last_activity, is_active)
		          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $7, TRUE)
		          RETURNING id, last_activity`

		err = tx.QueryRow(ctx, query,
			session.UserID,
			session.SessionToken,
			session.DeviceID,
			session.DeviceLabel,
			session.UserAgent,
			session.IPAddress,
			session.CreatedAt,
			session.ExpiresAt,
		).Scan(&session.ID, &session.LastActivity)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == oneActivePerUserIndex {
				return ErrActiveSessionConflict
			}
			return fmt.Errorf("failed to create session: %w", err)
		}
		session.IsActive = true

		if audit == nil {
			return nil
		}
		for _, entry := range audit(displaced) {
			if err := insertHistory(ctx, tx, entry); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	return displaced, nil
}

func (r *PostgresSessionRepository) FindLive(ctx context.Context, token, deviceID string, now time.Time) (*models.Session, error) {
	query := `SELECT ` + sessionColumns + `
	          FROM user_sessions
	          WHERE session_token = $1 AND device_id = $2 AND is_active AND expires_at > $3`

	session, err := scanSession(r.pool.QueryRow(ctx, query, token, deviceID, now))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find live session: %w", err)
	}
	return session, nil
}

func (r *PostgresSessionRepository) GetByToken(ctx context.Context, token string) (*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM user_sessions WHERE session_token = $1`

	session, err := scanSession(r.pool.QueryRow(ctx, query, token))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return session, nil
}

// TouchActivity records activity on a live session. ErrNotFound means the
// session is no longer live.
func (r *PostgresSessionRepository) TouchActivity(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `UPDATE user_sessions SET last_activity = $1
	          WHERE id = $2 AND is_active AND expires_at > $1`

	result, err := r.pool.Exec(ctx, query, at, id)
	if err != nil {
		return fmt.Errorf("failed to update last activity: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresSessionRepository) Deactivate(ctx context.Context, token, deviceID string) (int64, error) {
	query := `UPDATE user_sessions SET is_active = FALSE
	          WHERE session_token = $1 AND device_id = $2 AND is_active`

	result, err := r.pool.Exec(ctx, query, token, deviceID)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate session: %w", err)
	}
	return result.RowsAffected(), nil
}

func (r *PostgresSessionRepository) ListLive(ctx context.Context, userID string, now time.Time) ([]*models.Session, error) {
	query := `SELECT ` + sessionColumns + `
	          FROM user_sessions
	          WHERE user_id = $1 AND is_active AND expires_at > $2
	          ORDER BY last_activity DESC`

	rows, err := r.pool.Query(ctx, query, userID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]*models.Session, 0, 1)
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}

	return sessions, nil
}

func (r *PostgresSessionRepository) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.pool.Exec(ctx,
		`UPDATE user_sessions SET is_active = FALSE WHERE is_active AND expires_at <= $1`,
		now,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate expired sessions: %w", err)
	}
	return result.RowsAffected(), nil
}

func scanSession(row pgx.Row) (*models.Session, error) {
	var session models.Session
	err := row.Scan(
		&session.ID,
		&session.UserID,
		&session.SessionToken,
		&session.DeviceID,
		&session.DeviceLabel,
		&session.UserAgent,
		&session.IPAddress,
		&session.CreatedAt,
		&session.ExpiresAt,
		&session.LastActivity,
		&session.IsActive,
	)
	if err != nil {
		return nil, err
	}
	return &session, nil
}
