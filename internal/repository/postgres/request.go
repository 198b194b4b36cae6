package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aidar/team-requests-service/internal/domain"
	"github.com/aidar/team-requests-service/internal/repository"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

const requestColumns = `id, request_type, team_id, competition_id, user_id, campus_code,
	reason, reason_rejected, status, created_at`

// RequestRepository реализует repository.RequestRepository для PostgreSQL
type RequestRepository struct {
	db *pgxpool.Pool
}

// NewRequestRepository создает новый экземпляр RequestRepository
func NewRequestRepository(db *pgxpool.Pool) *RequestRepository {
	return &RequestRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*domain.Request, error) {
	var req domain.Request
	err := row.Scan(
		&req.ID,
		&req.RequestType,
		&req.TeamID,
		&req.CompetitionID,
		&req.UserID,
		&req.CampusCode,
		&req.Reason,
		&req.ReasonRejected,
		&req.Status,
		&req.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// CreatePending создает pending-заявку или возвращает существующую с тем же ключом дедупликации.
// Уникальный частичный индекс requests_pending_dedup_idx закрывает гонку двух параллельных вставок:
// проигравшая вставка получает DO NOTHING и перечитывает победителя.
func (r *RequestRepository) CreatePending(ctx context.Context, req *domain.Request) (*domain.Request, bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, false, err
	}
	defer func() {
		_ = tx.Rollback(ctx) // Ignore error as it will fail if transaction was committed
	}()

	key := req.DedupKey()

	existing, err := findPending(ctx, tx, key)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, tx.Commit(ctx)
	}

	query := `
		INSERT INTO requests (id, request_type, team_id, competition_id, user_id, campus_code, reason, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (team_id, campus_code, request_type, dedup_user_id) WHERE status = 'pending' DO NOTHING
		RETURNING ` + requestColumns

	created, err := scanRequest(tx.QueryRow(ctx, query,
		req.ID, req.RequestType, req.TeamID, req.CompetitionID, req.UserID,
		req.CampusCode, req.Reason, domain.StatusPending, req.CreatedAt,
	))
	switch {
	case err == nil:
		if err := tx.Commit(ctx); err != nil {
			return nil, false, err
		}
		return created, true, nil
	case errors.Is(err, pgx.ErrNoRows):
		// Параллельная транзакция успела вставить заявку с тем же ключом
		existing, err = findPending(ctx, tx, key)
		if err != nil {
			return nil, false, fmt.Errorf("reload concurrent pending request: %w", err)
		}
		return existing, false, tx.Commit(ctx)
	default:
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
			return nil, false, domain.ErrCampusNotFound
		}
		return nil, false, err
	}
}

func findPending(ctx context.Context, tx pgx.Tx, key domain.DedupKey) (*domain.Request, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM requests
		WHERE team_id = $1 AND campus_code = $2 AND request_type = $3
		  AND dedup_user_id = $4 AND status = 'pending'
		LIMIT 1
	`
	return scanRequest(tx.QueryRow(ctx, query, key.TeamID, key.CampusCode, key.RequestType, key.UserID))
}

// GetByID получает заявку по ID в пределах кампуса
func (r *RequestRepository) GetByID(ctx context.Context, id uuid.UUID, campusCode string) (*domain.Request, error) {
	query := `SELECT ` + requestColumns + ` FROM requests WHERE id = $1 AND campus_code = $2`

	req, err := scanRequest(r.db.QueryRow(ctx, query, id, campusCode))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRequestNotFound
		}
		return nil, err
	}
	return req, nil
}

// List возвращает заявки кампуса с фильтрами по статусу и типу
func (r *RequestRepository) List(ctx context.Context, filter domain.RequestFilter) ([]*domain.Request, error) {
	conditions := []string{"campus_code = $1"}
	args := []any{filter.CampusCode}

	if filter.Status != nil {
		args = append(args, *filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.RequestType != nil {
		args = append(args, *filter.RequestType)
		conditions = append(conditions, fmt.Sprintf("request_type = $%d", len(args)))
	}

	query := `SELECT ` + requestColumns + ` FROM requests WHERE ` +
		strings.Join(conditions, " AND ") + ` ORDER BY created_at DESC, id`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	requests := []*domain.Request{}
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, req)
	}

	return requests, rows.Err()
}

// Review атомарно применяет переход pending -> approved/rejected и сохраняет исходящую команду.
// Условие status = 'pending' в UPDATE делает переход единственным даже при параллельных ревью
func (r *RequestRepository) Review(
	ctx context.Context,
	decision domain.ReviewDecision,
	build repository.OutboxBuilder,
) (*domain.Request, *domain.OutboxMessage, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx) // Ignore error as it will fail if transaction was committed
	}()

	query := `
		UPDATE requests
		SET status = $1, reason_rejected = $2, reviewed_at = NOW(), reviewed_by = $3
		WHERE id = $4 AND campus_code = $5 AND status = 'pending'
		RETURNING ` + requestColumns

	updated, err := scanRequest(tx.QueryRow(ctx, query,
		decision.Status, decision.ReasonRejected, decision.ReviewerID, decision.RequestID, decision.CampusCode,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, r.explainMissedReview(ctx, tx, decision)
		}
		return nil, nil, err
	}

	var msg *domain.OutboxMessage
	if build != nil {
		msg, err = build(updated)
		if err != nil {
			return nil, nil, err
		}
	}
	if msg != nil {
		outboxQuery := `
			INSERT INTO request_outbox (id, request_id, routing_key, payload, status, created_at)
			VALUES ($1, $2, $3, $4::jsonb, $5, $6)
		`
		_, err = tx.Exec(ctx, outboxQuery,
			msg.ID, msg.RequestID, msg.RoutingKey, string(msg.Payload), domain.OutboxStatusPending, msg.CreatedAt,
		)
		if err != nil {
			return nil, nil, fmt.Errorf("insert outbox message: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, err
	}

	return updated, msg, nil
}

// explainMissedReview различает отсутствующую заявку и уже рассмотренную
func (r *RequestRepository) explainMissedReview(ctx context.Context, tx pgx.Tx, decision domain.ReviewDecision) error {
	var status domain.RequestStatus
	err := tx.QueryRow(ctx,
		`SELECT status FROM requests WHERE id = $1 AND campus_code = $2`,
		decision.RequestID, decision.CampusCode,
	).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrRequestNotFound
		}
		return err
	}
	return domain.ErrRequestAlreadyReviewed
}
