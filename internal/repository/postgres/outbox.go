package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aidar/team-requests-service/internal/domain"
	"github.com/aidar/team-requests-service/internal/repository"
)

// OutboxRepository реализует repository.OutboxRepository для PostgreSQL
type OutboxRepository struct {
	db *pgxpool.Pool
}

// NewOutboxRepository создает новый экземпляр OutboxRepository
func NewOutboxRepository(db *pgxpool.Pool) *OutboxRepository {
	return &OutboxRepository{db: db}
}

// MarkSent помечает запись как подтвержденную брокером
func (r *OutboxRepository) MarkSent(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE request_outbox
		SET status = 'sent', sent_at = NOW(), attempts = attempts + 1, last_error = NULL
		WHERE id = $1 AND status = 'pending'
	`
	_, err := r.db.Exec(ctx, query, id)
	return err
}

// RecordFailure увеличивает счетчик попыток и сохраняет последнюю ошибку
func (r *OutboxRepository) RecordFailure(ctx context.Context, id uuid.UUID, lastError string) error {
	query := `
		UPDATE request_outbox
		SET attempts = attempts + 1, last_error = $2
		WHERE id = $1 AND status = 'pending'
	`
	_, err := r.db.Exec(ctx, query, id, lastError)
	return err
}

// ProcessPending блокирует до limit pending-записей старше olderThan и передает их handler.
// Записи, заблокированные другим экземпляром сервиса, пропускаются (SKIP LOCKED).
// Успешно отправленные помечаются sent, неуспешные получают attempts+1 и last_error.
func (r *OutboxRepository) ProcessPending(
	ctx context.Context,
	olderThan time.Time,
	limit int,
	handler repository.OutboxHandler,
) (int, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = tx.Rollback(ctx) // Ignore error as it will fail if transaction was committed
	}()

	query := `
		SELECT id, request_id, routing_key, payload::text, status, attempts, last_error, created_at, sent_at
		FROM request_outbox
		WHERE status = 'pending' AND created_at < $1
		ORDER BY created_at
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`

	rows, err := tx.Query(ctx, query, olderThan, limit)
	if err != nil {
		return 0, err
	}

	var batch []*domain.OutboxMessage
	for rows.Next() {
		var (
			msg     domain.OutboxMessage
			payload string
		)
		if err := rows.Scan(
			&msg.ID, &msg.RequestID, &msg.RoutingKey, &payload, &msg.Status,
			&msg.Attempts, &msg.LastError, &msg.CreatedAt, &msg.SentAt,
		); err != nil {
			rows.Close()
			return 0, err
		}
		msg.Payload = []byte(payload)
		batch = append(batch, &msg)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	sent := 0
	for _, msg := range batch {
		if herr := handler(ctx, msg); herr != nil {
			_, err := tx.Exec(ctx,
				`UPDATE request_outbox SET attempts = attempts + 1, last_error = $2 WHERE id = $1`,
				msg.ID, herr.Error(),
			)
			if err != nil {
				return sent, fmt.Errorf("record outbox failure: %w", err)
			}
			continue
		}

		_, err := tx.Exec(ctx,
			`UPDATE request_outbox SET status = 'sent', sent_at = NOW(), attempts = attempts + 1, last_error = NULL WHERE id = $1`,
			msg.ID,
		)
		if err != nil {
			return sent, fmt.Errorf("mark outbox sent: %w", err)
		}
		sent++
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}

	return sent, nil
}
