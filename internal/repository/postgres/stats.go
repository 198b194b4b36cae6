package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aidar/team-requests-service/internal/domain"
)

// StatsRepository считает агрегаты по заявкам кампуса
type StatsRepository struct {
	db *pgxpool.Pool
}

// NewStatsRepository создает новый экземпляр StatsRepository
func NewStatsRepository(db *pgxpool.Pool) *StatsRepository {
	return &StatsRepository{db: db}
}

// CountByStatusAndType возвращает количество заявок кампуса в разрезе (тип, статус)
func (r *StatsRepository) CountByStatusAndType(ctx context.Context, campusCode string) ([]domain.RequestCount, error) {
	query := `
		SELECT request_type, status, COUNT(*)
		FROM requests
		WHERE campus_code = $1
		GROUP BY request_type, status
		ORDER BY request_type, status
	`

	rows, err := r.db.Query(ctx, query, campusCode)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := []domain.RequestCount{}
	for rows.Next() {
		var c domain.RequestCount
		if err := rows.Scan(&c.RequestType, &c.Status, &c.Count); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}

	return counts, rows.Err()
}
