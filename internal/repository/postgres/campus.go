package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aidar/team-requests-service/internal/domain"
)

// CampusRepository реализует repository.CampusRepository для PostgreSQL
type CampusRepository struct {
	db *pgxpool.Pool
}

// NewCampusRepository создает новый экземпляр CampusRepository
func NewCampusRepository(db *pgxpool.Pool) *CampusRepository {
	return &CampusRepository{db: db}
}

// Create создает новый кампус
func (r *CampusRepository) Create(ctx context.Context, code string) error {
	_, err := r.db.Exec(ctx, `INSERT INTO campus (code) VALUES ($1)`, code)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return domain.ErrCampusExists
		}
		return err
	}

	return nil
}

// Exists проверяет существование кампуса
func (r *CampusRepository) Exists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM campus WHERE code = $1)`, code).Scan(&exists)
	return exists, err
}

// List возвращает все кампусы
func (r *CampusRepository) List(ctx context.Context) ([]domain.Campus, error) {
	rows, err := r.db.Query(ctx, `SELECT code FROM campus ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	campuses := []domain.Campus{}
	for rows.Next() {
		var c domain.Campus
		if err := rows.Scan(&c.Code); err != nil {
			return nil, err
		}
		campuses = append(campuses, c)
	}

	return campuses, rows.Err()
}
