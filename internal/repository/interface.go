package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/aidar/team-requests-service/internal/domain"
)

// OutboxBuilder строит исходящую команду по уже обновленной заявке внутри транзакции перехода
type OutboxBuilder func(updated *domain.Request) (*domain.OutboxMessage, error)

// OutboxHandler отправляет одну запись outbox; ошибка оставляет запись в статусе pending
type OutboxHandler func(ctx context.Context, msg *domain.OutboxMessage) error

// RequestRepository определяет методы для работы с заявками
type RequestRepository interface {
	// CreatePending создает pending-заявку или возвращает существующую с тем же ключом дедупликации.
	// Второе значение true, если строка была вставлена
	CreatePending(ctx context.Context, req *domain.Request) (*domain.Request, bool, error)

	// GetByID получает заявку по ID в пределах кампуса
	GetByID(ctx context.Context, id uuid.UUID, campusCode string) (*domain.Request, error)

	// List возвращает заявки кампуса с фильтрами по статусу и типу
	List(ctx context.Context, filter domain.RequestFilter) ([]*domain.Request, error)

	// Review атомарно применяет переход pending -> approved/rejected и сохраняет исходящую команду
	Review(ctx context.Context, decision domain.ReviewDecision, build OutboxBuilder) (*domain.Request, *domain.OutboxMessage, error)
}

// CampusRepository определяет методы для работы с кампусами
type CampusRepository interface {
	// Create создает новый кампус
	Create(ctx context.Context, code string) error

	// Exists проверяет существование кампуса
	Exists(ctx context.Context, code string) (bool, error)

	// List возвращает все кампусы
	List(ctx context.Context) ([]domain.Campus, error)
}

// OutboxRepository определяет методы для работы с исходящими командами
type OutboxRepository interface {
	// MarkSent помечает запись как подтвержденную брокером
	MarkSent(ctx context.Context, id uuid.UUID) error

	// RecordFailure увеличивает счетчик попыток и сохраняет последнюю ошибку
	RecordFailure(ctx context.Context, id uuid.UUID, lastError string) error

	// ProcessPending блокирует до limit pending-записей старше olderThan и передает их handler
	ProcessPending(ctx context.Context, olderThan time.Time, limit int, handler OutboxHandler) (int, error)
}

// StatsRepository определяет агрегирующие запросы по заявкам
type StatsRepository interface {
	// CountByStatusAndType возвращает количество заявок кампуса в разрезе (тип, статус)
	CountByStatusAndType(ctx context.Context, campusCode string) ([]domain.RequestCount, error)
}
