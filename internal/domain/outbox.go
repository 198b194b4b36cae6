package domain

import (
	"time"

	"github.com/google/uuid"
)

// OutboxStatus представляет статус записи исходящей команды
type OutboxStatus string

// Возможные статусы записи outbox
const (
	OutboxStatusPending OutboxStatus = "pending" // Еще не подтверждена брокером
	OutboxStatusSent    OutboxStatus = "sent"    // Подтверждена брокером
)

// OutboxMessage представляет исходящую команду, сохраненную в одной транзакции с переходом заявки
type OutboxMessage struct {
	ID         uuid.UUID    `json:"id"`
	RequestID  uuid.UUID    `json:"request_id"`
	RoutingKey string       `json:"routing_key"`
	Payload    []byte       `json:"payload"`
	Status     OutboxStatus `json:"status"`
	Attempts   int          `json:"attempts"`
	LastError  *string      `json:"last_error,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
	SentAt     *time.Time   `json:"sent_at,omitempty"`
}
