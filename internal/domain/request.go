package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RequestType представляет тип заявки на изменение команды
type RequestType string

// Возможные типы заявок
const (
	RequestTypeApproveTeam      RequestType = "approve_team"       // Создание команды
	RequestTypeDeleteTeam       RequestType = "delete_team"        // Удаление команды
	RequestTypeAddTeamMember    RequestType = "add_team_member"    // Добавление участника
	RequestTypeRemoveTeamMember RequestType = "remove_team_member" // Удаление участника
)

// AllRequestTypes возвращает все известные типы заявок
func AllRequestTypes() []RequestType {
	return []RequestType{
		RequestTypeApproveTeam,
		RequestTypeDeleteTeam,
		RequestTypeAddTeamMember,
		RequestTypeRemoveTeamMember,
	}
}

// ParseRequestType разбирает строку в RequestType.
// Новый тип обязан появиться здесь и в маршрутизации исходящих команд (events.RouteFor).
func ParseRequestType(s string) (RequestType, error) {
	switch RequestType(s) {
	case RequestTypeApproveTeam,
		RequestTypeDeleteTeam,
		RequestTypeAddTeamMember,
		RequestTypeRemoveTeamMember:
		return RequestType(s), nil
	default:
		return "", fmt.Errorf("%w: unknown request_type %q", ErrValidation, s)
	}
}

// RequiresUserID возвращает true для заявок, относящихся к участнику команды
func (t RequestType) RequiresUserID() bool {
	return t == RequestTypeAddTeamMember || t == RequestTypeRemoveTeamMember
}

// DedupByUser возвращает true если user_id входит в ключ дедупликации
func (t RequestType) DedupByUser() bool {
	return t == RequestTypeRemoveTeamMember
}

// RequestStatus представляет статус заявки
type RequestStatus string

// Возможные статусы заявки
const (
	StatusPending  RequestStatus = "pending"  // Ожидает решения ревьювера
	StatusApproved RequestStatus = "approved" // Одобрена (терминальный)
	StatusRejected RequestStatus = "rejected" // Отклонена (терминальный)
)

// ParseRequestStatus разбирает строку в RequestStatus
func ParseRequestStatus(s string) (RequestStatus, error) {
	switch RequestStatus(s) {
	case StatusPending, StatusApproved, StatusRejected:
		return RequestStatus(s), nil
	default:
		return "", fmt.Errorf("%w: unknown status %q", ErrValidation, s)
	}
}

// IsTerminal возвращает true для статусов, из которых нет переходов
func (s RequestStatus) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// Request представляет заявку на действие над командой
type Request struct {
	ID             uuid.UUID     `json:"id"`
	RequestType    RequestType   `json:"request_type"`
	TeamID         uuid.UUID     `json:"team_id"`
	CompetitionID  *uuid.UUID    `json:"competition_id,omitempty"`
	UserID         *string       `json:"user_id,omitempty"`
	CampusCode     string        `json:"campus_code"`
	Reason         *string       `json:"reason,omitempty"`
	ReasonRejected *string       `json:"reason_rejected,omitempty"`
	Status         RequestStatus `json:"status"`
	CreatedAt      time.Time     `json:"created_at"`
}

// IsPending возвращает true если по заявке еще не принято решение
func (r *Request) IsPending() bool {
	return r.Status == StatusPending
}

// DedupKey возвращает ключ, по которому ищется уже существующая pending-заявка
func (r *Request) DedupKey() DedupKey {
	key := DedupKey{
		TeamID:      r.TeamID,
		CampusCode:  r.CampusCode,
		RequestType: r.RequestType,
	}
	if r.RequestType.DedupByUser() && r.UserID != nil {
		key.UserID = *r.UserID
	}
	return key
}

// Clone возвращает копию заявки (используется для снимков до/после в аудите)
func (r *Request) Clone() *Request {
	if r == nil {
		return nil
	}
	c := *r
	if r.CompetitionID != nil {
		id := *r.CompetitionID
		c.CompetitionID = &id
	}
	c.UserID = cloneString(r.UserID)
	c.Reason = cloneString(r.Reason)
	c.ReasonRejected = cloneString(r.ReasonRejected)
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// DedupKey идентифицирует "одну и ту же" логическую заявку
type DedupKey struct {
	TeamID      uuid.UUID
	CampusCode  string
	RequestType RequestType
	UserID      string // Заполняется только для remove_team_member
}

// RequestFilter описывает фильтры списка заявок
type RequestFilter struct {
	CampusCode  string
	Status      *RequestStatus
	RequestType *RequestType
}

// ReviewDecision описывает решение ревьювера по заявке
type ReviewDecision struct {
	RequestID      uuid.UUID
	CampusCode     string
	Status         RequestStatus
	ReasonRejected *string
	ReviewerID     string
}

// RequestCount количество заявок с заданными типом и статусом
type RequestCount struct {
	RequestType RequestType
	Status      RequestStatus
	Count       int
}
