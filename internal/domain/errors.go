package domain

import "errors"

// Доменные ошибки
var (
	// ErrValidation возвращается при некорректных или отсутствующих полях команды/запроса
	ErrValidation = errors.New("validation failed")

	// ErrRequestNotFound возвращается когда заявка не найдена или принадлежит другому кампусу
	ErrRequestNotFound = errors.New("request not found")

	// ErrCampusNotFound возвращается когда кампус не найден
	ErrCampusNotFound = errors.New("campus not found")

	// ErrCampusExists возвращается при повторном создании кампуса
	ErrCampusExists = errors.New("campus already exists")

	// ErrForbidden возвращается когда у пользователя нет роли ревьювера
	ErrForbidden = errors.New("forbidden")

	// ErrRequestAlreadyReviewed возвращается при попытке повторно рассмотреть заявку
	ErrRequestAlreadyReviewed = errors.New("request already reviewed")

	// ErrReasonRequiresRejection возвращается когда reason_rejected передан без статуса rejected
	ErrReasonRequiresRejection = errors.New("reason_rejected is only allowed with status rejected")

	// ErrInvalidReviewStatus возвращается когда желаемый статус не является решением
	ErrInvalidReviewStatus = errors.New("review status must be approved or rejected")

	// ErrPublish возвращается когда переход сохранен, но исходящая команда не отправлена
	ErrPublish = errors.New("downstream publish failed")

	// ErrUnauthorized возвращается при неудачной аутентификации
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidToken возвращается когда JWT токен невалиден
	ErrInvalidToken = errors.New("invalid token")
)

// ErrorCode представляет коды ошибок API
type ErrorCode string

// Коды ошибок API
const (
	CodeValidation    ErrorCode = "VALIDATION_ERROR" // Некорректный запрос
	CodeNotFound      ErrorCode = "NOT_FOUND"        // Ресурс не найден или вне области видимости
	CodeForbidden     ErrorCode = "FORBIDDEN"        // Нет роли ревьювера
	CodeConflict      ErrorCode = "CONFLICT"         // Недопустимый переход состояния
	CodePublishFailed ErrorCode = "PUBLISH_FAILED"   // Переход сохранен, команда не доставлена
	CodeUnauthorized  ErrorCode = "UNAUTHORIZED"     // Нет или невалиден токен
	CodeInternal      ErrorCode = "INTERNAL_ERROR"   // Непредвиденная ошибка
)

// MapErrorToCode преобразует доменные ошибки в коды ошибок API
func MapErrorToCode(err error) ErrorCode {
	switch {
	case errors.Is(err, ErrValidation), errors.Is(err, ErrInvalidReviewStatus):
		return CodeValidation
	case errors.Is(err, ErrRequestNotFound), errors.Is(err, ErrCampusNotFound):
		return CodeNotFound
	case errors.Is(err, ErrForbidden):
		return CodeForbidden
	case errors.Is(err, ErrRequestAlreadyReviewed), errors.Is(err, ErrReasonRequiresRejection),
		errors.Is(err, ErrCampusExists):
		return CodeConflict
	case errors.Is(err, ErrPublish):
		return CodePublishFailed
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrInvalidToken):
		return CodeUnauthorized
	default:
		return CodeInternal
	}
}

type permanentError struct {
	cause error
}

func (e permanentError) Error() string {
	if e.cause == nil {
		return "permanent error"
	}
	return e.cause.Error()
}

func (e permanentError) Unwrap() error {
	return e.cause
}

// Permanent помечает ошибку как неповторяемую: сообщение уходит в dead-letter без requeue
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{cause: err}
}

// IsPermanent сообщает, была ли ошибка помечена как неповторяемая
func IsPermanent(err error) bool {
	var target permanentError
	return errors.As(err, &target)
}
