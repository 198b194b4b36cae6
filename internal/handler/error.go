package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"

	"github.com/aidar/team-requests-service/internal/domain"
)

// ErrorResponse представляет ответ с ошибкой
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail содержит код и описание ошибки
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PublishFailedResponse возвращается когда переход сохранен, но команда не доставлена
type PublishFailedResponse struct {
	Error   ErrorDetail     `json:"error"`
	Request *domain.Request `json:"request"`
}

// RespondWithError отправляет ответ с ошибкой
func RespondWithError(w http.ResponseWriter, r *http.Request, statusCode int, code, message string) {
	render.Status(r, statusCode)
	render.JSON(w, r, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// HandleError преобразует доменные ошибки в HTTP ответы
func HandleError(w http.ResponseWriter, r *http.Request, err error) {
	code := domain.MapErrorToCode(err)

	switch code {
	case domain.CodeValidation:
		RespondWithError(w, r, http.StatusBadRequest, string(code), err.Error())
	case domain.CodeNotFound:
		message := "request not found"
		if errors.Is(err, domain.ErrCampusNotFound) {
			message = "campus not found"
		}
		RespondWithError(w, r, http.StatusNotFound, string(code), message)
	case domain.CodeForbidden:
		RespondWithError(w, r, http.StatusForbidden, string(code), "reviewer role required")
	case domain.CodeConflict:
		RespondWithError(w, r, http.StatusConflict, string(code), conflictMessage(err))
	case domain.CodePublishFailed:
		RespondWithError(w, r, http.StatusBadGateway, string(code), err.Error())
	case domain.CodeUnauthorized:
		RespondWithError(w, r, http.StatusUnauthorized, string(code), "unauthorized")
	default:
		RespondWithError(w, r, http.StatusInternalServerError, string(domain.CodeInternal), "internal server error")
	}
}

func conflictMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrRequestAlreadyReviewed):
		return domain.ErrRequestAlreadyReviewed.Error()
	case errors.Is(err, domain.ErrReasonRequiresRejection):
		return domain.ErrReasonRequiresRejection.Error()
	case errors.Is(err, domain.ErrCampusExists):
		return domain.ErrCampusExists.Error()
	default:
		return "conflict"
	}
}
