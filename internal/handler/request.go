package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/aidar/team-requests-service/internal/domain"
	"github.com/aidar/team-requests-service/internal/middleware"
	"github.com/aidar/team-requests-service/internal/service"
)

// RequestHandler обрабатывает эндпоинты заявок кампуса
type RequestHandler struct {
	requestService RequestService
	reviewService  ReviewService
}

// NewRequestHandler создает новый RequestHandler
func NewRequestHandler(requestService RequestService, reviewService ReviewService) *RequestHandler {
	return &RequestHandler{
		requestService: requestService,
		reviewService:  reviewService,
	}
}

// ListResponse представляет список заявок
type ListResponse struct {
	Requests []*domain.Request `json:"requests"`
}

// ReviewRequest представляет тело запроса на рассмотрение
type ReviewRequest struct {
	Status         string  `json:"status"`
	ReasonRejected *string `json:"reason_rejected,omitempty"`
}

// ReviewResponse представляет ответ на рассмотрение
type ReviewResponse struct {
	Message string          `json:"message"`
	Request *domain.Request `json:"request"`
}

// List обрабатывает GET /api/v1/campus/{campus_code}/requests?status=...&request_type=...
func (h *RequestHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := domain.RequestFilter{CampusCode: chi.URLParam(r, "campus_code")}

	if raw := r.URL.Query().Get("status"); raw != "" {
		status, err := domain.ParseRequestStatus(raw)
		if err != nil {
			HandleError(w, r, err)
			return
		}
		filter.Status = &status
	}

	if raw := r.URL.Query().Get("request_type"); raw != "" {
		requestType, err := domain.ParseRequestType(raw)
		if err != nil {
			HandleError(w, r, err)
			return
		}
		filter.RequestType = &requestType
	}

	identity := middleware.GetIdentityFromContext(r.Context())

	requests, err := h.requestService.List(r.Context(), identity, filter)
	if err != nil {
		HandleError(w, r, err)
		return
	}

	RespondWithJSON(w, r, http.StatusOK, ListResponse{Requests: requests})
}

// Get обрабатывает GET /api/v1/campus/{campus_code}/requests/{request_id}
func (h *RequestHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseRequestID(w, r)
	if !ok {
		return
	}

	identity := middleware.GetIdentityFromContext(r.Context())

	req, err := h.requestService.Get(r.Context(), identity, chi.URLParam(r, "campus_code"), id)
	if err != nil {
		HandleError(w, r, err)
		return
	}

	RespondWithJSON(w, r, http.StatusOK, req)
}

// Create обрабатывает POST /api/v1/campus/{campus_code}/requests
func (h *RequestHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input service.CreateRequestInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		RespondWithError(w, r, http.StatusBadRequest, string(domain.CodeValidation), "invalid request body")
		return
	}

	identity := middleware.GetIdentityFromContext(r.Context())

	req, created, err := h.requestService.Create(r.Context(), identity, chi.URLParam(r, "campus_code"), input)
	if err != nil {
		HandleError(w, r, err)
		return
	}

	// Повторная заявка возвращает уже существующую pending-заявку
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	RespondWithJSON(w, r, status, req)
}

// Review обрабатывает PUT /api/v1/campus/{campus_code}/requests/{request_id}
func (h *RequestHandler) Review(w http.ResponseWriter, r *http.Request) {
	id, ok := parseRequestID(w, r)
	if !ok {
		return
	}

	var body ReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		RespondWithError(w, r, http.StatusBadRequest, string(domain.CodeValidation), "invalid request body")
		return
	}

	identity := middleware.GetIdentityFromContext(r.Context())

	req, err := h.reviewService.Review(r.Context(), identity, chi.URLParam(r, "campus_code"), id, service.ReviewInput{
		Status:         domain.RequestStatus(body.Status),
		ReasonRejected: body.ReasonRejected,
	})
	if err != nil {
		// Переход уже сохранен: возвращаем заявку вместе с ошибкой доставки
		if errors.Is(err, domain.ErrPublish) && req != nil {
			RespondWithJSON(w, r, http.StatusBadGateway, PublishFailedResponse{
				Error: ErrorDetail{
					Code:    string(domain.CodePublishFailed),
					Message: err.Error(),
				},
				Request: req,
			})
			return
		}
		HandleError(w, r, err)
		return
	}

	RespondWithJSON(w, r, http.StatusAccepted, ReviewResponse{
		Message: reviewMessage(req),
		Request: req,
	})
}

func reviewMessage(req *domain.Request) string {
	var subject string
	switch req.RequestType {
	case domain.RequestTypeApproveTeam:
		subject = "team creation request"
	case domain.RequestTypeDeleteTeam:
		subject = "team removal request"
	case domain.RequestTypeAddTeamMember:
		subject = "team member addition request"
	case domain.RequestTypeRemoveTeamMember:
		subject = "team member removal request"
	default:
		subject = "request"
	}
	return subject + " " + string(req.Status)
}

func parseRequestID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "request_id"))
	if err != nil {
		RespondWithError(w, r, http.StatusBadRequest, string(domain.CodeValidation), "request_id must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}
