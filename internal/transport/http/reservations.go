package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/villanet/booking/internal/app"
	"github.com/villanet/booking/internal/domain"
)

// UserIDHeader carries the authenticated requester, set by the upstream gateway.
const UserIDHeader = "X-User-ID"

// ReservationService is the engine surface the HTTP boundary needs.
type ReservationService interface {
	CreateReservation(ctx context.Context, in app.CreateReservationInput) (domain.Reservation, error)
	CancelReservation(ctx context.Context, in app.CancelReservationInput) error
	ListForUser(ctx context.Context, userID int64, page domain.Page) (domain.PagedList[domain.Reservation], error)
	ListForOwner(ctx context.Context, propertyID, ownerID int64, page domain.Page) (domain.PagedList[domain.Reservation], error)
}

type reservationHandler struct {
	svc      ReservationService
	validate *validator.Validate
	log      logrus.FieldLogger
}

// NewRouter wires the reservation routes, /health and JSON 404/405 responses.
func NewRouter(svc ReservationService, logger logrus.FieldLogger, checks ...HealthCheck) *mux.Router {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	h := &reservationHandler{
		svc:      svc,
		validate: validator.New(),
		log:      logger.WithField("component", "http"),
	}

	r := mux.NewRouter()
	r.HandleFunc("/health", HandleHealth(checks...)).Methods(http.MethodGet)
	r.HandleFunc("/reservations", h.create).Methods(http.MethodPost)
	r.HandleFunc("/reservations/mine", h.listMine).Methods(http.MethodGet)
	r.HandleFunc("/reservations/{id}", h.cancel).Methods(http.MethodDelete)
	r.HandleFunc("/properties/{id}/reservations", h.listForProperty).Methods(http.MethodGet)
	r.NotFoundHandler = NotFoundHandler()
	r.MethodNotAllowedHandler = MethodNotAllowedHandler()
	return r
}

type createReservationRequest struct {
	PropertyID int64  `json:"property_id" validate:"required,gt=0"`
	StartDate  string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate    string `json:"end_date" validate:"required,datetime=2006-01-02"`
}

type reservationResponse struct {
	ID          int64       `json:"id"`
	PropertyID  int64       `json:"property_id"`
	UserID      int64       `json:"user_id"`
	StartDate   domain.Date `json:"start_date"`
	EndDate     domain.Date `json:"end_date"`
	TotalNights int         `json:"total_nights"`
	TotalPrice  string      `json:"total_price"`
	CreatedAt   time.Time   `json:"created_at"`
}

type reservationPageResponse struct {
	Items           []reservationResponse `json:"items"`
	Page            int                   `json:"page"`
	PageSize        int                   `json:"page_size"`
	TotalCount      int                   `json:"total_count"`
	HasNextPage     bool                  `json:"has_next_page"`
	HasPreviousPage bool                  `json:"has_previous_page"`
}

func (h *reservationHandler) create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requesterID(w, r)
	if !ok {
		return
	}

	var req createReservationRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, validationMessage(err))
		return
	}
	start, err := domain.ParseDate(req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "start_date must be YYYY-MM-DD")
		return
	}
	end, err := domain.ParseDate(req.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "end_date must be YYYY-MM-DD")
		return
	}

	res, err := h.svc.CreateReservation(r.Context(), app.CreateReservationInput{
		UserID:     userID,
		PropertyID: req.PropertyID,
		StartDate:  start,
		EndDate:    end,
	})
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}

	writeJSON(w, http.StatusCreated, toReservationResponse(res))
}

func (h *reservationHandler) cancel(w http.ResponseWriter, r *http.Request) {
	userID, ok := requesterID(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	err := h.svc.CancelReservation(r.Context(), app.CancelReservationInput{UserID: userID, ReservationID: id})
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *reservationHandler) listMine(w http.ResponseWriter, r *http.Request) {
	userID, ok := requesterID(w, r)
	if !ok {
		return
	}
	page, ok := pageParams(w, r)
	if !ok {
		return
	}

	list, err := h.svc.ListForUser(r.Context(), userID, page)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toPageResponse(list))
}

func (h *reservationHandler) listForProperty(w http.ResponseWriter, r *http.Request) {
	userID, ok := requesterID(w, r)
	if !ok {
		return
	}
	propertyID, ok := pathID(w, r)
	if !ok {
		return
	}
	page, ok := pageParams(w, r)
	if !ok {
		return
	}

	list, err := h.svc.ListForOwner(r.Context(), propertyID, userID, page)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toPageResponse(list))
}

func requesterID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := r.Header.Get(UserIDHeader)
	if raw == "" {
		writeError(w, http.StatusUnauthorized, codeMissingUser, UserIDHeader+" header is required")
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusUnauthorized, codeMissingUser, UserIDHeader+" header is invalid")
		return 0, false
	}
	return id, true
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, codeInvalidID, domain.ErrInvalidID.Error())
		return 0, false
	}
	return id, true
}

func pageParams(w http.ResponseWriter, r *http.Request) (domain.Page, bool) {
	var page domain.Page
	q := r.URL.Query()
	for _, p := range []struct {
		name string
		dst  *int
	}{{"page", &page.Number}, {"page_size", &page.Size}} {
		raw := q.Get(p.name)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			writeError(w, http.StatusBadRequest, codeInvalidPage, p.name+" must be a positive integer")
			return domain.Page{}, false
		}
		if p.name == "page" && v > domain.MaxPageNumber {
			writeError(w, http.StatusBadRequest, codeInvalidPage, "page is too large")
			return domain.Page{}, false
		}
		*p.dst = v
	}
	return page, true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid request"
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fieldName(fe) + " is required"
	case "datetime":
		return fieldName(fe) + " must be YYYY-MM-DD"
	default:
		return fieldName(fe) + " is invalid"
	}
}

func fieldName(fe validator.FieldError) string {
	switch fe.Field() {
	case "PropertyID":
		return "property_id"
	case "StartDate":
		return "start_date"
	case "EndDate":
		return "end_date"
	}
	return fe.Field()
}

func toReservationResponse(res domain.Reservation) reservationResponse {
	return reservationResponse{
		ID:          res.ID,
		PropertyID:  res.PropertyID,
		UserID:      res.UserID,
		StartDate:   res.StartDate,
		EndDate:     res.EndDate,
		TotalNights: res.TotalNights,
		TotalPrice:  res.TotalPrice.StringFixed(2),
		CreatedAt:   res.CreatedAt,
	}
}

func toPageResponse(list domain.PagedList[domain.Reservation]) reservationPageResponse {
	items := make([]reservationResponse, 0, len(list.Items))
	for _, res := range list.Items {
		items = append(items, toReservationResponse(res))
	}
	return reservationPageResponse{
		Items:           items,
		Page:            list.Page,
		PageSize:        list.PageSize,
		TotalCount:      list.TotalCount,
		HasNextPage:     list.HasNextPage(),
		HasPreviousPage: list.HasPreviousPage(),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
