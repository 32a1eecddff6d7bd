package payrunhandler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"paycore/internal/domain/payrun"
	"paycore/internal/domain/tax"
	"paycore/internal/platform/metrics"
	"paycore/internal/transport/http/api"
	"paycore/internal/transport/http/middleware"
	"paycore/internal/transport/http/shared"
)

// Service is the slice of the payroll run service the handlers need.
type Service interface {
	RunPayroll(ctx context.Context, companyID, periodID string, inputs []payrun.EmployeeInput, idempotencyKey, holder string) (payrun.RunResult, error)
	CalculatePreview(ctx context.Context, companyID, periodID string, inputs []payrun.EmployeeInput) ([]payrun.PreviewResult, error)
	LockStatus(ctx context.Context, companyID, periodID string) (string, error)
	TransitionPeriod(ctx context.Context, companyID, periodID, to string) error
	CreatePeriod(ctx context.Context, companyID string, start, end, payDate time.Time) (payrun.PayPeriod, error)
	ListPeriods(ctx context.Context, companyID string, from, to time.Time, limit, offset int) ([]payrun.PayPeriod, error)
}

type Handler struct {
	svc     Service
	metrics *metrics.Collector
}

func NewHandler(svc Service, collector *metrics.Collector) *Handler {
	return &Handler{svc: svc, metrics: collector}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/payroll", func(r chi.Router) {
		r.Use(middleware.RequireAuth)
		r.Get("/periods", h.handleListPeriods)
		r.Post("/periods", h.handleCreatePeriod)
		r.Post("/periods/{periodID}/run", h.handleRun)
		r.Post("/periods/{periodID}/preview", h.handlePreview)
		r.Get("/periods/{periodID}/lock", h.handleLockStatus)
		r.Patch("/periods/{periodID}/status", h.handleTransition)
	})
}

type periodPayload struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
	PayDate   string `json:"payDate"`
}

func (h *Handler) handleCreatePeriod(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	requestID := middleware.GetRequestID(r.Context())

	var payload periodPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", requestID)
		return
	}

	validator := shared.NewValidator()
	validator.Required("startDate", payload.StartDate, "start date is required")
	validator.Required("endDate", payload.EndDate, "end date is required")
	validator.Required("payDate", payload.PayDate, "pay date is required")
	if validator.Reject(w, requestID) {
		return
	}
	start, startOK := validator.Date("startDate", payload.StartDate)
	end, endOK := validator.Date("endDate", payload.EndDate)
	payDate, payOK := validator.Date("payDate", payload.PayDate)
	if startOK && endOK {
		validator.DateOrder("startDate", start, "endDate", end)
	}
	if endOK && payOK {
		validator.DateOrder("endDate", end, "payDate", payDate)
	}
	if validator.Reject(w, requestID) {
		return
	}

	period, err := h.svc.CreatePeriod(r.Context(), user.CompanyID, start, end, payDate)
	if err != nil {
		h.writeRunError(w, r, err)
		return
	}
	api.Created(w, period, requestID)
}

func (h *Handler) handleListPeriods(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	requestID := middleware.GetRequestID(r.Context())

	validator := shared.NewValidator()
	var from, to time.Time
	if raw := r.URL.Query().Get("from"); raw != "" {
		from, _ = validator.Date("from", raw)
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		to, _ = validator.Date("to", raw)
	}
	validator.DateOrder("from", from, "to", to)
	if validator.Reject(w, requestID) {
		return
	}

	page := shared.ParsePagination(r, 20, 100)
	periods, err := h.svc.ListPeriods(r.Context(), user.CompanyID, from, to, page.Limit, page.Offset)
	if err != nil {
		h.writeRunError(w, r, err)
		return
	}
	api.Success(w, map[string]any{"periods": periods}, requestID)
}

type runPayload struct {
	Inputs         []payrun.EmployeeInput `json:"inputs"`
	IdempotencyKey string                 `json:"idempotencyKey"`
}

func (h *Handler) handleRun(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	periodID := chi.URLParam(r, "periodID")

	var payload runPayload
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
			return
		}
	}
	idempotencyKey := strings.TrimSpace(payload.IdempotencyKey)
	if headerKey := strings.TrimSpace(r.Header.Get("Idempotency-Key")); headerKey != "" {
		idempotencyKey = headerKey
	}

	result, err := h.svc.RunPayroll(r.Context(), user.CompanyID, periodID, payload.Inputs, idempotencyKey, user.UserID)
	if h.metrics != nil {
		h.metrics.RecordRun(err != nil, result.Replayed)
	}
	if err != nil {
		h.writeRunError(w, r, err)
		return
	}
	api.Success(w, result, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handlePreview(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	periodID := chi.URLParam(r, "periodID")

	var payload runPayload
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", middleware.GetRequestID(r.Context()))
			return
		}
	}

	previews, err := h.svc.CalculatePreview(r.Context(), user.CompanyID, periodID, payload.Inputs)
	if err != nil {
		h.writeRunError(w, r, err)
		return
	}
	api.Success(w, map[string]any{"employees": previews}, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleLockStatus(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	periodID := chi.URLParam(r, "periodID")

	status, err := h.svc.LockStatus(r.Context(), user.CompanyID, periodID)
	if err != nil {
		h.writeRunError(w, r, err)
		return
	}
	api.Success(w, map[string]string{"status": status}, middleware.GetRequestID(r.Context()))
}

type transitionPayload struct {
	Status string `json:"status"`
}

// periodStatuses is the full set of pay period statuses a client may name.
// Whether the move is legal from the period's current status is the
// service's call.
var periodStatuses = []string{
	payrun.PeriodStatusDraft,
	payrun.PeriodStatusPendingApproval,
	payrun.PeriodStatusApproved,
	payrun.PeriodStatusProcessing,
	payrun.PeriodStatusProcessed,
	payrun.PeriodStatusPaid,
	payrun.PeriodStatusRejected,
	payrun.PeriodStatusVoid,
}

func (h *Handler) handleTransition(w http.ResponseWriter, r *http.Request) {
	user, _ := middleware.GetUser(r.Context())
	periodID := chi.URLParam(r, "periodID")

	requestID := middleware.GetRequestID(r.Context())

	var payload transitionPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", requestID)
		return
	}

	validator := shared.NewValidator()
	validator.Required("status", payload.Status, "status is required")
	validator.Enum("status", payload.Status, periodStatuses, "is not a recognized period status")
	if validator.Reject(w, requestID) {
		return
	}

	status := strings.ToUpper(strings.TrimSpace(payload.Status))
	if err := h.svc.TransitionPeriod(r.Context(), user.CompanyID, periodID, status); err != nil {
		h.writeRunError(w, r, err)
		return
	}
	api.Success(w, map[string]string{"status": status}, requestID)
}

// writeRunError maps domain errors onto the response envelope. Lock conflicts
// and already-processed periods are distinct statuses so clients can retry
// the former and treat the latter as settled.
func (h *Handler) writeRunError(w http.ResponseWriter, r *http.Request, err error) {
	requestID := middleware.GetRequestID(r.Context())

	var validation *payrun.ValidationError
	if errors.As(err, &validation) {
		api.FailWithDetails(w, http.StatusBadRequest, "validation_error", validation.Error(),
			map[string]any{"employees": validation.Issues}, requestID)
		return
	}
	var unsupported *tax.UnsupportedStateError
	if errors.As(err, &unsupported) {
		api.FailWithDetails(w, http.StatusUnprocessableEntity, "unsupported_state", unsupported.Error(),
			map[string]any{"state": unsupported.Code, "supportedStates": unsupported.Supported}, requestID)
		return
	}
	var missing *tax.MissingFieldError
	if errors.As(err, &missing) {
		api.FailWithDetails(w, http.StatusUnprocessableEntity, "missing_field", missing.Error(),
			map[string]any{"field": missing.Field}, requestID)
		return
	}

	switch {
	case errors.Is(err, payrun.ErrLockHeld):
		api.Fail(w, http.StatusLocked, "run_locked", err.Error(), requestID)
	case errors.Is(err, payrun.ErrPeriodProcessed):
		api.Fail(w, http.StatusConflict, "already_processed", err.Error(), requestID)
	case errors.Is(err, payrun.ErrInvalidStatus), errors.Is(err, payrun.ErrInvalidTransition):
		api.Fail(w, http.StatusConflict, "invalid_state", err.Error(), requestID)
	case errors.Is(err, payrun.ErrPeriodNotFound), errors.Is(err, payrun.ErrCompanyNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", err.Error(), requestID)
	case errors.Is(err, payrun.ErrCompanyMismatch):
		api.Fail(w, http.StatusForbidden, "forbidden", err.Error(), requestID)
	case errors.Is(err, payrun.ErrNoEmployees):
		api.Fail(w, http.StatusUnprocessableEntity, "no_employees", err.Error(), requestID)
	default:
		log.Printf("payroll run failed: %v", err)
		api.Fail(w, http.StatusInternalServerError, "run_failed", "payroll run failed", requestID)
	}
}
