package payrunhandler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paycore/internal/domain/payrun"
	"paycore/internal/domain/tax"
	"paycore/internal/platform/auth"
	"paycore/internal/platform/metrics"
	"paycore/internal/transport/http/api"
	"paycore/internal/transport/http/middleware"
)

type fakeService struct {
	runResult  payrun.RunResult
	runErr     error
	previews   []payrun.PreviewResult
	previewErr error
	lockState  string
	lockErr    error
	transErr   error
	createErr  error
	periods    []payrun.PayPeriod
	listErr    error

	lastIdempotencyKey string
	lastCompanyID      string
	lastPeriodID       string
	lastTransition     string
	lastLimit          int
	lastOffset         int
}

func (f *fakeService) RunPayroll(ctx context.Context, companyID, periodID string, inputs []payrun.EmployeeInput, idempotencyKey, holder string) (payrun.RunResult, error) {
	f.lastCompanyID = companyID
	f.lastPeriodID = periodID
	f.lastIdempotencyKey = idempotencyKey
	return f.runResult, f.runErr
}

func (f *fakeService) CalculatePreview(ctx context.Context, companyID, periodID string, inputs []payrun.EmployeeInput) ([]payrun.PreviewResult, error) {
	return f.previews, f.previewErr
}

func (f *fakeService) LockStatus(ctx context.Context, companyID, periodID string) (string, error) {
	return f.lockState, f.lockErr
}

func (f *fakeService) TransitionPeriod(ctx context.Context, companyID, periodID, to string) error {
	f.lastTransition = to
	return f.transErr
}

func (f *fakeService) CreatePeriod(ctx context.Context, companyID string, start, end, payDate time.Time) (payrun.PayPeriod, error) {
	f.lastCompanyID = companyID
	return payrun.PayPeriod{ID: "p-new", CompanyID: companyID, StartDate: start, EndDate: end, PayDate: payDate, Status: payrun.PeriodStatusDraft}, f.createErr
}

func (f *fakeService) ListPeriods(ctx context.Context, companyID string, from, to time.Time, limit, offset int) ([]payrun.PayPeriod, error) {
	f.lastLimit = limit
	f.lastOffset = offset
	return f.periods, f.listErr
}

func newTestRouter(svc Service) chi.Router {
	r := chi.NewRouter()
	handler := NewHandler(svc, metrics.New())
	r.Route("/api/v1", func(r chi.Router) {
		handler.RegisterRoutes(r)
	})
	return r
}

func doRequest(t *testing.T, router chi.Router, method, path string, body any, authenticated bool) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if authenticated {
		ctx := middleware.WithUser(req.Context(), auth.UserContext{
			UserID:    "user-1",
			CompanyID: "co-1",
			Role:      "admin",
		})
		req = req.WithContext(ctx)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) api.Envelope {
	t.Helper()
	var envelope api.Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope
}

func TestRunRequiresAuth(t *testing.T) {
	router := newTestRouter(&fakeService{})

	rec := doRequest(t, router, http.MethodPost, "/api/v1/payroll/periods/p-1/run", nil, false)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	envelope := decodeEnvelope(t, rec)
	assert.False(t, envelope.Success)
	assert.Equal(t, "unauthorized", envelope.Error.Code)
}

func TestRunSuccess(t *testing.T) {
	svc := &fakeService{
		runResult: payrun.RunResult{RunID: "run-1", PeriodID: "p-1"},
	}
	router := newTestRouter(svc)

	body := map[string]any{"idempotencyKey": "key-abc"}
	rec := doRequest(t, router, http.MethodPost, "/api/v1/payroll/periods/p-1/run", body, true)

	require.Equal(t, http.StatusOK, rec.Code)
	envelope := decodeEnvelope(t, rec)
	assert.True(t, envelope.Success)
	assert.Equal(t, "co-1", svc.lastCompanyID)
	assert.Equal(t, "p-1", svc.lastPeriodID)
	assert.Equal(t, "key-abc", svc.lastIdempotencyKey)
}

func TestRunIdempotencyHeaderWins(t *testing.T) {
	svc := &fakeService{runResult: payrun.RunResult{RunID: "run-1"}}
	router := newTestRouter(svc)

	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(map[string]any{"idempotencyKey": "body-key"}))
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payroll/periods/p-1/run", &buf)
	req.Header.Set("Idempotency-Key", "header-key")
	req = req.WithContext(middleware.WithUser(req.Context(), auth.UserContext{UserID: "u", CompanyID: "co-1"}))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "header-key", svc.lastIdempotencyKey)
}

func TestRunErrorMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"lock held", payrun.ErrLockHeld, http.StatusLocked, "run_locked"},
		{"already processed", payrun.ErrPeriodProcessed, http.StatusConflict, "already_processed"},
		{"invalid status", fmt.Errorf("%w: DRAFT", payrun.ErrInvalidStatus), http.StatusConflict, "invalid_state"},
		{"period missing", payrun.ErrPeriodNotFound, http.StatusNotFound, "not_found"},
		{"company missing", payrun.ErrCompanyNotFound, http.StatusNotFound, "not_found"},
		{"wrong company", payrun.ErrCompanyMismatch, http.StatusForbidden, "forbidden"},
		{"no employees", payrun.ErrNoEmployees, http.StatusUnprocessableEntity, "no_employees"},
		{"unexpected", fmt.Errorf("connection reset"), http.StatusInternalServerError, "run_failed"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := newTestRouter(&fakeService{runErr: tc.err})

			rec := doRequest(t, router, http.MethodPost, "/api/v1/payroll/periods/p-1/run", nil, true)

			assert.Equal(t, tc.wantStatus, rec.Code)
			envelope := decodeEnvelope(t, rec)
			require.NotNil(t, envelope.Error)
			assert.Equal(t, tc.wantCode, envelope.Error.Code)
		})
	}
}

func TestRunValidationErrorIncludesIssues(t *testing.T) {
	router := newTestRouter(&fakeService{
		runErr: &payrun.ValidationError{Issues: []payrun.Issue{
			{EmployeeID: "emp-1", Field: "hoursWorked", Detail: "must not be negative"},
		}},
	})

	rec := doRequest(t, router, http.MethodPost, "/api/v1/payroll/periods/p-1/run", nil, true)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	envelope := decodeEnvelope(t, rec)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "validation_error", envelope.Error.Code)
	require.NotNil(t, envelope.Error.Details)
}

func TestRunUnsupportedState(t *testing.T) {
	router := newTestRouter(&fakeService{
		runErr: &tax.UnsupportedStateError{Code: "ZZ", Supported: []string{"CA", "NY"}},
	})

	rec := doRequest(t, router, http.MethodPost, "/api/v1/payroll/periods/p-1/run", nil, true)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	envelope := decodeEnvelope(t, rec)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "unsupported_state", envelope.Error.Code)
}

func TestRunRejectsMalformedBody(t *testing.T) {
	router := newTestRouter(&fakeService{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payroll/periods/p-1/run", bytes.NewBufferString("{not json"))
	req = req.WithContext(middleware.WithUser(req.Context(), auth.UserContext{UserID: "u", CompanyID: "co-1"}))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPreviewSuccess(t *testing.T) {
	router := newTestRouter(&fakeService{
		previews: []payrun.PreviewResult{{EmployeeID: "emp-1"}, {EmployeeID: "emp-2", Error: "unsupported state"}},
	})

	rec := doRequest(t, router, http.MethodPost, "/api/v1/payroll/periods/p-1/preview", nil, true)

	require.Equal(t, http.StatusOK, rec.Code)
	envelope := decodeEnvelope(t, rec)
	assert.True(t, envelope.Success)
}

func TestLockStatus(t *testing.T) {
	router := newTestRouter(&fakeService{lockState: payrun.LockStatusLocked})

	rec := doRequest(t, router, http.MethodGet, "/api/v1/payroll/periods/p-1/lock", nil, true)

	require.Equal(t, http.StatusOK, rec.Code)
	envelope := decodeEnvelope(t, rec)
	assert.True(t, envelope.Success)
}

func TestTransitionPeriod(t *testing.T) {
	svc := &fakeService{}
	router := newTestRouter(svc)

	body := map[string]string{"status": "approved"}
	rec := doRequest(t, router, http.MethodPatch, "/api/v1/payroll/periods/p-1/status", body, true)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "APPROVED", svc.lastTransition)
}

func TestTransitionInvalid(t *testing.T) {
	router := newTestRouter(&fakeService{
		transErr: fmt.Errorf("%w: PAID -> DRAFT", payrun.ErrInvalidTransition),
	})

	body := map[string]string{"status": "DRAFT"}
	rec := doRequest(t, router, http.MethodPatch, "/api/v1/payroll/periods/p-1/status", body, true)

	assert.Equal(t, http.StatusConflict, rec.Code)
	envelope := decodeEnvelope(t, rec)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "invalid_state", envelope.Error.Code)
}

func TestTransitionRejectsUnknownStatus(t *testing.T) {
	svc := &fakeService{}
	router := newTestRouter(svc)

	body := map[string]string{"status": "SHIPPED"}
	rec := doRequest(t, router, http.MethodPatch, "/api/v1/payroll/periods/p-1/status", body, true)

	// A status outside the lifecycle vocabulary is a malformed request, not
	// a state conflict, and never reaches the service.
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	envelope := decodeEnvelope(t, rec)
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "validation_error", envelope.Error.Code)
	assert.Empty(t, svc.lastTransition)
}

func TestCreatePeriod(t *testing.T) {
	svc := &fakeService{}
	router := newTestRouter(svc)

	body := map[string]string{
		"startDate": "2024-03-01",
		"endDate":   "2024-03-14",
		"payDate":   "2024-03-20",
	}
	rec := doRequest(t, router, http.MethodPost, "/api/v1/payroll/periods", body, true)

	require.Equal(t, http.StatusCreated, rec.Code)
	envelope := decodeEnvelope(t, rec)
	assert.True(t, envelope.Success)
	assert.Equal(t, "co-1", svc.lastCompanyID)
}

func TestCreatePeriodRejectsBadDates(t *testing.T) {
	cases := []struct {
		name string
		body map[string]string
	}{
		{"missing fields", map[string]string{"startDate": "2024-03-01"}},
		{"end before start", map[string]string{
			"startDate": "2024-03-14", "endDate": "2024-03-01", "payDate": "2024-03-20",
		}},
		{"pay before end", map[string]string{
			"startDate": "2024-03-01", "endDate": "2024-03-14", "payDate": "2024-03-10",
		}},
		{"unparseable", map[string]string{
			"startDate": "March 1", "endDate": "2024-03-14", "payDate": "2024-03-20",
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := newTestRouter(&fakeService{})

			rec := doRequest(t, router, http.MethodPost, "/api/v1/payroll/periods", tc.body, true)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			envelope := decodeEnvelope(t, rec)
			require.NotNil(t, envelope.Error)
			assert.Equal(t, "validation_error", envelope.Error.Code)
		})
	}
}

func TestListPeriods(t *testing.T) {
	svc := &fakeService{periods: []payrun.PayPeriod{{ID: "p-1"}, {ID: "p-2"}}}
	router := newTestRouter(svc)

	rec := doRequest(t, router, http.MethodGet, "/api/v1/payroll/periods?limit=5&offset=10", nil, true)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, svc.lastLimit)
	assert.Equal(t, 10, svc.lastOffset)
}

func TestListPeriodsRejectsInvertedRange(t *testing.T) {
	router := newTestRouter(&fakeService{})

	rec := doRequest(t, router, http.MethodGet, "/api/v1/payroll/periods?from=2024-06-01&to=2024-01-01", nil, true)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTransitionRequiresStatus(t *testing.T) {
	router := newTestRouter(&fakeService{})

	rec := doRequest(t, router, http.MethodPatch, "/api/v1/payroll/periods/p-1/status", map[string]string{}, true)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
