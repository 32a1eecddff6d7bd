package taxeshandler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"paycore/internal/domain/tax"
	"paycore/internal/transport/http/api"
	"paycore/internal/transport/http/middleware"
)

type Handler struct {
	engine *tax.Engine
}

func NewHandler(engine *tax.Engine) *Handler {
	return &Handler{engine: engine}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/taxes", func(r chi.Router) {
		r.Get("/states", h.handleListStates)
		r.Post("/estimate", h.handleEstimate)
	})
}

func (h *Handler) handleListStates(w http.ResponseWriter, r *http.Request) {
	api.Success(w, map[string]any{
		"year":   h.engine.Year(),
		"states": h.engine.SupportedStates(),
	}, middleware.GetRequestID(r.Context()))
}

type estimatePayload struct {
	Wage  tax.WageInput   `json:"wage"`
	State string          `json:"state"`
	Local *tax.LocalInput `json:"local,omitempty"`
}

// handleEstimate runs a standalone withholding calculation with no employee
// or period on file. Useful for quoting take-home pay before onboarding.
func (h *Handler) handleEstimate(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var payload estimatePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", requestID)
		return
	}

	federal, err := h.engine.Federal(payload.Wage)
	if err != nil {
		api.Fail(w, http.StatusUnprocessableEntity, "calculation_failed", err.Error(), requestID)
		return
	}

	response := map[string]any{"federal": federal}

	if payload.State != "" {
		state, err := h.engine.State(payload.State, payload.Wage)
		if err != nil {
			api.Fail(w, http.StatusUnprocessableEntity, "calculation_failed", err.Error(), requestID)
			return
		}
		response["state"] = state
	}

	if payload.Local != nil {
		if payload.Local.Wages.GrossPay.IsZero() {
			payload.Local.Wages = payload.Wage
		}
		local, err := h.engine.Local(*payload.Local)
		if err != nil {
			api.Fail(w, http.StatusUnprocessableEntity, "calculation_failed", err.Error(), requestID)
			return
		}
		response["local"] = local
	}

	api.Success(w, response, requestID)
}
