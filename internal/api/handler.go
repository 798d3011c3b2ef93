package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"example.com/backstage/services/yard/internal/apperr"
	"example.com/backstage/services/yard/internal/metrics"
	"example.com/backstage/services/yard/internal/model"
	"example.com/backstage/services/yard/internal/service"
)

// Handler defines the API handler
type Handler struct {
	journeys service.JourneyService
	checks   []namedCheck
}

// NewHandler creates a new API handler
func NewHandler(journeys service.JourneyService, opts ...HandlerOption) *Handler {
	h := &Handler{
		journeys: journeys,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes registers API routes
func (h *Handler) RegisterRoutes(r *mux.Router) {
	api := r.PathPrefix("/api/v1").Subrouter()

	// Journey routes
	api.HandleFunc("/journeys", h.RegisterJourney).Methods(http.MethodPost)
	api.HandleFunc("/journeys", h.ListJourneys).Methods(http.MethodGet)
	api.HandleFunc("/journeys/{id}", h.GetJourney).Methods(http.MethodGet)
	api.HandleFunc("/journeys/{id}/tat", h.GetTAT).Methods(http.MethodGet)

	// Lifecycle transitions
	api.HandleFunc("/journeys/{id}/gate", h.transition(metrics.TransitionGate, func(r *http.Request, id, op string) (*model.TruckJourney, error) {
		return h.journeys.AdmitAtGate(r.Context(), id, op)
	})).Methods(http.MethodPost)
	api.HandleFunc("/journeys/{id}/inside", h.AdmitInside).Methods(http.MethodPost)
	api.HandleFunc("/journeys/{id}/complete", h.transition(metrics.TransitionComplete, func(r *http.Request, id, op string) (*model.TruckJourney, error) {
		return h.journeys.CompleteMilestone(r.Context(), id, op)
	})).Methods(http.MethodPost)
	api.HandleFunc("/journeys/{id}/exit", h.transition(metrics.TransitionExit, func(r *http.Request, id, op string) (*model.TruckJourney, error) {
		return h.journeys.ExitCheckpoint(r.Context(), id, op)
	})).Methods(http.MethodPost)

	// Weighbridge
	api.HandleFunc("/journeys/{id}/weights", h.AppendReading).Methods(http.MethodPost)
	api.HandleFunc("/journeys/{id}/weights/complete", h.transition(metrics.TransitionWeightComplete, func(r *http.Request, id, op string) (*model.TruckJourney, error) {
		return h.journeys.MarkProcessingComplete(r.Context(), id, op)
	})).Methods(http.MethodPost)
	api.HandleFunc("/journeys/{id}/invoice", h.SetInvoice).Methods(http.MethodPut)
	api.HandleFunc("/journeys/{id}/approval", h.ResolveApproval).Methods(http.MethodPost)

	// Transshipment
	api.HandleFunc("/journeys/{id}/replace", h.ReplaceTruck).Methods(http.MethodPost)

	// Reports
	api.HandleFunc("/reports/tat", h.SearchTAT).Methods(http.MethodGet)

	// Metrics and health endpoints
	r.HandleFunc("/metrics", h.Metrics).Methods(http.MethodGet)
	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)
}

// RegisterJourney registers a truck arrival
func (h *Handler) RegisterJourney(w http.ResponseWriter, r *http.Request) {
	operator, ok := requireOperator(w, r)
	if !ok {
		return
	}

	var req service.RegisterRequest
	if !decodeBody(w, r, &req) {
		return
	}

	journey, err := h.journeys.Register(r.Context(), &req, operator)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, journey)
}

// GetJourney returns a journey by id
func (h *Handler) GetJourney(w http.ResponseWriter, r *http.Request) {
	journey, err := h.journeys.GetJourney(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, journey)
}

// ListJourneys lists journeys by status or by next milestone
func (h *Handler) ListJourneys(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	limit, offset, ok := paging(w, r)
	if !ok {
		return
	}

	status := query.Get("status")
	milestone := query.Get("milestone")
	if status != "" && milestone != "" {
		WriteError(w, NewValidationError("status and milestone filters are mutually exclusive"))
		metrics.GetMetricsCollector().RecordError(metrics.ErrorTypeValidation)
		return
	}

	var (
		journeys []*model.TruckJourney
		err      error
	)
	if milestone != "" {
		journeys, err = h.journeys.ListByMilestone(r.Context(), milestone, limit, offset)
	} else {
		journeys, err = h.journeys.ListByStatus(r.Context(), status, limit, offset)
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if journeys == nil {
		journeys = []*model.TruckJourney{}
	}
	writeJSONResponse(w, http.StatusOK, journeys)
}

// GetTAT returns the turn-around time report for a journey
func (h *Handler) GetTAT(w http.ResponseWriter, r *http.Request) {
	report, err := h.journeys.GetTAT(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, report)
}

// AdmitInside admits a truck into the yard
func (h *Handler) AdmitInside(w http.ResponseWriter, r *http.Request) {
	operator, ok := requireOperator(w, r)
	if !ok {
		return
	}

	var req service.AdmitInsideRequest
	if !decodeBody(w, r, &req) {
		return
	}

	journey, err := h.journeys.AdmitInside(r.Context(), mux.Vars(r)["id"], &req, operator)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, journey)
}

// AppendReading records a weighbridge reading
func (h *Handler) AppendReading(w http.ResponseWriter, r *http.Request) {
	operator, ok := requireOperator(w, r)
	if !ok {
		return
	}

	var req service.WeightReadingRequest
	if !decodeBody(w, r, &req) {
		return
	}

	journey, err := h.journeys.AppendReading(r.Context(), mux.Vars(r)["id"], &req, operator)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, journey)
}

// SetInvoice sets the invoice weight and reconciles it against the readings
func (h *Handler) SetInvoice(w http.ResponseWriter, r *http.Request) {
	operator, ok := requireOperator(w, r)
	if !ok {
		return
	}

	var req service.InvoiceRequest
	if !decodeBody(w, r, &req) {
		return
	}

	journey, err := h.journeys.SetInvoice(r.Context(), mux.Vars(r)["id"], &req, operator)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, journey)
}

// ResolveApproval approves or rejects a weight discrepancy
func (h *Handler) ResolveApproval(w http.ResponseWriter, r *http.Request) {
	operator, ok := requireOperator(w, r)
	if !ok {
		return
	}

	var req service.ApprovalRequest
	if !decodeBody(w, r, &req) {
		return
	}

	journey, err := h.journeys.ResolveApproval(r.Context(), mux.Vars(r)["id"], &req, operator)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, journey)
}

// ReplaceTruck substitutes the truck on a journey
func (h *Handler) ReplaceTruck(w http.ResponseWriter, r *http.Request) {
	operator, ok := requireOperator(w, r)
	if !ok {
		return
	}

	var req service.ReplaceTruckRequest
	if !decodeBody(w, r, &req) {
		return
	}

	journey, err := h.journeys.ReplaceTruck(r.Context(), mux.Vars(r)["id"], &req, operator)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, journey)
}

// SearchTAT lists journeys whose TAT severity is at least the requested level
func (h *Handler) SearchTAT(w http.ResponseWriter, r *http.Request) {
	limit, _, ok := paging(w, r)
	if !ok {
		return
	}

	docs, err := h.journeys.SearchTAT(r.Context(), r.URL.Query().Get("severity"), limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"count":    len(docs),
		"journeys": docs,
	})
}

// transition wraps a body-less state change
func (h *Handler) transition(name string, call func(r *http.Request, id, operator string) (*model.TruckJourney, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		operator, ok := requireOperator(w, r)
		if !ok {
			return
		}

		journey, err := call(r, mux.Vars(r)["id"], operator)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"transition": name,
				"journey_id": mux.Vars(r)["id"],
				"request_id": RequestID(r.Context()),
			}).WithError(err).Debug("Transition rejected")
			writeServiceError(w, err)
			return
		}
		writeJSONResponse(w, http.StatusOK, journey)
	}
}

func requireOperator(w http.ResponseWriter, r *http.Request) (string, bool) {
	operator := strings.TrimSpace(r.Header.Get(OperatorHeader))
	if operator == "" {
		WriteError(w, ErrMissingOperator)
		metrics.GetMetricsCollector().RecordError(metrics.ErrorTypeValidation)
		return "", false
	}
	return operator, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, into interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		WriteError(w, NewValidationError("Invalid request body"))
		metrics.GetMetricsCollector().RecordError(metrics.ErrorTypeValidation)
		return false
	}
	return true
}

func paging(w http.ResponseWriter, r *http.Request) (limit, offset int, ok bool) {
	query := r.URL.Query()
	for name, dst := range map[string]*int{"limit": &limit, "offset": &offset} {
		raw := query.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			WriteError(w, NewValidationError(name+" must be a non-negative integer"))
			metrics.GetMetricsCollector().RecordError(metrics.ErrorTypeValidation)
			return 0, 0, false
		}
		*dst = n
	}
	return limit, offset, true
}

func writeServiceError(w http.ResponseWriter, err error) {
	if apperr.Is(err, apperr.Validation) {
		metrics.GetMetricsCollector().RecordError(metrics.ErrorTypeValidation)
	}
	WriteError(w, err)
}

// writeJSONResponse writes a JSON response
func writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		logrus.WithError(err).Error("Failed to encode JSON response")
	}
}
