package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"example.com/backstage/services/yard/internal/apperr"
	"example.com/backstage/services/yard/internal/cache"
	"example.com/backstage/services/yard/internal/elasticsearch"
	"example.com/backstage/services/yard/internal/lifecycle"
	"example.com/backstage/services/yard/internal/metrics"
	"example.com/backstage/services/yard/internal/model"
	"example.com/backstage/services/yard/internal/repository"
	"example.com/backstage/services/yard/internal/settings"
	"example.com/backstage/services/yard/internal/tat"
	"example.com/backstage/services/yard/internal/telemetry"
	"example.com/backstage/services/yard/internal/transship"
	"example.com/backstage/services/yard/internal/weight"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// EventPublisher sends journey events downstream
type EventPublisher interface {
	PublishJourneyEvent(ctx context.Context, event model.JourneyEvent) error
}

// Projector maintains the TAT search projection
type Projector interface {
	Index(ctx context.Context, doc elasticsearch.TATDocument) error
	SearchBySeverity(ctx context.Context, minimum tat.Severity, limit int) ([]elasticsearch.TATDocument, error)
}

// JourneyService defines the operations operators perform on truck journeys
type JourneyService interface {
	Register(ctx context.Context, req *RegisterRequest, operator string) (*model.TruckJourney, error)
	AdmitAtGate(ctx context.Context, id, operator string) (*model.TruckJourney, error)
	AdmitInside(ctx context.Context, id string, req *AdmitInsideRequest, operator string) (*model.TruckJourney, error)
	CompleteMilestone(ctx context.Context, id, operator string) (*model.TruckJourney, error)
	ExitCheckpoint(ctx context.Context, id, operator string) (*model.TruckJourney, error)

	AppendReading(ctx context.Context, id string, req *WeightReadingRequest, operator string) (*model.TruckJourney, error)
	SetInvoice(ctx context.Context, id string, req *InvoiceRequest, operator string) (*model.TruckJourney, error)
	ResolveApproval(ctx context.Context, id string, req *ApprovalRequest, operator string) (*model.TruckJourney, error)
	MarkProcessingComplete(ctx context.Context, id, operator string) (*model.TruckJourney, error)

	ReplaceTruck(ctx context.Context, id string, req *ReplaceTruckRequest, operator string) (*model.TruckJourney, error)

	GetJourney(ctx context.Context, id string) (*model.TruckJourney, error)
	ListByStatus(ctx context.Context, status string, limit, offset int) ([]*model.TruckJourney, error)
	ListByMilestone(ctx context.Context, milestone string, limit, offset int) ([]*model.TruckJourney, error)
	GetTAT(ctx context.Context, id string) (*tat.Report, error)
	SearchTAT(ctx context.Context, severity string, limit int) ([]elasticsearch.TATDocument, error)

	Republish(ctx context.Context, start, end *time.Time) (int, error)
}

// Option configures a journey service
type Option func(*journeyService)

// WithPublisher publishes a JourneyEvent after every commit
func WithPublisher(p EventPublisher) Option {
	return func(s *journeyService) { s.publisher = p }
}

// WithProjector indexes a TAT document after every commit
func WithProjector(p Projector) Option {
	return func(s *journeyService) { s.projector = p }
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *journeyService) { s.now = now }
}

// journeyService implements JourneyService
type journeyService struct {
	repo      repository.JourneyRepository
	cache     cache.CacheClient
	settings  settings.Provider
	publisher EventPublisher
	projector Projector
	now       func() time.Time
	loads     singleflight.Group
}

// NewJourneyService creates a new journey service
func NewJourneyService(
	repo repository.JourneyRepository,
	cache cache.CacheClient,
	provider settings.Provider,
	opts ...Option,
) JourneyService {
	s := &journeyService{
		repo:     repo,
		cache:    cache,
		settings: provider,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func requireOperator(operator string) error {
	if strings.TrimSpace(operator) == "" {
		return apperr.New(apperr.Validation, "operator id is required")
	}
	return nil
}

// Register creates a pending journey for a truck arriving at the yard
func (s *journeyService) Register(ctx context.Context, req *RegisterRequest, operator string) (*model.TruckJourney, error) {
	defer telemetry.StartSegment(ctx, "journey.register")()
	startTime := time.Now()

	if err := requireOperator(operator); err != nil {
		return nil, err
	}
	if err := validateRequest(req); err != nil {
		metrics.GetMetricsCollector().RecordError(metrics.ErrorTypeValidation)
		return nil, err
	}

	material, ok := model.ParseMaterialType(req.MaterialType)
	if !ok {
		return nil, apperr.New(apperr.Validation, "material type %q must be FG, RM, PM or other", req.MaterialType)
	}
	if err := s.checkMasterData(ctx, req.DepotName, req.Transporter, req.SupplierName); err != nil {
		return nil, err
	}
	arrival, err := ParseArrival(req.ArrivalDateTime, s.settings.Location())
	if err != nil {
		return nil, err
	}

	if req.ID != "" {
		existing, err := s.repo.GetByID(ctx, req.ID)
		if err == nil {
			logrus.WithField("journey_id", req.ID).Info("Journey already registered")
			return existing, nil
		}
		if !apperr.Is(err, apperr.NotFound) {
			return nil, err
		}
	}

	id := req.ID
	if id == "" {
		id = uuid.New().String()
	}
	journey := &model.TruckJourney{
		Base: model.Base{UUID: id},
		TruckIdentity: model.TruckIdentity{
			TruckNumber:   strings.TrimSpace(req.TruckNumber),
			VehicleNumber: strings.TrimSpace(req.VehicleNumber),
			DriverName:    strings.TrimSpace(req.DriverName),
			DriverMobile:  strings.TrimSpace(req.DriverMobile),
			DriverLicense: strings.TrimSpace(req.DriverLicense),
			Transporter:   strings.TrimSpace(req.Transporter),
			SupplierName:  strings.TrimSpace(req.SupplierName),
		},
		Logistics: model.Logistics{
			DepotName:       strings.TrimSpace(req.DepotName),
			LRNumber:        strings.TrimSpace(req.LRNumber),
			RTOCapacity:     req.RTOCapacity,
			LoadingCapacity: req.LoadingCapacity,
			MaterialType:    material,
		},
		ArrivalDateTime: arrival,
		Status:          model.StatusPending,
		WeightData:      weight.NewRecord(),
		CreatedBy:       operator,
		UpdatedBy:       operator,
		Version:         1,
	}

	journey, err = s.repo.Create(ctx, journey)
	if err != nil {
		metrics.GetMetricsCollector().RecordError(metrics.ErrorTypeDatabase)
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"journey_id":   journey.UUID,
		"truck_number": journey.TruckNumber,
		"operator":     operator,
	}).Info("Journey registered")

	s.afterCommit(ctx, journey, model.JourneyRegisteredEvent, operator)
	metrics.GetMetricsCollector().RecordTransition(metrics.TransitionRegister, time.Since(startTime))
	return journey, nil
}

// checkMasterData validates names against the configured lists
func (s *journeyService) checkMasterData(ctx context.Context, depot, transporter, supplier string) error {
	master, err := s.settings.MasterData(ctx)
	if err != nil {
		return apperr.Wrap(apperr.Storage, err, "failed to load master data")
	}
	if depot != "" && !settings.Contains(master.Depots, depot) {
		return apperr.New(apperr.Validation, "unknown depot %q", depot)
	}
	if transporter != "" && !settings.Contains(master.Transporters, transporter) {
		return apperr.New(apperr.Validation, "unknown transporter %q", transporter)
	}
	if supplier != "" && !settings.Contains(master.Suppliers, supplier) {
		return apperr.New(apperr.Validation, "unknown supplier %q", supplier)
	}
	return nil
}

// AdmitAtGate issues the gate pass for a pending journey
func (s *journeyService) AdmitAtGate(ctx context.Context, id, operator string) (*model.TruckJourney, error) {
	return s.mutate(ctx, id, operator, metrics.TransitionGate, model.JourneyAdmittedAtGateEvent,
		func(j *model.TruckJourney, _ time.Time) error {
			return lifecycle.AdmitAtGate(j)
		})
}

// AdmitInside admits the truck into the yard and routes it to its next milestone
func (s *journeyService) AdmitInside(ctx context.Context, id string, req *AdmitInsideRequest, operator string) (*model.TruckJourney, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	milestone, ok := model.ParseMilestone(req.NextMilestone)
	if !ok {
		return nil, apperr.New(apperr.Validation, "next milestone %q must be WeighBridge or InternalParking", req.NextMilestone)
	}
	return s.mutate(ctx, id, operator, metrics.TransitionInside, model.JourneyAdmittedInsideEvent,
		func(j *model.TruckJourney, _ time.Time) error {
			return lifecycle.AdmitInside(j, milestone)
		})
}

// CompleteMilestone finishes the routed milestone
func (s *journeyService) CompleteMilestone(ctx context.Context, id, operator string) (*model.TruckJourney, error) {
	return s.mutate(ctx, id, operator, metrics.TransitionComplete, model.JourneyCompletedEvent,
		func(j *model.TruckJourney, now time.Time) error {
			return lifecycle.CompleteMilestone(j, now)
		})
}

// ExitCheckpoint records the truck leaving the checkpoint
func (s *journeyService) ExitCheckpoint(ctx context.Context, id, operator string) (*model.TruckJourney, error) {
	return s.mutate(ctx, id, operator, metrics.TransitionExit, model.JourneyExitedEvent,
		func(j *model.TruckJourney, now time.Time) error {
			return lifecycle.ExitCheckpoint(j, now)
		})
}

// AppendReading records a weighbridge reading
func (s *journeyService) AppendReading(ctx context.Context, id string, req *WeightReadingRequest, operator string) (*model.TruckJourney, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	var material model.MaterialType
	if req.MaterialType != "" {
		m, ok := model.ParseMaterialType(req.MaterialType)
		if !ok {
			return nil, apperr.New(apperr.Validation, "material type %q must be FG, RM, PM or other", req.MaterialType)
		}
		material = m
	}
	policy, err := s.settings.WeightPolicy(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.Storage, err, "failed to load weight policy")
	}

	return s.mutate(ctx, id, operator, metrics.TransitionWeightReading, model.WeightReadingAddedEvent,
		func(j *model.TruckJourney, now time.Time) error {
			if err := lifecycle.EnsureInside(j); err != nil {
				return err
			}
			if j.WeightData == nil {
				j.WeightData = weight.NewRecord()
			}
			m := material
			if m == "" {
				m = j.MaterialType
			}
			return weight.AppendReading(j.WeightData, req.WeightKg, m, operator, now, policy)
		})
}

// SetInvoice enters the invoiced weight and evaluates the approval gate
func (s *journeyService) SetInvoice(ctx context.Context, id string, req *InvoiceRequest, operator string) (*model.TruckJourney, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	policy, err := s.settings.WeightPolicy(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.Storage, err, "failed to load weight policy")
	}

	journey, err := s.mutate(ctx, id, operator, metrics.TransitionInvoice, model.WeightInvoiceSetEvent,
		func(j *model.TruckJourney, now time.Time) error {
			if err := lifecycle.EnsureInside(j); err != nil {
				return err
			}
			if j.WeightData == nil {
				j.WeightData = weight.NewRecord()
			}
			return weight.SetInvoice(j.WeightData, req.InvoiceWeight, strings.TrimSpace(req.InvoiceNumber), now, policy)
		})
	if err == nil && journey.WeightData.ApprovalStatus == model.ApprovalPending {
		metrics.GetMetricsCollector().IncrementCounter(metrics.CounterApprovalsRequested, 1)
		logrus.WithFields(logrus.Fields{
			"journey_id":            id,
			"difference_percentage": *journey.WeightData.DifferencePercentage,
		}).Warn("Weight discrepancy needs approval")
	}
	return journey, err
}

// ResolveApproval applies a supervisor's decision to a pending discrepancy
func (s *journeyService) ResolveApproval(ctx context.Context, id string, req *ApprovalRequest, operator string) (*model.TruckJourney, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	return s.mutate(ctx, id, operator, metrics.TransitionApproval, model.WeightApprovalResolvedEvent,
		func(j *model.TruckJourney, now time.Time) error {
			if err := lifecycle.EnsureInside(j); err != nil {
				return err
			}
			if j.WeightData == nil {
				return apperr.New(apperr.PreconditionFailed, "journey has no weight data")
			}
			return weight.ResolveApproval(j.WeightData, weight.Decision(req.Decision), operator, now)
		})
}

// MarkProcessingComplete closes weight reconciliation. Repeating it is a no-op.
func (s *journeyService) MarkProcessingComplete(ctx context.Context, id, operator string) (*model.TruckJourney, error) {
	return s.mutate(ctx, id, operator, metrics.TransitionWeightComplete, model.WeightProcessingCompleteEvent,
		func(j *model.TruckJourney, now time.Time) error {
			if j.WeightData != nil && j.WeightData.ProcessingComplete {
				return repository.ErrUnchanged
			}
			if err := lifecycle.EnsureInside(j); err != nil {
				return err
			}
			if j.WeightData == nil {
				j.WeightData = weight.NewRecord()
			}
			if _, err := weight.MarkProcessingComplete(j.WeightData, operator); err != nil {
				return err
			}
			j.ProcessedAt = &now
			return nil
		})
}

// ReplaceTruck substitutes the truck on a journey
func (s *journeyService) ReplaceTruck(ctx context.Context, id string, req *ReplaceTruckRequest, operator string) (*model.TruckJourney, error) {
	if req == nil {
		return nil, apperr.New(apperr.Validation, "replacement is required")
	}
	if err := s.checkMasterData(ctx, "", strings.TrimSpace(req.Transporter), strings.TrimSpace(req.SupplierName)); err != nil {
		return nil, err
	}
	next := model.TruckIdentity{
		TruckNumber:   strings.TrimSpace(req.TruckNumber),
		VehicleNumber: strings.TrimSpace(req.VehicleNumber),
		DriverName:    strings.TrimSpace(req.DriverName),
		DriverMobile:  strings.TrimSpace(req.DriverMobile),
		DriverLicense: strings.TrimSpace(req.DriverLicense),
		Transporter:   strings.TrimSpace(req.Transporter),
		SupplierName:  strings.TrimSpace(req.SupplierName),
	}
	if next.TruckNumber == "" {
		next.TruckNumber = next.VehicleNumber
	}

	journey, err := s.mutate(ctx, id, operator, metrics.TransitionReplace, model.TruckReplacedEvent,
		func(j *model.TruckJourney, now time.Time) error {
			return transship.Replace(j, next, strings.TrimSpace(req.Reason), operator, now)
		})
	if err == nil {
		logrus.WithFields(logrus.Fields{
			"journey_id":       id,
			"original_vehicle": journey.OriginalTruckInfo.VehicleNumber,
			"vehicle":          journey.VehicleNumber,
			"operator":         operator,
		}).Info("Truck replaced")
	}
	return journey, err
}

// mutation changes a freshly loaded journey inside the conditional update
type mutation func(j *model.TruckJourney, now time.Time) error

// mutate runs fn through the store's conditional update and handles the
// post-commit work. Nothing is published when fn leaves the journey unchanged.
func (s *journeyService) mutate(ctx context.Context, id, operator, transition string, eventType model.EventType, fn mutation) (*model.TruckJourney, error) {
	defer telemetry.StartSegment(ctx, "journey."+transition)()
	startTime := time.Now()
	collector := metrics.GetMetricsCollector()

	if err := requireOperator(operator); err != nil {
		return nil, err
	}

	var before gaugeState
	unchanged := false
	journey, err := s.repo.Update(ctx, id, func(j *model.TruckJourney) error {
		before = gaugeStateOf(j)
		if err := fn(j, s.now()); err != nil {
			unchanged = errors.Is(err, repository.ErrUnchanged)
			return err
		}
		unchanged = false
		j.UpdatedBy = operator
		return nil
	})
	if err != nil {
		s.recordFailure(ctx, id, transition, operator, err)
		return nil, err
	}
	if unchanged {
		return journey, nil
	}

	logrus.WithFields(logrus.Fields{
		"journey_id": journey.UUID,
		"transition": transition,
		"status":     journey.Status,
		"version":    journey.Version,
		"operator":   operator,
	}).Info("Journey updated")

	before.apply(collector, gaugeStateOf(journey))
	s.afterCommit(ctx, journey, eventType, operator)
	collector.RecordTransition(transition, time.Since(startTime))
	return journey, nil
}

func (s *journeyService) recordFailure(ctx context.Context, id, transition, operator string, err error) {
	collector := metrics.GetMetricsCollector()
	entry := logrus.WithError(err).WithFields(logrus.Fields{
		"journey_id": id,
		"transition": transition,
		"operator":   operator,
		"kind":       apperr.KindOf(err),
	})

	switch apperr.KindOf(err) {
	case apperr.Storage, apperr.Internal:
		collector.RecordError(metrics.ErrorTypeDatabase)
		telemetry.NoticeError(ctx, err)
		entry.Error("Journey update failed")
	case apperr.Conflict:
		collector.RecordError(metrics.ErrorTypeDatabase)
		entry.Warn("Journey update conflicted")
	default:
		collector.RecordError(metrics.ErrorTypeValidation)
		entry.Info("Journey update refused")
	}
}

// gaugeState captures the journey facts tracked by gauges
type gaugeState struct {
	inside  bool
	pending bool
}

func gaugeStateOf(j *model.TruckJourney) gaugeState {
	return gaugeState{
		inside:  j.Status == model.StatusInside,
		pending: j.WeightData != nil && j.WeightData.ApprovalStatus == model.ApprovalPending,
	}
}

func (g gaugeState) apply(collector *metrics.MetricsCollector, after gaugeState) {
	collector.AddGauge(metrics.GaugeTrucksInside, delta(g.inside, after.inside))
	collector.AddGauge(metrics.GaugePendingApprovals, delta(g.pending, after.pending))
}

func delta(before, after bool) float64 {
	switch {
	case !before && after:
		return 1
	case before && !after:
		return -1
	default:
		return 0
	}
}

// afterCommit refreshes the cache, publishes the event and indexes the TAT
// projection. Failures are logged; the commit stands.
func (s *journeyService) afterCommit(ctx context.Context, journey *model.TruckJourney, eventType model.EventType, operator string) {
	s.refreshCache(ctx, journey)

	if s.publisher != nil {
		event := model.JourneyEvent{
			EventID:       uuid.New().String(),
			JourneyID:     journey.UUID,
			Type:          eventType,
			Status:        journey.Status,
			NextMilestone: journey.NextMilestone,
			Operator:      operator,
			Version:       journey.Version,
			OccurredAt:    s.now(),
		}
		if err := s.publisher.PublishJourneyEvent(ctx, event); err != nil {
			metrics.GetMetricsCollector().RecordError(metrics.ErrorTypeMessageBus)
		}
	}

	if s.projector != nil {
		if err := s.index(ctx, journey); err != nil {
			metrics.GetMetricsCollector().RecordError(metrics.ErrorTypeSearch)
			logrus.WithError(err).WithField("journey_id", journey.UUID).Warn("Failed to index journey TAT")
		}
	}
}

// refreshCache stores the journey in the cache, which keeps whichever version
// is newest. If the write fails the entry is evicted so readers fall back to
// the store instead of serving the version before this commit.
func (s *journeyService) refreshCache(ctx context.Context, journey *model.TruckJourney) {
	err := s.cache.SetJourney(ctx, journey)
	if err == nil {
		return
	}
	log := logrus.WithError(err).WithField("journey_id", journey.UUID)
	if delErr := s.cache.DeleteJourney(ctx, journey.UUID); delErr != nil {
		log.WithField("evict_error", delErr.Error()).Error("Failed to cache or evict journey")
		return
	}
	log.Warn("Failed to cache journey, evicted stale entry")
}

func (s *journeyService) index(ctx context.Context, journey *model.TruckJourney) error {
	report, err := s.evaluate(ctx, journey)
	if err != nil {
		return err
	}
	if err := s.projector.Index(ctx, elasticsearch.NewTATDocument(journey, *report, s.now())); err != nil {
		return err
	}
	metrics.GetMetricsCollector().IncrementCounter(metrics.CounterDocumentsIndexed, 1)
	return nil
}

// GetJourney gets a journey by ID, reading through the cache
func (s *journeyService) GetJourney(ctx context.Context, id string) (*model.TruckJourney, error) {
	collector := metrics.GetMetricsCollector()

	journey, err := s.cache.GetJourney(ctx, id)
	if err == nil {
		collector.IncrementCounter(metrics.CounterCacheHits, 1)
		return journey, nil
	}
	if !cache.IsMiss(err) {
		// Log the error but continue to get from database
		logrus.WithError(err).Warn("Failed to get journey from cache")
	}
	collector.IncrementCounter(metrics.CounterCacheMisses, 1)

	v, err, _ := s.loads.Do(id, func() (interface{}, error) {
		journey, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		s.refreshCache(ctx, journey)
		return journey, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.TruckJourney), nil
}

func page(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// ListByStatus lists journeys in a status, newest first
func (s *journeyService) ListByStatus(ctx context.Context, status string, limit, offset int) ([]*model.TruckJourney, error) {
	st, ok := model.ParseStatus(status)
	if !ok {
		return nil, apperr.New(apperr.Validation, "unknown status %q", status)
	}
	limit, offset = page(limit, offset)
	return s.repo.List(ctx, repository.JourneyFilter{Status: st, Limit: limit, Offset: offset})
}

// ListByMilestone lists journeys routed to a milestone, newest first
func (s *journeyService) ListByMilestone(ctx context.Context, milestone string, limit, offset int) ([]*model.TruckJourney, error) {
	m, ok := model.ParseMilestone(milestone)
	if !ok {
		return nil, apperr.New(apperr.Validation, "unknown milestone %q", milestone)
	}
	limit, offset = page(limit, offset)
	return s.repo.List(ctx, repository.JourneyFilter{Milestone: m, Limit: limit, Offset: offset})
}

// GetTAT evaluates the turn-around time of a journey
func (s *journeyService) GetTAT(ctx context.Context, id string) (*tat.Report, error) {
	journey, err := s.GetJourney(ctx, id)
	if err != nil {
		return nil, err
	}
	report, err := s.evaluate(ctx, journey)
	if err != nil {
		return nil, err
	}
	metrics.GetMetricsCollector().RecordSeverity(string(report.Severity))
	return report, nil
}

func (s *journeyService) evaluate(ctx context.Context, journey *model.TruckJourney) (*tat.Report, error) {
	policy, err := s.settings.TATPolicy(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.Storage, err, "failed to load TAT policy")
	}
	report := tat.Evaluate(journey, policy)
	return &report, nil
}

// SearchTAT returns journeys whose TAT is at or above the given severity.
// Without a search index the store is scanned instead.
func (s *journeyService) SearchTAT(ctx context.Context, severity string, limit int) ([]elasticsearch.TATDocument, error) {
	minimum := tat.SeverityWarning
	if severity != "" {
		sev, ok := tat.ParseSeverity(severity)
		if !ok {
			return nil, apperr.New(apperr.Validation, "unknown severity %q", severity)
		}
		minimum = sev
	}
	limit, _ = page(limit, 0)

	if s.projector != nil {
		docs, err := s.projector.SearchBySeverity(ctx, minimum, limit)
		if err != nil {
			metrics.GetMetricsCollector().RecordError(metrics.ErrorTypeSearch)
			return nil, apperr.Wrap(apperr.Storage, err, "TAT search failed")
		}
		return docs, nil
	}

	journeys, err := s.repo.List(ctx, repository.JourneyFilter{Limit: maxPageSize})
	if err != nil {
		return nil, err
	}
	docs := make([]elasticsearch.TATDocument, 0)
	for _, j := range journeys {
		report, err := s.evaluate(ctx, j)
		if err != nil {
			return nil, err
		}
		if !report.Severity.AtLeast(minimum) {
			continue
		}
		docs = append(docs, elasticsearch.NewTATDocument(j, *report, s.now()))
	}
	sort.SliceStable(docs, func(a, b int) bool {
		return docs[a].PercentOver > docs[b].PercentOver
	})
	if len(docs) > limit {
		docs = docs[:limit]
	}
	return docs, nil
}

// Republish re-emits a snapshot event and re-indexes every journey updated in
// the window. It returns the number of journeys handled.
func (s *journeyService) Republish(ctx context.Context, start, end *time.Time) (int, error) {
	journeys, err := s.repo.ListUpdatedBetween(ctx, start, end)
	if err != nil {
		return 0, err
	}

	for i, journey := range journeys {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		s.afterCommit(ctx, journey, model.JourneySnapshotEvent, journey.UpdatedBy)
	}
	return len(journeys), nil
}
