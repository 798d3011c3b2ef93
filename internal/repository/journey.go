package repository

import (
	"context"
	"database/sql/driver"
	"errors"
	"io"
	"net"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"example.com/backstage/services/yard/internal/apperr"
	"example.com/backstage/services/yard/internal/db"
	"example.com/backstage/services/yard/internal/metrics"
	"example.com/backstage/services/yard/internal/model"
	"example.com/backstage/services/yard/internal/retry"
)

// MutateFunc applies a change to a freshly loaded journey. Returning an error
// aborts the update and the error is handed back unchanged.
type MutateFunc func(j *model.TruckJourney) error

// JourneyFilter narrows a journey listing
type JourneyFilter struct {
	Status    model.Status
	Milestone model.Milestone
	Limit     int
	Offset    int
}

// JourneyRepository defines the interface for the truck journey store
type JourneyRepository interface {
	Create(ctx context.Context, journey *model.TruckJourney) (*model.TruckJourney, error)
	GetByID(ctx context.Context, id string) (*model.TruckJourney, error)
	List(ctx context.Context, filter JourneyFilter) ([]*model.TruckJourney, error)
	ListUpdatedBetween(ctx context.Context, start, end *time.Time) ([]*model.TruckJourney, error)
	Update(ctx context.Context, id string, mutate MutateFunc) (*model.TruckJourney, error)
}

// journeyRepository implements JourneyRepository
type journeyRepository struct {
	db     *gorm.DB
	policy retry.Policy
}

// NewJourneyRepository creates a new journey repository. The policy bounds the
// conditional update retry loop.
func NewJourneyRepository(db *gorm.DB, policy retry.Policy) JourneyRepository {
	return &journeyRepository{db: db, policy: policy}
}

// Create inserts a new journey at version 1
func (r *journeyRepository) Create(ctx context.Context, journey *model.TruckJourney) (*model.TruckJourney, error) {
	if journey.Version == 0 {
		journey.Version = 1
	}
	if err := r.db.WithContext(ctx).Create(journey).Error; err != nil {
		return nil, apperr.Wrap(apperr.Storage, err, "failed to create journey")
	}
	return journey, nil
}

// GetByID gets a journey by ID
func (r *journeyRepository) GetByID(ctx context.Context, id string) (*model.TruckJourney, error) {
	j, err := r.get(ctx, id)
	if err != nil {
		return nil, translate(err)
	}
	return j, nil
}

func (r *journeyRepository) get(ctx context.Context, id string) (*model.TruckJourney, error) {
	var journey model.TruckJourney
	err := r.db.WithContext(ctx).Where("uuid = ?", id).First(&journey).Error
	if err != nil {
		if db.IsRecordNotFoundError(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &journey, nil
}

// List returns journeys matching the filter, newest first
func (r *journeyRepository) List(ctx context.Context, filter JourneyFilter) ([]*model.TruckJourney, error) {
	var journeys []*model.TruckJourney

	query := r.db.WithContext(ctx).Order("created_at DESC, uuid")
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Milestone != model.MilestoneNone {
		query = query.Where("next_milestone = ?", filter.Milestone)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	if err := query.Find(&journeys).Error; err != nil {
		return nil, apperr.Wrap(apperr.Storage, err, "failed to list journeys")
	}
	return journeys, nil
}

// ListUpdatedBetween finds journeys touched within the optional window
func (r *journeyRepository) ListUpdatedBetween(ctx context.Context, start, end *time.Time) ([]*model.TruckJourney, error) {
	var journeys []*model.TruckJourney

	query := r.db.WithContext(ctx).Order("updated_at, uuid")
	if start != nil {
		query = query.Where("updated_at >= ?", start)
	}
	if end != nil {
		query = query.Where("updated_at <= ?", end)
	}

	if err := query.Find(&journeys).Error; err != nil {
		return nil, apperr.Wrap(apperr.Storage, err, "failed to list journeys")
	}
	return journeys, nil
}

// Update loads the journey, applies mutate and writes the result only if the
// stored version is unchanged. Version conflicts and storage failures are
// retried with backoff; errors from mutate are returned as they are.
func (r *journeyRepository) Update(ctx context.Context, id string, mutate MutateFunc) (*model.TruckJourney, error) {
	var result *model.TruckJourney

	err := retry.WithBackoff(ctx, r.policy, retryable, func(attempt int) error {
		if attempt > 0 {
			metrics.GetMetricsCollector().IncrementCounter(metrics.CounterUpdateRetries, 1)
		}

		current, err := r.get(ctx, id)
		if err != nil {
			return err
		}

		expected := current.Version
		if err := mutate(current); err != nil {
			if errors.Is(err, ErrUnchanged) {
				result = current
				return nil
			}
			return &aborted{err: err}
		}

		current.Version = expected + 1
		tx := r.db.WithContext(ctx).
			Model(current).
			Where("version = ?", expected).
			Select("*").
			Updates(current)
		if tx.Error != nil {
			log.WithError(tx.Error).WithFields(log.Fields{
				"journey_id": id,
				"attempt":    attempt,
			}).Warn("Journey update failed")
			return tx.Error
		}
		if tx.RowsAffected == 0 {
			log.WithFields(log.Fields{
				"journey_id": id,
				"version":    expected,
				"attempt":    attempt,
			}).Debug("Journey version conflict")
			return ErrVersionConflict
		}

		result = current
		return nil
	})

	if err != nil {
		var stop *aborted
		if errors.As(err, &stop) {
			return nil, stop.err
		}
		if errors.Is(err, ErrVersionConflict) {
			metrics.GetMetricsCollector().IncrementCounter(metrics.CounterUpdateConflicts, 1)
		}
		return nil, translate(err)
	}
	return result, nil
}

// aborted carries an error raised by the mutation out of the retry loop
type aborted struct {
	err error
}

func (a *aborted) Error() string { return a.err.Error() }

func (a *aborted) Unwrap() error { return a.err }

// retryable reports whether an update attempt may be repeated. Version
// conflicts and connection-level failures are retried; every other store
// error is permanent.
func retryable(err error) bool {
	var stop *aborted
	switch {
	case errors.As(err, &stop):
		return false
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	case errors.Is(err, ErrVersionConflict):
		return true
	default:
		return transient(err)
	}
}

// transient reports driver errors that may succeed on a fresh attempt
func transient(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case strings.HasPrefix(pgErr.Code, "08"), // connection exception
			strings.HasPrefix(pgErr.Code, "53"), // insufficient resources
			pgErr.Code == "40001",               // serialization failure
			pgErr.Code == "40P01",               // deadlock detected
			pgErr.Code == "57P01":               // admin shutdown
			return true
		}
		return false
	}

	var netErr net.Error
	switch {
	case errors.Is(err, driver.ErrBadConn),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.As(err, &netErr),
		pgconn.SafeToRetry(err):
		return true
	}

	// sqlite reports lock contention only in the message
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}

// translate maps store errors onto error kinds
func translate(err error) error {
	var kinded *apperr.Error
	switch {
	case errors.As(err, &kinded):
		return err
	case errors.Is(err, ErrNotFound):
		return apperr.Wrap(apperr.NotFound, err, "journey not found")
	case errors.Is(err, ErrVersionConflict):
		return apperr.Wrap(apperr.Conflict, err, "journey update retries exhausted")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return apperr.Wrap(apperr.Storage, err, "journey store failure")
	}
}
