// Package weight reconciles weighbridge readings against the invoiced weight.
//
// All functions mutate a *model.WeightRecord in place and recompute the
// derived fields before returning, so a record handed back to the store is
// never stale. Status checks on the owning journey belong to the caller.
package weight

import (
	"math"
	"time"

	"example.com/backstage/services/yard/internal/apperr"
	"example.com/backstage/services/yard/internal/model"
)

// DefaultTolerancePercent is used when the policy supplies no tolerance
const DefaultTolerancePercent = 2.0

// Policy holds the reconciliation tolerance
type Policy struct {
	TolerancePercent float64 `json:"tolerance_percent"`
}

func (p Policy) tolerance() float64 {
	if p.TolerancePercent <= 0 {
		return DefaultTolerancePercent
	}
	return p.TolerancePercent
}

// Decision is the outcome of a manual approval
type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
)

// NewRecord returns an empty weight record
func NewRecord() *model.WeightRecord {
	return &model.WeightRecord{ApprovalStatus: model.ApprovalNone}
}

// Average is the arithmetic mean of the readings, 0 when there are none
func Average(readings []model.WeightReading) float64 {
	if len(readings) == 0 {
		return 0
	}
	var sum float64
	for _, r := range readings {
		sum += r.WeightKg
	}
	return sum / float64(len(readings))
}

// DifferencePercentage is |average - invoice| / invoice * 100, nil without a usable invoice
func DifferencePercentage(average float64, invoiceWeight *float64) *float64 {
	if invoiceWeight == nil || *invoiceWeight == 0 {
		return nil
	}
	diff := math.Abs(average-*invoiceWeight) / *invoiceWeight * 100
	return &diff
}

// Recompute refreshes the derived fields from the readings and invoice
func Recompute(rec *model.WeightRecord) {
	rec.AverageWeight = Average(rec.Readings)
	rec.DifferencePercentage = DifferencePercentage(rec.AverageWeight, rec.InvoiceWeight)
}

// evaluate sets the approval gate from the current difference
func evaluate(rec *model.WeightRecord, policy Policy, at time.Time) {
	if rec.DifferencePercentage == nil {
		return
	}
	rec.ResolvedBy = ""
	if *rec.DifferencePercentage > policy.tolerance() {
		rec.ApprovalStatus = model.ApprovalPending
		rec.ResolvedAt = nil
		return
	}
	rec.ApprovalStatus = model.ApprovalApproved
	rec.ResolvedAt = &at
}

func ensureOpen(rec *model.WeightRecord) error {
	if rec.ProcessingComplete {
		return apperr.New(apperr.InvalidState, "weight processing is already complete")
	}
	return nil
}

// AppendReading adds a reading with the next sequence number. When an invoice
// is present the approval gate is evaluated again against the new average.
func AppendReading(rec *model.WeightRecord, weightKg float64, material model.MaterialType, by string, at time.Time, policy Policy) error {
	if err := ensureOpen(rec); err != nil {
		return err
	}
	if weightKg <= 0 || math.IsNaN(weightKg) || math.IsInf(weightKg, 0) {
		return apperr.New(apperr.Validation, "weight must be a positive number of kilograms")
	}
	rec.Readings = append(rec.Readings, model.WeightReading{
		SequenceNumber: len(rec.Readings) + 1,
		WeightKg:       weightKg,
		MaterialType:   material,
		RecordedAt:     at,
		RecordedBy:     by,
	})
	Recompute(rec)
	evaluate(rec, policy, at)
	return nil
}

// SetInvoice records the invoiced weight and opens or passes the approval gate
func SetInvoice(rec *model.WeightRecord, invoiceWeight float64, invoiceNumber string, at time.Time, policy Policy) error {
	if err := ensureOpen(rec); err != nil {
		return err
	}
	if invoiceWeight <= 0 || math.IsNaN(invoiceWeight) || math.IsInf(invoiceWeight, 0) {
		return apperr.New(apperr.Validation, "invoice weight must be a positive number of kilograms")
	}
	if len(rec.Readings) == 0 {
		return apperr.New(apperr.PreconditionFailed, "at least one weight reading is required before the invoice")
	}
	rec.InvoiceWeight = &invoiceWeight
	if invoiceNumber != "" {
		rec.InvoiceNumber = &invoiceNumber
	} else {
		rec.InvoiceNumber = nil
	}
	Recompute(rec)
	evaluate(rec, policy, at)
	return nil
}

// ResolveApproval applies a manual decision to a pending discrepancy. A
// rejection keeps the readings and clears the invoice so it can be re-entered.
func ResolveApproval(rec *model.WeightRecord, decision Decision, approver string, at time.Time) error {
	if err := ensureOpen(rec); err != nil {
		return err
	}
	if approver == "" {
		return apperr.New(apperr.Validation, "approver is required")
	}
	if rec.ApprovalStatus != model.ApprovalPending {
		return apperr.New(apperr.PreconditionFailed, "approval is %s, not pending", rec.ApprovalStatus)
	}

	switch decision {
	case DecisionApproved:
		rec.ApprovalStatus = model.ApprovalApproved
	case DecisionRejected:
		rec.ApprovalStatus = model.ApprovalRejected
		rec.InvoiceWeight = nil
		rec.InvoiceNumber = nil
	default:
		return apperr.New(apperr.Validation, "decision must be approved or rejected, got %q", decision)
	}
	rec.ResolvedBy = approver
	rec.ResolvedAt = &at
	Recompute(rec)
	return nil
}

// MarkProcessingComplete closes the record. It reports false when the record
// was already complete, which is not an error.
func MarkProcessingComplete(rec *model.WeightRecord, by string) (bool, error) {
	if rec.ProcessingComplete {
		return false, nil
	}
	if rec.ApprovalStatus != model.ApprovalApproved {
		return false, apperr.New(apperr.PreconditionFailed, "weight reconciliation is %s, not approved", rec.ApprovalStatus)
	}
	rec.ProcessingComplete = true
	rec.ProcessedBy = by
	return true, nil
}

// Reconciled reports whether the record unblocks the weighbridge milestone
func Reconciled(rec *model.WeightRecord) error {
	if rec == nil || !rec.ProcessingComplete {
		return apperr.New(apperr.PreconditionFailed, "weight reconciliation is incomplete")
	}
	if rec.ApprovalStatus == model.ApprovalPending || rec.ApprovalStatus == model.ApprovalRejected {
		return apperr.New(apperr.PreconditionFailed, "weight discrepancy approval is %s", rec.ApprovalStatus)
	}
	return nil
}
