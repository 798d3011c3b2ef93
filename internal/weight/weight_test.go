package weight

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/backstage/services/yard/internal/apperr"
	"example.com/backstage/services/yard/internal/model"
)

var now = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func appendAll(t *testing.T, rec *model.WeightRecord, weights ...float64) {
	t.Helper()
	for _, w := range weights {
		require.NoError(t, AppendReading(rec, w, model.MaterialRM, "clerk-1", now, Policy{}))
	}
}

func TestReconcileAgainstInvoice(t *testing.T) {
	rec := NewRecord()
	appendAll(t, rec, 1000, 1010, 990)

	require.NoError(t, SetInvoice(rec, 950, "INV-7", now, Policy{TolerancePercent: 2}))

	assert.Equal(t, 1000.0, rec.AverageWeight)
	require.NotNil(t, rec.DifferencePercentage)
	assert.InDelta(t, 5.263, *rec.DifferencePercentage, 0.001)
	assert.Equal(t, model.ApprovalPending, rec.ApprovalStatus)
	assert.Equal(t, "INV-7", *rec.InvoiceNumber)
}

func TestAverageAfterEveryAppend(t *testing.T) {
	rec := NewRecord()
	weights := []float64{1000.5, 998.25, 1003.75, 1001, 999.5, 0.25}
	var sum float64

	for i, w := range weights {
		require.NoError(t, AppendReading(rec, w, model.MaterialFG, "clerk-1", now, Policy{}))
		sum += w
		assert.InDelta(t, sum/float64(i+1), rec.AverageWeight, 1e-9)
		assert.Equal(t, i+1, rec.Readings[i].SequenceNumber)
	}
	assert.Len(t, rec.Readings, len(weights))
}

func TestDifferenceZeroOnlyWhenEqual(t *testing.T) {
	invoice := 1000.0
	zero := DifferencePercentage(1000, &invoice)
	require.NotNil(t, zero)
	assert.Zero(t, *zero)

	off := DifferencePercentage(1000.01, &invoice)
	require.NotNil(t, off)
	assert.NotZero(t, *off)

	nothing := 0.0
	assert.Nil(t, DifferencePercentage(1000, &nothing))
	assert.Nil(t, DifferencePercentage(1000, nil))
}

func TestInvoiceWithinToleranceAutoApproves(t *testing.T) {
	rec := NewRecord()
	appendAll(t, rec, 1000, 1010)

	require.NoError(t, SetInvoice(rec, 1000, "", now, Policy{TolerancePercent: 1}))
	assert.Equal(t, model.ApprovalApproved, rec.ApprovalStatus)
	assert.Nil(t, rec.InvoiceNumber)
	require.NotNil(t, rec.ResolvedAt)
}

func TestDefaultToleranceIsNonZero(t *testing.T) {
	rec := NewRecord()
	appendAll(t, rec, 1010)

	require.NoError(t, SetInvoice(rec, 1000, "INV-1", now, Policy{}))
	assert.Equal(t, model.ApprovalApproved, rec.ApprovalStatus)
}

func TestSetInvoiceRequiresReadings(t *testing.T) {
	rec := NewRecord()
	err := SetInvoice(rec, 1000, "INV-1", now, Policy{})
	assert.True(t, apperr.Is(err, apperr.PreconditionFailed))

	appendAll(t, rec, 1000)
	err = SetInvoice(rec, 0, "INV-1", now, Policy{})
	assert.True(t, apperr.Is(err, apperr.Validation))
}

func TestAppendAfterInvoiceReevaluates(t *testing.T) {
	rec := NewRecord()
	appendAll(t, rec, 1000)
	require.NoError(t, SetInvoice(rec, 1000, "INV-1", now, Policy{TolerancePercent: 2}))
	require.Equal(t, model.ApprovalApproved, rec.ApprovalStatus)

	require.NoError(t, AppendReading(rec, 1200, model.MaterialRM, "clerk-2", now, Policy{TolerancePercent: 2}))
	assert.Equal(t, 1100.0, rec.AverageWeight)
	assert.Equal(t, model.ApprovalPending, rec.ApprovalStatus)
}

func TestRejectClearsInvoiceAndKeepsReadings(t *testing.T) {
	rec := NewRecord()
	appendAll(t, rec, 1000, 1010, 990)
	require.NoError(t, SetInvoice(rec, 950, "INV-7", now, Policy{}))

	require.NoError(t, ResolveApproval(rec, DecisionRejected, "supervisor", now))
	assert.Equal(t, model.ApprovalRejected, rec.ApprovalStatus)
	assert.Nil(t, rec.InvoiceWeight)
	assert.Nil(t, rec.InvoiceNumber)
	assert.Nil(t, rec.DifferencePercentage)
	assert.Len(t, rec.Readings, 3)
	assert.Equal(t, "supervisor", rec.ResolvedBy)

	_, err := MarkProcessingComplete(rec, "clerk-1")
	assert.True(t, apperr.Is(err, apperr.PreconditionFailed))

	// loop back to a corrected invoice
	require.NoError(t, SetInvoice(rec, 1000, "INV-8", now, Policy{}))
	assert.Equal(t, model.ApprovalApproved, rec.ApprovalStatus)
}

func TestResolveRequiresPending(t *testing.T) {
	rec := NewRecord()
	appendAll(t, rec, 1000)

	err := ResolveApproval(rec, DecisionApproved, "supervisor", now)
	assert.True(t, apperr.Is(err, apperr.PreconditionFailed))

	require.NoError(t, SetInvoice(rec, 500, "INV-1", now, Policy{}))
	err = ResolveApproval(rec, Decision("maybe"), "supervisor", now)
	assert.True(t, apperr.Is(err, apperr.Validation))
	assert.Equal(t, model.ApprovalPending, rec.ApprovalStatus)

	require.NoError(t, ResolveApproval(rec, DecisionApproved, "supervisor", now))
	assert.Equal(t, model.ApprovalApproved, rec.ApprovalStatus)
	assert.NoError(t, Reconciled(&model.WeightRecord{ApprovalStatus: model.ApprovalApproved, ProcessingComplete: true}))
}

func TestMarkProcessingCompleteIsIdempotent(t *testing.T) {
	rec := NewRecord()
	appendAll(t, rec, 1000)
	require.NoError(t, SetInvoice(rec, 1000, "INV-1", now, Policy{}))

	changed, err := MarkProcessingComplete(rec, "clerk-1")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.NoError(t, Reconciled(rec))

	changed, err = MarkProcessingComplete(rec, "clerk-2")
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, "clerk-1", rec.ProcessedBy)

	err = AppendReading(rec, 1000, model.MaterialRM, "clerk-1", now, Policy{})
	assert.True(t, apperr.Is(err, apperr.InvalidState))
}

func TestAppendRejectsNonPositiveWeight(t *testing.T) {
	rec := NewRecord()
	for _, w := range []float64{0, -5} {
		err := AppendReading(rec, w, model.MaterialRM, "clerk-1", now, Policy{})
		assert.True(t, apperr.Is(err, apperr.Validation))
	}
	assert.Empty(t, rec.Readings)
}

func TestReconciledBlocksIncompleteRecords(t *testing.T) {
	assert.True(t, apperr.Is(Reconciled(nil), apperr.PreconditionFailed))
	assert.True(t, apperr.Is(Reconciled(NewRecord()), apperr.PreconditionFailed))
	assert.True(t, apperr.Is(Reconciled(&model.WeightRecord{
		ProcessingComplete: true,
		ApprovalStatus:     model.ApprovalRejected,
	}), apperr.PreconditionFailed))
}
