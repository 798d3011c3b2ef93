package tat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/backstage/services/yard/internal/model"
)

func testPolicy() Policy {
	return Policy{
		IdealMinutes:             map[string]int{DefaultKey: 180},
		WarningThresholdPercent:  20,
		CriticalThresholdPercent: 50,
	}
}

func TestClassifyScenarios(t *testing.T) {
	policy := testPolicy()
	arrival := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	cases := []struct {
		name    string
		minutes int
		want    Severity
	}{
		{"11 percent over is normal", 200, SeverityNormal},
		{"27 percent over is warning", 230, SeverityWarning},
		{"66 percent over is critical", 300, SeverityCritical},
		{"under target is normal", 120, SeverityNormal},
		{"exactly warning threshold", 216, SeverityWarning},
		{"exactly critical threshold", 270, SeverityCritical},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			exit := arrival.Add(time.Duration(tc.minutes) * time.Minute)
			actual := Compute(&arrival, &exit)
			require.Equal(t, float64(tc.minutes), actual)

			ideal := IdealMinutes(model.MaterialFG, policy)
			assert.Equal(t, tc.want, Classify(actual, ideal, policy))
		})
	}
}

func TestClassifyGuards(t *testing.T) {
	policy := testPolicy()

	assert.Equal(t, SeverityNormal, Classify(500, 0, policy))
	assert.Equal(t, SeverityNormal, Classify(0, 180, policy))
	assert.Equal(t, SeverityNormal, Classify(0, 0, policy))
}

func TestClassifyIsMonotonic(t *testing.T) {
	policy := testPolicy()

	for _, ideal := range []int{1, 30, 180, 240} {
		prev := SeverityNormal
		for actual := 1.0; actual < float64(ideal)*3; actual += 0.5 {
			got := Classify(actual, ideal, policy)
			require.Truef(t, got.AtLeast(prev), "severity dropped from %s to %s at %.1f/%d", prev, got, actual, ideal)
			prev = got
		}
		require.Equal(t, SeverityCritical, prev)
	}
}

func TestComputeIndeterminate(t *testing.T) {
	arrival := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	before := arrival.Add(-time.Minute)

	assert.Zero(t, Compute(nil, &arrival))
	assert.Zero(t, Compute(&arrival, nil))
	assert.Zero(t, Compute(&arrival, &before))
}

func TestComputeKeepsFractionalMinutes(t *testing.T) {
	arrival := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	exit := arrival.Add(215*time.Minute + 59*time.Second)

	actual := Compute(&arrival, &exit)
	assert.InDelta(t, 215.9833, actual, 0.001)
	// still below 216, the 20% line for a 180 minute target
	assert.Equal(t, SeverityNormal, Classify(actual, 180, testPolicy()))
}

func TestIdealMinutesFallsBackToDefault(t *testing.T) {
	policy := Policy{IdealMinutes: map[string]int{DefaultKey: 180, "RM": 240}}

	assert.Equal(t, 240, IdealMinutes(model.MaterialRM, policy))
	assert.Equal(t, 180, IdealMinutes(model.MaterialPM, policy))
	assert.Equal(t, 180, IdealMinutes(model.MaterialOther, policy))
	assert.Equal(t, 0, IdealMinutes(model.MaterialFG, Policy{}))
}

func TestEvaluate(t *testing.T) {
	arrival := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	exit := arrival.Add(230 * time.Minute)
	j := &model.TruckJourney{
		Base:            model.Base{UUID: "j-1"},
		Logistics:       model.Logistics{MaterialType: model.MaterialFG},
		ArrivalDateTime: arrival,
		ExitedAt:        &exit,
	}

	report := Evaluate(j, testPolicy())
	assert.Equal(t, 230.0, report.ActualMinutes)
	assert.Equal(t, 180, report.IdealMinutes)
	assert.InDelta(t, 27.78, report.PercentOver, 0.01)
	assert.Equal(t, SeverityWarning, report.Severity)
	assert.Equal(t, "3h 50m", report.Formatted)
}

func TestEvaluateWithoutExit(t *testing.T) {
	j := &model.TruckJourney{ArrivalDateTime: time.Now()}

	report := Evaluate(j, testPolicy())
	assert.Zero(t, report.ActualMinutes)
	assert.Equal(t, SeverityNormal, report.Severity)
	assert.Equal(t, "0h 0m", report.Formatted)
}

func TestParseSeverity(t *testing.T) {
	s, ok := ParseSeverity(" Critical ")
	assert.True(t, ok)
	assert.Equal(t, SeverityCritical, s)

	_, ok = ParseSeverity("amber")
	assert.False(t, ok)
}
