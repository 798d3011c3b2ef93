// Package tat computes turn-around time and classifies it against a
// material-dependent target. Everything here is side-effect free.
package tat

import (
	"fmt"
	"strings"
	"time"

	"example.com/backstage/services/yard/internal/model"
)

// DefaultKey is the policy entry used when a material has no target of its own
const DefaultKey = "default"

// Severity classifies an actual TAT against its ideal
type Severity string

const (
	SeverityNormal   Severity = "normal"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// rank orders severities so callers can compare them
func (s Severity) rank() int {
	switch s {
	case SeverityWarning:
		return 1
	case SeverityCritical:
		return 2
	default:
		return 0
	}
}

// AtLeast reports whether s is as severe as other
func (s Severity) AtLeast(other Severity) bool {
	return s.rank() >= other.rank()
}

// Policy holds the TAT targets and thresholds supplied by configuration
type Policy struct {
	IdealMinutes             map[string]int `json:"ideal_minutes"`
	WarningThresholdPercent  int            `json:"warning_threshold_percent"`
	CriticalThresholdPercent int            `json:"critical_threshold_percent"`
}

// Compute returns the minutes between arrival and exit. A missing timestamp or
// an exit before arrival yields 0, which is treated as indeterminate.
func Compute(arrival, exitedAt *time.Time) float64 {
	if arrival == nil || exitedAt == nil || arrival.IsZero() || exitedAt.IsZero() {
		return 0
	}
	if exitedAt.Before(*arrival) {
		return 0
	}
	return exitedAt.Sub(*arrival).Minutes()
}

// IdealMinutes looks up the target for a material, falling back to the default entry
func IdealMinutes(material model.MaterialType, policy Policy) int {
	if v, ok := policy.IdealMinutes[string(material)]; ok {
		return v
	}
	return policy.IdealMinutes[DefaultKey]
}

// PercentOver returns how far actual exceeds ideal, in percent of ideal
func PercentOver(actualMinutes float64, idealMinutes int) float64 {
	if idealMinutes == 0 {
		return 0
	}
	ideal := float64(idealMinutes)
	return (actualMinutes - ideal) / ideal * 100
}

// Classify maps an actual TAT to a severity. Zero ideal or zero actual is normal.
func Classify(actualMinutes float64, idealMinutes int, policy Policy) Severity {
	if idealMinutes == 0 || actualMinutes == 0 {
		return SeverityNormal
	}
	over := PercentOver(actualMinutes, idealMinutes)
	switch {
	case over >= float64(policy.CriticalThresholdPercent):
		return SeverityCritical
	case over >= float64(policy.WarningThresholdPercent):
		return SeverityWarning
	default:
		return SeverityNormal
	}
}

// Report is the TAT view of a single journey
type Report struct {
	JourneyID     string             `json:"journey_id"`
	MaterialType  model.MaterialType `json:"material_type"`
	ArrivedAt     time.Time          `json:"arrived_at"`
	EndedAt       *time.Time         `json:"ended_at,omitempty"`
	ActualMinutes float64            `json:"actual_minutes"`
	IdealMinutes  int                `json:"ideal_minutes"`
	PercentOver   float64            `json:"percent_over"`
	Severity      Severity           `json:"severity"`
	Formatted     string             `json:"formatted"`
}

// Evaluate builds the TAT report for a journey. Journeys completed without an
// exit are measured to their processing time.
func Evaluate(j *model.TruckJourney, policy Policy) Report {
	end := j.ExitedAt
	if end == nil {
		end = j.ProcessedAt
	}
	arrival := j.ArrivalDateTime
	actual := Compute(&arrival, end)
	ideal := IdealMinutes(j.MaterialType, policy)

	report := Report{
		JourneyID:     j.UUID,
		MaterialType:  j.MaterialType,
		ArrivedAt:     arrival,
		EndedAt:       end,
		ActualMinutes: actual,
		IdealMinutes:  ideal,
		Severity:      Classify(actual, ideal, policy),
		Formatted:     FormatDuration(actual),
	}
	if actual > 0 {
		report.PercentOver = PercentOver(actual, ideal)
	}
	return report
}

// FormatDuration renders minutes as "Hh Mm"
func FormatDuration(minutes float64) string {
	total := int(minutes)
	if total <= 0 {
		return "0h 0m"
	}
	return fmt.Sprintf("%dh %dm", total/60, total%60)
}

// ParseSeverity converts a string to a Severity
func ParseSeverity(s string) (Severity, bool) {
	for _, sev := range []Severity{SeverityNormal, SeverityWarning, SeverityCritical} {
		if strings.EqualFold(string(sev), strings.TrimSpace(s)) {
			return sev, true
		}
	}
	return "", false
}
