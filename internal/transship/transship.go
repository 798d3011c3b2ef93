// Package transship substitutes the truck on a journey while keeping an audit
// snapshot of the truck that was replaced.
package transship

import (
	"strings"
	"time"

	"example.com/backstage/services/yard/internal/apperr"
	"example.com/backstage/services/yard/internal/lifecycle"
	"example.com/backstage/services/yard/internal/model"
)

// Replace captures the journey's current identity and overwrites it with the
// replacement. Transporter and supplier fall back to the prior values when the
// replacement leaves them empty. Status, weight data and timeline are untouched.
//
// OriginalTruckInfo holds only the latest snapshot; every snapshot is also
// appended to ReplacementHistory.
func Replace(j *model.TruckJourney, next model.TruckIdentity, reason, operator string, now time.Time) error {
	if err := lifecycle.EnsureMutable(j); err != nil {
		return err
	}
	if missing := missingFields(next, reason); len(missing) > 0 {
		return apperr.New(apperr.PreconditionFailed, "replacement is missing %s", strings.Join(missing, ", "))
	}

	snapshot := model.OriginalTruckSnapshot{
		TruckIdentity:        j.Identity(),
		ReplacedAt:           now,
		ReplacedBy:           operator,
		ReasonForReplacement: reason,
	}

	if next.Transporter == "" {
		next.Transporter = j.Transporter
	}
	if next.SupplierName == "" {
		next.SupplierName = j.SupplierName
	}

	j.TruckIdentity = next
	j.IsTransshipment = true
	j.OriginalTruckInfo = &snapshot
	j.ReplacementHistory = append(j.ReplacementHistory, snapshot)
	return nil
}

func missingFields(next model.TruckIdentity, reason string) []string {
	var missing []string
	if strings.TrimSpace(next.DriverName) == "" {
		missing = append(missing, "driver name")
	}
	if strings.TrimSpace(next.DriverMobile) == "" {
		missing = append(missing, "driver mobile")
	}
	if strings.TrimSpace(next.VehicleNumber) == "" {
		missing = append(missing, "vehicle number")
	}
	if strings.TrimSpace(reason) == "" {
		missing = append(missing, "reason")
	}
	return missing
}
