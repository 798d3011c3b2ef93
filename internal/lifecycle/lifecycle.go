// Package lifecycle owns the journey status and routing hint.
package lifecycle

import (
	"time"

	"example.com/backstage/services/yard/internal/apperr"
	"example.com/backstage/services/yard/internal/model"
	"example.com/backstage/services/yard/internal/weight"
)

// Event is an operator action that moves a journey forward
type Event string

const (
	EvAdmitAtGate       Event = "admit_at_gate"
	EvAdmitInside       Event = "admit_inside"
	EvCompleteMilestone Event = "complete_milestone"
	EvExitCheckpoint    Event = "exit_checkpoint"
)

// Transition is a single allowed edge in the lifecycle state machine
type Transition struct {
	From  model.Status
	Event Event
	To    model.Status
}

// Every edge moves strictly forward; there is no way back to an earlier status.
var transitionsTable = []Transition{
	{From: model.StatusPending, Event: EvAdmitAtGate, To: model.StatusAtGate},
	{From: model.StatusAtGate, Event: EvAdmitInside, To: model.StatusInside},
	{From: model.StatusInside, Event: EvCompleteMilestone, To: model.StatusCompleted},
	{From: model.StatusInside, Event: EvExitCheckpoint, To: model.StatusExited},
}

// TransitionFor returns the allowed transition for a given status and event
func TransitionFor(from model.Status, ev Event) (Transition, bool) {
	for _, tr := range transitionsTable {
		if tr.From == from && tr.Event == ev {
			return tr, true
		}
	}
	return Transition{}, false
}

func apply(j *model.TruckJourney, ev Event) error {
	tr, ok := TransitionFor(j.Status, ev)
	if !ok {
		return apperr.New(apperr.InvalidTransition, "cannot %s a journey that is %s", ev, j.Status)
	}
	j.Status = tr.To
	return nil
}

// AdmitAtGate moves a pending journey to the gate
func AdmitAtGate(j *model.TruckJourney) error {
	return apply(j, EvAdmitAtGate)
}

// AdmitInside admits a journey at the gate into the yard and routes it
func AdmitInside(j *model.TruckJourney, next model.Milestone) error {
	if next != model.MilestoneWeighBridge && next != model.MilestoneInternalParking {
		return apperr.New(apperr.Validation, "next milestone must be WeighBridge or InternalParking")
	}
	if err := apply(j, EvAdmitInside); err != nil {
		return err
	}
	j.NextMilestone = next
	return nil
}

// CompleteMilestone finishes the routed milestone. The weighbridge milestone
// needs a completed and approved weight reconciliation.
func CompleteMilestone(j *model.TruckJourney, now time.Time) error {
	if _, ok := TransitionFor(j.Status, EvCompleteMilestone); !ok {
		return apperr.New(apperr.InvalidTransition, "cannot %s a journey that is %s", EvCompleteMilestone, j.Status)
	}
	if j.NextMilestone == model.MilestoneWeighBridge {
		if err := weight.Reconciled(j.WeightData); err != nil {
			return err
		}
	}
	if err := apply(j, EvCompleteMilestone); err != nil {
		return err
	}
	if j.ProcessedAt == nil {
		j.ProcessedAt = &now
	}
	return nil
}

// ExitCheckpoint records the truck leaving the checkpoint
func ExitCheckpoint(j *model.TruckJourney, now time.Time) error {
	if j.ExitedAt != nil {
		return apperr.New(apperr.PreconditionFailed, "journey already exited at %s", j.ExitedAt.Format(time.RFC3339))
	}
	if j.ArrivalDateTime.IsZero() {
		return apperr.New(apperr.PreconditionFailed, "journey has no arrival time")
	}
	if err := apply(j, EvExitCheckpoint); err != nil {
		return err
	}
	j.ExitedAt = &now
	return nil
}

// EnsureInside guards mutations that are only accepted while the truck is in the yard
func EnsureInside(j *model.TruckJourney) error {
	if j.Status != model.StatusInside {
		return apperr.New(apperr.InvalidState, "journey is %s, not %s", j.Status, model.StatusInside)
	}
	return nil
}

// EnsureMutable guards mutations that are refused once a journey is terminal
func EnsureMutable(j *model.TruckJourney) error {
	if j.Status.IsTerminal() {
		return apperr.New(apperr.PreconditionFailed, "journey is %s and can no longer change", j.Status)
	}
	return nil
}
