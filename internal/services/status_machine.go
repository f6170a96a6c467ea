package services

import (
	"fmt"

	"impact-service/internal/models"
)

type statusTransition struct {
	from models.RecordStatus
	to   models.RecordStatus
}

var (
	// transitions available to the record's creator; reviewers may also
	// make them when correcting a record
	creatorTransitions = map[statusTransition]bool{
		{models.RecordStatusDraft, models.RecordStatusDraft}:         true,
		{models.RecordStatusDraft, models.RecordStatusSubmitted}:     true,
		{models.RecordStatusSubmitted, models.RecordStatusSubmitted}: true,
		{models.RecordStatusReturned, models.RecordStatusReturned}:   true,
		{models.RecordStatusReturned, models.RecordStatusSubmitted}:  true,
	}

	reviewerTransitions = map[statusTransition]bool{
		{models.RecordStatusSubmitted, models.RecordStatusApproved}: true,
		{models.RecordStatusSubmitted, models.RecordStatusReturned}: true,
		{models.RecordStatusApproved, models.RecordStatusApproved}:  true,
	}
)

// StatusMachine is the single place record status changes are authorised.
type StatusMachine struct{}

// CheckCreate validates the initial status of a new record.
func (StatusMachine) CheckCreate(status models.RecordStatus) error {
	if status != models.RecordStatusDraft && status != models.RecordStatusSubmitted {
		return fmt.Errorf("%w: new records start as Draft or Submitted, not %q", models.ErrInvalidTransition, status)
	}
	return nil
}

// CheckTransition validates moving a record from one status to another.
// isCreator is true when the actor created the record.
func (StatusMachine) CheckTransition(actor models.Actor, isCreator bool, from, to models.RecordStatus) error {
	t := statusTransition{from: from, to: to}
	switch {
	case reviewerTransitions[t]:
		if !actor.Role.IsReviewer() {
			return fmt.Errorf("%w: only reviewers may move a record from %s to %s", models.ErrForbidden, from, to)
		}
		return nil
	case creatorTransitions[t]:
		if !isCreator && !actor.Role.IsReviewer() {
			return fmt.Errorf("%w: only the creator or a reviewer may edit this record", models.ErrForbidden)
		}
		return nil
	}
	return fmt.Errorf("%w: %s to %s", models.ErrInvalidTransition, from, to)
}
