package valueobject

import (
	"fmt"

	"github.com/ignatzorin/youth-governance-backend/internal/pkg/apperror"
)

// ReviewStatus is the workflow state of a proposal or a pending youth profile.
type ReviewStatus string

const (
	StatusDraft    ReviewStatus = "draft"
	StatusPending  ReviewStatus = "pending"
	StatusApproved ReviewStatus = "approved"
	StatusRejected ReviewStatus = "rejected"
)

var reviewTransitions = map[ReviewStatus][]ReviewStatus{
	StatusDraft:    {StatusPending},
	StatusPending:  {StatusApproved, StatusRejected},
	StatusRejected: {StatusPending},
	StatusApproved: {},
}

func (s ReviewStatus) IsValid() bool {
	_, ok := reviewTransitions[s]
	return ok
}

// IsTerminal reports whether no further transition is possible.
func (s ReviewStatus) IsTerminal() bool {
	return s == StatusApproved
}

func (s ReviewStatus) CanTransitionTo(next ReviewStatus) bool {
	for _, status := range reviewTransitions[s] {
		if status == next {
			return true
		}
	}
	return false
}

// Transition validates s -> next and returns a conflict error when the move is
// not allowed from the current state.
func (s ReviewStatus) Transition(next ReviewStatus) error {
	if !next.IsValid() {
		return apperror.Validation("unknown status %q", next)
	}
	if s.IsTerminal() {
		return apperror.New(apperror.ErrCodeConflict, fmt.Sprintf("%s is final", s))
	}
	if !s.CanTransitionTo(next) {
		return apperror.New(apperror.ErrCodeConflict, fmt.Sprintf("cannot move from %s to %s", s, next))
	}
	return nil
}

func NewReviewStatus(status string) (ReviewStatus, error) {
	s := ReviewStatus(status)
	if !s.IsValid() {
		return "", apperror.Validation("invalid status %q", status)
	}
	return s, nil
}
