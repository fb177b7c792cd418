package domain

import "errors"

type MilestoneStatus string

const (
	MilestonePending   MilestoneStatus = "PENDING"
	MilestoneSubmitted MilestoneStatus = "SUBMITTED"
	MilestoneCompleted MilestoneStatus = "COMPLETED"
)

var (
	ErrMilestoneCompleted    = errors.New("milestone already completed")
	ErrMilestoneNotSubmitted = errors.New("milestone has no proof awaiting verification")
)

// CanSubmitProof reports whether an issuer may submit (or replace) a proof.
// A proof on a SUBMITTED milestone overwrites the previous one; completed
// milestones are sealed.
func (s MilestoneStatus) CanSubmitProof() error {
	if s == MilestoneCompleted {
		return ErrMilestoneCompleted
	}
	return nil
}

// CanVerify reports whether an admin decision applies. Only milestones with a
// pending proof can be approved or rejected.
func (s MilestoneStatus) CanVerify() error {
	switch s {
	case MilestoneSubmitted:
		return nil
	case MilestoneCompleted:
		return ErrMilestoneCompleted
	default:
		return ErrMilestoneNotSubmitted
	}
}

// PlanEntry is one milestone of an issuance plan.
type PlanEntry struct {
	Title          string
	ReleasePercent int64
}

// DefaultPlan mirrors the standard five-step infrastructure bond schedule.
func DefaultPlan() []PlanEntry {
	return []PlanEntry{
		{Title: "Tender Approved", ReleasePercent: 20},
		{Title: "Construction Started", ReleasePercent: 20},
		{Title: "25% Completion Proof", ReleasePercent: 20},
		{Title: "50% Completion Proof", ReleasePercent: 20},
		{Title: "Audit & Completion Report", ReleasePercent: 20},
	}
}

var (
	ErrPlanEmptyTitle    = errors.New("milestone title must not be empty")
	ErrPlanBadPercent    = errors.New("escrow release percent must be positive")
	ErrPlanOverCommitted = errors.New("milestone plan releases more than 100% of escrow")
)

// ValidatePlan checks an issuance plan before any escrow is locked against it.
func ValidatePlan(plan []PlanEntry) error {
	var total int64
	for _, e := range plan {
		if e.Title == "" {
			return ErrPlanEmptyTitle
		}
		if e.ReleasePercent <= 0 {
			return ErrPlanBadPercent
		}
		total += e.ReleasePercent
	}
	if total > 100 {
		return ErrPlanOverCommitted
	}
	return nil
}
