package contract

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/atelierhq/atelier/internal/errors"
)

// MilestoneStatus describes the lifecycle of one milestone.
type MilestoneStatus int

const (
	// MilestoneStatusUnspecified represents an invalid milestone status value.
	MilestoneStatusUnspecified MilestoneStatus = iota
	// MilestoneStatusPending indicates the milestone has not started.
	MilestoneStatusPending
	// MilestoneStatusInProgress indicates the milestone is being worked on.
	MilestoneStatusInProgress
	// MilestoneStatusSubmitted indicates a milestone delivery awaits review.
	MilestoneStatusSubmitted
	// MilestoneStatusAccepted indicates the milestone delivery was accepted.
	MilestoneStatusAccepted
	// MilestoneStatusRejected indicates the last delivery was rejected.
	MilestoneStatusRejected
)

// Milestone is one entry of the ordered milestone list owned by a contract.
// Percent shares are inherited from the listing template and frozen at
// contract creation.
type Milestone struct {
	Index         int
	Title         string
	Status        MilestoneStatus
	Percent       int
	RevisionsUsed int
	StartedAt     *time.Time
	SubmittedAt   *time.Time
	CompletedAt   *time.Time
}

// milestonesFromTemplate builds the frozen milestone list, validating that
// percents sum to exactly 100, and starts the first milestone.
func milestonesFromTemplate(template []MilestoneSpec, createdAt time.Time) ([]Milestone, error) {
	if len(template) == 0 {
		return nil, ErrInvalidMilestoneSplit
	}
	sum := 0
	milestones := make([]Milestone, 0, len(template))
	for i, spec := range template {
		if spec.Percent <= 0 {
			return nil, ErrInvalidMilestoneSplit
		}
		sum += spec.Percent
		title := strings.TrimSpace(spec.Title)
		if title == "" {
			title = fmt.Sprintf("Milestone %d", i+1)
		}
		milestones = append(milestones, Milestone{
			Index:   i,
			Title:   title,
			Status:  MilestoneStatusPending,
			Percent: spec.Percent,
		})
	}
	if sum != 100 {
		return nil, ErrInvalidMilestoneSplit
	}
	started := createdAt
	milestones[0].Status = MilestoneStatusInProgress
	milestones[0].StartedAt = &started
	return milestones, nil
}

// CurrentMilestone returns the index of the single in-progress (or submitted)
// milestone, or -1 when none is active.
func (c *Contract) CurrentMilestone() int {
	for i := range c.Milestones {
		switch c.Milestones[i].Status {
		case MilestoneStatusInProgress, MilestoneStatusSubmitted, MilestoneStatusRejected:
			return i
		}
	}
	return -1
}

// MilestoneAt returns a pointer to the milestone at index.
func (c *Contract) MilestoneAt(index int) (*Milestone, error) {
	if index < 0 || index >= len(c.Milestones) {
		return nil, apperrors.WithMetadata(
			apperrors.CodeMilestoneOutOfRange,
			fmt.Sprintf("milestone %d out of range", index),
			map[string]string{"Index": fmt.Sprintf("%d", index)},
		)
	}
	return &c.Milestones[index], nil
}

// AcceptMilestone marks the milestone at index accepted, recomputes the
// contract work percentage, and starts the next pending milestone if any.
func (c *Contract) AcceptMilestone(index int, now time.Time) error {
	m, err := c.MilestoneAt(index)
	if err != nil {
		return err
	}
	if m.Status != MilestoneStatusInProgress && m.Status != MilestoneStatusSubmitted {
		return apperrors.WithMetadata(
			apperrors.CodeMilestoneNotInProgress,
			fmt.Sprintf("milestone %d is not in progress", index),
			map[string]string{"Index": fmt.Sprintf("%d", index)},
		)
	}
	now = now.UTC()
	m.Status = MilestoneStatusAccepted
	m.CompletedAt = &now
	c.WorkPercentage = acceptedPercent(c.Milestones)
	c.UpdatedAt = now

	for i := range c.Milestones {
		if c.Milestones[i].Status == MilestoneStatusPending {
			started := now
			c.Milestones[i].Status = MilestoneStatusInProgress
			c.Milestones[i].StartedAt = &started
			break
		}
	}
	return nil
}

// RejectMilestone resets the milestone at index to in-progress so the
// artist can resubmit.
func (c *Contract) RejectMilestone(index int, now time.Time) error {
	m, err := c.MilestoneAt(index)
	if err != nil {
		return err
	}
	if m.Status != MilestoneStatusInProgress && m.Status != MilestoneStatusSubmitted {
		return apperrors.WithMetadata(
			apperrors.CodeMilestoneNotInProgress,
			fmt.Sprintf("milestone %d is not in progress", index),
			map[string]string{"Index": fmt.Sprintf("%d", index)},
		)
	}
	m.Status = MilestoneStatusInProgress
	m.SubmittedAt = nil
	c.UpdatedAt = now.UTC()
	return nil
}

// acceptedPercent sums the percent share of every accepted milestone.
func acceptedPercent(milestones []Milestone) int {
	sum := 0
	for _, m := range milestones {
		if m.Status == MilestoneStatusAccepted {
			sum += m.Percent
		}
	}
	return sum
}

// MilestoneStatusLabel returns the canonical string form of a milestone status.
func MilestoneStatusLabel(s MilestoneStatus) string {
	switch s {
	case MilestoneStatusPending:
		return "PENDING"
	case MilestoneStatusInProgress:
		return "IN_PROGRESS"
	case MilestoneStatusSubmitted:
		return "SUBMITTED"
	case MilestoneStatusAccepted:
		return "ACCEPTED"
	case MilestoneStatusRejected:
		return "REJECTED"
	default:
		return "UNSPECIFIED"
	}
}
