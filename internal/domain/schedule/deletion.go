package schedule

import "github.com/google/uuid"

type DeletionStrategy string

const (
	StrategySmart        DeletionStrategy = "smart"
	StrategyAggressive   DeletionStrategy = "aggressive"
	StrategyConservative DeletionStrategy = "conservative"
	StrategyTimeslotOnly DeletionStrategy = "timeslot_only"
)

const MaxBulkDelete = 50

// ParseStrategy defaults an empty value to smart.
func ParseStrategy(s string) (DeletionStrategy, error) {
	switch DeletionStrategy(s) {
	case "":
		return StrategySmart, nil
	case StrategySmart, StrategyAggressive, StrategyConservative, StrategyTimeslotOnly:
		return DeletionStrategy(s), nil
	}
	return "", ErrInvalidStrategy
}

// DeletionPlan lists the timeslots to detach from the schedule and whether the
// schedule row itself goes. Detached slots no other schedule references are deleted.
type DeletionPlan struct {
	Detach         []uuid.UUID
	DeleteSchedule bool
}

func (p DeletionPlan) Empty() bool {
	return len(p.Detach) == 0 && !p.DeleteSchedule
}

func PlanDeletion(s *Schedule, timeslotID *uuid.UUID, strategy DeletionStrategy) (DeletionPlan, error) {
	all := s.TimeslotIDs()
	targets := all
	if timeslotID != nil {
		if !s.HasTimeslot(*timeslotID) {
			return DeletionPlan{}, ErrTimeslotNotInSchedule
		}
		targets = []uuid.UUID{*timeslotID}
	}
	remaining := len(all) - len(targets)

	switch strategy {
	case StrategySmart:
		return DeletionPlan{Detach: targets, DeleteSchedule: remaining == 0}, nil
	case StrategyAggressive:
		return DeletionPlan{Detach: all, DeleteSchedule: true}, nil
	case StrategyConservative:
		return DeletionPlan{Detach: targets, DeleteSchedule: timeslotID == nil && remaining == 0}, nil
	case StrategyTimeslotOnly:
		return DeletionPlan{Detach: all}, nil
	}
	return DeletionPlan{}, ErrInvalidStrategy
}
