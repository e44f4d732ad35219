package scheduling

import (
	"slices"
	"strings"

	"github.com/hospital/frontdesk/internal/platform/apperr"
)

type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusConfirmed  Status = "confirmed"
	StatusArrived    Status = "arrived"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusNoShow     Status = "no_show"
)

var allStatuses = []Status{
	StatusScheduled, StatusConfirmed, StatusArrived, StatusInProgress,
	StatusCompleted, StatusCancelled, StatusNoShow,
}

// OccupyingStatuses hold a (doctor, date, time) exclusively. The conflict
// check, availability listing and the database index all use this set.
var OccupyingStatuses = []Status{StatusScheduled, StatusConfirmed, StatusArrived, StatusInProgress}

// allowedTransitions lists, per target status, the statuses it may be
// reached from. scheduled is only ever the initial status.
var allowedTransitions = map[Status][]Status{
	StatusConfirmed:  {StatusScheduled},
	StatusArrived:    {StatusScheduled, StatusConfirmed},
	StatusInProgress: {StatusArrived},
	StatusCompleted:  {StatusInProgress},
	StatusCancelled:  {StatusScheduled, StatusConfirmed, StatusArrived, StatusInProgress},
	StatusNoShow:     {StatusScheduled, StatusConfirmed, StatusArrived, StatusInProgress},
}

func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", apperr.Validation("unknown status %q", s)
	}
	return st, nil
}

func (s Status) Valid() bool { return slices.Contains(allStatuses, s) }

func (s Status) Occupying() bool { return slices.Contains(OccupyingStatuses, s) }

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusNoShow
}

// CanTransition reports whether from → to is in the transition table.
func CanTransition(from, to Status) bool {
	return slices.Contains(allowedTransitions[to], from)
}

func occupyingStrings() []string {
	out := make([]string, len(OccupyingStatuses))
	for i, s := range OccupyingStatuses {
		out[i] = string(s)
	}
	return out
}
