package models

// Status is the appointment lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
	StatusNoShow    Status = "no_show"
)

// AllStatuses lists every lifecycle state in display order.
var AllStatuses = []Status{StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted, StatusNoShow}

// OccupyingStatuses block a slot in the availability grid.
var OccupyingStatuses = []Status{StatusPending, StatusConfirmed, StatusCompleted}

var transitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusCompleted, StatusNoShow, StatusCancelled},
	StatusCancelled: nil,
	StatusCompleted: nil,
	StatusNoShow:    nil,
}

// ParseStatus accepts the canonical values plus "no-show" and "canceled".
func ParseStatus(raw string) (Status, bool) {
	switch raw {
	case "no-show":
		return StatusNoShow, true
	case "canceled":
		return StatusCancelled, true
	}
	s := Status(raw)
	_, ok := transitions[s]
	return s, ok
}

func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s.Valid() && len(transitions[s]) == 0
}

// CanTransitionTo reports whether next is a legal successor of s.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// RequiresManager reports whether only salon staff may move an appointment into s.
func (s Status) RequiresManager() bool {
	switch s {
	case StatusConfirmed, StatusCompleted, StatusNoShow:
		return true
	default:
		return false
	}
}

// Occupies reports whether an appointment in s marks its slot busy.
func (s Status) Occupies() bool {
	for _, o := range OccupyingStatuses {
		if o == s {
			return true
		}
	}
	return false
}

func (s Status) String() string { return string(s) }

const (
	// DefaultIntervalMinutes is used by seed data that omits the slot interval.
	DefaultIntervalMinutes = 30

	// DefaultMaxAdvanceDays bounds how far ahead a client may book.
	DefaultMaxAdvanceDays = 90

	// WorkerQueueSize is the in-memory sync queue capacity.
	WorkerQueueSize = 128
)
