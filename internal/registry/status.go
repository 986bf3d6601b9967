package registry

import (
	"time"

	"github.com/parcoord/parcoord/internal/constants"
)

// Status is a session lifecycle state.
type Status string

const (
	StatusUnknown    Status = "Unknown"
	StatusStarting   Status = "Starting"
	StatusStarted    Status = "Started"
	StatusWorking    Status = "Working"
	StatusBlocked    Status = "Blocked"
	StatusError      Status = "Error"
	StatusCompleted  Status = "Completed"
	StatusTerminated Status = "Terminated"
)

// Valid reports whether s is a recognized status value.
func (s Status) Valid() bool {
	switch s {
	case StatusUnknown, StatusStarting, StatusStarted, StatusWorking,
		StatusBlocked, StatusError, StatusCompleted, StatusTerminated:
		return true
	}
	return false
}

// transitions is the allowed-transition table. A missing entry means the
// transition is rejected. Terminated has no outgoing edges.
var transitions = map[Status]map[Status]bool{
	StatusUnknown: {
		StatusStarting:   true,
		StatusStarted:    true,
		StatusWorking:    true,
		StatusTerminated: true,
	},
	StatusStarting: {
		StatusStarted:    true,
		StatusError:      true,
		StatusTerminated: true,
	},
	StatusStarted: {
		StatusWorking:    true,
		StatusBlocked:    true,
		StatusError:      true,
		StatusCompleted:  true,
		StatusTerminated: true,
	},
	StatusWorking: {
		StatusWorking:    true,
		StatusBlocked:    true,
		StatusError:      true,
		StatusCompleted:  true,
		StatusTerminated: true,
	},
	StatusBlocked: {
		StatusWorking:    true,
		StatusError:      true,
		StatusCompleted:  true,
		StatusTerminated: true,
	},
	StatusError: {
		StatusStarting:   true,
		StatusWorking:    true,
		StatusTerminated: true,
	},
	StatusCompleted: {
		StatusWorking:    true,
		StatusTerminated: true,
	},
	StatusTerminated: {},
}

// CanTransition reports whether moving from one status to another is
// allowed.
func CanTransition(from, to Status) bool {
	return transitions[from][to]
}

// statusBaseline is the health baseline per status.
var statusBaseline = map[Status]float64{
	StatusWorking:    1.0,
	StatusCompleted:  1.0,
	StatusStarted:    0.8,
	StatusStarting:   0.8,
	StatusUnknown:    0.5,
	StatusBlocked:    0.3,
	StatusError:      0.1,
	StatusTerminated: 0,
}

// healthScore computes the unitless health in [0,1] for a status whose
// last update was at lastUpdate. The baseline decays linearly with
// staleness down to a floor over the decay window.
func healthScore(status Status, lastUpdate, now time.Time) float64 {
	base := statusBaseline[status]

	age := now.Sub(lastUpdate)
	factor := 1.0
	if age > 0 {
		factor = 1 - (1-constants.StaleDecayFloor)*float64(age)/float64(constants.StaleDecayWindow)
		if factor < constants.StaleDecayFloor {
			factor = constants.StaleDecayFloor
		}
	}

	score := base * factor
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
