// Package status defines the operational status shared by channel watchers,
// the channel registry, and the reporter, along with the single priority
// combinator used to collapse many component statuses into one.
package status

type Status int

const (
	Stopped Status = iota
	Starting
	Waiting
	Active
	InvalidPath
	NetworkError
	AuthenticationError
	FatalError
	Stopping
	Disposed
)

func (s Status) String() string {
	switch s {
	case Stopped:
		return "Stopped"
	case Starting:
		return "Starting"
	case Waiting:
		return "Waiting"
	case Active:
		return "Active"
	case InvalidPath:
		return "InvalidPath"
	case NetworkError:
		return "NetworkError"
	case AuthenticationError:
		return "AuthenticationError"
	case FatalError:
		return "FatalError"
	case Stopping:
		return "Stopping"
	case Disposed:
		return "Disposed"
	default:
		return "Unknown"
	}
}

// combinePriority orders statuses from most to least urgent. Combine reports
// the first one present in its input; anything outside this list (lifecycle
// transients like Starting or Stopping) never wins aggregation.
var combinePriority = []Status{
	FatalError,
	AuthenticationError,
	NetworkError,
	InvalidPath,
	Active,
	Waiting,
}

func Combine(statuses ...Status) Status {
	for _, candidate := range combinePriority {
		for _, s := range statuses {
			if s == candidate {
				return candidate
			}
		}
	}
	return Waiting
}
