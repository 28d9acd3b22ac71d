package controller

import "fmt"

type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusConnected
	StatusDisconnected
	StatusError
	StatusDisposed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusConnected:
		return "connected"
	case StatusDisconnected:
		return "disconnected"
	case StatusError:
		return "error"
	case StatusDisposed:
		return "disposed"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// State is the lifecycle state of a controller. Cause is set only for
// StatusError.
type State struct {
	Status Status
	Cause  error
}

func (s State) String() string {
	if s.Status == StatusError && s.Cause != nil {
		return fmt.Sprintf("error{%v}", s.Cause)
	}
	return s.Status.String()
}
