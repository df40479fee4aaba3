package eq500x

import "errors"

var (
	// ErrFormat is returned for replies or coordinates the protocol cannot
	// represent.
	ErrFormat = errors.New("malformed coordinate")
	// ErrRejected is returned when the mount answers a command with a refusal.
	ErrRejected = errors.New("command rejected by mount")
	// ErrConvergence is returned when a slew does not reach its target within
	// the allotted number of polls although every exchange succeeded.
	ErrConvergence  = errors.New("slew did not converge")
	ErrNotConnected = errors.New("mount not connected")
)
