package hook

import (
	"errors"
	"fmt"
)

// ErrAlreadyStarted is returned when Fetch is called more than once.
var ErrAlreadyStarted = errors.New("hook: fetch already started")

// Stage names the part of a cycle that failed.
type Stage string

const (
	StageCapture   Stage = "capture"
	StageBuild     Stage = "build"
	StageBroadcast Stage = "broadcast"
	StageWait      Stage = "wait"
)

// CycleError is the fault that terminated the fetch loop.
type CycleError struct {
	Stage Stage
	Cycle int
	Err   error
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cycle %d: %s: %v", e.Cycle, e.Stage, e.Err)
}

func (e *CycleError) Unwrap() error {
	return e.Err
}
