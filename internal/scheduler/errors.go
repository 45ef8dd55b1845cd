package scheduler

import (
	"errors"
	"fmt"
)

// ErrRunInProgress is returned by a manual run when the schedule is already executing.
var ErrRunInProgress = errors.New("a run of this schedule is already in progress")

type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("schedule %s not found", e.ID)
}

// Stage names the collaborator that failed during a run.
type Stage string

const (
	StageGenerate Stage = "generate"
	StageDeliver  Stage = "deliver"
)

// ExecutionError is a failure of report generation or delivery. It is recorded on the
// schedule and returned to manual callers; the dispatcher only logs it.
type ExecutionError struct {
	Stage Stage
	Err   error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
