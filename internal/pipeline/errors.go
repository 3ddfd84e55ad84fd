package pipeline

import "fmt"

// StageError wraps a component error with the stage at which the run
// halted. The wrapped error is never masked; errors.Is/As see through it.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("pipeline %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func stageFailure(stage Stage, err error) *StageError {
	return &StageError{Stage: stage, Err: err}
}
