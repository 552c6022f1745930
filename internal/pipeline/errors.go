package pipeline

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyLevel     = errors.New("student level is empty")
	ErrEmptyTopic     = errors.New("topic or lesson content is empty")
	ErrPlanGeneration = errors.New("teaching plan generation failed")
	ErrNotConfigured  = errors.New("generator not configured")
)

// StageError 导致整次运行终止的阶段错误
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
