package screening

import (
	"fmt"

	id "riskwatch/pkg/domain"
)

// Stage names a step of the screening cycle.
type Stage string

const (
	StageLoad      Stage = "load"
	StageSnapshot  Stage = "snapshot"
	StageProject   Stage = "project"
	StageMatch     Stage = "match"
	StageAggregate Stage = "aggregate"
	StageAudit     Stage = "audit"
	StagePublish   Stage = "publish"
)

// CycleError reports the stage at which a cycle was abandoned. The
// previously published views remain in place.
type CycleError struct {
	CycleID id.CycleID
	Stage   Stage
	Err     error
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("screening cycle %s failed at %s: %v", e.CycleID, e.Stage, e.Err)
}

func (e *CycleError) Unwrap() error {
	return e.Err
}
