package scan

import (
	"fmt"
)

type ErrorKind string

const (
	ErrorKindEngineCrash         ErrorKind = "engine_crash"
	ErrorKindNavigationTimeout   ErrorKind = "navigation_timeout"
	ErrorKindNavigationFailure   ErrorKind = "navigation_failure"
	ErrorKindCollaboratorFailure ErrorKind = "collaborator_failure"
)

// ScanError is returned by Pipeline.Run when a scan cannot complete
type ScanError struct {
	Kind  ErrorKind
	Phase string
	URL   string
	Err   error
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("%s during %s of %s: %v", e.Kind, e.Phase, e.URL, e.Err)
}

func (e *ScanError) Unwrap() error {
	return e.Err
}
