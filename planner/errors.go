package planner

import (
	"errors"
	"fmt"
)

// ErrProbe is returned when the size of a manifest entry cannot be determined.
var ErrProbe = errors.New("size probe failed")

// ProbeError reports the entry whose size probe failed.
type ProbeError struct {
	Path string
	Err  error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("probe %s: %v", e.Path, e.Err)
}

func (e *ProbeError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrProbe) hold for every ProbeError.
func (e *ProbeError) Is(target error) bool { return target == ErrProbe }
