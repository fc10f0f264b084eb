package idxdeploy

import (
	"errors"
	"fmt"

	"github.com/hupe1980/idxdeploy/loadconfig"
	"github.com/hupe1980/idxdeploy/model"
	"github.com/hupe1980/idxdeploy/planner"
)

var (
	// ErrInvalidConfig is returned for malformed rules or lifecycle patterns.
	ErrInvalidConfig = loadconfig.ErrInvalidConfig
	// ErrManifestUnavailable is returned when the raw manifest of the target
	// version is missing or corrupt.
	ErrManifestUnavailable = errors.New("raw manifest unavailable")
	// ErrProbe is returned when a file size could not be determined.
	ErrProbe = planner.ErrProbe
	// ErrTransfer is returned when the transfer or its completion failed.
	ErrTransfer = errors.New("transfer failed")
	// ErrNotReady is returned when the readiness gate failed.
	ErrNotReady = errors.New("readiness check failed")
)

// DeployError describes a failed deployment.
//
// The underlying error can be accessed via errors.Unwrap.
type DeployError struct {
	Op         string
	RawPath    string
	LocalPath  string
	RemotePath string
	Base       model.VersionID
	Target     model.VersionID
	cause      error
}

func (e *DeployError) Error() string {
	return fmt.Sprintf("deploy %s (raw=%s local=%s remote=%s, %d -> %d): %v",
		e.Op, e.RawPath, e.LocalPath, e.RemotePath, e.Base, e.Target, e.cause)
}

func (e *DeployError) Unwrap() error { return e.cause }

func newDeployError(op string, req Request, cause error) *DeployError {
	return &DeployError{
		Op:         op,
		RawPath:    req.RawPath,
		LocalPath:  req.LocalPath,
		RemotePath: req.RemotePath,
		Base:       req.BaseVersion,
		Target:     req.TargetVersion,
		cause:      cause,
	}
}
