package transfer

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/idxdeploy/model"
)

// ErrSizeMismatch is returned when a copied file does not have the planned length.
var ErrSizeMismatch = errors.New("size mismatch")

// Status is the outcome of a transfer.
type Status int

const (
	// StatusDone means every file was materialized and the completion callback succeeded.
	StatusDone Status = iota
	// StatusFailed means a copy or the completion callback failed.
	StatusFailed
	// StatusCancelled means the context was cancelled before completion.
	StatusCancelled
)

func (s Status) String() string {
	switch s {
	case StatusDone:
		return "done"
	case StatusFailed:
		return "failed"
	case StatusCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// DoneFunc reports whether the deployment is already complete.
type DoneFunc func(ctx context.Context) bool

// CompleteFunc runs once after all files were transferred.
type CompleteFunc func(ctx context.Context) error

// Transferer moves the Files of each manifest to their target root.
//
// isDone is consulted before any work; when it returns true Deploy returns
// StatusDone without calling onDone. onDone runs strictly after every file
// was transferred.
type Transferer interface {
	Deploy(ctx context.Context, manifests []*model.FileManifest, isDone DoneFunc, onDone CompleteFunc) (Status, error)
}
