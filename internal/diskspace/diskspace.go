// Package diskspace reports free space of the file system holding a path.
package diskspace

import (
	"errors"
	"fmt"
)

// ErrInsufficientSpace is returned by Check when a transfer does not fit.
var ErrInsufficientSpace = errors.New("insufficient disk space")

// ErrUnsupported is returned on platforms without a free-space query.
var ErrUnsupported = errors.New("disk space query unsupported")

// Usage describes a file system.
type Usage struct {
	Total uint64
	Free  uint64 // available to unprivileged users
}

// Check returns ErrInsufficientSpace if writing need bytes below dir would
// leave less than reserve bytes free. Platforms without support pass.
func Check(dir string, need, reserve uint64) error {
	u, err := Get(dir)
	if err != nil {
		if errors.Is(err, ErrUnsupported) {
			return nil
		}
		return err
	}
	if u.Free < need || u.Free-need < reserve {
		return fmt.Errorf("%w: %s needs %d bytes (+%d reserve), %d free", ErrInsufficientSpace, dir, need, reserve, u.Free)
	}
	return nil
}
