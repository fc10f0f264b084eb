package resource

import (
	"context"
	"io"
)

type limitedReader struct {
	ctx context.Context
	r   io.Reader
	rc  *Controller
}

// NewRateLimitedReader returns a reader that charges rc for every byte read
// from r and stops once ctx is done.
func NewRateLimitedReader(ctx context.Context, r io.Reader, rc *Controller) io.Reader {
	if rc == nil || rc.io == nil {
		return &limitedReader{ctx: ctx, r: r}
	}
	return &limitedReader{ctx: ctx, r: r, rc: rc}
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if err := l.ctx.Err(); err != nil {
		return 0, err
	}
	n, err := l.r.Read(p)
	if n > 0 && l.rc != nil {
		if werr := l.rc.AcquireIO(l.ctx, n); werr != nil {
			return n, werr
		}
	}
	return n, err
}
