package minio

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/hupe1980/idxdeploy/blobstore"
	"github.com/minio/minio-go/v7"
)

// object is an opened MinIO object. The zero value is a directory marker.
type object struct {
	client *minio.Client
	bucket string
	key    string
	size   int64
}

func (o *object) Size() int64 { return o.size }

func (o *object) Close() error { return nil }

// get opens [off, off+length) clamped to the object size; the reader is nil
// for an empty range.
func (o *object) get(ctx context.Context, off, length int64) (io.ReadCloser, int64, error) {
	if o.client == nil || off >= o.size || length <= 0 {
		return nil, 0, nil
	}
	last := min(off+length, o.size) - 1
	opts := minio.GetObjectOptions{}
	if err := opts.SetRange(off, last); err != nil {
		return nil, 0, err
	}
	obj, err := o.client.GetObject(ctx, o.bucket, o.key, opts)
	if err != nil {
		return nil, 0, err
	}
	return obj, last - off + 1, nil
}

func (o *object) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	r, want, err := o.get(ctx, off, int64(len(p)))
	if err != nil {
		return 0, err
	}
	if r == nil {
		return 0, io.EOF
	}
	defer r.Close()

	n, err := io.ReadFull(r, p[:want])
	switch {
	case errors.Is(err, io.ErrUnexpectedEOF):
		return n, io.EOF
	case err != nil:
		return n, err
	case n < len(p):
		return n, io.EOF
	}
	return n, nil
}

func (o *object) ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error) {
	r, _, err := o.get(ctx, off, length)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return blobstore.NopReadCloser(strings.NewReader("")), nil
	}
	return r, nil
}

// errAborted is the upload error after Abort.
var errAborted = errors.New("minio: upload aborted")

// uploadWriter feeds a background PutObject through a pipe.
type uploadWriter struct {
	pw     *io.PipeWriter
	cancel context.CancelFunc
	result chan error

	once sync.Once
	err  error
}

func (w *uploadWriter) Write(p []byte) (int, error) { return w.pw.Write(p) }

func (w *uploadWriter) Sync() error { return nil }

func (w *uploadWriter) Close() error {
	w.once.Do(func() {
		defer w.cancel()
		if err := w.pw.Close(); err != nil {
			w.err = err
			return
		}
		w.err = <-w.result
	})
	return w.err
}

// Abort stops the upload; nothing becomes visible.
func (w *uploadWriter) Abort() error {
	w.once.Do(func() {
		w.cancel()
		_ = w.pw.CloseWithError(errAborted)
		<-w.result
		w.err = errAborted
	})
	return nil
}
