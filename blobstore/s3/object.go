package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/hupe1980/idxdeploy/blobstore"
)

// object is an opened S3 object. Every read is a ranged GET.
type object struct {
	client Client
	bucket string
	key    string
	size   int64
}

func (o *object) Close() error { return nil }

func (o *object) Size() int64 { return o.size }

// get issues a GET for [off, off+length) clamped to the object size and
// returns the body with its length. body is nil when the range is empty.
func (o *object) get(ctx context.Context, off, length int64) (body io.ReadCloser, n int64, err error) {
	if off >= o.size || length <= 0 {
		return nil, 0, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	last := min(off+length, o.size) - 1
	resp, err := o.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(o.bucket),
		Key:    aws.String(o.key),
		Range:  aws.String(fmt.Sprintf("bytes=%d-%d", off, last)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, 0, blobstore.ErrNotFound
		}
		return nil, 0, err
	}
	return resp.Body, last - off + 1, nil
}

func (o *object) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	body, want, err := o.get(ctx, off, int64(len(p)))
	if err != nil {
		return 0, err
	}
	if body == nil {
		return 0, io.EOF
	}
	defer func() { _ = body.Close() }()

	n, err := io.ReadFull(body, p[:want])
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

// ReadRange streams the range straight from the GET response body.
func (o *object) ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error) {
	body, _, err := o.get(ctx, off, length)
	if err != nil {
		return nil, err
	}
	if body == nil {
		return blobstore.NopReadCloser(strings.NewReader("")), nil
	}
	return body, nil
}

// prefixMarker is returned when a directory name has objects below it.
type prefixMarker struct{}

func (prefixMarker) Close() error { return nil }
func (prefixMarker) Size() int64  { return 0 }
func (prefixMarker) ReadAt(context.Context, []byte, int64) (int, error) {
	return 0, io.EOF
}
func (prefixMarker) ReadRange(context.Context, int64, int64) (io.ReadCloser, error) {
	return blobstore.NopReadCloser(strings.NewReader("")), nil
}

func (s *Store) head(ctx context.Context, key string) (*object, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, blobstore.ErrNotFound
		}
		return nil, err
	}
	return &object{client: s.client, bucket: s.bucket, key: key, size: aws.ToInt64(out.ContentLength)}, nil
}

func (s *Store) hasPrefix(ctx context.Context, prefix string) (bool, error) {
	out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(s.bucket),
		Prefix:  aws.String(prefix),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return false, err
	}
	return len(out.Contents) > 0, nil
}

// listKeys pages through every key below prefix and returns the names
// relative to the store prefix. Zero-byte folder objects are skipped.
func (s *Store) listKeys(ctx context.Context, prefix string) ([]string, error) {
	var names []string
	pages := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, obj := range page.Contents {
			name := s.name(aws.ToString(obj.Key))
			if name == "" || strings.HasSuffix(name, "/") {
				continue
			}
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func isNotFound(err error) bool {
	var nf *types.NotFound
	var nsk *types.NoSuchKey
	return errors.As(err, &nf) || errors.As(err, &nsk)
}
