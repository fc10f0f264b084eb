package s3

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/hupe1980/idxdeploy/blobstore"
)

// Options configures a Store created with New.
type Options struct {
	// Prefix is prepended to all keys (e.g. "table/partition_0_65535/").
	Prefix string
	// Region overrides the region from the default AWS config chain.
	Region string
	// Upload configures multipart uploads.
	Upload UploadConfig
	// Client overrides the S3 client built from the default config chain.
	Client Client
}

// Store implements blobstore.BlobStore for S3.
type Store struct {
	client   Client
	bucket   string
	prefix   string
	upload   UploadConfig
	uploader *manager.Uploader
}

// New creates a Store, loading credentials from the default AWS config chain
// unless a Client is supplied.
func New(ctx context.Context, bucket string, optFns ...func(*Options)) (*Store, error) {
	opts := Options{Upload: DefaultUploadConfig()}
	for _, fn := range optFns {
		fn(&opts)
	}

	client := opts.Client
	if client == nil {
		var loadOpts []func(*config.LoadOptions) error
		if opts.Region != "" {
			loadOpts = append(loadOpts, config.WithRegion(opts.Region))
		}
		cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			return nil, fmt.Errorf("s3: load aws config: %w", err)
		}
		client = s3.NewFromConfig(cfg)
	}

	return newStore(client, bucket, opts.Prefix, opts.Upload), nil
}

// NewStore creates a new S3 blob store using the default upload settings.
// rootPrefix is prepended to all keys.
func NewStore(client Client, bucket, rootPrefix string) *Store {
	return newStore(client, bucket, rootPrefix, DefaultUploadConfig())
}

func newStore(client Client, bucket, rootPrefix string, upload UploadConfig) *Store {
	return &Store{
		client:   client,
		bucket:   bucket,
		prefix:   strings.Trim(rootPrefix, "/"),
		upload:   upload,
		uploader: newUploader(client, upload),
	}
}

// key maps a blob name to an object key. A trailing "/" is preserved so that
// directory names only match their own children.
func (s *Store) key(name string) string {
	k := path.Join(s.prefix, name)
	if strings.HasSuffix(name, "/") && k != "" {
		k += "/"
	}
	return k
}

// name maps an object key back to a blob name; keys outside the prefix map to "".
func (s *Store) name(key string) string {
	if s.prefix == "" {
		return key
	}
	rest, ok := strings.CutPrefix(key, s.prefix+"/")
	if !ok {
		return ""
	}
	return rest
}

// Open opens a blob. Names ending in "/" probe for a non-empty directory.
func (s *Store) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	if strings.HasSuffix(name, "/") {
		ok, err := s.hasPrefix(ctx, s.key(name))
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, blobstore.ErrNotFound
		}
		return prefixMarker{}, nil
	}
	return s.head(ctx, s.key(name))
}

// Create starts a streaming upload; the object is committed on Close.
func (s *Store) Create(ctx context.Context, name string) (blobstore.WritableBlob, error) {
	return s.startUpload(ctx, s.key(name)), nil
}

// Put writes a blob in a single request. S3 PUTs are atomic.
func (s *Store) Put(ctx context.Context, name string, data []byte) error {
	return s.putObject(ctx, s.key(name), data)
}

// Delete removes a blob. S3 reports success for missing keys.
func (s *Store) Delete(ctx context.Context, name string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	if err != nil && isNotFound(err) {
		return nil
	}
	return err
}

// List returns all blob names with the given prefix, sorted.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	full := s.key(prefix)
	if prefix == "" && s.prefix != "" {
		full += "/"
	}
	return s.listKeys(ctx, full)
}
