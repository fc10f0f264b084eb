package rawmanifest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hupe1980/idxdeploy/blobstore"
	"github.com/hupe1980/idxdeploy/lifecycle"
	"github.com/hupe1980/idxdeploy/model"
)

var (
	// ErrNotFound is returned when the version file does not exist.
	ErrNotFound = errors.New("raw manifest not found")
	// ErrCorrupt is returned when a version file or entry table cannot be decoded.
	ErrCorrupt = errors.New("raw manifest corrupt")
)

// Reader reads version manifests from a store rooted at the raw partition.
type Reader struct {
	store  blobstore.BlobStore
	logger *slog.Logger
}

// ReaderOption configures a Reader.
type ReaderOption func(*Reader)

// WithLogger sets the logger used for fallbacks.
func WithLogger(l *slog.Logger) ReaderOption {
	return func(r *Reader) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewReader creates a Reader over store.
func NewReader(store blobstore.BlobStore, optFns ...ReaderOption) *Reader {
	r := &Reader{store: store, logger: slog.New(slog.DiscardHandler)}
	for _, fn := range optFns {
		fn(r)
	}
	return r
}

// ReadVersion reads and decodes "version.<N>". rawPath only labels errors.
func (r *Reader) ReadVersion(ctx context.Context, rawPath string, version model.VersionID) (*VersionFile, error) {
	name := model.VersionFileName(version)
	data, err := blobstore.ReadAll(ctx, r.store, name)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil, fmt.Errorf("%s/%s: %w", rawPath, name, ErrNotFound)
		}
		return nil, fmt.Errorf("read %s/%s: %w", rawPath, name, err)
	}
	vf, err := parseVersionFile(data)
	if err != nil {
		return nil, fmt.Errorf("%s/%s: %w", rawPath, name, err)
	}
	if vf.VersionID != version {
		return nil, fmt.Errorf("%s/%s: %w: holds version %d", rawPath, name, ErrCorrupt, vf.VersionID)
	}
	return vf, nil
}

// ReadManifest returns every file and directory marker of version. Without an
// entry table the segment directories are listed and file lengths are left
// unknown.
func (r *Reader) ReadManifest(ctx context.Context, rawPath string, version model.VersionID) ([]model.FileEntry, error) {
	vf, err := r.ReadVersion(ctx, rawPath, version)
	if err != nil {
		return nil, err
	}

	name := EntryTableName(version)
	data, err := blobstore.ReadAll(ctx, r.store, name)
	switch {
	case err == nil:
		files, err := parseEntryTable(data)
		if err != nil {
			return nil, fmt.Errorf("%s/%s: %w", rawPath, name, err)
		}
		return files, nil
	case errors.Is(err, blobstore.ErrNotFound):
		r.logger.Debug("entry table missing, listing segments",
			slog.String("raw_path", rawPath),
			slog.Int64("version", int64(version)),
			slog.Int("segments", len(vf.Segments)))
		return r.listSegments(ctx, rawPath, vf)
	default:
		return nil, fmt.Errorf("read %s/%s: %w", rawPath, name, err)
	}
}

// ReadSegments returns the lifecycle classifier input of version.
func (r *Reader) ReadSegments(ctx context.Context, rawPath string, version model.VersionID) ([]lifecycle.Segment, error) {
	vf, err := r.ReadVersion(ctx, rawPath, version)
	if err != nil {
		return nil, err
	}
	return vf.LifecycleSegments(), nil
}

func (r *Reader) listSegments(ctx context.Context, rawPath string, vf *VersionFile) ([]model.FileEntry, error) {
	var files []model.FileEntry
	for _, seg := range vf.LifecycleSegments() {
		names, err := r.store.List(ctx, seg.Directory)
		if err != nil {
			return nil, fmt.Errorf("list %s/%s: %w", rawPath, seg.Directory, err)
		}
		files = append(files, model.NewFileEntry(seg.Directory, model.UnknownLength))
		for _, n := range names {
			if !strings.HasPrefix(n, seg.Directory) {
				continue
			}
			files = append(files, model.NewFileEntry(n, model.UnknownLength))
		}
	}
	return files, nil
}
