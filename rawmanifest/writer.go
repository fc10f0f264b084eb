package rawmanifest

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hupe1980/idxdeploy/blobstore"
	"github.com/hupe1980/idxdeploy/model"
)

// PutVersion publishes a version into store: the entry table first (skipped
// when files is nil), then the version file. Readers that find the version
// file therefore always find its entry table.
func PutVersion(ctx context.Context, store blobstore.BlobStore, vf *VersionFile, files []model.FileEntry, c Compression) error {
	if files != nil {
		raw, err := json.Marshal(entryTable{Files: files})
		if err != nil {
			return err
		}
		data, err := encode(raw, c)
		if err != nil {
			return err
		}
		if err := store.Put(ctx, EntryTableName(vf.VersionID), data); err != nil {
			return fmt.Errorf("write entry table: %w", err)
		}
	}

	data, err := json.Marshal(vf)
	if err != nil {
		return err
	}
	if err := store.Put(ctx, model.VersionFileName(vf.VersionID), data); err != nil {
		return fmt.Errorf("write version file: %w", err)
	}
	return nil
}
