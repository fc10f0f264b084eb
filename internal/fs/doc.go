// Package fs is the filesystem seam under the local partition store.
//
// [LocalFS] forwards to the os package. [FaultyFS] wraps any [FileSystem] and
// fails writes, syncs, closes, removes or renames for paths that contain a
// configured pattern, which lets tests interrupt a deployment between copying
// files and publishing the done marker:
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.AddRule(".done", fs.Fault{FailAfterBytes: -1, FailOnRename: true})
//	store := blobstore.NewLocalStore(dir, blobstore.WithFileSystem(ffs))
package fs
