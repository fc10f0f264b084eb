// Package idxdeploy deploys versioned, segmented index partitions from a raw
// source-of-truth store to a serving node's local disk, optionally staging
// files in a remote caching tier.
//
// For every file of a target version the Deployer decides whether it must be
// staged remotely and whether it must be copied locally, copies what is
// missing and records the decision in a done marker ("version.<N>.done").
// The marker is written last, so an interrupted deployment never looks done,
// and a repeated deployment of an unchanged plan transfers nothing.
//
// # Quick Start
//
//	raw, _ := s3.New(ctx, "indexes", func(o *s3.Options) { o.Prefix = "table/partition_0_65535/" })
//	local := blobstore.NewLocalStore("/data/table/partition_0_65535")
//
//	d := idxdeploy.New(raw, local, idxdeploy.WithLogger(idxdeploy.NewJSONLogger(slog.LevelInfo)))
//	res, err := d.Deploy(ctx, idxdeploy.Request{
//	    RawPath:       "s3://indexes/table/partition_0_65535",
//	    LocalPath:     "/data/table/partition_0_65535",
//	    BaseVersion:   3,
//	    TargetVersion: 4,
//	    Config:        cfg, // loadconfig.Load("deploy.yaml")
//	})
//
// # Pipeline
//
//  1. Load the base version's marker (a missing or corrupt one is only logged).
//  2. Tag segments with lifecycles and plan the remote and local file sets.
//  3. Skip when the configuration needs no local index.
//  4. Wait for the readiness gate, if any.
//  5. Return early when the target marker already records the same plan.
//  6. Transfer, then copy sidecars and the version file, then write the marker.
//  7. Warm up the caching tier concurrently (best effort).
//
// Cancellation is an outcome, not an error: Deploy returns OutcomeCancelled
// and a nil error.
//
// # Garbage Collection
//
// CleanDoneFiles removes markers of versions that are no longer retained and
// NeedKeepDeployFiles lists the local files referenced by retained markers.
package idxdeploy
