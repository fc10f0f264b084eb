// Package resource shares deployment limits between concurrent deployments of
// one process: block-cache memory, file transfer slots and IO bandwidth.
//
//	rc := resource.NewController(resource.Config{
//	    MaxConcurrentTransfers: 8,
//	    IOLimitBytesPerSec:     100 << 20,
//	})
//	if err := rc.AcquireTransfer(ctx); err != nil {
//	    return err
//	}
//	defer rc.ReleaseTransfer()
//	src = resource.NewRateLimitedReader(ctx, src, rc)
//
// Every method accepts a nil *Controller and then does nothing.
package resource
