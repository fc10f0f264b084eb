// Package transfer copies the files of a deploy plan from the raw store to
// the local store.
//
// Copier is the default Transferer. It skips files already materialized with
// the expected size, copies the rest with a bounded number of workers and an
// optional bandwidth limit, and calls the completion callback only after every
// file landed. A crash or cancellation before that point leaves no completion
// side effects behind.
package transfer
