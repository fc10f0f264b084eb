// Package description implements the deploy description stored in done
// markers ("version.<N>.done").
//
// Two on-disk formats exist. Legacy markers are plain strings in one of three
// historical forms:
//
//	remotePath
//	rawPath:remotePath
//	rawPath:remotePath:configPath
//
// Newer markers are JSON documents whose edition_id gates which fields can be
// trusted. Edition 0 carries no file-list or lifecycle guarantees and is
// compared with the legacy rules; edition 1 compares the full file manifests
// and the lifecycle table. Unknown editions never count as done, forcing a
// redeploy.
package description
