package s3

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"hash/crc32"
	"io"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// UploadConfig tunes streaming uploads of deployed files.
type UploadConfig struct {
	// PartSize is the multipart part size. Default 16MiB.
	PartSize int64
	// Concurrency is the number of parts uploaded in parallel. Default 4.
	Concurrency int
	// Checksum sends CRC32C checksums with every upload.
	Checksum bool
}

// DefaultUploadConfig returns the upload settings used by NewStore.
func DefaultUploadConfig() UploadConfig {
	return UploadConfig{PartSize: 16 << 20, Concurrency: 4, Checksum: true}
}

func newUploader(client Client, cfg UploadConfig) *manager.Uploader {
	return manager.NewUploader(client, func(u *manager.Uploader) {
		if cfg.PartSize > 0 {
			u.PartSize = cfg.PartSize
		}
		if cfg.Concurrency > 0 {
			u.Concurrency = cfg.Concurrency
		}
	})
}

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// crc32cBase64 returns the CRC32C of data in the encoding S3 expects.
func crc32cBase64(data []byte) string {
	sum := binary.BigEndian.AppendUint32(nil, crc32.Checksum(data, castagnoli))
	return base64.StdEncoding.EncodeToString(sum)
}

func (s *Store) putObject(ctx context.Context, key string, data []byte) error {
	in := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	}
	if s.upload.Checksum {
		in.ChecksumCRC32C = aws.String(crc32cBase64(data))
	}
	_, err := s.client.PutObject(ctx, in)
	return err
}

// uploadWriter pipes writes into a background upload. The object appears
// only when Close returns nil; Abort cancels the upload and the uploader
// removes any parts already sent.
type uploadWriter struct {
	pw     *io.PipeWriter
	cancel context.CancelFunc
	result chan error

	once sync.Once
	err  error
}

func (s *Store) startUpload(ctx context.Context, key string) *uploadWriter {
	pr, pw := io.Pipe()
	ctx, cancel := context.WithCancel(ctx)
	w := &uploadWriter{pw: pw, cancel: cancel, result: make(chan error, 1)}

	in := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   pr,
	}
	if s.upload.Checksum {
		in.ChecksumAlgorithm = types.ChecksumAlgorithmCrc32c
	}
	go func() {
		_, err := s.uploader.Upload(ctx, in)
		_ = pr.CloseWithError(err)
		w.result <- err
	}()
	return w
}

func (w *uploadWriter) Write(p []byte) (int, error) {
	return w.pw.Write(p)
}

// Sync is a no-op: nothing is visible before Close.
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

func (w *uploadWriter) Abort() error {
	w.once.Do(func() {
		w.cancel()
		_ = w.pw.CloseWithError(context.Canceled)
		<-w.result
		w.err = context.Canceled
	})
	return nil
}
