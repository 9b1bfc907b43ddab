package export

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"gocloud.dev/blob"
)

type (
	// BucketSink writes a JSON manifest of each batch to blob storage
	BucketSink struct {
		bucket BucketWriter
		prefix string
	}

	// BucketWriter is the subset of *blob.Bucket the sink needs
	BucketWriter interface {
		WriteAll(context.Context, string, []byte, *blob.WriterOptions) error
	}
)

const manifestName = "manifest.json"

var (
	ErrBucketRequired = errors.New("bucket is required")

	_ Sink = (*BucketSink)(nil)
)

// NewBucketSink creates a Sink that writes under prefix
func NewBucketSink(bucket BucketWriter, prefix string) (*BucketSink, error) {
	if bucket == nil {
		return nil, ErrBucketRequired
	}
	return &BucketSink{
		bucket: bucket,
		prefix: prefix,
	}, nil
}

func (s *BucketSink) Name() string {
	return "bucket"
}

func (s *BucketSink) Send(ctx context.Context, b *Batch) error {
	data, err := json.Marshal(b)
	if err != nil {
		return err
	}
	return s.bucket.WriteAll(ctx, ManifestKey(s.prefix, b), data,
		&blob.WriterOptions{ContentType: "application/json"},
	)
}

// ManifestKey is the object key a batch manifest is written to
func ManifestKey(prefix string, b *Batch) string {
	folder := b.FolderName
	if folder == "" {
		folder = b.ID
	}
	key := folder + "/" + manifestName
	if prefix == "" {
		return key
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return prefix + key
}
