package snapshot

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Destination receives a finished snapshot.
type Destination interface {
	Name() string
	// Write stores the JSONL payload, replacing any previous snapshot.
	Write(ctx context.Context, data []byte) error
}

// S3Destination writes snapshots to an S3-compatible bucket.
type S3Destination struct {
	client *s3.Client
	bucket string
	key    string
}

// NewS3Destination creates an S3 destination. If endpoint is non-empty,
// path-style addressing is enabled (for MinIO and similar).
func NewS3Destination(ctx context.Context, bucket, key, region, endpoint string) (*S3Destination, error) {
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var s3opts []func(*s3.Options)
	if endpoint != "" {
		s3opts = append(s3opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		})
	}

	return &S3Destination{
		client: s3.NewFromConfig(cfg, s3opts...),
		bucket: bucket,
		key:    key,
	}, nil
}

func (d *S3Destination) Name() string {
	return "s3://" + d.bucket + "/" + d.key
}

// Write uploads data as the configured object key.
func (d *S3Destination) Write(ctx context.Context, data []byte) error {
	_, err := d.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(d.bucket),
		Key:         aws.String(d.key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return fmt.Errorf("s3 put object: %w", err)
	}
	return nil
}

// FileDestination writes snapshots to a local path, replacing it atomically.
type FileDestination struct {
	Path string
}

func (d *FileDestination) Name() string {
	return d.Path
}

func (d *FileDestination) Write(_ context.Context, data []byte) error {
	dir := filepath.Dir(d.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".snapshot-*.jsonl")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), d.Path); err != nil {
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}

// Exporter renders a snapshot and hands it to every destination.
type Exporter struct {
	src          Source
	destinations []Destination
	logger       *slog.Logger
}

// NewExporter creates an Exporter. A nil logger means slog.Default().
func NewExporter(src Source, destinations []Destination, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{src: src, destinations: destinations, logger: logger}
}

// Run performs one export. Destination failures are logged; the first one
// is returned after every destination has been tried.
func (e *Exporter) Run(ctx context.Context) error {
	var buf bytes.Buffer
	if err := ExportJSONL(ctx, e.src, &buf); err != nil {
		e.logger.Error("snapshot export failed", "err", err)
		return err
	}
	data := buf.Bytes()

	var firstErr error
	for _, dest := range e.destinations {
		if err := dest.Write(ctx, data); err != nil {
			e.logger.Error("snapshot destination write failed", "destination", dest.Name(), "err", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	e.logger.Info("snapshot completed", "destinations", len(e.destinations), "bytes", len(data))
	return firstErr
}

// Job adapts Run for the scheduler.
func (e *Exporter) Job(ctx context.Context) {
	_ = e.Run(ctx)
}
