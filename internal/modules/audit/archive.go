package audit

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// ErrArchiveDisabled is returned by NewS3Archiver when no bucket is configured.
var ErrArchiveDisabled = errors.New("audit archive not configured")

// Uploader is the subset of manager.Uploader the archiver uses.
type Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// ArchiveConfig points the archiver at an S3-compatible bucket.
type ArchiveConfig struct {
	Bucket          string
	Prefix          string
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// Archiver copies audit records to object storage.
type Archiver struct {
	uploader Uploader
	bucket   string
	prefix   string
	log      zerolog.Logger
}

// NewArchiver creates an archiver over an existing uploader.
func NewArchiver(uploader Uploader, bucket, prefix string, log zerolog.Logger) *Archiver {
	return &Archiver{
		uploader: uploader,
		bucket:   bucket,
		prefix:   prefix,
		log:      log.With().Str("service", "audit_archive").Logger(),
	}
}

// NewS3Archiver builds an archiver backed by aws-sdk-go-v2. A custom endpoint
// (R2, MinIO) switches to path-style addressing.
func NewS3Archiver(ctx context.Context, cfg ArchiveConfig, log zerolog.Logger) (*Archiver, error) {
	if cfg.Bucket == "" {
		return nil, ErrArchiveDisabled
	}

	region := cfg.Region
	if region == "" {
		region = "auto"
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load S3 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return NewArchiver(manager.NewUploader(client), cfg.Bucket, cfg.Prefix, log), nil
}

// Key returns the object key a record is archived under.
func (a *Archiver) Key(rec Record) string {
	return path.Join(a.prefix, rec.DealID, rec.ID+".msgpack")
}

// Archive uploads a record, payload included, and returns its object key.
func (a *Archiver) Archive(ctx context.Context, rec Record) (string, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetSortMapKeys(true)
	if err := enc.Encode(rec); err != nil {
		return "", fmt.Errorf("failed to encode audit record %s: %w", rec.ID, err)
	}

	key := a.Key(rec)
	_, err := a.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/msgpack"),
		Metadata: map[string]string{
			"snapshot-hash": rec.SnapshotHash,
			"deal-id":       rec.DealID,
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload audit record %s: %w", rec.ID, err)
	}

	a.log.Info().
		Str("id", rec.ID).
		Str("key", key).
		Int("size_bytes", buf.Len()).
		Msg("Audit record archived")
	return key, nil
}

// DecodeArchived unpacks an object written by Archive.
func DecodeArchived(data []byte) (Record, error) {
	var rec Record
	if err := msgpack.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("failed to decode archived audit record: %w", err)
	}
	return rec, nil
}
