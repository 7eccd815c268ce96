package audit

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUploader struct {
	inputs []*s3.PutObjectInput
	bodies [][]byte
	err    error
}

func (f *fakeUploader) Upload(_ context.Context, input *s3.PutObjectInput, _ ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, err := io.ReadAll(input.Body)
	if err != nil {
		return nil, err
	}
	f.inputs = append(f.inputs, input)
	f.bodies = append(f.bodies, body)
	return &manager.UploadOutput{}, nil
}

func TestArchiver_Archive(t *testing.T) {
	uploader := &fakeUploader{}
	archiver := NewArchiver(uploader, "audit-bucket", "underwriting", zerolog.Nop())
	rec := newFixtureRecord(t, fixtureInput(), recordTime)

	key, err := archiver.Archive(context.Background(), rec)
	require.NoError(t, err)

	assert.Equal(t, "underwriting/deal-1/"+rec.ID+".msgpack", key)
	require.Len(t, uploader.inputs, 1)
	assert.Equal(t, "audit-bucket", aws.ToString(uploader.inputs[0].Bucket))
	assert.Equal(t, key, aws.ToString(uploader.inputs[0].Key))
	assert.Equal(t, rec.SnapshotHash, uploader.inputs[0].Metadata["snapshot-hash"])

	archived, err := DecodeArchived(uploader.bodies[0])
	require.NoError(t, err)
	assert.Equal(t, rec.ID, archived.ID)
	assert.Equal(t, rec.SnapshotHash, archived.SnapshotHash)
	assert.Equal(t, rec.Payload, archived.Payload)
	assert.True(t, rec.CreatedAt.Equal(archived.CreatedAt))
}

func TestArchiver_UploadError(t *testing.T) {
	archiver := NewArchiver(&fakeUploader{err: errors.New("bucket gone")}, "b", "", zerolog.Nop())
	rec := newFixtureRecord(t, fixtureInput(), recordTime)

	_, err := archiver.Archive(context.Background(), rec)
	assert.ErrorContains(t, err, "bucket gone")
}

func TestArchiver_KeyWithoutPrefix(t *testing.T) {
	archiver := NewArchiver(&fakeUploader{}, "b", "", zerolog.Nop())
	assert.Equal(t, "deal-9/r1.msgpack", archiver.Key(Record{ID: "r1", DealID: "deal-9"}))
}

func TestNewS3Archiver_RequiresBucket(t *testing.T) {
	_, err := NewS3Archiver(context.Background(), ArchiveConfig{}, zerolog.Nop())
	assert.ErrorIs(t, err, ErrArchiveDisabled)
}
