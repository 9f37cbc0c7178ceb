package sandbox

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Archiver offloads an oversized bug stack trace to object storage and
// returns a reference key to store in bug_log in its place, supplementing
// the ring's bounded inline-text capacity without changing its size cap.
type Archiver interface {
	Archive(ctx context.Context, toolID, stack string) (ref string, err error)
}

// noopArchiver is the default Archiver: it never archives, so callers that
// never configure an Archiver keep storing stacks inline (truncated by
// bug_log's own cap) exactly as the unexpanded execute(tool, args) contract
// describes.
type noopArchiver struct{}

func (noopArchiver) Archive(_ context.Context, _, _ string) (string, error) {
	return "", fmt.Errorf("no archiver configured")
}

// s3Archiver uploads oversized stack traces to an S3 bucket, keyed by
// tool ID and a content hash so repeated identical failures dedupe to the
// same object instead of growing the bucket unbounded.
type s3Archiver struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Archiver builds an Archiver backed by client, storing objects under
// prefix/<toolID>/<sha256>.txt in bucket.
func NewS3Archiver(client *s3.Client, bucket, prefix string) Archiver {
	return &s3Archiver{client: client, bucket: bucket, prefix: prefix}
}

func (a *s3Archiver) Archive(ctx context.Context, toolID, stack string) (string, error) {
	sum := sha256.Sum256([]byte(stack))
	key := fmt.Sprintf("%s/%s/%s.txt", a.prefix, toolID, hex.EncodeToString(sum[:]))

	putCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	_, err := a.client.PutObject(putCtx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader([]byte(stack)),
		ContentType: aws.String("text/plain"),
	})
	if err != nil {
		return "", fmt.Errorf("archive stack trace: %w", err)
	}
	return fmt.Sprintf("s3://%s/%s", a.bucket, key), nil
}
