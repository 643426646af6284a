// Package s3 implements a storage operator (scheme "s3") for Amazon S3 and
// S3-compatible object stores (MinIO, Localstack, Cubbit DS3).
//
// Characteristics:
//   - Range GETs back partial reads; no local caching, every read hits S3
//   - Incremental writes use multipart uploads: finalize is
//     CompleteMultipartUpload, abort is AbortMultipartUpload, so a
//     half-written object is never visible
//   - Rename is emulated as CopyObject + DeleteObject, which is not atomic:
//     a crash in between can leave both keys present
//   - Directories are synthesized from zero-byte "key/" markers and shared
//     key prefixes, the way S3 consoles do
//
// Thread Safety:
// The operator is safe for concurrent use. Concurrent writes to the same
// key are last-write-wins under S3's consistency model.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/stratofs/stratofs/pkg/operator"
)

const (
	// defaultPartSize is the multipart upload part size. S3 requires parts
	// between 5MB and 5GB (except the last).
	defaultPartSize = 10 * 1024 * 1024

	minPartSize = 5 * 1024 * 1024
	maxPartSize = 5 * 1024 * 1024 * 1024
)

// Config configures the S3 operator.
type Config struct {
	// Client is the configured S3 client.
	Client *s3.Client

	// Bucket is the bucket name. Required; the bucket must exist.
	Bucket string

	// KeyPrefix is prepended to every object key.
	KeyPrefix string

	// PartSize is the multipart upload part size. Defaults to 10MB.
	PartSize int64
}

// Operator is the S3-backed operator bound to one bucket.
type Operator struct {
	client   *s3.Client
	bucket   string
	prefix   string
	partSize int64
}

// New verifies bucket access and returns an operator bound to it. The
// HeadBucket probe is the construction-time connectivity check; it surfaces
// bad credentials and missing buckets before any I/O is dispatched.
func New(ctx context.Context, cfg Config) (*Operator, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if cfg.Client == nil {
		return nil, fmt.Errorf("s3 operator: client is required: %w", operator.ErrInvalidConfig)
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 operator: bucket is required: %w", operator.ErrInvalidConfig)
	}

	partSize := cfg.PartSize
	if partSize == 0 {
		partSize = defaultPartSize
	}
	if partSize < minPartSize || partSize > maxPartSize {
		return nil, fmt.Errorf("s3 operator: part size %d outside 5MB..5GB: %w", partSize, operator.ErrInvalidConfig)
	}

	_, err := cfg.Client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(cfg.Bucket)})
	if err != nil {
		return nil, fmt.Errorf("s3 operator: access bucket %q: %v: %w", cfg.Bucket, err, operator.ErrBackendUnavailable)
	}

	return &Operator{
		client:   cfg.Client,
		bucket:   cfg.Bucket,
		prefix:   cfg.KeyPrefix,
		partSize: partSize,
	}, nil
}

// Scheme returns "s3".
func (o *Operator) Scheme() string { return "s3" }

func (o *Operator) objectKey(key string) string {
	return o.prefix + key
}

// Stat returns object metadata via HeadObject, falling back to a one-entry
// listing to synthesize directories from shared prefixes.
func (o *Operator) Stat(ctx context.Context, key string) (*operator.Metadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if key == "" {
		return &operator.Metadata{Key: "", IsDir: true}, nil
	}

	head, err := o.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(o.bucket),
		Key:    aws.String(o.objectKey(key)),
	})
	if err == nil {
		m := &operator.Metadata{
			Key:   key,
			Size:  aws.ToInt64(head.ContentLength),
			IsDir: strings.HasSuffix(key, "/"),
			ETag:  strings.Trim(aws.ToString(head.ETag), `"`),
		}
		if head.LastModified != nil {
			m.Modified = *head.LastModified
		}
		return m, nil
	}
	if mapped := mapError(key, err); !operator.IsNotFound(mapped) {
		return nil, mapped
	}

	// No object under the exact key: synthesize a directory if anything
	// is nested under it.
	dir := operator.DirKey(key)
	out, err := o.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(o.bucket),
		Prefix:  aws.String(o.objectKey(dir)),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return nil, mapError(key, err)
	}
	if aws.ToInt32(out.KeyCount) > 0 {
		return &operator.Metadata{Key: dir, IsDir: true}, nil
	}

	return nil, fmt.Errorf("key %q: %w", key, operator.ErrNotFound)
}

// ReadRange issues a ranged GetObject; negative length reads to end.
func (o *Operator) ReadRange(ctx context.Context, key string, offset, length int64) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if offset < 0 {
		return nil, fmt.Errorf("offset %d: %w", offset, operator.ErrInvalidArgument)
	}
	if strings.HasSuffix(key, "/") {
		return nil, fmt.Errorf("key %q: %w", key, operator.ErrIsADirectory)
	}

	input := &s3.GetObjectInput{
		Bucket: aws.String(o.bucket),
		Key:    aws.String(o.objectKey(key)),
	}
	if offset > 0 || length >= 0 {
		if length >= 0 {
			if length == 0 {
				return []byte{}, nil
			}
			input.Range = aws.String(fmt.Sprintf("bytes=%d-%d", offset, offset+length-1))
		} else {
			input.Range = aws.String(fmt.Sprintf("bytes=%d-", offset))
		}
	}

	out, err := o.client.GetObject(ctx, input)
	if err != nil {
		// A range starting at or past EOF is not an error by contract.
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "InvalidRange" {
			return []byte{}, nil
		}
		return nil, mapError(key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", key, err)
	}
	return data, nil
}

// Write uploads data with PutObject. Append has no S3 primitive and is
// emulated with read-modify-write; large append workloads belong on a
// backend with native append.
func (o *Operator) Write(ctx context.Context, key string, data []byte, appendTo bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if key == "" || strings.HasSuffix(key, "/") {
		return fmt.Errorf("key %q: %w", key, operator.ErrIsADirectory)
	}

	payload := data
	if appendTo {
		prev, err := o.ReadRange(ctx, key, 0, -1)
		if err != nil && !operator.IsNotFound(err) {
			return err
		}
		if len(prev) > 0 {
			payload = append(prev, data...)
		}
	}

	_, err := o.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(o.bucket),
		Key:    aws.String(o.objectKey(key)),
		Body:   bytes.NewReader(payload),
	})
	return mapError(key, err)
}

// List pages through ListObjectsV2 lazily. Non-recursive listings use the
// "/" delimiter so S3 collapses deeper keys into CommonPrefixes.
func (o *Operator) List(ctx context.Context, prefix string, recursive bool) (operator.ObjectIterator, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(o.bucket),
		Prefix: aws.String(o.objectKey(prefix)),
	}
	if !recursive {
		input.Delimiter = aws.String("/")
	}

	return &listIterator{
		op:        o,
		prefix:    prefix,
		paginator: s3.NewListObjectsV2Paginator(o.client, input),
	}, nil
}

// Delete removes key with DeleteObject, which S3 defines as idempotent.
func (o *Operator) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := o.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(o.bucket),
		Key:    aws.String(o.objectKey(key)),
	})
	return mapError(key, err)
}

// CreateDir writes a zero-byte "key/" marker object. Idempotent.
func (o *Operator) CreateDir(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := operator.DirKey(key)
	if dir == "" {
		return nil
	}
	_, err := o.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(o.bucket),
		Key:    aws.String(o.objectKey(dir)),
		Body:   bytes.NewReader(nil),
	})
	return mapError(key, err)
}

// Rename is emulated as copy-then-delete. Not atomic: a failure between the
// two steps leaves both keys present.
func (o *Operator) Rename(ctx context.Context, src, dst string) error {
	if err := o.Copy(ctx, src, dst); err != nil {
		return err
	}
	return o.Delete(ctx, src)
}

// Copy uses the native server-side CopyObject primitive.
func (o *Operator) Copy(ctx context.Context, src, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	source := url.PathEscape(o.bucket + "/" + o.objectKey(src))
	_, err := o.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(o.bucket),
		Key:        aws.String(o.objectKey(dst)),
		CopySource: aws.String(source),
	})
	return mapError(src, err)
}

// Close is a no-op; the SDK client holds no per-operator resources.
func (o *Operator) Close(ctx context.Context) error { return nil }

// listIterator walks ListObjectsV2 pages on demand.
type listIterator struct {
	op        *Operator
	prefix    string
	paginator *s3.ListObjectsV2Paginator
	pending   []*operator.Metadata
}

func (it *listIterator) Next(ctx context.Context) (*operator.Metadata, error) {
	for len(it.pending) == 0 {
		if !it.paginator.HasMorePages() {
			return nil, operator.ErrIteratorDone
		}
		page, err := it.paginator.NextPage(ctx)
		if err != nil {
			return nil, mapError(it.prefix, err)
		}
		it.pending = it.op.pageEntries(it.prefix, page)
	}
	m := it.pending[0]
	it.pending = it.pending[1:]
	return m, nil
}

func (o *Operator) pageEntries(prefix string, page *s3.ListObjectsV2Output) []*operator.Metadata {
	entries := make([]*operator.Metadata, 0, len(page.Contents)+len(page.CommonPrefixes))

	for _, obj := range page.Contents {
		key := strings.TrimPrefix(aws.ToString(obj.Key), o.prefix)
		if key == prefix {
			// The prefix's own directory marker is not a child.
			continue
		}
		m := &operator.Metadata{
			Key:   key,
			IsDir: strings.HasSuffix(key, "/"),
			ETag:  strings.Trim(aws.ToString(obj.ETag), `"`),
		}
		if !m.IsDir {
			m.Size = aws.ToInt64(obj.Size)
		}
		if obj.LastModified != nil {
			m.Modified = *obj.LastModified
		}
		entries = append(entries, m)
	}

	for _, cp := range page.CommonPrefixes {
		key := strings.TrimPrefix(aws.ToString(cp.Prefix), o.prefix)
		entries = append(entries, &operator.Metadata{Key: key, IsDir: true})
	}

	return entries
}

// mapError translates S3/Smithy failures into the shared taxonomy. No
// backend-specific error type crosses above this point.
func mapError(key string, err error) error {
	if err == nil {
		return nil
	}

	var noSuchKey *s3types.NoSuchKey
	var noBucket *s3types.NoSuchBucket
	if errors.As(err, &noSuchKey) || errors.As(err, &noBucket) {
		return fmt.Errorf("key %q: %w", key, operator.ErrNotFound)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NoSuchBucket", "NotFound":
			return fmt.Errorf("key %q: %w", key, operator.ErrNotFound)
		case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
			return fmt.Errorf("key %q: %w", key, operator.ErrPermissionDenied)
		case "BucketAlreadyExists", "BucketAlreadyOwnedByYou":
			return fmt.Errorf("key %q: %w", key, operator.ErrAlreadyExists)
		case "SlowDown", "ServiceUnavailable", "InternalError", "RequestTimeout", "Throttling":
			return fmt.Errorf("key %q: %v: %w", key, err, operator.ErrTransient)
		case "InvalidArgument", "InvalidRequest":
			return fmt.Errorf("key %q: %v: %w", key, err, operator.ErrInvalidArgument)
		}
	}

	return fmt.Errorf("key %q: %w", key, err)
}
