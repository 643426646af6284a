//go:build integration
// +build integration

package s3

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/require"

	"github.com/stratofs/stratofs/pkg/operator"
	"github.com/stratofs/stratofs/pkg/operator/optest"
)

// TestS3Operator_Integration runs the full operator conformance suite against
// a real S3-compatible service (Localstack or MinIO).
//
// Prerequisites:
//   - Localstack running on localhost:4566 (or STRATOFS_S3_ENDPOINT set)
//   - Run with: go test -tags=integration ./pkg/operator/s3/...
//
// To start Localstack:
//
//	docker run --rm -p 4566:4566 localstack/localstack
func TestS3Operator_Integration(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t, ctx)

	var bucketSeq int
	suite := &optest.Suite{
		NewOperator: func(t *testing.T) operator.Operator {
			bucketSeq++
			bucket := fmt.Sprintf("stratofs-test-%d", bucketSeq)

			_, err := client.CreateBucket(ctx, &awss3.CreateBucketInput{
				Bucket: aws.String(bucket),
			})
			require.NoError(t, err, "create test bucket")
			t.Cleanup(func() { destroyBucket(ctx, client, bucket) })

			op, err := New(ctx, Config{Client: client, Bucket: bucket})
			require.NoError(t, err)
			return op
		},
	}
	suite.Run(t)
}

// TestS3Operator_MultipartUpload writes enough data to force several parts
// and verifies the assembled object round-trips intact.
func TestS3Operator_MultipartUpload(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t, ctx)

	bucket := "stratofs-multipart-test"
	_, err := client.CreateBucket(ctx, &awss3.CreateBucketInput{Bucket: aws.String(bucket)})
	require.NoError(t, err)
	t.Cleanup(func() { destroyBucket(ctx, client, bucket) })

	op, err := New(ctx, Config{Client: client, Bucket: bucket, PartSize: minPartSize})
	require.NoError(t, err)

	ws, err := op.OpenWriteStream(ctx, "large.bin")
	require.NoError(t, err)

	chunk := make([]byte, 1<<20)
	for i := range chunk {
		chunk[i] = byte(i % 251)
	}
	var total int64
	for i := 0; i < 12; i++ { // 12MB, three 5MB parts worth
		_, err := ws.Write(ctx, chunk)
		require.NoError(t, err)
		total += int64(len(chunk))
	}
	require.NoError(t, ws.Finalize(ctx))

	meta, err := op.Stat(ctx, "large.bin")
	require.NoError(t, err)
	require.Equal(t, total, meta.Size)

	head, err := op.ReadRange(ctx, "large.bin", 0, 16)
	require.NoError(t, err)
	require.Equal(t, chunk[:16], head)

	tail, err := op.ReadRange(ctx, "large.bin", total-16, -1)
	require.NoError(t, err)
	require.Equal(t, chunk[len(chunk)-16:], tail)
}

func newTestClient(t *testing.T, ctx context.Context) *awss3.Client {
	t.Helper()

	endpoint := os.Getenv("STRATOFS_S3_ENDPOINT")
	if endpoint == "" {
		endpoint = "http://localhost:4566"
	}

	cfg, err := awsConfig.LoadDefaultConfig(ctx,
		awsConfig.WithRegion("us-east-1"),
		awsConfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			"test", "test", "",
		)),
	)
	require.NoError(t, err, "load AWS config")

	return awss3.NewFromConfig(cfg, func(o *awss3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})
}

func destroyBucket(ctx context.Context, client *awss3.Client, bucket string) {
	listResp, _ := client.ListObjectsV2(ctx, &awss3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
	})
	if listResp != nil {
		for _, obj := range listResp.Contents {
			client.DeleteObject(ctx, &awss3.DeleteObjectInput{
				Bucket: aws.String(bucket),
				Key:    obj.Key,
			})
		}
	}
	client.DeleteBucket(ctx, &awss3.DeleteBucketInput{Bucket: aws.String(bucket)})
}
