package s3

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/stratofs/stratofs/pkg/operator"
)

// OpenWriteStream starts an incremental write to key. Data is buffered into
// parts and shipped with multipart upload; nothing is visible under key until
// Finalize completes the upload. Small writes that never fill one part are
// committed with a single PutObject instead.
func (o *Operator) OpenWriteStream(ctx context.Context, key string) (operator.WriteStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if key == "" || strings.HasSuffix(key, "/") {
		return nil, fmt.Errorf("key %q: %w", key, operator.ErrIsADirectory)
	}

	return &writeStream{
		op:  o,
		key: key,
		buf: &bytes.Buffer{},
	}, nil
}

type writeStream struct {
	op  *Operator
	key string
	buf *bytes.Buffer

	// uploadID is empty until the first part forces a multipart upload.
	uploadID string
	parts    []s3types.CompletedPart
	partNum  int32

	done bool
}

func (w *writeStream) Write(ctx context.Context, p []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if w.done {
		return 0, fmt.Errorf("write stream for %q: %w", w.key, operator.ErrInvalidArgument)
	}

	w.buf.Write(p)
	for int64(w.buf.Len()) >= w.op.partSize {
		if err := w.flushPart(ctx); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

// flushPart ships one full part, starting the multipart upload on first use.
func (w *writeStream) flushPart(ctx context.Context) error {
	if w.uploadID == "" {
		out, err := w.op.client.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
			Bucket: aws.String(w.op.bucket),
			Key:    aws.String(w.op.objectKey(w.key)),
		})
		if err != nil {
			return mapError(w.key, err)
		}
		w.uploadID = aws.ToString(out.UploadId)
	}

	part := w.buf.Next(int(w.op.partSize))
	w.partNum++
	out, err := w.op.client.UploadPart(ctx, &s3.UploadPartInput{
		Bucket:     aws.String(w.op.bucket),
		Key:        aws.String(w.op.objectKey(w.key)),
		UploadId:   aws.String(w.uploadID),
		PartNumber: aws.Int32(w.partNum),
		Body:       bytes.NewReader(part),
	})
	if err != nil {
		return mapError(w.key, err)
	}

	w.parts = append(w.parts, s3types.CompletedPart{
		ETag:       out.ETag,
		PartNumber: aws.Int32(w.partNum),
	})
	return nil
}

// Finalize commits the object. With no multipart upload in flight the buffer
// goes up as one PutObject; otherwise the remainder becomes the last part and
// CompleteMultipartUpload makes the whole object visible atomically.
func (w *writeStream) Finalize(ctx context.Context) error {
	if w.done {
		return nil
	}
	w.done = true

	if w.uploadID == "" {
		_, err := w.op.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(w.op.bucket),
			Key:    aws.String(w.op.objectKey(w.key)),
			Body:   bytes.NewReader(w.buf.Bytes()),
		})
		return mapError(w.key, err)
	}

	if w.buf.Len() > 0 {
		w.partNum++
		out, err := w.op.client.UploadPart(ctx, &s3.UploadPartInput{
			Bucket:     aws.String(w.op.bucket),
			Key:        aws.String(w.op.objectKey(w.key)),
			UploadId:   aws.String(w.uploadID),
			PartNumber: aws.Int32(w.partNum),
			Body:       bytes.NewReader(w.buf.Bytes()),
		})
		if err != nil {
			w.abortUpload(ctx)
			return mapError(w.key, err)
		}
		w.parts = append(w.parts, s3types.CompletedPart{
			ETag:       out.ETag,
			PartNumber: aws.Int32(w.partNum),
		})
		w.buf.Reset()
	}

	_, err := w.op.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:   aws.String(w.op.bucket),
		Key:      aws.String(w.op.objectKey(w.key)),
		UploadId: aws.String(w.uploadID),
		MultipartUpload: &s3types.CompletedMultipartUpload{
			Parts: w.parts,
		},
	})
	if err != nil {
		w.abortUpload(ctx)
		return mapError(w.key, err)
	}
	return nil
}

// Abort discards everything written so far; any uploaded parts are dropped
// server-side and key is left untouched.
func (w *writeStream) Abort(ctx context.Context) error {
	if w.done {
		return nil
	}
	w.done = true
	w.buf.Reset()

	if w.uploadID == "" {
		return nil
	}
	return w.abortUpload(ctx)
}

func (w *writeStream) abortUpload(ctx context.Context) error {
	_, err := w.op.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(w.op.bucket),
		Key:      aws.String(w.op.objectKey(w.key)),
		UploadId: aws.String(w.uploadID),
	})
	return mapError(w.key, err)
}
