// Package s3 provides the object store client holding deployment snapshots
// and archived logs.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// NotFoundError reports a missing bucket or object. It matches
// fs.ErrNotExist.
type NotFoundError struct {
	Bucket string
	Key    string
}

func (e *NotFoundError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("bucket %s not found", e.Bucket)
	}
	return fmt.Sprintf("object %s not found in bucket %s", e.Key, e.Bucket)
}

func (e *NotFoundError) Is(target error) bool { return target == fs.ErrNotExist }

// Client wraps the S3 client.
type Client struct {
	s3     *s3.Client
	region string
}

// NewClient creates a new S3 client. An empty endpoint uses AWS; any other
// endpoint is addressed path-style. Empty keys fall back to the default
// AWS credential chain.
func NewClient(ctx context.Context, endpoint, region, accessKey, secretKey string) (*Client, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if accessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	return &Client{s3: client, region: region}, nil
}

// BucketExists checks if a bucket exists and is accessible.
func (c *Client) BucketExists(ctx context.Context, bucketName string) (bool, error) {
	_, err := c.s3.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(bucketName),
	})
	if err != nil {
		if isNotFoundError(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check bucket %s: %w", bucketName, err)
	}
	return true, nil
}

// isNotFoundError checks if the error is a not found error.
func isNotFoundError(err error) bool {
	if err == nil {
		return false
	}

	// Check for typed S3 errors first
	var nsb *types.NoSuchBucket
	if errors.As(err, &nsb) {
		return true
	}

	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}

	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}

	// Fall back to API error code checking for S3-compatible services
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchBucket", "NoSuchKey", "404":
			return true
		}
	}

	return false
}

// ListObjects lists every object key under prefix, following pagination.
func (c *Client) ListObjects(ctx context.Context, bucketName, prefix string) ([]string, error) {
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(bucketName),
	}
	if prefix != "" {
		input.Prefix = aws.String(prefix)
	}

	var keys []string
	pages := s3.NewListObjectsV2Paginator(c.s3, input)
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects in bucket %s: %w", bucketName, err)
		}
		for _, obj := range page.Contents {
			if obj.Key != nil {
				keys = append(keys, *obj.Key)
			}
		}
	}
	return keys, nil
}

// PutObject uploads an object to a bucket.
func (c *Client) PutObject(ctx context.Context, bucketName, key string, data []byte) error {
	_, err := c.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucketName),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return fmt.Errorf("failed to put object %s in bucket %s: %w", key, bucketName, err)
	}
	return nil
}

// GetObject downloads an object from a bucket. A missing object is a
// *NotFoundError.
func (c *Client) GetObject(ctx context.Context, bucketName, key string) ([]byte, error) {
	result, err := c.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFoundError(err) {
			return nil, &NotFoundError{Bucket: bucketName, Key: key}
		}
		return nil, fmt.Errorf("failed to get object %s from bucket %s: %w", key, bucketName, err)
	}
	defer func() { _ = result.Body.Close() }()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(result.Body); err != nil {
		return nil, fmt.Errorf("failed to read object body: %w", err)
	}

	return buf.Bytes(), nil
}

// DeleteObject deletes an object from a bucket.
func (c *Client) DeleteObject(ctx context.Context, bucketName, key string) error {
	_, err := c.s3.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object %s from bucket %s: %w", key, bucketName, err)
	}
	return nil
}

// UploadFolder uploads every regular file under dir to prefix, keeping
// relative paths. It returns the number of objects written.
func (c *Client) UploadFolder(ctx context.Context, bucketName, dir, prefix string) (int, error) {
	count := 0
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		// #nosec G304
		data, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", p, err)
		}
		if err := c.PutObject(ctx, bucketName, path.Join(prefix, filepath.ToSlash(rel)), data); err != nil {
			return err
		}
		count++
		return nil
	})
	return count, err
}

// DownloadFolder writes every object under prefix into dir, keeping the
// key path below prefix. It returns the number of objects written.
func (c *Client) DownloadFolder(ctx context.Context, bucketName, prefix, dir string) (int, error) {
	keys, err := c.ListObjects(ctx, bucketName, prefix)
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, &NotFoundError{Bucket: bucketName, Key: prefix}
	}

	root := strings.TrimSuffix(prefix, "/") + "/"
	for i, key := range keys {
		rel := strings.TrimPrefix(key, root)
		if rel == "" || strings.HasSuffix(rel, "/") {
			continue
		}
		target := filepath.Join(dir, filepath.FromSlash(rel))
		if !strings.HasPrefix(target, filepath.Clean(dir)+string(filepath.Separator)) {
			return i, fmt.Errorf("object key %s escapes %s", key, dir)
		}
		data, err := c.GetObject(ctx, bucketName, key)
		if err != nil {
			return i, err
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return i, err
		}
		if err := os.WriteFile(target, data, 0o644); err != nil {
			return i, fmt.Errorf("failed to write %s: %w", target, err)
		}
	}
	return len(keys), nil
}

// DeleteFolder deletes every object under prefix and returns how many
// were removed.
func (c *Client) DeleteFolder(ctx context.Context, bucketName, prefix string) (int, error) {
	keys, err := c.ListObjects(ctx, bucketName, prefix)
	if err != nil {
		return 0, err
	}
	for i, key := range keys {
		if err := c.DeleteObject(ctx, bucketName, key); err != nil {
			return i, err
		}
	}
	return len(keys), nil
}
