// Package storage ships cart database backups to and from S3.
package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	stderrors "errors"
	"io"
	"log/slog"
	"os"
	"path"
	"strings"
	"time"

	"github.com/artfolio/cartstore/pkg/errors"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// API is the subset of the S3 client used for backups.
type API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Client provides S3 storage operations
type Client struct {
	s3Client API
	bucket   string
}

// NewClient creates an S3 client. With anonymous set, requests are unsigned
// (public buckets); otherwise the default credential chain is used.
func NewClient(ctx context.Context, bucket, region string, anonymous bool) (*Client, error) {
	if strings.TrimSpace(bucket) == "" {
		return nil, errors.New(errors.KindInvalidArgument, "s3 bucket is required")
	}
	slog.Info("s3_client_init", "bucket", bucket, "region", region, "anonymous", anonymous)

	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if anonymous {
		opts = append(opts, config.WithCredentialsProvider(aws.AnonymousCredentials{}))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		slog.Error("aws_config_load_failed", "error", err)
		return nil, errors.Wrap(err, "failed to load AWS config")
	}

	return NewClientFromAPI(s3.NewFromConfig(cfg), bucket), nil
}

// NewClientFromAPI wraps an existing S3 API implementation.
func NewClientFromAPI(api API, bucket string) *Client {
	return &Client{
		s3Client: api,
		bucket:   bucket,
	}
}

// BackupKey names a backup object: <prefix>/<UTC timestamp>.db.
func BackupKey(prefix string, at time.Time) string {
	return path.Join(strings.Trim(prefix, "/"), at.UTC().Format("20060102T150405Z")+".db")
}

// TransferResult contains transfer metadata
type TransferResult struct {
	Key       string
	LocalPath string
	SHA256    string
	Size      int64
}

// Upload streams a local file to s3Key and returns its SHA256.
func (c *Client) Upload(ctx context.Context, localPath, s3Key string) (*TransferResult, error) {
	slog.Info("s3_upload_start", "bucket", c.bucket, "s3_key", s3Key, "local_path", localPath)

	checksum, size, err := fileChecksum(localPath)
	if err != nil {
		slog.Error("local_file_read_failed", "path", localPath, "error", err)
		return nil, errors.Wrap(err, "failed to read local file")
	}

	f, err := os.Open(localPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open local file")
	}
	defer f.Close()

	_, err = c.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.bucket),
		Key:           aws.String(s3Key),
		Body:          f,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String("application/vnd.sqlite3"),
		Metadata:      map[string]string{"sha256": checksum},
	})
	if err != nil {
		slog.Error("s3_put_object_failed", "s3_key", s3Key, "error", err)
		return nil, errors.Wrap(err, "failed to put object to S3")
	}

	slog.Info("s3_upload_complete", "s3_key", s3Key, "size", size, "sha256", checksum[:16]+"...")

	return &TransferResult{Key: s3Key, LocalPath: localPath, SHA256: checksum, Size: size}, nil
}

// Download downloads an object from S3 and computes SHA256
func (c *Client) Download(ctx context.Context, s3Key, localPath string) (*TransferResult, error) {
	slog.Info("s3_download_start", "bucket", c.bucket, "s3_key", s3Key)

	result, err := c.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(s3Key),
	})
	if err != nil {
		slog.Error("s3_get_object_failed", "s3_key", s3Key, "error", err)
		return nil, errors.Wrap(err, "failed to get object from S3")
	}
	defer result.Body.Close()

	f, err := os.Create(localPath)
	if err != nil {
		slog.Error("local_file_creation_failed", "path", localPath, "error", err)
		return nil, errors.Wrap(err, "failed to create local file")
	}
	defer f.Close()

	hash := sha256.New()
	size, err := io.Copy(io.MultiWriter(f, hash), result.Body)
	if err != nil {
		slog.Error("s3_download_failed", "s3_key", s3Key, "error", err)
		return nil, errors.Wrap(err, "failed to download file")
	}
	if err := f.Sync(); err != nil {
		return nil, errors.Wrap(err, "failed to flush local file")
	}

	checksum := hex.EncodeToString(hash.Sum(nil))
	if want := result.Metadata["sha256"]; want != "" && want != checksum {
		slog.Error("s3_checksum_mismatch", "s3_key", s3Key, "expected", want, "actual", checksum)
		return nil, errors.Newf(errors.KindInvalidArgument, "checksum mismatch for %s", s3Key)
	}

	slog.Info("s3_download_complete",
		"s3_key", s3Key,
		"size", size,
		"local_path", localPath,
		"sha256", checksum[:16]+"...",
	)

	return &TransferResult{Key: s3Key, LocalPath: localPath, SHA256: checksum, Size: size}, nil
}

// ListObjects lists all objects in the bucket with a given prefix
func (c *Client) ListObjects(ctx context.Context, prefix string) ([]string, error) {
	slog.Info("s3_list_start", "bucket", c.bucket, "prefix", prefix)

	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(c.bucket),
		Prefix: aws.String(prefix),
	}

	var keys []string
	paginator := s3.NewListObjectsV2Paginator(c.s3Client, input)

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			slog.Error("s3_list_failed", "prefix", prefix, "error", err)
			return nil, errors.Wrap(err, "failed to list objects")
		}

		for _, obj := range page.Contents {
			if obj.Key != nil {
				keys = append(keys, *obj.Key)
			}
		}
	}

	slog.Info("s3_list_complete", "prefix", prefix, "object_count", len(keys))

	return keys, nil
}

// Exists checks if an object exists in S3
func (c *Client) Exists(ctx context.Context, s3Key string) (bool, error) {
	_, err := c.s3Client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(s3Key),
	})
	if err != nil {
		var notFound *types.NotFound
		if stderrors.As(err, &notFound) {
			slog.Info("s3_object_not_found", "s3_key", s3Key)
			return false, nil
		}
		slog.Error("s3_head_object_failed", "s3_key", s3Key, "error", err)
		return false, errors.Wrap(err, "failed to check object existence")
	}

	slog.Info("s3_object_exists", "s3_key", s3Key)
	return true, nil
}

func fileChecksum(localPath string) (string, int64, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	hash := sha256.New()
	size, err := io.Copy(hash, f)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(hash.Sum(nil)), size, nil
}
