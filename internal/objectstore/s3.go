package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/cenkalti/backoff/v5"
)

const (
	// DefaultMultipartThreshold is the size above which uploads are split into parts.
	DefaultMultipartThreshold int64 = 5 * 1024 * 1024

	// DefaultUploadAttempts bounds whole-object upload retries.
	DefaultUploadAttempts = 3

	defaultRetryStep = time.Second
	contentTypeZip   = "application/zip"
)

// S3Options configures the S3 storage backend.
type S3Options struct {
	Bucket   string
	Region   string
	Endpoint string
	// PublicBaseURL, when set, prefixes returned object URLs instead of the S3 URL.
	PublicBaseURL      string
	UsePathStyle       bool
	MultipartThreshold int64
	AccessKeyID        string
	SecretAccessKey    string
	// RetryStep is the linear backoff increment between upload attempts.
	RetryStep time.Duration
}

type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

type multipartUploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3 stores objects in an S3-compatible bucket.
type S3 struct {
	client    s3API
	uploader  multipartUploader
	opts      S3Options
	retryStep time.Duration
}

var _ Storage = (*S3)(nil)

// NewS3 builds an S3 storage from the default AWS credential chain, or from
// static credentials when both keys are set.
func NewS3(ctx context.Context, opts S3Options) (*S3, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("object store bucket is required")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{}
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	if opts.Region == "" {
		opts.Region = cfg.Region
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.UsePathStyle
	})

	return newS3(client, opts), nil
}

func newS3(client s3API, opts S3Options) *S3 {
	if opts.MultipartThreshold < manager.MinUploadPartSize {
		opts.MultipartThreshold = DefaultMultipartThreshold
	}
	step := opts.RetryStep
	if step <= 0 {
		step = defaultRetryStep
	}

	var uploader multipartUploader
	if c, ok := client.(manager.UploadAPIClient); ok {
		uploader = manager.NewUploader(c, func(u *manager.Uploader) {
			u.PartSize = opts.MultipartThreshold
		})
	}

	return &S3{client: client, uploader: uploader, opts: opts, retryStep: step}
}

// Upload implements Storage. Objects above the multipart threshold go through
// the multipart uploader. The whole upload is retried with linear backoff.
func (s *S3) Upload(ctx context.Context, key string, data []byte) (string, error) {
	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		err := s.put(ctx, key, data)
		if err != nil {
			slog.WarnContext(ctx, "Object upload failed",
				"storage_key", key,
				"attempt", attempt,
				"error", err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(&linearBackOff{step: s.retryStep}),
		backoff.WithMaxTries(DefaultUploadAttempts),
	)
	if err != nil {
		return "", fmt.Errorf("failed to upload %s after %d attempts: %w", key, attempt, err)
	}
	return s.objectURL(key), nil
}

func (s *S3) put(ctx context.Context, key string, data []byte) error {
	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.opts.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentTypeZip),
		ContentLength: aws.Int64(int64(len(data))),
	}

	if int64(len(data)) > s.opts.MultipartThreshold && s.uploader != nil {
		_, err := s.uploader.Upload(ctx, input)
		return err
	}
	_, err := s.client.PutObject(ctx, input)
	return err
}

// Download implements Storage.
func (s *S3) Download(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.opts.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("key %s: %w", key, ErrObjectNotFound)
		}
		return nil, fmt.Errorf("failed to download %s: %w", key, err)
	}
	defer func() {
		if err := out.Body.Close(); err != nil {
			slog.DebugContext(ctx, "Failed to close object body", "storage_key", key, "error", err)
		}
	}()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return data, nil
}

// objectURL prefers the public base URL, then a path-style URL on a custom
// endpoint, then the virtual-hosted S3 URL.
func (s *S3) objectURL(key string) string {
	switch {
	case s.opts.PublicBaseURL != "":
		return PublicURL(s.opts.PublicBaseURL, key)
	case s.opts.Endpoint != "":
		return PublicURL(PublicURL(s.opts.Endpoint, s.opts.Bucket), key)
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.opts.Bucket, s.opts.Region, key)
	}
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode() == "NotFound" || apiErr.ErrorCode() == "NoSuchKey"
	}
	return false
}

// linearBackOff waits step, 2*step, 3*step and so on.
type linearBackOff struct {
	step time.Duration
	n    int
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.n++
	return time.Duration(b.n) * b.step
}

func (b *linearBackOff) Reset() {
	b.n = 0
}
