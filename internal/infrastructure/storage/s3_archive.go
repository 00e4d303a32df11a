// Package storage archives generated receipt documents and signs
// time-limited links to them.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	infraconfig "github.com/erp/ledger/internal/infrastructure/config"
	"go.uber.org/zap"
)

const defaultLinkTTL = 24 * time.Hour

// ErrKeyRequired is returned for operations without an object key
var ErrKeyRequired = errors.New("storage key is required")

// Object is a document to archive
type Object struct {
	Key         string
	Data        []byte
	ContentType string
	// FileName is the attachment name browsers save the download as
	FileName string
	// Metadata is stored as x-amz-meta-* headers
	Metadata map[string]string
}

// Link is a signed, expiring download URL
type Link struct {
	URL       string
	ExpiresAt time.Time
}

// S3Archive keeps receipts in any S3 compatible service (AWS S3, MinIO).
type S3Archive struct {
	client    *s3.Client
	presigner *s3.PresignClient
	bucket    string
	linkTTL   time.Duration
	logger    *zap.Logger
}

// S3ArchiveOption configures an S3Archive
type S3ArchiveOption func(*S3Archive)

// WithLogger sets the archive logger
func WithLogger(logger *zap.Logger) S3ArchiveOption {
	return func(a *S3Archive) {
		a.logger = logger
	}
}

// WithLinkTTL overrides the configured link lifetime
func WithLinkTTL(d time.Duration) S3ArchiveOption {
	return func(a *S3Archive) {
		a.linkTTL = d
	}
}

// NewS3Archive creates an S3Archive from configuration
func NewS3Archive(cfg *infraconfig.StorageConfig, opts ...S3ArchiveOption) (*S3Archive, error) {
	if cfg == nil {
		return nil, errors.New("storage configuration is required")
	}
	switch {
	case cfg.Bucket == "":
		return nil, errors.New("storage bucket is required")
	case cfg.AccessKey == "":
		return nil, errors.New("storage access key is required")
	case cfg.SecretKey == "":
		return nil, errors.New("storage secret key is required")
	}

	endpoint, err := normalizeEndpoint(cfg.Endpoint)
	if err != nil {
		return nil, err
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	awsCfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion(region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	archive := &S3Archive{
		client:    client,
		presigner: s3.NewPresignClient(client),
		bucket:    cfg.Bucket,
		linkTTL:   cfg.PresignExpiration,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(archive)
	}
	if archive.linkTTL <= 0 {
		archive.linkTTL = defaultLinkTTL
	}
	return archive, nil
}

// normalizeEndpoint defaults bare host:port endpoints to https
func normalizeEndpoint(endpoint string) (string, error) {
	if endpoint == "" {
		return "", nil
	}
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "https://" + endpoint
	}
	if _, err := url.Parse(endpoint); err != nil {
		return "", fmt.Errorf("invalid storage endpoint: %w", err)
	}
	return endpoint, nil
}

// EnsureBucket creates the receipt bucket when it does not exist yet.
func (a *S3Archive) EnsureBucket(ctx context.Context) error {
	_, err := a.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(a.bucket)})
	if err == nil {
		return nil
	}

	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if !errors.As(err, &notFound) && !errors.As(err, &noSuchBucket) {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	a.logger.Info("Creating receipt bucket", zap.String("bucket", a.bucket))
	if _, err := a.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(a.bucket)}); err != nil {
		// another instance won the race
		var owned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &owned) {
			return nil
		}
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

// Put archives obj, replacing any previous version under the same key
func (a *S3Archive) Put(ctx context.Context, obj Object) error {
	if obj.Key == "" {
		return ErrKeyRequired
	}

	input := &s3.PutObjectInput{
		Bucket:        aws.String(a.bucket),
		Key:           aws.String(obj.Key),
		Body:          bytes.NewReader(obj.Data),
		ContentType:   aws.String(obj.ContentType),
		ContentLength: aws.Int64(int64(len(obj.Data))),
		Metadata:      obj.Metadata,
	}
	if obj.FileName != "" {
		input.ContentDisposition = aws.String(attachment(obj.FileName))
	}
	if _, err := a.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("failed to upload %s: %w", obj.Key, err)
	}

	a.logger.Debug("Receipt archived",
		zap.String("bucket", a.bucket),
		zap.String("key", obj.Key),
		zap.Int("bytes", len(obj.Data)))
	return nil
}

// SignedLink presigns a GET for key. A non-empty fileName forces the
// download name; a non-positive ttl uses the configured lifetime.
func (a *S3Archive) SignedLink(ctx context.Context, key, fileName string, ttl time.Duration) (Link, error) {
	if key == "" {
		return Link{}, ErrKeyRequired
	}
	if ttl <= 0 {
		ttl = a.linkTTL
	}

	input := &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	}
	if fileName != "" {
		input.ResponseContentDisposition = aws.String(attachment(fileName))
	}
	req, err := a.presigner.PresignGetObject(ctx, input, s3.WithPresignExpires(ttl))
	if err != nil {
		return Link{}, fmt.Errorf("failed to sign link for %s: %w", key, err)
	}
	return Link{URL: req.URL, ExpiresAt: time.Now().Add(ttl)}, nil
}

// Remove deletes key. Missing keys are not an error.
func (a *S3Archive) Remove(ctx context.Context, key string) error {
	if key == "" {
		return ErrKeyRequired
	}
	if _, err := a.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	}); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// Bucket returns the bucket name
func (a *S3Archive) Bucket() string {
	return a.bucket
}

func attachment(fileName string) string {
	return mime.FormatMediaType("attachment", map[string]string{"filename": fileName})
}
