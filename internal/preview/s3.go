package preview

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/debemdeboas/site-builder/internal/draft"
)

type S3Options struct {
	Bucket          string
	Endpoint        string
	PublicURL       string
	TempPrefix      string
	AssetPrefix     string
	AccessKeyId     string
	AccessKeySecret string
}

type S3Store struct { // implements Store
	client *s3.Client
	opts   S3Options
}

func NewS3Store(ctx context.Context, opts S3Options) (*S3Store, error) {
	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion("auto"),
	}
	if opts.AccessKeyId != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyId, opts.AccessKeySecret, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("error initializing S3 client: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})

	if opts.PublicURL == "" {
		opts.PublicURL = trimSlash(opts.Endpoint) + "/" + opts.Bucket
	}

	return &S3Store{client: client, opts: opts}, nil
}

func (s *S3Store) url(key string) string {
	return trimSlash(s.opts.PublicURL) + "/" + key
}

// key returns the object key behind ref, or false when ref does not point into
// this bucket.
func (s *S3Store) key(ref string) (string, bool) {
	prefix := trimSlash(s.opts.PublicURL) + "/"
	if !strings.HasPrefix(ref, prefix) {
		return "", false
	}
	return strings.TrimPrefix(ref, prefix), true
}

func (s *S3Store) Create(ctx context.Context, contentType string, data []byte) (*draft.Handle, error) {
	key := s.opts.TempPrefix + uuid.New().String() + extensionFor(contentType)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.opts.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return nil, fmt.Errorf("error uploading preview: %w", err)
	}

	previewLogger.Debug().Str("bucket", s.opts.Bucket).Str("key", key).Msg("Preview uploaded")

	return draft.NewHandle(s.url(key), func() error {
		// The session may be discarded long after the request that created
		// the preview has finished.
		return s.delete(context.Background(), key)
	}), nil
}

// Promote copies a temporary preview under the asset prefix. The temporary
// object stays until the promotion is finished or the session discarded.
func (s *S3Store) Promote(ctx context.Context, ref string) (string, error) {
	key, ok := s.key(ref)
	if !ok || !strings.HasPrefix(key, s.opts.TempPrefix) {
		return ref, nil
	}

	assetKey := s.opts.AssetPrefix + path.Base(key)
	_, err := s.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(s.opts.Bucket),
		CopySource: aws.String(s.opts.Bucket + "/" + key),
		Key:        aws.String(assetKey),
	})
	if err != nil {
		return "", fmt.Errorf("error promoting preview %s: %w", key, err)
	}

	previewLogger.Info().Str("key", assetKey).Msg("Preview promoted")
	return s.url(assetKey), nil
}

func (s *S3Store) Remove(ctx context.Context, ref string) error {
	key, ok := s.key(ref)
	if !ok {
		return nil
	}
	return s.delete(ctx, key)
}

func (s *S3Store) delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.opts.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("error deleting preview %s: %w", key, err)
	}
	previewLogger.Debug().Str("key", key).Msg("Preview deleted")
	return nil
}
