// Package s3 keeps chunk payloads in an S3 compatible bucket.
package s3

import (
	"bytes"
	"context"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"

	"mosaicod/internal/domain/ports"
)

var _ ports.ChunkStore = (*Store)(nil)

// Config configures the bucket access
type Config struct {
	Bucket   string `yaml:"bucket" env:"S3_BUCKET"`
	Region   string `yaml:"region" env:"S3_REGION" env-default:"us-east-1"`
	Endpoint string `yaml:"endpoint" env:"S3_ENDPOINT"`
	// Static credentials, the default AWS chain is used when empty
	AccessKeyID     string `yaml:"access-key-id" env:"S3_ACCESS_KEY_ID"`
	SecretAccessKey string `yaml:"secret-access-key" env:"S3_SECRET_ACCESS_KEY"`
	Prefix          string `yaml:"prefix" env:"S3_PREFIX"`
	UsePathStyle    bool   `yaml:"use-path-style" env:"S3_USE_PATH_STYLE"`
	// MaxElapsedTime bounds retries of a single operation
	MaxElapsedTime time.Duration `yaml:"max-elapsed-time" env:"S3_MAX_ELAPSED_TIME" env-default:"30s"`
}

// API is the subset of the S3 client used by the store
type API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	s3.ListObjectsV2APIClient
}

// Store is an S3 ports.ChunkStore
type Store struct {
	client API
	config Config
}

// NewStore loads the AWS configuration and builds the client
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("bucket is required")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load AWS config")
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = cfg.UsePathStyle
		})
	}
	return NewStoreWithClient(s3.NewFromConfig(awsCfg, s3Opts...), cfg), nil
}

// NewStoreWithClient builds a store over an existing client
func NewStoreWithClient(client API, cfg Config) *Store {
	return &Store{client: client, config: cfg}
}

func (s *Store) retry(ctx context.Context, op func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 100 * time.Millisecond
	bo.MaxInterval = 5 * time.Second
	bo.MaxElapsedTime = s.config.MaxElapsedTime
	return backoff.Retry(op, backoff.WithContext(bo, ctx))
}

func isNotFound(err error) bool {
	var nsk *s3types.NoSuchKey
	var nf *s3types.NotFound
	return errors.As(err, &nsk) || errors.As(err, &nf)
}

// Put uploads the payload
func (s *Store) Put(ctx context.Context, key string, payload []byte) error {
	return s.retry(ctx, func() error {
		_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(s.config.Bucket),
			Key:    aws.String(s.config.Prefix + key),
			Body:   bytes.NewReader(payload),
		})
		return errors.Wrapf(err, "S3 put object '%s'", key)
	})
}

// Get downloads the payload
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := s.retry(ctx, func() error {
		resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.config.Bucket),
			Key:    aws.String(s.config.Prefix + key),
		})
		if isNotFound(err) {
			return backoff.Permanent(errors.Wrapf(ports.ErrNotFound, "chunk '%s'", key))
		}
		if err != nil {
			return errors.Wrapf(err, "S3 get object '%s'", key)
		}
		defer resp.Body.Close()
		data, err = io.ReadAll(resp.Body)
		return errors.Wrapf(err, "S3 read body '%s'", key)
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Delete removes the object, S3 deletes are idempotent
func (s *Store) Delete(ctx context.Context, key string) error {
	return s.retry(ctx, func() error {
		_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.config.Bucket),
			Key:    aws.String(s.config.Prefix + key),
		})
		return errors.Wrapf(err, "S3 delete object '%s'", key)
	})
}

// List pages through the bucket, S3 returns keys in lexical order
func (s *Store) List(ctx context.Context, prefix string, consume func(string) error) error {
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.config.Bucket),
		Prefix: aws.String(s.config.Prefix + prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return errors.Wrap(err, "S3 list objects")
		}
		for _, obj := range page.Contents {
			if err := consume(strings.TrimPrefix(aws.ToString(obj.Key), s.config.Prefix)); err != nil {
				return err
			}
		}
	}
	return nil
}

// Close is a no-op
func (s *Store) Close() error {
	return nil
}
