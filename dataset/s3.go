package dataset

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// DefaultRegion is used when neither the URI nor the environment names one.
const DefaultRegion = "us-east-1"

// S3Config locates an S3 compatible hub.
type S3Config struct {
	Bucket string
	Prefix string
	// Endpoint overrides the AWS endpoint and switches to path style
	// addressing, as MinIO and most compatible stores expect.
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
}

// S3Store keeps objects in a bucket below an optional prefix.
type S3Store struct {
	client *s3.Client
	bucket string
	prefix string
	logger *slog.Logger
}

var _ Store = (*S3Store)(nil)

// NewS3Store builds a client from the default AWS configuration chain.
// Static credentials in cfg take precedence over the chain.
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("%w: missing bucket", ErrInvalidURI)
	}
	var loadOpts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	if awsCfg.Region == "" {
		awsCfg.Region = DefaultRegion
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	})
	return &S3Store{
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
		logger: slog.Default().With("component", "s3-store", "bucket", cfg.Bucket),
	}, nil
}

func (s *S3Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.prefix + key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("%w: s3://%s/%s%s", ErrNotFound, s.bucket, s.prefix, key)
		}
		return nil, err
	}
	return out.Body, nil
}

func (s *S3Store) Put(ctx context.Context, key string, data []byte, private bool) error {
	acl := types.ObjectCannedACLPublicRead
	if private {
		acl = types.ObjectCannedACLPrivate
	}
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.prefix + key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String("application/x-ndjson"),
		ACL:           acl,
	})
	if err != nil {
		return err
	}
	s.logger.Debug("object written", "key", s.prefix+key, "bytes", len(data), "acl", acl)
	return nil
}

// Open returns the hub addressed by u.
func Open(ctx context.Context, u *URI) (Hub, error) {
	switch u.Scheme {
	case SchemeFile:
		return NewObjectHub(NewLocalStore(u.Root)), nil
	case SchemeS3:
		store, err := NewS3Store(ctx, S3Config{
			Bucket:    u.Bucket,
			Prefix:    u.Prefix,
			Endpoint:  u.Endpoint,
			Region:    u.Region,
			AccessKey: u.AccessKey,
			SecretKey: u.SecretKey,
		})
		if err != nil {
			return nil, err
		}
		return NewObjectHub(store), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
}
