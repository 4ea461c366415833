package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/opiumfinance/lprewards/rewards/pkg/distribution"
	"github.com/opiumfinance/lprewards/rewards/pkg/metrics"
)

// S3API is the subset of the S3 client used to publish.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// NewS3Client builds an S3 client from the default AWS credential chain.
func NewS3Client(ctx context.Context, region string) (*s3.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return s3.NewFromConfig(cfg), nil
}

type S3PublisherConfig struct {
	Logger *slog.Logger
	Client S3API
	Bucket string
	Key    string
}

func (cfg *S3PublisherConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Client == nil {
		return errors.New("s3 client is required")
	}
	if cfg.Bucket == "" {
		return errors.New("bucket is required")
	}
	if cfg.Key == "" {
		cfg.Key = "rewards/users.json"
	}
	return nil
}

// S3Publisher uploads the rendered reward table as one JSON document.
type S3Publisher struct {
	log *slog.Logger
	cfg S3PublisherConfig
}

func NewS3Publisher(cfg S3PublisherConfig) (*S3Publisher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &S3Publisher{
		log: cfg.Logger,
		cfg: cfg,
	}, nil
}

// Publish overwrites the configured object with users encoded as a JSON array.
func (p *S3Publisher) Publish(ctx context.Context, users []distribution.User) (err error) {
	defer func() {
		metrics.RecordPublish("s3", err)
	}()

	if users == nil {
		users = []distribution.User{}
	}
	body, err := json.Marshal(users)
	if err != nil {
		return fmt.Errorf("failed to marshal users: %w", err)
	}

	_, err = p.cfg.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.cfg.Bucket),
		Key:         aws.String(p.cfg.Key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to put s3://%s/%s: %w", p.cfg.Bucket, p.cfg.Key, err)
	}

	p.log.Info("publish: uploaded rewards", "bucket", p.cfg.Bucket, "key", p.cfg.Key, "users", len(users), "bytes", len(body))
	return nil
}
