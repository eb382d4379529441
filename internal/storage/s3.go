package storage

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/sirupsen/logrus"
)

// PutObjectAPI is the subset of the S3 client used for uploads
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Options configures S3Storage
type S3Options struct {
	Region string
	// BaseURL replaces the default https://<bucket>.s3.<region>.amazonaws.com prefix
	BaseURL    string
	PublicRead bool
}

// S3Storage stores documents in Amazon S3
type S3Storage struct {
	client PutObjectAPI
	opts   S3Options
	logger *logrus.Logger
}

// NewS3Storage creates an S3Storage using an existing client
func NewS3Storage(client PutObjectAPI, opts S3Options, logger *logrus.Logger) *S3Storage {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &S3Storage{client: client, opts: opts, logger: logger}
}

// NewS3StorageFromEnv loads AWS credentials from the default chain (environment, shared config, instance role)
func NewS3StorageFromEnv(ctx context.Context, opts S3Options, logger *logrus.Logger) (*S3Storage, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}
	if opts.Region == "" {
		opts.Region = cfg.Region
	}

	return NewS3Storage(s3.NewFromConfig(cfg), opts, logger), nil
}

// Store uploads the document to bucket/path and returns its URL
func (s *S3Storage) Store(ctx context.Context, in StoreInput) (string, error) {
	key, err := ValidateLocation(in.Bucket, in.Path)
	if err != nil {
		return "", err
	}

	input := &s3.PutObjectInput{
		Bucket:      aws.String(in.Bucket),
		Key:         aws.String(key),
		Body:        in.Body,
		ContentType: aws.String(contentType(in)),
	}
	if s.opts.PublicRead {
		input.ACL = types.ObjectCannedACLPublicRead
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("failed to upload s3://%s/%s: %w", in.Bucket, key, err)
	}

	location, err := s.URL(in.Bucket, key)
	if err != nil {
		return "", err
	}

	s.logger.WithFields(logrus.Fields{
		"bucket": in.Bucket,
		"key":    key,
		"url":    location,
	}).Info("Stored document in S3")

	return location, nil
}

// URL returns the public URL of an object
func (s *S3Storage) URL(bucket, key string) (string, error) {
	if s.opts.BaseURL != "" {
		return joinURL(s.opts.BaseURL, key)
	}
	region := s.opts.Region
	if region == "" {
		region = "us-east-1"
	}
	return joinURL(fmt.Sprintf("https://%s.s3.%s.amazonaws.com", bucket, region), key)
}
