package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ignite/sendgrid-analytics/internal/config"
)

// S3API is the part of the S3 client the archive uses.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// ReportArchive copies generated reports to an S3 bucket.
type ReportArchive struct {
	client S3API
	bucket string
	prefix string
}

// NewReportArchive wraps an S3 client.
func NewReportArchive(client S3API, bucket, prefix string) *ReportArchive {
	return &ReportArchive{client: client, bucket: bucket, prefix: prefix}
}

// NewReportArchiveFromConfig loads AWS credentials and creates an archive
// for cfg.S3Bucket. Static keys take precedence over a shared profile.
func NewReportArchiveFromConfig(ctx context.Context, cfg config.StorageConfig) (*ReportArchive, error) {
	if cfg.S3Bucket == "" {
		return nil, fmt.Errorf("no report bucket configured")
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.AWSRegion)}
	switch {
	case cfg.AccessKeyID != "" && cfg.SecretAccessKey != "":
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	case cfg.GetAWSProfile() != "":
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.GetAWSProfile()))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return NewReportArchive(s3.NewFromConfig(awsCfg), cfg.S3Bucket, cfg.S3Prefix), nil
}

// Bucket returns the target bucket name.
func (a *ReportArchive) Bucket() string {
	return a.bucket
}

// Key returns the object key a report file is stored under: the prefix, the
// upload day and the file name.
func (a *ReportArchive) Key(filename string, at time.Time) string {
	return path.Join(a.prefix, at.UTC().Format("2006/01/02"), filename)
}

// Put uploads a report and returns its object key.
func (a *ReportArchive) Put(ctx context.Context, filename, contentType string, body []byte) (string, error) {
	key := a.Key(filename, time.Now())
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("putting object to S3 bucket %s: %w", a.bucket, err)
	}
	return key, nil
}

// CheckBucket verifies the bucket is reachable.
func (a *ReportArchive) CheckBucket(ctx context.Context) error {
	_, err := a.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(a.bucket)})
	return err
}
