package export

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/franz/gg-curator/internal/util"
)

// PutObjectAPI is the part of the S3 client the sink uses
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Sink uploads each shard as one object under Prefix. A shard is
// buffered in memory and uploaded on Close.
type S3Sink struct {
	Client PutObjectAPI
	Bucket string
	Prefix string
	Retry  *util.RetryConfig
}

// NewS3Sink builds a sink from configuration, using the default AWS
// credential chain unless static keys are given. Endpoint and path-style
// addressing support S3-compatible stores such as MinIO.
func NewS3Sink(ctx context.Context, cfg util.S3Config) (*S3Sink, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("%w: s3 bucket required", util.ErrInvalidConfig)
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return &S3Sink{Client: client, Bucket: cfg.Bucket, Prefix: cfg.Prefix}, nil
}

// Key returns the object key of a shard
func (s *S3Sink) Key(name string) string {
	if s.Prefix == "" {
		return name
	}
	return path.Join(s.Prefix, name)
}

// Create starts buffering a shard
func (s *S3Sink) Create(ctx context.Context, name string) (io.WriteCloser, error) {
	return &s3Shard{ctx: ctx, sink: s, key: s.Key(name)}, nil
}

type s3Shard struct {
	ctx    context.Context
	sink   *S3Sink
	key    string
	buf    bytes.Buffer
	closed bool
}

func (o *s3Shard) Write(p []byte) (int, error) {
	if o.closed {
		return 0, fmt.Errorf("write to closed shard %s", o.key)
	}
	return o.buf.Write(p)
}

func (o *s3Shard) Close() error {
	if o.closed {
		return nil
	}
	o.closed = true
	body := o.buf.Bytes()
	return util.Retry(o.sink.Retry, func() error {
		_, err := o.sink.Client.PutObject(o.ctx, &s3.PutObjectInput{
			Bucket:        aws.String(o.sink.Bucket),
			Key:           aws.String(o.key),
			Body:          bytes.NewReader(body),
			ContentLength: aws.Int64(int64(len(body))),
			ContentType:   aws.String("application/gzip"),
		})
		return err
	}, "put s3://"+o.sink.Bucket+"/"+o.key)
}

func (o *s3Shard) Abort() error {
	o.closed = true
	o.buf.Reset()
	return nil
}
