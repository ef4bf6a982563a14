package sink

import (
	"bytes"
	"context"
	"errors"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"

	"github.com/cadastral/tiler/tileerr"
)

// S3Config configures the S3 sink. Credentials come from the usual AWS
// environment, shared config and instance role chain.
type S3Config struct {
	Bucket   string
	Region   string
	Endpoint string
	// MaxRetries is handed to the SDK, which retries throttling and 5xx
	// responses with backoff. Zero keeps the SDK default.
	MaxRetries int
	// Timeout bounds a single PutObject including SDK retries.
	Timeout time.Duration
}

// S3 puts each object with its own PutObject call.
type S3 struct {
	svc     s3iface.S3API
	bucket  string
	timeout time.Duration
}

func NewS3(cfg S3Config) (*S3, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 sink: bucket is required")
	}
	awsCfg := aws.NewConfig()
	if cfg.Region != "" {
		awsCfg = awsCfg.WithRegion(cfg.Region)
	}
	if cfg.Endpoint != "" {
		awsCfg = awsCfg.WithEndpoint(cfg.Endpoint).WithS3ForcePathStyle(true)
	}
	if cfg.MaxRetries > 0 {
		awsCfg = awsCfg.WithMaxRetries(cfg.MaxRetries)
	}
	sess, err := session.NewSessionWithOptions(session.Options{
		Config:            *awsCfg,
		SharedConfigState: session.SharedConfigEnable,
	})
	if err != nil {
		return nil, err
	}
	return NewS3WithClient(s3.New(sess), cfg.Bucket, cfg.Timeout), nil
}

// NewS3WithClient uses an existing client.
func NewS3WithClient(svc s3iface.S3API, bucket string, timeout time.Duration) *S3 {
	return &S3{svc: svc, bucket: bucket, timeout: timeout}
}

func (s *S3) Bucket() string {
	return s.bucket
}

func (s *S3) Put(ctx context.Context, obj Object) error {
	if s.timeout > 0 {
		var cancelFn func()
		ctx, cancelFn = context.WithTimeout(ctx, s.timeout)
		defer cancelFn()
	}
	in := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(obj.Key),
		Body:          bytes.NewReader(obj.Body),
		ContentLength: aws.Int64(int64(len(obj.Body))),
	}
	if obj.ContentType != "" {
		in.ContentType = aws.String(obj.ContentType)
	}
	if obj.ContentEncoding != "" {
		in.ContentEncoding = aws.String(obj.ContentEncoding)
	}
	if obj.CacheControl != "" {
		in.CacheControl = aws.String(obj.CacheControl)
	}
	_, err := s.svc.PutObjectWithContext(ctx, in)
	if err != nil {
		if aerr, ok := err.(awserr.Error); ok && aerr.Code() == request.CanceledErrorCode {
			return tileerr.Wrapf(err, tileerr.CodeSinkWriteFailure, "put s3://%s/%s canceled", s.bucket, obj.Key)
		}
		return tileerr.Wrapf(err, tileerr.CodeSinkWriteFailure, "put s3://%s/%s", s.bucket, obj.Key)
	}
	return nil
}
