package decoder

import (
	"context"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3API is the subset of the S3 client used to fetch images.
type S3API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

var (
	s3Mu     sync.Mutex
	s3Client S3API
)

// SetS3Client installs the client used for s3:// sources. Without one, a
// client is built from the default AWS configuration chain on first use.
func SetS3Client(c S3API) {
	s3Mu.Lock()
	defer s3Mu.Unlock()
	s3Client = c
}

func s3API(ctx context.Context) (S3API, error) {
	s3Mu.Lock()
	defer s3Mu.Unlock()

	if s3Client != nil {
		return s3Client, nil
	}
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("decoder: load aws config: %w", err)
	}
	s3Client = s3.NewFromConfig(cfg)
	return s3Client, nil
}

func fetchS3(ctx context.Context, bucket, key string) ([]byte, error) {
	client, err := s3API(ctx)
	if err != nil {
		return nil, err
	}
	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("decoder: s3 get s3://%s/%s: %w", bucket, key, err)
	}
	defer func() { _ = out.Body.Close() }()

	return readLimited(out.Body)
}
