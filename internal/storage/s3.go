package storage

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"collab-backend/internal/config"
)

// S3Signer S3 presign 기반 오브젝트 스토리지 어댑터
type S3Signer struct {
	client        *s3.Client
	presign       *s3.PresignClient
	buckets       map[string]string
	uploadExpiry  time.Duration
	maxListResult int32
}

// NewS3Signer S3 클라이언트 생성
func NewS3Signer(ctx context.Context, cfg config.S3Config) (*S3Signer, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return &S3Signer{
		client:        client,
		presign:       s3.NewPresignClient(client),
		buckets:       cfg.Buckets,
		uploadExpiry:  cfg.PresignExpiry,
		maxListResult: 1000,
	}, nil
}

// bucket 논리 버킷 이름을 실제 S3 버킷으로 변환
func (s *S3Signer) bucket(name string) string {
	if target, ok := s.buckets[name]; ok {
		return target
	}
	return name
}

// SignedUploadURL PUT 업로드용 presigned URL
func (s *S3Signer) SignedUploadURL(ctx context.Context, bucket, key string) (string, error) {
	req, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket(bucket)),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.uploadExpiry))
	if err != nil {
		return "", err
	}
	return req.URL, nil
}

// SignedURL GET 다운로드용 presigned URL
func (s *S3Signer) SignedURL(ctx context.Context, bucket, key string, ttl time.Duration) (string, error) {
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket(bucket)),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", err
	}
	return req.URL, nil
}

// List prefix 아래 항목 조회 (한 단계, 폴더는 IsFolder)
func (s *S3Signer) List(ctx context.Context, bucket, prefix string) ([]Entry, error) {
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(s.bucket(bucket)),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
		MaxKeys:   aws.Int32(s.maxListResult),
	})

	entries := make([]Entry, 0)
	for paginator.HasMorePages() && len(entries) < int(s.maxListResult) {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, p := range page.CommonPrefixes {
			key := aws.ToString(p.Prefix)
			entries = append(entries, Entry{
				Name:     path.Base(strings.TrimSuffix(key, "/")),
				Path:     key,
				IsFolder: true,
			})
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			entries = append(entries, Entry{
				Name:         path.Base(key),
				Path:         key,
				Size:         aws.ToInt64(obj.Size),
				LastModified: aws.ToTime(obj.LastModified),
			})
		}
	}
	return entries, nil
}
