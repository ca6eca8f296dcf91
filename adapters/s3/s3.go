package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsCfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// DefaultMaxObjectSize 單一物件的上傳上限
const DefaultMaxObjectSize int64 = 5 << 20

type ObjectTooLargeError struct {
	Limit int64
}

func (e *ObjectTooLargeError) Error() string {
	return fmt.Sprintf("reach limit of %s", FormatBytes(e.Limit))
}

type Config struct {
	Endpoint        string
	Region          string
	Bucket          string
	PublicBaseURL   string
	AccessKeyID     string
	SecretAccessKey string
	// UsePathStyle 自架的 S3 相容服務 (minio 等) 通常需要開啟
	UsePathStyle bool
}

// NewClient 依設定建立 S3 客戶端
func NewClient(ctx context.Context, config Config) (*s3.Client, error) {
	const op = "NewClient"
	region := config.Region
	if region == "" {
		region = "auto"
	}
	opts := []func(*awsCfg.LoadOptions) error{
		awsCfg.WithRegion(region),
		awsCfg.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(config.AccessKeyID, config.SecretAccessKey, "")),
	}
	if config.Endpoint != "" {
		opts = append(opts, awsCfg.WithBaseEndpoint(config.Endpoint))
	}
	cfg, err := awsCfg.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to load AWS config, err=%w", op, err)
	}
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = config.UsePathStyle
	}), nil
}

type S3Operator struct {
	// client 是 S3 客戶端。
	Client *s3.Client
	// Bucket 是 S3 存儲桶的名稱。
	Bucket string
	// PublicEndpoint 是 S3 存儲桶的公開 Endpoint。
	PublicEndpoint *url.URL
	// MaxObjectSize 超過的內容不會上傳
	MaxObjectSize int64
}

func NewS3Operator(client *s3.Client, bucket, publicBaseURL string) (*S3Operator, error) {
	const op = "NewS3Operator"
	if bucket == "" {
		return nil, fmt.Errorf("[%s] Bucket is required", op)
	}
	publicEndpoint, err := url.Parse(publicBaseURL)
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to parse public base URL, err=%w", op, err)
	}
	return &S3Operator{
		Client:         client,
		Bucket:         bucket,
		PublicEndpoint: publicEndpoint,
		MaxObjectSize:  DefaultMaxObjectSize,
	}, nil
}

// Upload 上傳內容並返回公開網址，超過 MaxObjectSize 時返回 ObjectTooLargeError
func (s *S3Operator) Upload(ctx context.Context, key, contentType string, body io.Reader) (string, error) {
	const op = "S3Operator.Upload"

	// 只讀取上限加一個位元組，就能判斷是否超過
	content, err := io.ReadAll(io.LimitReader(body, s.MaxObjectSize+1))
	if err != nil {
		return "", fmt.Errorf("[%s] Fail to read content, err=%w", op, err)
	}
	if int64(len(content)) > s.MaxObjectSize {
		return "", fmt.Errorf("[%s] key=%s, err=%w", op, key, &ObjectTooLargeError{Limit: s.MaxObjectSize})
	}

	_, err = s.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(content),
		ContentLength: aws.Int64(int64(len(content))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("[%s] Fail to upload file to S3, err=%w", op, err)
	}
	uri := *s.PublicEndpoint
	uri.Path = path.Join("/", uri.Path, key)
	return uri.String(), nil
}

// IsObjectTooLarge 檢查錯誤是否因為內容超過上限
func IsObjectTooLarge(err error) bool {
	var tooLarge *ObjectTooLargeError
	return errors.As(err, &tooLarge)
}
