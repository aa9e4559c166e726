package s3

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"go.uber.org/zap"

	customErrors "github.com/Miraines/MoonyAndStarry/account-service/internal/domain/account/errors"
	sc "github.com/Miraines/MoonyAndStarry/account-service/internal/infra/config"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

type objectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Uploader pushes locally staged uploads to a bucket. The local file is removed
// afterwards whether or not the upload succeeded.
type S3Uploader struct {
	client  objectAPI
	bucket  string
	baseURL string
	prefix  string
	log     *zap.Logger
	now     func() time.Time
}

func NewS3Uploader(ctx context.Context, cfg *sc.Config, log *zap.Logger) (*S3Uploader, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.S3Region)}
	if cfg.S3AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3AccessKey,
			cfg.S3SecretKey,
			"",
		)))
	}

	awsCfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, customErrors.WrapInternal(err, "load aws config")
	}

	client := newS3ClientFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			// MinIO и прочие S3-совместимые хранилища
			o.UsePathStyle = true
		}
	})

	baseURL := cfg.S3PublicBaseURL
	if baseURL == "" {
		if cfg.S3Endpoint != "" {
			baseURL = strings.TrimRight(cfg.S3Endpoint, "/") + "/" + cfg.S3Bucket
		} else {
			baseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.S3Bucket, cfg.S3Region)
		}
	}

	return newUploader(client, cfg.S3Bucket, baseURL, log), nil
}

func newUploader(client objectAPI, bucket, baseURL string, log *zap.Logger) *S3Uploader {
	if log == nil {
		log = zap.NewNop()
	}
	return &S3Uploader{
		client:  client,
		bucket:  bucket,
		baseURL: strings.TrimRight(baseURL, "/"),
		prefix:  "users",
		log:     log,
		now:     time.Now,
	}
}

func (u *S3Uploader) Upload(ctx context.Context, localPath string) (string, error) {
	if localPath == "" {
		return "", customErrors.NewInvalidArgument("empty upload path")
	}
	defer func() {
		if err := os.Remove(localPath); err != nil && !os.IsNotExist(err) {
			u.log.Warn("remove staged upload", zap.String("path", localPath), zap.Error(err))
		}
	}()

	f, err := os.Open(localPath)
	if err != nil {
		return "", customErrors.WrapInternal(err, "open staged upload")
	}
	defer f.Close()

	ext := strings.ToLower(filepath.Ext(localPath))
	contentType := mime.TypeByExtension(ext)
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	key := u.storageKey(ext)
	if _, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(contentType),
	}); err != nil {
		return "", customErrors.WrapInternal(err, "put object")
	}

	u.log.Debug("media uploaded", zap.String("key", key))
	return u.baseURL + "/" + key, nil
}

// Remove удаляет объект по публичному URL. Чужие URL не трогаем.
func (u *S3Uploader) Remove(ctx context.Context, url string) error {
	key, ok := strings.CutPrefix(url, u.baseURL+"/")
	if !ok || key == "" {
		return customErrors.NewInvalidArgument("url is outside of media bucket")
	}
	if _, err := u.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
	}); err != nil {
		return customErrors.WrapInternal(err, "delete object")
	}
	u.log.Debug("media removed", zap.String("key", key))
	return nil
}

func (u *S3Uploader) storageKey(ext string) string {
	d := u.now()
	return fmt.Sprintf("%s/%d/%02d/%02d/%s%s", u.prefix, d.Year(), d.Month(), d.Day(), uuid.New(), ext)
}
