package artifact

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	logx "shoutbox/pkg/logx"
)

// S3Config configures the S3 backend. Credentials come from the default
// AWS chain (environment, shared config, instance role).
type S3Config struct {
	Bucket    string
	Region    string
	KeyPrefix string

	// PublicBaseURL, when set, is joined with the object key to form the
	// returned URL. Otherwise the virtual-hosted bucket URL is used.
	PublicBaseURL string
}

type s3Putter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type s3Store struct {
	client s3Putter
	cfg    S3Config
	log    logx.Logger
}

func newS3(ctx context.Context, cfg S3Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("s3 bucket is required")
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, &Error{Backend: "s3", Err: err}
	}
	return &s3Store{client: s3.NewFromConfig(awsCfg), cfg: cfg, log: log}, nil
}

func (s *s3Store) Put(ctx context.Context, data []byte, contentType string) (string, error) {
	key := s.objectKey(contentType)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", &Error{Backend: "s3", Err: err}
	}
	url := s.publicURL(key)
	s.log.Debug("artifact uploaded",
		logx.String("key", key),
		logx.Int("bytes", len(data)))
	return url, nil
}

func (s *s3Store) objectKey(contentType string) string {
	ext := ".bin"
	switch contentType {
	case "image/png":
		ext = ".png"
	case "image/jpeg":
		ext = ".jpg"
	}
	prefix := strings.Trim(s.cfg.KeyPrefix, "/")
	if prefix == "" {
		prefix = "posts"
	}
	return prefix + "/" + uuid.NewString() + ext
}

func (s *s3Store) publicURL(key string) string {
	if base := strings.TrimRight(s.cfg.PublicBaseURL, "/"); base != "" {
		return base + "/" + key
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.cfg.Bucket, s.cfg.Region, key)
}
