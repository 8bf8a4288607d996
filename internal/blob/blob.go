// Package blob stores evidence and after-cleanup images in S3.
package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"cleancity/backend/internal/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/google/uuid"
)

// ErrNotFound is returned when no object exists at the key.
var ErrNotFound = errors.New("blob not found")

// ComplaintKey returns a fresh key for an evidence image uploaded by userID.
func ComplaintKey(userID string) string {
	return "complaints/" + userID + "/" + uuid.NewString() + ".jpg"
}

// CleanupKey returns the key of the after-cleanup image of a complaint.
func CleanupKey(complaintID string, at time.Time) string {
	return "cleanup/" + complaintID + "_" + strconv.FormatInt(at.UnixMilli(), 10) + ".jpg"
}

// OwnedBy reports whether key is an evidence image uploaded by userID.
func OwnedBy(key, userID string) bool {
	if userID == "" || strings.Contains(key, "..") {
		return false
	}
	return strings.HasPrefix(key, "complaints/"+userID+"/")
}

type objectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

type presignAPI interface {
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Store is an S3 bucket holding complaint images.
type Store struct {
	bucket     string
	presignTTL time.Duration
	client     objectAPI
	presigner  presignAPI
}

// New builds a Store from the default AWS credential chain.
func New(ctx context.Context, cfg config.BlobConfig) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("blob.bucket is required")
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})
	return &Store{
		bucket:     cfg.Bucket,
		presignTTL: cfg.PresignTTL,
		client:     client,
		presigner:  s3.NewPresignClient(client),
	}, nil
}

func (s *Store) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", key, normalize(err))
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, normalize(err))
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

// SignedURL returns a time-limited GET URL for key.
func (s *Store) SignedURL(ctx context.Context, key string) (string, error) {
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.presignTTL))
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return req.URL, nil
}

func normalize(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return fmt.Errorf("%w: %s", ErrNotFound, apiErr.ErrorMessage())
		}
	}
	return err
}
