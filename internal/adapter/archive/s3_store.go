// Package archive keeps a copy of every delivered document in S3-compatible
// object storage.
package archive

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

//go:generate moq -out putter_mock_test.go -pkg archive . putter

type putter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Config holds configuration for S3Store.
type Config struct {
	Bucket   string
	Region   string
	Endpoint string // Optional custom endpoint (MinIO, LocalStack)
	Prefix   string // Optional key prefix
}

// S3Store uploads documents under <prefix><brand id>/<event id>.xlsx.
type S3Store struct {
	client putter
	bucket string
	prefix string
	log    *slog.Logger
}

// NewS3Store creates an S3-backed archive using the default AWS credential chain.
func NewS3Store(ctx context.Context, cfg Config, logger *slog.Logger) (*S3Store, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("archive: load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return newS3Store(client, cfg, logger), nil
}

func newS3Store(client putter, cfg Config, logger *slog.Logger) *S3Store {
	prefix := cfg.Prefix
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &S3Store{
		client: client,
		bucket: cfg.Bucket,
		prefix: prefix,
		log:    logger.With("adapter", "archive"),
	}
}

// Key returns the object key for a document.
func (s *S3Store) Key(brandID, eventID string) string {
	return s.prefix + path.Join(sanitize(brandID), sanitize(eventID)+".xlsx")
}

// Archive uploads the file at filePath and returns its object key.
func (s *S3Store) Archive(ctx context.Context, brandID, eventID, filePath string) (string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", fmt.Errorf("archive: read %s: %w", filePath, err)
	}

	sum := sha256.Sum256(data)
	key := s.Key(brandID, eventID)

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(xlsxContentType),
		Metadata: map[string]string{
			"brand-id": brandID,
			"event-id": eventID,
			"sha256":   hex.EncodeToString(sum[:]),
		},
	})
	if err != nil {
		return "", fmt.Errorf("archive: put %s: %w", key, err)
	}

	s.log.DebugContext(ctx, "document archived", slog.String("key", key), slog.Int("bytes", len(data)))
	return key, nil
}

// sanitize keeps key segments free of separators and traversal.
func sanitize(seg string) string {
	seg = strings.TrimSpace(seg)
	seg = strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(seg)
	if seg == "" {
		return "_"
	}
	return seg
}
