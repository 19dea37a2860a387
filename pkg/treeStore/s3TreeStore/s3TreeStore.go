package s3TreeStore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3Types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	"github.com/Layr-Labs/eigenx-payouts-go/pkg/treeStore"
	"github.com/Layr-Labs/eigenx-payouts-go/pkg/types"
)

// S3API is the subset of the S3 client used by the store
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

type S3TreeStoreConfig struct {
	Bucket string
	Prefix string
}

// S3TreeStore keeps tree blobs in an S3 bucket keyed by content id
type S3TreeStore struct {
	client S3API
	config *S3TreeStoreConfig
	logger *zap.Logger
}

func NewS3TreeStore(client S3API, cfg *S3TreeStoreConfig, logger *zap.Logger) *S3TreeStore {
	return &S3TreeStore{
		client: client,
		config: cfg,
		logger: logger,
	}
}

func (s *S3TreeStore) objectKey(contentId string) string {
	return path.Join(s.config.Prefix, contentId+".json")
}

func (s *S3TreeStore) Put(ctx context.Context, data []byte) (string, error) {
	id, err := treeStore.ContentID(data)
	if err != nil {
		return "", err
	}
	key := s.objectKey(id)

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.config.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to put tree %s to s3://%s/%s: %w", id, s.config.Bucket, key, err)
	}
	s.logger.Sugar().Infow("Stored tree blob in S3",
		"contentId", id,
		"bucket", s.config.Bucket,
		"key", key,
		"size", len(data),
	)
	return id, nil
}

func (s *S3TreeStore) Get(ctx context.Context, contentId string) ([]byte, error) {
	key := s.objectKey(contentId)
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.config.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *s3Types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, types.NewNotFoundError("tree content %s not found", contentId)
		}
		return nil, fmt.Errorf("failed to get tree %s from s3://%s/%s: %w", contentId, s.config.Bucket, key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read tree %s: %w", contentId, err)
	}
	if err := treeStore.VerifyContent(contentId, data); err != nil {
		return nil, types.NewInconsistencyError("stored tree failed verification: %v", err)
	}
	return data, nil
}
