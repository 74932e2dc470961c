package manifest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"

	apperrors "github.com/talerngpong/cloud-datawarehouse/pkg/errors"
)

// ObjectStore is the subset of the S3 API used to publish and read
// manifests.
type ObjectStore interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Publisher writes manifests to the manifest bucket, creating the bucket
// on first use if it does not exist yet.
type Publisher struct {
	client   ObjectStore
	region   string
	logger   *zap.Logger
	verified bool
}

// NewPublisher creates a publisher writing through the given S3 client.
// region is where the manifest bucket is created when missing.
func NewPublisher(client ObjectStore, region string, logger *zap.Logger) *Publisher {
	return &Publisher{
		client: client,
		region: region,
		logger: logger,
	}
}

// Publish serializes the manifest and overwrites the object at
// bucket/key. The destination bucket is verified once per publisher; a
// missing bucket is created in the publisher's region, any other
// validation fault is fatal.
func (p *Publisher) Publish(ctx context.Context, m Manifest, bucket, key string) error {
	if err := p.ensureBucket(ctx, bucket); err != nil {
		return err
	}

	body, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("serialize manifest for %s/%s: %w", bucket, key, err)
	}

	_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("put manifest %s/%s: %w", bucket, key, err)
	}

	p.logger.Info("published manifest",
		zap.String("bucket", bucket),
		zap.String("key", key),
		zap.Int("entries", len(m.Entries)),
	)
	return nil
}

// Fetch reads a previously published manifest back from bucket/key.
func (p *Publisher) Fetch(ctx context.Context, bucket, key string) (Manifest, error) {
	out, err := p.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return Manifest{}, fmt.Errorf("get manifest %s/%s: %w", bucket, key, err)
	}
	defer out.Body.Close()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return Manifest{}, fmt.Errorf("read manifest %s/%s: %w", bucket, key, err)
	}

	var m Manifest
	if err := json.Unmarshal(body, &m); err != nil {
		return Manifest{}, fmt.Errorf("parse manifest %s/%s: %w", bucket, key, err)
	}
	return m, nil
}

func (p *Publisher) ensureBucket(ctx context.Context, bucket string) error {
	if p.verified {
		return nil
	}

	_, err := p.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)})
	if err != nil {
		if !isBucketNotFound(err) {
			return apperrors.NewBucket(fmt.Sprintf("validate manifest bucket %s", bucket), err)
		}

		p.logger.Info("manifest bucket not found, creating it",
			zap.String("bucket", bucket),
			zap.String("region", p.region),
		)
		_, err = p.client.CreateBucket(ctx, &s3.CreateBucketInput{
			Bucket: aws.String(bucket),
			CreateBucketConfiguration: &types.CreateBucketConfiguration{
				LocationConstraint: types.BucketLocationConstraint(p.region),
			},
		})
		if err != nil {
			return apperrors.NewBucket(fmt.Sprintf("create manifest bucket %s", bucket), err)
		}
	}

	p.verified = true
	return nil
}

func isBucketNotFound(err error) bool {
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	// HeadBucket surfaces a bare 404 for missing buckets in some regions.
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && (apiErr.ErrorCode() == "NotFound" || apiErr.ErrorCode() == "404")
}
