// Package discovery lists dataset objects in S3 and filters them down to
// the keys the COPY manifests should reference.
package discovery

import (
	"context"
	"fmt"
	"regexp"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	apperrors "github.com/talerngpong/cloud-datawarehouse/pkg/errors"
)

// ObjectLister is the subset of the S3 API used for discovery.
type ObjectLister interface {
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Object is a reference to a stored object.
type Object struct {
	Bucket string
	Key    string
}

// Service discovers objects under a bucket prefix.
type Service struct {
	client ObjectLister
	logger *zap.Logger
}

// NewService creates a discovery service backed by the given S3 client.
func NewService(client ObjectLister, logger *zap.Logger) *Service {
	return &Service{
		client: client,
		logger: logger,
	}
}

// Discover lists every object under prefix and keeps the keys whose match
// against pattern is anchored at the start of the key. Listing order is the
// store's order; all pages are exhausted. Faults are not retried here.
func (s *Service) Discover(ctx context.Context, bucket, prefix string, pattern *regexp.Regexp) ([]Object, error) {
	var objects []Object
	var continuationToken *string

	for {
		out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: continuationToken,
		})
		if err != nil {
			return nil, apperrors.NewDiscovery(fmt.Sprintf("list objects in bucket %s with prefix %s", bucket, prefix), err)
		}

		for _, obj := range out.Contents {
			key := aws.ToString(obj.Key)
			if matchesFromStart(pattern, key) {
				objects = append(objects, Object{Bucket: bucket, Key: key})
			}
		}

		if !aws.ToBool(out.IsTruncated) {
			break
		}
		continuationToken = out.NextContinuationToken
	}

	s.logger.Info("discovered objects",
		zap.String("bucket", bucket),
		zap.String("prefix", prefix),
		zap.Int("count", len(objects)),
	)

	return objects, nil
}

// matchesFromStart reports whether pattern matches key beginning at index
// zero. A match that only occurs mid-string does not count.
func matchesFromStart(pattern *regexp.Regexp, key string) bool {
	loc := pattern.FindStringIndex(key)
	return loc != nil && loc[0] == 0
}
