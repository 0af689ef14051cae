// s3probe.go is a lightweight connectivity probe for S3-compatible secret
// kinds (S3, R2, GCS all speak the S3 API), built on the AWS SDK v2.
// Instead of uploading/downloading an object, probeS3Compatible issues a
// HeadBucket call when the secret names a bucket, and a ListBuckets call
// otherwise.
package secretstore

import (
	"context"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscreds "github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pkg/errors"
)

// DefaultRegion is the fallback region string for providers that require
// one even when the endpoint is region-agnostic (R2, some GCS
// configurations).
var DefaultRegion = "auto"

// s3ProbeConfig is the subset of a secret's fields relevant to an
// S3-compatible connectivity probe.
type s3ProbeConfig struct {
	endpoint string
	region   string
	bucket   string
	keyID    string
	secret   string
}

// ParseS3RegionCode extracts the AWS region segment from a virtual-hosted
// or path-style S3 endpoint.
func ParseS3RegionCode(endpoint string) string {
	if endpoint == "" {
		return ""
	}
	segments := strings.Split(endpoint, ".")
	last := len(segments) - 1
	if last < 0 {
		return ""
	}
	if strings.EqualFold(segments[last], "cn") {
		last--
	}
	if last >= 2 &&
		strings.EqualFold(segments[last], "com") &&
		strings.EqualFold(segments[last-1], "amazonaws") &&
		!strings.EqualFold(segments[last-2], "s3") {
		return segments[last-2]
	}
	return ""
}

func probeS3Compatible(ctx context.Context, kind Kind, fields map[string]string) error {
	cfg := s3ProbeConfig{
		keyID:  fields["key_id"],
		secret: fields["secret"],
	}
	if endpoint, ok := fields["endpoint"]; ok {
		cfg.endpoint = endpoint
	}
	if bucket, ok := fields["bucket"]; ok {
		cfg.bucket = bucket
	}
	cfg.region = ParseS3RegionCode(cfg.endpoint)
	if cfg.region == "" {
		cfg.region = DefaultRegion
	}

	awsCfg := aws.Config{
		Region:      cfg.region,
		Credentials: awscreds.NewStaticCredentialsProvider(cfg.keyID, cfg.secret, ""),
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.endpoint != "" {
			o.BaseEndpoint = aws.String("https://" + cfg.endpoint)
		}
		o.UsePathStyle = kind != KindGCS
	})

	probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if cfg.bucket == "" {
		// No bucket supplied: ListBuckets is the closest equivalent reachability check.
		_, err := client.ListBuckets(probeCtx, &s3.ListBucketsInput{})
		return errors.Wrap(err, "list buckets")
	}

	_, err := client.HeadBucket(probeCtx, &s3.HeadBucketInput{Bucket: aws.String(cfg.bucket)})
	return errors.Wrap(err, "head bucket")
}
