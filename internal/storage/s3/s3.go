// Package s3 lists "directories" of an S3 or MinIO bucket, treating "/" in
// object keys as the path separator.
package s3

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/fruitsalade/explorer/internal/logging"
	"github.com/fruitsalade/explorer/internal/storage/listing"
	"github.com/fruitsalade/explorer/pkg/protocol"
)

// Config holds S3 connection settings.
type Config struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
}

// API is the subset of the S3 client the lister uses.
type API interface {
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// Lister serves listings from one bucket.
type Lister struct {
	client API
	bucket string
}

// New connects to the bucket described by cfg.
func New(ctx context.Context, cfg Config) (*Lister, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(endpointURL(cfg.Endpoint, cfg.UseSSL))
		}
		o.UsePathStyle = true
	})

	l := NewWithClient(client, cfg.Bucket)
	if err := l.checkBucket(ctx); err != nil {
		logging.Error("bucket check failed", logging.String("bucket", cfg.Bucket), logging.Err(err))
	}
	return l, nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client API, bucket string) *Lister {
	return &Lister{client: client, bucket: bucket}
}

// endpointURL adds a scheme to bare host:port endpoints.
func endpointURL(endpoint string, useSSL bool) string {
	if strings.Contains(endpoint, "://") {
		return endpoint
	}
	if useSSL {
		return "https://" + endpoint
	}
	return "http://" + endpoint
}

func (l *Lister) checkBucket(ctx context.Context) error {
	_, err := l.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(l.bucket)})
	if err != nil {
		return fmt.Errorf("head bucket %s: %w", l.bucket, err)
	}
	return nil
}

func (l *Lister) Type() string { return "s3" }
func (l *Lister) Close() error { return nil }

// List returns common prefixes as directories and objects as files.
func (l *Lister) List(ctx context.Context, p string) (*protocol.BrowseResponse, error) {
	clean, err := listing.Clean(p)
	if err != nil {
		return nil, err
	}
	prefix := keyPrefix(clean)

	entries := []protocol.FileInfo{}
	marker := false
	paginator := s3.NewListObjectsV2Paginator(l.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(l.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", clean, err)
		}
		for _, cp := range page.CommonPrefixes {
			name := strings.TrimSuffix(strings.TrimPrefix(aws.ToString(cp.Prefix), prefix), "/")
			if name == "" {
				continue
			}
			entries = append(entries, protocol.FileInfo{Name: name, Type: protocol.TypeDir})
		}
		for _, obj := range page.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), prefix)
			// The "dir/" marker object some tools create.
			if name == "" {
				marker = true
				continue
			}
			entries = append(entries, protocol.FileInfo{
				Name: name,
				Type: protocol.TypeFile,
				Size: aws.ToInt64(obj.Size),
			})
		}
	}

	// Nothing under a non-root prefix: either a plain object or nothing at all.
	if len(entries) == 0 && !marker && clean != "/" {
		if l.exists(ctx, strings.TrimSuffix(prefix, "/")) {
			return nil, listing.ErrNotDir
		}
		return nil, listing.ErrNotFound
	}
	return listing.Response(clean, entries), nil
}

func (l *Lister) exists(ctx context.Context, key string) bool {
	_, err := l.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(l.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true
	}
	var nf *types.NotFound
	if !errors.As(err, &nf) {
		logging.Debug("head object failed", logging.String("key", key), logging.Err(err))
	}
	return false
}

// keyPrefix maps "/" to "" and "/a/b" to "a/b/".
func keyPrefix(clean string) string {
	if clean == "/" {
		return ""
	}
	return strings.TrimPrefix(clean, "/") + "/"
}
