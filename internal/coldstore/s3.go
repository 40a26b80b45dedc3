package coldstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Store implements BlobStore for AWS S3 and S3-compatible stores.
type S3Store struct {
	client     *s3.Client
	bucket     string
	config     S3Config
	maxRetries int
}

// S3Config holds configuration for S3 blob storage.
type S3Config struct {
	// Region is the AWS region for the S3 bucket.
	Region string
	// Endpoint is an optional custom endpoint (for MinIO, LocalStack, etc.).
	Endpoint string
	// UsePathStyle enables path-style addressing (required for MinIO).
	UsePathStyle bool
	// ArchiveStorageClass is the storage class used for TierArchive.
	// Defaults to GLACIER_IR so archived blobs stay synchronously readable.
	ArchiveStorageClass s3types.StorageClass
}

// ParseStorageClass maps a configured archive tier name to an S3 storage
// class. "archive" selects the GLACIER_IR default; the explicit class names
// cover buckets with different cost/latency tradeoffs.
func ParseStorageClass(name string) (s3types.StorageClass, error) {
	switch name {
	case "", "archive", "glacier_ir":
		return s3types.StorageClassGlacierIr, nil
	case "glacier":
		return s3types.StorageClassGlacier, nil
	case "deep_archive":
		return s3types.StorageClassDeepArchive, nil
	case "standard_ia":
		return s3types.StorageClassStandardIa, nil
	case "intelligent_tiering":
		return s3types.StorageClassIntelligentTiering, nil
	default:
		return "", fmt.Errorf("coldstore: unknown archive tier %q", name)
	}
}

// DefaultS3Config returns the default S3 configuration.
func DefaultS3Config() S3Config {
	return S3Config{
		Region:              "us-east-1",
		ArchiveStorageClass: s3types.StorageClassGlacierIr,
	}
}

// NewS3Store creates a new S3 blob store client.
func NewS3Store(ctx context.Context, bucket string, cfg S3Config) (*S3Store, error) {
	var opts []func(*awsconfig.LoadOptions) error

	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	client := s3.NewFromConfig(awsCfg, s3Opts...)

	return NewS3StoreWithClient(client, bucket, cfg), nil
}

// NewS3StoreWithClient creates a new S3 blob store with a pre-configured client.
func NewS3StoreWithClient(client *s3.Client, bucket string, cfg S3Config) *S3Store {
	if cfg.ArchiveStorageClass == "" {
		cfg.ArchiveStorageClass = s3types.StorageClassGlacierIr
	}
	return &S3Store{
		client:     client,
		bucket:     bucket,
		config:     cfg,
		maxRetries: 3,
	}
}

// Put writes a blob with its metadata to S3.
func (s *S3Store) Put(ctx context.Context, key string, data []byte, metadata map[string]string) error {
	err := s.retryWithBackoff(ctx, func() error {
		_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:   aws.String(s.bucket),
			Key:      aws.String(key),
			Body:     bytes.NewReader(data),
			Metadata: metadata,
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	return nil
}

// SetTier transitions a blob to the given tier by copying the object onto
// itself with the target storage class. Metadata is carried over unchanged.
func (s *S3Store) SetTier(ctx context.Context, key string, tier Tier) error {
	err := s.retryWithBackoff(ctx, func() error {
		_, err := s.client.CopyObject(ctx, &s3.CopyObjectInput{
			Bucket:            aws.String(s.bucket),
			Key:               aws.String(key),
			CopySource:        aws.String(s.bucket + "/" + key),
			StorageClass:      s.storageClass(tier),
			MetadataDirective: s3types.MetadataDirectiveCopy,
		})
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTierFailed, err)
	}
	return nil
}

// Exists checks if a blob exists in S3.
func (s *S3Store) Exists(ctx context.Context, key string) (bool, error) {
	var exists bool
	err := s.retryWithBackoff(ctx, func() error {
		_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			var notFound *s3types.NotFound
			if errors.As(err, &notFound) {
				exists = false
				return nil
			}
			return err
		}
		exists = true
		return nil
	})
	return exists, err
}

// Get reads a blob's bytes and metadata from S3.
func (s *S3Store) Get(ctx context.Context, key string) ([]byte, map[string]string, error) {
	var data []byte
	var metadata map[string]string

	err := s.retryWithBackoff(ctx, func() error {
		resp, err := s.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		data, err = io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		metadata = resp.Metadata
		return nil
	})

	if err != nil {
		var noSuchKey *s3types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, nil, ErrBlobNotFound
		}
		return nil, nil, fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}

	return data, metadata, nil
}

// List returns info for every blob under the given prefix. S3 listings don't
// carry user metadata, so each key is followed by a HeadObject call.
func (s *S3Store) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var infos []ObjectInfo
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list blobs: %w", err)
		}
		for _, obj := range page.Contents {
			info := ObjectInfo{
				Key:       aws.ToString(obj.Key),
				SizeBytes: aws.ToInt64(obj.Size),
			}
			if obj.LastModified != nil {
				info.CreatedAt = *obj.LastModified
			}

			head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
				Bucket: aws.String(s.bucket),
				Key:    obj.Key,
			})
			if err != nil {
				return nil, fmt.Errorf("failed to read metadata for %s: %w", info.Key, err)
			}
			info.Metadata = head.Metadata

			infos = append(infos, info)
		}
	}

	return infos, nil
}

// storageClass maps a tier to an S3 storage class.
func (s *S3Store) storageClass(tier Tier) s3types.StorageClass {
	if tier == TierArchive {
		return s.config.ArchiveStorageClass
	}
	return s3types.StorageClassStandard
}

// retryWithBackoff executes the operation with exponential backoff retry.
func (s *S3Store) retryWithBackoff(ctx context.Context, operation func() error) error {
	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = operation()
		if lastErr == nil {
			return nil
		}

		// Missing objects are definitive, not transient
		var noSuchKey *s3types.NoSuchKey
		if errors.As(lastErr, &noSuchKey) {
			return lastErr
		}

		if attempt < s.maxRetries {
			backoff := time.Duration(math.Pow(2, float64(attempt))) * 100 * time.Millisecond
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}
	}
	return lastErr
}
