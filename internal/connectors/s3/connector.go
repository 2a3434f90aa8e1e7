// Package s3 reads documents from an Amazon S3 bucket.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/jbrcoleman/bedrock-vector-search/internal/core/domain"
	"github.com/jbrcoleman/bedrock-vector-search/internal/core/ports/driven"
	"github.com/jbrcoleman/bedrock-vector-search/internal/logger"
	"github.com/jbrcoleman/bedrock-vector-search/internal/normalisers"
)

// Type is the source type identifier.
const Type = "s3"

// DefaultMaxObjectSize skips objects larger than 10 MiB.
const DefaultMaxObjectSize = 10 << 20

// Ensure Connector implements the interface.
var _ driven.DocumentSource = (*Connector)(nil)

// Client is the subset of the S3 API the connector uses.
type Client interface {
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Connector reads every object under a bucket prefix. Object keys are used
// as document IDs.
type Connector struct {
	client        Client
	bucket        string
	prefix        string
	maxObjectSize int64
}

// New creates a connector for bucket/prefix.
func New(client Client, bucket, prefix string) *Connector {
	return &Connector{client: client, bucket: bucket, prefix: prefix, maxObjectSize: DefaultMaxObjectSize}
}

// Open creates a connector for an s3://bucket/prefix URI using the default
// AWS credential chain.
func Open(ctx context.Context, uri, region string) (*Connector, error) {
	bucket, prefix, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3: load AWS config: %w", err)
	}
	return New(s3.NewFromConfig(awsCfg), bucket, prefix), nil
}

// ParseURI splits an s3://bucket/key URI. The key may be empty or a prefix.
func ParseURI(uri string) (bucket, key string, err error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", "", fmt.Errorf("parse %q: %w", uri, domain.ErrInvalidInput)
	}
	if u.Scheme != "s3" || u.Host == "" {
		return "", "", fmt.Errorf("%q is not an s3://bucket/key URI: %w", uri, domain.ErrInvalidInput)
	}
	return u.Host, strings.TrimPrefix(u.Path, "/"), nil
}

// IsURI reports whether s looks like an s3:// URI.
func IsURI(s string) bool {
	return strings.HasPrefix(s, "s3://")
}

// Type returns the source type identifier.
func (c *Connector) Type() string {
	return Type
}

// Validate checks the bucket can be listed.
func (c *Connector) Validate(ctx context.Context) error {
	_, err := c.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(c.bucket),
		Prefix:  aws.String(c.prefix),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return fmt.Errorf("list s3://%s/%s: %w", c.bucket, c.prefix, err)
	}
	return nil
}

// FullSync lists the prefix and emits one raw document per object.
// Directory markers and oversized objects are skipped.
func (c *Connector) FullSync(ctx context.Context) (<-chan domain.RawDocument, <-chan error) {
	docs := make(chan domain.RawDocument)
	errs := make(chan error, 1)

	go func() {
		defer close(docs)
		defer close(errs)

		pages := s3.NewListObjectsV2Paginator(c.client, &s3.ListObjectsV2Input{
			Bucket: aws.String(c.bucket),
			Prefix: aws.String(c.prefix),
		})
		for pages.HasMorePages() {
			page, err := pages.NextPage(ctx)
			if err != nil {
				c.report(errs, fmt.Errorf("list s3://%s/%s: %w", c.bucket, c.prefix, err))
				return
			}
			for _, obj := range page.Contents {
				if !c.eligible(obj) {
					continue
				}
				raw, err := c.Fetch(ctx, aws.ToString(obj.Key))
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					c.report(errs, err)
					continue
				}
				select {
				case docs <- *raw:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return docs, errs
}

// Fetch downloads one object.
func (c *Connector) Fetch(ctx context.Context, key string) (*domain.RawDocument, error) {
	out, err := c.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, fmt.Errorf("s3://%s/%s: %w", c.bucket, key, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get s3://%s/%s: %w", c.bucket, key, err)
	}
	defer out.Body.Close()

	body := io.Reader(out.Body)
	if c.maxObjectSize > 0 {
		body = io.LimitReader(out.Body, c.maxObjectSize+1)
	}
	content, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read s3://%s/%s: %w", c.bucket, key, err)
	}
	if c.maxObjectSize > 0 && int64(len(content)) > c.maxObjectSize {
		return nil, fmt.Errorf("s3://%s/%s: %w", c.bucket, key, domain.ErrDocumentTooLarge)
	}

	mimeType := normalisers.DetectMIMEType(key)
	if ct := aws.ToString(out.ContentType); mimeType == "application/octet-stream" && ct != "" {
		mimeType = ct
	}

	metadata := map[string]any{
		"source": Type,
		"bucket": c.bucket,
		"title":  normalisers.TitleFromURI(path.Base(key)),
	}
	if out.LastModified != nil {
		metadata["modified"] = out.LastModified.UTC()
	}
	if out.ETag != nil {
		metadata["etag"] = strings.Trim(aws.ToString(out.ETag), `"`)
	}

	return &domain.RawDocument{
		ID:       key,
		URI:      "s3://" + c.bucket + "/" + key,
		MIMEType: mimeType,
		Content:  content,
		Metadata: metadata,
	}, nil
}

// Close is a no-op; the SDK client holds no per-connector resources.
func (c *Connector) Close() error {
	return nil
}

func (c *Connector) eligible(obj types.Object) bool {
	key := aws.ToString(obj.Key)
	if key == "" || strings.HasSuffix(key, "/") {
		return false
	}
	// A prefix without a trailing slash names one object or one "directory".
	if c.prefix != "" && !strings.HasSuffix(c.prefix, "/") &&
		key != c.prefix && !strings.HasPrefix(key, c.prefix+"/") {
		return false
	}
	if c.maxObjectSize > 0 && aws.ToInt64(obj.Size) > c.maxObjectSize {
		logger.Debug("s3: skipping s3://%s/%s (%d bytes)", c.bucket, key, aws.ToInt64(obj.Size))
		return false
	}
	return true
}

func (c *Connector) report(errs chan<- error, err error) {
	logger.Warn("s3: %v", err)
	select {
	case errs <- err:
	default:
	}
}
