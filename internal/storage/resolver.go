package storage

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type resolvedURL struct {
	url     string
	expires time.Time
}

// Presigner generates time-limited GET URLs for bucket objects.
type Presigner interface {
	PresignGetObject(ctx context.Context, input *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// CachedResolver turns stored media locators into fetchable URLs. Public
// URLs pass through untouched; bare object keys are presigned, with the
// signed URL cached for a fraction of its validity so a cached entry is
// never served close to expiry.
type CachedResolver struct {
	presigner Presigner
	bucket    string
	ttl       time.Duration

	mu    sync.RWMutex
	items map[string]resolvedURL
}

// NewCachedResolver returns a resolver presigning against the provided
// client. ttl bounds how long a signed URL stays valid.
func NewCachedResolver(client *s3.Client, bucket string, ttl time.Duration) *CachedResolver {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &CachedResolver{
		presigner: s3.NewPresignClient(client),
		bucket:    bucket,
		ttl:       ttl,
		items:     make(map[string]resolvedURL),
	}
}

// Resolve returns a URL the caller can fetch the binary from.
func (r *CachedResolver) Resolve(ctx context.Context, locator string) (string, error) {
	if strings.Contains(locator, "://") {
		return locator, nil
	}

	key := strings.TrimLeft(locator, "/")
	if key == "" {
		return "", fmt.Errorf("resolve locator: empty key")
	}

	now := time.Now()

	r.mu.RLock()
	entry, ok := r.items[key]
	r.mu.RUnlock()
	if ok && now.Before(entry.expires) {
		return entry.url, nil
	}

	req, err := r.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
	}, func(o *s3.PresignOptions) {
		o.Expires = r.ttl
	})
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}

	r.mu.Lock()
	r.items[key] = resolvedURL{url: req.URL, expires: now.Add(r.ttl / 2)}
	r.mu.Unlock()

	return req.URL, nil
}
