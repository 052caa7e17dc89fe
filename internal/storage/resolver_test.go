package storage

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type stubPresigner struct {
	calls int
}

func (s *stubPresigner) PresignGetObject(_ context.Context, input *s3.GetObjectInput, _ ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	s.calls++
	return &v4.PresignedHTTPRequest{URL: "https://signed.example.com/" + aws.ToString(input.Key)}, nil
}

func TestCachedResolverPassesThroughURLs(t *testing.T) {
	presigner := &stubPresigner{}
	resolver := &CachedResolver{presigner: presigner, bucket: "b", ttl: time.Minute, items: map[string]resolvedURL{}}

	got, err := resolver.Resolve(context.Background(), "https://cdn.example.com/user-1/100.mp4")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != "https://cdn.example.com/user-1/100.mp4" {
		t.Fatalf("expected pass-through got %q", got)
	}
	if presigner.calls != 0 {
		t.Fatalf("expected no presign for public URLs got %d calls", presigner.calls)
	}
}

func TestCachedResolverPresignsAndCaches(t *testing.T) {
	presigner := &stubPresigner{}
	resolver := &CachedResolver{presigner: presigner, bucket: "b", ttl: time.Minute, items: map[string]resolvedURL{}}

	first, err := resolver.Resolve(context.Background(), "user-1/100.mp4")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if first != "https://signed.example.com/user-1/100.mp4" {
		t.Fatalf("unexpected signed url %q", first)
	}

	if _, err := resolver.Resolve(context.Background(), "user-1/100.mp4"); err != nil {
		t.Fatalf("resolve cached: %v", err)
	}
	if presigner.calls != 1 {
		t.Fatalf("expected cached result got %d presign calls", presigner.calls)
	}
}

func TestCachedResolverExpiry(t *testing.T) {
	presigner := &stubPresigner{}
	resolver := &CachedResolver{presigner: presigner, bucket: "b", ttl: 2 * time.Millisecond, items: map[string]resolvedURL{}}

	if _, err := resolver.Resolve(context.Background(), "user-1/100.mp4"); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	time.Sleep(3 * time.Millisecond)

	if _, err := resolver.Resolve(context.Background(), "user-1/100.mp4"); err != nil {
		t.Fatalf("resolve after expiry: %v", err)
	}
	if presigner.calls != 2 {
		t.Fatalf("expected re-presign after expiry got %d calls", presigner.calls)
	}
}

func TestS3StorageKey(t *testing.T) {
	store := &S3Storage{bucket: "daylog-videos", baseURL: "https://cdn.example.com"}

	cases := []struct {
		locator string
		key     string
		ok      bool
	}{
		{"user-1/100.mp4", "user-1/100.mp4", true},
		{"https://cdn.example.com/user-1/100.mp4", "user-1/100.mp4", true},
		{"http://localhost:9000/daylog-videos/user-1/100.mp4", "user-1/100.mp4", true},
		{"", "", false},
		{"https://cdn.example.com/", "", false},
	}

	for _, tc := range cases {
		key, ok := store.Key(tc.locator)
		if ok != tc.ok || key != tc.key {
			t.Fatalf("Key(%q) = %q,%v want %q,%v", tc.locator, key, ok, tc.key, tc.ok)
		}
	}
}
