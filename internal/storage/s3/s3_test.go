package s3

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/fruitsalade/explorer/internal/storage/listing"
)

// fakeBucket answers delimiter listings from an in-memory key set, two
// results per page.
type fakeBucket struct {
	objects map[string]int64
	calls   int
}

func (f *fakeBucket) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.calls++
	prefix := aws.ToString(in.Prefix)
	delim := aws.ToString(in.Delimiter)

	type item struct {
		key    string
		prefix bool
	}
	seen := map[string]bool{}
	var items []item
	keys := make([]string, 0, len(f.objects))
	for k := range f.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		rest := k[len(prefix):]
		if i := strings.Index(rest, delim); delim != "" && i >= 0 {
			cp := prefix + rest[:i+1]
			if !seen[cp] {
				seen[cp] = true
				items = append(items, item{key: cp, prefix: true})
			}
			continue
		}
		items = append(items, item{key: k})
	}

	start := 0
	if tok := aws.ToString(in.ContinuationToken); tok != "" {
		start, _ = strconv.Atoi(tok)
	}
	end := min(start+2, len(items))

	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(end < len(items))}
	if end < len(items) {
		out.NextContinuationToken = aws.String(strconv.Itoa(end))
	}
	for _, it := range items[start:end] {
		if it.prefix {
			out.CommonPrefixes = append(out.CommonPrefixes, types.CommonPrefix{Prefix: aws.String(it.key)})
		} else {
			out.Contents = append(out.Contents, types.Object{Key: aws.String(it.key), Size: aws.Int64(f.objects[it.key])})
		}
	}
	return out, nil
}

func (f *fakeBucket) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if size, ok := f.objects[aws.ToString(in.Key)]; ok {
		return &s3.HeadObjectOutput{ContentLength: aws.Int64(size)}, nil
	}
	return nil, &types.NotFound{}
}

func (f *fakeBucket) HeadBucket(context.Context, *s3.HeadBucketInput, ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	return &s3.HeadBucketOutput{}, nil
}

func newFake() *fakeBucket {
	return &fakeBucket{objects: map[string]int64{
		"readme.md":             10,
		"photos/a.jpg":          2048,
		"photos/b.jpg":          4096,
		"photos/2024/c.jpg":     1,
		"docs/":                 0,
		"docs/spec.pdf":         1048576,
		"empty/":                0,
		"music/live/track.flac": 7,
	}}
}

func TestListRoot(t *testing.T) {
	l := NewWithClient(newFake(), "bucket")
	resp, err := l.List(context.Background(), "/")
	if err != nil {
		t.Fatalf("List: %v", err)
	}

	got := map[string]string{}
	for _, c := range resp.Contents {
		got[c.Name] = c.Type
	}
	want := map[string]string{"readme.md": "file", "photos": "dir", "docs": "dir", "empty": "dir", "music": "dir"}
	if len(got) != len(want) {
		t.Fatalf("entries = %v, want %v", got, want)
	}
	for name, typ := range want {
		if got[name] != typ {
			t.Errorf("%s type = %q, want %q", name, got[name], typ)
		}
	}
	if resp.Name != "/" || resp.Size != 10 {
		t.Errorf("name=%q size=%d", resp.Name, resp.Size)
	}
}

func TestListPagesThroughPrefix(t *testing.T) {
	fake := newFake()
	l := NewWithClient(fake, "bucket")
	resp, err := l.List(context.Background(), "/photos")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if fake.calls < 2 {
		t.Errorf("expected paginated calls, got %d", fake.calls)
	}
	if resp.Name != "photos" || len(resp.Contents) != 3 {
		t.Fatalf("resp = %+v", resp)
	}
	if resp.Size != 2048+4096 {
		t.Errorf("size = %d", resp.Size)
	}
}

func TestListMarkerDirIsEmpty(t *testing.T) {
	l := NewWithClient(newFake(), "bucket")
	resp, err := l.List(context.Background(), "/empty")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(resp.Contents) != 0 {
		t.Errorf("contents = %+v, want none", resp.Contents)
	}
}

func TestListErrors(t *testing.T) {
	l := NewWithClient(newFake(), "bucket")
	tests := []struct {
		path string
		want error
	}{
		{"/missing", listing.ErrNotFound},
		{"/readme.md", listing.ErrNotDir},
		{"photos", listing.ErrInvalidPath},
		{"/../photos/../nothing", listing.ErrNotFound},
	}
	for _, tt := range tests {
		if _, err := l.List(context.Background(), tt.path); !errors.Is(err, tt.want) {
			t.Errorf("List(%q) error = %v, want %v", tt.path, err, tt.want)
		}
	}
}

func TestKeyPrefix(t *testing.T) {
	if got := keyPrefix("/"); got != "" {
		t.Errorf("keyPrefix(/) = %q", got)
	}
	if got := keyPrefix("/a/b"); got != "a/b/" {
		t.Errorf("keyPrefix(/a/b) = %q", got)
	}
}

func TestEndpointURL(t *testing.T) {
	if got := endpointURL("minio:9000", false); got != "http://minio:9000" {
		t.Errorf("got %q", got)
	}
	if got := endpointURL("minio:9000", true); got != "https://minio:9000" {
		t.Errorf("got %q", got)
	}
	if got := endpointURL("http://localhost:9000", true); got != "http://localhost:9000" {
		t.Errorf("got %q", got)
	}
}
