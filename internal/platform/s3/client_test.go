package s3

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testClient creates a Client backed by a test HTTP server.
// The handler receives real S3 XML-protocol requests.
func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := s3.New(s3.Options{
		Region:       "eu-west-2",
		BaseEndpoint: aws.String(server.URL),
		UsePathStyle: true,
		Credentials:  credentials.NewStaticCredentialsProvider("test-key", "test-secret", ""),
		HTTPClient: &http.Client{
			Transport: &http.Transport{},
		},
	})

	return &Client{s3: client, region: "eu-west-2"}
}

// xmlResponse is a helper to write S3-style XML responses.
func xmlResponse(w http.ResponseWriter, statusCode int, body string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(statusCode)
	_, _ = w.Write([]byte(body))
}

const noSuchKey = `<?xml version="1.0" encoding="UTF-8"?>
<Error>
  <Code>NoSuchKey</Code>
  <Message>The specified key does not exist.</Message>
</Error>`

// fakeBucket is a minimal path-style S3 server for a single bucket.
type fakeBucket struct {
	mu      sync.Mutex
	name    string
	objects map[string][]byte
}

func newFakeBucket(name string) *fakeBucket {
	return &fakeBucket{name: name, objects: map[string][]byte{}}
}

func (b *fakeBucket) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	p := strings.TrimPrefix(r.URL.Path, "/")
	bucket, key, _ := strings.Cut(p, "/")
	if bucket != b.name {
		xmlResponse(w, http.StatusNotFound, `<Error><Code>NoSuchBucket</Code></Error>`)
		return
	}

	switch {
	case r.Method == http.MethodHead && key == "":
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodGet && key == "":
		prefix := r.URL.Query().Get("prefix")
		var keys []string
		for k := range b.objects {
			if strings.HasPrefix(k, prefix) {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		var body strings.Builder
		body.WriteString(`<?xml version="1.0" encoding="UTF-8"?><ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">`)
		fmt.Fprintf(&body, "<Name>%s</Name><KeyCount>%d</KeyCount><IsTruncated>false</IsTruncated>", b.name, len(keys))
		for _, k := range keys {
			fmt.Fprintf(&body, "<Contents><Key>%s</Key><Size>%d</Size></Contents>", k, len(b.objects[k]))
		}
		body.WriteString(`</ListBucketResult>`)
		xmlResponse(w, http.StatusOK, body.String())
	case r.Method == http.MethodPut:
		data, _ := io.ReadAll(r.Body)
		b.objects[key] = data
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodGet:
		data, ok := b.objects[key]
		if !ok {
			xmlResponse(w, http.StatusNotFound, noSuchKey)
			return
		}
		w.Header().Set("Content-Length", fmt.Sprint(len(data)))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	case r.Method == http.MethodDelete:
		delete(b.objects, key)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (b *fakeBucket) keys() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	keys := make([]string, 0, len(b.objects))
	for k := range b.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func TestNewClient(t *testing.T) {
	t.Parallel()

	for _, endpoint := range []string{"", "https://fsn1.your-objectstorage.com"} {
		client, err := NewClient(context.Background(), endpoint, "eu-west-2", "access", "secret")
		require.NoError(t, err)
		assert.Equal(t, "eu-west-2", client.region)
	}
}

func TestPutAndGetObject(t *testing.T) {
	t.Parallel()
	bucket := newFakeBucket("sn-testnet")
	client := testClient(t, bucket)
	ctx := context.Background()

	require.NoError(t, client.PutObject(ctx, "sn-testnet", "testnet-deploy/beta/snapshot.yaml", []byte("name: beta\n")))

	data, err := client.GetObject(ctx, "sn-testnet", "testnet-deploy/beta/snapshot.yaml")
	require.NoError(t, err)
	assert.Equal(t, "name: beta\n", string(data))
}

func TestGetObject_NotFound(t *testing.T) {
	t.Parallel()
	client := testClient(t, newFakeBucket("sn-testnet"))

	_, err := client.GetObject(context.Background(), "sn-testnet", "missing-key")

	require.ErrorIs(t, err, fs.ErrNotExist)
	assert.EqualError(t, err, "object missing-key not found in bucket sn-testnet")
}

func TestGetObject_OtherError(t *testing.T) {
	t.Parallel()
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		xmlResponse(w, http.StatusForbidden, `<Error><Code>AccessDenied</Code><Message>Access Denied</Message></Error>`)
	}))

	_, err := client.GetObject(context.Background(), "sn-testnet", "key")

	require.Error(t, err)
	assert.NotErrorIs(t, err, fs.ErrNotExist)
	assert.Contains(t, err.Error(), "failed to get object key from bucket sn-testnet")
}

func TestBucketExists(t *testing.T) {
	t.Parallel()
	client := testClient(t, newFakeBucket("sn-testnet"))

	ok, err := client.BucketExists(context.Background(), "sn-testnet")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = client.BucketExists(context.Background(), "other")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestListObjects_WithPrefix(t *testing.T) {
	t.Parallel()
	bucket := newFakeBucket("sn-testnet")
	bucket.objects["testnet-logs/beta/a.log"] = []byte("a")
	bucket.objects["testnet-logs/beta/b.log"] = []byte("b")
	bucket.objects["testnet-logs/gamma/c.log"] = []byte("c")
	client := testClient(t, bucket)

	keys, err := client.ListObjects(context.Background(), "sn-testnet", "testnet-logs/beta")

	require.NoError(t, err)
	assert.Equal(t, []string{"testnet-logs/beta/a.log", "testnet-logs/beta/b.log"}, keys)
}

func TestUploadDownloadDeleteFolder(t *testing.T) {
	t.Parallel()
	bucket := newFakeBucket("sn-testnet")
	client := testClient(t, bucket)
	ctx := context.Background()

	src := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(src, "beta-node-1", "antnode1"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "beta-node-1", "antnode1", "antnode.log"), []byte("one"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "top.log"), []byte("two"), 0o644))

	n, err := client.UploadFolder(ctx, "sn-testnet", src, "testnet-logs/beta")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{
		"testnet-logs/beta/beta-node-1/antnode1/antnode.log",
		"testnet-logs/beta/top.log",
	}, bucket.keys())

	dst := t.TempDir()
	n, err = client.DownloadFolder(ctx, "sn-testnet", "testnet-logs/beta", dst)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	data, err := os.ReadFile(filepath.Join(dst, "beta-node-1", "antnode1", "antnode.log"))
	require.NoError(t, err)
	assert.True(t, bytes.Equal([]byte("one"), data))

	n, err = client.DeleteFolder(ctx, "sn-testnet", "testnet-logs/beta")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Empty(t, bucket.keys())
}

func TestDownloadFolder_EmptyPrefix(t *testing.T) {
	t.Parallel()
	client := testClient(t, newFakeBucket("sn-testnet"))

	_, err := client.DownloadFolder(context.Background(), "sn-testnet", "testnet-logs/none", t.TempDir())
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestIsNotFoundError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error", nil, false},
		{"wrapped NoSuchBucket", fmt.Errorf("outer: %w", &s3types.NoSuchBucket{}), true},
		{"wrapped NoSuchKey", fmt.Errorf("outer: %w", &s3types.NoSuchKey{}), true},
		{"wrapped NotFound", fmt.Errorf("outer: %w", &s3types.NotFound{}), true},
		{"generic error", fmt.Errorf("outer: %w", fmt.Errorf("inner error")), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, isNotFoundError(tt.err))
		})
	}
}
