package storage

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 serves the path-style subset of S3 that S3Storage uses.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (f *fakeS3) RoundTrip(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	parts := strings.SplitN(strings.TrimPrefix(req.URL.Path, "/"), "/", 2)
	key := ""
	if len(parts) == 2 {
		key = parts[1]
	}

	empty := func(status int) *http.Response {
		return &http.Response{StatusCode: status, Body: io.NopCloser(bytes.NewReader(nil)), Header: http.Header{}}
	}

	switch req.Method {
	case http.MethodHead:
		body, ok := f.objects[key]
		if !ok {
			return empty(http.StatusNotFound), nil
		}
		resp := empty(http.StatusOK)
		resp.Header.Set("Content-Length", strconv.Itoa(len(body)))
		return resp, nil
	case http.MethodPut:
		body, _ := io.ReadAll(req.Body)
		if dec, ok := decodeAWSChunked(body); ok {
			body = dec
		}
		f.objects[key] = body
		resp := empty(http.StatusOK)
		resp.Header.Set("ETag", `"etag"`)
		return resp, nil
	case http.MethodGet:
		body, ok := f.objects[key]
		if !ok {
			msg := `<?xml version="1.0"?><Error><Code>NoSuchKey</Code><Message>missing</Message></Error>`
			return &http.Response{
				StatusCode: http.StatusNotFound,
				Body:       io.NopCloser(strings.NewReader(msg)),
				Header:     http.Header{"Content-Type": {"application/xml"}},
			}, nil
		}
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(bytes.NewReader(body)),
			Header: http.Header{
				"Content-Length": {strconv.Itoa(len(body))},
				"Last-Modified":  {time.Now().UTC().Format(http.TimeFormat)},
			},
		}, nil
	case http.MethodDelete:
		delete(f.objects, key)
		return empty(http.StatusNoContent), nil
	}
	return empty(http.StatusNotImplemented), nil
}

// decodeAWSChunked unwraps a single-chunk aws-chunked body.
func decodeAWSChunked(b []byte) ([]byte, bool) {
	parts := strings.Split(string(b), "\r\n")
	if len(parts) < 3 {
		return nil, false
	}
	size, err := strconv.ParseInt(strings.SplitN(parts[0], ";", 2)[0], 16, 64)
	if err != nil || int64(len(parts[1])) != size || !strings.HasPrefix(parts[2], "0") {
		return nil, false
	}
	return []byte(parts[1]), true
}

func newTestS3(t *testing.T, fake *fakeS3) *S3Storage {
	t.Helper()
	s, err := NewS3Storage(context.Background(), S3Config{
		Bucket:          "attachments",
		Region:          "ap-southeast-1",
		Endpoint:        "https://s3.test.local",
		PathStyle:       true,
		AccessKeyID:     "AKIA",
		SecretAccessKey: "SECRET",
		MaxUploadMB:     1,
		HTTPClient:      &http.Client{Transport: fake},
	})
	require.NoError(t, err)
	return s
}

func TestS3Storage_SaveOpenDelete(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{}}
	s := newTestS3(t, fake)
	ctx := context.Background()
	proposalID := uuid.New()

	key, size, err := s.Save(ctx, proposalID, "plan.pdf", "application/pdf", bytes.NewReader(pdfHeader))
	require.NoError(t, err)
	assert.Equal(t, int64(len(pdfHeader)), size)
	assert.Contains(t, fake.objects, key)

	rc, err := s.Open(ctx, key)
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	_ = rc.Close()
	assert.Equal(t, pdfHeader, got)

	require.NoError(t, s.Delete(ctx, key))
	assert.NotContains(t, fake.objects, key)

	_, err = s.Open(ctx, key)
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

// writeCABundle writes a throwaway self-signed certificate as PEM.
func writeCABundle(t *testing.T) string {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "test-ca"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "ca.pem")
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o600))
	return path
}

func TestS3Storage_CustomClientWithCABundle(t *testing.T) {
	t.Setenv("AWS_CA_BUNDLE", writeCABundle(t))
	fake := &fakeS3{objects: map[string][]byte{}}
	s := newTestS3(t, fake)

	key, _, err := s.Save(context.Background(), uuid.New(), "plan.pdf", "application/pdf", bytes.NewReader(pdfHeader))
	require.NoError(t, err)
	assert.Contains(t, fake.objects, key)
}

func TestS3Storage_RejectsOversizedUpload(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{}}
	s := newTestS3(t, fake)

	big := bytes.Repeat([]byte("x"), 1024*1024+1)
	_, _, err := s.Save(context.Background(), uuid.New(), "big.pdf", "application/pdf", bytes.NewReader(big))
	assert.ErrorIs(t, err, ErrTooLarge)
	assert.Empty(t, fake.objects)
}

func TestNewS3Storage_RequiresBucket(t *testing.T) {
	_, err := NewS3Storage(context.Background(), S3Config{})
	assert.Error(t, err)
	assert.Equal(t, "storage: s3 bucket required", fmt.Sprint(err))
}
