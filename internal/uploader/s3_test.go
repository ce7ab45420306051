package uploader

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 captures the put input and drains the body like the real client.
type fakeS3 struct {
	in   *s3.PutObjectInput
	body []byte
	err  error
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.in = in
	if f.err != nil {
		return nil, f.err
	}
	var err error
	f.body, err = io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	return &s3.PutObjectOutput{}, nil
}

func writeRecording(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "a1b2c3d4-e5f6-7890-abcd-ef1234567890.wav")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestUpload(t *testing.T) {
	path := writeRecording(t, "RIFFaudio-bytes")
	api := &fakeS3{}
	u := NewWithAPI(api)

	loc, err := u.Upload(context.Background(), path, "recordings", "k.wav")
	require.NoError(t, err)
	assert.Equal(t, "s3://recordings/k.wav", loc)

	require.NotNil(t, api.in)
	assert.Equal(t, "recordings", *api.in.Bucket)
	assert.Equal(t, "k.wav", *api.in.Key)
	require.NotNil(t, api.in.ContentLength)
	assert.Equal(t, int64(len("RIFFaudio-bytes")), *api.in.ContentLength)
	assert.Equal(t, "RIFFaudio-bytes", string(api.body))
	assert.Nil(t, api.in.ChecksumSHA256)
}

func TestUpload_WithChecksum(t *testing.T) {
	content := "RIFFaudio-bytes"
	path := writeRecording(t, content)
	api := &fakeS3{}
	u := NewWithAPI(api, WithChecksum())

	_, err := u.Upload(context.Background(), path, "recordings", "k.wav")
	require.NoError(t, err)

	sum := sha256.Sum256([]byte(content))
	want := base64.StdEncoding.EncodeToString(sum[:])
	require.NotNil(t, api.in.ChecksumSHA256)
	assert.Equal(t, want, *api.in.ChecksumSHA256)

	// The body is rewound after hashing so the full file still uploads.
	assert.Equal(t, content, string(api.body))
}

func TestUpload_MissingFile(t *testing.T) {
	u := NewWithAPI(&fakeS3{})

	_, err := u.Upload(context.Background(), "/does/not/exist.wav", "recordings", "k.wav")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "uploader: open")
}

func TestUpload_ServiceError(t *testing.T) {
	path := writeRecording(t, "x")
	u := NewWithAPI(&fakeS3{err: errors.New("access denied")})

	_, err := u.Upload(context.Background(), path, "recordings", "k.wav")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "uploader: put s3://recordings/k.wav")
}

func TestUpload_RateLimitCancelled(t *testing.T) {
	path := writeRecording(t, "x")
	u := NewWithAPI(&fakeS3{}, WithRateLimit(0.001))

	// First token is available immediately.
	_, err := u.Upload(context.Background(), path, "recordings", "k1.wav")
	require.NoError(t, err)

	// The second put waits for a token; a cancelled context aborts it.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = u.Upload(ctx, path, "recordings", "k2.wav")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "uploader: rate limit")
}
