// Package uploader performs the object-storage put for each recording.
package uploader

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"os"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// S3API is the subset of the S3 client used by the uploader; tests supply a
// fake.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Option configures the uploader.
type Option func(*Uploader)

// WithChecksum enables the streamed SHA-256 integrity precondition on every
// put.
func WithChecksum() Option {
	return func(u *Uploader) { u.checksum = true }
}

// WithRateLimit throttles puts to n per second; n <= 0 disables throttling.
func WithRateLimit(n float64) Option {
	return func(u *Uploader) {
		if n > 0 {
			u.limiter = rate.NewLimiter(rate.Limit(n), 1)
		} else {
			u.limiter = nil
		}
	}
}

// Uploader puts recording files into an S3 bucket. Failures are per-file:
// the caller reports them and moves to the next file; nothing is retried.
type Uploader struct {
	api      S3API
	checksum bool
	limiter  *rate.Limiter
}

// New builds an uploader against the real S3 service in the given region.
func New(ctx context.Context, region string, opts ...Option) (*Uploader, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, eris.Wrap(err, "uploader: load aws config")
	}
	return NewWithAPI(s3.NewFromConfig(awsCfg), opts...), nil
}

// NewWithAPI wraps an existing S3 client; used by tests.
func NewWithAPI(api S3API, opts ...Option) *Uploader {
	u := &Uploader{api: api}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// checksumChunkSize is the read size used when streaming a file through the
// hash.
const checksumChunkSize = 64 * 1024

// Upload puts one file at bucket/key and returns the object location.
func (u *Uploader) Upload(ctx context.Context, path, bucket, key string) (string, error) {
	if u.limiter != nil {
		if err := u.limiter.Wait(ctx); err != nil {
			return "", eris.Wrap(err, "uploader: rate limit")
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return "", eris.Wrapf(err, "uploader: open %s", path)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", eris.Wrapf(err, "uploader: stat %s", path)
	}

	in := &s3.PutObjectInput{
		Bucket:        &bucket,
		Key:           &key,
		Body:          f,
		ContentLength: ptr(info.Size()),
	}

	if u.checksum {
		sum, err := fileSHA256(f)
		if err != nil {
			return "", err
		}
		in.ChecksumSHA256 = &sum
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return "", eris.Wrapf(err, "uploader: rewind %s", path)
		}
	}

	if _, err := u.api.PutObject(ctx, in); err != nil {
		return "", eris.Wrapf(err, "uploader: put s3://%s/%s", bucket, key)
	}

	return fmt.Sprintf("s3://%s/%s", bucket, key), nil
}

// fileSHA256 streams the open file through SHA-256 in fixed-size chunks and
// returns the base64 digest the service expects as a precondition.
func fileSHA256(f *os.File) (string, error) {
	h := sha256.New()
	buf := make([]byte, checksumChunkSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", eris.Wrap(err, "uploader: hash file")
	}
	return base64.StdEncoding.EncodeToString(h.Sum(nil)), nil
}

func ptr[T any](v T) *T { return &v }
