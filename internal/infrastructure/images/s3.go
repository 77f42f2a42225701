// Package images re-hosts recipe images in the application's S3 bucket.
package images

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	appErrors "savethespice-backend/internal/errors"
)

// MaxImageBytes caps the size of a fetched image.
const MaxImageBytes = 10 << 20

// S3API is the subset of the S3 client the host uses.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// Options configures an S3Host.
type Options struct {
	Bucket string
	// Prefix is the public URL prefix of stored objects. It defaults to the bucket's
	// virtual-hosted URL in us-west-2.
	Prefix      string
	HTTPClient  *http.Client
	FailureRate float64
	MinRequests uint32
	OpenTimeout time.Duration
}

// S3Host fetches external images and stores them in S3. Fetches go through a circuit
// breaker so that a misbehaving image host cannot stall every recipe write.
type S3Host struct {
	client  S3API
	bucket  string
	prefix  string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

// NewS3Host creates an S3-backed image host.
func NewS3Host(client S3API, opts Options, logger *zap.Logger) *S3Host {
	if opts.Prefix == "" {
		opts.Prefix = fmt.Sprintf("https://%s.s3-us-west-2.amazonaws.com/", opts.Bucket)
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	if opts.FailureRate == 0 {
		opts.FailureRate = 0.6
	}
	if opts.MinRequests == 0 {
		opts.MinRequests = 5
	}
	if opts.OpenTimeout == 0 {
		opts.OpenTimeout = 30 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "image-fetch",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     opts.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < opts.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= opts.FailureRate
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &S3Host{
		client:  client,
		bucket:  opts.Bucket,
		prefix:  opts.Prefix,
		http:    opts.HTTPClient,
		breaker: breaker,
		logger:  logger,
	}
}

// Hosted reports whether src already points into the bucket.
func (h *S3Host) Hosted(src string) bool {
	return strings.HasPrefix(src, h.prefix)
}

// Rehost stores the image at src and returns its public URL. Hosted images and data URLs
// are returned unchanged.
func (h *S3Host) Rehost(ctx context.Context, src string) (string, error) {
	if src == "" || h.Hosted(src) || strings.HasPrefix(src, "data:image/") {
		return src, nil
	}
	if !strings.Contains(src, "://") {
		src = "http://" + src
	}

	out, err := h.breaker.Execute(func() (any, error) {
		return h.fetch(ctx, src)
	})
	if err != nil {
		return "", appErrors.Unavailable(appErrors.CodeImageRehostFailed, "image could not be fetched").
			WithDetails(src).
			WithCause(err).
			Build()
	}
	img := out.(image)

	key := uuid.NewString() + "." + img.extension
	_, err = h.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(h.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(img.body),
		ContentType: aws.String(img.contentType),
		ACL:         s3types.ObjectCannedACLPublicRead,
	})
	if err != nil {
		return "", appErrors.Unavailable(appErrors.CodeImageRehostFailed, "image could not be stored").
			WithCause(err).
			Build()
	}

	h.logger.Debug("image re-hosted", zap.String("source", src), zap.String("key", key))
	return h.prefix + key, nil
}

// Remove deletes a hosted image. Anything else is ignored.
func (h *S3Host) Remove(ctx context.Context, src string) error {
	if !h.Hosted(src) {
		return nil
	}
	key := strings.TrimPrefix(src, h.prefix)
	if _, err := h.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(h.bucket),
		Key:    aws.String(key),
	}); err != nil {
		return appErrors.Unavailable(appErrors.CodeImageRehostFailed, "image could not be deleted").
			WithDetails(key).
			WithCause(err).
			Build()
	}
	h.logger.Debug("image deleted", zap.String("key", key))
	return nil
}

type image struct {
	body        []byte
	contentType string
	extension   string
}

func (h *S3Host) fetch(ctx context.Context, src string) (image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return image{}, err
	}
	resp, err := h.http.Do(req)
	if err != nil {
		return image{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return image{}, fmt.Errorf("fetch %s: status %d", src, resp.StatusCode)
	}
	mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil {
		return image{}, fmt.Errorf("fetch %s: %w", src, err)
	}
	kind, ext, ok := strings.Cut(mediaType, "/")
	if !ok || kind != "image" {
		return image{}, fmt.Errorf("fetch %s: not an image (%s)", src, mediaType)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxImageBytes+1))
	if err != nil {
		return image{}, err
	}
	if len(body) > MaxImageBytes {
		return image{}, fmt.Errorf("fetch %s: image larger than %d bytes", src, MaxImageBytes)
	}
	return image{body: body, contentType: mediaType, extension: ext}, nil
}

// Passthrough keeps image URLs as given. It is used when no bucket is configured.
type Passthrough struct{}

// Rehost returns src unchanged.
func (Passthrough) Rehost(_ context.Context, src string) (string, error) { return src, nil }

// Remove does nothing.
func (Passthrough) Remove(context.Context, string) error { return nil }
