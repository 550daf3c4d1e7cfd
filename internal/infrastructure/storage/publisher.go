// Package storage publishes rendered invoice PDFs to S3-compatible object
// storage.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	infraconfig "github.com/sellerhub/invoicing/internal/infrastructure/config"
	"go.uber.org/zap"
)

const pdfContentType = "application/pdf"

// ObjectKey builds the storage key for an invoice PDF. Reprints get their
// own object so the original is never clobbered.
func ObjectKey(stage, shopID, orderID, packageID string, sequence int64, reprint bool) string {
	name := fmt.Sprintf("%d.pdf", sequence)
	if reprint {
		name = fmt.Sprintf("%d_reprint.pdf", sequence)
	}
	return fmt.Sprintf("%s/invoices/tiktok/%s/%s/%s/%s", stage, shopID, orderID, packageID, name)
}

// S3Publisher uploads invoice PDFs using AWS S3 SDK v2. It is compatible
// with any S3-compatible storage (AWS S3, MinIO, RustFS, etc.)
type S3Publisher struct {
	cfg      *infraconfig.StorageConfig
	endpoint string
	bucket   string
	logger   *zap.Logger

	mu     sync.Mutex
	client *s3.Client
}

// NewS3Publisher creates a publisher from configuration
func NewS3Publisher(cfg *infraconfig.StorageConfig, logger *zap.Logger) (*S3Publisher, error) {
	if cfg == nil {
		return nil, errors.New("storage configuration is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("storage bucket is required")
	}
	if cfg.AccessKey == "" {
		return nil, errors.New("storage access key is required")
	}
	if cfg.SecretKey == "" {
		return nil, errors.New("storage secret key is required")
	}

	endpoint := cfg.Endpoint
	if endpoint != "" {
		if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
			if cfg.UseSSL {
				endpoint = "https://" + endpoint
			} else {
				endpoint = "http://" + endpoint
			}
		}
		if _, err := url.Parse(endpoint); err != nil {
			return nil, fmt.Errorf("invalid storage endpoint: %w", err)
		}
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	p := &S3Publisher{
		cfg:      cfg,
		endpoint: endpoint,
		bucket:   cfg.Bucket,
		logger:   logger,
	}

	client, err := p.buildClient(false)
	if err != nil {
		return nil, err
	}
	p.client = client

	return p, nil
}

// buildClient constructs an S3 client; adaptive enables client-side rate
// limited retries for the recovery path after connectivity failures.
func (p *S3Publisher) buildClient(adaptive bool) (*s3.Client, error) {
	region := p.cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			p.cfg.AccessKey,
			p.cfg.SecretKey,
			"",
		)),
		awsconfig.WithHTTPClient(newHTTPClient(p.cfg.ConnectTimeout)),
	}
	if adaptive {
		loadOpts = append(loadOpts, awsconfig.WithRetryer(func() aws.Retryer {
			return retry.NewAdaptiveMode()
		}))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = p.cfg.UsePathStyle
		if p.endpoint != "" {
			o.BaseEndpoint = aws.String(p.endpoint)
		}
	}), nil
}

// newHTTPClient bounds TCP/TLS connection establishment separately from the
// per-request timeout applied in putObject.
func newHTTPClient(connectTimeout time.Duration) *awshttp.BuildableClient {
	if connectTimeout <= 0 {
		connectTimeout = 30 * time.Second
	}
	return awshttp.NewBuildableClient().WithDialerOptions(func(d *net.Dialer) {
		d.Timeout = connectTimeout
	})
}

// UploadPDF stores the PDF bytes under key and returns the object URL.
// Uploads are idempotent per key; overwriting an existing object is fine.
//
// A DNS or connectivity failure usually means the pooled connection state
// is stale, so the client is rebuilt with an adaptive retryer and the
// upload retried exactly once. Other errors propagate immediately.
func (p *S3Publisher) UploadPDF(ctx context.Context, key string, data []byte) (string, error) {
	if key == "" {
		return "", errors.New("storage key is required")
	}
	if len(data) == 0 {
		return "", errors.New("PDF data is empty")
	}

	err := p.putObject(ctx, key, data)
	if err == nil {
		return p.objectURL(key), nil
	}
	if !isConnectivityError(err) {
		return "", fmt.Errorf("failed to upload invoice PDF: %w", err)
	}

	p.logger.Warn("upload hit connectivity failure, rebuilding S3 client",
		zap.String("key", key),
		zap.Error(err))

	fresh, buildErr := p.buildClient(true)
	if buildErr != nil {
		return "", fmt.Errorf("failed to rebuild S3 client: %w", buildErr)
	}

	p.mu.Lock()
	p.client = fresh
	p.mu.Unlock()

	if err := p.putObject(ctx, key, data); err != nil {
		return "", fmt.Errorf("failed to upload invoice PDF after retry: %w", err)
	}

	return p.objectURL(key), nil
}

func (p *S3Publisher) putObject(ctx context.Context, key string, data []byte) error {
	p.mu.Lock()
	client := p.client
	p.mu.Unlock()

	ctx, cancel := p.requestContext(ctx)
	defer cancel()

	_, err := client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(pdfContentType),
	})
	return err
}

func (p *S3Publisher) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.cfg.RequestTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, p.cfg.RequestTimeout)
}

// objectURL derives the public URL of an uploaded object
func (p *S3Publisher) objectURL(key string) string {
	if p.endpoint != "" {
		if p.cfg.UsePathStyle {
			return fmt.Sprintf("%s/%s/%s", strings.TrimSuffix(p.endpoint, "/"), p.bucket, key)
		}
		u, _ := url.Parse(p.endpoint)
		return fmt.Sprintf("%s://%s.%s/%s", u.Scheme, p.bucket, u.Host, key)
	}

	region := p.cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", p.bucket, region, key)
}

// isConnectivityError reports whether the failure is DNS or network level
// rather than an S3 API rejection.
func isConnectivityError(err error) bool {
	if err == nil {
		return false
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	msg := err.Error()
	return strings.Contains(msg, "no such host") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset")
}
