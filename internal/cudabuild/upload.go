package cudabuild

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

var r2Keys = []string{"R2_ACCOUNT_ID", "R2_ACCESS_KEY_ID", "R2_SECRET_ACCESS_KEY", "R2_BUCKET_NAME"}

// R2Client wraps the S3 client for Cloudflare R2.
type R2Client struct {
	Client     *s3.Client
	BucketName string
}

// r2Configured reports whether every R2 credential is present.
func r2Configured(cfg *Config) bool {
	for _, k := range r2Keys {
		if cfg.Values[k] == "" {
			return false
		}
	}
	return true
}

// NewR2Client initializes a new R2 client using configuration values.
func NewR2Client(ctx context.Context, cfg *Config) (*R2Client, error) {
	if !r2Configured(cfg) {
		return nil, fmt.Errorf("R2 credentials missing in configuration (%s)", strings.Join(r2Keys, ", "))
	}
	accountID := cfg.Values["R2_ACCOUNT_ID"]
	accessKey := cfg.Values["R2_ACCESS_KEY_ID"]
	secretKey := cfg.Values["R2_SECRET_ACCESS_KEY"]

	options := []func(*config.LoadOptions) error{
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")),
		config.WithRegion("auto"),
	}
	if Debug {
		options = append(options, config.WithClientLogMode(aws.LogRetries|aws.LogRequest|aws.LogResponse))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to load R2 config: %w", err)
	}

	endpoint := cfg.Values["R2_ENDPOINT"]
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://%s.r2.cloudflarestorage.com", accountID)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})

	return &R2Client{
		Client:     client,
		BucketName: cfg.Values["R2_BUCKET_NAME"],
	}, nil
}

func contentTypeFor(key string) string {
	switch {
	case strings.HasSuffix(key, ".xz"):
		return "application/x-xz"
	case strings.HasSuffix(key, ".zst"):
		return "application/zstd"
	case strings.HasSuffix(key, ".gz"):
		return "application/gzip"
	case strings.HasSuffix(key, ".log"), strings.HasSuffix(key, ".b3"):
		return "text/plain; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}

// UploadLocalFile uploads a file from disk to R2.
func (r *R2Client) UploadLocalFile(ctx context.Context, key, filePath string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return err
	}

	_, err = r.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(r.BucketName),
		Key:           aws.String(key),
		Body:          file,
		ContentLength: aws.Int64(stat.Size()),
		ContentType:   aws.String(contentTypeFor(key)),
	})
	return err
}

// uploadKey places a local file under prefix in the bucket.
func uploadKey(prefix, filePath string) string {
	if prefix == "" {
		return filepath.Base(filePath)
	}
	return path.Join(prefix, filepath.Base(filePath))
}

// uploadArtifacts pushes the given files when R2 is configured. Failures
// are reported and skipped.
func uploadArtifacts(ctx context.Context, cfg *Config, prefix string, files ...string) {
	if !r2Configured(cfg) {
		debugf("=> R2 not configured, skipping upload\n")
		return
	}
	client, err := NewR2Client(ctx, cfg)
	if err != nil {
		warnf("Upload skipped: %v", err)
		return
	}
	for _, f := range files {
		if f == "" {
			continue
		}
		key := uploadKey(prefix, f)
		if err := client.UploadLocalFile(ctx, key, f); err != nil {
			warnf("Failed to upload %s: %v", key, err)
			continue
		}
		step("Uploaded %s", key)
	}
}
