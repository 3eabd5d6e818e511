package solution

import (
	"bytes"
	"cmp"
	"context"
	"fmt"
	"io"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Config addresses a bucket on S3 or any S3-compatible server.
type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	UseSSL    bool
}

// S3ConfigFromURL reads s3://[key:secret@]bucket[/prefix]?endpoint=…&region=…&ssl=….
// Credentials missing from the URL are taken from AWS_ACCESS_KEY_ID and
// AWS_SECRET_ACCESS_KEY by the client.
func S3ConfigFromURL(u *url.URL) (S3Config, error) {
	q := u.Query()
	cfg := S3Config{
		Endpoint: cmp.Or(strings.TrimSpace(q.Get("endpoint")), "s3.amazonaws.com"),
		Region:   cmp.Or(strings.TrimSpace(q.Get("region")), "us-east-1"),
		Bucket:   u.Host,
		Prefix:   strings.Trim(u.Path, "/"),
		UseSSL:   true,
	}
	if cfg.Bucket == "" {
		return S3Config{}, fmt.Errorf("s3 bucket is required")
	}
	if raw := q.Get("ssl"); raw != "" {
		ssl, err := strconv.ParseBool(raw)
		if err != nil {
			return S3Config{}, fmt.Errorf("s3 ssl flag %q: %w", raw, err)
		}
		cfg.UseSSL = ssl
	}
	if u.User != nil {
		cfg.AccessKey = u.User.Username()
		cfg.SecretKey, _ = u.User.Password()
	}
	return cfg, nil
}

// S3Backend keeps one object per document under an optional key prefix.
type S3Backend struct {
	client *minio.Client
	cfg    S3Config

	initOnce sync.Once
	initErr  error
}

func NewS3Backend(cfg S3Config) (*S3Backend, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	creds := credentials.NewEnvAWS()
	if cfg.AccessKey != "" || cfg.SecretKey != "" {
		creds = credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, "")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  creds,
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}
	return &S3Backend{client: client, cfg: cfg}, nil
}

func (b *S3Backend) ensureBucket(ctx context.Context) error {
	b.initOnce.Do(func() {
		exists, err := b.client.BucketExists(ctx, b.cfg.Bucket)
		if err != nil {
			b.initErr = err
			return
		}
		if exists {
			return
		}
		b.initErr = b.client.MakeBucket(ctx, b.cfg.Bucket, minio.MakeBucketOptions{Region: b.cfg.Region})
	})
	return b.initErr
}

func (b *S3Backend) prefix() string {
	if b.cfg.Prefix == "" {
		return ""
	}
	return b.cfg.Prefix + "/"
}

func (b *S3Backend) key(name string) string {
	return b.prefix() + name + DocumentExt
}

func (b *S3Backend) Put(ctx context.Context, name string, data []byte) error {
	if err := CheckName(name); err != nil {
		return err
	}
	if err := b.ensureBucket(ctx); err != nil {
		return fmt.Errorf("ensure bucket: %w", err)
	}
	_, err := b.client.PutObject(ctx, b.cfg.Bucket, b.key(name), bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return fmt.Errorf("put %s: %w", name, err)
	}
	return nil
}

func (b *S3Backend) Get(ctx context.Context, name string) ([]byte, error) {
	if err := CheckName(name); err != nil {
		return nil, err
	}
	if err := b.ensureBucket(ctx); err != nil {
		return nil, fmt.Errorf("ensure bucket: %w", err)
	}
	obj, err := b.client.GetObject(ctx, b.cfg.Bucket, b.key(name), minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", name, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		switch minio.ToErrorResponse(err).Code {
		case "NoSuchKey", "NoSuchBucket":
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get %s: %w", name, err)
	}
	return data, nil
}

func (b *S3Backend) List(ctx context.Context) ([]string, error) {
	if err := b.ensureBucket(ctx); err != nil {
		return nil, fmt.Errorf("ensure bucket: %w", err)
	}
	// Cancelling stops the listing goroutine when we return early.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	names, err := objectNames(b.client.ListObjects(ctx, b.cfg.Bucket, minio.ListObjectsOptions{Prefix: b.prefix()}), b.prefix())
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", b.cfg.Bucket, err)
	}
	return names, nil
}

// objectNames collects the solution names among the listed keys directly
// under prefix. It stops at the first listing error.
func objectNames(objects <-chan minio.ObjectInfo, prefix string) ([]string, error) {
	var names []string
	for obj := range objects {
		if obj.Err != nil {
			return nil, obj.Err
		}
		n := strings.TrimPrefix(obj.Key, prefix)
		if !strings.HasSuffix(n, DocumentExt) || strings.Contains(n, "/") {
			continue
		}
		names = append(names, strings.TrimSuffix(n, DocumentExt))
	}
	slices.Sort(names)
	return names, nil
}

func (b *S3Backend) Close() error { return nil }
