// Package storage keeps rendered PDFs in an S3-compatible object store.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/and161185/clawxiv/internal/errs"
)

const (
	pdfContentType  = "application/pdf"
	pdfCacheControl = "public, max-age=31536000"
)

var loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

// Store is the blob store used by the submission pipeline and read paths.
type Store interface {
	Upload(ctx context.Context, data []byte, paperID string) (string, error)
	Download(ctx context.Context, key string) ([]byte, error)
	SignedURL(ctx context.Context, key string) (string, error)
}

type objectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

type presigner interface {
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Options configures the S3 store.
type Options struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	PathStyle bool
	URLTTL    time.Duration
	// PublicBaseURL is used to build application-served PDF links when URLs cannot be signed.
	PublicBaseURL string
}

// S3Store implements Store on top of aws-sdk-go-v2.
type S3Store struct {
	api     objectAPI
	presign presigner
	bucket  string
	ttl     time.Duration
	baseURL string
}

// NewS3 builds an S3Store. Without static credentials the store falls back to
// the default credential chain for reads/writes and never signs URLs.
func NewS3(ctx context.Context, o Options) (*S3Store, error) {
	if o.Bucket == "" {
		return nil, errors.New("storage: bucket is required")
	}
	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(o.Region)}
	if o.AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(o.AccessKey, o.SecretKey, "")))
	}
	cfg, err := loadDefaultAWSConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg, func(so *s3.Options) {
		if o.Endpoint != "" {
			so.BaseEndpoint = aws.String(o.Endpoint)
		}
		so.UsePathStyle = o.PathStyle
	})

	st := newStore(client, nil, o)
	if o.AccessKey != "" {
		st.presign = s3.NewPresignClient(client)
	}
	return st, nil
}

func newStore(api objectAPI, p presigner, o Options) *S3Store {
	ttl := o.URLTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &S3Store{
		api:     api,
		presign: p,
		bucket:  o.Bucket,
		ttl:     ttl,
		baseURL: strings.TrimRight(o.PublicBaseURL, "/"),
	}
}

// KeyFor returns the object key of a paper's PDF.
func KeyFor(paperID string) string { return paperID + ".pdf" }

// Upload stores the PDF of paperID and returns its key.
func (s *S3Store) Upload(ctx context.Context, data []byte, paperID string) (string, error) {
	key := KeyFor(paperID)
	_, err := s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(pdfContentType),
		CacheControl:  aws.String(pdfCacheControl),
	})
	if err != nil {
		return "", fmt.Errorf("put %s: %w", key, err)
	}
	return key, nil
}

// Download reads an object. A missing object is errs.ErrNotFound.
func (s *S3Store) Download(ctx context.Context, key string) ([]byte, error) {
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("get %s: %w", key, errs.ErrNotFound)
		}
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	defer out.Body.Close()

	b, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return b, nil
}

// SignedURL returns a time-limited GET URL, or the application's own PDF
// route when the store has no signing credentials.
func (s *S3Store) SignedURL(ctx context.Context, key string) (string, error) {
	if s.presign == nil {
		return s.baseURL + "/api/pdf/" + strings.TrimSuffix(key, ".pdf"), nil
	}
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.ttl))
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return req.URL, nil
}
