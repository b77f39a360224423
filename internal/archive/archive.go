package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/emrgen/impact/internal/analysis"
	"github.com/emrgen/impact/internal/config"
)

// Record is the archived form of one completed analysis.
type Record struct {
	ArticleID  string                 `json:"article_id"`
	UserID     string                 `json:"user_id"`
	Content    string                 `json:"content"`
	URL        string                 `json:"url,omitempty"`
	Analysis   *analysis.AnalysisData `json:"analysis"`
	ArchivedAt time.Time              `json:"archived_at"`
}

// Archiver keeps a copy of analysed articles outside the database.
type Archiver interface {
	Put(ctx context.Context, record *Record) error
}

type Nop struct{}

func (Nop) Put(ctx context.Context, record *Record) error {
	return nil
}

// ObjectPutter is the part of the S3 client the archiver uses.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

type S3Archiver struct {
	client ObjectPutter
	bucket string
	prefix string
}

// NewS3 builds an archiver over the default AWS credential chain.
func NewS3(ctx context.Context, cfg config.S3Config) (*S3Archiver, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})

	return NewS3Archiver(client, cfg.Bucket, cfg.Prefix), nil
}

func NewS3Archiver(client ObjectPutter, bucket, prefix string) *S3Archiver {
	return &S3Archiver{client: client, bucket: bucket, prefix: prefix}
}

func (a *S3Archiver) Key(articleID string) string {
	return path.Join(a.prefix, "articles", articleID+".json")
}

func (a *S3Archiver) Put(ctx context.Context, record *Record) error {
	body, err := json.Marshal(record)
	if err != nil {
		return err
	}

	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(a.Key(record.ArticleID)),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("archive article %s: %w", record.ArticleID, err)
	}

	return nil
}
