package storage

import (
	"context"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/dmitrijs2005/deaddrop/internal/logging"
)

// Seams for tests.
var (
	loadDefaultAWSConfig  = config.LoadDefaultConfig
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// ObjectAPI is the part of *s3.Client the mirror uses.
type ObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObjects(ctx context.Context, in *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

// S3Config holds the object-storage settings.
type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
	Prefix    string
}

// NewS3Client builds a path-style client suitable for S3-compatible backends.
func NewS3Client(ctx context.Context, c S3Config) (*s3.Client, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(c.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(c.AccessKey, c.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if c.Endpoint != "" {
			o.BaseEndpoint = aws.String(c.Endpoint)
		}
		o.UsePathStyle = true
	}), nil
}

// S3Mirror wraps a Store and copies every committed artifact to a bucket.
// Mirror failures are logged and never fail the local operation.
type S3Mirror struct {
	Store
	api    ObjectAPI
	bucket string
	prefix string
	log    logging.Logger
}

func NewS3Mirror(inner Store, api ObjectAPI, bucket, prefix string, log logging.Logger) *S3Mirror {
	return &S3Mirror{Store: inner, api: api, bucket: bucket, prefix: prefix, log: log.With("module", "s3mirror")}
}

func (m *S3Mirror) key(dir, name string) string {
	return path.Join(m.prefix, dir, name)
}

func (m *S3Mirror) Create(ctx context.Context, dir, name string) (Artifact, error) {
	a, err := m.Store.Create(ctx, dir, name)
	if err != nil {
		return nil, err
	}
	return &mirroredArtifact{Artifact: a, m: m, ctx: ctx, dir: dir, name: name}, nil
}

func (m *S3Mirror) upload(ctx context.Context, dir, name string, size int64) {
	rc, err := m.Store.Open(ctx, dir, name)
	if err != nil {
		m.log.Warn(ctx, "couldn't mirror artifact to object storage", "error", err)
		return
	}
	defer rc.Close()

	_, err = m.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(m.bucket),
		Key:           aws.String(m.key(dir, name)),
		Body:          rc,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String("application/octet-stream"),
	})
	if err != nil {
		m.log.Warn(ctx, "couldn't mirror artifact to object storage", "error", err)
	}
}

func (m *S3Mirror) Remove(ctx context.Context, dir, name string) error {
	if err := m.Store.Remove(ctx, dir, name); err != nil {
		return err
	}
	_, err := m.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(m.bucket),
		Key:    aws.String(m.key(dir, name)),
	})
	if err != nil {
		m.log.Warn(ctx, "couldn't delete mirrored artifact", "error", err)
	}
	return nil
}

func (m *S3Mirror) RemoveAll(ctx context.Context, dir string) error {
	if err := m.Store.RemoveAll(ctx, dir); err != nil {
		return err
	}
	if err := m.deletePrefix(ctx, m.key(dir, "")+"/"); err != nil {
		m.log.Warn(ctx, "couldn't delete mirrored artifacts", "error", err)
	}
	return nil
}

func (m *S3Mirror) deletePrefix(ctx context.Context, prefix string) error {
	var token *string
	for {
		out, err := m.api.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(m.bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return err
		}
		if len(out.Contents) > 0 {
			ids := make([]types.ObjectIdentifier, 0, len(out.Contents))
			for _, o := range out.Contents {
				ids = append(ids, types.ObjectIdentifier{Key: o.Key})
			}
			if _, err := m.api.DeleteObjects(ctx, &s3.DeleteObjectsInput{
				Bucket: aws.String(m.bucket),
				Delete: &types.Delete{Objects: ids, Quiet: aws.Bool(true)},
			}); err != nil {
				return err
			}
		}
		if !aws.ToBool(out.IsTruncated) {
			return nil
		}
		token = out.NextContinuationToken
	}
}

type mirroredArtifact struct {
	Artifact
	m    *S3Mirror
	ctx  context.Context
	dir  string
	name string
}

func (a *mirroredArtifact) Commit() (int64, error) {
	n, err := a.Artifact.Commit()
	if err != nil {
		return n, err
	}
	a.m.upload(a.ctx, a.dir, a.name, n)
	return n, nil
}
