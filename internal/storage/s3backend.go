// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/czbiohub/imagingdb/internal/ingesterr"
)

// S3BackendConfig configures the object-store variant. Bucket is the only
// required field; the rest support S3-compatible services (MinIO) the way
// an on-prem imaging facility would run them.
type S3BackendConfig struct {
	Endpoint     string
	Bucket       string
	AccessKey    string
	SecretKey    string
	Region       string
	UsePathStyle bool
}

// S3Backend is the object-store storage variant: dir is an object-key
// prefix, name the trailing key component.
type S3Backend struct {
	client *s3.Client
	bucket string
}

func NewS3Backend(ctx context.Context, cfg S3BackendConfig) (*S3Backend, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3backend: empty bucket name")
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3backend: load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return &S3Backend{client: client, bucket: cfg.Bucket}, nil
}

func key(dir, name string) string {
	if name == "" {
		return dir
	}
	return path.Join(dir, name)
}

func (b *S3Backend) AssertUnique(ctx context.Context, dir string) error {
	out, err := b.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(b.bucket),
		Prefix: aws.String(dir),
	})
	if err != nil {
		return fmt.Errorf("%w: s3backend: list %s: %v", ingesterr.ErrTransientIO, dir, err)
	}
	if len(out.Contents) > 0 {
		return fmt.Errorf("%w: %s already has objects on S3", ingesterr.ErrStorageExists, dir)
	}
	return nil
}

func (b *S3Backend) PutPlane(ctx context.Context, dir, name string, data []byte) error {
	_, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(key(dir, name)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("image/png"),
	})
	if err != nil {
		return fmt.Errorf("%w: s3backend: put %s: %v", ingesterr.ErrTransientIO, key(dir, name), err)
	}
	return nil
}

func (b *S3Backend) PutFile(ctx context.Context, dir, name, localPath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("s3backend: open %s: %w", localPath, err)
	}
	defer f.Close()

	_, err = b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key(dir, name)),
		Body:   f,
	})
	if err != nil {
		return fmt.Errorf("%w: s3backend: put file %s: %v", ingesterr.ErrTransientIO, key(dir, name), err)
	}
	return nil
}

func (b *S3Backend) GetPlane(ctx context.Context, dir, name string) ([]byte, error) {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key(dir, name)),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: s3backend: get %s: %v", ingesterr.ErrTransientIO, key(dir, name), err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: s3backend: read body %s: %v", ingesterr.ErrTransientIO, key(dir, name), err)
	}
	return data, nil
}

func (b *S3Backend) GetFile(ctx context.Context, dir, name, localPath string) error {
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(key(dir, name)),
	})
	if err != nil {
		return fmt.Errorf("%w: s3backend: get %s: %v", ingesterr.ErrTransientIO, key(dir, name), err)
	}
	defer out.Body.Close()

	dst, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("s3backend: create dest %s: %w", localPath, err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, out.Body); err != nil {
		return fmt.Errorf("%w: s3backend: copy %s: %v", ingesterr.ErrTransientIO, key(dir, name), err)
	}
	return nil
}

func (b *S3Backend) ListPrefix(ctx context.Context, dir string) ([]string, error) {
	var names []string
	paginator := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(b.bucket),
		Prefix: aws.String(dir),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: s3backend: list %s: %v", ingesterr.ErrTransientIO, dir, err)
		}
		for _, obj := range page.Contents {
			names = append(names, path.Base(aws.ToString(obj.Key)))
		}
	}
	return names, nil
}
