package exporter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

var (
	loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	putObject = func(c *s3.Client, ctx context.Context, in *s3.PutObjectInput) (*s3.PutObjectOutput, error) {
		return c.PutObject(ctx, in)
	}
)

func (e *Exporter) s3Client(ctx context.Context) (*s3.Client, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		awsconfig.WithRegion(e.cfg.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			e.cfg.S3RootUser,
			e.cfg.S3RootPassword,
			"",
		)))
	if err != nil {
		return nil, err
	}

	return newS3ClientFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(e.cfg.S3BaseEndpoint)
		o.UsePathStyle = true
	}), nil
}

// Upload pushes a finished export artifact to the configured bucket under
// exports/<filename> and returns the object key.
func (e *Exporter) Upload(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	client, err := e.s3Client(ctx)
	if err != nil {
		return "", err
	}

	key := fmt.Sprintf("exports/%s", filepath.Base(path))
	_, err = putObject(client, ctx, &s3.PutObjectInput{
		Bucket: aws.String(e.cfg.S3Bucket),
		Key:    aws.String(key),
		Body:   f,
	})
	if err != nil {
		return "", fmt.Errorf("upload failed: %w", err)
	}

	e.logger.Info(ctx, "export uploaded", "bucket", e.cfg.S3Bucket, "key", key)
	return key, nil
}
