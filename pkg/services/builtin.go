package services

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/stratofs/stratofs/internal/logger"
	"github.com/stratofs/stratofs/pkg/operator"
	"github.com/stratofs/stratofs/pkg/operator/badger"
	"github.com/stratofs/stratofs/pkg/operator/fs"
	"github.com/stratofs/stratofs/pkg/operator/memory"
	"github.com/stratofs/stratofs/pkg/operator/s3"
	"github.com/stratofs/stratofs/pkg/registry"
)

// memoryDescriptor serves "mem". The backend is ephemeral and needs no
// configuration; an optional namespace keeps distinct mem URLs on distinct
// operators.
func memoryDescriptor() *registry.ServiceDescriptor {
	return &registry.ServiceDescriptor{
		Scheme:  "mem",
		RootKey: "namespace",
		Schema: registry.Schema{
			Fields: []registry.Field{
				{Key: "namespace", Type: registry.TypeString},
			},
		},
		New: func(ctx context.Context, cfg map[string]any) (operator.Operator, error) {
			return memory.New(ctx)
		},
	}
}

// fileDescriptor serves "file". The URL host names the root directory; a
// "root" query parameter or scheme default overrides it.
func fileDescriptor() *registry.ServiceDescriptor {
	return &registry.ServiceDescriptor{
		Scheme:  "file",
		RootKey: "root",
		Schema: registry.Schema{
			Fields: []registry.Field{
				{Key: "root", Type: registry.TypeString, Required: true},
			},
		},
		New: func(ctx context.Context, cfg map[string]any) (operator.Operator, error) {
			type options struct {
				Root string `mapstructure:"root"`
			}
			var opts options
			if err := decode("file", cfg, &opts); err != nil {
				return nil, err
			}
			return fs.New(ctx, opts.Root)
		},
	}
}

// badgerDescriptor serves "badger": one embedded BadgerDB per database path.
func badgerDescriptor() *registry.ServiceDescriptor {
	return &registry.ServiceDescriptor{
		Scheme:  "badger",
		RootKey: "path",
		Schema: registry.Schema{
			Fields: []registry.Field{
				{Key: "path", Type: registry.TypeString},
				{Key: "in_memory", Type: registry.TypeBool, Default: false},
			},
		},
		New: func(ctx context.Context, cfg map[string]any) (operator.Operator, error) {
			type options struct {
				Path     string `mapstructure:"path"`
				InMemory bool   `mapstructure:"in_memory"`
			}
			var opts options
			if err := decode("badger", cfg, &opts); err != nil {
				return nil, err
			}
			return badger.New(ctx, badger.Config{
				Path:     opts.Path,
				InMemory: opts.InMemory,
			})
		},
	}
}

// s3Descriptor serves "s3". The URL host names the bucket; endpoint and
// static credentials support MinIO, Localstack and other S3-compatible
// services.
func s3Descriptor() *registry.ServiceDescriptor {
	return &registry.ServiceDescriptor{
		Scheme:  "s3",
		RootKey: "bucket",
		Schema: registry.Schema{
			Fields: []registry.Field{
				{Key: "bucket", Type: registry.TypeString, Required: true},
				{Key: "region", Type: registry.TypeString, Default: "us-east-1"},
				{Key: "endpoint", Type: registry.TypeString},
				{Key: "access_key_id", Type: registry.TypeString, Sensitive: true},
				{Key: "secret_access_key", Type: registry.TypeString, Sensitive: true},
				{Key: "key_prefix", Type: registry.TypeString},
				{Key: "part_size", Type: registry.TypeInt64},
				{Key: "max_retries", Type: registry.TypeInt},
			},
		},
		New: newS3Operator,
	}
}

func newS3Operator(ctx context.Context, cfg map[string]any) (operator.Operator, error) {
	type options struct {
		Bucket          string `mapstructure:"bucket"`
		Region          string `mapstructure:"region"`
		Endpoint        string `mapstructure:"endpoint"`
		AccessKeyID     string `mapstructure:"access_key_id"`
		SecretAccessKey string `mapstructure:"secret_access_key"`
		KeyPrefix       string `mapstructure:"key_prefix"`
		PartSize        int64  `mapstructure:"part_size"`
		MaxRetries      int    `mapstructure:"max_retries"`
	}
	var opts options
	if err := decode("s3", cfg, &opts); err != nil {
		return nil, err
	}

	var configOptions []func(*awsConfig.LoadOptions) error
	configOptions = append(configOptions, awsConfig.WithRegion(opts.Region))

	if opts.AccessKeyID != "" && opts.SecretAccessKey != "" {
		configOptions = append(configOptions, awsConfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKeyID, opts.SecretAccessKey, ""),
		))
	}

	maxRetries := opts.MaxRetries
	if maxRetries == 0 {
		maxRetries = 10
	}
	configOptions = append(configOptions, awsConfig.WithRetryer(func() aws.Retryer {
		return retry.NewStandard(func(o *retry.StandardOptions) {
			o.MaxAttempts = maxRetries
		})
	}))

	awsCfg, err := awsConfig.LoadDefaultConfig(ctx, configOptions...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %v: %w", err, operator.ErrInvalidConfig)
	}

	client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			// Path-style addressing for MinIO/Localstack compatibility.
			o.UsePathStyle = true
		}
	})

	op, err := s3.New(ctx, s3.Config{
		Client:    client,
		Bucket:    opts.Bucket,
		KeyPrefix: opts.KeyPrefix,
		PartSize:  opts.PartSize,
	})
	if err != nil {
		return nil, err
	}

	logger.Info("s3 operator initialized: bucket=%s region=%s prefix=%s",
		opts.Bucket, opts.Region, opts.KeyPrefix)
	return op, nil
}
