package minio

import (
	"context"
	"flag"
	"io"
	"mime"
	"path"

	util_io "github.com/ValerySidorin/ferry/pkg/util/io"
	"github.com/grafana/dskit/flagext"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"
)

const defaultContentType = "application/octet-stream"

type Config struct {
	Endpoint          string         `yaml:"endpoint"`
	MinioRootUser     string         `yaml:"minio_root_user"`
	MinioRootPassword flagext.Secret `yaml:"minio_root_password"`
	Secure            bool           `yaml:"secure"`
}

func (c *Config) RegisterFlags(flagPrefix string, f *flag.FlagSet) {
	f.StringVar(&c.Endpoint, flagPrefix+"endpoint", "localhost:9000", "Minio endpoint.")
	f.StringVar(&c.MinioRootUser, flagPrefix+"root-user", "", "Minio access key.")
	f.Var(&c.MinioRootPassword, flagPrefix+"root-password", "Minio secret key.")
	f.BoolVar(&c.Secure, flagPrefix+"secure", false, "Use https to talk to minio.")
}

type MinioWriter struct {
	client *minio.Client
	bucket string
}

func NewWriter(ctx context.Context, cfg Config, bucket string) (*MinioWriter, error) {
	minioClient, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioRootUser, cfg.MinioRootPassword.String(), ""),
		Secure: cfg.Secure,
	})
	if err != nil {
		return nil, errors.Wrap(err, "initialize minio client for writer")
	}

	found, err := minioClient.BucketExists(ctx, bucket)
	if err != nil {
		return nil, errors.Wrap(err, "check minio bucket exists")
	}

	if !found {
		if err := minioClient.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, errors.Wrap(err, "make minio bucket")
		}
	}

	return &MinioWriter{
		client: minioClient,
		bucket: bucket,
	}, nil
}

func (c *MinioWriter) Store(ctx context.Context, objName string, r io.Reader) error {
	size, err := util_io.TryGetSize(r)
	if err != nil {
		return errors.Wrap(err, "store minio object")
	}

	_, err = c.client.PutObject(ctx, c.bucket, objName, r, size, minio.PutObjectOptions{
		ContentType: ContentType(objName),
	})
	if err != nil {
		return errors.Wrap(err, "store minio object")
	}

	return nil
}

func ContentType(objName string) string {
	if t := mime.TypeByExtension(path.Ext(objName)); t != "" {
		return t
	}
	return defaultContentType
}
