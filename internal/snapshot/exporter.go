// Package snapshot exports all metadata of a database as a metacodec YAML
// file to a local directory or an S3 bucket.
package snapshot

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/faciam-dev/docmeta/pkg/metacodec"
	"github.com/faciam-dev/docmeta/pkg/metrics"
	"github.com/faciam-dev/docmeta/pkg/schema"
)

type Dest interface {
	Write(ctx context.Context, name string, data []byte) error
}

type LocalDir struct{ Path string }

func (l LocalDir) Write(_ context.Context, name string, data []byte) error {
	if err := os.MkdirAll(l.Path, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(l.Path, name), data, 0o644)
}

func (l LocalDir) String() string { return "local" }

type S3 struct {
	Bucket string
	Prefix string
	client *s3.Client
}

// NewS3 uses the default AWS credential chain.
func NewS3(ctx context.Context, bucket, prefix string) (S3, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return S3{}, err
	}
	return NewS3WithClient(s3.NewFromConfig(cfg), bucket, prefix), nil
}

func NewS3WithClient(client *s3.Client, bucket, prefix string) S3 {
	return S3{Bucket: bucket, Prefix: prefix, client: client}
}

func (s S3) Write(ctx context.Context, name string, data []byte) error {
	key := path.Join(s.Prefix, name)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/yaml"),
	})
	return err
}

func (s S3) String() string { return "s3" }

// Source lists the definitions of a database.
type Source interface {
	ListMetadata(ctx context.Context, db string) (schema.Envelope, error)
}

// FileName returns the snapshot file name for db taken at t.
func FileName(db string, t time.Time) string {
	return fmt.Sprintf("metadata_%s_%s.yaml", db, t.UTC().Format("2006-01-02T15-04-05"))
}

// Export writes every definition of db to dest and returns the file name.
func Export(ctx context.Context, src Source, db string, dest Dest) (string, error) {
	name, err := export(ctx, src, db, dest)
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.Snapshots.WithLabelValues(fmt.Sprint(dest), result).Inc()
	return name, err
}

func export(ctx context.Context, src Source, db string, dest Dest) (string, error) {
	env, err := src.ListMetadata(ctx, db)
	if err != nil {
		return "", fmt.Errorf("snapshot %s: %w", db, err)
	}
	entries := make([]metacodec.Entry, 0, len(env))
	for key, def := range env {
		entries = append(entries, metacodec.Entry{Key: key, Definition: def})
	}
	data, err := metacodec.Encode(db, entries)
	if err != nil {
		return "", err
	}
	name := FileName(db, time.Now())
	if err := dest.Write(ctx, name, data); err != nil {
		return "", fmt.Errorf("snapshot %s: %w", db, err)
	}
	return name, nil
}
