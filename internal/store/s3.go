package store

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/golang/snappy"

	qerrors "github.com/quern/quern/internal/errors"
	"github.com/quern/quern/internal/schema"
	"github.com/quern/quern/pkg/types"
)

// S3Config holds configuration for the S3 adapter.
type S3Config struct {
	// Bucket is the S3 bucket name.
	Bucket string
	// Prefix is the key prefix all objects live under.
	Prefix string
	// Region is the AWS region for the bucket.
	Region string
	// Endpoint is an optional custom endpoint (for MinIO, LocalStack, etc.).
	Endpoint string
	// UsePathStyle enables path-style addressing (required for MinIO).
	UsePathStyle bool
}

// S3Store persists each table as one snappy-compressed object plus a
// metadata object. WriteBatch rewrites every affected table object, then the
// metadata object last; atomicity is best-effort, bounded by S3's per-object
// guarantees.
type S3Store struct {
	client *s3.Client
	cfg    S3Config

	mu     sync.Mutex
	loaded map[string][]*types.Row // table contents as of the last read
}

// NewS3Store creates an S3 adapter.
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, qerrors.NewStore(err, "failed to load AWS config")
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	return &S3Store{
		client: s3.NewFromConfig(awsCfg, s3Opts...),
		cfg:    cfg,
		loaded: make(map[string][]*types.Row),
	}, nil
}

func (s *S3Store) tableKey(table string) string {
	return path.Join(s.cfg.Prefix, "tables", table+".sz")
}

func (s *S3Store) metadataKey() string {
	return path.Join(s.cfg.Prefix, metadataKey)
}

// Open seeds the metadata object when the bucket prefix is fresh.
func (s *S3Store) Open(ctx context.Context, db *schema.Database) error {
	_, err := s.getObject(ctx, s.metadataKey())
	if err != nil {
		if qerrors.CodeOf(err) != qerrors.CodeNotFound {
			return err
		}
		return s.putMetadata(ctx, NewMetadata(db))
	}
	return nil
}

// ScanTable reads all rows of a table from its object.
func (s *S3Store) ScanTable(ctx context.Context, table string) ([]*types.Row, error) {
	blob, err := s.getObject(ctx, s.tableKey(table))
	if err != nil {
		if qerrors.CodeOf(err) == qerrors.CodeNotFound {
			// A table never written yet is simply empty.
			return nil, nil
		}
		return nil, err
	}
	raw, err := snappy.Decode(nil, blob)
	if err != nil {
		return nil, qerrors.NewStore(err, "corrupt table object %q", table)
	}
	rows, err := decodeRows(raw)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.loaded[table] = rows
	s.mu.Unlock()
	return rows, nil
}

// Metadata returns the bookkeeping object.
func (s *S3Store) Metadata(ctx context.Context) (*Metadata, error) {
	blob, err := s.getObject(ctx, s.metadataKey())
	if err != nil {
		return nil, err
	}
	return decodeMetadata(blob)
}

// WriteBatch merges the batch into each affected table object and rewrites
// it, then writes the metadata object last.
func (s *S3Store) WriteBatch(ctx context.Context, batch []BatchEntry, meta *Metadata) error {
	touched := make(map[string]struct{})
	for _, e := range batch {
		touched[e.Table] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for table := range touched {
		current, ok := s.loaded[table]
		if !ok {
			s.mu.Unlock()
			rows, err := s.ScanTable(ctx, table)
			s.mu.Lock()
			if err != nil {
				return err
			}
			current = rows
		}

		byID := make(map[types.RowID]*types.Row, len(current))
		for _, row := range current {
			byID[row.ID] = row
		}
		for _, e := range batch {
			if e.Table != table {
				continue
			}
			if e.Tombstone {
				delete(byID, e.RowID)
			} else {
				byID[e.RowID] = types.NewRow(e.RowID, e.Payload)
			}
		}

		merged := make([]*types.Row, 0, len(byID))
		for _, row := range byID {
			merged = append(merged, row)
		}
		encoded, err := encodeRows(merged)
		if err != nil {
			return err
		}
		if err := s.putObject(ctx, s.tableKey(table), snappy.Encode(nil, encoded)); err != nil {
			return err
		}
		s.loaded[table] = merged
	}

	return s.putMetadata(ctx, meta)
}

// Close drops the local table snapshots.
func (s *S3Store) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded = make(map[string][]*types.Row)
	return nil
}

func (s *S3Store) getObject(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *s3types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, qerrors.NewNotFound("object %q not found", key)
		}
		return nil, qerrors.NewStore(err, "failed to get object %q", key)
	}
	defer out.Body.Close()
	blob, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, qerrors.NewStore(err, "failed to read object %q", key)
	}
	return blob, nil
}

func (s *S3Store) putObject(ctx context.Context, key string, blob []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(blob),
	})
	if err != nil {
		return qerrors.NewStore(err, "failed to put object %q", key)
	}
	return nil
}

func (s *S3Store) putMetadata(ctx context.Context, meta *Metadata) error {
	blob, err := encodeMetadata(meta)
	if err != nil {
		return qerrors.NewStore(err, "failed to encode metadata")
	}
	return s.putObject(ctx, s.metadataKey(), blob)
}
