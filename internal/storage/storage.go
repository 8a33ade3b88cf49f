// Package storage fetches bundles from, and uploads bundles to, object
// storage or the local filesystem.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// MaxObjectBytes caps how much of an object is read.
const MaxObjectBytes = 64 << 20

// ErrTooLarge is returned for objects above MaxObjectBytes.
var ErrTooLarge = errors.New("object exceeds size limit")

// Location identifies a bundle. Bucket is empty for local files.
type Location struct {
	Bucket string
	Key    string
}

// IsRemote reports whether l names an S3 object.
func (l Location) IsRemote() bool { return l.Bucket != "" }

// Name returns the base name of the object or file.
func (l Location) Name() string {
	if l.IsRemote() {
		return path.Base(l.Key)
	}
	return filepath.Base(l.Key)
}

func (l Location) String() string {
	if l.IsRemote() {
		return "s3://" + l.Bucket + "/" + l.Key
	}
	return l.Key
}

// ParseURI accepts s3://bucket/key or a local path. The key is taken
// verbatim, so it may contain spaces, '?' or '#'.
func ParseURI(uri string) (Location, error) {
	rest, ok := strings.CutPrefix(uri, "s3://")
	if !ok {
		if uri == "" {
			return Location{}, errors.New("empty bundle location")
		}
		return Location{Key: uri}, nil
	}
	bucket, key, _ := strings.Cut(rest, "/")
	if bucket == "" || key == "" {
		return Location{}, fmt.Errorf("invalid s3 location %q: want s3://bucket/key", uri)
	}
	return Location{Bucket: bucket, Key: key}, nil
}

// ObjectAPI is the subset of the S3 client used here.
type ObjectAPI interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Store reads and writes bundles.
type Store struct {
	client ObjectAPI
	region string
}

// New returns a Store. The S3 client is created lazily from the default
// AWS credential chain the first time a remote location is used.
func New(region string) *Store {
	return &Store{region: region}
}

// NewWithClient returns a Store that uses client for S3 access.
func NewWithClient(client ObjectAPI) *Store {
	return &Store{client: client}
}

func (s *Store) s3Client(ctx context.Context) (ObjectAPI, error) {
	if s.client != nil {
		return s.client, nil
	}
	var opts []func(*awsconfig.LoadOptions) error
	if s.region != "" {
		opts = append(opts, awsconfig.WithRegion(s.region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS configuration: %w", err)
	}
	s.client = s3.NewFromConfig(cfg)
	return s.client, nil
}

// Open returns the bytes stored at loc.
func (s *Store) Open(ctx context.Context, loc Location) ([]byte, error) {
	if !loc.IsRemote() {
		f, err := os.Open(loc.Key)
		if err != nil {
			return nil, fmt.Errorf("opening bundle: %w", err)
		}
		defer f.Close()
		return readLimited(f, loc)
	}

	client, err := s.s3Client(ctx)
	if err != nil {
		return nil, err
	}
	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(loc.Key),
	})
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", loc, err)
	}
	defer out.Body.Close()
	return readLimited(out.Body, loc)
}

// Upload stores the local file at src under key in bucket and returns the
// resulting location. An empty key uses the file's base name.
func (s *Store) Upload(ctx context.Context, src, bucket, key string) (Location, error) {
	if bucket == "" {
		return Location{}, errors.New("no bucket configured")
	}
	if key == "" {
		key = filepath.Base(src)
	}
	f, err := os.Open(src)
	if err != nil {
		return Location{}, fmt.Errorf("opening %s: %w", src, err)
	}
	defer f.Close()

	client, err := s.s3Client(ctx)
	if err != nil {
		return Location{}, err
	}
	loc := Location{Bucket: bucket, Key: key}
	if _, err := client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   f,
	}); err != nil {
		return Location{}, fmt.Errorf("uploading to %s: %w", loc, err)
	}
	return loc, nil
}

func readLimited(r io.Reader, loc Location) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxObjectBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", loc, err)
	}
	if len(data) > MaxObjectBytes {
		return nil, fmt.Errorf("%s: %w", loc, ErrTooLarge)
	}
	return data, nil
}
