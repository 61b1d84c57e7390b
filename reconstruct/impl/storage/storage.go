package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/cenkalti/backoff/v4"
)

var ErrUnsupportedScheme = errors.New("unsupported storage scheme")

// Client reads and writes whole objects addressed by URI.
type Client interface {
	Read(ctx context.Context, uri string) ([]byte, error)
	Write(ctx context.Context, uri string, data []byte) error
}

// Location is a parsed storage URI.
// E.g., gs://bucket/dir/a.png -> {Scheme: "gs", Bucket: "bucket", Path: "dir/a.png"}
type Location struct {
	Scheme string
	Bucket string
	Path   string
}

func ParseURI(uri string) (Location, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return Location{}, fmt.Errorf("invalid URI %q: %w", uri, err)
	}
	switch parsed.Scheme {
	case "file":
		if parsed.Path == "" {
			return Location{}, fmt.Errorf("file URI %q has no path", uri)
		}
		return Location{Scheme: parsed.Scheme, Path: parsed.Path}, nil
	case "gs":
		object := strings.TrimPrefix(parsed.Path, "/")
		if parsed.Host == "" || object == "" {
			return Location{}, fmt.Errorf("gs URI %q needs a bucket and an object", uri)
		}
		return Location{Scheme: parsed.Scheme, Bucket: parsed.Host, Path: object}, nil
	default:
		return Location{}, fmt.Errorf("%w: %q", ErrUnsupportedScheme, parsed.Scheme)
	}
}

type router struct {
	clients map[string]Client
}

// NewRouter dispatches each URI to the client registered for its scheme.
func NewRouter(clients map[string]Client) Client {
	return &router{clients: clients}
}

func (r *router) client(uri string) (Client, error) {
	location, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}
	client, ok := r.clients[location.Scheme]
	if !ok {
		return nil, fmt.Errorf("%w: no client for %q", ErrUnsupportedScheme, location.Scheme)
	}
	return client, nil
}

func (r *router) Read(ctx context.Context, uri string) ([]byte, error) {
	client, err := r.client(uri)
	if err != nil {
		return nil, err
	}
	return client.Read(ctx, uri)
}

func (r *router) Write(ctx context.Context, uri string, data []byte) error {
	client, err := r.client(uri)
	if err != nil {
		return err
	}
	return client.Write(ctx, uri, data)
}

type fileClient struct{}

// NewFile serves file:// URIs from the local filesystem.
func NewFile() Client {
	return &fileClient{}
}

func (f *fileClient) Read(ctx context.Context, uri string) ([]byte, error) {
	location, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(location.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return data, nil
}

func (f *fileClient) Write(ctx context.Context, uri string, data []byte) error {
	location, err := ParseURI(uri)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(location.Path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(location.Path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

type gcsClient struct {
	storageClient *storage.Client

	// Used to delay the next request when GCS fails.
	backoffDuration time.Duration

	// Opens an object writer. Cancelling ctx before Close discards the upload.
	newWriter func(ctx context.Context, bucketName string, objectName string) io.WriteCloser
}

// NewGCS serves gs:// URIs from Google Cloud Storage.
func NewGCS(storageClient *storage.Client, backoffDuration time.Duration) Client {
	return &gcsClient{
		storageClient:   storageClient,
		backoffDuration: backoffDuration,
		newWriter: func(ctx context.Context, bucketName string, objectName string) io.WriteCloser {
			return storageClient.Bucket(bucketName).Object(objectName).NewWriter(ctx)
		},
	}
}

func (s *gcsClient) Read(ctx context.Context, uri string) ([]byte, error) {
	location, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}

	return backoff.RetryWithData(func() ([]byte, error) {
		reader, err := s.storageClient.Bucket(location.Bucket).Object(location.Path).NewReader(ctx)
		if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
			return nil, backoff.Permanent(err)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to open GCS reader: %w", err)
		}
		defer reader.Close()

		data, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("failed to read from GCS: %w", err)
		}
		return data, nil
	}, backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(s.backoffDuration), 4), ctx))
}

func (s *gcsClient) Write(ctx context.Context, uri string, data []byte) error {
	location, err := ParseURI(uri)
	if err != nil {
		return err
	}
	return s.SaveBytes(ctx, location.Bucket, location.Path, data)
}

func (s *gcsClient) SaveBytes(ctx context.Context, bucketName string, objectName string, data []byte) error {
	writeCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	writer := s.newWriter(writeCtx, bucketName, objectName)

	_, err := writer.Write(data)
	if err != nil {
		// Aborts the upload so no partial object is committed.
		cancel()
		writer.Close()
		return fmt.Errorf("failed to write to GCS: %w", err)
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer: %w", err)
	}

	return nil
}
