package localfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/okupriyanov/document-ai-processor/internal/core/domain"
	"github.com/okupriyanov/document-ai-processor/internal/infrastructure/resilience"
)

// Storage keeps raw document bytes on the local filesystem under a flat
// key namespace. Writes go through a temp file and rename so a crashed
// upload never leaves a half-written object behind.
//
// Filesystem failures are transient: Open retries through the executor,
// Save cannot replay a consumed body stream so its errors carry the
// transient kind for the caller to surface as retryable.
type Storage struct {
	basePath string
	executor *resilience.Executor
}

type Option func(*Storage)

func WithResilienceExecutor(executor *resilience.Executor) Option {
	return func(s *Storage) {
		s.executor = executor
	}
}

func New(basePath string, opts ...Option) (*Storage, error) {
	if basePath == "" {
		basePath = "./data/storage"
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	s := &Storage{basePath: basePath}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Storage) Save(_ context.Context, key string, data io.Reader) error {
	path, err := s.resolve(key)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.basePath, ".upload-*")
	if err != nil {
		return domain.WrapError(domain.ErrTransient, "save object", err)
	}
	tmpPath := tmp.Name()

	if _, err := io.Copy(tmp, data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return domain.WrapError(domain.ErrTransient, "save object", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return domain.WrapError(domain.ErrTransient, "save object", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return domain.WrapError(domain.ErrTransient, "save object", err)
	}
	return nil
}

func (s *Storage) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	path, err := s.resolve(key)
	if err != nil {
		return nil, err
	}

	var reader io.ReadCloser
	call := func(context.Context) error {
		f, err := s.openOnce(path, key)
		if err != nil {
			return err
		}
		reader = f
		return nil
	}

	if s.executor != nil {
		err = s.executor.Execute(ctx, "storage.open", call, classifyStorageError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return nil, err
	}
	return reader, nil
}

func (s *Storage) openOnce(path, key string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "open object", fmt.Errorf("key %s", key))
		}
		return nil, domain.WrapError(domain.ErrTransient, "open object", err)
	}
	return f, nil
}

// resolve rejects keys that would escape the storage root.
func (s *Storage) resolve(key string) (string, error) {
	if key == "" || strings.Contains(key, "..") || strings.ContainsRune(key, os.PathSeparator) {
		return "", domain.WrapError(domain.ErrInvalidInput, "storage key", fmt.Errorf("invalid key %q", key))
	}
	return filepath.Join(s.basePath, key), nil
}

func classifyStorageError(err error) resilience.ErrorClassification {
	switch {
	case err == nil:
		return resilience.ErrorClassification{}
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	case resilience.IsCircuitOpen(err):
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	case domain.IsKind(err, domain.ErrDocumentNotFound) || domain.IsKind(err, domain.ErrInvalidInput):
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	case domain.IsKind(err, domain.ErrTransient):
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	default:
		return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
	}
}
