package blobstore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// ErrEmptyPath is returned for an empty object path.
var ErrEmptyPath = errors.New("blobstore: empty path")

// Store uploads and removes binary objects addressed by slash-separated paths.
type Store interface {
	Upload(ctx context.Context, objectPath string, content []byte, contentType string) (string, error)
	Delete(ctx context.Context, objectPaths []string) error
	PublicURL(objectPath string) string
}

// LocalStore keeps objects under a base directory and serves them from a
// public base URL.
type LocalStore struct {
	baseDir   string
	publicURL string
	logger    *zap.Logger
}

// NewLocalStore creates the base directory and returns a store.
func NewLocalStore(baseDir, publicURL string, logger *zap.Logger) (*LocalStore, error) {
	if strings.TrimSpace(baseDir) == "" {
		return nil, errors.New("blobstore: base dir required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("blobstore: create base dir: %w", err)
	}
	return &LocalStore{
		baseDir:   baseDir,
		publicURL: strings.TrimRight(publicURL, "/"),
		logger:    logger,
	}, nil
}

// Upload writes content to objectPath, replacing any existing object, and
// returns the cleaned path.
func (s *LocalStore) Upload(ctx context.Context, objectPath string, content []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	clean, full, err := s.resolve(objectPath)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		s.logger.Error("create blob directory failed", zap.String("path", clean), zap.Error(err))
		return "", fmt.Errorf("blobstore: create directories: %w", err)
	}
	tmp := full + ".tmp"
	if err := os.WriteFile(tmp, content, 0o644); err != nil {
		s.logger.Error("write blob failed", zap.String("path", clean), zap.Error(err))
		return "", fmt.Errorf("blobstore: write: %w", err)
	}
	if err := os.Rename(tmp, full); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("blobstore: commit: %w", err)
	}
	s.logger.Debug("blob uploaded",
		zap.String("path", clean),
		zap.String("content_type", contentType),
		zap.Int("size", len(content)))
	return clean, nil
}

// Delete removes objects. Missing objects are ignored.
func (s *LocalStore) Delete(ctx context.Context, objectPaths []string) error {
	var errs []error
	for _, p := range objectPaths {
		if err := ctx.Err(); err != nil {
			return err
		}
		clean, full, err := s.resolve(p)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, fmt.Errorf("blobstore: delete %s: %w", clean, err))
			continue
		}
		s.logger.Debug("blob deleted", zap.String("path", clean))
	}
	return errors.Join(errs...)
}

// PublicURL returns the URL an object is served from.
func (s *LocalStore) PublicURL(objectPath string) string {
	clean := cleanPath(objectPath)
	segments := strings.Split(clean, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return s.publicURL + "/" + strings.Join(segments, "/")
}

// Open returns the content of an object.
func (s *LocalStore) Open(objectPath string) ([]byte, error) {
	_, full, err := s.resolve(objectPath)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(full)
}

func (s *LocalStore) resolve(objectPath string) (string, string, error) {
	clean := cleanPath(objectPath)
	if clean == "" {
		return "", "", ErrEmptyPath
	}
	full := filepath.Join(s.baseDir, filepath.FromSlash(clean))
	if err := s.ValidatePath(full); err != nil {
		return "", "", err
	}
	return clean, full, nil
}

// ValidatePath checks that a filesystem path stays within the base directory.
func (s *LocalStore) ValidatePath(fullPath string) error {
	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return fmt.Errorf("blobstore: resolve path: %w", err)
	}
	absBase, err := filepath.Abs(s.baseDir)
	if err != nil {
		return fmt.Errorf("blobstore: resolve base: %w", err)
	}
	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) {
		return fmt.Errorf("blobstore: path escapes base directory: %s", fullPath)
	}
	return nil
}

func cleanPath(objectPath string) string {
	p := strings.TrimSpace(strings.ReplaceAll(objectPath, "\\", "/"))
	if p == "" {
		return ""
	}
	p = strings.TrimPrefix(path.Clean("/"+p), "/")
	if p == "." {
		return ""
	}
	return p
}
