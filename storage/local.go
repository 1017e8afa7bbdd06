package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// LocalStore keeps objects on the local filesystem under root/bucket. The
// API serves the same directory at the public object prefix.
type LocalStore struct {
	root          string
	bucket        string
	publicBaseURL string
}

func NewLocalStore(root, bucket, publicBaseURL string) (*LocalStore, error) {
	dir := filepath.Join(root, bucket)
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}
	return &LocalStore{root: root, bucket: bucket, publicBaseURL: publicBaseURL}, nil
}

// Dir is the directory holding the bucket's objects.
func (s *LocalStore) Dir() string {
	return filepath.Join(s.root, s.bucket)
}

func (s *LocalStore) Bucket() string {
	return s.bucket
}

func (s *LocalStore) Upload(ctx context.Context, objectPath string, data []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	full, err := s.fullPath(objectPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), os.ModePerm); err != nil {
		return fmt.Errorf("create object directory: %w", err)
	}

	// Write then rename so readers never see a partial object.
	tmp, err := os.CreateTemp(filepath.Dir(full), ".upload-*")
	if err != nil {
		return fmt.Errorf("create temp object: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write object: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close object: %w", err)
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("store object: %w", err)
	}
	return nil
}

func (s *LocalStore) PublicURL(objectPath string) string {
	return BuildPublicURL(s.publicBaseURL, s.bucket, objectPath)
}

func (s *LocalStore) Download(ctx context.Context, objectPath string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	full, err := s.fullPath(objectPath)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", objectPath, ErrObjectNotFound)
	}
	return data, err
}

func (s *LocalStore) fullPath(objectPath string) (string, error) {
	cleaned, err := CleanObjectPath(objectPath)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, s.bucket, filepath.FromSlash(cleaned)), nil
}
