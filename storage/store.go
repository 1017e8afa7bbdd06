// Package storage provides the object stores that hold uploaded application
// files. Every backend exposes public URLs of the form
// {base}/storage/v1/object/public/{bucket}/{path} so that a stored URL can
// always be mapped back to its storage path.
package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
)

// ErrObjectNotFound is returned by Download when no object exists at the path.
var ErrObjectNotFound = errors.New("object not found")

// ObjectStore is the blob store collaborator used by the file intake
// pipeline and the admin download resolver.
type ObjectStore interface {
	// Upload writes data at objectPath, overwriting any existing object.
	Upload(ctx context.Context, objectPath string, data []byte, contentType string) error
	// PublicURL derives the public URL of objectPath.
	PublicURL(objectPath string) string
	// Download reads the object at objectPath.
	Download(ctx context.Context, objectPath string) ([]byte, error)
	// Bucket names the bucket the store writes into.
	Bucket() string
}

const publicObjectPrefix = "/storage/v1/object/public/"

// BuildPublicURL joins base, bucket and objectPath into a public object URL.
func BuildPublicURL(base, bucket, objectPath string) string {
	return strings.TrimRight(base, "/") + publicObjectPrefix + escapePath(bucket) + "/" + escapePath(objectPath)
}

// PathFromPublicURL extracts the storage path from a public object URL of
// bucket. It returns false when rawURL does not have that structure.
func PathFromPublicURL(rawURL, bucket string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Path == "" {
		return "", false
	}

	marker := "/object/public/" + bucket + "/"
	idx := strings.Index(u.Path, marker)
	if idx < 0 {
		return "", false
	}

	objectPath := u.Path[idx+len(marker):]
	if objectPath == "" {
		return "", false
	}
	return objectPath, true
}

// CleanObjectPath rejects empty, absolute and parent-relative paths.
func CleanObjectPath(objectPath string) (string, error) {
	trimmed := strings.TrimSpace(objectPath)
	if trimmed == "" {
		return "", fmt.Errorf("empty object path")
	}
	cleaned := path.Clean("/" + trimmed)[1:]
	if cleaned == "" || cleaned != strings.TrimPrefix(trimmed, "/") || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("invalid object path %q", objectPath)
	}
	return cleaned, nil
}

func escapePath(p string) string {
	segments := strings.Split(p, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}
