package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"taxforms-api/models"
	"taxforms-api/monitor"
	"taxforms-api/storage"

	"github.com/gabriel-vasile/mimetype"
)

// errNotApplicable tells the resolver to move on without counting an attempt.
var errNotApplicable = errors.New("strategy not applicable")

const maxDirectFetchBytes = 50 << 20

// ResolveStrategy is one way of turning a file reference into bytes.
type ResolveStrategy interface {
	Name() string
	Resolve(ctx context.Context, ref models.UploadedFileRef) ([]byte, error)
}

// ResolvedFile is a downloaded upload.
type ResolvedFile struct {
	Name        string
	ContentType string
	Data        []byte
	Strategy    string
}

// FileResolver tries its strategies in order and returns the first bytes
// any of them produces.
type FileResolver struct {
	strategies []ResolveStrategy
}

func NewFileResolver(strategies ...ResolveStrategy) *FileResolver {
	return &FileResolver{strategies: strategies}
}

// DefaultFileResolver reads by storage path, then by the path parsed out of
// the public URL, then fetches the URL directly.
func DefaultFileResolver(store storage.ObjectStore, client *http.Client) *FileResolver {
	return NewFileResolver(
		StoragePathStrategy{Store: store},
		PublicURLStrategy{Store: store},
		NewDirectFetchStrategy(client),
	)
}

func (r *FileResolver) Resolve(ctx context.Context, ref models.UploadedFileRef) (*ResolvedFile, error) {
	var attempts []error
	for _, strategy := range r.strategies {
		data, err := strategy.Resolve(ctx, ref)
		if errors.Is(err, errNotApplicable) {
			continue
		}
		if err != nil {
			attempts = append(attempts, fmt.Errorf("%s: %w", strategy.Name(), err))
			continue
		}
		monitor.RecordFileResolution(strategy.Name())
		return &ResolvedFile{
			Name:        downloadName(ref),
			ContentType: mimetype.Detect(data).String(),
			Data:        data,
			Strategy:    strategy.Name(),
		}, nil
	}
	monitor.RecordFileResolution("unresolved")
	return nil, &FileNotResolvableError{Name: ref.Name, Attempts: attempts}
}

func downloadName(ref models.UploadedFileRef) string {
	if ref.Name != "" {
		return ref.Name
	}
	for _, p := range []string{ref.StoragePath, ref.URL} {
		if p != "" {
			if base := path.Base(p); base != "." && base != "/" {
				return base
			}
		}
	}
	return "download"
}

// StoragePathStrategy reads the recorded storage path.
type StoragePathStrategy struct {
	Store storage.ObjectStore
}

func (StoragePathStrategy) Name() string { return "storage_path" }

func (s StoragePathStrategy) Resolve(ctx context.Context, ref models.UploadedFileRef) ([]byte, error) {
	if ref.StoragePath == "" {
		return nil, errNotApplicable
	}
	objectPath, err := storage.CleanObjectPath(ref.StoragePath)
	if err != nil {
		return nil, err
	}
	return s.Store.Download(ctx, objectPath)
}

// PublicURLStrategy recovers the storage path from a public object URL,
// for rows written before storage paths were recorded.
type PublicURLStrategy struct {
	Store storage.ObjectStore
}

func (PublicURLStrategy) Name() string { return "public_url" }

func (s PublicURLStrategy) Resolve(ctx context.Context, ref models.UploadedFileRef) ([]byte, error) {
	if ref.URL == "" {
		return nil, errNotApplicable
	}
	objectPath, ok := storage.PathFromPublicURL(ref.URL, s.Store.Bucket())
	if !ok || objectPath == ref.StoragePath {
		return nil, errNotApplicable
	}
	objectPath, err := storage.CleanObjectPath(objectPath)
	if err != nil {
		return nil, err
	}
	return s.Store.Download(ctx, objectPath)
}

// DirectFetchStrategy downloads the URL as opaque bytes.
type DirectFetchStrategy struct {
	Client *http.Client
}

func NewDirectFetchStrategy(client *http.Client) DirectFetchStrategy {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return DirectFetchStrategy{Client: client}
}

func (DirectFetchStrategy) Name() string { return "direct_fetch" }

func (s DirectFetchStrategy) Resolve(ctx context.Context, ref models.UploadedFileRef) ([]byte, error) {
	lower := strings.ToLower(ref.URL)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return nil, errNotApplicable
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref.URL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("GET %s: status %d", ref.URL, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDirectFetchBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxDirectFetchBytes {
		return nil, fmt.Errorf("GET %s: body exceeds %d bytes", ref.URL, maxDirectFetchBytes)
	}
	return data, nil
}
