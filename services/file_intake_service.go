package services

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"taxforms-api/models"
	"taxforms-api/monitor"
	"taxforms-api/storage"
	"taxforms-api/utils"

	"github.com/gabriel-vasile/mimetype"
	"github.com/sirupsen/logrus"
)

// FileInput is one user-selected file.
type FileInput struct {
	Name        string
	ContentType string
	Data        []byte
}

// UploadContext says who the file belongs to and which field it fills.
type UploadContext struct {
	UserID     string
	FieldName  string
	FieldLabel string
	// Accept is the field's accept hint, e.g. "image/*", "*" or ".pdf,image/*".
	Accept string
}

// FileIntakeService normalises, stores and references uploaded files.
type FileIntakeService struct {
	store     storage.ObjectStore
	converter ImageConverter
	maxBytes  int64
	log       logrus.FieldLogger
	now       func() time.Time

	mu        sync.Mutex
	lastStamp map[string]int64
}

func NewFileIntakeService(store storage.ObjectStore, converter ImageConverter, maxBytes int64, log logrus.FieldLogger) *FileIntakeService {
	return &FileIntakeService{
		store:     store,
		converter: converter,
		maxBytes:  maxBytes,
		log:       log,
		now:       time.Now,
		lastStamp: make(map[string]int64),
	}
}

// UploadFile stores one file and returns its reference. HEIC images are
// converted to JPEG first; a failed conversion uploads nothing.
func (s *FileIntakeService) UploadFile(ctx context.Context, file FileInput, uc UploadContext) (models.UploadedFileRef, error) {
	logger := s.log.WithFields(logrus.Fields{"user_id": uc.UserID, "field": uc.FieldName})

	if uc.UserID == "" || strings.TrimSpace(uc.FieldName) == "" {
		return models.UploadedFileRef{}, fmt.Errorf("%w: user and field are required", ErrInvalidInput)
	}
	if len(file.Data) == 0 {
		return models.UploadedFileRef{}, fmt.Errorf("%w: file is empty", ErrInvalidInput)
	}
	if s.maxBytes > 0 && int64(len(file.Data)) > s.maxBytes {
		return models.UploadedFileRef{}, fmt.Errorf("%w: file exceeds %d MB limit", ErrInvalidInput, s.maxBytes/(1024*1024))
	}

	normalized, err := s.normalize(file)
	if err != nil {
		monitor.RecordUpload("conversion_failed")
		logger.WithError(err).Warn("file conversion failed")
		return models.UploadedFileRef{}, err
	}

	if !acceptMatches(uc.Accept, normalized.contentType, normalized.ext) {
		return models.UploadedFileRef{}, fmt.Errorf("%w: %s files are not accepted for %s", ErrInvalidInput, normalized.contentType, uc.FieldName)
	}

	objectPath := fmt.Sprintf("%s/%s_%d.%s", uc.UserID, pathSegment(uc.FieldName), s.nextStamp(uc.UserID, uc.FieldName), normalized.ext)
	if _, err := storage.CleanObjectPath(objectPath); err != nil {
		return models.UploadedFileRef{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	if err := s.store.Upload(ctx, objectPath, normalized.data, normalized.contentType); err != nil {
		monitor.RecordUpload("upload_failed")
		logger.WithError(err).WithField("storage_path", objectPath).Error("object upload failed")
		return models.UploadedFileRef{}, &UploadFailedError{Path: objectPath, Err: err}
	}

	monitor.RecordUpload("ok")
	logger.WithField("storage_path", objectPath).Info("file uploaded")

	return models.UploadedFileRef{
		Name:        normalized.name,
		URL:         s.store.PublicURL(objectPath),
		StoragePath: objectPath,
		FieldName:   uc.FieldName,
		FieldLabel:  uc.FieldLabel,
	}, nil
}

type normalizedFile struct {
	name        string
	ext         string
	contentType string
	data        []byte
}

func (s *FileIntakeService) normalize(file FileInput) (normalizedFile, error) {
	if IsHEIC(file.Data, file.ContentType, file.Name) {
		jpegData, err := s.converter.ToJPEG(file.Data)
		if err != nil {
			monitor.RecordConversion("failed")
			return normalizedFile{}, &ConversionFailedError{FileName: file.Name, Err: err}
		}
		monitor.RecordConversion("ok")
		return normalizedFile{
			name:        replaceExt(file.Name, ".jpg"),
			ext:         "jpg",
			contentType: "image/jpeg",
			data:        jpegData,
		}, nil
	}

	detected := mimetype.Detect(file.Data)
	contentType := strings.TrimSpace(file.ContentType)
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = detected.String()
	}

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(file.Name)), ".")
	if ext == "" {
		ext = strings.TrimPrefix(detected.Extension(), ".")
	}
	if ext == "" {
		ext = "bin"
	}

	name := file.Name
	if name == "" {
		name = "upload." + ext
	}
	return normalizedFile{name: name, ext: ext, contentType: contentType, data: file.Data}, nil
}

// nextStamp returns the upload timestamp in milliseconds, bumped past the
// last stamp issued for the same user and field so re-uploads never share
// a path.
func (s *FileIntakeService) nextStamp(userID, field string) int64 {
	key := userID + "/" + field
	stamp := s.now().UnixMilli()

	s.mu.Lock()
	defer s.mu.Unlock()
	// Only stamps at or past the current millisecond can still collide.
	for k, last := range s.lastStamp {
		if last < stamp {
			delete(s.lastStamp, k)
		}
	}
	if last, ok := s.lastStamp[key]; ok && stamp <= last {
		stamp = last + 1
	}
	s.lastStamp[key] = stamp
	return stamp
}

func acceptMatches(accept, contentType, ext string) bool {
	accept = strings.TrimSpace(accept)
	if accept == "" || accept == "*" || accept == "*/*" {
		return true
	}
	ct := strings.ToLower(contentType)
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	for _, pattern := range strings.Split(strings.ToLower(accept), ",") {
		pattern = strings.TrimSpace(pattern)
		switch {
		case pattern == "":
			continue
		case strings.HasPrefix(pattern, "."):
			if pattern == "."+ext {
				return true
			}
		case strings.HasSuffix(pattern, "/*"):
			if strings.HasPrefix(ct, strings.TrimSuffix(pattern, "*")) {
				return true
			}
		case pattern == ct:
			return true
		}
	}
	return false
}

func replaceExt(name, ext string) string {
	if name == "" {
		return "upload" + ext
	}
	return strings.TrimSuffix(name, filepath.Ext(name)) + ext
}

func pathSegment(field string) string {
	if seg := utils.NormalizeFieldName(field); seg != "" {
		return seg
	}
	return "file"
}
