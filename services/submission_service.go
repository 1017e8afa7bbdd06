package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"taxforms-api/models"
	"taxforms-api/monitor"
	"taxforms-api/storage"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SubmissionInput is everything a finished wizard hands to Submit.
type SubmissionInput struct {
	FormTypeID string                   `json:"form_type_id"`
	Data       models.FormData          `json:"data"`
	Files      []models.UploadedFileRef `json:"files"`
}

// SubmissionService owns the user side of applications: the final insert,
// the user's own list, and pending-only deletion.
type SubmissionService struct {
	db     *gorm.DB
	schema *FormSchemaService
	store  storage.ObjectStore
	log    logrus.FieldLogger
}

func NewSubmissionService(db *gorm.DB, schema *FormSchemaService, store storage.ObjectStore, log logrus.FieldLogger) *SubmissionService {
	return &SubmissionService{db: db, schema: schema, store: store, log: log}
}

// Submit inserts one pending application priced at the form type's base
// price. File references go to uploaded_files only.
func (s *SubmissionService) Submit(ctx context.Context, auth AuthState, in SubmissionInput) (*models.Application, error) {
	if !auth.Authenticated() {
		return nil, ErrUnauthenticated
	}
	if strings.TrimSpace(in.FormTypeID) == "" {
		return nil, fmt.Errorf("%w: form type is required", ErrInvalidInput)
	}

	formType, err := s.schema.GetFormType(ctx, in.FormTypeID)
	if err != nil {
		return nil, err
	}
	if !formType.IsActive {
		return nil, fmt.Errorf("%w: form type %s is no longer offered", ErrInvalidInput, formType.Name)
	}

	files := make([]models.UploadedFileRef, 0, len(in.Files))
	for _, ref := range in.Files {
		owned, err := s.ownedFile(auth, ref)
		if err != nil {
			return nil, err
		}
		files = append(files, owned)
	}

	bag := in.Data.Flatten()
	for _, ref := range files {
		if ref.FieldName != "" {
			delete(bag, ref.FieldName)
		}
	}

	app := models.Application{
		UserID:        auth.UserID,
		FormTypeID:    formType.ID,
		Status:        models.StatusPending,
		FormData:      datatypes.JSONMap(bag),
		UploadedFiles: datatypes.JSONSlice[models.UploadedFileRef](files),
		TotalPrice:    formType.BasePrice,
	}

	logger := s.log.WithFields(logrus.Fields{"user_id": auth.UserID, "form_type_id": formType.ID})
	if err := s.db.WithContext(ctx).Create(&app).Error; err != nil {
		monitor.RecordSubmission("failed")
		logger.WithError(err).Error("application insert failed")
		return nil, persistenceFailed("submit application", err)
	}

	monitor.RecordSubmission("ok")
	logger.WithField("application_id", app.ID).Info("application submitted")
	app.FormType = formType
	return &app, nil
}

// ownedFile pins ref to an object under the caller's own folder. The path
// comes from the recorded storage path or, failing that, the public URL, and
// the URL is rebuilt from the path so it always points into this store.
func (s *SubmissionService) ownedFile(auth AuthState, ref models.UploadedFileRef) (models.UploadedFileRef, error) {
	objectPath := ref.StoragePath
	if objectPath == "" {
		p, ok := storage.PathFromPublicURL(ref.URL, s.store.Bucket())
		if !ok {
			return ref, fmt.Errorf("%w: file %s has no storage path", ErrInvalidInput, ref.Name)
		}
		objectPath = p
	}
	objectPath, err := storage.CleanObjectPath(objectPath)
	if err != nil {
		return ref, fmt.Errorf("%w: file %s: %v", ErrInvalidInput, ref.Name, err)
	}
	if !strings.HasPrefix(objectPath, auth.UserID+"/") {
		return ref, fmt.Errorf("%w: file %s belongs to another user", ErrPermissionDenied, ref.Name)
	}
	ref.StoragePath = objectPath
	ref.URL = s.store.PublicURL(objectPath)
	return ref, nil
}

// ListForUser returns the caller's applications, newest first.
func (s *SubmissionService) ListForUser(ctx context.Context, auth AuthState) ([]models.Application, error) {
	if !auth.Authenticated() {
		return nil, ErrUnauthenticated
	}
	var apps []models.Application
	if err := s.db.WithContext(ctx).
		Preload("FormType").
		Where("user_id = ?", auth.UserID).
		Order("created_at DESC").
		Find(&apps).Error; err != nil {
		return nil, persistenceFailed("list applications", err)
	}
	return apps, nil
}

// GetForUser loads one of the caller's applications. Another user's
// application is reported as not found; admins may read any.
func (s *SubmissionService) GetForUser(ctx context.Context, auth AuthState, id string) (*models.Application, error) {
	if !auth.Authenticated() {
		return nil, ErrUnauthenticated
	}
	var app models.Application
	if err := s.db.WithContext(ctx).Preload("FormType").Where("id = ?", id).First(&app).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("application %s: %w", id, ErrNotFound)
		}
		return nil, persistenceFailed("load application", err)
	}
	if app.UserID != auth.UserID && !auth.IsAdmin() {
		return nil, fmt.Errorf("application %s: %w", id, ErrNotFound)
	}
	return &app, nil
}

// DeleteOwn removes one of the caller's applications while it is still
// pending. Stored files are left in place.
func (s *SubmissionService) DeleteOwn(ctx context.Context, auth AuthState, id string) error {
	app, err := s.GetForUser(ctx, auth, id)
	if err != nil {
		return err
	}
	if app.UserID != auth.UserID {
		return fmt.Errorf("application %s: %w", id, ErrNotFound)
	}
	if !app.IsPending() {
		return fmt.Errorf("%w: only pending applications can be deleted", ErrPermissionDenied)
	}

	result := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ? AND status = ?", id, auth.UserID, models.StatusPending).
		Delete(&models.Application{})
	if result.Error != nil {
		return persistenceFailed("delete application", result.Error)
	}
	if result.RowsAffected == 0 {
		// Reviewed between the read and the delete.
		return fmt.Errorf("%w: only pending applications can be deleted", ErrPermissionDenied)
	}
	s.log.WithFields(logrus.Fields{"user_id": auth.UserID, "application_id": id}).Info("application deleted by owner")
	return nil
}

// UserStats counts the caller's applications by status.
type UserStats struct {
	Total     int64 `json:"total"`
	Pending   int64 `json:"pending"`
	InReview  int64 `json:"in_review"`
	Approved  int64 `json:"approved"`
	Rejected  int64 `json:"rejected"`
	Completed int64 `json:"completed"`
}

func (s *SubmissionService) UserDashboard(ctx context.Context, auth AuthState) (*UserStats, error) {
	if !auth.Authenticated() {
		return nil, ErrUnauthenticated
	}
	counts, err := countByStatus(s.db.WithContext(ctx).Where("user_id = ?", auth.UserID))
	if err != nil {
		return nil, persistenceFailed("count applications", err)
	}
	stats := &UserStats{
		Pending:   counts[models.StatusPending],
		InReview:  counts[models.StatusInReview],
		Approved:  counts[models.StatusApproved],
		Rejected:  counts[models.StatusRejected],
		Completed: counts[models.StatusCompleted],
	}
	for _, n := range counts {
		stats.Total += n
	}
	return stats, nil
}

func countByStatus(scope *gorm.DB) (map[models.ApplicationStatus]int64, error) {
	var rows []struct {
		Status models.ApplicationStatus
		Count  int64
	}
	if err := scope.Model(&models.Application{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	counts := make(map[models.ApplicationStatus]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}
