package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"taxforms-api/models"
	"taxforms-api/monitor"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// UnknownUserName is shown for applications whose owner has no profile.
const UnknownUserName = "Unknown user"

// TransitionPolicy decides whether an admin may move an application
// between two statuses.
type TransitionPolicy interface {
	Allow(from, to models.ApplicationStatus) bool
}

// PermissiveTransitions allows any status from any status.
type PermissiveTransitions struct{}

func (PermissiveTransitions) Allow(from, to models.ApplicationStatus) bool { return true }

// StrictTransitions allows only the listed moves. Re-saving the current
// status is always allowed so notes can be edited.
type StrictTransitions map[models.ApplicationStatus][]models.ApplicationStatus

// DefaultStrictTransitions is a review workflow for deployments that want one.
var DefaultStrictTransitions = StrictTransitions{
	models.StatusPending:   {models.StatusInReview, models.StatusApproved, models.StatusRejected},
	models.StatusInReview:  {models.StatusPending, models.StatusApproved, models.StatusRejected},
	models.StatusApproved:  {models.StatusInReview, models.StatusCompleted},
	models.StatusRejected:  {models.StatusInReview},
	models.StatusCompleted: {},
}

func (t StrictTransitions) Allow(from, to models.ApplicationStatus) bool {
	if from == to {
		return true
	}
	for _, allowed := range t[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// ApplicationView is an application joined with its owner and form type.
type ApplicationView struct {
	models.Application
	UserEmail    string `json:"user_email"`
	UserName     string `json:"user_name"`
	FormTypeName string `json:"form_type_name"`
}

// ApplicationFilter narrows the admin list. Search matches owner email,
// owner name, form type name and application id, case-insensitively.
type ApplicationFilter struct {
	Status models.ApplicationStatus
	Search string
	Limit  int
}

// AdminStats backs the admin dashboard.
type AdminStats struct {
	TotalUsers         int64             `json:"total_users"`
	TotalApplications  int64             `json:"total_applications"`
	PendingReview      int64             `json:"pending_review"`
	Completed          int64             `json:"completed"`
	Revenue            decimal.Decimal   `json:"revenue"`
	RecentApplications []ApplicationView `json:"recent_applications"`
}

type AdminReviewService struct {
	db       *gorm.DB
	resolver *FileResolver
	notifier Notifier
	policy   TransitionPolicy
	log      logrus.FieldLogger
}

func NewAdminReviewService(db *gorm.DB, resolver *FileResolver, notifier Notifier, log logrus.FieldLogger) *AdminReviewService {
	if notifier == nil {
		notifier = NoopNotifier{}
	}
	return &AdminReviewService{
		db:       db,
		resolver: resolver,
		notifier: notifier,
		policy:   PermissiveTransitions{},
		log:      log,
	}
}

// SetTransitionPolicy replaces the default permissive policy.
func (s *AdminReviewService) SetTransitionPolicy(policy TransitionPolicy) {
	if policy == nil {
		policy = PermissiveTransitions{}
	}
	s.policy = policy
}

// List returns applications newest first with owner and form type joined
// in. A missing profile yields an unknown user rather than an error.
func (s *AdminReviewService) List(ctx context.Context, filter ApplicationFilter) ([]ApplicationView, error) {
	query := s.db.WithContext(ctx).Preload("FormType").Order("created_at DESC")
	if filter.Status != "" {
		if !filter.Status.Valid() {
			return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, filter.Status)
		}
		query = query.Where("status = ?", filter.Status)
	}
	search := strings.ToLower(strings.TrimSpace(filter.Search))
	if filter.Limit > 0 && search == "" {
		query = query.Limit(filter.Limit)
	}

	var apps []models.Application
	if err := query.Find(&apps).Error; err != nil {
		return nil, persistenceFailed("list applications", err)
	}

	views, err := s.attachProfiles(ctx, apps)
	if err != nil {
		return nil, err
	}
	if search == "" {
		return views, nil
	}

	matched := make([]ApplicationView, 0, len(views))
	for _, v := range views {
		if v.matches(search) {
			matched = append(matched, v)
			if filter.Limit > 0 && len(matched) == filter.Limit {
				break
			}
		}
	}
	return matched, nil
}

func (v ApplicationView) matches(search string) bool {
	for _, field := range []string{v.UserEmail, v.UserName, v.FormTypeName, v.ID} {
		if strings.Contains(strings.ToLower(field), search) {
			return true
		}
	}
	return false
}

func (s *AdminReviewService) attachProfiles(ctx context.Context, apps []models.Application) ([]ApplicationView, error) {
	userIDs := make([]string, 0, len(apps))
	seen := make(map[string]bool, len(apps))
	for _, app := range apps {
		if !seen[app.UserID] {
			seen[app.UserID] = true
			userIDs = append(userIDs, app.UserID)
		}
	}

	profiles := make(map[string]models.Profile, len(userIDs))
	if len(userIDs) > 0 {
		var rows []models.Profile
		if err := s.db.WithContext(ctx).Where("user_id IN ?", userIDs).Find(&rows).Error; err != nil {
			// Owner details are decoration; the list itself still loads.
			s.log.WithError(err).Warn("failed to load applicant profiles")
		}
		for _, p := range rows {
			profiles[p.UserID] = p
		}
	}

	views := make([]ApplicationView, 0, len(apps))
	for _, app := range apps {
		view := ApplicationView{Application: app, UserName: UnknownUserName}
		if p, ok := profiles[app.UserID]; ok {
			view.UserEmail = p.Email
			view.UserName = p.DisplayName()
		}
		if app.FormType != nil {
			view.FormTypeName = app.FormType.Name
		}
		views = append(views, view)
	}
	return views, nil
}

func (s *AdminReviewService) Get(ctx context.Context, id string) (*ApplicationView, error) {
	var app models.Application
	if err := s.db.WithContext(ctx).Preload("FormType").Where("id = ?", id).First(&app).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("application %s: %w", id, ErrNotFound)
		}
		return nil, persistenceFailed("load application", err)
	}
	views, err := s.attachProfiles(ctx, []models.Application{app})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// UpdateStatus overwrites status and admin notes in one write. Concurrent
// updates are last-write-wins. The applicant is notified afterwards; a
// failed notification is only logged.
func (s *AdminReviewService) UpdateStatus(ctx context.Context, id string, status models.ApplicationStatus, notes string) (*ApplicationView, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, status)
	}

	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	previous := current.Status
	if !s.policy.Allow(previous, status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, previous, status)
	}

	now := time.Now()
	result := s.db.WithContext(ctx).Model(&models.Application{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":      status,
			"admin_notes": notes,
			"updated_at":  now,
		})
	if result.Error != nil {
		return nil, persistenceFailed("update application status", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, fmt.Errorf("application %s: %w", id, ErrNotFound)
	}

	monitor.RecordStatusUpdate(string(status))
	current.Status = status
	current.AdminNotes = &notes
	current.UpdatedAt = now

	logger := s.log.WithFields(logrus.Fields{"application_id": id, "from": previous, "to": status})
	logger.Info("application status updated")

	change := StatusChange{
		Application: current.Application,
		Previous:    previous,
		Email:       current.UserEmail,
		Notes:       notes,
	}
	if current.UserName != UnknownUserName {
		change.FullName = current.UserName
	}
	if err := s.notifier.StatusChanged(ctx, change); err != nil {
		logger.WithError(err).Warn("status notification failed")
	}
	return current, nil
}

// Delete removes one application of any status. Stored files are left in place.
func (s *AdminReviewService) Delete(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Application{})
	if result.Error != nil {
		return persistenceFailed("delete application", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("application %s: %w", id, ErrNotFound)
	}
	s.log.WithField("application_id", id).Info("application deleted by admin")
	return nil
}

// BulkDelete removes the given applications with a single statement and
// reports how many rows went.
func (s *AdminReviewService) BulkDelete(ctx context.Context, ids []string) (int64, error) {
	unique := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id != "" && !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}
	if len(unique) == 0 {
		return 0, fmt.Errorf("%w: no application ids given", ErrInvalidInput)
	}

	result := s.db.WithContext(ctx).Where("id IN ?", unique).Delete(&models.Application{})
	if result.Error != nil {
		return 0, persistenceFailed("bulk delete applications", result.Error)
	}
	s.log.WithFields(logrus.Fields{"requested": len(unique), "deleted": result.RowsAffected}).Info("applications bulk deleted")
	return result.RowsAffected, nil
}

// DownloadFile resolves a file reference of unknown completeness.
func (s *AdminReviewService) DownloadFile(ctx context.Context, ref models.UploadedFileRef) (*ResolvedFile, error) {
	file, err := s.resolver.Resolve(ctx, ref)
	if err != nil {
		s.log.WithError(err).WithField("storage_path", ref.StoragePath).Warn("file download failed")
		return nil, err
	}
	return file, nil
}

func (s *AdminReviewService) DashboardStats(ctx context.Context) (*AdminStats, error) {
	db := s.db.WithContext(ctx)
	stats := &AdminStats{Revenue: decimal.Zero}

	if err := db.Model(&models.Profile{}).Count(&stats.TotalUsers).Error; err != nil {
		return nil, persistenceFailed("count users", err)
	}

	counts, err := countByStatus(db)
	if err != nil {
		return nil, persistenceFailed("count applications", err)
	}
	for _, n := range counts {
		stats.TotalApplications += n
	}
	stats.PendingReview = counts[models.StatusPending]
	stats.Completed = counts[models.StatusCompleted]

	var prices []decimal.Decimal
	if err := db.Model(&models.Application{}).
		Where("status = ?", models.StatusCompleted).
		Pluck("total_price", &prices).Error; err != nil {
		return nil, persistenceFailed("sum revenue", err)
	}
	for _, p := range prices {
		stats.Revenue = stats.Revenue.Add(p)
	}

	recent, err := s.List(ctx, ApplicationFilter{Limit: 5})
	if err != nil {
		return nil, err
	}
	stats.RecentApplications = recent
	return stats, nil
}
