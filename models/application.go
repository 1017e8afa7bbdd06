package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ApplicationStatus is the review state of a submitted application.
type ApplicationStatus string

const (
	StatusPending   ApplicationStatus = "pending"
	StatusInReview  ApplicationStatus = "in_review"
	StatusApproved  ApplicationStatus = "approved"
	StatusRejected  ApplicationStatus = "rejected"
	StatusCompleted ApplicationStatus = "completed"
)

// AllStatuses lists every status in workflow order.
var AllStatuses = []ApplicationStatus{
	StatusPending,
	StatusInReview,
	StatusApproved,
	StatusRejected,
	StatusCompleted,
}

func (s ApplicationStatus) Valid() bool {
	for _, status := range AllStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// UploadedFileRef points at a stored upload. StoragePath is the durable
// identifier; URL is derived from it and may be all that legacy rows carry.
type UploadedFileRef struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	StoragePath string `json:"storagePath,omitempty"`
	FieldName   string `json:"fieldName,omitempty"`
	FieldLabel  string `json:"fieldLabel,omitempty"`
}

// UnmarshalJSON also accepts the key spellings found in older rows
// (path, storage_path, fileName, file_name).
func (r *UploadedFileRef) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name         string `json:"name"`
		FileName     string `json:"fileName"`
		FileNameAlt  string `json:"file_name"`
		URL          string `json:"url"`
		StoragePath  string `json:"storagePath"`
		StorageAlt   string `json:"storage_path"`
		Path         string `json:"path"`
		FieldName    string `json:"fieldName"`
		FieldNameAlt string `json:"field_name"`
		FieldLabel   string `json:"fieldLabel"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*r = UploadedFileRef{
		Name:        firstNonEmpty(raw.Name, raw.FileName, raw.FileNameAlt),
		URL:         raw.URL,
		StoragePath: firstNonEmpty(raw.StoragePath, raw.StorageAlt, raw.Path),
		FieldName:   firstNonEmpty(raw.FieldName, raw.FieldNameAlt),
		FieldLabel:  raw.FieldLabel,
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// Application is one user's submitted instance of a FormType.
type Application struct {
	ID            string                               `gorm:"primaryKey;column:id;type:varchar(36)" json:"id"`
	UserID        string                               `gorm:"column:user_id;type:varchar(36);not null;index" json:"user_id"`
	FormTypeID    string                               `gorm:"column:form_type_id;type:varchar(36);not null;index" json:"form_type_id"`
	Status        ApplicationStatus                    `gorm:"column:status;not null;default:pending;index" json:"status"`
	FormData      datatypes.JSONMap                    `gorm:"column:form_data" json:"form_data"`
	UploadedFiles datatypes.JSONSlice[UploadedFileRef] `gorm:"column:uploaded_files" json:"uploaded_files"`
	TotalPrice    decimal.Decimal                      `gorm:"column:total_price;type:decimal(10,2);not null" json:"total_price"`
	AdminNotes    *string                              `gorm:"column:admin_notes" json:"admin_notes"`
	CreatedAt     time.Time                            `gorm:"column:created_at;index" json:"created_at"`
	UpdatedAt     time.Time                            `gorm:"column:updated_at" json:"updated_at"`

	// Relations
	FormType *FormType `gorm:"foreignKey:FormTypeID" json:"form_type,omitempty"`
}

func (Application) TableName() string {
	return "form_applications"
}

func (a *Application) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Status == "" {
		a.Status = StatusPending
	}
	return nil
}

// IsPending reports whether the owning user may still delete the application.
func (a Application) IsPending() bool {
	return a.Status == StatusPending
}
