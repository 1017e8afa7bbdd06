package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// FieldType enumerates the input kinds an admin can attach to a form type.
type FieldType string

const (
	FieldTypeText     FieldType = "text"
	FieldTypeNumber   FieldType = "number"
	FieldTypeEmail    FieldType = "email"
	FieldTypeFile     FieldType = "file"
	FieldTypeImage    FieldType = "image"
	FieldTypeTextarea FieldType = "textarea"
	FieldTypeSelect   FieldType = "select"
	FieldTypeDate     FieldType = "date"
)

var validFieldTypes = map[FieldType]bool{
	FieldTypeText:     true,
	FieldTypeNumber:   true,
	FieldTypeEmail:    true,
	FieldTypeFile:     true,
	FieldTypeImage:    true,
	FieldTypeTextarea: true,
	FieldTypeSelect:   true,
	FieldTypeDate:     true,
}

// Valid reports whether t is one of the supported field types.
func (t FieldType) Valid() bool {
	return validFieldTypes[t]
}

// IsUpload reports whether values of this type go through the file intake pipeline.
func (t FieldType) IsUpload() bool {
	return t == FieldTypeFile || t == FieldTypeImage
}

// AcceptFilter is the accept hint passed to the file intake pipeline.
func (t FieldType) AcceptFilter() string {
	if t == FieldTypeImage {
		return "image/*"
	}
	return "*"
}

// CustomField is an admin-defined input attached to a FormType.
type CustomField struct {
	ID           string                       `gorm:"primaryKey;column:id;type:varchar(36)" json:"id"`
	FormTypeID   string                       `gorm:"column:form_type_id;type:varchar(36);not null;uniqueIndex:idx_form_type_field_name" json:"form_type_id"`
	FieldName    string                       `gorm:"column:field_name;not null;uniqueIndex:idx_form_type_field_name" json:"field_name"`
	FieldLabel   string                       `gorm:"column:field_label;not null" json:"field_label"`
	FieldType    FieldType                    `gorm:"column:field_type;not null" json:"field_type"`
	IsRequired   bool                         `gorm:"column:is_required;not null;default:false" json:"is_required"`
	DisplayOrder int                          `gorm:"column:display_order;not null;default:0" json:"display_order"`
	Options      datatypes.JSONSlice[string] `gorm:"column:options" json:"options,omitempty"`
	CreatedAt    time.Time                    `gorm:"column:created_at" json:"created_at"`
}

func (CustomField) TableName() string {
	return "custom_form_fields"
}

func (f *CustomField) BeforeCreate(tx *gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	return nil
}
