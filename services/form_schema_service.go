package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"taxforms-api/models"
	"taxforms-api/utils"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// FormSchemaService resolves form types and their custom fields, and
// carries the admin edits to both.
type FormSchemaService struct {
	db  *gorm.DB
	log logrus.FieldLogger
}

func NewFormSchemaService(db *gorm.DB, log logrus.FieldLogger) *FormSchemaService {
	return &FormSchemaService{db: db, log: log}
}

// GetActiveFormTypes returns the active form types ordered by name. A
// storage failure is logged and yields an empty list.
func (s *FormSchemaService) GetActiveFormTypes(ctx context.Context) []models.FormType {
	var formTypes []models.FormType
	if err := s.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("name ASC").
		Find(&formTypes).Error; err != nil {
		s.log.WithError(err).Error("failed to load active form types")
		return []models.FormType{}
	}
	return formTypes
}

// GetFields returns the custom fields of formTypeID ordered by display
// order, ties kept in insertion order. A storage failure is logged and
// yields an empty list, the same as a form type with no fields.
func (s *FormSchemaService) GetFields(ctx context.Context, formTypeID string) []models.CustomField {
	var fields []models.CustomField
	if err := s.db.WithContext(ctx).
		Where("form_type_id = ?", formTypeID).
		Order("display_order ASC").
		Order("created_at ASC").
		Find(&fields).Error; err != nil {
		s.log.WithError(err).WithField("form_type_id", formTypeID).Error("failed to load custom fields")
		return []models.CustomField{}
	}
	sort.SliceStable(fields, func(i, j int) bool {
		return fields[i].DisplayOrder < fields[j].DisplayOrder
	})
	return fields
}

// GetFormType resolves any form type by id, active or not, so existing
// applications keep resolving after a type is deactivated.
func (s *FormSchemaService) GetFormType(ctx context.Context, id string) (*models.FormType, error) {
	var formType models.FormType
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&formType).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("form type %s: %w", id, ErrNotFound)
		}
		return nil, persistenceFailed("load form type", err)
	}
	return &formType, nil
}

// ListAllFormTypes returns every form type, active or not, for admins.
func (s *FormSchemaService) ListAllFormTypes(ctx context.Context) ([]models.FormType, error) {
	var formTypes []models.FormType
	if err := s.db.WithContext(ctx).Preload("Fields", func(db *gorm.DB) *gorm.DB {
		return db.Order("display_order ASC").Order("created_at ASC")
	}).Order("name ASC").Find(&formTypes).Error; err != nil {
		return nil, persistenceFailed("list form types", err)
	}
	return formTypes, nil
}

// FormTypeInput carries admin edits; nil fields are left unchanged.
type FormTypeInput struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	BasePrice   *decimal.Decimal `json:"base_price"`
	IsActive    *bool            `json:"is_active"`
}

func (s *FormSchemaService) CreateFormType(ctx context.Context, in FormTypeInput) (*models.FormType, error) {
	if in.Name == nil || utils.SanitizeInput(*in.Name) == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	formType := models.FormType{
		Name:     utils.SanitizeInput(*in.Name),
		IsActive: true,
	}
	if err := applyFormTypeInput(&formType, in); err != nil {
		return nil, err
	}
	active := formType.IsActive
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&formType).Error; err != nil {
			return err
		}
		// is_active defaults to true in the schema, so false is never inserted.
		if !active {
			return tx.Model(&formType).Update("is_active", false).Error
		}
		return nil
	})
	if err != nil {
		return nil, persistenceFailed("create form type", err)
	}
	formType.IsActive = active
	return &formType, nil
}

// UpdateFormType edits a form type. Existing applications keep the price
// they were submitted with.
func (s *FormSchemaService) UpdateFormType(ctx context.Context, id string, in FormTypeInput) (*models.FormType, error) {
	formType, err := s.GetFormType(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := applyFormTypeInput(formType, in); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(formType).Select("name", "description", "base_price", "is_active", "updated_at").
		Updates(formType).Error; err != nil {
		return nil, persistenceFailed("update form type", err)
	}
	return formType, nil
}

func applyFormTypeInput(formType *models.FormType, in FormTypeInput) error {
	if in.Name != nil {
		name := utils.SanitizeInput(*in.Name)
		if name == "" {
			return fmt.Errorf("%w: name cannot be empty", ErrInvalidInput)
		}
		formType.Name = name
	}
	if in.Description != nil {
		desc := utils.SanitizeInput(*in.Description)
		formType.Description = &desc
	}
	if in.BasePrice != nil {
		if in.BasePrice.IsNegative() {
			return fmt.Errorf("%w: base price cannot be negative", ErrInvalidInput)
		}
		formType.BasePrice = in.BasePrice.Round(2)
	}
	if in.IsActive != nil {
		formType.IsActive = *in.IsActive
	}
	return nil
}

// CustomFieldInput describes a new custom field.
type CustomFieldInput struct {
	FieldName  string           `json:"field_name"`
	FieldLabel string           `json:"field_label"`
	FieldType  models.FieldType `json:"field_type"`
	IsRequired bool             `json:"is_required"`
	Options    []string         `json:"options"`
}

// AddCustomField appends a field to a form type. The machine name is
// normalised to lower snake case and the field goes last in display order.
func (s *FormSchemaService) AddCustomField(ctx context.Context, formTypeID string, in CustomFieldInput) (*models.CustomField, error) {
	if _, err := s.GetFormType(ctx, formTypeID); err != nil {
		return nil, err
	}

	name := utils.NormalizeFieldName(in.FieldName)
	if name == "" {
		name = utils.NormalizeFieldName(in.FieldLabel)
	}
	label := utils.SanitizeInput(in.FieldLabel)
	if name == "" || label == "" {
		return nil, fmt.Errorf("%w: field name and label are required", ErrInvalidInput)
	}
	if in.FieldType == "" {
		in.FieldType = models.FieldTypeText
	}
	if !in.FieldType.Valid() {
		return nil, fmt.Errorf("%w: unsupported field type %q", ErrInvalidInput, in.FieldType)
	}

	field := models.CustomField{
		FormTypeID: formTypeID,
		FieldName:  name,
		FieldLabel: label,
		FieldType:  in.FieldType,
		IsRequired: in.IsRequired,
	}
	for _, opt := range in.Options {
		if opt = strings.TrimSpace(opt); opt != "" {
			field.Options = append(field.Options, opt)
		}
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.CustomField{}).Where("form_type_id = ?", formTypeID).Count(&count).Error; err != nil {
			return err
		}
		var dup int64
		if err := tx.Model(&models.CustomField{}).
			Where("form_type_id = ? AND field_name = ?", formTypeID, name).
			Count(&dup).Error; err != nil {
			return err
		}
		if dup > 0 {
			return fmt.Errorf("%w: field %q already exists", ErrInvalidInput, name)
		}
		field.DisplayOrder = int(count)
		return tx.Create(&field).Error
	})
	if err != nil {
		if errors.Is(err, ErrInvalidInput) {
			return nil, err
		}
		return nil, persistenceFailed("add custom field", err)
	}
	return &field, nil
}

func (s *FormSchemaService) DeleteCustomField(ctx context.Context, fieldID string) error {
	result := s.db.WithContext(ctx).Where("id = ?", fieldID).Delete(&models.CustomField{})
	if result.Error != nil {
		return persistenceFailed("delete custom field", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("custom field %s: %w", fieldID, ErrNotFound)
	}
	return nil
}
