package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// FormType is a configurable tax-document template offered to users.
type FormType struct {
	ID          string          `gorm:"primaryKey;column:id;type:varchar(36)" json:"id"`
	Name        string          `gorm:"column:name;not null" json:"name"`
	Description *string         `gorm:"column:description" json:"description"`
	BasePrice   decimal.Decimal `gorm:"column:base_price;type:decimal(10,2);not null" json:"base_price"`
	IsActive    bool            `gorm:"column:is_active;not null;default:true" json:"is_active"`
	CreatedAt   time.Time       `gorm:"column:created_at" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"column:updated_at" json:"updated_at"`

	// Relations
	Fields []CustomField `gorm:"foreignKey:FormTypeID;constraint:OnDelete:CASCADE" json:"fields,omitempty"`
}

func (FormType) TableName() string {
	return "form_types"
}

func (f *FormType) BeforeCreate(tx *gorm.DB) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	return nil
}

// Kind reports which typed form-data shape applies to this form type.
func (f FormType) Kind() FormDataKind {
	return KindForFormTypeName(f.Name)
}
