package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"taxforms-api/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestInactiveFormTypeHiddenButStillResolvable(t *testing.T) {
	db := setupSQLiteTestDB(t)
	svc := NewFormSchemaService(db, quietLogger())

	w2 := seedFormType(t, db, "W-2", "14.99", true)
	retired := seedFormType(t, db, "1099-OLD", "9.99", false)
	nec := seedFormType(t, db, "1099-NEC", "19.99", true)
	app := seedApplication(t, db, "user-1", retired, models.StatusPending, time.Now())

	active := svc.GetActiveFormTypes(context.Background())
	require.Len(t, active, 2)
	assert.Equal(t, nec.ID, active[0].ID)
	assert.Equal(t, w2.ID, active[1].ID)

	resolved, err := svc.GetFormType(context.Background(), app.FormTypeID)
	require.NoError(t, err)
	assert.Equal(t, "1099-OLD", resolved.Name)
	assert.False(t, resolved.IsActive)

	_, err = svc.GetFormType(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetFieldsOrderedByDisplayOrderStable(t *testing.T) {
	db := setupSQLiteTestDB(t)
	svc := NewFormSchemaService(db, quietLogger())
	ft := seedFormType(t, db, "W-2", "14.99", true)

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	seedField(t, db, ft.ID, "b_first_one", models.FieldTypeText, 1, false, base)
	seedField(t, db, ft.ID, "a_first_zero", models.FieldTypeText, 0, false, base.Add(time.Second))
	seedField(t, db, ft.ID, "c_second_one", models.FieldTypeText, 1, false, base.Add(2*time.Second))
	seedField(t, db, ft.ID, "d_second_zero", models.FieldTypeText, 0, false, base.Add(3*time.Second))

	fields := svc.GetFields(context.Background(), ft.ID)
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.FieldName
	}
	assert.Equal(t, []string{"a_first_zero", "d_second_zero", "b_first_one", "c_second_one"}, names)

	assert.Empty(t, svc.GetFields(context.Background(), "no-such-type"))
}

func TestGetFieldsStorageFailureYieldsEmpty(t *testing.T) {
	db := setupSQLiteTestDB(t)
	svc := NewFormSchemaService(db, quietLogger())
	ft := seedFormType(t, db, "W-2", "14.99", true)
	seedField(t, db, ft.ID, "employer_name", models.FieldTypeText, 0, true, time.Now())

	require.NoError(t, db.Callback().Query().Before("gorm:query").Register("test:fail_query", func(tx *gorm.DB) {
		_ = tx.AddError(errors.New("storage unavailable"))
	}))

	fields := svc.GetFields(context.Background(), ft.ID)
	assert.NotNil(t, fields)
	assert.Empty(t, fields)
	assert.Empty(t, svc.GetActiveFormTypes(context.Background()))
}

func TestAddCustomFieldNormalisesAndAppends(t *testing.T) {
	db := setupSQLiteTestDB(t)
	svc := NewFormSchemaService(db, quietLogger())
	ft := seedFormType(t, db, "W-2", "14.99", true)
	ctx := context.Background()

	first, err := svc.AddCustomField(ctx, ft.ID, CustomFieldInput{FieldName: "Spouse Name", FieldLabel: "Spouse name"})
	require.NoError(t, err)
	assert.Equal(t, "spouse_name", first.FieldName)
	assert.Equal(t, models.FieldTypeText, first.FieldType)
	assert.Equal(t, 0, first.DisplayOrder)

	second, err := svc.AddCustomField(ctx, ft.ID, CustomFieldInput{
		FieldLabel: "Filing Status",
		FieldType:  models.FieldTypeSelect,
		Options:    []string{"single", " married ", ""},
		IsRequired: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "filing_status", second.FieldName)
	assert.Equal(t, 1, second.DisplayOrder)
	assert.Equal(t, []string{"single", "married"}, []string(second.Options))

	_, err = svc.AddCustomField(ctx, ft.ID, CustomFieldInput{FieldName: "spouse name", FieldLabel: "Again"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.AddCustomField(ctx, ft.ID, CustomFieldInput{FieldName: "x", FieldLabel: "X", FieldType: "slider"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.AddCustomField(ctx, "missing", CustomFieldInput{FieldName: "x", FieldLabel: "X"})
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, svc.DeleteCustomField(ctx, first.ID))
	assert.ErrorIs(t, svc.DeleteCustomField(ctx, first.ID), ErrNotFound)
	assert.Len(t, svc.GetFields(ctx, ft.ID), 1)
}

func TestCreateAndUpdateFormType(t *testing.T) {
	db := setupSQLiteTestDB(t)
	svc := NewFormSchemaService(db, quietLogger())
	ctx := context.Background()

	name := "1099-MISC"
	price := decimal.RequireFromString("19.999")
	inactive := false
	ft, err := svc.CreateFormType(ctx, FormTypeInput{Name: &name, BasePrice: &price, IsActive: &inactive})
	require.NoError(t, err)
	assert.False(t, ft.IsActive)
	assert.True(t, ft.BasePrice.Equal(decimal.RequireFromString("20.00")))

	stored, err := svc.GetFormType(ctx, ft.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsActive)

	app := seedApplication(t, db, "user-1", *stored, models.StatusPending, time.Now())

	newPrice := decimal.RequireFromString("24.50")
	active := true
	updated, err := svc.UpdateFormType(ctx, ft.ID, FormTypeInput{BasePrice: &newPrice, IsActive: &active})
	require.NoError(t, err)
	assert.True(t, updated.IsActive)
	assert.Equal(t, "1099-MISC", updated.Name)

	var reloaded models.Application
	require.NoError(t, db.First(&reloaded, "id = ?", app.ID).Error)
	assert.True(t, reloaded.TotalPrice.Equal(decimal.RequireFromString("20.00")))

	blank := "  "
	_, err = svc.CreateFormType(ctx, FormTypeInput{Name: &blank})
	assert.ErrorIs(t, err, ErrInvalidInput)

	negative := decimal.RequireFromString("-1")
	_, err = svc.UpdateFormType(ctx, ft.ID, FormTypeInput{BasePrice: &negative})
	assert.ErrorIs(t, err, ErrInvalidInput)
}
