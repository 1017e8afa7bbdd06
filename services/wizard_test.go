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
)

func w2FormType() models.FormType {
	return models.FormType{ID: "ft-w2", Name: "W-2", BasePrice: decimal.RequireFromString("14.99"), IsActive: true}
}

func w2Fields() []models.CustomField {
	return []models.CustomField{
		{ID: "f1", FieldName: "w2_copy", FieldLabel: "W-2 Copy", FieldType: models.FieldTypeImage, IsRequired: true, DisplayOrder: 0},
		{ID: "f2", FieldName: "phone", FieldLabel: "Phone", FieldType: models.FieldTypeText, IsRequired: true, DisplayOrder: 1},
		{ID: "f3", FieldName: "notes", FieldLabel: "Notes", FieldType: models.FieldTypeTextarea, DisplayOrder: 2},
	}
}

func wizardOnDetails(t *testing.T, policy RequiredFieldPolicy) *Wizard {
	t.Helper()
	w := NewWizard("user-1", policy)
	require.NoError(t, w.SelectFormType(w2FormType(), w2Fields()))
	require.NoError(t, w.Next())
	require.Equal(t, StepFillingDetails, w.Step)
	return w
}

func TestWizardRequiresFormTypeBeforeDetails(t *testing.T) {
	w := NewWizard("user-1", "")
	assert.Equal(t, StepSelectingFormType, w.Step)
	assert.Equal(t, RequiredFieldsPermissive, w.Policy)
	assert.ErrorIs(t, w.Next(), ErrInvalidTransition)
	assert.ErrorIs(t, w.Back(), ErrInvalidTransition)

	inactive := w2FormType()
	inactive.IsActive = false
	assert.ErrorIs(t, w.SelectFormType(inactive, nil), ErrInvalidInput)
}

func TestWizardBackPreservesData(t *testing.T) {
	w := wizardOnDetails(t, RequiredFieldsPermissive)
	require.NoError(t, w.SetFields(map[string]any{"employee_name": "Jane Doe", "phone": "555-0100"}))
	require.NoError(t, w.AttachFile(models.UploadedFileRef{Name: "w2.jpg", StoragePath: "user-1/w2_copy_1.jpg", FieldName: "w2_copy"}))
	require.NoError(t, w.Next())
	assert.Equal(t, StepReviewing, w.Step)

	require.NoError(t, w.Back())
	require.NoError(t, w.Back())
	assert.Equal(t, StepSelectingFormType, w.Step)

	// Re-selecting the same type keeps everything.
	require.NoError(t, w.SelectFormType(w2FormType(), w2Fields()))
	require.NoError(t, w.Next())
	bag := w.Data.Flatten()
	assert.Equal(t, "Jane Doe", bag["employee_name"])
	assert.Equal(t, "555-0100", bag["phone"])
	assert.Equal(t, models.DefaultTaxYear, bag["tax_year"])
	assert.Contains(t, w.Files, "w2_copy")

	// A different type keeps custom values but not the W-2 typed fields
	// or files for fields it does not have.
	require.NoError(t, w.Back())
	other := models.FormType{ID: "ft-nec", Name: "1099-NEC", BasePrice: decimal.RequireFromString("9.99"), IsActive: true}
	require.NoError(t, w.SelectFormType(other, nil))
	assert.Equal(t, models.FormData1099, w.Data.Kind)
	assert.Nil(t, w.Data.W2)
	bag = w.Data.Flatten()
	assert.Equal(t, "555-0100", bag["phone"])
	assert.NotContains(t, bag, "employee_name")
	assert.Empty(t, w.Files)
}

func TestWizardSwitchWithinSameFamilyKeepsTypedData(t *testing.T) {
	nec := models.FormType{ID: "ft-nec", Name: "1099-NEC", BasePrice: decimal.RequireFromString("9.99"), IsActive: true}
	misc := models.FormType{ID: "ft-misc", Name: "1099-MISC", BasePrice: decimal.RequireFromString("9.99"), IsActive: true}
	upload := []models.CustomField{{ID: "f1", FieldName: "form_copy", FieldLabel: "Copy", FieldType: models.FieldTypeFile}}

	w := NewWizard("user-1", RequiredFieldsPermissive)
	require.NoError(t, w.SelectFormType(nec, upload))
	require.NoError(t, w.Next())
	require.NoError(t, w.SetFields(map[string]any{"recipient_name": "Acme", "memo": "contract work"}))
	require.NoError(t, w.AttachFile(models.UploadedFileRef{Name: "copy.pdf", StoragePath: "user-1/form_copy_1.pdf", FieldName: "form_copy"}))

	require.NoError(t, w.Back())
	require.NoError(t, w.SelectFormType(misc, upload))

	bag := w.Data.Flatten()
	assert.Equal(t, "Acme", bag["recipient_name"])
	assert.Equal(t, "contract work", bag["memo"])
	assert.Contains(t, w.Files, "form_copy")
	assert.Equal(t, "ft-misc", w.FormType.ID)
}

func TestWizardSetFieldsRoutesTypedAndCustomKeys(t *testing.T) {
	w := wizardOnDetails(t, RequiredFieldsPermissive)
	require.NoError(t, w.SetField("annual_salary", 75000))
	require.NoError(t, w.SetField("notes", "second job"))

	require.NotNil(t, w.Data.W2)
	assert.Equal(t, "75000", w.Data.W2.AnnualSalary)
	assert.Equal(t, "second job", w.Data.Custom["notes"])

	assert.ErrorIs(t, w.SetField("w2_copy", "https://example.com/x.jpg"), ErrInvalidInput)

	require.NoError(t, w.SetTypedData(&models.W2Data{TaxYear: "2024", EmployeeName: "Jane"}, nil))
	assert.Equal(t, "2024", w.Data.W2.TaxYear)
	assert.Equal(t, "second job", w.Data.Custom["notes"])
	assert.ErrorIs(t, w.SetTypedData(nil, &models.Form1099Data{}), ErrInvalidInput)
}

func TestWizardRequiredFieldPolicy(t *testing.T) {
	permissive := wizardOnDetails(t, RequiredFieldsPermissive)
	assert.NoError(t, permissive.Next())
	assert.Equal(t, StepReviewing, permissive.Step)

	strict := wizardOnDetails(t, RequiredFieldsEnforce)
	err := strict.Next()
	var missing *RequiredFieldsMissingError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []string{"w2_copy", "phone"}, missing.Fields)
	assert.ErrorIs(t, err, ErrRequiredFieldsMissing)
	assert.Equal(t, StepFillingDetails, strict.Step)

	require.NoError(t, strict.SetField("phone", "555-0100"))
	require.NoError(t, strict.AttachFile(models.UploadedFileRef{Name: "w2.jpg", FieldName: "w2_copy"}))
	assert.Empty(t, strict.MissingRequired())
	assert.NoError(t, strict.Next())
}

func TestWizardSubmitFailureStaysOnReview(t *testing.T) {
	w := wizardOnDetails(t, RequiredFieldsPermissive)
	require.NoError(t, w.SetField("employee_name", "Jane Doe"))
	require.NoError(t, w.Next())

	_, err := w.Submit(context.Background(), func(context.Context, SubmissionInput) (*models.Application, error) {
		return nil, persistenceFailed("submit application", errors.New("connection reset"))
	})
	var pErr *PersistenceFailedError
	require.ErrorAs(t, err, &pErr)
	assert.Equal(t, StepReviewing, w.Step)
	assert.Equal(t, "Jane Doe", w.Data.Flatten()["employee_name"])
	assert.NotEmpty(t, w.LastError)

	app, err := w.Submit(context.Background(), func(_ context.Context, in SubmissionInput) (*models.Application, error) {
		assert.Equal(t, "ft-w2", in.FormTypeID)
		return &models.Application{ID: "app-1"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "app-1", app.ID)
	assert.Equal(t, StepSubmitted, w.Step)
	assert.Equal(t, "app-1", w.ApplicationID)
	assert.Empty(t, w.LastError)

	_, err = w.Submit(context.Background(), func(context.Context, SubmissionInput) (*models.Application, error) {
		t.Fatal("submitted twice")
		return nil, nil
	})
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestWizardRejectsConcurrentSubmit(t *testing.T) {
	w := wizardOnDetails(t, RequiredFieldsPermissive)
	require.NoError(t, w.Next())

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		_, err := w.Submit(context.Background(), func(context.Context, SubmissionInput) (*models.Application, error) {
			close(started)
			<-release
			return &models.Application{ID: "app-1"}, nil
		})
		done <- err
	}()

	<-started
	_, err := w.Submit(context.Background(), func(context.Context, SubmissionInput) (*models.Application, error) {
		return &models.Application{ID: "app-2"}, nil
	})
	assert.ErrorIs(t, err, ErrSubmissionInFlight)
	assert.ErrorIs(t, w.Back(), ErrSubmissionInFlight)

	close(release)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("submit did not finish")
	}
	assert.Equal(t, "app-1", w.ApplicationID)
}

func TestWizardInputOrdersFilesByField(t *testing.T) {
	w := wizardOnDetails(t, RequiredFieldsPermissive)
	require.NoError(t, w.AttachFile(models.UploadedFileRef{Name: "extra.pdf", FieldName: "zz_extra"}))
	require.NoError(t, w.AttachFile(models.UploadedFileRef{Name: "w2.jpg", FieldName: "w2_copy"}))
	require.NoError(t, w.AttachFile(models.UploadedFileRef{Name: "old.jpg", FieldName: "w2_copy"}))

	in := w.Input()
	require.Len(t, in.Files, 2)
	assert.Equal(t, "old.jpg", in.Files[0].Name)
	assert.Equal(t, "extra.pdf", in.Files[1].Name)

	require.NoError(t, w.ClearFile("w2_copy"))
	assert.Len(t, w.Input().Files, 1)
}
