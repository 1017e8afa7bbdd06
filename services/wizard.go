package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"taxforms-api/models"

	"github.com/google/uuid"
)

// WizardStep is a position in the application wizard.
type WizardStep string

const (
	StepSelectingFormType WizardStep = "selecting_form_type"
	StepFillingDetails    WizardStep = "filling_details"
	StepReviewing         WizardStep = "reviewing"
	StepSubmitted         WizardStep = "submitted"
)

// RequiredFieldPolicy decides whether FillingDetails -> Reviewing checks
// required custom fields.
type RequiredFieldPolicy string

const (
	RequiredFieldsPermissive RequiredFieldPolicy = "permissive"
	RequiredFieldsEnforce    RequiredFieldPolicy = "enforce"
)

// SubmitFunc performs the single write that ends a wizard.
type SubmitFunc func(ctx context.Context, input SubmissionInput) (*models.Application, error)

// Wizard holds one in-progress application. Everything in it is local and
// reversible until Submit succeeds.
type Wizard struct {
	ID            string                            `json:"id"`
	UserID        string                            `json:"user_id"`
	Step          WizardStep                        `json:"step"`
	Policy        RequiredFieldPolicy               `json:"policy"`
	FormType      *models.FormType                  `json:"form_type,omitempty"`
	Fields        []models.CustomField              `json:"fields"`
	Data          models.FormData                   `json:"data"`
	Files         map[string]models.UploadedFileRef `json:"files"`
	ApplicationID string                            `json:"application_id,omitempty"`
	LastError     string                            `json:"last_error,omitempty"`
	UpdatedAt     time.Time                         `json:"updated_at"`

	mu         sync.Mutex
	submitting bool
}

func NewWizard(userID string, policy RequiredFieldPolicy) *Wizard {
	if policy == "" {
		policy = RequiredFieldsPermissive
	}
	return &Wizard{
		ID:        uuid.NewString(),
		UserID:    userID,
		Step:      StepSelectingFormType,
		Policy:    policy,
		Fields:    []models.CustomField{},
		Data:      models.NewFormData(models.FormDataGeneric),
		Files:     map[string]models.UploadedFileRef{},
		UpdatedAt: time.Now(),
	}
}

func (w *Wizard) requireStep(op string, allowed ...WizardStep) error {
	for _, step := range allowed {
		if w.Step == step {
			return nil
		}
	}
	return fmt.Errorf("%w: cannot %s while %s", ErrInvalidTransition, op, w.Step)
}

func (w *Wizard) touch() {
	w.UpdatedAt = time.Now()
}

// SelectFormType records the chosen form type and its fields. Picking the
// same type again keeps everything. Picking another keeps the custom values,
// keeps typed values when the new type uses the same typed form, and keeps
// file refs only for upload fields the new type also has.
func (w *Wizard) SelectFormType(formType models.FormType, fields []models.CustomField) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.requireStep("select a form type", StepSelectingFormType); err != nil {
		return err
	}
	if !formType.IsActive {
		return fmt.Errorf("%w: form type %s is not active", ErrInvalidInput, formType.Name)
	}

	if w.FormType == nil || w.FormType.ID != formType.ID {
		w.carryOver(formType.Kind(), fields)
	}
	ft := formType
	ft.Fields = nil
	w.FormType = &ft
	if fields == nil {
		fields = []models.CustomField{}
	}
	w.Fields = fields
	w.touch()
	return nil
}

func (w *Wizard) carryOver(kind models.FormDataKind, fields []models.CustomField) {
	var bag map[string]any
	if w.Data.Kind == kind {
		bag = w.Data.Flatten()
	} else {
		bag = make(map[string]any, len(w.Data.Custom))
		for k, v := range w.Data.Custom {
			bag[k] = v
		}
	}
	w.Data = models.SplitFormData(kind, bag)

	uploads := map[string]bool{}
	for _, f := range fields {
		if f.FieldType.IsUpload() {
			uploads[f.FieldName] = true
		}
	}
	files := map[string]models.UploadedFileRef{}
	for name, ref := range w.Files {
		if uploads[name] {
			files[name] = ref
		}
	}
	w.Files = files
}

// SetFields merges scalar values into the form data. Keys of the typed
// form land in the typed struct; everything else is a custom value.
func (w *Wizard) SetFields(values map[string]any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.requireStep("edit fields", StepFillingDetails); err != nil {
		return err
	}
	for name := range values {
		if field, ok := w.field(name); ok && field.FieldType.IsUpload() {
			return fmt.Errorf("%w: %s takes a file upload", ErrInvalidInput, name)
		}
	}

	bag := w.Data.Flatten()
	for k, v := range values {
		bag[k] = v
	}
	w.Data = models.SplitFormData(w.Data.Kind, bag)
	w.touch()
	return nil
}

// SetField is SetFields for one value.
func (w *Wizard) SetField(name string, value any) error {
	return w.SetFields(map[string]any{name: value})
}

// SetTypedData replaces the typed part of the form data, keeping custom values.
func (w *Wizard) SetTypedData(w2 *models.W2Data, form1099 *models.Form1099Data) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.requireStep("edit fields", StepFillingDetails); err != nil {
		return err
	}
	switch w.Data.Kind {
	case models.FormDataW2:
		if w2 == nil || form1099 != nil {
			return fmt.Errorf("%w: this form takes W-2 data", ErrInvalidInput)
		}
		copied := *w2
		w.Data.W2 = &copied
	case models.FormData1099:
		if form1099 == nil || w2 != nil {
			return fmt.Errorf("%w: this form takes 1099 data", ErrInvalidInput)
		}
		copied := *form1099
		w.Data.Form1099 = &copied
	default:
		return fmt.Errorf("%w: this form has no typed data", ErrInvalidInput)
	}
	w.touch()
	return nil
}

// AttachFile stores an upload reference under its field's key.
func (w *Wizard) AttachFile(ref models.UploadedFileRef) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.requireStep("attach a file", StepFillingDetails); err != nil {
		return err
	}
	if ref.FieldName == "" {
		return fmt.Errorf("%w: file reference has no field", ErrInvalidInput)
	}
	w.Files[ref.FieldName] = ref
	w.touch()
	return nil
}

// ClearFile empties a file slot. The stored object is left in place.
func (w *Wizard) ClearFile(fieldName string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.requireStep("clear a file", StepFillingDetails); err != nil {
		return err
	}
	delete(w.Files, fieldName)
	w.touch()
	return nil
}

// Next advances one step.
func (w *Wizard) Next() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch w.Step {
	case StepSelectingFormType:
		if w.FormType == nil {
			return fmt.Errorf("%w: select a form type first", ErrInvalidTransition)
		}
		w.Step = StepFillingDetails
	case StepFillingDetails:
		if w.Policy == RequiredFieldsEnforce {
			if missing := w.missingRequired(); len(missing) > 0 {
				return &RequiredFieldsMissingError{Fields: missing}
			}
		}
		w.Step = StepReviewing
	default:
		return fmt.Errorf("%w: no step after %s", ErrInvalidTransition, w.Step)
	}
	w.touch()
	return nil
}

// Back returns to the previous step without discarding anything.
func (w *Wizard) Back() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch w.Step {
	case StepFillingDetails:
		w.Step = StepSelectingFormType
	case StepReviewing:
		if w.submitting {
			return ErrSubmissionInFlight
		}
		w.Step = StepFillingDetails
	default:
		return fmt.Errorf("%w: no step before %s", ErrInvalidTransition, w.Step)
	}
	w.touch()
	return nil
}

// MissingRequired lists required fields that have no value yet.
func (w *Wizard) MissingRequired() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.missingRequired()
}

func (w *Wizard) missingRequired() []string {
	bag := w.Data.Flatten()
	var missing []string
	for _, field := range w.Fields {
		if !field.IsRequired {
			continue
		}
		if field.FieldType.IsUpload() {
			if _, ok := w.Files[field.FieldName]; !ok {
				missing = append(missing, field.FieldName)
			}
			continue
		}
		if isBlank(bag[field.FieldName]) {
			missing = append(missing, field.FieldName)
		}
	}
	return missing
}

func (w *Wizard) field(name string) (models.CustomField, bool) {
	for _, f := range w.Fields {
		if f.FieldName == name {
			return f, true
		}
	}
	return models.CustomField{}, false
}

// Input builds the submission payload: the flattened data and the file
// references in field display order.
func (w *Wizard) Input() SubmissionInput {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.input()
}

func (w *Wizard) input() SubmissionInput {
	in := SubmissionInput{Data: w.Data, Files: w.orderedFiles()}
	if w.FormType != nil {
		in.FormTypeID = w.FormType.ID
	}
	return in
}

func (w *Wizard) orderedFiles() []models.UploadedFileRef {
	order := make(map[string]int, len(w.Fields))
	for i, f := range w.Fields {
		order[f.FieldName] = i
	}
	names := make([]string, 0, len(w.Files))
	for name := range w.Files {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		oi, iok := order[names[i]]
		oj, jok := order[names[j]]
		if iok != jok {
			return iok
		}
		if oi != oj {
			return oi < oj
		}
		return names[i] < names[j]
	})
	refs := make([]models.UploadedFileRef, 0, len(names))
	for _, name := range names {
		refs = append(refs, w.Files[name])
	}
	return refs
}

// Submit fires the wizard's single write. A second call while one is in
// flight is rejected. On failure the wizard stays in Reviewing with its
// data intact.
func (w *Wizard) Submit(ctx context.Context, submit SubmitFunc) (*models.Application, error) {
	w.mu.Lock()
	if err := w.requireStep("submit", StepReviewing); err != nil {
		w.mu.Unlock()
		return nil, err
	}
	if w.submitting {
		w.mu.Unlock()
		return nil, ErrSubmissionInFlight
	}
	w.submitting = true
	input := w.input()
	w.mu.Unlock()

	app, err := submit(ctx, input)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.submitting = false
	if err != nil {
		w.LastError = err.Error()
		return nil, err
	}
	w.LastError = ""
	w.Step = StepSubmitted
	w.ApplicationID = app.ID
	w.touch()
	return app, nil
}

func isBlank(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(val) == ""
	}
	return false
}
