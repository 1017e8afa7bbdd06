package services

import (
	"context"
	"fmt"
	"sync"

	"taxforms-api/models"

	"github.com/sirupsen/logrus"
)

// WizardService drives server-held wizards: each call loads the caller's
// draft, applies one transition and saves it back.
type WizardService struct {
	drafts     DraftStore
	schema     *FormSchemaService
	intake     *FileIntakeService
	submission *SubmissionService
	policy     RequiredFieldPolicy
	log        logrus.FieldLogger

	inFlight sync.Map
}

func NewWizardService(drafts DraftStore, schema *FormSchemaService, intake *FileIntakeService, submission *SubmissionService, policy RequiredFieldPolicy, log logrus.FieldLogger) *WizardService {
	return &WizardService{
		drafts:     drafts,
		schema:     schema,
		intake:     intake,
		submission: submission,
		policy:     policy,
		log:        log,
	}
}

func (s *WizardService) Start(ctx context.Context, auth AuthState) (*Wizard, error) {
	if !auth.Authenticated() {
		return nil, ErrUnauthenticated
	}
	w := NewWizard(auth.UserID, s.policy)
	if err := s.drafts.Save(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}

func (s *WizardService) Get(ctx context.Context, auth AuthState, id string) (*Wizard, error) {
	if !auth.Authenticated() {
		return nil, ErrUnauthenticated
	}
	return s.drafts.Load(ctx, auth.UserID, id)
}

// update loads a draft, applies fn and saves the result. Nothing is saved
// when fn fails.
func (s *WizardService) update(ctx context.Context, auth AuthState, id string, fn func(*Wizard) error) (*Wizard, error) {
	w, err := s.Get(ctx, auth, id)
	if err != nil {
		return nil, err
	}
	if err := fn(w); err != nil {
		return nil, err
	}
	if err := s.drafts.Save(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}

func (s *WizardService) SelectFormType(ctx context.Context, auth AuthState, id, formTypeID string) (*Wizard, error) {
	formType, err := s.schema.GetFormType(ctx, formTypeID)
	if err != nil {
		return nil, err
	}
	fields := s.schema.GetFields(ctx, formType.ID)
	return s.update(ctx, auth, id, func(w *Wizard) error {
		return w.SelectFormType(*formType, fields)
	})
}

func (s *WizardService) SetFields(ctx context.Context, auth AuthState, id string, values map[string]any) (*Wizard, error) {
	return s.update(ctx, auth, id, func(w *Wizard) error {
		return w.SetFields(values)
	})
}

func (s *WizardService) SetTypedData(ctx context.Context, auth AuthState, id string, w2 *models.W2Data, form1099 *models.Form1099Data) (*Wizard, error) {
	return s.update(ctx, auth, id, func(w *Wizard) error {
		return w.SetTypedData(w2, form1099)
	})
}

// UploadFile runs a file through the intake pipeline and attaches the
// reference to the draft. A failed upload leaves the slot as it was.
func (s *WizardService) UploadFile(ctx context.Context, auth AuthState, id, fieldName string, file FileInput) (*Wizard, error) {
	w, err := s.Get(ctx, auth, id)
	if err != nil {
		return nil, err
	}
	field, ok := w.field(fieldName)
	if !ok || !field.FieldType.IsUpload() {
		return nil, fmt.Errorf("%w: %s is not a file field", ErrInvalidInput, fieldName)
	}
	if w.Step != StepFillingDetails {
		return nil, fmt.Errorf("%w: cannot attach a file while %s", ErrInvalidTransition, w.Step)
	}

	ref, err := s.intake.UploadFile(ctx, file, UploadContext{
		UserID:     auth.UserID,
		FieldName:  field.FieldName,
		FieldLabel: field.FieldLabel,
		Accept:     field.FieldType.AcceptFilter(),
	})
	if err != nil {
		return nil, err
	}
	if err := w.AttachFile(ref); err != nil {
		return nil, err
	}
	if err := s.drafts.Save(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}

func (s *WizardService) ClearFile(ctx context.Context, auth AuthState, id, fieldName string) (*Wizard, error) {
	return s.update(ctx, auth, id, func(w *Wizard) error {
		return w.ClearFile(fieldName)
	})
}

func (s *WizardService) Next(ctx context.Context, auth AuthState, id string) (*Wizard, error) {
	return s.update(ctx, auth, id, func(w *Wizard) error {
		return w.Next()
	})
}

func (s *WizardService) Back(ctx context.Context, auth AuthState, id string) (*Wizard, error) {
	if _, busy := s.inFlight.Load(id); busy {
		return nil, ErrSubmissionInFlight
	}
	return s.update(ctx, auth, id, func(w *Wizard) error {
		return w.Back()
	})
}

// Submit performs the wizard's final insert. A second submit for the same
// draft while the first is running is rejected; on failure the draft is
// kept on the review step. A submitted draft is removed from the store.
func (s *WizardService) Submit(ctx context.Context, auth AuthState, id string) (*Wizard, *models.Application, error) {
	if _, busy := s.inFlight.LoadOrStore(id, struct{}{}); busy {
		return nil, nil, ErrSubmissionInFlight
	}
	defer s.inFlight.Delete(id)

	w, err := s.Get(ctx, auth, id)
	if err != nil {
		return nil, nil, err
	}

	app, submitErr := w.Submit(ctx, func(ctx context.Context, in SubmissionInput) (*models.Application, error) {
		return s.submission.Submit(ctx, auth, in)
	})
	if submitErr != nil {
		if saveErr := s.drafts.Save(ctx, w); saveErr != nil {
			s.log.WithError(saveErr).WithField("wizard_id", id).Warn("failed to save wizard draft")
		}
		return w, nil, submitErr
	}

	// The application row is the record from here on.
	if delErr := s.drafts.Delete(ctx, auth.UserID, id); delErr != nil {
		s.log.WithError(delErr).WithField("wizard_id", id).Warn("failed to drop submitted wizard draft")
	}
	return w, app, nil
}
