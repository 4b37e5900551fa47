// Package service orchestrates multirespondent submission handling:
// precondition checks, attachment upload, persistence and workflow
// advancement. Collaborators are injected as interfaces so tests can
// substitute fakes.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/formflowhq/formflow/internal/apperr"
	"github.com/formflowhq/formflow/internal/models"
)

// FormProvider resolves form definitions.
type FormProvider interface {
	Get(ctx context.Context, id string) (*models.Form, error)
}

// SubmissionStore is the document-store contract for submission records.
type SubmissionStore interface {
	Create(ctx context.Context, sub *models.Submission) (string, error)
	Get(ctx context.Context, formID, id string) (*models.Submission, error)
	Update(ctx context.Context, id string, up models.SubmissionUpdate) error
	CountByForm(ctx context.Context, formID string) (int64, error)
}

// AttachmentStore is the object-store contract for attachment blobs.
type AttachmentStore interface {
	UploadAttachments(ctx context.Context, formID string, blobs map[string][]byte) (map[string]string, error)
	SignedURLs(meta map[string]string, expiry time.Duration) (map[string]string, error)
}

// Mailer sends workflow-step notifications.
type Mailer interface {
	SendWorkflowStepEmail(ctx context.Context, recipients []string, formTitle, responseURL string) error
}

// CaptchaVerifier checks anti-abuse captcha responses.
type CaptchaVerifier interface {
	Verify(ctx context.Context, response, remoteIP string) error
}

type Service struct {
	forms       FormProvider
	subs        SubmissionStore
	attachments AttachmentStore
	mailer      Mailer
	captcha     CaptchaVerifier // nil skips the captcha check
	log         *slog.Logger
	appURL      string
}

func New(forms FormProvider, subs SubmissionStore, attachments AttachmentStore, mailer Mailer, captcha CaptchaVerifier, log *slog.Logger, appURL string) *Service {
	return &Service{
		forms:       forms,
		subs:        subs,
		attachments: attachments,
		mailer:      mailer,
		captcha:     captcha,
		log:         log,
		appURL:      appURL,
	}
}

// Forms exposes the form provider for request middleware.
func (s *Service) Forms() FormProvider {
	return s.forms
}

// CreateSubmission persists the first respondent's portion. The stored
// record always starts at workflow step 0, whatever the payload said.
func (s *Service) CreateSubmission(ctx context.Context, form *models.Form, payload *models.EncryptedPayload) (*models.Submission, error) {
	// Respondent access is via signed edit links; form-level auth has
	// no meaning on this path.
	if form.AuthType != models.FormAuthNil {
		s.log.Error("multirespondent form is not allowed to have auth",
			"action", "createSubmission", "formId", form.ID, "authType", string(form.AuthType))
		return nil, fmt.Errorf("%w: multirespondent form must not have authType", apperr.ErrMalformedParams)
	}

	attachmentMetadata := map[string]string{}
	if len(payload.Attachments) > 0 {
		meta, err := s.attachments.UploadAttachments(ctx, form.ID, payload.Attachments)
		if err != nil {
			s.log.Error("attachment upload failed",
				"action", "createSubmission", "formId", form.ID, "error", err)
			return nil, err
		}
		attachmentMetadata = meta
	}

	sub := &models.Submission{
		FormID:                       form.ID,
		AuthType:                     form.AuthType,
		FormFields:                   form.FormFields,
		FormLogics:                   form.FormLogics,
		SubmissionPublicKey:          payload.SubmissionPublicKey,
		EncryptedSubmissionSecretKey: payload.EncryptedSubmissionSecretKey,
		EncryptedContent:             payload.EncryptedContent,
		AttachmentMetadata:           attachmentMetadata,
		Version:                      payload.Version,
		WorkflowStep:                 0,
		ResponseMetadata:             payload.ResponseMetadata,
	}

	id, err := s.subs.Create(ctx, sub)
	if err != nil {
		s.log.Error("submission save error",
			"action", "createSubmission", "formId", form.ID, "error", err)
		return nil, err
	}

	s.log.Info("saved submission",
		"action", "createSubmission", "formId", form.ID, "submissionId", id)
	return sub, nil
}

// UpdateSubmission replaces the mutable envelope of an existing record
// with the next respondent's portion.
func (s *Service) UpdateSubmission(ctx context.Context, form *models.Form, submissionID string, payload *models.EncryptedPayload) (*models.Submission, error) {
	sub, err := s.subs.Get(ctx, form.ID, submissionID)
	if err != nil {
		return nil, err
	}

	up := models.SubmissionUpdate{
		SubmissionPublicKey:          payload.SubmissionPublicKey,
		EncryptedSubmissionSecretKey: payload.EncryptedSubmissionSecretKey,
		EncryptedContent:             payload.EncryptedContent,
		Version:                      payload.Version,
		WorkflowStep:                 payload.WorkflowStep,
		ResponseMetadata:             payload.ResponseMetadata,
	}
	if err := s.subs.Update(ctx, submissionID, up); err != nil {
		s.log.Error("submission save error",
			"action", "updateSubmission", "formId", form.ID, "submissionId", submissionID, "error", err)
		return nil, err
	}

	sub.SubmissionPublicKey = up.SubmissionPublicKey
	sub.EncryptedSubmissionSecretKey = up.EncryptedSubmissionSecretKey
	sub.EncryptedContent = up.EncryptedContent
	sub.Version = up.Version
	sub.WorkflowStep = up.WorkflowStep
	sub.ResponseMetadata = up.ResponseMetadata

	s.log.Info("saved submission",
		"action", "updateSubmission", "formId", form.ID, "submissionId", submissionID)
	return sub, nil
}

// SubmissionView is the respondent-facing read model: the encrypted
// envelope plus signed attachment links.
type SubmissionView struct {
	SubmissionID                 string                   `json:"submissionId"`
	FormID                       string                   `json:"formId"`
	SubmissionPublicKey          string                   `json:"submissionPublicKey"`
	EncryptedSubmissionSecretKey string                   `json:"encryptedSubmissionSecretKey"`
	EncryptedContent             string                   `json:"encryptedContent"`
	AttachmentLinks              map[string]string        `json:"attachmentMetadata"`
	Version                      int                      `json:"version"`
	WorkflowStep                 int                      `json:"workflowStep"`
	ResponseMetadata             *models.ResponseMetadata `json:"responseMetadata,omitempty"`
	CreatedAt                    time.Time                `json:"createdAt"`
}

// GetSubmissionForRespondent retrieves a stored submission for the next
// respondent. Attachment links are signed with urlExpiry, which callers
// cap to the respondent session's remaining lifetime.
func (s *Service) GetSubmissionForRespondent(ctx context.Context, formID, submissionID string, urlExpiry time.Duration) (*SubmissionView, error) {
	form, err := s.forms.Get(ctx, formID)
	if err != nil {
		return nil, err
	}
	if form.State == models.FormStateArchived {
		return nil, apperr.ErrFormDeleted
	}
	if form.ResponseMode != models.ResponseModeMultirespondent {
		return nil, fmt.Errorf("%w: form %s is in %s mode", apperr.ErrInvalidSubmissionType, formID, form.ResponseMode)
	}

	sub, err := s.subs.Get(ctx, formID, submissionID)
	if err != nil {
		return nil, err
	}

	links := map[string]string{}
	if len(sub.AttachmentMetadata) > 0 {
		links, err = s.attachments.SignedURLs(sub.AttachmentMetadata, urlExpiry)
		if err != nil {
			s.log.Error("failed to sign attachment urls",
				"action", "getSubmissionForRespondent", "formId", formID, "submissionId", submissionID, "error", err)
			return nil, err
		}
	}

	return &SubmissionView{
		SubmissionID:                 sub.ID,
		FormID:                       sub.FormID,
		SubmissionPublicKey:          sub.SubmissionPublicKey,
		EncryptedSubmissionSecretKey: sub.EncryptedSubmissionSecretKey,
		EncryptedContent:             sub.EncryptedContent,
		AttachmentLinks:              links,
		Version:                      sub.Version,
		WorkflowStep:                 sub.WorkflowStep,
		ResponseMetadata:             sub.ResponseMetadata,
		CreatedAt:                    sub.CreatedAt,
	}, nil
}

// EnsureSubmissionExists verifies that a submission id resolves for
// the given form, without exposing the record.
func (s *Service) EnsureSubmissionExists(ctx context.Context, formID, submissionID string) error {
	_, err := s.subs.Get(ctx, formID, submissionID)
	return err
}

// AdvanceWorkflow notifies the recipients of the next workflow step.
// It runs after the client response is already written, so every
// failure is logged and swallowed: the persisted submission is the
// source of truth and notification is a side channel.
func (s *Service) AdvanceWorkflow(ctx context.Context, form *models.Form, submissionID, secretKey string, nextStep int) {
	emails := form.StepEmails(nextStep)
	if len(emails) == 0 {
		// Terminal state: the step is past the workflow's end or has no
		// recipients.
		return
	}

	responseURL := s.responseURL(form.ID, submissionID, secretKey)
	if err := s.mailer.SendWorkflowStepEmail(ctx, emails, form.Title, responseURL); err != nil {
		s.log.Error("failed to send workflow step email",
			"action", "advanceWorkflow", "formId", form.ID, "submissionId", submissionID,
			"nextWorkflowStep", nextStep, "error", err)
	}
}

func (s *Service) responseURL(formID, submissionID, secretKey string) string {
	return fmt.Sprintf("%s/%s/submissions/%s/edit?key=%s",
		s.appURL, formID, submissionID, url.QueryEscape(secretKey))
}
