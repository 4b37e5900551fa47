package models

// FormState mirrors the admin-facing lifecycle of a form.
type FormState string

const (
	FormStatePublic   FormState = "PUBLIC"
	FormStatePrivate  FormState = "PRIVATE"
	FormStateArchived FormState = "ARCHIVED"
)

// ResponseMode selects how a form collects responses.
type ResponseMode string

const (
	ResponseModeEncrypt         ResponseMode = "encrypt"
	ResponseModeMultirespondent ResponseMode = "multirespondent"
)

// FormAuthType is the identity requirement placed on respondents.
// Multirespondent forms must use FormAuthNil; respondent access is via
// signed edit links instead.
type FormAuthType string

const (
	FormAuthNil FormAuthType = "NIL"
	FormAuthSSO FormAuthType = "SSO"
	FormAuthOTP FormAuthType = "OTP"
)

// WorkflowStep is one stage of a multirespondent workflow. Emails may
// be empty, in which case the workflow terminates at this step.
type WorkflowStep struct {
	Emails []string `firestore:"emails" json:"emails"`
	Type   string   `firestore:"type" json:"type"`
}

// Form is the form definition as this engine sees it: read-only, owned
// by the form admin service.
type Form struct {
	ID              string           `firestore:"-" json:"_id,omitempty"`
	Title           string           `firestore:"title" json:"title"`
	State           FormState        `firestore:"state" json:"state"`
	ResponseMode    ResponseMode     `firestore:"responseMode" json:"responseMode"`
	AuthType        FormAuthType     `firestore:"authType" json:"authType"`
	HasCaptcha      bool             `firestore:"hasCaptcha" json:"hasCaptcha"`
	SubmissionLimit int64            `firestore:"submissionLimit" json:"submissionLimit"` // 0 = unlimited
	Workflow        []WorkflowStep   `firestore:"workflow" json:"workflow"`
	FormFields      []map[string]any `firestore:"formFields" json:"formFields"`
	FormLogics      []map[string]any `firestore:"formLogics" json:"formLogics"`
}

// StepEmails returns the recipient list for a workflow step, or nil
// when the step index is past the end of the workflow.
func (f *Form) StepEmails(step int) []string {
	if step < 0 || step >= len(f.Workflow) {
		return nil
	}
	return f.Workflow[step].Emails
}
