package models

import "time"

// ResponseMetadata is client-reported timing and diagnostics, stored
// verbatim for analytics. It never affects processing.
type ResponseMetadata struct {
	ResponseTimeMs   int64 `firestore:"responseTimeMs" json:"responseTimeMs"`
	NumVisibleFields int   `firestore:"numVisibleFields" json:"numVisibleFields"`
}

// Submission is the persisted multirespondent submission record.
// FormID and CreatedAt never change after creation; the encryption
// envelope, version, workflowStep and responseMetadata are rewritten
// on each workflow step.
type Submission struct {
	ID                           string            `firestore:"-" json:"_id,omitempty"`
	FormID                       string            `firestore:"formId" json:"formId"`
	AuthType                     FormAuthType      `firestore:"authType" json:"authType"`
	FormFields                   []map[string]any  `firestore:"formFields" json:"formFields"`
	FormLogics                   []map[string]any  `firestore:"formLogics" json:"formLogics"`
	SubmissionPublicKey          string            `firestore:"submissionPublicKey" json:"submissionPublicKey"`
	EncryptedSubmissionSecretKey string            `firestore:"encryptedSubmissionSecretKey" json:"encryptedSubmissionSecretKey"`
	EncryptedContent             string            `firestore:"encryptedContent" json:"encryptedContent"`
	AttachmentMetadata           map[string]string `firestore:"attachmentMetadata" json:"attachmentMetadata"`
	Version                      int               `firestore:"version" json:"version"`
	WorkflowStep                 int               `firestore:"workflowStep" json:"workflowStep"`
	ResponseMetadata             *ResponseMetadata `firestore:"responseMetadata" json:"responseMetadata,omitempty"`
	CreatedAt                    time.Time         `firestore:"createdAt" json:"createdAt"`
}

// SubmissionUpdate carries the mutable fields replaced on a workflow
// step update. Identity fields (formId, createdAt) and the attachment
// metadata written at create time are deliberately absent.
type SubmissionUpdate struct {
	SubmissionPublicKey          string
	EncryptedSubmissionSecretKey string
	EncryptedContent             string
	Version                      int
	WorkflowStep                 int
	ResponseMetadata             *ResponseMetadata
}

// EncryptedPayload is the client-encrypted envelope received on submit
// and update. The engine stores and forwards it unmodified; it never
// decrypts anything.
type EncryptedPayload struct {
	SubmissionPublicKey          string `json:"submissionPublicKey"`
	EncryptedSubmissionSecretKey string `json:"encryptedSubmissionSecretKey"`
	EncryptedContent             string `json:"encryptedContent"`
	// SubmissionSecretKey is echoed into the next respondent's edit
	// link. It is never persisted.
	SubmissionSecretKey string            `json:"submissionSecretKey,omitempty"`
	Attachments         map[string][]byte `json:"attachments,omitempty"`
	Version             int               `json:"version"`
	WorkflowStep        int               `json:"workflowStep"`
	ResponseMetadata    *ResponseMetadata `json:"responseMetadata,omitempty"`
}
