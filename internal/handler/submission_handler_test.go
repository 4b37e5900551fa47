package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/formflowhq/formflow/internal/apperr"
	"github.com/formflowhq/formflow/internal/auth"
	"github.com/formflowhq/formflow/internal/handler"
	"github.com/formflowhq/formflow/internal/models"
	"github.com/formflowhq/formflow/internal/router"
	"github.com/formflowhq/formflow/internal/service"
)

const testSecret = "handler-test-secret"

type fakeForms struct {
	forms map[string]*models.Form
}

func (f *fakeForms) Get(_ context.Context, id string) (*models.Form, error) {
	form, ok := f.forms[id]
	if !ok {
		return nil, apperr.ErrFormNotFound
	}
	return form, nil
}

type fakeStore struct {
	mu   sync.Mutex
	subs map[string]*models.Submission
}

func newFakeStore() *fakeStore {
	return &fakeStore{subs: map[string]*models.Submission{}}
}

func (s *fakeStore) Create(_ context.Context, sub *models.Submission) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := fmt.Sprintf("sub-%d", len(s.subs)+1)
	sub.WorkflowStep = 0
	sub.CreatedAt = time.Now().UTC()
	sub.ID = id
	clone := *sub
	s.subs[id] = &clone
	return id, nil
}

func (s *fakeStore) Get(_ context.Context, formID, id string) (*models.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[id]
	if !ok || sub.FormID != formID {
		return nil, apperr.ErrSubmissionNotFound
	}
	clone := *sub
	return &clone, nil
}

func (s *fakeStore) Update(_ context.Context, id string, up models.SubmissionUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[id]
	if !ok {
		return apperr.ErrSubmissionNotFound
	}
	sub.EncryptedContent = up.EncryptedContent
	sub.Version = up.Version
	sub.WorkflowStep = up.WorkflowStep
	return nil
}

func (s *fakeStore) CountByForm(_ context.Context, formID string) (int64, error) {
	return 0, nil
}

type fakeUploader struct {
	uploadErr error
}

func (u *fakeUploader) UploadAttachments(_ context.Context, formID string, blobs map[string][]byte) (map[string]string, error) {
	if u.uploadErr != nil {
		return nil, apperr.Storage(u.uploadErr)
	}
	meta := make(map[string]string, len(blobs))
	for id := range blobs {
		meta[id] = formID + "/key-" + id
	}
	return meta, nil
}

func (u *fakeUploader) SignedURLs(meta map[string]string, _ time.Duration) (map[string]string, error) {
	urls := make(map[string]string, len(meta))
	for id, key := range meta {
		urls[id] = "https://signed.example/" + key
	}
	return urls, nil
}

type sentMail struct {
	recipients []string
	url        string
}

type fakeMailer struct {
	sent chan sentMail
}

func newFakeMailer() *fakeMailer {
	return &fakeMailer{sent: make(chan sentMail, 4)}
}

func (m *fakeMailer) SendWorkflowStepEmail(_ context.Context, recipients []string, formTitle, responseURL string) error {
	m.sent <- sentMail{recipients: recipients, url: responseURL}
	return nil
}

func (m *fakeMailer) waitForMail(t *testing.T) sentMail {
	t.Helper()
	select {
	case mail := <-m.sent:
		return mail
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for workflow notification")
		return sentMail{}
	}
}

func (m *fakeMailer) expectNoMail(t *testing.T) {
	t.Helper()
	select {
	case mail := <-m.sent:
		t.Fatalf("unexpected workflow notification to %v", mail.recipients)
	case <-time.After(100 * time.Millisecond):
	}
}

type testEnv struct {
	server  *httptest.Server
	store   *fakeStore
	mailer  *fakeMailer
	forms   *fakeForms
	uploads *fakeUploader
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	form := &models.Form{
		ID:           "form-1",
		Title:        "Procurement request",
		State:        models.FormStatePublic,
		ResponseMode: models.ResponseModeMultirespondent,
		AuthType:     models.FormAuthNil,
		Workflow: []models.WorkflowStep{
			{Emails: nil, Type: "static"},
			{Emails: []string{"a@x.com"}, Type: "static"},
		},
	}

	env := &testEnv{
		store:   newFakeStore(),
		mailer:  newFakeMailer(),
		forms:   &fakeForms{forms: map[string]*models.Form{form.ID: form}},
		uploads: &fakeUploader{},
	}

	svc := service.New(env.forms, env.store, env.uploads, env.mailer, nil, log, "https://forms.example")
	subH := handler.NewSubmissionHandler(svc, log, testSecret, time.Hour)
	env.server = httptest.NewServer(router.New(log, testSecret, subH))
	t.Cleanup(env.server.Close)
	return env
}

func (e *testEnv) submit(t *testing.T, payload any) *http.Response {
	t.Helper()
	body, _ := json.Marshal(payload)
	resp, err := http.Post(
		e.server.URL+"/api/v1/forms/form-1/submissions/multirespondent",
		"application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	return resp
}

func (e *testEnv) update(t *testing.T, submissionID string, payload any) *http.Response {
	t.Helper()
	body, _ := json.Marshal(payload)
	req, _ := http.NewRequest(http.MethodPut,
		e.server.URL+"/api/v1/forms/form-1/submissions/multirespondent/"+submissionID,
		bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return body
}

// Scenario: first submission of a 2-step workflow stores workflowStep 0
// and notifies the step-1 recipient.
func TestSubmitStoresStepZeroAndNotifiesNextStep(t *testing.T) {
	env := newTestEnv(t)

	resp := env.submit(t, models.EncryptedPayload{
		SubmissionPublicKey: "pub",
		EncryptedContent:    "cipher",
		SubmissionSecretKey: "secret",
		WorkflowStep:        3, // must be ignored
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	body := decodeBody(t, resp)
	subID, _ := body["submissionId"].(string)
	if subID == "" {
		t.Fatalf("missing submissionId in response: %v", body)
	}
	if ts, ok := body["timestamp"].(float64); !ok || ts <= 0 {
		t.Fatalf("missing timestamp in response: %v", body)
	}

	stored := env.store.subs[subID]
	if stored == nil || stored.WorkflowStep != 0 {
		t.Fatalf("stored record must have workflowStep 0: %+v", stored)
	}

	mail := env.mailer.waitForMail(t)
	if len(mail.recipients) != 1 || mail.recipients[0] != "a@x.com" {
		t.Fatalf("expected notification to a@x.com, got %v", mail.recipients)
	}
}

// Scenario: updating to the last step, whose successor has no
// recipients, updates the record and sends nothing.
func TestUpdateTerminalStepSendsNoNotification(t *testing.T) {
	env := newTestEnv(t)

	resp := env.submit(t, models.EncryptedPayload{EncryptedContent: "v1", SubmissionSecretKey: "s"})
	subID := decodeBody(t, resp)["submissionId"].(string)
	env.mailer.waitForMail(t) // step-1 notification

	resp = env.update(t, subID, models.EncryptedPayload{EncryptedContent: "v2", WorkflowStep: 1})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	if env.store.subs[subID].WorkflowStep != 1 {
		t.Fatalf("expected stored workflowStep 1, got %d", env.store.subs[subID].WorkflowStep)
	}
	env.mailer.expectNoMail(t)
}

// Scenario: a failed attachment upload fails the request and leaves no
// submission document behind.
func TestSubmitAttachmentFailureLeavesNoRecord(t *testing.T) {
	env := newTestEnv(t)
	env.uploads.uploadErr = errors.New("upload 2 of 3 failed")

	resp := env.submit(t, models.EncryptedPayload{
		EncryptedContent: "cipher",
		Attachments: map[string][]byte{
			"att-1": []byte("a"), "att-2": []byte("b"), "att-3": []byte("c"),
		},
	})
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	if len(env.store.subs) != 0 {
		t.Fatal("no submission document may exist after a failed attachment batch")
	}
	env.mailer.expectNoMail(t)
}

// Scenario: updating an unknown submission id fails with 404 and does
// not create a record.
func TestUpdateUnknownSubmission(t *testing.T) {
	env := newTestEnv(t)

	resp := env.update(t, "missing", models.EncryptedPayload{EncryptedContent: "v2", WorkflowStep: 1})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	if len(env.store.subs) != 0 {
		t.Fatal("failed update must not create a record")
	}
	env.mailer.expectNoMail(t)
}

func TestGetForRespondentRequiresSession(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.server.URL + "/api/v1/forms/form-1/submissions/multirespondent/sub-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a session token, got %d", resp.StatusCode)
	}
}

func TestGetForRespondentReturnsEnvelope(t *testing.T) {
	env := newTestEnv(t)

	resp := env.submit(t, models.EncryptedPayload{
		EncryptedContent:    "cipher",
		Attachments:         map[string][]byte{"att-1": []byte("a")},
		SubmissionSecretKey: "s",
	})
	subID := decodeBody(t, resp)["submissionId"].(string)
	env.mailer.waitForMail(t)

	token, err := auth.GenerateToken(testSecret, "form-1", subID, time.Hour)
	if err != nil {
		t.Fatalf("token: %v", err)
	}

	req, _ := http.NewRequest(http.MethodGet,
		env.server.URL+"/api/v1/forms/form-1/submissions/multirespondent/"+subID, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	getResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if getResp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", getResp.StatusCode)
	}

	body := decodeBody(t, getResp)
	if body["encryptedContent"] != "cipher" {
		t.Fatalf("unexpected envelope: %v", body)
	}
	links, _ := body["attachmentMetadata"].(map[string]any)
	if len(links) != 1 {
		t.Fatalf("expected one signed attachment link, got %v", links)
	}
}

func TestGetForRespondentTokenScopeMismatch(t *testing.T) {
	env := newTestEnv(t)

	token, err := auth.GenerateToken(testSecret, "other-form", "sub-1", time.Hour)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	req, _ := http.NewRequest(http.MethodGet,
		env.server.URL+"/api/v1/forms/form-1/submissions/multirespondent/sub-1", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for mismatched token scope, got %d", resp.StatusCode)
	}
}

func TestCreateSessionMintsToken(t *testing.T) {
	env := newTestEnv(t)

	resp := env.submit(t, models.EncryptedPayload{EncryptedContent: "cipher", SubmissionSecretKey: "s"})
	subID := decodeBody(t, resp)["submissionId"].(string)
	env.mailer.waitForMail(t)

	sessResp, err := http.Post(
		env.server.URL+"/api/v1/forms/form-1/submissions/multirespondent/"+subID+"/session",
		"application/json", nil)
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	if sessResp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", sessResp.StatusCode)
	}
	body := decodeBody(t, sessResp)
	tokenStr, _ := body["token"].(string)
	if tokenStr == "" {
		t.Fatalf("missing token: %v", body)
	}
	claims, err := auth.ValidateToken(testSecret, tokenStr)
	if err != nil {
		t.Fatalf("minted token invalid: %v", err)
	}
	if claims.FormID != "form-1" || claims.SubmissionID != subID {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestCreateSessionUnknownSubmission(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Post(
		env.server.URL+"/api/v1/forms/form-1/submissions/multirespondent/missing/session",
		"application/json", nil)
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown submission, got %d", resp.StatusCode)
	}
}

// Archived forms short-circuit the ensure chain with 410 before any
// payload processing.
func TestSubmitArchivedForm(t *testing.T) {
	env := newTestEnv(t)
	env.forms.forms["form-1"].State = models.FormStateArchived

	resp := env.submit(t, models.EncryptedPayload{EncryptedContent: "cipher"})
	if resp.StatusCode != http.StatusGone {
		t.Fatalf("expected 410, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	if len(env.store.subs) != 0 {
		t.Fatal("archived form must not accept submissions")
	}
}
