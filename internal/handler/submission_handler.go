package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/formflowhq/formflow/internal/apperr"
	"github.com/formflowhq/formflow/internal/auth"
	"github.com/formflowhq/formflow/internal/models"
	"github.com/formflowhq/formflow/internal/pipeline"
	"github.com/formflowhq/formflow/internal/service"
)

type SubmissionHandler struct {
	svc        *service.Service
	log        *slog.Logger
	jwtSecret  string
	sessionTTL time.Duration
}

func NewSubmissionHandler(svc *service.Service, log *slog.Logger, jwtSecret string, sessionTTL time.Duration) *SubmissionHandler {
	return &SubmissionHandler{svc: svc, log: log, jwtSecret: jwtSecret, sessionTTL: sessionTTL}
}

// Submit handles the first respondent's submission. On success the
// response is written first and workflow advancement to step 1 runs
// detached, best-effort.
func (h *SubmissionHandler) Submit(w http.ResponseWriter, r *http.Request) {
	formID := chi.URLParam(r, "formId")
	log := h.log.With("action", "submitMultirespondentForm", "formId", formID)

	form, ok := h.retrieveForm(w, r, formID, log)
	if !ok {
		return
	}
	if !h.runEnsures(w, r, form, log) {
		return
	}

	var payload models.EncryptedPayload
	if err := readJSON(r, &payload); err != nil {
		log.Error("invalid submission payload", "error", err)
		status, msg := apperr.MapRouteError(apperr.ErrMalformedParams)
		writeError(w, status, msg)
		return
	}

	sub, err := h.svc.CreateSubmission(r.Context(), form, &payload)
	if err != nil {
		status, msg := apperr.MapRouteError(err)
		writeError(w, status, msg)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":      "Form submission successful.",
		"submissionId": sub.ID,
		"timestamp":    sub.CreatedAt.UnixMilli(),
	})

	// Post-response: notify the next step's recipients. Detached from
	// the request; its failure is logged inside and never surfaced.
	go h.svc.AdvanceWorkflow(context.Background(), form, sub.ID, payload.SubmissionSecretKey, sub.WorkflowStep+1)
}

// Update handles a subsequent respondent's portion of the submission.
func (h *SubmissionHandler) Update(w http.ResponseWriter, r *http.Request) {
	formID := chi.URLParam(r, "formId")
	submissionID := chi.URLParam(r, "submissionId")
	log := h.log.With("action", "updateMultirespondentSubmission", "formId", formID, "submissionId", submissionID)

	form, ok := h.retrieveForm(w, r, formID, log)
	if !ok {
		return
	}
	if !h.runEnsures(w, r, form, log) {
		return
	}

	var payload models.EncryptedPayload
	if err := readJSON(r, &payload); err != nil {
		log.Error("invalid submission payload", "error", err)
		status, msg := apperr.MapRouteError(apperr.ErrMalformedParams)
		writeError(w, status, msg)
		return
	}

	sub, err := h.svc.UpdateSubmission(r.Context(), form, submissionID, &payload)
	if err != nil {
		status, msg := apperr.MapRouteError(err)
		writeError(w, status, msg)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":      "Form submission successful.",
		"submissionId": sub.ID,
		"timestamp":    sub.CreatedAt.UnixMilli(),
	})

	go h.svc.AdvanceWorkflow(context.Background(), form, sub.ID, payload.SubmissionSecretKey, sub.WorkflowStep+1)
}

// GetForRespondent returns the encrypted submission for the next
// respondent, with signed attachment links capped to the session's
// remaining lifetime.
func (h *SubmissionHandler) GetForRespondent(w http.ResponseWriter, r *http.Request) {
	formID := chi.URLParam(r, "formId")
	submissionID := chi.URLParam(r, "submissionId")
	log := h.log.With("action", "getSubmissionForRespondent", "formId", formID, "submissionId", submissionID)

	claims := auth.GetRespondent(r.Context())
	if claims == nil || claims.FormID != formID || claims.SubmissionID != submissionID {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	view, err := h.svc.GetSubmissionForRespondent(r.Context(), formID, submissionID, claims.RemainingLifetime())
	if err != nil {
		log.Error("failure retrieving encrypted submission", "error", err)
		status, msg := apperr.MapRouteError(err)
		writeError(w, status, msg)
		return
	}

	log.Info("retrieved encrypted submission for respondent")
	writeJSON(w, http.StatusOK, view)
}

// CreateSession mints a respondent session token for the edit link.
// The token scopes reads to one submission and bounds the lifetime of
// any attachment link minted during the session. A token only ever
// grants access to the encrypted envelope; decryption still requires
// the secret key carried in the emailed edit link.
func (h *SubmissionHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	formID := chi.URLParam(r, "formId")
	submissionID := chi.URLParam(r, "submissionId")

	if err := h.svc.EnsureSubmissionExists(r.Context(), formID, submissionID); err != nil {
		status, msg := apperr.MapRouteError(err)
		writeError(w, status, msg)
		return
	}

	token, err := auth.GenerateToken(h.jwtSecret, formID, submissionID, h.sessionTTL)
	if err != nil {
		h.log.Error("failed to mint respondent session token",
			"action", "createRespondentSession", "formId", formID, "submissionId", submissionID, "error", err)
		status, msg := apperr.MapRouteError(err)
		writeError(w, status, msg)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"token":     token,
		"expiresIn": int64(h.sessionTTL.Seconds()),
	})
}

func (h *SubmissionHandler) retrieveForm(w http.ResponseWriter, r *http.Request, formID string, log *slog.Logger) (*models.Form, bool) {
	form, err := h.svc.Forms().Get(r.Context(), formID)
	if err != nil {
		log.Error("failed to retrieve form", "error", err)
		status, msg := apperr.MapRouteError(err)
		writeError(w, status, msg)
		return nil, false
	}
	return form, true
}

func (h *SubmissionHandler) runEnsures(w http.ResponseWriter, r *http.Request, form *models.Form, log *slog.Logger) bool {
	pctx := &pipeline.Context{Form: form, Log: log, W: w, R: r}
	if pipeline.New(h.svc.EnsureChecks()...).Execute(pctx) {
		return true
	}
	if !pctx.Responded() {
		status, msg := apperr.MapRouteError(apperr.ErrSubmissionFailed)
		writeError(w, status, msg)
	}
	return false
}
