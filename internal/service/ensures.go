package service

import (
	"net"

	"github.com/formflowhq/formflow/internal/apperr"
	"github.com/formflowhq/formflow/internal/models"
	"github.com/formflowhq/formflow/internal/pipeline"
)

// EnsureChecks returns the precondition chain for submission routes.
// Order is fixed: cheapest and most discriminating first, so an
// unavailable form never pays for a captcha round trip or a count
// query.
func (s *Service) EnsureChecks() []pipeline.Check {
	return []pipeline.Check{
		s.ensurePublicForm,
		s.ensureValidCaptcha,
		s.ensureWithinSubmissionLimits,
	}
}

func (s *Service) ensurePublicForm(c *pipeline.Context) bool {
	switch c.Form.State {
	case models.FormStatePublic:
		return true
	case models.FormStateArchived:
		c.Log.Info("rejecting submission to archived form", "formId", c.Form.ID)
		c.JSON(apperr.MapRouteError(apperr.ErrFormDeleted))
		return false
	default:
		c.Log.Info("rejecting submission to private form", "formId", c.Form.ID)
		c.JSON(apperr.MapRouteError(apperr.ErrFormPrivate))
		return false
	}
}

func (s *Service) ensureValidCaptcha(c *pipeline.Context) bool {
	if !c.Form.HasCaptcha {
		return true
	}
	if s.captcha == nil {
		c.Log.Warn("captcha required but verifier not configured, skipping", "formId", c.Form.ID)
		return true
	}

	response := c.R.URL.Query().Get("captchaResponse")
	if err := s.captcha.Verify(c.R.Context(), response, remoteIP(c.R.RemoteAddr)); err != nil {
		c.Log.Error("captcha verification failed", "formId", c.Form.ID, "error", err)
		c.JSON(apperr.MapRouteError(apperr.ErrCaptchaFailed))
		return false
	}
	return true
}

func (s *Service) ensureWithinSubmissionLimits(c *pipeline.Context) bool {
	if c.Form.SubmissionLimit <= 0 {
		return true
	}

	count, err := s.subs.CountByForm(c.R.Context(), c.Form.ID)
	if err != nil {
		c.Log.Error("failed to count submissions for limit check", "formId", c.Form.ID, "error", err)
		return false
	}
	if count >= c.Form.SubmissionLimit {
		c.Log.Info("form has reached its submission limit",
			"formId", c.Form.ID, "count", count, "limit", c.Form.SubmissionLimit)
		return false
	}
	return true
}

func remoteIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
