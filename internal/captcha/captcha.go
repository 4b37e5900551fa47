// Package captcha verifies anti-abuse captcha responses against the
// provider's verification endpoint.
package captcha

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/formflowhq/formflow/internal/apperr"
)

type Verifier struct {
	client    *http.Client
	verifyURL string
	secret    string
}

func NewVerifier(verifyURL, secret string) *Verifier {
	return &Verifier{
		client:    &http.Client{Timeout: 10 * time.Second},
		verifyURL: verifyURL,
		secret:    secret,
	}
}

// Verify checks the captcha response token the client submitted.
// Returns ErrCaptchaFailed when the provider rejects it.
func (v *Verifier) Verify(ctx context.Context, response, remoteIP string) error {
	if response == "" {
		return apperr.ErrCaptchaFailed
	}

	form := url.Values{
		"secret":   {v.secret},
		"response": {response},
	}
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.verifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build captcha verify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.client.Do(req)
	if err != nil {
		return fmt.Errorf("captcha verify request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("captcha provider returned status %d", resp.StatusCode)
	}

	var result struct {
		Success    bool     `json:"success"`
		ErrorCodes []string `json:"error-codes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decode captcha verify response: %w", err)
	}
	if !result.Success {
		return fmt.Errorf("%w: %s", apperr.ErrCaptchaFailed, strings.Join(result.ErrorCodes, ","))
	}
	return nil
}
