// Package apperr defines the closed set of domain error kinds this
// engine produces and their translation to client-facing responses.
// Internal detail never leaves the server: 500-class failures all map
// to one generic message, with specifics kept to server-side logs.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel error kinds. Wrap with %w at the point of detection so
// MapRouteError can classify at the edge.
var (
	// ErrSubmissionFailed signals a failed precondition chain.
	ErrSubmissionFailed = errors.New("submission failed")
	// ErrMalformedParams signals a structurally valid request that is
	// not allowed, e.g. an authenticated form submitted on the open path.
	ErrMalformedParams = errors.New("malformed parameters")
	// ErrFormNotFound signals an unresolvable form id.
	ErrFormNotFound = errors.New("form not found")
	// ErrFormPrivate signals a form that is not open for responses.
	ErrFormPrivate = errors.New("form is private")
	// ErrFormDeleted signals an archived form.
	ErrFormDeleted = errors.New("form is archived")
	// ErrSubmissionNotFound signals an unresolvable submission id.
	ErrSubmissionNotFound = errors.New("submission not found")
	// ErrInvalidSubmissionType signals a read against a form that is
	// not in multirespondent mode.
	ErrInvalidSubmissionType = errors.New("invalid submission type")
	// ErrCaptchaFailed signals a rejected captcha response.
	ErrCaptchaFailed = errors.New("captcha verification failed")
	// ErrStorageFailure wraps document-store and object-store errors.
	ErrStorageFailure = errors.New("storage failure")
)

// Storage wraps a collaborator error into the StorageFailure kind.
func Storage(err error) error {
	return fmt.Errorf("%w: %v", ErrStorageFailure, err)
}

const genericServerMessage = "Sorry, something went wrong. Please refresh and try again."

// MapRouteError translates a domain error into the status code and
// user-facing message for the client response. Unrecognized errors are
// treated as server faults.
func MapRouteError(err error) (int, string) {
	switch {
	case errors.Is(err, ErrSubmissionFailed):
		return http.StatusBadRequest, "Could not send submission. For assistance, please contact the person who asked you to fill in this form."
	case errors.Is(err, ErrCaptchaFailed):
		return http.StatusBadRequest, "Captcha was incorrect. Please submit again."
	case errors.Is(err, ErrMalformedParams):
		return http.StatusBadRequest, "Invalid request parameters. Please refresh and try again."
	case errors.Is(err, ErrInvalidSubmissionType):
		return http.StatusBadRequest, "Invalid submission type."
	case errors.Is(err, ErrFormNotFound):
		return http.StatusNotFound, "Could not find the form requested. Please refresh and try again."
	case errors.Is(err, ErrFormPrivate):
		return http.StatusNotFound, "This form is not available."
	case errors.Is(err, ErrSubmissionNotFound):
		return http.StatusNotFound, "Could not find the submission requested. Please refresh and try again."
	case errors.Is(err, ErrFormDeleted):
		return http.StatusGone, "This form is no longer active."
	case errors.Is(err, ErrStorageFailure):
		return http.StatusInternalServerError, genericServerMessage
	default:
		return http.StatusInternalServerError, genericServerMessage
	}
}
