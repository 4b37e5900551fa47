package router

import (
	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/formflowhq/formflow/internal/auth"
	"github.com/formflowhq/formflow/internal/handler"
	mw "github.com/formflowhq/formflow/internal/middleware"
)

func New(log *slog.Logger, jwtSecret string, subH *handler.SubmissionHandler) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.Recovery(log))
	r.Use(mw.Logger(log))
	r.Use(mw.CORS)

	r.Route("/api/v1", func(r chi.Router) {
		// Open submission routes, gated by the ensure pipeline rather
		// than identity.
		r.Post("/forms/{formId}/submissions/multirespondent", subH.Submit)
		r.Put("/forms/{formId}/submissions/multirespondent/{submissionId}", subH.Update)
		r.Post("/forms/{formId}/submissions/multirespondent/{submissionId}/session", subH.CreateSession)

		// Respondent read path, behind a session token.
		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(jwtSecret))
			r.Get("/forms/{formId}/submissions/multirespondent/{submissionId}", subH.GetForRespondent)
		})
	})

	return r
}
