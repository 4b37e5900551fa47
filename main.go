package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/formflowhq/formflow/internal/captcha"
	"github.com/formflowhq/formflow/internal/config"
	"github.com/formflowhq/formflow/internal/gcp"
	"github.com/formflowhq/formflow/internal/gelf"
	"github.com/formflowhq/formflow/internal/handler"
	"github.com/formflowhq/formflow/internal/logging"
	"github.com/formflowhq/formflow/internal/mail"
	"github.com/formflowhq/formflow/internal/repository"
	"github.com/formflowhq/formflow/internal/router"
	"github.com/formflowhq/formflow/internal/service"
	"github.com/formflowhq/formflow/internal/storage"
)

func main() {
	cfg := config.Load()

	// GELF UDP log shipping
	logWriter := io.Writer(os.Stderr)
	var gelfErr error
	if cfg.GelfAddr != "" {
		gelfWriter, err := gelf.New(cfg.GelfAddr)
		if err != nil {
			gelfErr = err
		} else {
			logWriter = io.MultiWriter(os.Stderr, gelfWriter)
		}
	}
	log := logging.NewWithWriter(cfg.LogLevel, logWriter)
	switch {
	case gelfErr != nil:
		log.Warn("GELF init failed", "error", gelfErr)
	case cfg.GelfAddr != "":
		log.Info("GELF logging enabled", "addr", cfg.GelfAddr)
	}

	ctx := context.Background()

	// Collaborators
	fsClient, err := gcp.NewFirestoreClient(ctx, cfg.ProjectID)
	if err != nil {
		log.Error("failed to connect to Firestore", "error", err)
		os.Exit(1)
	}
	defer fsClient.Close()

	gcsClient, err := gcp.NewStorageClient(ctx)
	if err != nil {
		log.Error("failed to connect to Cloud Storage", "error", err)
		os.Exit(1)
	}
	defer gcsClient.Close()

	formRepo := repository.NewFormRepo(fsClient, cfg.FormsCollection)
	subRepo := repository.NewSubmissionRepo(fsClient, cfg.SubmissionsCollection)
	attachments := storage.NewAttachmentStore(gcsClient, cfg.AttachmentBucket)
	mailer := mail.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.MailFrom)

	var verifier service.CaptchaVerifier
	if cfg.CaptchaSecret != "" {
		verifier = captcha.NewVerifier(cfg.CaptchaVerifyURL, cfg.CaptchaSecret)
	}

	// Service
	svc := service.New(formRepo, subRepo, attachments, mailer, verifier, log, cfg.AppURL)

	// Handlers
	sessionTTL := time.Duration(cfg.SessionTTLMinutes) * time.Minute
	subH := handler.NewSubmissionHandler(svc, log, cfg.JWTSecret, sessionTTL)

	// Router
	r := router.New(log, cfg.JWTSecret, subH)

	log.Info("formflow server starting", "addr", cfg.HTTPAddr, "project", cfg.ProjectID)
	if err := http.ListenAndServe(cfg.HTTPAddr, r); err != nil {
		log.Error("server failed", "error", err)
		os.Exit(1)
	}
}
