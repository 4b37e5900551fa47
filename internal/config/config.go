package config

import "os"

type Config struct {
	HTTPAddr              string
	ProjectID             string
	FormsCollection       string
	SubmissionsCollection string
	AttachmentBucket      string
	JWTSecret             string
	SessionTTLMinutes     int
	AppURL                string
	SMTPHost              string
	SMTPPort              int
	SMTPUsername          string
	SMTPPassword          string
	MailFrom              string
	CaptchaSecret         string
	CaptchaVerifyURL      string
	GelfAddr              string
	LogLevel              string
}

func Load() *Config {
	return &Config{
		HTTPAddr:              getEnv("FORMFLOW_ADDR", ":8080"),
		ProjectID:             getEnv("FORMFLOW_GCP_PROJECT", ""),
		FormsCollection:       getEnv("FORMFLOW_FORMS_COLLECTION", "forms"),
		SubmissionsCollection: getEnv("FORMFLOW_SUBMISSIONS_COLLECTION", "multirespondent_submissions"),
		AttachmentBucket:      getEnv("FORMFLOW_ATTACHMENT_BUCKET", "formflow-attachments"),
		JWTSecret:             getEnv("FORMFLOW_JWT_SECRET", "formflow-dev-secret-change-me"),
		SessionTTLMinutes:     getEnvInt("FORMFLOW_SESSION_TTL_MINUTES", 60),
		AppURL:                getEnv("FORMFLOW_APP_URL", "http://localhost:8080"),
		SMTPHost:              getEnv("FORMFLOW_SMTP_HOST", "127.0.0.1"),
		SMTPPort:              getEnvInt("FORMFLOW_SMTP_PORT", 25),
		SMTPUsername:          getEnv("FORMFLOW_SMTP_USERNAME", ""),
		SMTPPassword:          getEnv("FORMFLOW_SMTP_PASSWORD", ""),
		MailFrom:              getEnv("FORMFLOW_MAIL_FROM", "no-reply@formflow.local"),
		CaptchaSecret:         getEnv("FORMFLOW_CAPTCHA_SECRET", ""),
		CaptchaVerifyURL:      getEnv("FORMFLOW_CAPTCHA_VERIFY_URL", "https://www.google.com/recaptcha/api/siteverify"),
		GelfAddr:              getEnv("FORMFLOW_GELF_ADDR", ""),
		LogLevel:              getEnv("FORMFLOW_LOG_LEVEL", "info"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n := 0
	for _, c := range v {
		if c < '0' || c > '9' {
			return fallback
		}
		n = n*10 + int(c-'0')
	}
	return n
}
