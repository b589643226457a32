package config

import (
	"github.com/trackora/workforce-idm/pkg/notification"
)

// EmailConfig holds SMTP configuration for device alert delivery
type EmailConfig struct {
	Host     string `env:"EMAIL_HOST" env-default:"localhost"`
	Port     uint16 `env:"EMAIL_PORT" env-default:"1025"`
	Username string `env:"EMAIL_USERNAME" env-default:""`
	Password string `env:"EMAIL_PASSWORD" env-default:""`
	From     string `env:"EMAIL_FROM" env-default:"noreply@example.com"`
	TLS      bool   `env:"EMAIL_TLS" env-default:"false"`
	AlertTo  string `env:"EMAIL_ALERT_TO" env-default:""`
}

// IsConfigured returns true if alert delivery has a recipient
func (e EmailConfig) IsConfigured() bool {
	return e.AlertTo != ""
}

// ToSMTPConfig converts the config to a notification.SMTPConfig
func (e EmailConfig) ToSMTPConfig() notification.SMTPConfig {
	return notification.SMTPConfig{
		Host:     e.Host,
		Port:     int(e.Port),
		Username: e.Username,
		Password: e.Password,
		From:     e.From,
		TLS:      e.TLS,
		To:       e.AlertTo,
	}
}

// NewEmailConfigFromEnv creates an EmailConfig from environment variables
func NewEmailConfigFromEnv() EmailConfig {
	return EmailConfig{
		Host:     GetEnvOrDefault("EMAIL_HOST", "localhost"),
		Port:     GetEnvUint16("EMAIL_PORT", 1025),
		Username: GetEnv("EMAIL_USERNAME"),
		Password: GetEnv("EMAIL_PASSWORD"),
		From:     GetEnvOrDefault("EMAIL_FROM", "noreply@example.com"),
		TLS:      GetEnvBool("EMAIL_TLS", false),
		AlertTo:  GetEnv("EMAIL_ALERT_TO"),
	}
}
