package bootstrap

import (
	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	appconfig "github.com/wolfman30/career-journal-signup/internal/config"
	"github.com/wolfman30/career-journal-signup/internal/notify"
	"github.com/wolfman30/career-journal-signup/pkg/logging"
)

// BuildEmailSender selects the reminder email transport from EMAIL_PROVIDER.
// Misconfigured providers fall back to the stub sender.
func BuildEmailSender(cfg *appconfig.Config, sesClient *sesv2.Client, logger *logging.Logger) notify.EmailSender {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg == nil {
		return notify.NewStubEmailSender(logger)
	}

	switch cfg.EmailProvider {
	case "sendgrid":
		if sender := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.EmailFromAddr,
			FromName:  cfg.EmailFromName,
		}, logger); sender != nil {
			logger.Info("reminder emails via sendgrid")
			return sender
		}
		logger.Warn("sendgrid selected without API key; using stub email sender")
	case "ses":
		if sender := notify.NewSESSender(sesClient, notify.SESConfig{
			FromEmail: cfg.EmailFromAddr,
			FromName:  cfg.EmailFromName,
		}, logger); sender != nil {
			logger.Info("reminder emails via SES")
			return sender
		}
		logger.Warn("ses selected without client; using stub email sender")
	}
	return notify.NewStubEmailSender(logger)
}
