// Package notify sends email digests of critical stock alerts.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/medstock-labs/medstock/internal/config"
	"github.com/medstock-labs/medstock/internal/inventory"
)

// Mailer sends alert digests over SMTP.
type Mailer struct {
	cfg      config.SMTPConfig
	pharmacy string
	logger   *zap.Logger
}

// NewMailer creates a mailer from the SMTP configuration.
func NewMailer(cfg config.SMTPConfig, pharmacy string, logger *zap.Logger) *Mailer {
	return &Mailer{cfg: cfg, pharmacy: pharmacy, logger: logger}
}

// Configured reports whether enough SMTP settings are present to send mail.
func (m *Mailer) Configured() bool {
	return m.cfg.Host != "" && m.cfg.From != "" && len(m.cfg.Recipients) > 0
}

// SendAlertDigest emails the given critical alerts to the configured
// recipients. A digest with no alerts is not sent.
func (m *Mailer) SendAlertDigest(ctx context.Context, alerts []*inventory.Alert) error {
	if len(alerts) == 0 {
		return nil
	}
	if !m.Configured() {
		return fmt.Errorf("smtp is not configured")
	}

	msg := mail.NewMsg()
	if err := msg.From(m.cfg.From); err != nil {
		return fmt.Errorf("invalid from address: %w", err)
	}
	if err := msg.To(m.cfg.Recipients...); err != nil {
		return fmt.Errorf("invalid recipient address: %w", err)
	}
	msg.Subject("Critical Pharmacy Inventory Alerts")
	msg.SetBodyString(mail.TypeTextPlain, m.digestBody(alerts))

	opts := []mail.Option{mail.WithPort(m.cfg.Port)}
	if m.cfg.User != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.cfg.User),
			mail.WithPassword(m.cfg.Password))
	}
	client, err := mail.NewClient(m.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("failed to create smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("failed to send alert email: %w", err)
	}
	m.logger.Info("alert email sent",
		zap.Int("alerts", len(alerts)),
		zap.Int("recipients", len(m.cfg.Recipients)))
	return nil
}

func (m *Mailer) digestBody(alerts []*inventory.Alert) string {
	var b strings.Builder
	b.WriteString("Critical Pharmacy Inventory Alerts:\n\n")
	for _, a := range alerts {
		fmt.Fprintf(&b, "- %s: %s\n", a.Type.Display(), a.Message)
	}
	b.WriteString("\nPlease log in to the pharmacy system to review and address these alerts.\n")
	fmt.Fprintf(&b, "System: %s\n", m.pharmacy)
	return b.String()
}
