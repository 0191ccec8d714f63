// Package alert sends best-effort supervisor mail for conditions that need a
// human: a close with critical variance, or an outbox entry that keeps
// failing past the alert threshold. Alerts never block or fail the money
// path — a mail error is logged and swallowed.
package alert

import (
	"fmt"
	"net/smtp"

	"github.com/jordan-wright/email"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/rishad7060/tillagent/internal/config"
	"github.com/rishad7060/tillagent/internal/model"
)

// Mailer wraps SMTP configuration for supervisor alerts. A nil Mailer (no
// SMTP_HOST configured) is valid and turns every send into a no-op.
type Mailer struct {
	host     string
	user     string
	password string
	addr     string
	to       string
	deviceID string
}

// NewMailer returns nil when SMTP or the alert recipient is not configured.
func NewMailer(cfg *config.Config) *Mailer {
	if cfg.SMTPHost == "" || cfg.AlertEmail == "" {
		return nil
	}
	return &Mailer{
		host:     cfg.SMTPHost,
		user:     cfg.SMTPUser,
		password: cfg.SMTPPassword,
		addr:     fmt.Sprintf("%s:%d", cfg.SMTPHost, cfg.SMTPPort),
		to:       cfg.AlertEmail,
		deviceID: cfg.DeviceID,
	}
}

// VarianceAlert reports a close whose variance exceeded the notes threshold.
func (m *Mailer) VarianceAlert(session *model.RegistrySession, variance decimal.Decimal, notes string) {
	if m == nil {
		return
	}
	direction := "over"
	if variance.IsNegative() {
		direction = "short"
	}
	counted := "unknown"
	if session.ActualCash != nil {
		counted = session.ActualCash.String()
	}
	subject := fmt.Sprintf("[till %s] registry %s closed cash %s by %s",
		m.deviceID, session.SessionNumber, direction, variance.Abs().String())
	body := fmt.Sprintf(
		"Registry session %s closed with variance %s (expected %s, counted %s).\n\nClosing notes:\n%s\n",
		session.SessionNumber, variance.String(), session.ExpectedCash().String(),
		counted, notes)
	m.send(subject, body)
}

// SyncStuckAlert reports an outbox entry that exceeded the alert attempt
// threshold. The entry stays pending — only a human may remove it.
func (m *Mailer) SyncStuckAlert(op *model.PendingOperation) {
	if m == nil {
		return
	}
	lastErr := ""
	if op.LastError != nil {
		lastErr = *op.LastError
	}
	subject := fmt.Sprintf("[till %s] %s stuck after %d sync attempts", m.deviceID, op.Type, op.Attempts)
	body := fmt.Sprintf(
		"Pending operation %s (%s, created %s) has failed %d sync attempts.\nLast error: %s\n\nIt will keep retrying and will NOT be discarded automatically.\n",
		op.ID, op.Type, op.CreatedAt.Format("2006-01-02 15:04:05"), op.Attempts, lastErr)
	m.send(subject, body)
}

func (m *Mailer) send(subject, body string) {
	if m == nil {
		return
	}
	e := email.NewEmail()
	e.From = m.user
	e.To = []string{m.to}
	e.Subject = subject
	e.Text = []byte(body)

	auth := smtp.PlainAuth("", m.user, m.password, m.host)
	if err := e.Send(m.addr, auth); err != nil {
		log.Error().Err(err).Str("subject", subject).Msg("alert: mail send failed")
	}
}
