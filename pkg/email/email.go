package email

import (
	"fmt"
	"net/smtp"
)

// Mailer sends plain text mail over SMTP. A zero-value Mailer is disabled and
// drops all sends, so callers can treat mail as strictly best-effort.
type Mailer struct {
	Host     string
	Port     string
	Sender   string
	Password string
}

func NewMailer(host, port, sender, password string) *Mailer {
	return &Mailer{Host: host, Port: port, Sender: sender, Password: password}
}

// Enabled reports whether SMTP settings are configured.
func (m *Mailer) Enabled() bool {
	return m != nil && m.Host != "" && m.Sender != ""
}

// Send delivers a plain text email.
func (m *Mailer) Send(to, subject, body string) error {
	if !m.Enabled() {
		return nil
	}

	auth := smtp.PlainAuth("", m.Sender, m.Password, m.Host)

	msg := []byte("To: " + to + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"\r\n" + body + "\r\n")

	address := m.Host + ":" + m.Port

	if err := smtp.SendMail(address, auth, m.Sender, []string{to}, msg); err != nil {
		return fmt.Errorf("failed to send email: %v", err)
	}
	return nil
}
