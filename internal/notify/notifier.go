package notify

import (
	"fmt"
	"net/smtp"
	"time"

	"church-connect/internal/config"
	"church-connect/internal/models"
)

// Notifier is the worker-side delivery channel. The console notifier is
// the default; SMTP is used when email is configured.
type Notifier interface {
	NotifyRSVP(notice models.RSVPNotice) error
	NotifyCancellation(notice models.CancellationNotice) error
}

func humanTime(t time.Time) string {
	return t.Local().Format("Mon, 2 Jan 2006 at 15:04")
}

// ConsoleNotifier prints notices to the log. Useful in development and
// as the fallback when SMTP is not configured.
type ConsoleNotifier struct {
	Out func(format string, args ...interface{})
}

func NewConsoleNotifier(out func(format string, args ...interface{})) *ConsoleNotifier {
	return &ConsoleNotifier{Out: out}
}

func (c *ConsoleNotifier) NotifyRSVP(notice models.RSVPNotice) error {
	c.Out("[notice] %s <%s>: your RSVP for %q (%s, %s) is %s",
		notice.FullName, notice.Email, notice.EventTitle, humanTime(notice.StartsAt), notice.Location, notice.Status)
	return nil
}

func (c *ConsoleNotifier) NotifyCancellation(notice models.CancellationNotice) error {
	msg := fmt.Sprintf("[notice] %s <%s>: %q (%s, %s) has been cancelled",
		notice.FullName, notice.Email, notice.EventTitle, humanTime(notice.StartsAt), notice.Location)
	if notice.Reason != "" {
		msg += " - " + notice.Reason
	}
	c.Out("%s", msg)
	return nil
}

// SMTPNotifier sends the notices as plain-text email.
type SMTPNotifier struct {
	Config config.EmailConfig
}

func NewSMTPNotifier(cfg config.EmailConfig) *SMTPNotifier {
	return &SMTPNotifier{Config: cfg}
}

func (s *SMTPNotifier) send(to, subject, body string) error {
	addr := s.Config.SMTPHost + ":" + s.Config.SMTPPort
	auth := smtp.PlainAuth("", s.Config.SMTPUsername, s.Config.SMTPPassword, s.Config.SMTPHost)

	msg := []byte("From: " + s.Config.From + "\r\n" +
		"To: " + to + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"\r\n" +
		body + "\r\n")

	return smtp.SendMail(addr, auth, s.Config.From, []string{to}, msg)
}

func (s *SMTPNotifier) NotifyRSVP(notice models.RSVPNotice) error {
	var subject, body string
	switch notice.Status {
	case models.StatusConfirmed:
		subject = fmt.Sprintf("You're confirmed for %s", notice.EventTitle)
		body = fmt.Sprintf("Hi %s,\n\nYour spot for %q on %s at %s is confirmed. See you there!",
			notice.FullName, notice.EventTitle, humanTime(notice.StartsAt), notice.Location)
	default:
		subject = fmt.Sprintf("You're on the waitlist for %s", notice.EventTitle)
		body = fmt.Sprintf("Hi %s,\n\n%q on %s at %s is currently full. You're on the waitlist and will be admitted if a spot opens up.",
			notice.FullName, notice.EventTitle, humanTime(notice.StartsAt), notice.Location)
	}
	return s.send(notice.Email, subject, body)
}

func (s *SMTPNotifier) NotifyCancellation(notice models.CancellationNotice) error {
	subject := fmt.Sprintf("Cancelled: %s", notice.EventTitle)
	body := fmt.Sprintf("Hi %s,\n\n%q on %s at %s has been cancelled.",
		notice.FullName, notice.EventTitle, humanTime(notice.StartsAt), notice.Location)
	if notice.Reason != "" {
		body += "\n\nReason: " + notice.Reason
	}
	return s.send(notice.Email, subject, body)
}
