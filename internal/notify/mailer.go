// Package notify delivers fraud alert emails to property owners.
package notify

import (
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/opensource-travel/cormorant/internal/domain"
)

// Sender delivers a rendered email. Kept behind an interface so tests can
// capture messages without a live SMTP server.
type Sender interface {
	Send(to string, subject string, htmlBody string) error
}

// SMTPSender sends mail over SMTP with STARTTLS.
type SMTPSender struct {
	cfg domain.NotifierConfig
}

// NewSMTPSender creates a sender from notifier configuration.
func NewSMTPSender(cfg domain.NotifierConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg}
}

// Send delivers one HTML email.
func (s *SMTPSender) Send(to, subject, htmlBody string) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.SMTPHost, s.cfg.SMTPPort)

	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.SMTPHost)
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", s.cfg.From)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(htmlBody)

	if err := smtp.SendMail(addr, auth, s.cfg.From, []string{to}, []byte(msg.String())); err != nil {
		return fmt.Errorf("smtp send to %s: %w", to, err)
	}
	return nil
}

// Subject formats the alert subject line for a fraud probability in [0,1].
func Subject(probability float64) string {
	return fmt.Sprintf("ALERT: Potential Fraudulent Booking (Risk: %.1f%%)", probability*100)
}

// RenderAlert builds the HTML alert body for an event. The recommended
// actions are tiered by score: above 75%% the owner is told to consider
// rejecting outright, above 50%% to harden verification, otherwise to proceed
// with routine checks.
func RenderAlert(event *domain.AlertEvent, now time.Time) string {
	score := event.FraudProbability * 100

	var b strings.Builder
	b.WriteString(`<html>
<head>
<style>
body { font-family: Arial, sans-serif; }
.container { padding: 20px; }
.header { background-color: #ff9999; padding: 10px; color: #900; }
.booking-details { margin: 15px 0; padding: 10px; background-color: #f8f8f8; }
.risk-factors { margin: 15px 0; }
.risk-factor { color: #900; }
.footer { margin-top: 20px; font-size: 12px; color: #666; }
</style>
</head>
<body>
<div class="container">
<div class="header">
<h2>Potential Fraudulent Booking Detected</h2>
`)
	fmt.Fprintf(&b, "<p>Our system has flagged a recent booking as potentially fraudulent with a risk score of <strong>%.1f%%</strong></p>\n", score)
	b.WriteString("</div>\n<div class=\"booking-details\">\n<h3>Booking Details:</h3>\n")
	fmt.Fprintf(&b, "<p><strong>Booking ID:</strong> %s</p>\n", orNA(event.BookingID))
	fmt.Fprintf(&b, "<p><strong>Booking Date:</strong> %s</p>\n", now.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "<p><strong>Start Date:</strong> %s</p>\n", orNA(event.StartDate))
	fmt.Fprintf(&b, "<p><strong>End Date:</strong> %s</p>\n", orNA(event.EndDate))
	fmt.Fprintf(&b, "<p><strong>Adults:</strong> %d</p>\n", event.Adults)
	fmt.Fprintf(&b, "<p><strong>Children:</strong> %d</p>\n", event.Children)
	fmt.Fprintf(&b, "<p><strong>Total Amount:</strong> $%.2f</p>\n", event.TotalAmount)
	b.WriteString("</div>\n<div class=\"risk-factors\">\n<h3>Risk Factors:</h3>\n<ul>\n")
	for _, factor := range event.Indicators {
		fmt.Fprintf(&b, "<li class=\"risk-factor\">%s</li>\n", factor)
	}
	b.WriteString("</ul>\n</div>\n<div>\n<h3>Recommended Actions:</h3>\n<ul>\n")

	switch {
	case score > 75:
		b.WriteString(`<li>Consider rejecting this booking</li>
<li>Request full payment in advance</li>
<li>Verify customer identity with additional documentation</li>
<li>Contact customer via phone to verify details</li>
`)
	case score > 50:
		b.WriteString(`<li>Request additional customer verification</li>
<li>Increase the required security deposit</li>
<li>Request payment via more secure methods</li>
`)
	default:
		b.WriteString(`<li>Proceed with normal verification procedures</li>
<li>Keep an eye on any unusual communication patterns</li>
`)
	}

	b.WriteString(`</ul>
</div>
<div class="footer">
<p>This is an automated notification from your Booking Fraud Protection System.</p>
<p>Please do not reply to this email. For questions or assistance, contact support.</p>
</div>
</div>
</body>
</html>
`)
	return b.String()
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
