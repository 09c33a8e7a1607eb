package tool

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
)

// EmailSenderTool sends an email over SMTP with optional STARTTLS.
type EmailSenderTool struct{}

func init() {
	Register(&EmailSenderTool{})
}

func (*EmailSenderTool) Name() string { return "email_sender" }

func (t *EmailSenderTool) Execute(_ context.Context, input string, config map[string]any) (string, error) {
	source := cfgString(config, "source", "smtp")
	to := cfgString(config, "to", "")
	subject := cfgString(config, "subject", "Gennaro Workflow Result")

	if to == "" {
		return "[Error] No recipient (to) address provided.", nil
	}
	body := strings.TrimSpace(input)
	if body == "" {
		return "[Error] No email body provided (empty input).", nil
	}
	if source != "smtp" {
		return fmt.Sprintf("[Error] Unsupported email source: %s (only smtp is available)", source), nil
	}

	host := cfgString(config, "smtp_host", "")
	port := cfgInt(config, "smtp_port", 587)
	username := cfgString(config, "smtp_username", "")
	password := cfgString(config, "smtp_password", "")

	if host == "" {
		return "[Error] SMTP host not configured. Set smtp_host in node config.", nil
	}
	if username == "" || password == "" {
		return "[Error] SMTP credentials not configured. Set smtp_username/smtp_password in node config.", nil
	}

	msg := buildMIMEMessage(username, to, subject, body)
	addr := fmt.Sprintf("%s:%d", host, port)
	auth := smtp.PlainAuth("", username, password, host)

	recipients := make([]string, 0, 1)
	for _, r := range strings.Split(to, ",") {
		if r = strings.TrimSpace(r); r != "" {
			recipients = append(recipients, r)
		}
	}

	// smtp.SendMail negotiates STARTTLS when the server advertises it.
	if err := smtp.SendMail(addr, auth, username, recipients, msg); err != nil {
		return fmt.Sprintf("[Email error] %v", err), nil
	}
	return fmt.Sprintf("Email sent via SMTP (%s) to %s", host, to), nil
}

func buildMIMEMessage(from, to, subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}
