// Package email provides email sending capabilities via SMTP.
package email

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"
)

// Config holds SMTP configuration
type Config struct {
	Host      string
	Port      string
	Username  string
	Password  string
	From      string
	FromName  string
	EnableTLS bool
}

// Service provides email sending
type Service struct {
	config Config
	server string
	auth   smtp.Auth
}

// NewService creates a new email service
func NewService(config Config) *Service {
	auth := smtp.PlainAuth("", config.Username, config.Password, config.Host)

	return &Service{
		config: config,
		server: config.Host + ":" + config.Port,
		auth:   auth,
	}
}

// IsConfigured returns true if email is configured
func (s *Service) IsConfigured() bool {
	return s.config.Host != "" && s.config.Port != "" && s.config.From != ""
}

// SendEmail sends a plain text email
func (s *Service) SendEmail(to []string, subject, body string) error {
	if !s.IsConfigured() {
		return fmt.Errorf("email not configured")
	}

	from := s.config.From
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)
	}

	msg := []byte(fmt.Sprintf(
		"To: %s\r\n"+
			"From: %s\r\n"+
			"Subject: %s\r\n"+
			"Content-Type: text/plain; charset=UTF-8\r\n"+
			"\r\n"+
			"%s",
		strings.Join(to, ", "),
		from,
		subject,
		body,
	))

	return smtp.SendMail(s.server, s.auth, s.config.From, to, msg)
}

// SendHTMLEmail sends an HTML email
func (s *Service) SendHTMLEmail(to []string, subject, htmlBody string) error {
	if !s.IsConfigured() {
		return fmt.Errorf("email not configured")
	}

	from := s.config.From
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.config.FromName, s.config.From)
	}

	// Simple multipart message
	boundary := "boundary-agora"

	var msg bytes.Buffer
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	fmt.Fprintf(&msg, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=\"%s\"\r\n", boundary)
	fmt.Fprintf(&msg, "\r\n")

	// Plain text part (fallback)
	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/plain; charset=UTF-8\r\n")
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "Please view this email in an HTML-capable email client.\r\n")
	fmt.Fprintf(&msg, "\r\n")

	// HTML part
	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: text/html; charset=UTF-8\r\n")
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "%s\r\n", htmlBody)
	fmt.Fprintf(&msg, "\r\n")
	fmt.Fprintf(&msg, "--%s--\r\n", boundary)

	return smtp.SendMail(s.server, s.auth, s.config.From, to, msg.Bytes())
}

// AnsweredData holds data for the question-answered notification.
type AnsweredData struct {
	AppName       string
	UserName      string
	QuestionTitle string
	Answer        string
	QuestionURL   string
}

// MentionedData holds data for the question-mentioned notification.
type MentionedData struct {
	AppName        string
	UserName       string
	QuestionTitle  string
	MentioningFrom string
	QuestionURL    string
}

// SendAnsweredEmail notifies a follower that a question received an answer.
func (s *Service) SendAnsweredEmail(to, userName, questionTitle, answer, questionURL string) error {
	data := AnsweredData{
		AppName:       "Agora",
		UserName:      userName,
		QuestionTitle: questionTitle,
		Answer:        answer,
		QuestionURL:   questionURL,
	}

	subject := fmt.Sprintf("Your question %q has been answered", questionTitle)
	html, err := renderTemplate(answeredEmailTemplate, data)
	if err != nil {
		return fmt.Errorf("render answered template: %w", err)
	}

	return s.SendHTMLEmail([]string{to}, subject, html)
}

// SendMentionedEmail notifies authors that their question was mentioned.
func (s *Service) SendMentionedEmail(to, userName, questionTitle, mentioningFrom, questionURL string) error {
	data := MentionedData{
		AppName:        "Agora",
		UserName:       userName,
		QuestionTitle:  questionTitle,
		MentioningFrom: mentioningFrom,
		QuestionURL:    questionURL,
	}

	subject := fmt.Sprintf("Your question %q was mentioned", questionTitle)
	html, err := renderTemplate(mentionedEmailTemplate, data)
	if err != nil {
		return fmt.Errorf("render mentioned template: %w", err)
	}

	return s.SendHTMLEmail([]string{to}, subject, html)
}

func renderTemplate(tmpl string, data interface{}) (string, error) {
	t := template.Must(template.New("email").Parse(tmpl))
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const answeredEmailTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Your question has been answered</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { border-bottom: 2px solid #cc3344; padding-bottom: 10px; margin-bottom: 20px; }
        .button { display: inline-block; padding: 12px 24px; background: #cc3344; color: white; text-decoration: none; border-radius: 4px; margin: 20px 0; }
        .answer { background: #f6f6f6; padding: 12px; border-radius: 4px; margin: 20px 0; }
        .footer { margin-top: 30px; padding-top: 20px; border-top: 1px solid #eee; font-size: 12px; color: #666; }
        .link { word-break: break-all; color: #cc3344; }
    </style>
</head>
<body>
    <div class="header">
        <h1>{{.AppName}}</h1>
    </div>

    <h2>Hi {{.UserName}},</h2>

    <p>The question <strong>{{.QuestionTitle}}</strong> you follow has received an official answer:</p>

    <div class="answer">{{.Answer}}</div>

    <p>
        <a href="{{.QuestionURL}}" class="button">View the answer</a>
    </p>

    <p>Or copy and paste this link into your browser:</p>
    <p class="link">{{.QuestionURL}}</p>

    <div class="footer">
        <p>You receive this email because you authored, voted on or endorsed this question.</p>
    </div>
</body>
</html>`

const mentionedEmailTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Your question was mentioned</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { border-bottom: 2px solid #cc3344; padding-bottom: 10px; margin-bottom: 20px; }
        .button { display: inline-block; padding: 12px 24px; background: #cc3344; color: white; text-decoration: none; border-radius: 4px; margin: 20px 0; }
        .footer { margin-top: 30px; padding-top: 20px; border-top: 1px solid #eee; font-size: 12px; color: #666; }
        .link { word-break: break-all; color: #cc3344; }
    </style>
</head>
<body>
    <div class="header">
        <h1>{{.AppName}}</h1>
    </div>

    <h2>Hi {{.UserName}},</h2>

    <p>Your question <strong>{{.QuestionTitle}}</strong> was mentioned in {{.MentioningFrom}}.</p>

    <p>
        <a href="{{.QuestionURL}}" class="button">View your question</a>
    </p>

    <p>Or copy and paste this link into your browser:</p>
    <p class="link">{{.QuestionURL}}</p>

    <div class="footer">
        <p>You receive this email because you are an author of the mentioned question.</p>
    </div>
</body>
</html>`
