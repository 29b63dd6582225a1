package notify

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"

	"momentum-quiz-service/internal/domain"
)

//go:embed templates/*.html templates/*.txt
var templateFS embed.FS

var subjects = map[string]string{
	"parent_confirmation":  "Momentum application received - next steps",
	"partner_confirmation": "MOMENTUM. - Application received",
}

// Message is a rendered email.
type Message struct {
	To      string
	ToName  string
	Subject string
	HTML    string
}

// Renderer turns notifications into email bodies and staff alert text.
type Renderer struct {
	html *htmltemplate.Template
	text *texttemplate.Template
}

func NewRenderer() (*Renderer, error) {
	html, err := htmltemplate.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse email templates: %w", err)
	}
	text, err := texttemplate.ParseFS(templateFS, "templates/*.txt")
	if err != nil {
		return nil, fmt.Errorf("parse alert templates: %w", err)
	}
	return &Renderer{html: html, text: text}, nil
}

// templateData is what the templates see.
type templateData struct {
	domain.Notification
	Name      string
	FirstName string
	Email     string
	Phone     string
}

// Field returns a submitted answer as text.
func (d templateData) Field(name string) string {
	return d.Fields[name]
}

func newTemplateData(n domain.Notification) templateData {
	name := strings.TrimSpace(n.Recipient.Name)
	first := ""
	if parts := strings.Fields(name); len(parts) > 0 {
		first = parts[0]
	}
	return templateData{
		Notification: n,
		Name:         name,
		FirstName:    first,
		Email:        n.Recipient.Email,
		Phone:        n.Recipient.Phone,
	}
}

// Email renders the applicant confirmation for n.
func (r *Renderer) Email(n domain.Notification) (Message, error) {
	t := r.html.Lookup(n.Template + ".html")
	if t == nil {
		return Message{}, fmt.Errorf("unknown email template %q", n.Template)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, newTemplateData(n)); err != nil {
		return Message{}, fmt.Errorf("render %s: %w", n.Template, err)
	}
	subject, ok := subjects[n.Template]
	if !ok {
		subject = n.QuizTitle + " - application received"
	}
	return Message{
		To:      n.Recipient.Email,
		ToName:  n.Recipient.Name,
		Subject: subject,
		HTML:    buf.String(),
	}, nil
}

// Alert renders the plain-text staff alert for n.
func (r *Renderer) Alert(n domain.Notification) (string, error) {
	var buf bytes.Buffer
	if err := r.text.ExecuteTemplate(&buf, "staff_alert.txt", newTemplateData(n)); err != nil {
		return "", fmt.Errorf("render staff alert: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}
