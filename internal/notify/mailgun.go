package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// MailgunSender posts messages to the Mailgun HTTP API.
type MailgunSender struct {
	domain  string
	apiKey  string
	from    string
	baseURL string
	client  *http.Client
}

func NewMailgunSender(domain, apiKey, from, baseURL string) *MailgunSender {
	if baseURL == "" {
		baseURL = "https://api.mailgun.net"
	}
	if from == "" {
		from = "Momentum <hq@" + domain + ">"
	}
	return &MailgunSender{
		domain:  domain,
		apiKey:  apiKey,
		from:    from,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (s *MailgunSender) SendEmail(ctx context.Context, msg Message) error {
	form := url.Values{}
	form.Set("from", s.from)
	form.Set("to", msg.To)
	form.Set("subject", msg.Subject)
	form.Set("html", msg.HTML)

	endpoint := fmt.Sprintf("%s/v3/%s/messages", s.baseURL, url.PathEscape(s.domain))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.SetBasicAuth("api", s.apiKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("mailgun request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("mailgun status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
