package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/finjan-labs/ms-go-fortunes/app/entity"
)

const resendAPIBaseURL = "https://api.resend.com"

type ResendConfig struct {
	APIKey      string
	FromAddress string
	HTTPTimeout time.Duration

	// APIBaseURL overrides the Resend endpoint, used by tests.
	APIBaseURL string
}

type ResendNotifier struct {
	cfg    ResendConfig
	client *http.Client
}

func NewResendNotifier(cfg ResendConfig) *ResendNotifier {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if strings.TrimSpace(cfg.APIBaseURL) == "" {
		cfg.APIBaseURL = resendAPIBaseURL
	}

	return &ResendNotifier{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

type sendEmailRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

func (n *ResendNotifier) SendReading(ctx context.Context, email string, fortune *entity.Fortune) (string, error) {
	if strings.TrimSpace(n.cfg.APIKey) == "" {
		return "", errors.New("resend api key is not configured")
	}
	if strings.TrimSpace(email) == "" {
		return "", errors.New("recipient email is required")
	}

	payload := &sendEmailRequest{
		From:    n.cfg.FromAddress,
		To:      email,
		Subject: "Your Coffee Cup Fortune Reading",
		HTML:    buildReadingHTML(fortune),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.APIBaseURL+"/emails", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+n.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("resend request failed: status=%d body=%s", resp.StatusCode, string(respBody))
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", err
	}

	return result.ID, nil
}

func buildReadingHTML(fortune *entity.Fortune) string {
	var b strings.Builder
	b.WriteString(`<html><body style="font-family:Arial,sans-serif;max-width:600px;margin:0 auto;padding:20px;color:#333;">`)
	b.WriteString(`<h2 style="text-align:center;">Your Coffee Cup Fortune</h2>`)
	fmt.Fprintf(&b, `<p>Dear %s,</p>`, html.EscapeString(fortune.SubjectName))
	b.WriteString(`<p>Here is the reading from your coffee cup:</p>`)
	fmt.Fprintf(&b, `<blockquote style="background:#f9f9f9;border-left:4px solid #6366f1;padding:15px;font-style:italic;">%s</blockquote>`,
		html.EscapeString(fortune.Prediction))
	fmt.Fprintf(&b, `<p style="color:#888;font-size:12px;">Requested on %s</p>`, fortune.CreatedAt.Format("January 2, 2006"))
	b.WriteString(`</body></html>`)
	return b.String()
}
