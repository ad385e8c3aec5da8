package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/paydesk/reconciler/internal/observability"
)

const postmarkBaseURL = "https://api.postmarkapp.com"

// PostmarkProvider implements the Provider interface for Postmark.
type PostmarkProvider struct {
	apiKey     string
	from       string
	baseURL    string
	httpClient *http.Client
}

type postmarkResponse struct {
	ErrorCode int    `json:"ErrorCode"`
	Message   string `json:"Message"`
	MessageID string `json:"MessageID"`
}

type postmarkEmail struct {
	From          string `json:"From"`
	To            string `json:"To"`
	Subject       string `json:"Subject"`
	TextBody      string `json:"TextBody,omitempty"`
	HtmlBody      string `json:"HtmlBody,omitempty"`
	Tag           string `json:"Tag,omitempty"`
	MessageStream string `json:"MessageStream"`
}

func NewPostmarkProvider(apiKey, from string) *PostmarkProvider {
	return &PostmarkProvider{
		apiKey:     apiKey,
		from:       from,
		baseURL:    postmarkBaseURL,
		httpClient: observability.NewHTTPClient(30*time.Second, postmarkBaseURL),
	}
}

func (p *PostmarkProvider) SendEmail(ctx context.Context, email *Email) error {
	if email == nil {
		return fmt.Errorf("email is required")
	}

	payload := postmarkEmail{
		From:          p.from,
		To:            email.To,
		Subject:       email.Subject,
		TextBody:      email.Text,
		HtmlBody:      email.HTML,
		Tag:           email.Tag,
		MessageStream: "outbound",
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/email", bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Postmark-Server-Token", p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return fmt.Errorf("failed to read postmark response: %w", err)
	}

	var result postmarkResponse
	parseErr := json.Unmarshal(body, &result)
	if resp.StatusCode != http.StatusOK {
		if parseErr == nil && result.ErrorCode != 0 {
			return fmt.Errorf("postmark error (%d): %s", result.ErrorCode, result.Message)
		}
		return fmt.Errorf("postmark API returned status %d: %s", resp.StatusCode, string(body))
	}
	if parseErr != nil {
		return fmt.Errorf("failed to parse response: %w", parseErr)
	}
	if result.ErrorCode != 0 {
		return fmt.Errorf("postmark error (%d): %s", result.ErrorCode, result.Message)
	}

	return nil
}
