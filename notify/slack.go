// Package notify posts run summaries to a Slack incoming webhook.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"property-scraper/utils"
)

// Slack sends plain-text messages to an incoming webhook.
type Slack struct {
	webhookURL string
	hc         *http.Client
	logger     *utils.Logger
}

// NewSlack creates a Slack notifier. An empty webhookURL makes Send fail.
func NewSlack(webhookURL string, logger *utils.Logger) *Slack {
	return &Slack{
		webhookURL: webhookURL,
		hc:         &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

// Send posts text to the webhook and returns any delivery error.
func (s *Slack) Send(ctx context.Context, text string) error {
	if s.webhookURL == "" {
		return fmt.Errorf("slack: SLACK_WEBHOOK_URL is not set")
	}

	payload, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return fmt.Errorf("slack: encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("slack: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.hc.Do(req)
	if err != nil {
		return fmt.Errorf("slack: post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack: status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	return nil
}

// Notify sends text and only logs failures.
func (s *Slack) Notify(ctx context.Context, text string) {
	if err := s.Send(ctx, text); err != nil {
		s.logger.Error("[notify] %v", err)
		return
	}
	s.logger.Info("[notify] summary sent to Slack")
}
