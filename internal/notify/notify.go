// Package notify delivers new-tender alerts to a Discord-compatible webhook.
// Delivery is at-most-once: failures are reported to the caller for logging
// and never retried.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"tenderwatch/scanner/internal/models"
)

const (
	requestTimeout = 10 * time.Second

	// Green accent on the embed.
	embedColor = 3066993
)

// embed mirrors one Discord webhook embed object.
type embed struct {
	Title       string       `json:"title"`
	Description string       `json:"description"`
	URL         string       `json:"url"`
	Color       int          `json:"color"`
	Fields      []embedField `json:"fields"`
	Footer      embedFooter  `json:"footer"`
}

type embedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type embedFooter struct {
	Text string `json:"text"`
}

type webhookPayload struct {
	Embeds []embed `json:"embeds"`
}

// Notifier posts tender alerts to a configured webhook endpoint.
type Notifier struct {
	webhookURL string
	client     *http.Client
	now        func() time.Time
}

// New creates a Notifier for the given webhook URL. An empty URL yields a
// Notifier whose Notify is a logged no-op at the call site.
func New(webhookURL string) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: requestTimeout},
		now:        time.Now,
	}
}

// Configured reports whether a webhook URL is set.
func (n *Notifier) Configured() bool {
	return n.webhookURL != ""
}

// Notify posts one alert for a newly discovered tender. The returned error is
// informational: callers log it and continue, delivery failure must never
// abort the pipeline.
func (n *Notifier) Notify(ctx context.Context, t *models.Tender) error {
	if n.webhookURL == "" {
		return fmt.Errorf("webhook URL is not configured")
	}

	payload := webhookPayload{
		Embeds: []embed{{
			Title:       fmt.Sprintf("New Tender: %s", t.MatchedKeyword),
			Description: fmt.Sprintf("**Item:** %s", t.Items),
			URL:         t.Link,
			Color:       embedColor,
			Fields: []embedField{
				{Name: "Bid Number", Value: t.BidID, Inline: true},
				{Name: "Start Date", Value: t.StartDate, Inline: true},
				{Name: "End Date", Value: t.EndDate, Inline: true},
				{Name: "Department", Value: t.Department, Inline: false},
			},
			Footer: embedFooter{Text: fmt.Sprintf("Found at %s", n.now().Format("15:04"))},
		}},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook delivery failed: %w", err)
	}
	defer resp.Body.Close()

	// Drain so the connection can be reused.
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
