package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"ai-digest-bot/pkg/apperror"
	"ai-digest-bot/pkg/store"
	"ai-digest-bot/pkg/utils"
)

const maxErrorBody = 4096

type allowedMentions struct {
	Parse []string `json:"parse"`
}

type webhookBody struct {
	Content         string           `json:"content"`
	AllowedMentions *allowedMentions `json:"allowed_mentions,omitempty"`
}

// WebhookSink posts {content, allowed_mentions} JSON to a chat webhook.
type WebhookSink struct {
	url       string
	charLimit int
	client    *http.Client
}

func NewWebhookSink(url string, charLimit int, timeout time.Duration) *WebhookSink {
	return &WebhookSink{
		url:       url,
		charLimit: charLimit,
		client:    &http.Client{Timeout: timeout},
	}
}

func (s *WebhookSink) Name() string {
	return "webhook"
}

func (s *WebhookSink) Deliver(ctx context.Context, payload store.DeliveryPayload) error {
	body := webhookBody{Content: utils.Truncate(payload.Content, s.charLimit)}
	if payload.MentionPolicy == store.MentionSuppressAll || payload.MentionPolicy == "" {
		body.AllowedMentions = &allowedMentions{Parse: []string{}}
	}

	data, err := json.Marshal(body)
	if err != nil {
		return &apperror.DeliveryError{Err: fmt.Errorf("marshal webhook body: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(data))
	if err != nil {
		return &apperror.DeliveryError{Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := s.client.Do(req)
	if err != nil {
		return &apperror.DeliveryError{Err: err}
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		// A failed body read leaves Body empty rather than masking the status.
		raw, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
		return &apperror.DeliveryError{StatusCode: res.StatusCode, Body: string(raw)}
	}
	_, _ = io.Copy(io.Discard, res.Body)
	return nil
}
