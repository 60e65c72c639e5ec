// Package notify pushes onboarding outcomes to operator channels.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// Channel delivers rendered content.
type Channel interface {
	Send(ctx context.Context, content string) error
}

// textMessage is the DingTalk/WeCom-compatible wire format the operator
// webhooks expect.
type textMessage struct {
	MsgType string      `json:"msgtype"`
	Text    textContent `json:"text"`
}

type textContent struct {
	Content string `json:"content"`
}

// WebhookChannel posts onboarding notifications to an operator webhook.
type WebhookChannel struct {
	client *resty.Client
}

// WebhookOption configures the webhook channel.
type WebhookOption func(*resty.Client)

// WithTimeout overrides the per-request timeout.
func WithTimeout(timeout time.Duration) WebhookOption {
	return func(client *resty.Client) {
		if timeout > 0 {
			client.SetTimeout(timeout)
		}
	}
}

// WithRetryCount enables retries on transport errors.
func WithRetryCount(count int) WebhookOption {
	return func(client *resty.Client) {
		if count > 0 {
			client.SetRetryCount(count)
		}
	}
}

// NewWebhookChannel constructs a webhook channel for the given endpoint.
func NewWebhookChannel(url string, opts ...WebhookOption) (*WebhookChannel, error) {
	if url == "" {
		return nil, errors.New("notify: empty webhook url")
	}
	client := resty.New().
		SetBaseURL(url).
		SetTimeout(10 * time.Second).
		SetHeader("Content-Type", "application/json")
	for _, opt := range opts {
		opt(client)
	}
	return &WebhookChannel{client: client}, nil
}

// Send posts the content as a text message.
func (w *WebhookChannel) Send(ctx context.Context, content string) error {
	if w == nil || w.client == nil {
		return errors.New("notify: webhook channel not configured")
	}
	resp, err := w.client.R().
		SetContext(ctx).
		SetBody(textMessage{MsgType: "text", Text: textContent{Content: content}}).
		Post("")
	if err != nil {
		return fmt.Errorf("notify: webhook post failed: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("notify: webhook rejected notification: %s", resp.Status())
	}
	return nil
}
