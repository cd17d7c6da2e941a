package notify

import (
	"context"
	"fmt"

	"github.com/cenkalti/backoff/v4"
	"github.com/slack-go/slack"
)

const slackMaxRetries = 3

// SlackSender posts report notifications to a Slack incoming webhook.
type SlackSender struct {
	webhookURL string
}

func NewSlackSender(webhookURL string) *SlackSender {
	return &SlackSender{webhookURL: webhookURL}
}

// Notify posts the text to the webhook, retrying transient failures with
// exponential backoff. Delivery is at-least-once; ordering across reports is
// not guaranteed.
func (s *SlackSender) Notify(ctx context.Context, text string) error {
	op := func() error {
		return slack.PostWebhookContext(ctx, s.webhookURL, &slack.WebhookMessage{Text: text})
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), slackMaxRetries), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		return fmt.Errorf("failed to post slack webhook: %w", err)
	}
	return nil
}
