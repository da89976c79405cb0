package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"
)

// Slack posts alerts to an incoming webhook. The recipient is shown in bold
// above the message since the webhook has no per-user addressing.
type Slack struct {
	Webhook  string
	Username string
	Client   *http.Client
}

func NewSlack(webhook string) *Slack {
	if webhook == "" {
		return nil
	}
	return &Slack{
		Webhook:  webhook,
		Username: "uptime",
		Client:   &http.Client{Timeout: 10 * time.Second},
	}
}

type slackMessage struct {
	Text     string `json:"text"`
	Username string `json:"username,omitempty"`
}

func (s *Slack) Send(ctx context.Context, recipient, message string) error {
	if s == nil {
		return errors.New("slack disabled")
	}
	text := message
	if recipient != "" {
		text = "*" + recipient + "*\n" + message
	}
	body, err := json.Marshal(slackMessage{Text: text, Username: s.Username})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.Webhook, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return deliver(s.Client, "slack", req)
}
