package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/go-querystring/query"
)

const (
	TwilioBaseURL = "https://api.twilio.com"
	maxSMSLength  = 1600
)

// Twilio sends alerts as SMS through the Messages API.
type Twilio struct {
	AccountSID string
	AuthToken  string
	From       string
	BaseURL    string
	Client     *http.Client
}

func NewTwilio(sid, token, from, baseURL string) *Twilio {
	if sid == "" || token == "" || from == "" {
		return nil
	}
	if baseURL == "" {
		baseURL = TwilioBaseURL
	}
	return &Twilio{
		AccountSID: sid,
		AuthToken:  token,
		From:       from,
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Client:     &http.Client{Timeout: 10 * time.Second},
	}
}

type smsForm struct {
	From string `url:"From"`
	To   string `url:"To"`
	Body string `url:"Body"`
}

func (t *Twilio) Send(ctx context.Context, recipient, message string) error {
	if t == nil {
		return errors.New("twilio disabled")
	}
	to := strings.TrimSpace(recipient)
	msg := strings.TrimSpace(message)
	if to == "" {
		return errors.New("sms: empty recipient")
	}
	if msg == "" || len(msg) > maxSMSLength {
		return fmt.Errorf("sms: message length must be 1..%d", maxSMSLength)
	}

	form, err := query.Values(smsForm{From: t.From, To: to, Body: msg})
	if err != nil {
		return fmt.Errorf("sms: encode form: %w", err)
	}
	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", t.BaseURL, t.AccountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.SetBasicAuth(t.AccountSID, t.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return deliver(t.Client, "sms", req)
}
