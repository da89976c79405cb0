package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Notifier delivers one alert message to a check owner.
type Notifier interface {
	Send(ctx context.Context, recipient, message string) error
}

// Multi fans a message out to every sink and reports all failures.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, recipient, message string) error {
	var errs error
	for _, n := range m {
		if n == nil {
			continue
		}
		errs = multierr.Append(errs, n.Send(ctx, recipient, message))
	}
	return errs
}

// Log only records the alert; used when no delivery sink is configured.
type Log struct {
	Logger *zap.Logger
}

func (l Log) Send(ctx context.Context, recipient, message string) error {
	l.Logger.Info("alert", zap.String("recipient", recipient), zap.String("message", message))
	return nil
}

// StatusError is a non-2xx answer from a delivery endpoint.
type StatusError struct {
	Sink string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: status %d", e.Sink, e.Code)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Sink, e.Code, e.Body)
}

// deliver sends req and turns any non-2xx answer into a *StatusError carrying
// the start of the response body.
func deliver(c *http.Client, sink string, req *http.Request) error {
	resp, err := c.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", sink, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 == 2 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return nil
	}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return &StatusError{Sink: sink, Code: resp.StatusCode, Body: string(b)}
}
