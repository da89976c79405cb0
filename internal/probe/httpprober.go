package probe

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hamed0406/uptimeworker/internal/domain"
)

// drain cap for response bodies so connections can be reused.
const maxDrain = 64 << 10

type HTTPProber struct {
	Client *http.Client
}

// NewHTTPProber returns a prober without a client-wide timeout; every probe
// carries its own budget from the check.
func NewHTTPProber() *HTTPProber {
	return &HTTPProber{
		Client: &http.Client{
			// a redirect is a response like any other status code
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// TargetURL builds the request URL from the check's protocol and its
// scheme-less URL. Only host, path and query are kept.
func TargetURL(c domain.Check) (*url.URL, error) {
	u, err := url.Parse(c.Protocol + "://" + c.URL)
	if err != nil {
		return nil, err
	}
	if u.Host == "" {
		return nil, errors.New("missing host")
	}
	return &url.URL{
		Scheme:   c.Protocol,
		Host:     u.Host,
		Path:     u.Path,
		RawPath:  u.RawPath,
		RawQuery: u.RawQuery,
	}, nil
}

type result struct {
	code int
	err  error
}

func (p *HTTPProber) Probe(ctx context.Context, c domain.Check) domain.Outcome {
	start := time.Now()
	latency := func() float64 { return time.Since(start).Seconds() * 1000 }

	target, err := TargetURL(c)
	if err != nil {
		return domain.Outcome{Failure: domain.FailureNetwork, Err: err.Error()}
	}

	// cancelled on return, which also aborts a body drain still in progress
	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, strings.ToUpper(c.Method), target.String(), nil)
	if err != nil {
		return domain.Outcome{Failure: domain.FailureNetwork, Err: err.Error()}
	}

	// Single-assignment slot: the request goroutine writes at most once and
	// never blocks, so it exits even when the timer has already won.
	slot := make(chan result, 1)
	go func() {
		resp, err := p.Client.Do(req)
		if err != nil {
			slot <- result{err: err}
			return
		}
		// headers are the response; the body is only drained for reuse
		slot <- result{code: resp.StatusCode}
		_, _ = io.CopyN(io.Discard, resp.Body, maxDrain)
		resp.Body.Close()
	}()

	timer := time.NewTimer(c.Timeout())
	defer timer.Stop()

	select {
	case r := <-slot:
		if r.err != nil {
			return classify(r.err, latency())
		}
		code := r.code
		return domain.Outcome{ResponseCode: &code, Failure: domain.FailureNone, LatencyMS: latency()}
	case <-timer.C:
		return domain.Outcome{Failure: domain.FailureTimeout, Err: "timeout", LatencyMS: latency()}
	case <-ctx.Done():
		return domain.Outcome{Failure: domain.FailureNetwork, Err: ctx.Err().Error(), LatencyMS: latency()}
	}
}

func classify(err error, latency float64) domain.Outcome {
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return domain.Outcome{Failure: domain.FailureTimeout, Err: err.Error(), LatencyMS: latency}
	}
	return domain.Outcome{Failure: domain.FailureNetwork, Err: err.Error(), LatencyMS: latency}
}
