package domain

import "time"

// Record field names, shared with whatever creates check records.
const (
	FieldID             = "id"
	FieldOwner          = "userPhone"
	FieldProtocol       = "protocol"
	FieldURL            = "url"
	FieldMethod         = "method"
	FieldSuccessCodes   = "successCodes"
	FieldTimeoutSeconds = "timeoutSeconds"
	FieldState          = "state"
	FieldLastChecked    = "lastChecked"
)

const (
	CheckIDLength = 20
	OwnerIDLength = 10

	MinTimeoutSeconds = 1
	MaxTimeoutSeconds = 5
)

type State string

const (
	StateUnknown State = "unknown"
	StateUp      State = "up"
	StateDown    State = "down"
)

type Failure string

const (
	FailureNone    Failure = "none"
	FailureNetwork Failure = "networkError"
	FailureTimeout Failure = "timeout"
)

// Check is one monitored endpoint. URL carries no scheme; Protocol does.
type Check struct {
	ID             string     `json:"id"`
	OwnerID        string     `json:"userPhone"`
	Protocol       string     `json:"protocol"`
	URL            string     `json:"url"`
	Method         string     `json:"method"`
	SuccessCodes   []int      `json:"successCodes"`
	TimeoutSeconds int        `json:"timeoutSeconds"`
	State          State      `json:"state"`
	LastChecked    *time.Time `json:"lastChecked,omitempty"`
}

// Timeout is the probe budget for this check.
func (c Check) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Outcome is the result of exactly one probe attempt.
type Outcome struct {
	ResponseCode *int    `json:"responseCode,omitempty"`
	Failure      Failure `json:"failure"`
	Err          string  `json:"error,omitempty"`
	LatencyMS    float64 `json:"latency_ms"`
}

// LogEntry is the append-only audit record written once per evaluation.
type LogEntry struct {
	Check   Check   `json:"check"`
	Outcome Outcome `json:"outcome"`
	State   State   `json:"state"`
	Alert   bool    `json:"alert"`
	Time    int64   `json:"time"`
}
