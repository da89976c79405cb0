package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/multierr"

	"github.com/hamed0406/uptimeworker/internal/repo"
)

var ErrInvalidCheck = errors.New("invalid check record")

// FieldError names one field that failed validation.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string { return e.Field + ": " + e.Reason }

var (
	protocols = map[string]bool{"http": true, "https": true}
	methods   = map[string]bool{"get": true, "post": true, "put": true, "delete": true}
)

// ValidateRecord turns an untyped record into a Check. Every field is
// checked; if any fails the record is rejected as a whole and the returned
// error wraps ErrInvalidCheck plus one *FieldError per bad field.
func ValidateRecord(rec repo.Record) (Check, error) {
	if rec == nil {
		return Check{}, fmt.Errorf("%w: empty record", ErrInvalidCheck)
	}

	var (
		c    Check
		errs error
		ok   bool
	)
	bad := func(field, reason string) {
		errs = multierr.Append(errs, &FieldError{Field: field, Reason: reason})
	}

	if c.ID, ok = trimmedString(rec[FieldID]); !ok || len(c.ID) != CheckIDLength {
		bad(FieldID, fmt.Sprintf("must be a %d character string", CheckIDLength))
	}
	if c.OwnerID, ok = trimmedString(rec[FieldOwner]); !ok || len(c.OwnerID) != OwnerIDLength {
		bad(FieldOwner, fmt.Sprintf("must be a %d character string", OwnerIDLength))
	}
	if c.Protocol, ok = rec[FieldProtocol].(string); !ok || !protocols[c.Protocol] {
		bad(FieldProtocol, "must be http or https")
	}
	if c.URL, ok = trimmedString(rec[FieldURL]); !ok || c.URL == "" {
		bad(FieldURL, "must be a non-empty string")
	}
	if c.Method, ok = rec[FieldMethod].(string); !ok || !methods[c.Method] {
		bad(FieldMethod, "must be one of get, post, put, delete")
	}
	if c.SuccessCodes, ok = intList(rec[FieldSuccessCodes]); !ok || len(c.SuccessCodes) == 0 {
		bad(FieldSuccessCodes, "must be a non-empty list of integers")
	}
	if c.TimeoutSeconds, ok = asInt(rec[FieldTimeoutSeconds]); !ok ||
		c.TimeoutSeconds < MinTimeoutSeconds || c.TimeoutSeconds > MaxTimeoutSeconds {
		bad(FieldTimeoutSeconds, fmt.Sprintf("must be an integer between %d and %d", MinTimeoutSeconds, MaxTimeoutSeconds))
	}

	if errs != nil {
		return Check{}, fmt.Errorf("%w: %w", ErrInvalidCheck, errs)
	}

	c.State = parseState(rec[FieldState])
	c.LastChecked = parseMillis(rec[FieldLastChecked])
	return c, nil
}

// FieldErrors unpacks the per-field failures from a ValidateRecord error.
func FieldErrors(err error) []*FieldError {
	var out []*FieldError
	var walk func(error)
	walk = func(e error) {
		switch x := e.(type) {
		case nil:
		case *FieldError:
			out = append(out, x)
		case interface{ Unwrap() []error }:
			for _, inner := range x.Unwrap() {
				walk(inner)
			}
		default:
			for _, inner := range multierr.Errors(e) {
				if inner != e {
					walk(inner)
				}
			}
		}
	}
	walk(err)
	return out
}

func trimmedString(v any) (string, bool) {
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(s), true
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	default:
		return 0, false
	}
}

func intList(v any) ([]int, bool) {
	switch l := v.(type) {
	case []int:
		return append([]int(nil), l...), true
	case []any:
		out := make([]int, 0, len(l))
		for _, x := range l {
			n, ok := asInt(x)
			if !ok {
				return nil, false
			}
			out = append(out, n)
		}
		return out, true
	default:
		return nil, false
	}
}

func parseState(v any) State {
	s, _ := v.(string)
	switch State(s) {
	case StateUp, StateDown:
		return State(s)
	default:
		return StateUnknown
	}
}

func parseMillis(v any) *time.Time {
	ms, ok := asInt(v)
	if !ok || ms <= 0 {
		return nil
	}
	t := time.UnixMilli(int64(ms)).UTC()
	return &t
}
