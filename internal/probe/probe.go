package probe

import (
	"context"

	"github.com/hamed0406/uptimeworker/internal/domain"
)

// Prober performs a single probe for a validated check. It always returns
// exactly one outcome and never retries.
type Prober interface {
	Probe(ctx context.Context, c domain.Check) domain.Outcome
}
