// Package checkfile loads check definitions from YAML and writes them to a
// record store.
package checkfile

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/hamed0406/uptimeworker/internal/domain"
	"github.com/hamed0406/uptimeworker/internal/repo"
)

const idAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

type file struct {
	Checks []map[string]any `yaml:"checks"`
}

// Load decodes a document of the form
//
//	checks:
//	  - userPhone: "5551234567"
//	    protocol: https
//	    url: example.com/health
//	    method: get
//	    successCodes: [200]
//	    timeoutSeconds: 3
//
// Entries without an id get a random one.
func Load(r io.Reader) ([]repo.Record, error) {
	var f file
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("decode checks: %w", err)
	}
	out := make([]repo.Record, 0, len(f.Checks))
	for _, c := range f.Checks {
		rec := repo.Record(c)
		if id, _ := rec[domain.FieldID].(string); id == "" {
			id, err := NewID()
			if err != nil {
				return nil, err
			}
			rec[domain.FieldID] = id
		}
		out = append(out, rec)
	}
	return out, nil
}

// NewID returns a random check id of domain.CheckIDLength characters.
func NewID() (string, error) {
	b := make([]byte, domain.CheckIDLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	for i := range b {
		b[i] = idAlphabet[int(b[i])%len(idAlphabet)]
	}
	return string(b), nil
}

// Import validates every record and creates the valid ones. It reports how
// many were written alongside every per-record failure.
func Import(ctx context.Context, w repo.Writer, recs []repo.Record) (int, error) {
	var errs error
	n := 0
	for i, rec := range recs {
		c, err := domain.ValidateRecord(rec)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("check %d: %w", i, err))
			continue
		}
		rec = rec.Clone()
		rec[domain.FieldID] = c.ID
		if err := w.Create(ctx, repo.KindChecks, c.ID, rec); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("check %s: %w", c.ID, err))
			continue
		}
		n++
	}
	return n, errs
}
