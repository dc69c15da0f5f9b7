// Package storage persists imported and processed datasets per session.
package storage

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/HatiCode/dtsociety/pkg/errs"
	"github.com/HatiCode/dtsociety/pkg/table"
)

// State distinguishes a dataset as imported from its reshaped form.
type State string

const (
	StateOriginal  State = "original"
	StateProcessed State = "processed"
)

// Dataset is a stored table together with its provenance.
type Dataset struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Session   string       `json:"session"`
	State     State        `json:"state"`
	GeoColumn string       `json:"geoColumn,omitempty"`
	Table     *table.Table `json:"table"`
	CreatedAt time.Time    `json:"createdAt"`
}

// Validate checks that d can be stored.
func (d Dataset) Validate() error {
	if d.ID == "" {
		return errs.Validation("dataset id cannot be empty")
	}
	if d.Session == "" {
		return errs.Validation("dataset session cannot be empty")
	}
	if d.State != StateOriginal && d.State != StateProcessed {
		return errs.Validation("dataset %q: invalid state %q", d.ID, d.State)
	}
	if d.Table == nil {
		return errs.Validation("dataset %q: table cannot be nil", d.ID)
	}
	return nil
}

// Repository stores datasets keyed by session, id and state.
//
// Get returns the processed state of a dataset when one exists and the
// original otherwise; a missing dataset is an errs.ErrNotFound. List returns
// one entry per dataset id, picked the same way, ordered by creation time.
type Repository interface {
	Put(ctx context.Context, d Dataset) error
	Get(ctx context.Context, session, id string) (Dataset, error)
	List(ctx context.Context, session string) ([]Dataset, error)
	Delete(ctx context.Context, session, id string) error
}

// validKey rejects identifiers that would break key layouts.
func validKey(kind, s string) error {
	if s == "" {
		return errs.Validation("%s cannot be empty", kind)
	}
	for _, c := range s {
		if !((c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') ||
			(c >= '0' && c <= '9') || c == '-' || c == '_') {
			return errs.Validation("invalid %s %q: only alphanumeric, hyphens, and underscores allowed", kind, s)
		}
	}
	return nil
}

func notFound(session, id string) error {
	return errs.NotFound(fmt.Sprintf("dataset %q in session %q", id, session))
}

// sortDatasets orders by creation time, then id.
func sortDatasets(ds []Dataset) {
	slices.SortFunc(ds, func(a, b Dataset) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}
