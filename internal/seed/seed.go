// Package seed loads site content from a YAML document and creates it
// through the regular write path.
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"

	"buildcore/internal/core"
	"buildcore/internal/media"
	"buildcore/pkg/domain"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Creator is the write operation used for seeding; core.Service satisfies it.
type Creator interface {
	Create(ctx context.Context, kind domain.Kind, fields core.Fields, image *media.Upload) (domain.Resource, error)
}

// Document is the seed file layout. Each entry is a flat field map using the
// same names as the write API.
type Document struct {
	Services     []map[string]string `yaml:"services"`
	Projects     []map[string]string `yaml:"projects"`
	Team         []map[string]string `yaml:"team"`
	Testimonials []map[string]string `yaml:"testimonials"`
}

// Len returns the total number of entries.
func (d Document) Len() int {
	return len(d.Services) + len(d.Projects) + len(d.Team) + len(d.Testimonials)
}

func (d Document) sections() []section {
	return []section{
		{domain.KindService, d.Services},
		{domain.KindProject, d.Projects},
		{domain.KindTeam, d.Team},
		{domain.KindTestimonial, d.Testimonials},
	}
}

type section struct {
	kind    domain.Kind
	entries []map[string]string
}

// Load parses a seed document. Unknown top-level sections are rejected.
func Load(r io.Reader) (Document, error) {
	var doc Document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return Document{}, nil
		}
		return Document{}, fmt.Errorf("parse seed document: %w", err)
	}
	return doc, nil
}

// Result counts created records per kind.
type Result struct {
	Created map[domain.Kind]int
}

// Total returns the number of created records.
func (r Result) Total() int {
	n := 0
	for _, c := range r.Created {
		n += c
	}
	return n
}

// Apply creates every entry of doc in order. A failing entry does not stop
// the rest; all failures are joined into the returned error.
func Apply(ctx context.Context, creator Creator, doc Document, logger *zap.Logger) (Result, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	res := Result{Created: make(map[domain.Kind]int)}
	var errs []error
	for _, sec := range doc.sections() {
		for i, entry := range sec.entries {
			if err := ctx.Err(); err != nil {
				return res, errors.Join(append(errs, err)...)
			}
			created, err := creator.Create(ctx, sec.kind, core.Fields(entry), nil)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s[%d]: %w", sec.kind.Plural(), i, err))
				continue
			}
			res.Created[sec.kind]++
			logger.Debug("seeded", zap.String("kind", string(sec.kind)), zap.String("id", created.ID), zap.String("label", created.Label()))
		}
	}
	logger.Info("seed applied", zap.Int("created", res.Total()), zap.Int("failed", len(errs)))
	return res, errors.Join(errs...)
}
