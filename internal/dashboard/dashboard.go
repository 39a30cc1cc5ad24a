// Package dashboard gathers the admin overview counts concurrently.
package dashboard

import (
	"context"
	"fmt"
	"time"

	"buildcore/pkg/domain"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Source counts stored records of a kind. core.Service and client.Client
// both satisfy it.
type Source interface {
	Count(ctx context.Context, kind domain.Kind) (int, error)
}

// DefaultKinds are the tallies shown on the admin dashboard.
var DefaultKinds = []domain.Kind{domain.KindService, domain.KindProject, domain.KindTeam, domain.KindContact}

// Tally is the tagged result of one count.
type Tally struct {
	Kind  domain.Kind
	Count int
	Err   error
}

// Summary is a successful dashboard read.
type Summary struct {
	Tallies     []Tally
	CollectedAt time.Time
}

// Counts keys the tallies by their plural response name.
func (s Summary) Counts() map[string]int {
	out := make(map[string]int, len(s.Tallies))
	for _, t := range s.Tallies {
		out[t.Kind.Plural()] = t.Count
	}
	return out
}

// Aggregator fans one Count per kind out to a Source.
type Aggregator struct {
	source Source
	kinds  []domain.Kind
	logger *zap.Logger
	now    func() time.Time
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithKinds overrides the tallied kinds.
func WithKinds(kinds ...domain.Kind) Option {
	return func(a *Aggregator) {
		if len(kinds) > 0 {
			a.kinds = append([]domain.Kind(nil), kinds...)
		}
	}
}

// WithLogger sets the aggregator logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *Aggregator) {
		if l != nil {
			a.logger = l
		}
	}
}

// NewAggregator returns an Aggregator over source.
func NewAggregator(source Source, opts ...Option) *Aggregator {
	a := &Aggregator{
		source: source,
		kinds:  DefaultKinds,
		logger: zap.NewNop(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Collect counts every kind concurrently and waits for all of them. If any
// count fails the result is a domain.AggregateFetchError naming each failed
// kind; a failed count is never reported as zero.
func (a *Aggregator) Collect(ctx context.Context) (Summary, error) {
	tallies := make([]Tally, len(a.kinds))
	var eg errgroup.Group
	for i, kind := range a.kinds {
		i, kind := i, kind
		eg.Go(func() error {
			n, err := a.count(ctx, kind)
			tallies[i] = Tally{Kind: kind, Count: n, Err: err}
			return nil
		})
	}
	_ = eg.Wait()
	return a.reduce(tallies)
}

func (a *Aggregator) count(ctx context.Context, kind domain.Kind) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("count %s panicked: %v", kind, r)
		}
	}()
	return a.source.Count(ctx, kind)
}

func (a *Aggregator) reduce(tallies []Tally) (Summary, error) {
	failures := make(map[domain.Kind]error)
	for _, t := range tallies {
		if t.Err != nil {
			failures[t.Kind] = t.Err
			a.logger.Warn("dashboard count failed", zap.String("kind", string(t.Kind)), zap.Error(t.Err))
		}
	}
	if len(failures) > 0 {
		return Summary{}, domain.AggregateFetchError{Failures: failures}
	}
	return Summary{Tallies: tallies, CollectedAt: a.now()}, nil
}
