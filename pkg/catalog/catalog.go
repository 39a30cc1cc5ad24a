// Package catalog derives filtered views over a fetched list of resources.
//
// Every function here is pure: inputs are never mutated and each call returns
// a freshly allocated slice. A Snapshot is fetched once and every later
// category or search change is a local derivation over it.
package catalog

import (
	"sort"
	"strings"
	"time"

	"buildcore/pkg/domain"
)

// AllCategories selects every record regardless of its type.
const AllCategories = "All"

// Criteria is the user-controlled filter state.
type Criteria struct {
	Category string
	Query    string
}

func (c Criteria) normalized() (category, query string) {
	category = strings.TrimSpace(c.Category)
	if strings.EqualFold(category, AllCategories) {
		category = ""
	}
	return strings.ToLower(category), strings.ToLower(strings.TrimSpace(c.Query))
}

// Matches reports whether r satisfies c. Category and query predicates are
// ANDed; an empty query is category-only.
func Matches(r domain.Resource, c Criteria) bool {
	category, query := c.normalized()
	return matches(r, category, query)
}

func matches(r domain.Resource, category, query string) bool {
	if category != "" && strings.ToLower(strings.TrimSpace(r.Type)) != category {
		return false
	}
	if query == "" {
		return true
	}
	for _, field := range []string{r.Label(), r.Location, r.Description} {
		if strings.Contains(strings.ToLower(field), query) {
			return true
		}
	}
	return false
}

// Filter returns the records of items matching c, in their original order.
func Filter(items []domain.Resource, c Criteria) []domain.Resource {
	category, query := c.normalized()
	out := make([]domain.Resource, 0, len(items))
	for _, r := range items {
		if matches(r, category, query) {
			out = append(out, r.Clone())
		}
	}
	return out
}

// SortByRecency returns a copy of items ordered newest first. Records with
// equal creation time keep their relative order.
func SortByRecency(items []domain.Resource) []domain.Resource {
	out := cloneAll(items)
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// Latest returns the n newest records. n <= 0 yields every record.
func Latest(items []domain.Resource, n int) []domain.Resource {
	return Head(SortByRecency(items), n)
}

// Head returns a copy of the first n records. n <= 0 yields every record.
func Head(items []domain.Resource, n int) []domain.Resource {
	if n > 0 && n < len(items) {
		items = items[:n]
	}
	return cloneAll(items)
}

// Categories lists distinct non-empty types in first-seen order, preserving
// the spelling of the first occurrence.
func Categories(items []domain.Resource) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, r := range items {
		t := strings.TrimSpace(r.Type)
		if t == "" {
			continue
		}
		key := strings.ToLower(t)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, t)
	}
	return out
}

// Snapshot is an immutable copy of a fetched sequence of resources.
type Snapshot struct {
	kind      domain.Kind
	items     []domain.Resource
	fetchedAt time.Time
}

// NewSnapshot copies items into a snapshot.
func NewSnapshot(kind domain.Kind, items []domain.Resource, fetchedAt time.Time) Snapshot {
	return Snapshot{kind: kind, items: cloneAll(items), fetchedAt: fetchedAt}
}

// Kind returns the resource kind the snapshot holds.
func (s Snapshot) Kind() domain.Kind { return s.kind }

// FetchedAt returns when the snapshot was taken.
func (s Snapshot) FetchedAt() time.Time { return s.fetchedAt }

// Len returns the number of records.
func (s Snapshot) Len() int { return len(s.items) }

// Items returns a copy of every record.
func (s Snapshot) Items() []domain.Resource { return cloneAll(s.items) }

// Derive computes the filtered view for c.
func (s Snapshot) Derive(c Criteria) []domain.Resource { return Filter(s.items, c) }

// Categories lists the distinct types present in the snapshot.
func (s Snapshot) Categories() []string { return Categories(s.items) }

func cloneAll(items []domain.Resource) []domain.Resource {
	out := make([]domain.Resource, len(items))
	for i, r := range items {
		out[i] = r.Clone()
	}
	return out
}
