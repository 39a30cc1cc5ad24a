package domain

import (
	"fmt"
	"sort"
	"strings"
)

// ValidationError reports missing or malformed fields on a write request.
// No persistence is attempted when it is returned.
type ValidationError struct {
	Kind    Kind
	Missing []string
	Invalid map[string]string
}

func (e ValidationError) Error() string {
	subject := string(e.Kind)
	if subject == "" {
		subject = "request"
	}
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing "+strings.Join(e.Missing, ", "))
	}
	if len(e.Invalid) > 0 {
		keys := make([]string, 0, len(e.Invalid))
		for k := range e.Invalid {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s %s", k, e.Invalid[k]))
		}
	}
	if len(parts) == 0 {
		return "invalid " + subject
	}
	return fmt.Sprintf("invalid %s: %s", subject, strings.Join(parts, "; "))
}

// Empty reports whether no problems were recorded.
func (e ValidationError) Empty() bool {
	return len(e.Missing) == 0 && len(e.Invalid) == 0
}

// UploadReason classifies media store failures.
type UploadReason string

const (
	UploadTooLarge    UploadReason = "too_large"
	UploadUnsupported UploadReason = "unsupported_format"
	UploadStorage     UploadReason = "storage"
)

// UploadError is returned when the media store could not durably store an
// image. The enclosing write is aborted.
type UploadError struct {
	Reason UploadReason
	Err    error
}

func (e UploadError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("upload failed: %s", e.Reason)
	}
	return fmt.Sprintf("upload failed: %s: %v", e.Reason, e.Err)
}

func (e UploadError) Unwrap() error { return e.Err }

// NotFoundError is returned when an id is unknown for its kind.
type NotFoundError struct {
	Kind Kind
	ID   string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// AggregateFetchError reports that one or more parallel reads failed.
type AggregateFetchError struct {
	Failures map[Kind]error
}

func (e AggregateFetchError) Error() string {
	kinds := e.Kinds()
	parts := make([]string, 0, len(kinds))
	for _, k := range kinds {
		parts = append(parts, fmt.Sprintf("%s: %v", k.Plural(), e.Failures[k]))
	}
	return "dashboard fetch failed: " + strings.Join(parts, "; ")
}

// Kinds returns the failed kinds sorted by name.
func (e AggregateFetchError) Kinds() []Kind {
	kinds := make([]Kind, 0, len(e.Failures))
	for k := range e.Failures {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

func (e AggregateFetchError) Unwrap() []error {
	out := make([]error, 0, len(e.Failures))
	for _, k := range e.Kinds() {
		out = append(out, e.Failures[k])
	}
	return out
}
