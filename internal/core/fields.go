package core

import (
	"net/mail"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"buildcore/pkg/domain"
)

// Fields carries the submitted form values of a write request, keyed by JSON
// field name. Keys that are absent are left untouched on update.
type Fields map[string]string

// fieldAliases maps alternative form names onto canonical field names.
var fieldAliases = map[string]string{
	"desc": "description",
}

var yearPattern = regexp.MustCompile(`^\d{4}$`)

// required lists mandatory fields per kind.
var required = map[domain.Kind][]string{
	domain.KindService:     {"title", "description"},
	domain.KindProject:     {"title", "description"},
	domain.KindTeam:        {"name"},
	domain.KindTestimonial: {"name", "feedback"},
}

// setters assign a canonical field onto a resource; a non-empty return is a
// validation message.
var setters = map[string]func(*domain.Resource, string) string{
	"title":       func(r *domain.Resource, v string) string { r.Title = v; return "" },
	"name":        func(r *domain.Resource, v string) string { r.Name = v; return "" },
	"description": func(r *domain.Resource, v string) string { r.Description = v; return "" },
	"icon":        func(r *domain.Resource, v string) string { r.Icon = v; return "" },
	"location":    func(r *domain.Resource, v string) string { r.Location = v; return "" },
	"area":        func(r *domain.Resource, v string) string { r.Area = v; return "" },
	"duration":    func(r *domain.Resource, v string) string { r.Duration = v; return "" },
	"type":        func(r *domain.Resource, v string) string { r.Type = v; return "" },
	"role":        func(r *domain.Resource, v string) string { r.Role = v; return "" },
	"feedback":    func(r *domain.Resource, v string) string { r.Feedback = v; return "" },
	"year": func(r *domain.Resource, v string) string {
		if v != "" && !yearPattern.MatchString(v) {
			return "must be a 4-digit year"
		}
		r.Year = v
		return ""
	},
	"rating": func(r *domain.Resource, v string) string {
		if v == "" {
			r.Rating = 0
			return ""
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 5 {
			return "must be an integer between 1 and 5"
		}
		r.Rating = n
		return ""
	},
}

// NormalizeFields trims values, lower-cases keys and resolves aliases. A
// canonical key wins over its alias when both are present.
func NormalizeFields(in Fields) Fields {
	out := make(Fields, len(in))
	aliased := make(Fields)
	for k, v := range in {
		key := strings.ToLower(strings.TrimSpace(k))
		v = strings.TrimSpace(v)
		if canonical, ok := fieldAliases[key]; ok {
			aliased[canonical] = v
			continue
		}
		out[key] = v
	}
	for k, v := range aliased {
		if _, ok := out[k]; !ok {
			out[k] = v
		}
	}
	return out
}

// applyFields writes the recognised fields onto r and returns per-field
// problems. Unknown keys, including image, are ignored: images only change
// through an upload.
func applyFields(r *domain.Resource, f Fields) map[string]string {
	invalid := map[string]string{}
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		set, ok := setters[k]
		if !ok {
			continue
		}
		if msg := set(r, f[k]); msg != "" {
			invalid[k] = msg
		}
	}
	return invalid
}

// validateResource checks the required fields of kind on r.
func validateResource(kind domain.Kind, r domain.Resource, invalid map[string]string) domain.ValidationError {
	verr := domain.ValidationError{Kind: kind}
	values := map[string]string{
		"title":       r.Title,
		"name":        r.Name,
		"description": r.Description,
		"feedback":    r.Feedback,
	}
	for _, field := range required[kind] {
		if strings.TrimSpace(values[field]) == "" {
			if _, bad := invalid[field]; !bad {
				verr.Missing = append(verr.Missing, field)
			}
		}
	}
	if len(invalid) > 0 {
		verr.Invalid = invalid
	}
	return verr
}

// validateContact normalises and validates a public contact submission.
func validateContact(m *domain.ContactMessage) domain.ValidationError {
	m.Name = strings.TrimSpace(m.Name)
	m.Email = strings.TrimSpace(m.Email)
	m.Phone = strings.TrimSpace(m.Phone)
	m.Message = strings.TrimSpace(m.Message)
	verr := domain.ValidationError{Kind: domain.KindContact}
	if m.Name == "" {
		verr.Missing = append(verr.Missing, "name")
	}
	if m.Email == "" {
		verr.Missing = append(verr.Missing, "email")
	} else if addr, err := mail.ParseAddress(m.Email); err != nil || addr.Address != m.Email {
		verr.Invalid = map[string]string{"email": "must be a valid email address"}
	}
	if m.Message == "" {
		verr.Missing = append(verr.Missing, "message")
	}
	return verr
}
