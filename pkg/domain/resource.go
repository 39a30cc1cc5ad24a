// Package domain defines the persistent content records, value types and
// error taxonomy shared by buildcore's write path, read path and stores.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// Kind identifies the category of record stored in the core domain.
type Kind string

// Supported kinds used in routes, persistence buckets and dashboard tallies.
const (
	// KindService identifies a service offered by the company.
	KindService Kind = "service"
	// KindProject identifies a completed or ongoing project.
	KindProject Kind = "project"
	// KindTeam identifies a team member profile.
	KindTeam Kind = "team"
	// KindTestimonial identifies a client testimonial.
	KindTestimonial Kind = "testimonial"
	// KindContact identifies a contact message submitted from the public site.
	KindContact Kind = "contact"
)

var plurals = map[Kind]string{
	KindService:     "services",
	KindProject:     "projects",
	KindTeam:        "team",
	KindTestimonial: "testimonials",
	KindContact:     "messages",
}

// ResourceKinds lists the admin-managed resource kinds in display order.
func ResourceKinds() []Kind {
	return []Kind{KindService, KindProject, KindTeam, KindTestimonial}
}

// Plural returns the response envelope key used when listing the kind.
func (k Kind) Plural() string {
	if p, ok := plurals[k]; ok {
		return p
	}
	return string(k) + "s"
}

// IsResource reports whether k is one of the admin-managed resource kinds.
func (k Kind) IsResource() bool {
	switch k {
	case KindService, KindProject, KindTeam, KindTestimonial:
		return true
	}
	return false
}

// ParseKind resolves singular or plural spellings, case-insensitively.
func ParseKind(raw string) (Kind, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	for k, plural := range plurals {
		if s == string(k) || s == plural {
			return k, nil
		}
	}
	if k, ok := kindAliases[s]; ok {
		return k, nil
	}
	return "", fmt.Errorf("unknown kind %q", raw)
}

var kindAliases = map[string]Kind{
	"members":      KindTeam,
	"team-members": KindTeam,
	"contacts":     KindContact,
}

// Resource is one managed content record. Kind-specific fields are left
// empty on kinds that do not use them.
type Resource struct {
	ID          string    `json:"id"`
	Kind        Kind      `json:"kind"`
	Title       string    `json:"title,omitempty"`
	Name        string    `json:"name,omitempty"`
	Description string    `json:"description,omitempty"`
	Image       *string   `json:"image"`
	Icon        string    `json:"icon,omitempty"`
	Location    string    `json:"location,omitempty"`
	Area        string    `json:"area,omitempty"`
	Duration    string    `json:"duration,omitempty"`
	Year        string    `json:"year,omitempty"`
	Type        string    `json:"type,omitempty"`
	Role        string    `json:"role,omitempty"`
	Rating      int       `json:"rating,omitempty"`
	Feedback    string    `json:"feedback,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Label returns the short display text: the title, or the name for kinds
// that identify people.
func (r Resource) Label() string {
	if r.Title != "" {
		return r.Title
	}
	return r.Name
}

// Clone returns a deep copy; the image pointer is never shared.
func (r Resource) Clone() Resource {
	if r.Image != nil {
		img := *r.Image
		r.Image = &img
	}
	return r
}

// ContactMessage is a message left through the public contact form.
type ContactMessage struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}
