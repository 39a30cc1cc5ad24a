package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestParseKind(t *testing.T) {
	cases := map[string]Kind{
		"service":      KindService,
		"Services":     KindService,
		" projects ":   KindProject,
		"team":         KindTeam,
		"members":      KindTeam,
		"testimonials": KindTestimonial,
		"messages":     KindContact,
		"contacts":     KindContact,
	}
	for in, want := range cases {
		got, err := ParseKind(in)
		if err != nil {
			t.Fatalf("parse %q: %v", in, err)
		}
		if got != want {
			t.Fatalf("parse %q: want %s got %s", in, want, got)
		}
	}
	if _, err := ParseKind("blog"); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
}

func TestKindPluralAndIsResource(t *testing.T) {
	if KindTeam.Plural() != "team" || KindService.Plural() != "services" || KindContact.Plural() != "messages" {
		t.Fatalf("unexpected plurals")
	}
	if Kind("widget").Plural() != "widgets" {
		t.Fatalf("fallback plural")
	}
	if KindContact.IsResource() {
		t.Fatalf("contact messages are not admin resources")
	}
	for _, k := range ResourceKinds() {
		if !k.IsResource() {
			t.Fatalf("%s should be a resource kind", k)
		}
	}
}

func TestResourceCloneDetachesImage(t *testing.T) {
	img := "https://cdn.example/a.png"
	r := Resource{Title: "Roofing", Image: &img}
	cp := r.Clone()
	*cp.Image = "https://cdn.example/b.png"
	if *r.Image != "https://cdn.example/a.png" {
		t.Fatalf("clone shares image pointer")
	}
	if (Resource{}).Clone().Image != nil {
		t.Fatalf("nil image must stay nil")
	}
}

func TestResourceLabel(t *testing.T) {
	if (Resource{Title: "Villa A", Name: "x"}).Label() != "Villa A" {
		t.Fatalf("title preferred")
	}
	if (Resource{Name: "Jane"}).Label() != "Jane" {
		t.Fatalf("name fallback")
	}
}

func TestErrorMessages(t *testing.T) {
	v := ValidationError{Kind: KindService, Missing: []string{"title"}, Invalid: map[string]string{"rating": "must be 1-5"}}
	if msg := v.Error(); !strings.Contains(msg, "missing title") || !strings.Contains(msg, "rating must be 1-5") {
		t.Fatalf("unexpected validation message: %s", msg)
	}
	if !(ValidationError{}).Empty() || v.Empty() {
		t.Fatalf("Empty mismatch")
	}

	cause := errors.New("bucket unreachable")
	up := UploadError{Reason: UploadStorage, Err: cause}
	if !errors.Is(up, cause) {
		t.Fatalf("upload error should unwrap cause")
	}

	nf := NotFoundError{Kind: KindProject, ID: "p1"}
	if nf.Error() != "project p1 not found" {
		t.Fatalf("unexpected not found message: %s", nf.Error())
	}
}

func TestAggregateFetchErrorUnwrap(t *testing.T) {
	cause := errors.New("timeout")
	agg := AggregateFetchError{Failures: map[Kind]error{KindTeam: cause, KindProject: errors.New("503")}}
	if !errors.Is(agg, cause) {
		t.Fatalf("aggregate error should expose per-kind causes")
	}
	kinds := agg.Kinds()
	if len(kinds) != 2 || kinds[0] != KindProject || kinds[1] != KindTeam {
		t.Fatalf("unexpected kinds order: %v", kinds)
	}
	if !strings.Contains(agg.Error(), "team: timeout") {
		t.Fatalf("unexpected message: %s", agg.Error())
	}
}
