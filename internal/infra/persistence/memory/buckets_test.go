package memory

import (
	"testing"

	"buildcore/pkg/domain"
)

func TestBuckets_EncodeDecode(t *testing.T) {
	img := "https://cdn/x.png"
	snap := Snapshot{
		Resources: map[domain.Kind][]Resource{
			domain.KindService: {{ID: "s1", Kind: domain.KindService, Title: "Roof", Image: &img}},
		},
		Contacts: []ContactMessage{{ID: "c1", Name: "Sam", Email: "s@example.com", Message: "hi"}},
	}
	encoded, err := EncodeBuckets(snap)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(encoded) != len(BucketNames()) {
		t.Fatalf("expected %d buckets, got %d", len(BucketNames()), len(encoded))
	}
	if string(encoded[string(domain.KindTeam)]) != "[]" {
		t.Fatalf("empty kinds should encode as [], got %s", encoded[string(domain.KindTeam)])
	}

	var decoded Snapshot
	for _, name := range BucketNames() {
		if err := DecodeBucket(&decoded, name, encoded[name]); err != nil {
			t.Fatalf("decode %s: %v", name, err)
		}
	}
	if err := DecodeBucket(&decoded, "organisms", []byte(`{}`)); err != nil {
		t.Fatalf("unknown bucket should be ignored: %v", err)
	}
	if got := decoded.Resources[domain.KindService]; len(got) != 1 || *got[0].Image != img {
		t.Fatalf("unexpected services %+v", got)
	}
	if len(decoded.Contacts) != 1 || decoded.Contacts[0].ID != "c1" {
		t.Fatalf("unexpected contacts %+v", decoded.Contacts)
	}
	if err := DecodeBucket(&decoded, string(domain.KindProject), []byte("{not json")); err == nil {
		t.Fatalf("expected decode error")
	}
}
