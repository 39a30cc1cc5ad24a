package memory

import (
	"encoding/json"
	"fmt"

	"buildcore/pkg/domain"
)

// ContactBucket names the snapshot bucket holding contact messages.
const ContactBucket = "contact"

// BucketNames lists the state buckets persisted by the SQL snapshot stores:
// one per resource kind plus the contact messages.
func BucketNames() []string {
	names := make([]string, 0, len(domain.ResourceKinds())+1)
	for _, kind := range domain.ResourceKinds() {
		names = append(names, string(kind))
	}
	return append(names, ContactBucket)
}

// EncodeBuckets marshals the snapshot into one JSON payload per bucket.
func EncodeBuckets(s Snapshot) (map[string][]byte, error) {
	out := make(map[string][]byte, len(s.Resources)+1)
	for _, kind := range domain.ResourceKinds() {
		list := s.Resources[kind]
		if list == nil {
			list = []Resource{}
		}
		data, err := json.Marshal(list)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", kind, err)
		}
		out[string(kind)] = data
	}
	contacts := s.Contacts
	if contacts == nil {
		contacts = []ContactMessage{}
	}
	data, err := json.Marshal(contacts)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", ContactBucket, err)
	}
	out[ContactBucket] = data
	return out, nil
}

// DecodeBucket merges a single persisted bucket payload into s. Unknown
// buckets and empty payloads are ignored.
func DecodeBucket(s *Snapshot, bucket string, payload []byte) error {
	if len(payload) == 0 {
		return nil
	}
	if bucket == ContactBucket {
		if err := json.Unmarshal(payload, &s.Contacts); err != nil {
			return fmt.Errorf("decode %s: %w", bucket, err)
		}
		return nil
	}
	kind := domain.Kind(bucket)
	if !kind.IsResource() {
		return nil
	}
	var list []Resource
	if err := json.Unmarshal(payload, &list); err != nil {
		return fmt.Errorf("decode %s: %w", bucket, err)
	}
	if s.Resources == nil {
		s.Resources = make(map[domain.Kind][]Resource)
	}
	s.Resources[kind] = list
	return nil
}
