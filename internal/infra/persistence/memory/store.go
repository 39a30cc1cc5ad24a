// Package memory provides an in-memory implementation of the resource store
// used for tests, ephemeral environments and as the transactional core of the
// SQL snapshot stores.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"buildcore/pkg/domain"

	"github.com/google/uuid"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain persistence interface.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// Resource aliases domain.Resource.
	Resource = domain.Resource
	// ContactMessage aliases domain.ContactMessage.
	ContactMessage = domain.ContactMessage
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
)

// bucket keeps records of one kind in insertion order.
type bucket struct {
	records map[string]Resource
	order   []string
}

type memoryState struct {
	resources map[domain.Kind]*bucket
	contacts  []ContactMessage
}

// Snapshot captures a point-in-time clone of the store state. Resource slices
// are in insertion order.
type Snapshot struct {
	Resources map[domain.Kind][]Resource `json:"resources"`
	Contacts  []ContactMessage           `json:"contacts"`
}

func newMemoryState() memoryState {
	state := memoryState{resources: make(map[domain.Kind]*bucket)}
	for _, kind := range domain.ResourceKinds() {
		state.resources[kind] = &bucket{records: make(map[string]Resource)}
	}
	return state
}

func (s memoryState) clone() memoryState {
	out := memoryState{resources: make(map[domain.Kind]*bucket, len(s.resources))}
	for kind, b := range s.resources {
		cp := &bucket{records: make(map[string]Resource, len(b.records)), order: append([]string(nil), b.order...)}
		for id, r := range b.records {
			cp.records[id] = r.Clone()
		}
		out.resources[kind] = cp
	}
	out.contacts = append([]ContactMessage(nil), s.contacts...)
	return out
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	s := Snapshot{Resources: make(map[domain.Kind][]Resource, len(state.resources))}
	for kind, b := range state.resources {
		list := make([]Resource, 0, len(b.order))
		for _, id := range b.order {
			list = append(list, b.records[id].Clone())
		}
		s.Resources[kind] = list
	}
	s.Contacts = append([]ContactMessage{}, state.contacts...)
	return s
}

func memoryStateFromSnapshot(s Snapshot) memoryState {
	state := newMemoryState()
	for kind, list := range s.Resources {
		if !kind.IsResource() {
			continue
		}
		b := state.resources[kind]
		for _, r := range list {
			if r.ID == "" {
				continue
			}
			if _, dup := b.records[r.ID]; dup {
				continue
			}
			r.Kind = kind
			b.records[r.ID] = r.Clone()
			b.order = append(b.order, r.ID)
		}
	}
	state.contacts = append([]ContactMessage(nil), s.Contacts...)
	return state
}

// Store provides an in-memory transactional store for the site content.
type Store struct {
	mu    sync.RWMutex
	state memoryState
	nowFn func() time.Time
}

// NewStore constructs an empty in-memory store.
func NewStore() *Store {
	return &Store{
		state: newMemoryState(),
		nowFn: func() time.Time { return time.Now().UTC() },
	}
}

// SetNowFunc overrides the clock used for timestamps.
func (s *Store) SetNowFunc(fn func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fn != nil {
		s.nowFn = fn
	}
}

func (s *Store) newID() string { return uuid.NewString() }

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces the store state with the provided snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryStateFromSnapshot(snapshot)
}

type transaction struct {
	store *Store
	state memoryState
	now   time.Time
}

type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) TransactionView {
	return transactionView{state: state}
}

// ListResources returns every record of kind in insertion order.
func (v transactionView) ListResources(kind domain.Kind) []Resource {
	b, ok := v.state.resources[kind]
	if !ok {
		return []Resource{}
	}
	out := make([]Resource, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, b.records[id].Clone())
	}
	return out
}

// FindResource looks up a record by id.
func (v transactionView) FindResource(kind domain.Kind, id string) (Resource, bool) {
	b, ok := v.state.resources[kind]
	if !ok {
		return Resource{}, false
	}
	r, ok := b.records[id]
	if !ok {
		return Resource{}, false
	}
	return r.Clone(), true
}

// ListContactMessages returns stored contact messages oldest first.
func (v transactionView) ListContactMessages() []ContactMessage {
	return append([]ContactMessage{}, v.state.contacts...)
}

// CommitFunc receives the state a transaction produced before it becomes
// visible to readers. A non-nil error discards the transaction.
type CommitFunc func(Snapshot) error

// RunInTransaction executes fn within a transactional copy of the store state.
// The copy replaces the live state only when fn returns nil.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) error {
	return s.RunInTransactionWithCommit(ctx, fn, nil)
}

// RunInTransactionWithCommit behaves like RunInTransaction and additionally
// hands the resulting state to commit while the write lock is held. The live
// state is replaced only when both fn and commit succeed.
func (s *Store) RunInTransactionWithCommit(ctx context.Context, fn func(tx Transaction) error, commit CommitFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		store: s,
		state: s.state.clone(),
		now:   s.nowFn(),
	}
	if err := fn(tx); err != nil {
		return err
	}
	if commit != nil {
		if err := commit(snapshotFromMemoryState(tx.state)); err != nil {
			return err
		}
	}
	s.state = tx.state
	return nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(ctx context.Context, fn func(TransactionView) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	snapshot := s.state.clone()
	s.mu.RUnlock()
	return fn(newTransactionView(&snapshot))
}

// Snapshot returns a read-only view over the transactional state.
func (tx *transaction) Snapshot() TransactionView {
	return newTransactionView(&tx.state)
}

func (tx *transaction) bucket(kind domain.Kind) (*bucket, error) {
	b, ok := tx.state.resources[kind]
	if !ok {
		return nil, fmt.Errorf("unsupported resource kind %q", kind)
	}
	return b, nil
}

// CreateResource stores a new record, assigning id and timestamps.
func (tx *transaction) CreateResource(kind domain.Kind, r Resource) (Resource, error) {
	b, err := tx.bucket(kind)
	if err != nil {
		return Resource{}, err
	}
	if r.ID == "" {
		r.ID = tx.store.newID()
	}
	if _, exists := b.records[r.ID]; exists {
		return Resource{}, fmt.Errorf("%s %q already exists", kind, r.ID)
	}
	r.Kind = kind
	r.CreatedAt = tx.now
	r.UpdatedAt = tx.now
	b.records[r.ID] = r.Clone()
	b.order = append(b.order, r.ID)
	return r.Clone(), nil
}

// UpdateResource mutates a record using the provided mutator. Identity and
// creation time are preserved whatever the mutator does.
func (tx *transaction) UpdateResource(kind domain.Kind, id string, mutator func(*Resource) error) (Resource, error) {
	b, err := tx.bucket(kind)
	if err != nil {
		return Resource{}, err
	}
	current, ok := b.records[id]
	if !ok {
		return Resource{}, domain.NotFoundError{Kind: kind, ID: id}
	}
	current = current.Clone()
	createdAt := current.CreatedAt
	if err := mutator(&current); err != nil {
		return Resource{}, err
	}
	current.ID = id
	current.Kind = kind
	current.CreatedAt = createdAt
	current.UpdatedAt = tx.now
	b.records[id] = current.Clone()
	return current.Clone(), nil
}

// DeleteResource removes a record from the transaction state.
func (tx *transaction) DeleteResource(kind domain.Kind, id string) error {
	b, err := tx.bucket(kind)
	if err != nil {
		return err
	}
	if _, ok := b.records[id]; !ok {
		return domain.NotFoundError{Kind: kind, ID: id}
	}
	delete(b.records, id)
	for i, existing := range b.order {
		if existing == id {
			b.order = append(b.order[:i:i], b.order[i+1:]...)
			break
		}
	}
	return nil
}

// CreateContactMessage appends a contact message.
func (tx *transaction) CreateContactMessage(m ContactMessage) (ContactMessage, error) {
	if m.ID == "" {
		m.ID = tx.store.newID()
	}
	for _, existing := range tx.state.contacts {
		if existing.ID == m.ID {
			return ContactMessage{}, fmt.Errorf("contact message %q already exists", m.ID)
		}
	}
	m.CreatedAt = tx.now
	tx.state.contacts = append(tx.state.contacts, m)
	return m, nil
}
