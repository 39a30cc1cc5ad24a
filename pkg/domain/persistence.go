package domain

import "context"

// Transaction exposes the mutations a persistence implementation must
// support within an atomic scope.
type Transaction interface {
	Snapshot() TransactionView
	CreateResource(kind Kind, r Resource) (Resource, error)
	UpdateResource(kind Kind, id string, mutator func(*Resource) error) (Resource, error)
	DeleteResource(kind Kind, id string) error
	CreateContactMessage(ContactMessage) (ContactMessage, error)
}

// TransactionView provides read-only access to a consistent snapshot.
type TransactionView interface {
	ListResources(kind Kind) []Resource
	FindResource(kind Kind, id string) (Resource, bool)
	ListContactMessages() []ContactMessage
}

// PersistentStore is a minimal abstraction over durable backends.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) error
	View(ctx context.Context, fn func(TransactionView) error) error
}
