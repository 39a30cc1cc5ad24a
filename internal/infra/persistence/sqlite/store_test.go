package sqlite

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"buildcore/pkg/domain"
)

func TestStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "site.db")
	store, err := NewStore(ctx, path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if store.Path() != path || store.DB() == nil {
		t.Fatalf("unexpected accessors")
	}
	var created domain.Resource
	err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		var err error
		created, err = tx.CreateResource(domain.KindService, domain.Resource{Title: "Roofing", Description: "Tiles"})
		if err != nil {
			return err
		}
		_, err = tx.CreateContactMessage(domain.ContactMessage{Name: "Sam", Email: "sam@example.com", Message: "hello"})
		return err
	})
	if err != nil {
		t.Fatalf("tx: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := NewStore(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = reopened.Close() }()
	err = reopened.View(ctx, func(v domain.TransactionView) error {
		got, ok := v.FindResource(domain.KindService, created.ID)
		if !ok || got.Title != "Roofing" || !got.CreatedAt.Equal(created.CreatedAt) {
			t.Fatalf("service not restored: %+v", got)
		}
		if len(v.ListContactMessages()) != 1 {
			t.Fatalf("contact message not restored")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestStore_FailedTransactionNotPersisted(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "site.db")
	store, err := NewStore(ctx, path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	boom := errors.New("boom")
	err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, _ = tx.CreateResource(domain.KindTeam, domain.Resource{Name: "Jane"})
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	_ = store.Close()
	reopened, err := NewStore(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = reopened.Close() }()
	_ = reopened.View(ctx, func(v domain.TransactionView) error {
		if n := len(v.ListResources(domain.KindTeam)); n != 0 {
			t.Fatalf("rolled back record persisted (%d)", n)
		}
		return nil
	})
}

func TestStore_SnapshotFailureDiscardsTransaction(t *testing.T) {
	ctx := context.Background()
	store, err := NewStore(ctx, filepath.Join(t.TempDir(), "site.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.CreateResource(domain.KindService, domain.Resource{Title: "Roofing"})
		return err
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := store.DB().Close(); err != nil {
		t.Fatalf("close db: %v", err)
	}
	err = store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, err := tx.CreateResource(domain.KindService, domain.Resource{Title: "Plumbing"})
		return err
	})
	if err == nil {
		t.Fatalf("expected snapshot write to fail on closed db")
	}
	_ = store.View(ctx, func(v domain.TransactionView) error {
		list := v.ListResources(domain.KindService)
		if len(list) != 1 || list[0].Title != "Roofing" {
			t.Fatalf("unpersisted record visible: %+v", list)
		}
		return nil
	})
}

func TestStore_CorruptBucketFailsOpen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "site.db")
	store, err := NewStore(ctx, path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := store.DB().ExecContext(ctx, `INSERT INTO state(bucket,payload) VALUES(?,?)`, "project", []byte("{oops")); err != nil {
		t.Fatalf("seed corrupt row: %v", err)
	}
	_ = store.Close()
	if _, err := NewStore(ctx, path); err == nil {
		t.Fatalf("expected decode error on corrupt bucket")
	}
}

func TestStore_InvalidDirectory(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := NewStore(context.Background(), filepath.Join(blocker, "site.db")); err == nil {
		t.Fatalf("expected error when parent is a file")
	}
}
