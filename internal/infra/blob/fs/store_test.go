package fs

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"buildcore/internal/blob/core"
)

func newTempStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(t.TempDir(), "http://localhost:8080/media")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return store
}

func TestStore_PutGetHeadListDelete(t *testing.T) { //nolint:cyclop
	ctx := context.Background()
	store := newTempStore(t)
	info, err := store.Put(ctx, "project/test.png", bytes.NewReader([]byte("hello")), core.PutOptions{ContentType: "image/png", Metadata: map[string]string{"k": "v"}})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Key != "project/test.png" || info.Size != 5 {
		t.Fatalf("unexpected info %+v", info)
	}
	if info.URL != "http://localhost:8080/media/project/test.png" {
		t.Fatalf("unexpected url %s", info.URL)
	}
	if _, err := store.Put(ctx, "project/test.png", bytes.NewReader([]byte("x")), core.PutOptions{}); err == nil {
		t.Fatalf("expected duplicate failure")
	}
	h, err := store.Head(ctx, "project/test.png")
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	g, rc, err := store.Get(ctx, "project/test.png")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	b, _ := io.ReadAll(rc)
	if err := rc.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if string(b) != "hello" || g.ETag != h.ETag || g.ContentType != "image/png" {
		t.Fatalf("unexpected get artifacts")
	}
	list, err := store.List(ctx, "project/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].Key != "project/test.png" {
		t.Fatalf("unexpected list %+v", list)
	}
	ok, err := store.Delete(ctx, "project/test.png")
	if err != nil || !ok {
		t.Fatalf("delete: %v %v", ok, err)
	}
	ok, err = store.Delete(ctx, "project/test.png")
	if err != nil || ok {
		t.Fatalf("second delete should be false")
	}
}

func TestStore_DefaultsAndDriver(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "root")
	store, err := New(dir, "")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if store.Driver() != core.DriverFilesystem {
		t.Fatalf("expected filesystem driver")
	}
	info, err := store.Put(context.Background(), "a.png", bytes.NewReader([]byte("x")), core.PutOptions{})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.URL != DefaultBaseURL+"/a.png" {
		t.Fatalf("unexpected default url %s", info.URL)
	}
}

func TestStore_PathTraversal(t *testing.T) {
	ctx := context.Background()
	store := newTempStore(t)
	for _, key := range []string{"", "../escape.txt", "/abs.txt", "a/../b", "sneaky.meta"} {
		if _, err := store.Put(ctx, key, bytes.NewReader([]byte("x")), core.PutOptions{}); !errors.Is(err, core.ErrInvalidKey) {
			t.Fatalf("expected ErrInvalidKey for key %q, got %v", key, err)
		}
		if _, _, err := store.Get(ctx, key); !errors.Is(err, core.ErrInvalidKey) {
			t.Fatalf("expected ErrInvalidKey on get for key %q, got %v", key, err)
		}
	}
}

func TestStore_MissingKeysWrapNotFound(t *testing.T) {
	ctx := context.Background()
	store := newTempStore(t)
	if _, _, err := store.Get(ctx, "does/not/exist"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found on get, got %v", err)
	}
	if _, err := store.Head(ctx, "does/not/exist"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found on head, got %v", err)
	}
	list, err := store.List(ctx, "other/")
	if err != nil || len(list) != 0 {
		t.Fatalf("expected empty list: %v %d", err, len(list))
	}
}

func TestStore_MetadataPersistence(t *testing.T) {
	ctx := context.Background()
	store := newTempStore(t)
	if _, err := store.Put(ctx, "meta/data.bin", bytes.NewReader([]byte("abc")), core.PutOptions{ContentType: "application/octet-stream", Metadata: map[string]string{"a": "1"}}); err != nil {
		t.Fatalf("put: %v", err)
	}
	dataPath, metaPath, _ := store.pathFor("meta/data.bin")
	if _, err := os.Stat(dataPath); err != nil {
		t.Fatalf("expected data path: %v", err)
	}
	b, err := os.ReadFile(metaPath)
	if err != nil {
		t.Fatalf("read meta: %v", err)
	}
	if !bytes.Contains(b, []byte("application/octet-stream")) {
		t.Fatalf("meta missing content type")
	}
	// Get meta-missing error path
	if err := os.Remove(metaPath); err != nil {
		t.Fatalf("rm meta: %v", err)
	}
	if _, _, err := store.Get(ctx, "meta/data.bin"); err == nil {
		t.Fatalf("expected get meta error")
	}
}

type errorReader struct{}

func (errorReader) Read(p []byte) (int, error) { return 0, errors.New("boom") }

func TestStore_PutErrorBranchesLeaveNothingBehind(t *testing.T) {
	store := newTempStore(t)
	if _, err := store.Put(context.Background(), "bad.bin", errorReader{}, core.PutOptions{}); err == nil {
		t.Fatalf("expected copy error")
	}
	if _, err := store.Head(context.Background(), "bad.bin"); err == nil {
		t.Fatalf("failed put must not leave metadata")
	}
	old := jsonMarshal
	jsonMarshal = func(v any) ([]byte, error) { return nil, errors.New("marsh") }
	defer func() { jsonMarshal = old }()
	if _, err := store.Put(context.Background(), "x.png", bytes.NewReader([]byte("x")), core.PutOptions{}); err == nil {
		t.Fatalf("expected marshal error")
	}
	dataPath, _, _ := store.pathFor("x.png")
	if _, err := os.Stat(dataPath); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("data file must not exist after failed put")
	}
}

func TestStore_ListCorruptMeta(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir, "")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	data := filepath.Join(dir, "bad.txt")
	if err := os.WriteFile(data, []byte("data"), 0o644); err != nil {
		t.Fatalf("write data: %v", err)
	}
	if err := os.WriteFile(data+".meta", []byte("{"), 0o644); err != nil {
		t.Fatalf("write meta: %v", err)
	}
	if _, err := store.List(context.Background(), ""); err == nil {
		t.Fatalf("expected list error on corrupt meta")
	}
}

func TestStore_ListOrderedByKey(t *testing.T) {
	store := newTempStore(t)
	ctx := context.Background()
	for i := 2; i >= 0; i-- {
		k := "service/f" + strconv.Itoa(i) + ".png"
		if _, err := store.Put(ctx, k, bytes.NewReader([]byte("data")), core.PutOptions{}); err != nil {
			t.Fatalf("put %s: %v", k, err)
		}
	}
	list, err := store.List(ctx, "service/")
	if err != nil || len(list) != 3 {
		t.Fatalf("list: %v len=%d", err, len(list))
	}
	for i, info := range list {
		if info.Key != "service/f"+strconv.Itoa(i)+".png" {
			t.Fatalf("unexpected order %v", list)
		}
	}
}
