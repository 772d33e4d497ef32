package deid

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/astrahealth/deid/internal/platform/detect"
	"github.com/astrahealth/deid/internal/platform/seal"
)

func openBoltRepo(t *testing.T, sealer *seal.Sealer) *BoltRepository {
	t.Helper()
	repo, err := NewBoltRepository(filepath.Join(t.TempDir(), "mappings.db"), sealer)
	if err != nil {
		t.Fatalf("NewBoltRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestBoltRepository_PutGetDelete(t *testing.T) {
	repo := openBoltRepo(t, nil)
	ctx := context.Background()
	id := uuid.New()
	entries := []MappingEntry{
		{Placeholder: "[[EMAIL#1:1b9d6bcd]]", Value: "jane@example.com", Type: detect.EntityEmail},
	}

	if err := repo.Put(ctx, id, entries); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := repo.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got) != 1 || got[0].Value != "jane@example.com" || got[0].Type != detect.EntityEmail {
		t.Fatalf("unexpected entries: %v", got)
	}

	if err := repo.Delete(ctx, id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := repo.Get(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestBoltRepository_DuplicateID(t *testing.T) {
	repo := openBoltRepo(t, nil)
	ctx := context.Background()
	id := uuid.New()

	if err := repo.Put(ctx, id, nil); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := repo.Put(ctx, id, nil); !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("expected ErrDuplicateID, got %v", err)
	}
}

func TestBoltRepository_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mappings.db")
	ctx := context.Background()
	id := uuid.New()

	repo, err := NewBoltRepository(path, nil)
	if err != nil {
		t.Fatalf("NewBoltRepository: %v", err)
	}
	if err := repo.Put(ctx, id, []MappingEntry{{Placeholder: "[[NAME#1:00000000]]", Value: "Jane Doe", Type: detect.EntityName}}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	repo.Close()

	repo, err = NewBoltRepository(path, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer repo.Close()
	got, err := repo.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if len(got) != 1 || got[0].Value != "Jane Doe" {
		t.Fatalf("unexpected entries after reopen: %v", got)
	}
}

func TestBoltRepository_SealedAtRest(t *testing.T) {
	key := bytes.Repeat([]byte{0x42}, seal.KeySize)
	sealer, err := seal.New(key)
	if err != nil {
		t.Fatalf("seal.New: %v", err)
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "mappings.db")
	repo, err := NewBoltRepository(path, sealer)
	if err != nil {
		t.Fatalf("NewBoltRepository: %v", err)
	}
	ctx := context.Background()
	id := uuid.New()
	if err := repo.Put(ctx, id, []MappingEntry{{Placeholder: "[[NAME#1:00000000]]", Value: "Jane Doe", Type: detect.EntityName}}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := repo.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got[0].Value != "Jane Doe" {
		t.Fatalf("sealed round trip lost the value: %v", got)
	}
	repo.Close()

	// The raw file must not contain the cleartext value.
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read store file: %v", err)
	}
	if bytes.Contains(raw, []byte("Jane Doe")) {
		t.Fatal("cleartext value found in store file")
	}
}

func TestBoltRepository_SealedNeedsKey(t *testing.T) {
	key := bytes.Repeat([]byte{0x42}, seal.KeySize)
	sealer, err := seal.New(key)
	if err != nil {
		t.Fatalf("seal.New: %v", err)
	}

	path := filepath.Join(t.TempDir(), "mappings.db")
	repo, err := NewBoltRepository(path, sealer)
	if err != nil {
		t.Fatalf("NewBoltRepository: %v", err)
	}
	ctx := context.Background()
	id := uuid.New()
	if err := repo.Put(ctx, id, []MappingEntry{{Placeholder: "[[NAME#1:00000000]]", Value: "Jane Doe", Type: detect.EntityName}}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	repo.Close()

	// Reopening without the key must refuse to decode sealed sets.
	repo, err = NewBoltRepository(path, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer repo.Close()
	if _, err := repo.Get(ctx, id); err == nil {
		t.Fatal("expected error reading sealed mapping without a key")
	}
}
