package local

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"receipts-backend/internal/shared/storage/object"
)

func TestSaveOpenListDelete(t *testing.T) {
	ctx := context.Background()
	store := New(t.TempDir())

	if _, err := store.SaveWithKey(ctx, "receipts/b.pdf", "application/pdf", strings.NewReader("bbb")); err != nil {
		t.Fatalf("SaveWithKey: %v", err)
	}
	if _, err := store.SaveWithKey(ctx, "receipts/a.pdf", "application/pdf", strings.NewReader("a")); err != nil {
		t.Fatalf("SaveWithKey: %v", err)
	}
	if _, err := store.SaveWithKey(ctx, "analysis-cache/receipts.json", "application/json", strings.NewReader("{}")); err != nil {
		t.Fatalf("SaveWithKey: %v", err)
	}

	infos, err := store.List(ctx, "receipts")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(infos) != 2 || infos[0].Key != "receipts/a.pdf" || infos[1].Key != "receipts/b.pdf" {
		t.Fatalf("unexpected listing %+v", infos)
	}
	if infos[1].SizeBytes != 3 {
		t.Fatalf("expected size 3, got %d", infos[1].SizeBytes)
	}

	rc, err := store.Open(ctx, "receipts/b.pdf")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "bbb" {
		t.Fatalf("unexpected content %q", data)
	}

	if err := store.Delete(ctx, "receipts/b.pdf"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Open(ctx, "receipts/b.pdf"); !errors.Is(err, object.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestListMissingPrefixIsEmpty(t *testing.T) {
	store := New(t.TempDir())
	infos, err := store.List(context.Background(), "nothing-here")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(infos) != 0 {
		t.Fatalf("expected no objects, got %+v", infos)
	}
}

func TestRejectsTraversal(t *testing.T) {
	store := New(t.TempDir())
	if _, err := store.Open(context.Background(), "../secret"); err == nil {
		t.Fatal("expected traversal to be rejected")
	}
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store := New(dir)
	if _, err := store.SaveWithKey(context.Background(), "c.json", "application/json", strings.NewReader("{}")); err != nil {
		t.Fatalf("SaveWithKey: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "c.json" {
		t.Fatalf("unexpected directory contents %v", entries)
	}
	if _, err := os.Stat(filepath.Join(dir, "c.json")); err != nil {
		t.Fatalf("Stat: %v", err)
	}
}
