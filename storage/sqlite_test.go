package storage

import (
	"context"
	"path/filepath"
	"testing"
)

func TestSqliteEmbeddingsSaveAndLoad(t *testing.T) {
	storage, err := NewSqliteInMemory()
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	defer storage.Close()

	ctx := context.Background()
	vectors := [][]float32{{1, 0, 0.5}, {-0.25, 2, 0}}

	if err := storage.SaveEmbeddings(ctx, "key-1", vectors); err != nil {
		t.Fatalf("SaveEmbeddings failed: %v", err)
	}

	loaded, ok, err := storage.LoadEmbeddings(ctx, "key-1")
	if err != nil {
		t.Fatalf("LoadEmbeddings failed: %v", err)
	}
	if !ok {
		t.Fatal("expected stored embeddings to be found")
	}
	if len(loaded) != 2 || len(loaded[1]) != 3 {
		t.Fatalf("unexpected shape: %v", loaded)
	}
	if loaded[1][0] != -0.25 || loaded[1][1] != 2 {
		t.Errorf("vector values not preserved: %v", loaded[1])
	}
}

func TestSqliteEmbeddingsMissingKey(t *testing.T) {
	storage, err := NewSqliteInMemory()
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	defer storage.Close()

	_, ok, err := storage.LoadEmbeddings(context.Background(), "absent")
	if err != nil {
		t.Fatalf("LoadEmbeddings failed: %v", err)
	}
	if ok {
		t.Error("expected missing key to report ok=false")
	}
}

func TestSqliteEmbeddingsOverwrite(t *testing.T) {
	storage, err := NewSqliteInMemory()
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	defer storage.Close()

	ctx := context.Background()
	if err := storage.SaveEmbeddings(ctx, "k", [][]float32{{1}, {2}, {3}}); err != nil {
		t.Fatalf("first save failed: %v", err)
	}
	if err := storage.SaveEmbeddings(ctx, "k", [][]float32{{9}}); err != nil {
		t.Fatalf("second save failed: %v", err)
	}

	loaded, ok, err := storage.LoadEmbeddings(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("LoadEmbeddings failed: ok=%v err=%v", ok, err)
	}
	if len(loaded) != 1 || loaded[0][0] != 9 {
		t.Errorf("expected overwritten set, got %v", loaded)
	}
}

func TestOpenEmbeddingCacheCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "emb")
	storage, err := OpenEmbeddingCache(dir)
	if err != nil {
		t.Fatalf("OpenEmbeddingCache failed: %v", err)
	}
	defer storage.Close()

	if err := storage.SaveEmbeddings(context.Background(), "k", [][]float32{{1, 2}}); err != nil {
		t.Fatalf("SaveEmbeddings failed: %v", err)
	}
}

func TestInMemoryStorageCopiesVectors(t *testing.T) {
	storage := NewInMemoryStorage()
	ctx := context.Background()

	vectors := [][]float32{{1, 2}}
	if err := storage.SaveEmbeddings(ctx, "k", vectors); err != nil {
		t.Fatalf("SaveEmbeddings failed: %v", err)
	}
	vectors[0][0] = 100

	loaded, ok, _ := storage.LoadEmbeddings(ctx, "k")
	if !ok || loaded[0][0] != 1 {
		t.Errorf("expected stored copy to be unaffected, got %v", loaded)
	}
}
