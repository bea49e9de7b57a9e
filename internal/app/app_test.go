package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/TeamViewMore/Poksin-Webcam/internal/config"
	"github.com/TeamViewMore/Poksin-Webcam/internal/model"
	"github.com/TeamViewMore/Poksin-Webcam/internal/repository"
	"github.com/TeamViewMore/Poksin-Webcam/internal/service/storage"
)

func TestOpenStores_SQLite(t *testing.T) {
	cfg := &config.Config{DatabasePath: filepath.Join(t.TempDir(), "nested", "evidence.db")}

	stores, err := OpenStores(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Failed to open stores: %v", err)
	}
	defer stores.Close()

	cats, err := repository.ResolveCategories(context.Background(), stores.Categories, "WEBCAM", "VIDEO", true)
	if err != nil {
		t.Fatalf("Failed to resolve categories: %v", err)
	}
	if cats.ID(model.CategorySessionScoped) == 0 || cats.ID(model.CategorySingleShot) == 0 {
		t.Errorf("Expected both categories to be created, got %+v", cats)
	}
}

func TestOpenObjectStore(t *testing.T) {
	cfg := &config.Config{StorageBackend: "local", DatabasePath: filepath.Join(t.TempDir(), "evidence.db")}

	store, err := OpenObjectStore(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	local, ok := store.(*storage.LocalStore)
	if !ok {
		t.Fatalf("Expected *storage.LocalStore, got %T", store)
	}
	if local.Dir() != cfg.MediaDirectory() {
		t.Errorf("Expected media directory %s, got %s", cfg.MediaDirectory(), local.Dir())
	}

	cfg.StorageBackend = "ftp"
	if _, err := OpenObjectStore(context.Background(), cfg); err == nil {
		t.Error("Expected error for unknown backend")
	}
}
