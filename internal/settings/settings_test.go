package settings

import (
	"os"
	"path/filepath"
	"testing"

	"bumdespos/terminal/internal/domain"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	s := NewStore(t.TempDir())

	cfg := s.Load()
	if cfg.ReceiptWidthMM != 80 {
		t.Fatalf("expected default width 80, got %d", cfg.ReceiptWidthMM)
	}
	if cfg.StoreName == "" {
		t.Fatalf("expected default store name")
	}
}

func TestSaveThenLoadRoundTrip(t *testing.T) {
	s := NewStore(t.TempDir())

	saved, err := s.Save(domain.Settings{
		ReceiptWidthMM: 58,
		StoreName:      "Toko Desa",
		StoreAddress:   "Jl. Raya 2",
		StorePhone:     "0813",
	})
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if saved.ReceiptWidthMM != 58 {
		t.Fatalf("expected width 58, got %d", saved.ReceiptWidthMM)
	}

	got := s.Load()
	if got != saved {
		t.Fatalf("round trip mismatch: %+v vs %+v", got, saved)
	}
}

func TestSaveNormalizesWidth(t *testing.T) {
	s := NewStore(t.TempDir())

	saved, err := s.Save(domain.Settings{ReceiptWidthMM: 0, StoreName: "X"})
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if saved.ReceiptWidthMM != 80 {
		t.Fatalf("expected width normalized to 80, got %d", saved.ReceiptWidthMM)
	}
}

func TestLoadCorruptFileFallsBackToDefaults(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "settings.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("seed corrupt file: %v", err)
	}

	s := NewStore(dir)
	cfg := s.Load()
	if cfg.ReceiptWidthMM != 80 {
		t.Fatalf("expected defaults on corrupt file, got %+v", cfg)
	}
}
