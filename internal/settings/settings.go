// Package settings persists the terminal's local preferences as a small JSON
// file under the data directory. Losing the file is harmless; defaults apply.
package settings

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"bumdespos/terminal/internal/domain"
)

const fileName = "settings.json"

// Defaults returns the settings a fresh terminal starts with.
func Defaults() domain.Settings {
	return domain.Settings{
		ReceiptWidthMM: 80,
		StoreName:      "BUMDes Mart",
	}
}

// Store reads and writes the settings file. Safe for concurrent use.
type Store struct {
	mu   sync.Mutex
	path string
}

func NewStore(dataDir string) *Store {
	return &Store{path: filepath.Join(dataDir, fileName)}
}

// Load returns the persisted settings merged over defaults. A missing or
// unreadable file yields defaults without error so the terminal always starts.
func (s *Store) Load() domain.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

func (s *Store) read() domain.Settings {
	cfg := Defaults()
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return cfg
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return Defaults()
	}
	if cfg.ReceiptWidthMM <= 0 {
		cfg.ReceiptWidthMM = Defaults().ReceiptWidthMM
	}
	return cfg
}

// Save writes the settings atomically and returns the stored value.
func (s *Store) Save(cfg domain.Settings) (domain.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cfg.ReceiptWidthMM <= 0 {
		cfg.ReceiptWidthMM = Defaults().ReceiptWidthMM
	}
	raw, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return domain.Settings{}, err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return domain.Settings{}, err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return domain.Settings{}, err
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return domain.Settings{}, err
	}
	return cfg, nil
}
