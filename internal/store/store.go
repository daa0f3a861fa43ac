// Package store provides crash-safe auction slot persistence using JSON files.
//
// Each enabled token's slot is stored as a separate file: slot_<address>.json.
// Writes use atomic file replacement (write to .tmp, then rename) to prevent
// corruption from partial writes or crashes mid-save. The auction engine
// calls SaveSlot after each state transition, DeleteSlot when a token is
// disabled, and LoadSlots on startup to restore in-flight auctions.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"dutch-auctioneer/pkg/types"
)

const (
	slotPrefix = "slot_"
	slotSuffix = ".json"
)

// Store persists slot snapshots to JSON files in a designated directory.
// All operations are mutex-protected to prevent concurrent file corruption.
type Store struct {
	dir string     // directory containing slot_*.json files
	mu  sync.Mutex // serializes all file operations
}

// Open creates a store backed by the given directory.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Close is a no-op for file-based storage.
func (s *Store) Close() error {
	return nil
}

func (s *Store) slotPath(tok common.Address) string {
	return filepath.Join(s.dir, slotPrefix+strings.ToLower(tok.Hex())+slotSuffix)
}

// SaveSlot atomically persists one token's slot snapshot. It writes to a
// .tmp file first, then renames over the target to ensure the file is never
// left in a partial state (crash-safe).
func (s *Store) SaveSlot(snap types.SlotSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal slot: %w", err)
	}

	path := s.slotPath(snap.Token)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write slot: %w", err)
	}
	return os.Rename(tmp, path)
}

// DeleteSlot removes a token's slot file. Deleting a slot that was never
// saved is not an error.
func (s *Store) DeleteSlot(tok common.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.slotPath(tok)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete slot: %w", err)
	}
	return nil
}

// LoadSlots restores every persisted slot from disk, sorted by token address
// so the enabled index is rebuilt in a stable order. An empty directory
// yields an empty slice.
func (s *Store) LoadSlots() ([]types.SlotSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read store dir: %w", err)
	}

	var snaps []types.SlotSnapshot
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, slotPrefix) || !strings.HasSuffix(name, slotSuffix) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, name))
		if err != nil {
			return nil, fmt.Errorf("read slot %s: %w", name, err)
		}
		var snap types.SlotSnapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			return nil, fmt.Errorf("unmarshal slot %s: %w", name, err)
		}
		snaps = append(snaps, snap)
	}
	sort.Slice(snaps, func(i, j int) bool {
		return snaps[i].Token.Hex() < snaps[j].Token.Hex()
	})
	return snaps, nil
}
