// Package store provides crash-safe checkpoint persistence using JSON files.
//
// A single checkpoint captures the CapitalAllocator's bankroll and pending
// reservations plus every market still in-flight (Executing or
// Reconciling) in the MarketStateMachine — the two pieces of state that
// must survive a restart without double-spending capital or losing track
// of an order in flight. Writes use atomic file replacement (write to
// .tmp, then rename) to prevent corruption from partial writes or crashes
// mid-save.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ChudiNnorukam/predictive-edge-bot/pkg/types"
)

// Checkpoint is the full restart-recovery snapshot (spec §15 supplemented
// feature: crash-safe allocator/FSM persistence).
type Checkpoint struct {
	SavedAt      time.Time                  `json:"saved_at"`
	Bankroll     decimal.Decimal            `json:"bankroll"`
	Reservations map[string]decimal.Decimal `json:"reservations"`
	InFlight     []types.MarketSnapshot     `json:"in_flight"`
}

// Store persists the checkpoint to a JSON file in a designated directory.
// All operations are mutex-protected to prevent concurrent file corruption.
type Store struct {
	dir string
	mu  sync.Mutex
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

func (s *Store) path() string {
	return filepath.Join(s.dir, "checkpoint.json")
}

// SaveCheckpoint atomically persists the current checkpoint. It writes to
// a .tmp file first, then renames over the target so the file is never
// left in a partial state.
func (s *Store) SaveCheckpoint(cp Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	path := s.path()
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	return os.Rename(tmp, path)
}

// LoadCheckpoint restores the last saved checkpoint from disk. Returns
// nil, nil if no checkpoint has ever been saved (fresh start).
func (s *Store) LoadCheckpoint() (*Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("unmarshal checkpoint: %w", err)
	}
	return &cp, nil
}
