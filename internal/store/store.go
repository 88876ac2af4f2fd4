// Package store persists the ledger as a single snapshot under a fixed key.
// Every driver saves the whole position collection and loads the last one saved.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/yourusername/quant-ninja/internal/config"
	"github.com/yourusername/quant-ninja/internal/models"
)

// DefaultKey is the storage key the ledger snapshot lives under
const DefaultKey = "ninja_bets"

// ErrCorruptSnapshot indicates the stored payload could not be decoded
var ErrCorruptSnapshot = errors.New("corrupt ledger snapshot")

// Store saves and loads ledger snapshots
type Store interface {
	// Load returns the last saved positions, newest first. A missing snapshot
	// is an empty ledger, not an error.
	Load(ctx context.Context) ([]models.Position, error)
	// Save replaces the snapshot
	Save(ctx context.Context, positions []models.Position) error
	Ping(ctx context.Context) error
	Close() error
	Driver() string
}

// Open creates the store selected by cfg.Driver
func Open(ctx context.Context, cfg *config.StorageConfig) (Store, error) {
	key := cfg.Key
	if key == "" {
		key = DefaultKey
	}

	switch cfg.Driver {
	case "file":
		return NewFileStore(cfg.Path)
	case "sqlite":
		return NewSQLiteStore(ctx, cfg.Path, key)
	case "postgres":
		return NewPostgresStore(ctx, cfg.PostgresDSN, key)
	case "redis":
		return NewRedisStore(ctx, RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, key)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// encodeSnapshot serializes positions as a JSON array
func encodeSnapshot(positions []models.Position) ([]byte, error) {
	if positions == nil {
		positions = []models.Position{}
	}
	data, err := json.Marshal(positions)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return data, nil
}

// decodeSnapshot parses a stored payload. Empty payloads decode to no positions.
func decodeSnapshot(data []byte) ([]models.Position, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}

	var positions []models.Position
	if err := json.Unmarshal(data, &positions); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}

	seen := make(map[string]struct{}, len(positions))
	for i, p := range positions {
		if p.ID == "" {
			return nil, fmt.Errorf("%w: position %d has no id", ErrCorruptSnapshot, i)
		}
		if !p.Status.IsValid() {
			return nil, fmt.Errorf("%w: position %s has status %q", ErrCorruptSnapshot, p.ID, p.Status)
		}
		if _, dup := seen[p.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate position id %s", ErrCorruptSnapshot, p.ID)
		}
		seen[p.ID] = struct{}{}
	}
	return positions, nil
}
