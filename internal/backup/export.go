// Package backup reads and writes export snapshots as files, optionally
// sealed with a passphrase (Argon2id key derivation, AES-256-GCM).
package backup

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/natefinch/atomic"
	"github.com/tailscale/hujson"

	"github.com/dukerupert/larder/internal/model"
)

// FileName returns the export file name for an export taken at t.
func FileName(t time.Time, sealed bool) string {
	name := fmt.Sprintf("larder-export-%s.json", t.UTC().Format("2006-01-02T150405Z"))
	if sealed {
		name += ".enc"
	}
	return name
}

// Encode serializes snap, sealing it when passphrase is not empty.
func Encode(snap model.Snapshot, passphrase string) ([]byte, error) {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	if passphrase == "" {
		return data, nil
	}
	return Seal(data, passphrase)
}

// Decode parses an export produced by Encode. Plain exports may have been
// edited by hand, so comments and trailing commas are accepted.
func Decode(data []byte, passphrase string) (model.Snapshot, error) {
	if IsSealed(data) {
		if passphrase == "" {
			return model.Snapshot{}, ErrPassphraseRequired
		}
		var err error
		if data, err = Open(data, passphrase); err != nil {
			return model.Snapshot{}, err
		}
	}

	std, err := hujson.Standardize(data)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("parse snapshot: %w", err)
	}
	var snap model.Snapshot
	if err := json.Unmarshal(std, &snap); err != nil {
		return model.Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}

// WriteFile atomically writes snap to path, creating the directory.
func WriteFile(path string, snap model.Snapshot, passphrase string) error {
	data, err := Encode(snap, passphrase)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create export directory: %w", err)
	}
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	return nil
}

// ReadFile reads an export written by WriteFile.
func ReadFile(path, passphrase string) (model.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Snapshot{}, fmt.Errorf("read export: %w", err)
	}
	return Decode(data, passphrase)
}
