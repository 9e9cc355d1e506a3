// Package storage writes and reads chain exports. An export is an audit
// dump of the ledger at one point in time; the live ledger is never
// loaded back from it.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"voting-ledger/authority"
	"voting-ledger/blockchain/ledger"
	"voting-ledger/models"
)

// ExportVersion is bumped whenever the export layout changes.
const ExportVersion = 1

var ErrUnsupportedVersion = errors.New("unsupported export version")

type Export struct {
	Version       int                    `json:"version"`
	ExportedAt    time.Time              `json:"exported_at"`
	Difficulty    int                    `json:"difficulty"`
	HashAlgorithm models.HashAlgorithm   `json:"hash_algorithm"`
	Blocks        []models.Block         `json:"blocks"`
	Attestation   *authority.Attestation `json:"attestation,omitempty"`
}

// Verify re-runs chain validation over the exported blocks and, when the
// export carries one, checks the attestation against the last block.
func (e *Export) Verify() error {
	if err := ledger.VerifyBlocks(e.Blocks, e.Difficulty, e.HashAlgorithm); err != nil {
		return err
	}
	if e.Attestation != nil {
		return authority.VerifyChain(e.Attestation, e.Blocks)
	}
	return nil
}

// WriteChain writes exp as indented JSON. The file is written to a
// temporary path first and renamed into place.
func WriteChain(path string, exp *Export) error {
	if len(exp.Blocks) == 0 {
		return fmt.Errorf("cannot save empty chain")
	}
	if exp.Version == 0 {
		exp.Version = ExportVersion
	}
	if exp.ExportedAt.IsZero() {
		exp.ExportedAt = time.Now().UTC()
	}

	data, err := json.MarshalIndent(exp, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal chain: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write chain file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to save chain file: %w", err)
	}
	return nil
}

// ReadChain loads an export written by WriteChain. It does not validate
// the chain; call Verify for that.
func ReadChain(path string) (*Export, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var exp Export
	if err := json.Unmarshal(data, &exp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal chain %s: %w", path, err)
	}
	if exp.Version != ExportVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, exp.Version)
	}
	if exp.HashAlgorithm, err = models.ParseHashAlgorithm(string(exp.HashAlgorithm)); err != nil {
		return nil, err
	}
	return &exp, nil
}
