// Package state persists run-scoped facts that must survive process
// restarts: the mint identity and the derived account address of every
// agent. A single writer is assumed; concurrent processes sharing one store
// are unsupported.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	xerrors "AgentFleet-Chain/internal/errors"
)

const currentVersion = 1

// maxDecimals bounds mint precision so raw-unit arithmetic (10^decimals)
// stays inside uint64.
const maxDecimals = 18

// MintInfo identifies the token mint and its decimal precision.
type MintInfo struct {
	Address  string `json:"address"`
	Decimals uint8  `json:"decimals"`
}

// RunState is the durable document. ATAs maps agent identifiers to their
// derived account addresses for the mint.
type RunState struct {
	Version int               `json:"version"`
	Mint    *MintInfo         `json:"mint,omitempty"`
	ATAs    map[string]string `json:"atas"`
}

// NewRunState returns a fresh empty document.
func NewRunState() *RunState {
	return &RunState{Version: currentVersion, ATAs: map[string]string{}}
}

// SetMint records the mint once. A mint already present is never overwritten;
// the existing descriptor wins and the call reports whether it was applied.
func (s *RunState) SetMint(address string, decimals uint8) bool {
	if s.Mint != nil {
		return false
	}
	s.Mint = &MintInfo{Address: address, Decimals: decimals}
	return true
}

// Store is the load/save port for the run-state document.
type Store interface {
	Load() (*RunState, error)
	Save(*RunState) error
}

// FileStore keeps the document in a JSON file.
type FileStore struct {
	path string
}

// NewFileStore creates a store at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file location.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the document. A missing file yields a fresh empty default; an
// unsupported version is fatal.
func (s *FileStore) Load() (*RunState, error) {
	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return NewRunState(), nil
	}
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "read state file")
	}
	return decode(raw)
}

// Save rewrites the whole document. Called after every state-introducing
// event so a crash never leaves persisted facts behind in memory only.
func (s *FileStore) Save(state *RunState) error {
	raw, err := encode(state)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "create state directory")
	}
	if err := os.WriteFile(s.path, raw, 0o600); err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "write state file")
	}
	return nil
}

func decode(raw []byte) (*RunState, error) {
	var state RunState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "parse state document")
	}
	if state.Version != currentVersion {
		return nil, xerrors.New(xerrors.CodeStorageFailure,
			fmt.Sprintf("unsupported state version: %d", state.Version))
	}
	if state.Mint != nil && state.Mint.Decimals > maxDecimals {
		return nil, xerrors.New(xerrors.CodeStorageFailure,
			fmt.Sprintf("unsupported mint decimals: %d", state.Mint.Decimals))
	}
	if state.ATAs == nil {
		state.ATAs = map[string]string{}
	}
	return &state, nil
}

func encode(state *RunState) ([]byte, error) {
	raw, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "encode state document")
	}
	return raw, nil
}
