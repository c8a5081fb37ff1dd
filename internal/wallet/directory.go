package wallet

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	xerrors "AgentFleet-Chain/internal/errors"
	"AgentFleet-Chain/internal/keyvault"
	"AgentFleet-Chain/internal/ledger"
)

// Identity is an agent key pair unlocked from the directory. The private key
// never leaves this struct; callers sign through it.
type Identity struct {
	AgentID   string
	PublicKey ed25519.PublicKey

	private ed25519.PrivateKey
}

// Address returns the hex form of the public key used on the wire.
func (id *Identity) Address() string {
	return fmt.Sprintf("0x%x", []byte(id.PublicKey))
}

// Sign signs the serialized transaction message.
func (id *Identity) Sign(message []byte) []byte {
	return ed25519.Sign(id.private, message)
}

// Directory is the single source of truth for agent key material. It loads an
// existing encrypted record or creates one on first use, never both.
type Directory struct {
	dir        string
	passphrase string
	client     ledger.Client

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewDirectory creates a wallet directory over dir. The passphrase unlocks
// every record; a missing passphrase is a configuration failure.
func NewDirectory(dir, passphrase string, client ledger.Client) (*Directory, error) {
	if passphrase == "" {
		return nil, xerrors.New(xerrors.CodeConfigurationFailure, "keystore passphrase is empty")
	}
	return &Directory{
		dir:        dir,
		passphrase: passphrase,
		client:     client,
		locks:      make(map[string]*sync.Mutex),
	}, nil
}

// PathFor returns the keystore file path for an agent identifier.
func (d *Directory) PathFor(agentID string) string {
	return filepath.Join(d.dir, agentID+".json")
}

// lockFor serializes creation per identifier so concurrent Ensure calls can
// never produce divergent key material for the same agent.
func (d *Directory) lockFor(agentID string) *sync.Mutex {
	d.mu.Lock()
	defer d.mu.Unlock()
	lock, ok := d.locks[agentID]
	if !ok {
		lock = &sync.Mutex{}
		d.locks[agentID] = lock
	}
	return lock
}

// Ensure loads the identity for agentID, generating and persisting a fresh
// key pair when no record exists yet. An existing but unreadable record is
// fatal; it is never silently regenerated, since that would orphan any funds
// already held by the prior key.
func (d *Directory) Ensure(agentID string) (*Identity, error) {
	if agentID == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "agent id is empty")
	}

	lock := d.lockFor(agentID)
	lock.Lock()
	defer lock.Unlock()

	path := d.PathFor(agentID)
	if _, err := os.Stat(path); err == nil {
		return d.load(agentID, path)
	} else if !os.IsNotExist(err) {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "stat keystore",
			xerrors.WithMetadata("agent", agentID))
	}

	return d.create(agentID, path)
}

func (d *Directory) load(agentID, path string) (*Identity, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "read keystore",
			xerrors.WithMetadata("agent", agentID))
	}

	var record keyvault.Record
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeUnlockFailure, err, "parse keystore",
			xerrors.WithMetadata("agent", agentID))
	}

	secret, err := keyvault.Decrypt(&record, d.passphrase)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeUnlockFailure, err, "unlock keystore",
			xerrors.WithMetadata("agent", agentID))
	}
	if len(secret) != ed25519.PrivateKeySize {
		return nil, xerrors.New(xerrors.CodeUnlockFailure,
			fmt.Sprintf("unexpected key length %d", len(secret)),
			xerrors.WithMetadata("agent", agentID))
	}

	private := ed25519.PrivateKey(secret)
	return &Identity{
		AgentID:   agentID,
		PublicKey: private.Public().(ed25519.PublicKey),
		private:   private,
	}, nil
}

func (d *Directory) create(agentID, path string) (*Identity, error) {
	public, private, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeCryptoFailure, err, "generate key pair")
	}

	record, err := keyvault.Encrypt(private, d.passphrase)
	if err != nil {
		return nil, err
	}

	raw, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "encode keystore")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "create keystore directory")
	}
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "write keystore",
			xerrors.WithMetadata("agent", agentID))
	}

	return &Identity{AgentID: agentID, PublicKey: public, private: private}, nil
}

// Balance is a live pass-through to the ledger client, never cached.
func (d *Directory) Balance(ctx context.Context, address string) (uint64, error) {
	if d.client == nil {
		return 0, xerrors.New(xerrors.CodeConfigurationFailure, "no ledger client configured")
	}
	return d.client.GetBalance(ctx, address)
}
