package wallet

import (
	"bytes"
	"crypto/ed25519"
	"os"
	"path/filepath"
	"sync"
	"testing"

	xerrors "AgentFleet-Chain/internal/errors"
)

func newTestDirectory(t *testing.T, passphrase string) *Directory {
	t.Helper()
	dir, err := NewDirectory(t.TempDir(), passphrase, nil)
	if err != nil {
		t.Fatalf("new directory: %v", err)
	}
	return dir
}

func TestEnsureCreatesThenReloads(t *testing.T) {
	dir := newTestDirectory(t, "test passphrase")

	first, err := dir.Ensure("agent-001")
	if err != nil {
		t.Fatalf("ensure create: %v", err)
	}
	if _, err := os.Stat(dir.PathFor("agent-001")); err != nil {
		t.Fatalf("keystore file not persisted: %v", err)
	}

	second, err := dir.Ensure("agent-001")
	if err != nil {
		t.Fatalf("ensure reload: %v", err)
	}
	if !bytes.Equal(first.PublicKey, second.PublicKey) {
		t.Fatal("reload produced a different key pair")
	}
	if first.Address() != second.Address() {
		t.Fatalf("address mismatch: %s vs %s", first.Address(), second.Address())
	}
}

func TestEnsureConcurrentSameIdentifier(t *testing.T) {
	dir := newTestDirectory(t, "test passphrase")

	const workers = 8
	addresses := make([]string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			id, err := dir.Ensure("agent-007")
			if err != nil {
				t.Errorf("ensure: %v", err)
				return
			}
			addresses[slot] = id.Address()
		}(i)
	}
	wg.Wait()

	for i := 1; i < workers; i++ {
		if addresses[i] != addresses[0] {
			t.Fatalf("divergent key material: %s vs %s", addresses[i], addresses[0])
		}
	}
}

func TestEnsureWrongPassphraseIsFatal(t *testing.T) {
	base := t.TempDir()

	dir, err := NewDirectory(base, "right passphrase", nil)
	if err != nil {
		t.Fatalf("new directory: %v", err)
	}
	if _, err := dir.Ensure("agent-001"); err != nil {
		t.Fatalf("ensure: %v", err)
	}

	wrong, err := NewDirectory(base, "wrong passphrase", nil)
	if err != nil {
		t.Fatalf("new directory: %v", err)
	}
	_, err = wrong.Ensure("agent-001")
	if err == nil {
		t.Fatal("expected unlock failure, record must not be regenerated")
	}
	if xerrors.CodeOf(err) != xerrors.CodeUnlockFailure {
		t.Fatalf("unexpected error code: %s", xerrors.CodeOf(err))
	}
}

func TestEnsureCorruptKeystoreIsFatal(t *testing.T) {
	base := t.TempDir()
	dir, err := NewDirectory(base, "passphrase", nil)
	if err != nil {
		t.Fatalf("new directory: %v", err)
	}
	if err := os.MkdirAll(base, 0o700); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(base, "agent-001.json"), []byte("{not json"), 0o600); err != nil {
		t.Fatalf("write corrupt keystore: %v", err)
	}

	if _, err := dir.Ensure("agent-001"); err == nil {
		t.Fatal("expected failure on corrupt keystore")
	}
}

func TestEmptyPassphraseRejected(t *testing.T) {
	if _, err := NewDirectory(t.TempDir(), "", nil); err == nil {
		t.Fatal("expected configuration failure for empty passphrase")
	}
}

func TestSignVerifiesAgainstPublicKey(t *testing.T) {
	dir := newTestDirectory(t, "passphrase")
	id, err := dir.Ensure("agent-002")
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}

	message := []byte("transaction message bytes")
	sig := id.Sign(message)
	if !ed25519.Verify(id.PublicKey, message, sig) {
		t.Fatal("signature does not verify against identity public key")
	}
}
