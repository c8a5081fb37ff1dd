package keyvault

import (
	"bytes"
	"encoding/base64"
	"testing"

	xerrors "AgentFleet-Chain/internal/errors"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	secret := []byte("a rather secret 64 byte private key payload for round tripping")

	record, err := Encrypt(secret, "correct horse battery staple")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if record.Version != 1 || record.KDF != "scrypt" || record.Cipher != "aes-256-gcm" {
		t.Fatalf("unexpected envelope header: %+v", record)
	}

	plaintext, err := Decrypt(record, "correct horse battery staple")
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if !bytes.Equal(plaintext, secret) {
		t.Fatalf("round trip mismatch: got %q", plaintext)
	}
}

func TestDecryptWrongPassphrase(t *testing.T) {
	record, err := Encrypt([]byte("secret"), "passphrase-one")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	if _, err := Decrypt(record, "passphrase-two"); err == nil {
		t.Fatal("expected decryption failure with wrong passphrase")
	} else if xerrors.CodeOf(err) != xerrors.CodeCryptoFailure {
		t.Fatalf("unexpected error code: %s", xerrors.CodeOf(err))
	}
}

func TestEncryptNeverReusesSaltOrIV(t *testing.T) {
	first, err := Encrypt([]byte("secret"), "shared passphrase")
	if err != nil {
		t.Fatalf("encrypt first: %v", err)
	}
	second, err := Encrypt([]byte("secret"), "shared passphrase")
	if err != nil {
		t.Fatalf("encrypt second: %v", err)
	}

	if first.Salt == second.Salt {
		t.Fatal("salt reused across records")
	}
	if first.IV == second.IV {
		t.Fatal("iv reused across records")
	}
}

func TestDecryptTamperedRecord(t *testing.T) {
	record, err := Encrypt([]byte("tamper target"), "passphrase")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	flip := func(b64 string) string {
		raw, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		raw[0] ^= 0x01
		return base64.StdEncoding.EncodeToString(raw)
	}

	tamperedCT := *record
	tamperedCT.Ciphertext = flip(record.Ciphertext)
	if _, err := Decrypt(&tamperedCT, "passphrase"); err == nil {
		t.Fatal("expected failure on tampered ciphertext")
	}

	tamperedTag := *record
	tamperedTag.Tag = flip(record.Tag)
	if _, err := Decrypt(&tamperedTag, "passphrase"); err == nil {
		t.Fatal("expected failure on tampered tag")
	}
}

func TestDecryptTruncatedIVOrTag(t *testing.T) {
	record, err := Encrypt([]byte("truncation target"), "passphrase")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	truncate := func(b64 string) string {
		raw, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		return base64.StdEncoding.EncodeToString(raw[:len(raw)-1])
	}

	shortIV := *record
	shortIV.IV = truncate(record.IV)
	if _, err := Decrypt(&shortIV, "passphrase"); err == nil {
		t.Fatal("expected failure on truncated iv")
	} else if xerrors.CodeOf(err) != xerrors.CodeCryptoFailure {
		t.Fatalf("unexpected error code: %s", xerrors.CodeOf(err))
	}

	shortTag := *record
	shortTag.Tag = truncate(record.Tag)
	if _, err := Decrypt(&shortTag, "passphrase"); err == nil {
		t.Fatal("expected failure on truncated tag")
	} else if xerrors.CodeOf(err) != xerrors.CodeCryptoFailure {
		t.Fatalf("unexpected error code: %s", xerrors.CodeOf(err))
	}
}

func TestDecryptRejectsUnknownEnvelope(t *testing.T) {
	record, err := Encrypt([]byte("secret"), "passphrase")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(r *Record)
	}{
		{"version", func(r *Record) { r.Version = 2 }},
		{"kdf", func(r *Record) { r.KDF = "pbkdf2" }},
		{"cipher", func(r *Record) { r.Cipher = "aes-256-cbc" }},
	}
	for _, tc := range cases {
		mutated := *record
		tc.mutate(&mutated)
		if _, err := Decrypt(&mutated, "passphrase"); err == nil {
			t.Fatalf("%s: expected hard failure, got plaintext", tc.name)
		}
	}
}
