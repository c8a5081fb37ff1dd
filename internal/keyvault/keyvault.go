package keyvault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/scrypt"

	xerrors "AgentFleet-Chain/internal/errors"
)

// Record is the versioned envelope holding an encrypted secret key. Every
// record carries its own salt and IV; two records for the same passphrase
// never share either.
type Record struct {
	Version    int    `json:"version"`
	KDF        string `json:"kdf"`
	Cipher     string `json:"cipher"`
	Salt       string `json:"salt_b64"`
	IV         string `json:"iv_b64"`
	Tag        string `json:"tag_b64"`
	Ciphertext string `json:"ciphertext_b64"`
}

const (
	recordVersion = 1
	kdfName       = "scrypt"
	cipherName    = "aes-256-gcm"

	saltLen = 16
	ivLen   = 12 // recommended nonce size for GCM
	keyLen  = 32
	tagLen  = 16

	// Scrypt parameters. N must be a power of two.
	scryptN = 1 << 14
	scryptR = 8
	scryptP = 1
)

// deriveKey stretches the passphrase into a fixed-size symmetric key.
func deriveKey(passphrase string, salt []byte) ([]byte, error) {
	key, err := scrypt.Key([]byte(passphrase), salt, scryptN, scryptR, scryptP, keyLen)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeCryptoFailure, err, "derive key")
	}
	return key, nil
}

// Encrypt seals secret under passphrase with a fresh salt and IV.
func Encrypt(secret []byte, passphrase string) (*Record, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeCryptoFailure, err, "generate salt")
	}
	iv := make([]byte, ivLen)
	if _, err := rand.Read(iv); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeCryptoFailure, err, "generate iv")
	}

	key, err := deriveKey(passphrase, salt)
	if err != nil {
		return nil, err
	}

	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	sealed := gcm.Seal(nil, iv, secret, nil)
	ciphertext := sealed[:len(sealed)-tagLen]
	tag := sealed[len(sealed)-tagLen:]

	return &Record{
		Version:    recordVersion,
		KDF:        kdfName,
		Cipher:     cipherName,
		Salt:       base64.StdEncoding.EncodeToString(salt),
		IV:         base64.StdEncoding.EncodeToString(iv),
		Tag:        base64.StdEncoding.EncodeToString(tag),
		Ciphertext: base64.StdEncoding.EncodeToString(ciphertext),
	}, nil
}

// Decrypt opens the record with passphrase. A wrong passphrase and a tampered
// record are indistinguishable to the caller: both fail authentication.
func Decrypt(record *Record, passphrase string) ([]byte, error) {
	if record == nil {
		return nil, xerrors.New(xerrors.CodeCryptoFailure, "nil keystore record")
	}
	if record.Version != recordVersion {
		return nil, xerrors.New(xerrors.CodeCryptoFailure,
			fmt.Sprintf("unsupported keystore version: %d", record.Version))
	}
	if record.KDF != kdfName {
		return nil, xerrors.New(xerrors.CodeCryptoFailure,
			fmt.Sprintf("unsupported kdf: %s", record.KDF))
	}
	if record.Cipher != cipherName {
		return nil, xerrors.New(xerrors.CodeCryptoFailure,
			fmt.Sprintf("unsupported cipher: %s", record.Cipher))
	}

	salt, err := base64.StdEncoding.DecodeString(record.Salt)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeCryptoFailure, err, "decode salt")
	}
	iv, err := base64.StdEncoding.DecodeString(record.IV)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeCryptoFailure, err, "decode iv")
	}
	tag, err := base64.StdEncoding.DecodeString(record.Tag)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeCryptoFailure, err, "decode tag")
	}
	ciphertext, err := base64.StdEncoding.DecodeString(record.Ciphertext)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeCryptoFailure, err, "decode ciphertext")
	}

	// GCM panics on a wrong-sized nonce, so a truncated record must be
	// rejected here rather than handed to the cipher.
	if len(iv) != ivLen || len(tag) != tagLen {
		return nil, xerrors.New(xerrors.CodeCryptoFailure, "malformed keystore record")
	}

	key, err := deriveKey(passphrase, salt)
	if err != nil {
		return nil, err
	}

	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := gcm.Open(nil, iv, sealed, nil)
	if err != nil {
		// Wrong passphrase and a tampered record are not distinguished.
		return nil, xerrors.New(xerrors.CodeCryptoFailure, "keystore authentication failed")
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeCryptoFailure, err, "init cipher")
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeCryptoFailure, err, "init gcm")
	}
	return gcm, nil
}
