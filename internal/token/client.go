package token

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	xerrors "AgentFleet-Chain/internal/errors"
	"AgentFleet-Chain/internal/ledger"
	"AgentFleet-Chain/internal/txpipeline"
)

// Token-program instruction tags.
const (
	tagInitializeMint uint8 = 0
	tagTransfer       uint8 = 3
	tagMintTo         uint8 = 7
	tagCreateAccount  uint8 = 1
)

// Client implements Service by composing instructions and running them
// through the transaction pipeline.
type Client struct {
	pipeline *txpipeline.Pipeline
	ledger   ledger.Client
}

// NewClient builds a token client over the pipeline and ledger client.
func NewClient(pipeline *txpipeline.Pipeline, ledgerClient ledger.Client) *Client {
	return &Client{pipeline: pipeline, ledger: ledgerClient}
}

// ephemeralSigner signs for a freshly generated account keypair, e.g. a new
// mint account. The private key is discarded after creation; only the mint
// authority matters afterwards.
type ephemeralSigner struct {
	public  ed25519.PublicKey
	private ed25519.PrivateKey
}

func newEphemeralSigner() (*ephemeralSigner, error) {
	public, private, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeCryptoFailure, err, "generate account key")
	}
	return &ephemeralSigner{public: public, private: private}, nil
}

func (s *ephemeralSigner) Address() string {
	return fmt.Sprintf("0x%x", []byte(s.public))
}

func (s *ephemeralSigner) Sign(message []byte) []byte {
	return ed25519.Sign(s.private, message)
}

// CreateMint creates and initializes a fresh mint account.
func (c *Client) CreateMint(ctx context.Context, payer txpipeline.Signer, authority string, decimals uint8) (string, error) {
	mintAccount, err := newEphemeralSigner()
	if err != nil {
		return "", err
	}
	mint := mintAccount.Address()

	initData := []byte{tagInitializeMint, decimals}
	instructions := []txpipeline.Instruction{
		{
			ProgramID: txpipeline.ProgramToken,
			Accounts: []txpipeline.AccountMeta{
				{Address: mint, Signer: true, Writable: true},
				{Address: authority},
			},
			Data: initData,
		},
	}

	if _, err := c.pipeline.Execute(ctx, payer.Address(), instructions, payer, mintAccount); err != nil {
		return "", err
	}
	return mint, nil
}

// DeriveAccountAddress computes the deterministic derived account address
// for a (mint, owner) pair.
func DeriveAccountAddress(mint, owner string) string {
	digest := sha256.Sum256([]byte("ata:" + mint + ":" + owner))
	return fmt.Sprintf("0x%x", digest[:])
}

// EnsureDerivedAccount creates the derived account for (mint, owner) when
// absent. Creation is idempotent on chain: an already existing account is a
// no-op, so callers may safely retry.
func (c *Client) EnsureDerivedAccount(ctx context.Context, payer txpipeline.Signer, mint, owner string) (string, error) {
	account := DeriveAccountAddress(mint, owner)

	instructions := []txpipeline.Instruction{
		{
			ProgramID: txpipeline.ProgramATA,
			Accounts: []txpipeline.AccountMeta{
				{Address: payer.Address(), Signer: true, Writable: true},
				{Address: account, Writable: true},
				{Address: owner},
				{Address: mint},
			},
			Data: []byte{tagCreateAccount},
		},
	}

	if _, err := c.pipeline.Execute(ctx, payer.Address(), instructions, payer); err != nil {
		return "", err
	}
	return account, nil
}

// MintTo mints amountRaw minimal units into destination.
func (c *Client) MintTo(ctx context.Context, payer txpipeline.Signer, mint, destination string, authority txpipeline.Signer, amountRaw uint64) (string, error) {
	instructions := []txpipeline.Instruction{
		{
			ProgramID: txpipeline.ProgramToken,
			Accounts: []txpipeline.AccountMeta{
				{Address: mint, Writable: true},
				{Address: destination, Writable: true},
				{Address: authority.Address(), Signer: true},
			},
			Data: amountData(tagMintTo, amountRaw),
		},
	}
	return c.pipeline.Execute(ctx, payer.Address(), instructions, payer, authority)
}

// Transfer moves amountRaw minimal units from source to destination. The
// owner signature authorizes the debit while payer covers the fee.
func (c *Client) Transfer(ctx context.Context, payer txpipeline.Signer, source, destination string, owner txpipeline.Signer, amountRaw uint64) (string, error) {
	instructions := []txpipeline.Instruction{
		{
			ProgramID: txpipeline.ProgramToken,
			Accounts: []txpipeline.AccountMeta{
				{Address: source, Writable: true},
				{Address: destination, Writable: true},
				{Address: owner.Address(), Signer: true},
			},
			Data: amountData(tagTransfer, amountRaw),
		},
	}
	return c.pipeline.Execute(ctx, payer.Address(), instructions, payer, owner)
}

// ReadRawAmount reads the live token amount of a derived account. Derived
// accounts hold exactly one token balance, exposed through the ledger's
// balance query in minimal units.
func (c *Client) ReadRawAmount(ctx context.Context, account string) (uint64, error) {
	return c.ledger.GetBalance(ctx, account)
}

func amountData(tag uint8, amountRaw uint64) []byte {
	data := make([]byte, 9)
	data[0] = tag
	binary.LittleEndian.PutUint64(data[1:], amountRaw)
	return data
}
