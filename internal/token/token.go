// Package token exposes the token-program operations the core needs. The
// harness consumes the Service port; Client implements it on top of the
// transaction pipeline.
package token

import (
	"context"
	"fmt"
	"strings"

	"AgentFleet-Chain/internal/txpipeline"
)

// Service is the token-program binding contract.
type Service interface {
	// CreateMint creates a new mint with the given authority and decimal
	// precision, paid for by payer.
	CreateMint(ctx context.Context, payer txpipeline.Signer, authority string, decimals uint8) (string, error)
	// EnsureDerivedAccount returns the derived account for (mint, owner),
	// creating it when absent.
	EnsureDerivedAccount(ctx context.Context, payer txpipeline.Signer, mint, owner string) (string, error)
	// MintTo mints amountRaw minimal units into a derived account.
	MintTo(ctx context.Context, payer txpipeline.Signer, mint, destination string, authority txpipeline.Signer, amountRaw uint64) (string, error)
	// Transfer moves amountRaw minimal units between derived accounts.
	// The payer covers fees; the owner of the source account authorizes
	// the debit. They may be different identities.
	Transfer(ctx context.Context, payer txpipeline.Signer, source, destination string, owner txpipeline.Signer, amountRaw uint64) (string, error)
	// ReadRawAmount returns the token amount held by a derived account,
	// in minimal units.
	ReadRawAmount(ctx context.Context, account string) (uint64, error)
}

// ToRaw converts whole tokens into minimal units.
func ToRaw(whole uint64, decimals uint8) uint64 {
	return whole * pow10(decimals)
}

// FormatRaw renders a minimal-unit amount as a human readable decimal
// string. Conversion to decimal form happens only at presentation
// boundaries like this one.
func FormatRaw(raw uint64, decimals uint8) string {
	base := pow10(decimals)
	if base == 1 {
		return fmt.Sprintf("%d", raw)
	}
	whole := raw / base
	frac := raw % base
	fracStr := fmt.Sprintf("%d", frac)
	if pad := int(decimals) - len(fracStr); pad > 0 {
		fracStr = strings.Repeat("0", pad) + fracStr
	}
	return fmt.Sprintf("%d.%s", whole, fracStr)
}

func pow10(decimals uint8) uint64 {
	result := uint64(1)
	for i := uint8(0); i < decimals; i++ {
		result *= 10
	}
	return result
}
