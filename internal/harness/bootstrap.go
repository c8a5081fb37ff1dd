package harness

import (
	"context"

	xerrors "AgentFleet-Chain/internal/errors"
	"AgentFleet-Chain/internal/txpipeline"
)

// BootstrapConfig drives the one-time mint setup.
type BootstrapConfig struct {
	Decimals uint8
}

// EnsureMint establishes the shared mint for all future runs, with the bank
// agent as mint authority, and makes sure the bank has a derived account for
// it. The operation is create-if-absent: when persisted state already names
// a mint, that one is kept and the decimals argument is ignored.
func (h *Harness) EnsureMint(ctx context.Context, cfg BootstrapConfig) (string, error) {
	if err := h.engine.AssertProgramsAllowed("bootstrap:token-programs",
		[]string{txpipeline.ProgramToken, txpipeline.ProgramATA}); err != nil {
		h.auditRejection(ctx, "", "bootstrap:token-programs", err)
		return "", err
	}

	doc, err := h.store.Load()
	if err != nil {
		return "", err
	}

	bank, err := h.wallets.Ensure(BankAgentID)
	if err != nil {
		return "", err
	}

	if doc.Mint != nil && doc.Mint.Address != "" {
		h.log.Info("reusing persisted mint",
			"mint", doc.Mint.Address, "decimals", doc.Mint.Decimals)
	} else {
		if cfg.Decimals > 18 {
			return "", xerrors.New(xerrors.CodeInvalidArgument, "mint decimals out of range")
		}
		mint, err := h.tokens.CreateMint(ctx, bank, bank.Address(), cfg.Decimals)
		if err != nil {
			return "", err
		}
		if !doc.SetMint(mint, cfg.Decimals) {
			// Lost a local race; keep whichever mint won.
			h.log.Warn("mint already set, keeping existing", "mint", doc.Mint.Address)
		} else {
			h.log.Info("mint created", "mint", mint, "decimals", cfg.Decimals)
		}
		if err := h.store.Save(doc); err != nil {
			return "", err
		}
	}

	if doc.ATAs[BankAgentID] == "" {
		ata, err := h.tokens.EnsureDerivedAccount(ctx, bank, doc.Mint.Address, bank.Address())
		if err != nil {
			return "", err
		}
		doc.ATAs[BankAgentID] = ata
		if err := h.store.Save(doc); err != nil {
			return "", err
		}
		h.log.Info("bank derived account ready", "account", ata)
	}

	return doc.Mint.Address, nil
}
