// Package harness drives a fleet of wallet agents through rounds of
// conditional transfers: an agent whose token balance exceeds the threshold
// sends a fixed amount to its successor in a ring over the agent list.
package harness

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	xerrors "AgentFleet-Chain/internal/errors"
	"AgentFleet-Chain/internal/guardrails"
	"AgentFleet-Chain/internal/journal"
	"AgentFleet-Chain/internal/observability/alerting"
	"AgentFleet-Chain/internal/observability/metrics"
	"AgentFleet-Chain/internal/state"
	"AgentFleet-Chain/internal/token"
	"AgentFleet-Chain/internal/txpipeline"
	"AgentFleet-Chain/internal/wallet"
	"AgentFleet-Chain/pkg/logger"
)

// BankAgentID is the identity that pays fees and, in bootstrap flows, holds
// the mint authority.
const BankAgentID = "agent-001"

// Config drives one harness run.
type Config struct {
	AgentCount         int
	Rounds             int
	SeedTokensPerAgent uint64
	ThresholdTokens    uint64
	SendTokens         uint64
}

// Wallets is the slice of the wallet directory the harness needs.
type Wallets interface {
	Ensure(agentID string) (*wallet.Identity, error)
}

// EventPublisher feeds executed transfers to external consumers. Optional;
// publish failures are warnings, never aborts.
type EventPublisher interface {
	Publish(ctx context.Context, entry *journal.Entry) error
}

// Harness orchestrates agents, policy and the token pipeline.
type Harness struct {
	wallets   Wallets
	tokens    token.Service
	store     state.Store
	engine    *guardrails.Engine
	recorder  journal.Recorder
	publisher EventPublisher
	alerts    alerting.Dispatcher
	log       *slog.Logger
	audit     *slog.Logger
}

// Option configures optional harness collaborators.
type Option func(*Harness)

// WithRecorder sets the transfer journal.
func WithRecorder(recorder journal.Recorder) Option {
	return func(h *Harness) {
		h.recorder = recorder
	}
}

// WithEventPublisher sets the optional transfer event feed.
func WithEventPublisher(publisher EventPublisher) Option {
	return func(h *Harness) {
		h.publisher = publisher
	}
}

// WithAlerts sets the dispatcher notified about alert-worthy rejections.
func WithAlerts(alerts alerting.Dispatcher) Option {
	return func(h *Harness) {
		h.alerts = alerts
	}
}

// WithLogger overrides the default component logger.
func WithLogger(log *slog.Logger) Option {
	return func(h *Harness) {
		h.log = log
	}
}

// New wires a harness.
func New(wallets Wallets, tokens token.Service, store state.Store, engine *guardrails.Engine, opts ...Option) *Harness {
	h := &Harness{
		wallets: wallets,
		tokens:  tokens,
		store:   store,
		engine:  engine,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	if h.log == nil {
		h.log = logger.Named("harness")
	}
	if h.audit == nil {
		h.audit = logger.Audit()
	}
	if h.recorder == nil {
		h.recorder = journal.NewMemoryRecorder()
	}
	return h
}

// fleetAgent is one scheduled agent with its unlocked identity and derived
// account.
type fleetAgent struct {
	id       string
	identity *wallet.Identity
	ata      string
}

// AgentID formats the identifier for a 1-based agent index.
func AgentID(index int) string {
	return fmt.Sprintf("agent-%03d", index)
}

// Run executes the configured number of rounds. Setup is idempotent and
// resumable: every new derived account is persisted before the next agent is
// touched. There is no round checkpoint; a restart re-evaluates live
// balances, which can re-trigger transfers for balances still above the
// threshold. Callers wanting exactly-once semantics must not rely on this.
func (h *Harness) Run(ctx context.Context, cfg Config) error {
	if cfg.AgentCount <= 0 || cfg.Rounds <= 0 {
		return xerrors.New(xerrors.CodeInvalidArgument, "agent count and rounds must be positive")
	}

	runID := uuid.NewString()
	log := h.log.With("run_id", runID)

	// Only token programs may be invoked from the harness.
	if err := h.engine.AssertProgramsAllowed("harness:token-programs",
		[]string{txpipeline.ProgramToken, txpipeline.ProgramATA}); err != nil {
		h.auditRejection(ctx, runID, "harness:token-programs", err)
		return err
	}

	doc, err := h.store.Load()
	if err != nil {
		return err
	}
	if doc.Mint == nil || doc.Mint.Address == "" {
		// The harness never creates a mint; establishing one is a separate
		// bootstrap step.
		return xerrors.New(xerrors.CodeMissingMint,
			"run state has no mint; run the mint bootstrap once first")
	}
	mint := doc.Mint.Address
	decimals := doc.Mint.Decimals

	bank, err := h.wallets.Ensure(BankAgentID)
	if err != nil {
		return err
	}

	log.Info("harness starting",
		"mint", mint,
		"decimals", decimals,
		"bank", bank.Address(),
		"agents", cfg.AgentCount,
		"rounds", cfg.Rounds)

	agents, err := h.ensureAgents(ctx, cfg, doc, bank, mint)
	if err != nil {
		return err
	}

	if err := h.seedAgents(ctx, runID, cfg, log, bank, mint, decimals, agents); err != nil {
		return err
	}

	thresholdRaw := token.ToRaw(cfg.ThresholdTokens, decimals)
	sendRaw := token.ToRaw(cfg.SendTokens, decimals)

	for round := 1; round <= cfg.Rounds; round++ {
		log.Info("round starting", "round", round, "rounds", cfg.Rounds)

		for idx, agent := range agents {
			next := agents[(idx+1)%len(agents)]

			balance, err := h.tokens.ReadRawAmount(ctx, agent.ata)
			if err != nil {
				return err
			}
			if balance <= thresholdRaw {
				continue
			}

			if err := h.engine.AssertTokenAmount("harness:agent-transfer", sendRaw, decimals); err != nil {
				// A rejection aborts only this agent's transfer; the round
				// keeps going.
				h.auditRejection(ctx, runID, "harness:agent-transfer", err)
				log.Warn("transfer blocked by guardrails",
					"round", round, "from", agent.id, "to", next.id, "err", err)
				continue
			}

			signature, err := h.tokens.Transfer(ctx, bank, agent.ata, next.ata, agent.identity, sendRaw)
			if err != nil {
				log.Error("transfer failed",
					"round", round, "from", agent.id, "to", next.id, "err", err)
				continue
			}

			log.Info("transfer executed",
				"round", round,
				"from", agent.id,
				"to", next.id,
				"amount", token.FormatRaw(sendRaw, decimals),
				"signature", signature)

			metrics.CountTransfer()
			h.recordTransfer(ctx, &journal.Entry{
				ID:        uuid.NewString(),
				RunID:     runID,
				Round:     round,
				FromAgent: agent.id,
				ToAgent:   next.id,
				AmountRaw: sendRaw,
				Decimals:  decimals,
				Signature: signature,
				CreatedAt: time.Now().Unix(),
			})
		}

		metrics.CountRound()
		h.logBalances(ctx, log, round, decimals, agents)
	}

	log.Info("harness complete", "actions_used", h.engine.Actions())
	return nil
}

// ensureAgents unlocks every agent identity and makes sure each has a
// persisted derived account. New addresses are saved immediately, one by
// one, so an interrupted setup resumes where it stopped.
func (h *Harness) ensureAgents(ctx context.Context, cfg Config, doc *state.RunState, bank *wallet.Identity, mint string) ([]*fleetAgent, error) {
	agents := make([]*fleetAgent, 0, cfg.AgentCount)
	for i := 1; i <= cfg.AgentCount; i++ {
		id := AgentID(i)
		identity, err := h.wallets.Ensure(id)
		if err != nil {
			return nil, err
		}

		ata, ok := doc.ATAs[id]
		if !ok || ata == "" {
			ata, err = h.tokens.EnsureDerivedAccount(ctx, bank, mint, identity.Address())
			if err != nil {
				return nil, err
			}
			doc.ATAs[id] = ata
			if err := h.store.Save(doc); err != nil {
				return nil, err
			}
		}

		agents = append(agents, &fleetAgent{id: id, identity: identity, ata: ata})
	}
	return agents, nil
}

// seedAgents tops up every agent holding exactly zero tokens. The seed
// amount itself is policy-gated so a misconfigured seed cannot mint an
// unbounded supply.
func (h *Harness) seedAgents(ctx context.Context, runID string, cfg Config, log *slog.Logger, bank *wallet.Identity, mint string, decimals uint8, agents []*fleetAgent) error {
	seedRaw := token.ToRaw(cfg.SeedTokensPerAgent, decimals)
	if seedRaw == 0 {
		return nil
	}

	if err := h.engine.AssertTokenAmount("harness:seed-mint", seedRaw, decimals); err != nil {
		h.auditRejection(ctx, runID, "harness:seed-mint", err)
		return err
	}

	for _, agent := range agents {
		balance, err := h.tokens.ReadRawAmount(ctx, agent.ata)
		if err != nil {
			return err
		}
		if balance != 0 {
			continue
		}

		signature, err := h.tokens.MintTo(ctx, bank, mint, agent.ata, bank, seedRaw)
		if err != nil {
			return err
		}
		log.Info("agent seeded",
			"agent", agent.id,
			"amount", token.FormatRaw(seedRaw, decimals),
			"signature", signature)
	}
	return nil
}

// logBalances reads every agent's live balance after a round, purely for
// observability. A failed read here is advisory and only logged.
func (h *Harness) logBalances(ctx context.Context, log *slog.Logger, round int, decimals uint8, agents []*fleetAgent) {
	for _, agent := range agents {
		balance, err := h.tokens.ReadRawAmount(ctx, agent.ata)
		if err != nil {
			log.Warn("balance read failed", "round", round, "agent", agent.id, "err", err)
			continue
		}
		log.Info("balance",
			"round", round,
			"agent", agent.id,
			"tokens", token.FormatRaw(balance, decimals))
	}
}

func (h *Harness) recordTransfer(ctx context.Context, entry *journal.Entry) {
	if err := h.recorder.Record(ctx, entry); err != nil {
		h.log.Warn("journal record failed", "entry", entry.ID, "err", err)
	}
	if h.publisher != nil {
		if err := h.publisher.Publish(ctx, entry); err != nil {
			h.log.Warn("event publish failed", "entry", entry.ID, "err", err)
		}
	}
}

func (h *Harness) auditRejection(ctx context.Context, runID, label string, err error) {
	attrs := []any{"label", label, "code", string(xerrors.CodeOf(err))}
	if e, ok := xerrors.From(err); ok {
		for k, v := range e.Metadata() {
			attrs = append(attrs, k, v)
		}
	}
	h.audit.Warn("guardrails rejection", attrs...)
	metrics.CountRejection(string(xerrors.CodeOf(err)))

	if h.alerts != nil && xerrors.ShouldAlert(err) {
		if alertErr := h.alerts.Notify(ctx, alerting.FromError(err, runID)); alertErr != nil {
			h.log.Warn("alert dispatch failed", "err", alertErr)
		}
	}
}
