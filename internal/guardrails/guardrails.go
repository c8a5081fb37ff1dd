package guardrails

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"sync"

	xerrors "AgentFleet-Chain/internal/errors"
)

// Config bounds what any agent may do during one run. It is immutable for
// the lifetime of an Engine.
type Config struct {
	Enabled    bool
	KillSwitch bool

	// MaxValuePerTx caps a single native value transfer, in whole units.
	MaxValuePerTx float64
	// MaxTokensPerTx caps a single token action, in whole tokens.
	MaxTokensPerTx uint64
	// MaxActionsPerRun caps the number of authorized actions per run.
	MaxActionsPerRun int

	// AllowPrograms is the closed set of program identifiers an agent may
	// invoke.
	AllowPrograms []string
}

// Environment variables consumed by FromEnv, with their defaults.
const (
	EnvEnabled       = "GUARDRAILS_ENABLED"   // default "1"
	EnvKillSwitch    = "KILL_SWITCH"          // default "0"
	EnvMaxValuePerTx = "MAX_VALUE_PER_TX"     // default "0.1"
	EnvMaxTokens     = "MAX_TOKENS_PER_TX"    // default "50"
	EnvMaxActions    = "MAX_ACTIONS_PER_RUN"  // default "25"
)

// FromEnv builds a Config from the environment. The allow set is supplied by
// the caller since program identifiers are a ledger concern, not a policy one.
func FromEnv(allowPrograms ...string) Config {
	return Config{
		Enabled:          envString(EnvEnabled, "1") != "0",
		KillSwitch:       envString(EnvKillSwitch, "0") == "1",
		MaxValuePerTx:    envFloat(EnvMaxValuePerTx, 0.1),
		MaxTokensPerTx:   envUint(EnvMaxTokens, 50),
		MaxActionsPerRun: int(envUint(EnvMaxActions, 25)),
		AllowPrograms:    allowPrograms,
	}
}

func envString(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func envUint(key string, fallback uint64) uint64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if parsed, err := strconv.ParseUint(v, 10, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

// Engine gates every privileged action against the configured limits. One
// instance per run; the action counter is process-local and never persisted,
// so it offers no protection across concurrent processes sharing keys.
type Engine struct {
	cfg Config

	allow map[string]struct{}

	mu      sync.Mutex
	actions int
}

// New builds an engine, materialising the allow set once.
func New(cfg Config) *Engine {
	allow := make(map[string]struct{}, len(cfg.AllowPrograms))
	for _, program := range cfg.AllowPrograms {
		allow[program] = struct{}{}
	}
	return &Engine{cfg: cfg, allow: allow}
}

// Actions returns the number of actions counted so far in this run.
func (e *Engine) Actions() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.actions
}

// gate runs the common prefix of every authorization: the disabled bypass,
// the kill switch, and the action budget. The counter is incremented before
// the budget comparison, so once the budget trips every later call in the
// run is rejected too.
func (e *Engine) gate(label string) error {
	if !e.cfg.Enabled {
		return nil
	}
	if e.cfg.KillSwitch {
		return xerrors.New(xerrors.CodeKillSwitchActive,
			fmt.Sprintf("kill switch active, blocked: %s", label),
			xerrors.WithMetadata("label", label))
	}

	e.mu.Lock()
	e.actions++
	actions := e.actions
	e.mu.Unlock()

	if actions > e.cfg.MaxActionsPerRun {
		return xerrors.New(xerrors.CodeActionBudgetExceeded,
			fmt.Sprintf("max actions per run exceeded (%d), blocked: %s", e.cfg.MaxActionsPerRun, label),
			xerrors.WithMetadata("label", label),
			xerrors.WithMetadata("limit", strconv.Itoa(e.cfg.MaxActionsPerRun)),
			xerrors.WithMetadata("observed", strconv.Itoa(actions)))
	}
	return nil
}

// AssertProgramsAllowed authorizes a program invocation: every identifier
// must belong to the configured allow set.
func (e *Engine) AssertProgramsAllowed(label string, programIDs []string) error {
	if err := e.gate(label); err != nil {
		return err
	}

	for _, program := range programIDs {
		if _, ok := e.allow[program]; !ok {
			return xerrors.New(xerrors.CodeProgramNotAllowed,
				fmt.Sprintf("program not allowed: %s (%s)", program, label),
				xerrors.WithMetadata("label", label),
				xerrors.WithMetadata("program", program))
		}
	}
	return nil
}

// AssertValueTransfer authorizes a native value transfer of amount whole
// units.
func (e *Engine) AssertValueTransfer(label string, amount float64) error {
	if err := e.gate(label); err != nil {
		return err
	}

	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		return xerrors.New(xerrors.CodeInvalidAmount,
			fmt.Sprintf("invalid value amount: %v (%s)", amount, label),
			xerrors.WithMetadata("label", label),
			xerrors.WithMetadata("observed", strconv.FormatFloat(amount, 'f', -1, 64)))
	}
	if amount > e.cfg.MaxValuePerTx {
		return xerrors.New(xerrors.CodeLimitExceeded,
			fmt.Sprintf("value amount %v exceeds %s %v (%s)", amount, EnvMaxValuePerTx, e.cfg.MaxValuePerTx, label),
			xerrors.WithMetadata("label", label),
			xerrors.WithMetadata("limit", strconv.FormatFloat(e.cfg.MaxValuePerTx, 'f', -1, 64)),
			xerrors.WithMetadata("observed", strconv.FormatFloat(amount, 'f', -1, 64)))
	}
	return nil
}

// AssertTokenAmount authorizes a token action of amountRaw minimal units.
// The limit is compared in raw space: exactly MaxTokensPerTx whole tokens
// passes, one minimal unit above it fails.
func (e *Engine) AssertTokenAmount(label string, amountRaw uint64, decimals uint8) error {
	if err := e.gate(label); err != nil {
		return err
	}

	if amountRaw == 0 {
		return xerrors.New(xerrors.CodeInvalidAmount,
			fmt.Sprintf("invalid token amount: %d (%s)", amountRaw, label),
			xerrors.WithMetadata("label", label))
	}

	limitRaw := e.cfg.MaxTokensPerTx * pow10(decimals)
	if amountRaw > limitRaw {
		return xerrors.New(xerrors.CodeLimitExceeded,
			fmt.Sprintf("token amount %d exceeds %s %d tokens (%s)", amountRaw, EnvMaxTokens, e.cfg.MaxTokensPerTx, label),
			xerrors.WithMetadata("label", label),
			xerrors.WithMetadata("limit", strconv.FormatUint(limitRaw, 10)),
			xerrors.WithMetadata("observed", strconv.FormatUint(amountRaw, 10)))
	}
	return nil
}

func pow10(decimals uint8) uint64 {
	result := uint64(1)
	for i := uint8(0); i < decimals; i++ {
		result *= 10
	}
	return result
}
