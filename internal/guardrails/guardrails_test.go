package guardrails

import (
	"testing"

	xerrors "AgentFleet-Chain/internal/errors"
)

func testConfig() Config {
	return Config{
		Enabled:          true,
		MaxValuePerTx:    0.1,
		MaxTokensPerTx:   50,
		MaxActionsPerRun: 25,
		AllowPrograms:    []string{"program-system", "program-token", "program-ata"},
	}
}

func TestDisabledEngineAllowsEverything(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false
	cfg.KillSwitch = true // even with the kill switch set
	engine := New(cfg)

	if err := engine.AssertProgramsAllowed("t", []string{"rogue-program"}); err != nil {
		t.Fatalf("disabled engine rejected program: %v", err)
	}
	if err := engine.AssertValueTransfer("t", 1e9); err != nil {
		t.Fatalf("disabled engine rejected value transfer: %v", err)
	}
	if engine.Actions() != 0 {
		t.Fatalf("disabled engine advanced counter to %d", engine.Actions())
	}
}

func TestKillSwitchRejectsEveryCall(t *testing.T) {
	cfg := testConfig()
	cfg.KillSwitch = true
	engine := New(cfg)

	for i := 0; i < 3; i++ {
		err := engine.AssertTokenAmount("t", 1, 6)
		if err == nil {
			t.Fatal("kill switch did not reject")
		}
		if xerrors.CodeOf(err) != xerrors.CodeKillSwitchActive {
			t.Fatalf("unexpected code: %s", xerrors.CodeOf(err))
		}
	}
	if engine.Actions() != 0 {
		t.Fatalf("kill switch advanced counter to %d", engine.Actions())
	}
}

func TestActionBudgetIsOneWayLatch(t *testing.T) {
	cfg := testConfig()
	cfg.MaxActionsPerRun = 3
	engine := New(cfg)

	for i := 0; i < 3; i++ {
		if err := engine.AssertTokenAmount("t", 1, 6); err != nil {
			t.Fatalf("call %d unexpectedly rejected: %v", i+1, err)
		}
	}

	// The fourth call trips the budget regardless of check type, and every
	// call after it stays rejected even when individually compliant.
	checks := []func() error{
		func() error { return engine.AssertTokenAmount("t", 1, 6) },
		func() error { return engine.AssertValueTransfer("t", 0.01) },
		func() error { return engine.AssertProgramsAllowed("t", []string{"program-token"}) },
	}
	for i, check := range checks {
		err := check()
		if err == nil {
			t.Fatalf("post-budget call %d allowed", i+1)
		}
		if xerrors.CodeOf(err) != xerrors.CodeActionBudgetExceeded {
			t.Fatalf("unexpected code: %s", xerrors.CodeOf(err))
		}
	}
}

func TestProgramAllowList(t *testing.T) {
	engine := New(testConfig())

	if err := engine.AssertProgramsAllowed("t", []string{"program-token", "program-ata"}); err != nil {
		t.Fatalf("allowed programs rejected: %v", err)
	}

	err := engine.AssertProgramsAllowed("t", []string{"program-token", "rogue-program"})
	if err == nil {
		t.Fatal("rogue program allowed")
	}
	if xerrors.CodeOf(err) != xerrors.CodeProgramNotAllowed {
		t.Fatalf("unexpected code: %s", xerrors.CodeOf(err))
	}
	if e, ok := xerrors.From(err); !ok || e.Metadata()["program"] != "rogue-program" {
		t.Fatalf("rejection does not name the offending program: %v", err)
	}
}

func TestValueTransferChecks(t *testing.T) {
	cases := []struct {
		name   string
		amount float64
		code   xerrors.Code
	}{
		{"zero", 0, xerrors.CodeInvalidAmount},
		{"negative", -0.5, xerrors.CodeInvalidAmount},
		{"over limit", 0.2, xerrors.CodeLimitExceeded},
	}
	for _, tc := range cases {
		engine := New(testConfig())
		err := engine.AssertValueTransfer("t", tc.amount)
		if err == nil {
			t.Fatalf("%s: expected rejection", tc.name)
		}
		if xerrors.CodeOf(err) != tc.code {
			t.Fatalf("%s: got code %s, want %s", tc.name, xerrors.CodeOf(err), tc.code)
		}
	}

	engine := New(testConfig())
	if err := engine.AssertValueTransfer("t", 0.1); err != nil {
		t.Fatalf("amount at limit rejected: %v", err)
	}
}

func TestTokenAmountBoundary(t *testing.T) {
	const decimals = 6
	limitRaw := uint64(50_000_000) // 50 tokens at 6 decimals

	engine := New(testConfig())
	if err := engine.AssertTokenAmount("t", limitRaw, decimals); err != nil {
		t.Fatalf("amount exactly at limit rejected: %v", err)
	}

	err := engine.AssertTokenAmount("t", limitRaw+1, decimals)
	if err == nil {
		t.Fatal("one minimal unit above limit allowed")
	}
	if xerrors.CodeOf(err) != xerrors.CodeLimitExceeded {
		t.Fatalf("unexpected code: %s", xerrors.CodeOf(err))
	}

	if err := engine.AssertTokenAmount("t", 0, decimals); xerrors.CodeOf(err) != xerrors.CodeInvalidAmount {
		t.Fatalf("zero raw amount: got %v", err)
	}
}

func TestAuthorizeDispatch(t *testing.T) {
	engine := New(testConfig())

	if err := engine.Authorize("t", ProgramInvocation{ProgramIDs: []string{"program-system"}}); err != nil {
		t.Fatalf("program invocation: %v", err)
	}
	if err := engine.Authorize("t", ValueTransfer{Amount: 0.05}); err != nil {
		t.Fatalf("value transfer: %v", err)
	}
	if err := engine.Authorize("t", TokenTransfer{AmountRaw: 2_000_000, Decimals: 6}); err != nil {
		t.Fatalf("token transfer: %v", err)
	}
	if engine.Actions() != 3 {
		t.Fatalf("expected 3 counted actions, got %d", engine.Actions())
	}
}

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv(EnvEnabled, "")
	t.Setenv(EnvKillSwitch, "")
	t.Setenv(EnvMaxValuePerTx, "")
	t.Setenv(EnvMaxTokens, "")
	t.Setenv(EnvMaxActions, "")

	cfg := FromEnv("program-token")
	if !cfg.Enabled || cfg.KillSwitch {
		t.Fatalf("unexpected switches: %+v", cfg)
	}
	if cfg.MaxValuePerTx != 0.1 || cfg.MaxTokensPerTx != 50 || cfg.MaxActionsPerRun != 25 {
		t.Fatalf("unexpected limits: %+v", cfg)
	}
	if len(cfg.AllowPrograms) != 1 || cfg.AllowPrograms[0] != "program-token" {
		t.Fatalf("allow programs not carried: %+v", cfg.AllowPrograms)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv(EnvEnabled, "0")
	t.Setenv(EnvKillSwitch, "1")
	t.Setenv(EnvMaxTokens, "10")
	t.Setenv(EnvMaxActions, "5")

	cfg := FromEnv()
	if cfg.Enabled {
		t.Fatal("expected disabled")
	}
	if !cfg.KillSwitch {
		t.Fatal("expected kill switch set")
	}
	if cfg.MaxTokensPerTx != 10 || cfg.MaxActionsPerRun != 5 {
		t.Fatalf("unexpected limits: %+v", cfg)
	}
}
