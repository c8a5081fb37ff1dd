package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "agentfleet.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `{}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got, want := cfg.Runtime.DataDir, filepath.Join(dir, "data"); got != want {
		t.Errorf("DataDir = %q, want %q", got, want)
	}
	if got, want := cfg.Runtime.KeystoreDir, filepath.Join(dir, "keystore"); got != want {
		t.Errorf("KeystoreDir = %q, want %q", got, want)
	}
	if cfg.Harness.AgentCount != 3 || cfg.Harness.Rounds != 1 {
		t.Errorf("harness defaults = %d agents, %d rounds", cfg.Harness.AgentCount, cfg.Harness.Rounds)
	}
	if cfg.Harness.SeedTokensPerAgent != 25 || cfg.Harness.ThresholdTokens != 20 || cfg.Harness.SendTokens != 2 {
		t.Errorf("harness token defaults = %d/%d/%d",
			cfg.Harness.SeedTokensPerAgent, cfg.Harness.ThresholdTokens, cfg.Harness.SendTokens)
	}
	if cfg.Harness.Decimals != 6 {
		t.Errorf("Decimals = %d, want 6", cfg.Harness.Decimals)
	}
	if cfg.State.Driver != "file" {
		t.Errorf("State.Driver = %q, want file", cfg.State.Driver)
	}
	if got, want := cfg.State.Path, filepath.Join(dir, "keystore", "state.json"); got != want {
		t.Errorf("State.Path = %q, want %q", got, want)
	}
	if cfg.Journal.Driver != "memory" {
		t.Errorf("Journal.Driver = %q, want memory", cfg.Journal.Driver)
	}
	if cfg.API.ListenAddr != ":8080" {
		t.Errorf("API.ListenAddr = %q, want :8080", cfg.API.ListenAddr)
	}
}

func TestLoadResolvesRelativePaths(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `{
		"runtime": {"data_dir": "var/data", "keystore_dir": "/abs/keys"},
		"state_store": {"path": "var/state.json"}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if got, want := cfg.Runtime.DataDir, filepath.Join(dir, "var", "data"); got != want {
		t.Errorf("DataDir = %q, want %q", got, want)
	}
	if cfg.Runtime.KeystoreDir != "/abs/keys" {
		t.Errorf("KeystoreDir = %q, want /abs/keys", cfg.Runtime.KeystoreDir)
	}
	if got, want := cfg.State.Path, filepath.Join(dir, "var", "state.json"); got != want {
		t.Errorf("State.Path = %q, want %q", got, want)
	}
}

func TestLoadKeepsExplicitValues(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `{
		"harness": {"agent_count": 7, "rounds": 4, "send_tokens": 9},
		"state_store": {"driver": "redis", "redis": {"address": "127.0.0.1:6379"}},
		"journal": {"driver": "mysql", "dsn": "user:pass@tcp(127.0.0.1:3306)/fleet"},
		"api": {"enabled": true, "listen_addr": ":9090"}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Harness.AgentCount != 7 || cfg.Harness.Rounds != 4 || cfg.Harness.SendTokens != 9 {
		t.Errorf("harness = %+v", cfg.Harness)
	}
	if cfg.State.Driver != "redis" || cfg.State.Redis.Address != "127.0.0.1:6379" {
		t.Errorf("state = %+v", cfg.State)
	}
	if cfg.State.Redis.Key != "agentfleet:state" {
		t.Errorf("Redis.Key = %q, want default", cfg.State.Redis.Key)
	}
	if cfg.Journal.Driver != "mysql" {
		t.Errorf("Journal.Driver = %q, want mysql", cfg.Journal.Driver)
	}
	if cfg.API.ListenAddr != ":9090" {
		t.Errorf("API.ListenAddr = %q, want :9090", cfg.API.ListenAddr)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for empty path")
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected error for missing file")
	}

	dir := t.TempDir()
	path := writeConfig(t, dir, `{not json`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for malformed json")
	}
}
