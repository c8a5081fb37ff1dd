// Package config loads the daemon configuration file and fills in defaults.
// Secrets (keystore passphrase, API token) and guardrails limits are
// deliberately excluded: they come from the environment so they never sit
// next to the rest of the configuration on disk.
package config
