package ledger

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	xerrors "AgentFleet-Chain/internal/errors"
)

// EndpointDefinitions models the structure of configs/endpoints.yaml.
type EndpointDefinitions struct {
	Endpoints []EndpointDefinition `yaml:"endpoints"`
}

// EndpointDefinition describes a single candidate RPC endpoint.
type EndpointDefinition struct {
	Name        string `yaml:"name"`
	URL         string `yaml:"url"`
	Description string `yaml:"description"`
}

// LoadEndpointDefinitions parses the YAML file listing candidate endpoints.
// An empty path yields an empty list.
func LoadEndpointDefinitions(path string) (EndpointDefinitions, error) {
	if strings.TrimSpace(path) == "" {
		return EndpointDefinitions{}, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return EndpointDefinitions{}, fmt.Errorf("read endpoint config: %w", err)
	}

	var defs EndpointDefinitions
	if err := yaml.Unmarshal(content, &defs); err != nil {
		return EndpointDefinitions{}, fmt.Errorf("parse endpoint config: %w", err)
	}
	return defs, nil
}

const (
	probeTimeout = 3 * time.Second
	probeBackoff = 150 * time.Millisecond
)

// dialer is swapped in selector tests.
var dialer = func(ctx context.Context, name, url string) (probeClient, error) {
	return Dial(ctx, name, url)
}

type probeClient interface {
	Client
	Name() string
	URL() string
}

// SelectHealthy probes candidates in priority order and returns the first
// endpoint that answers a lightweight checkpoint request. A preferred URL,
// when given, is tried before the configured list. Probe failures are
// advisory; only exhausting every candidate is fatal.
func SelectHealthy(ctx context.Context, preferredURL string, defs EndpointDefinitions) (Client, string, error) {
	type candidate struct {
		name string
		url  string
	}

	candidates := make([]candidate, 0, len(defs.Endpoints)+1)
	if url := strings.TrimSpace(preferredURL); url != "" {
		candidates = append(candidates, candidate{name: "preferred", url: url})
	}
	for _, def := range defs.Endpoints {
		if strings.TrimSpace(def.URL) == "" {
			continue
		}
		candidates = append(candidates, candidate{name: def.Name, url: def.URL})
	}
	if len(candidates) == 0 {
		return nil, "", xerrors.New(xerrors.CodeConfigurationFailure, "no ledger rpc endpoints configured")
	}

	var lastErr error
	for _, cand := range candidates {
		client, err := dialer(ctx, cand.name, cand.url)
		if err != nil {
			lastErr = err
			continue
		}

		probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
		_, err = client.LatestCheckpoint(probeCtx)
		cancel()
		if err == nil {
			return client, cand.name, nil
		}

		client.Close()
		lastErr = fmt.Errorf("endpoint %s (%s) failed health probe: %w", cand.name, cand.url, err)

		// Small delay so a flaky provider list is not hammered.
		select {
		case <-ctx.Done():
			return nil, "", ctx.Err()
		case <-time.After(probeBackoff):
		}
	}

	return nil, "", xerrors.Wrap(xerrors.CodeNetworkFailure, lastErr, "no healthy ledger rpc endpoints")
}
