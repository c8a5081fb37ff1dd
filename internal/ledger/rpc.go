package ledger

import (
	"context"
	"errors"
	"strings"
	"time"

	gethrpc "github.com/ethereum/go-ethereum/rpc"

	xerrors "AgentFleet-Chain/internal/errors"
)

const (
	// submitRetries bounds transport-level retries on broadcast. Expiry of
	// the confirmation window is never retried here.
	submitRetries = 3

	// maxSimulationLogs caps the log excerpt surfaced to callers.
	maxSimulationLogs = 32

	confirmPollInterval = 500 * time.Millisecond
)

// RPCClient implements Client over a JSON-RPC node endpoint.
type RPCClient struct {
	name string
	url  string
	rpc  *gethrpc.Client
}

// Dial connects to the given RPC endpoint.
func Dial(ctx context.Context, name, url string) (*RPCClient, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, xerrors.New(xerrors.CodeConfigurationFailure, "ledger rpc url is empty")
	}
	client, err := gethrpc.DialContext(ctx, url)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeNetworkFailure, err, "dial ledger rpc")
	}
	return &RPCClient{name: name, url: url, rpc: client}, nil
}

// Name returns the configured endpoint name.
func (c *RPCClient) Name() string {
	if c == nil {
		return ""
	}
	return c.name
}

// URL returns the endpoint URL.
func (c *RPCClient) URL() string {
	if c == nil {
		return ""
	}
	return c.url
}

// Close releases the underlying connection.
func (c *RPCClient) Close() {
	if c == nil || c.rpc == nil {
		return
	}
	c.rpc.Close()
	c.rpc = nil
}

type checkpointResponse struct {
	Blockhash            string `json:"blockhash"`
	LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
}

type simulateResponse struct {
	Err  string   `json:"err"`
	Logs []string `json:"logs"`
}

type signatureStatus struct {
	Confirmed bool `json:"confirmed"`
}

// GetBalance returns the account balance in minimal units, always live.
func (c *RPCClient) GetBalance(ctx context.Context, address string) (uint64, error) {
	if c == nil || c.rpc == nil {
		return 0, errors.New("ledger client not initialised")
	}
	var balance uint64
	if err := c.rpc.CallContext(ctx, &balance, "getBalance", address); err != nil {
		return 0, xerrors.Wrap(xerrors.CodeNetworkFailure, err, "get balance",
			xerrors.WithMetadata("address", address))
	}
	return balance, nil
}

// LatestCheckpoint fetches a fresh blockhash and its validity bound.
func (c *RPCClient) LatestCheckpoint(ctx context.Context) (Checkpoint, error) {
	if c == nil || c.rpc == nil {
		return Checkpoint{}, errors.New("ledger client not initialised")
	}
	var resp checkpointResponse
	if err := c.rpc.CallContext(ctx, &resp, "getLatestBlockhash"); err != nil {
		return Checkpoint{}, xerrors.Wrap(xerrors.CodeNetworkFailure, err, "get latest blockhash")
	}
	return Checkpoint{Hash: resp.Blockhash, LastValidHeight: resp.LastValidBlockHeight}, nil
}

// Simulate dry-runs the unsigned transaction. Signatures are not required for
// simulation, matching the build -> simulate -> sign -> send pipeline.
func (c *RPCClient) Simulate(ctx context.Context, unsignedTx string) (SimulationResult, error) {
	if c == nil || c.rpc == nil {
		return SimulationResult{}, errors.New("ledger client not initialised")
	}
	var resp simulateResponse
	if err := c.rpc.CallContext(ctx, &resp, "simulateTransaction", unsignedTx); err != nil {
		return SimulationResult{}, xerrors.Wrap(xerrors.CodeNetworkFailure, err, "simulate transaction")
	}
	logs := resp.Logs
	if len(logs) > maxSimulationLogs {
		logs = logs[:maxSimulationLogs]
	}
	return SimulationResult{OK: resp.Err == "", Err: resp.Err, Logs: logs}, nil
}

// SubmitRaw broadcasts the signed transaction, retrying transport failures a
// bounded number of times.
func (c *RPCClient) SubmitRaw(ctx context.Context, signedTx string) (string, error) {
	if c == nil || c.rpc == nil {
		return "", errors.New("ledger client not initialised")
	}
	var lastErr error
	for attempt := 0; attempt < submitRetries; attempt++ {
		var signature string
		err := c.rpc.CallContext(ctx, &signature, "sendTransaction", signedTx)
		if err == nil {
			return signature, nil
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(time.Duration(attempt+1) * 200 * time.Millisecond):
		}
	}
	return "", xerrors.Wrap(xerrors.CodeSubmissionFailure, lastErr, "send transaction")
}

// Confirm polls for confirmation until the submission lands or the checkpoint
// validity window lapses. Expiry is fatal for this attempt; the caller must
// rebuild with a fresh checkpoint.
func (c *RPCClient) Confirm(ctx context.Context, submissionID string, checkpoint Checkpoint) error {
	if c == nil || c.rpc == nil {
		return errors.New("ledger client not initialised")
	}
	for {
		var statuses []signatureStatus
		if err := c.rpc.CallContext(ctx, &statuses, "getSignatureStatuses", []string{submissionID}); err != nil {
			return xerrors.Wrap(xerrors.CodeNetworkFailure, err, "get signature status",
				xerrors.WithMetadata("submission", submissionID))
		}
		if len(statuses) > 0 && statuses[0].Confirmed {
			return nil
		}

		var height uint64
		if err := c.rpc.CallContext(ctx, &height, "getBlockHeight"); err != nil {
			return xerrors.Wrap(xerrors.CodeNetworkFailure, err, "get block height")
		}
		if height > checkpoint.LastValidHeight {
			return xerrors.New(xerrors.CodeSubmissionExpired, "",
				xerrors.WithMetadata("submission", submissionID),
				xerrors.WithMetadata("blockhash", checkpoint.Hash))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(confirmPollInterval):
		}
	}
}
