package ledger

import "context"

// Checkpoint is the short-lived reference required to build a submittable
// transaction. A transaction referencing it is only confirmable while the
// chain height stays at or below LastValidHeight.
type Checkpoint struct {
	Hash            string
	LastValidHeight uint64
}

// SimulationResult reports a dry-run execution. Logs are a bounded excerpt;
// Err carries the structured on-chain error text when OK is false.
type SimulationResult struct {
	OK   bool
	Err  string
	Logs []string
}

// Client is the ledger access contract the core depends on. Implementations
// talk JSON-RPC to a node; tests substitute fakes.
type Client interface {
	// GetBalance returns the live balance of an account in minimal units.
	GetBalance(ctx context.Context, address string) (uint64, error)
	// LatestCheckpoint fetches a fresh checkpoint with its validity bound.
	LatestCheckpoint(ctx context.Context) (Checkpoint, error)
	// Simulate dry-runs an unsigned serialized transaction. Never mutates
	// ledger state.
	Simulate(ctx context.Context, unsignedTx string) (SimulationResult, error)
	// SubmitRaw broadcasts a signed serialized transaction and returns a
	// submission identifier.
	SubmitRaw(ctx context.Context, signedTx string) (string, error)
	// Confirm waits for the submission to land, bounded by the checkpoint
	// validity window captured at build time.
	Confirm(ctx context.Context, submissionID string, checkpoint Checkpoint) error
	// Close releases network connections held by the client.
	Close()
}
