// Package txpipeline drives a transaction through its four stages:
// build, simulate, sign, submit/confirm. Simulation is a strictly read-only
// dry run; signing is expected to happen after simulation, though nothing in
// the types enforces that ordering.
package txpipeline

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	xerrors "AgentFleet-Chain/internal/errors"
	"AgentFleet-Chain/internal/ledger"
)

// Signer attaches a signature for one account. wallet.Identity satisfies it.
type Signer interface {
	Address() string
	Sign(message []byte) []byte
}

// UnsignedTx is a compiled transaction envelope referencing the checkpoint
// fetched at build time. The checkpoint's validity bound travels with the
// envelope to the confirm stage.
type UnsignedTx struct {
	FeePayer     string            `json:"fee_payer"`
	Checkpoint   ledger.Checkpoint `json:"-"`
	Blockhash    string            `json:"blockhash"`
	Instructions []Instruction     `json:"instructions"`
}

// Message returns the canonical byte serialization that gets signed.
func (tx *UnsignedTx) Message() ([]byte, error) {
	raw, err := json.Marshal(tx)
	if err != nil {
		return nil, fmt.Errorf("encode transaction message: %w", err)
	}
	return raw, nil
}

// Serialize returns the wire form used for simulation.
func (tx *UnsignedTx) Serialize() (string, error) {
	message, err := tx.Message()
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(message), nil
}

// txSignature pairs a signing account with its signature bytes.
type txSignature struct {
	Address   string `json:"address"`
	Signature string `json:"signature_b64"`
}

// SignedTx carries the envelope plus its attached signatures.
type SignedTx struct {
	Unsigned   *UnsignedTx
	signatures []txSignature
}

// Serialize returns the wire form used for submission.
func (tx *SignedTx) Serialize() (string, error) {
	message, err := tx.Unsigned.Message()
	if err != nil {
		return "", err
	}
	envelope := struct {
		Message    string        `json:"message_b64"`
		Signatures []txSignature `json:"signatures"`
	}{
		Message:    base64.StdEncoding.EncodeToString(message),
		Signatures: tx.signatures,
	}
	raw, err := json.Marshal(envelope)
	if err != nil {
		return "", fmt.Errorf("encode signed transaction: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// Pipeline executes transactions against a ledger client.
type Pipeline struct {
	client ledger.Client
}

// New builds a pipeline over the given ledger client.
func New(client ledger.Client) *Pipeline {
	return &Pipeline{client: client}
}

// Build fetches a fresh checkpoint and compiles an unsigned envelope.
func (p *Pipeline) Build(ctx context.Context, feePayer string, instructions []Instruction) (*UnsignedTx, error) {
	if strings.TrimSpace(feePayer) == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "fee payer is empty")
	}
	if len(instructions) == 0 {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "no instructions to build")
	}

	checkpoint, err := p.client.LatestCheckpoint(ctx)
	if err != nil {
		return nil, err
	}

	return &UnsignedTx{
		FeePayer:     feePayer,
		Checkpoint:   checkpoint,
		Blockhash:    checkpoint.Hash,
		Instructions: instructions,
	}, nil
}

// Simulate dry-runs the unsigned envelope. It never mutates ledger state, and
// a failed simulation is surfaced, not interpreted: the caller decides
// whether it is fatal or informational.
func (p *Pipeline) Simulate(ctx context.Context, tx *UnsignedTx) (ledger.SimulationResult, error) {
	serialized, err := tx.Serialize()
	if err != nil {
		return ledger.SimulationResult{}, err
	}
	return p.client.Simulate(ctx, serialized)
}

// Sign attaches each signer's signature to the compiled envelope. Call this
// after Simulate.
func (p *Pipeline) Sign(tx *UnsignedTx, signers ...Signer) (*SignedTx, error) {
	message, err := tx.Message()
	if err != nil {
		return nil, err
	}

	signed := &SignedTx{Unsigned: tx}
	for _, signer := range signers {
		signed.signatures = append(signed.signatures, txSignature{
			Address:   signer.Address(),
			Signature: base64.StdEncoding.EncodeToString(signer.Sign(message)),
		})
	}
	return signed, nil
}

// SubmitAndConfirm broadcasts the signed envelope and waits for confirmation
// within the validity window captured at build time. Expiry is fatal for this
// attempt; the caller must rebuild with a fresh checkpoint.
func (p *Pipeline) SubmitAndConfirm(ctx context.Context, tx *SignedTx) (string, error) {
	serialized, err := tx.Serialize()
	if err != nil {
		return "", err
	}

	submissionID, err := p.client.SubmitRaw(ctx, serialized)
	if err != nil {
		return "", err
	}

	if err := p.client.Confirm(ctx, submissionID, tx.Unsigned.Checkpoint); err != nil {
		return "", err
	}
	return submissionID, nil
}

// Execute runs all four stages in order. A simulation failure is returned as
// a SIMULATION_FAILURE error carrying the on-chain error text and a log
// excerpt; callers that treat it as informational can match on the code.
func (p *Pipeline) Execute(ctx context.Context, feePayer string, instructions []Instruction, signers ...Signer) (string, error) {
	tx, err := p.Build(ctx, feePayer, instructions)
	if err != nil {
		return "", err
	}

	sim, err := p.Simulate(ctx, tx)
	if err != nil {
		return "", err
	}
	if !sim.OK {
		return "", xerrors.New(xerrors.CodeSimulationFailure, sim.Err,
			xerrors.WithMetadata("logs", strings.Join(sim.Logs, "\n")))
	}

	signed, err := p.Sign(tx, signers...)
	if err != nil {
		return "", err
	}

	return p.SubmitAndConfirm(ctx, signed)
}
