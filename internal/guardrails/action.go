package guardrails

import (
	"fmt"

	xerrors "AgentFleet-Chain/internal/errors"
)

// Action is the closed set of privileged actions the engine can authorize.
// Adding a new kind means adding a variant here and a case to Authorize, so
// an unhandled kind is caught at review time rather than at runtime.
type Action interface {
	isAction()
}

// ProgramInvocation proposes calling the listed program identifiers.
type ProgramInvocation struct {
	ProgramIDs []string
}

// ValueTransfer proposes moving native value, in whole units.
type ValueTransfer struct {
	Amount float64
}

// TokenTransfer proposes moving tokens, in minimal units.
type TokenTransfer struct {
	AmountRaw uint64
	Decimals  uint8
}

func (ProgramInvocation) isAction() {}
func (ValueTransfer) isAction()     {}
func (TokenTransfer) isAction()     {}

// Authorize dispatches an action to its operation-specific check.
func (e *Engine) Authorize(label string, action Action) error {
	switch a := action.(type) {
	case ProgramInvocation:
		return e.AssertProgramsAllowed(label, a.ProgramIDs)
	case ValueTransfer:
		return e.AssertValueTransfer(label, a.Amount)
	case TokenTransfer:
		return e.AssertTokenAmount(label, a.AmountRaw, a.Decimals)
	default:
		return xerrors.New(xerrors.CodeInvalidArgument,
			fmt.Sprintf("unknown action kind %T (%s)", action, label))
	}
}
