package errors

import (
	stdErrors "errors"
	"fmt"
	"sync"
)

// Code is the unified error code shared across the wallet fleet.
type Code string

// Severity describes how serious an error is, used for alerting and audit.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Attributes provide the default behaviour attached to an error code.
type Attributes struct {
	Message   string
	Severity  Severity
	Retryable bool
	Alert     bool
}

const (
	CodeUnknown              Code = "UNKNOWN"
	CodeInvalidArgument      Code = "INVALID_ARGUMENT"
	CodeConfigurationFailure Code = "CONFIGURATION_FAILURE"
	CodeCryptoFailure        Code = "CRYPTO_FAILURE"
	CodeUnlockFailure        Code = "UNLOCK_FAILURE"
	CodePolicyRejected       Code = "POLICY_REJECTED"
	CodeKillSwitchActive     Code = "KILL_SWITCH_ACTIVE"
	CodeActionBudgetExceeded Code = "ACTION_BUDGET_EXCEEDED"
	CodeProgramNotAllowed    Code = "PROGRAM_NOT_ALLOWED"
	CodeInvalidAmount        Code = "INVALID_AMOUNT"
	CodeLimitExceeded        Code = "LIMIT_EXCEEDED"
	CodeMissingMint          Code = "MISSING_MINT"
	CodeNetworkFailure       Code = "NETWORK_FAILURE"
	CodeSubmissionFailure    Code = "SUBMISSION_FAILURE"
	CodeSubmissionExpired    Code = "SUBMISSION_EXPIRED"
	CodeSimulationFailure    Code = "SIMULATION_FAILURE"
	CodeStorageFailure       Code = "STORAGE_FAILURE"
)

var (
	registryMu sync.RWMutex
	registry   = map[Code]Attributes{
		CodeUnknown: {
			Message:   "unknown error",
			Severity:  SeverityCritical,
			Retryable: false,
			Alert:     true,
		},
		CodeInvalidArgument: {
			Message:   "invalid argument",
			Severity:  SeverityInfo,
			Retryable: false,
			Alert:     false,
		},
		CodeConfigurationFailure: {
			Message:   "configuration failure",
			Severity:  SeverityCritical,
			Retryable: false,
			Alert:     true,
		},
		CodeCryptoFailure: {
			Message:   "cryptographic failure",
			Severity:  SeverityCritical,
			Retryable: false,
			Alert:     true,
		},
		CodeUnlockFailure: {
			Message:   "keystore unlock failure",
			Severity:  SeverityCritical,
			Retryable: false,
			Alert:     true,
		},
		CodePolicyRejected: {
			Message:   "action rejected by guardrails",
			Severity:  SeverityWarning,
			Retryable: false,
			Alert:     false,
		},
		CodeKillSwitchActive: {
			Message:   "kill switch active",
			Severity:  SeverityWarning,
			Retryable: false,
			Alert:     true,
		},
		CodeActionBudgetExceeded: {
			Message:   "per-run action budget exceeded",
			Severity:  SeverityWarning,
			Retryable: false,
			Alert:     true,
		},
		CodeProgramNotAllowed: {
			Message:   "program not in allow list",
			Severity:  SeverityWarning,
			Retryable: false,
			Alert:     true,
		},
		CodeInvalidAmount: {
			Message:   "invalid transfer amount",
			Severity:  SeverityInfo,
			Retryable: false,
			Alert:     false,
		},
		CodeLimitExceeded: {
			Message:   "transfer amount exceeds configured limit",
			Severity:  SeverityWarning,
			Retryable: false,
			Alert:     false,
		},
		CodeMissingMint: {
			Message:   "no mint recorded in run state",
			Severity:  SeverityCritical,
			Retryable: false,
			Alert:     true,
		},
		CodeNetworkFailure: {
			Message:   "ledger network failure",
			Severity:  SeverityWarning,
			Retryable: true,
			Alert:     true,
		},
		CodeSubmissionFailure: {
			Message:   "transaction submission failure",
			Severity:  SeverityWarning,
			Retryable: true,
			Alert:     true,
		},
		CodeSubmissionExpired: {
			Message:   "confirmation window expired",
			Severity:  SeverityWarning,
			Retryable: false,
			Alert:     true,
		},
		CodeSimulationFailure: {
			Message:   "transaction simulation failure",
			Severity:  SeverityInfo,
			Retryable: false,
			Alert:     false,
		},
		CodeStorageFailure: {
			Message:   "storage failure",
			Severity:  SeverityCritical,
			Retryable: true,
			Alert:     true,
		},
	}
)

// Register lets a package add its own error code attributes during init.
func Register(code Code, attr Attributes) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[code] = attr
}

// AttributesOf returns the attributes of a code, falling back to UNKNOWN.
func AttributesOf(code Code) Attributes {
	registryMu.RLock()
	attr, ok := registry[code]
	registryMu.RUnlock()
	if ok {
		return attr
	}
	registryMu.RLock()
	fallback := registry[CodeUnknown]
	registryMu.RUnlock()
	return fallback
}

// Error is the unified error type used across the system.
type Error struct {
	code      Code
	message   string
	cause     error
	metadata  map[string]string
	retryable *bool
	alert     *bool
	severity  *Severity
}

// Option configures optional error fields.
type Option func(*Error)

// WithMetadata attaches contextual key/value information, e.g. the action
// label and the limit that was violated.
func WithMetadata(key, value string) Option {
	return func(e *Error) {
		if e.metadata == nil {
			e.metadata = make(map[string]string)
		}
		e.metadata[key] = value
	}
}

// WithRetryable overrides whether the error may be retried.
func WithRetryable(retryable bool) Option {
	return func(e *Error) {
		e.retryable = &retryable
	}
}

// WithAlert overrides whether the error should raise an alert.
func WithAlert(alert bool) Option {
	return func(e *Error) {
		e.alert = &alert
	}
}

// WithSeverity overrides the default severity.
func WithSeverity(sev Severity) Option {
	return func(e *Error) {
		e.severity = &sev
	}
}

// New creates a fresh error instance.
func New(code Code, message string, opts ...Option) *Error {
	if message == "" {
		message = AttributesOf(code).Message
	}
	e := &Error{code: code, message: message}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Wrap decorates an underlying cause with a unified error.
func Wrap(code Code, cause error, message string, opts ...Option) *Error {
	e := New(code, message, opts...)
	e.cause = cause
	return e
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.code, e.message)
}

// Unwrap implements errors.Unwrap.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Is reports whether target carries the same code.
func (e *Error) Is(target error) bool {
	if e == nil || target == nil {
		return false
	}
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.code == t.code
}

// Code returns the error code.
func (e *Error) Code() Code {
	if e == nil {
		return CodeUnknown
	}
	return e.code
}

// Message returns the human readable message.
func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

// Metadata returns a copy of the attached metadata.
func (e *Error) Metadata() map[string]string {
	if e == nil || len(e.metadata) == 0 {
		return nil
	}
	clone := make(map[string]string, len(e.metadata))
	for k, v := range e.metadata {
		clone[k] = v
	}
	return clone
}

// Retryable reports whether the error may be retried.
func (e *Error) Retryable() bool {
	if e == nil {
		return false
	}
	if e.retryable != nil {
		return *e.retryable
	}
	attr := AttributesOf(e.code)
	return attr.Retryable
}

// ShouldAlert reports whether the error should raise an alert.
func (e *Error) ShouldAlert() bool {
	if e == nil {
		return false
	}
	if e.alert != nil {
		return *e.alert
	}
	attr := AttributesOf(e.code)
	return attr.Alert
}

// Severity returns the error severity.
func (e *Error) Severity() Severity {
	if e == nil {
		return SeverityInfo
	}
	if e.severity != nil {
		return *e.severity
	}
	attr := AttributesOf(e.code)
	return attr.Severity
}

// From extracts the unified error type if err carries one.
func From(err error) (*Error, bool) {
	if err == nil {
		return nil, false
	}
	var target *Error
	if stdErrors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// CodeOf returns the code attached to err, or UNKNOWN.
func CodeOf(err error) Code {
	if e, ok := From(err); ok {
		return e.Code()
	}
	return CodeUnknown
}

// RetryableError reports whether any error is retryable.
func RetryableError(err error) bool {
	if e, ok := From(err); ok {
		return e.Retryable()
	}
	return false
}

// ShouldAlert reports whether any error should raise an alert.
func ShouldAlert(err error) bool {
	if e, ok := From(err); ok {
		return e.ShouldAlert()
	}
	return false
}

// SeverityOf returns the severity of any error.
func SeverityOf(err error) Severity {
	if e, ok := From(err); ok {
		return e.Severity()
	}
	return AttributesOf(CodeUnknown).Severity
}
