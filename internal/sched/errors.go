package sched

import "errors"

var (
	ErrCapacityFull     = errors.New("task registry full")
	ErrInvalidIndex     = errors.New("invalid task index")
	ErrInvalidParams    = errors.New("invalid task parameters")
	ErrUnknownAlgorithm = errors.New("unknown scheduling algorithm")
	ErrNotLoopContext   = errors.New("administrative call outside the scheduler loop")
	ErrMailboxFull      = errors.New("scheduler mailbox full")
	ErrAlreadyRunning   = errors.New("scheduler already running")
)

// ErrorCode is the flat result code reported to operators (terminal, logs).
type ErrorCode int

const (
	CodeOK ErrorCode = iota
	CodeCapacityFull
	CodeInvalidIndex
	CodeInvalidParams
	CodeUnknown
)

// CodeOf maps an error returned by the scheduler to its ErrorCode.
func CodeOf(err error) ErrorCode {
	switch {
	case err == nil:
		return CodeOK
	case errors.Is(err, ErrCapacityFull):
		return CodeCapacityFull
	case errors.Is(err, ErrInvalidIndex):
		return CodeInvalidIndex
	case errors.Is(err, ErrInvalidParams):
		return CodeInvalidParams
	default:
		return CodeUnknown
	}
}

func (c ErrorCode) String() string {
	switch c {
	case CodeOK:
		return "OK"
	case CodeCapacityFull:
		return "CAPACITY_FULL"
	case CodeInvalidIndex:
		return "INVALID_INDEX"
	case CodeInvalidParams:
		return "INVALID_PARAMS"
	default:
		return "UNKNOWN"
	}
}
