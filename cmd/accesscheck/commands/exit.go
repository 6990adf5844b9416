package commands

import (
	"errors"

	"github.com/jmylchreest/accesscheck/internal/table"
	"github.com/jmylchreest/accesscheck/pkg/rules"
)

// Exit codes.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitUsage   = 2
	ExitInput   = 3
)

// UsageError reports invalid arguments or flags.
type UsageError struct {
	Err error
}

func (e *UsageError) Error() string { return e.Err.Error() }

func (e *UsageError) Unwrap() error { return e.Err }

// ExitCode maps an error returned by Execute to the process exit status.
// Interrupted runs return nil and exit 0.
func ExitCode(err error) int {
	var ue *UsageError
	var ie *table.InputError
	switch {
	case err == nil:
		return ExitOK
	case errors.As(err, &ue), errors.Is(err, rules.ErrUnknownPlatform):
		return ExitUsage
	case errors.As(err, &ie):
		return ExitInput
	default:
		return ExitFailure
	}
}
