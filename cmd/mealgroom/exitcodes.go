package main

import (
	"errors"
	"os"

	"github.com/kitchenops/mealgroom/internal/config"
	"github.com/kitchenops/mealgroom/internal/mealie"
	"github.com/kitchenops/mealgroom/internal/orchestrator"
	"github.com/kitchenops/mealgroom/internal/session"
)

// Exit codes for different error types.
// These enable scripts to distinguish between failure modes.
const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0

	// ExitGeneral indicates a general error
	ExitGeneral = 1

	// ExitUsage indicates invalid arguments or usage error
	ExitUsage = 2

	// ExitConfig indicates missing or invalid configuration
	ExitConfig = 3

	// ExitAuth indicates the server rejected the API token
	ExitAuth = 4

	// ExitNetwork indicates the server was unreachable
	ExitNetwork = 5

	// ExitSession indicates an unusable session file
	ExitSession = 6
)

// usageError tags cobra flag and argument errors so scripts can tell bad
// invocations apart from runtime failures.
type usageError struct {
	err error
}

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

// exitCodeFor maps an error to its exit code.
func exitCodeFor(err error) int {
	var usage usageError
	var cfgErr *config.Error
	switch {
	case err == nil:
		return ExitSuccess
	case errors.As(err, &usage):
		return ExitUsage
	case errors.As(err, &cfgErr):
		return ExitConfig
	case errors.Is(err, orchestrator.ErrHalted), mealie.IsAuth(err):
		return ExitAuth
	case mealie.IsTransient(err):
		return ExitNetwork
	case errors.Is(err, session.ErrCorrupted), errors.Is(err, session.ErrIncompatibleSchema):
		return ExitSession
	default:
		return ExitGeneral
	}
}

// exitWithCode exits with the specified exit code
func exitWithCode(code int) {
	os.Exit(code)
}
