package cli

import (
	"errors"

	"github.com/vk/taproot/internal/app"
	"github.com/vk/taproot/internal/backend"
	"github.com/vk/taproot/internal/contract"
	"github.com/vk/taproot/internal/executor"
	"github.com/vk/taproot/internal/pipeline"
	"github.com/vk/taproot/internal/registry"
	"github.com/vk/taproot/internal/settings"
)

// Exit codes. Scripts branch on these, so they are part of the CLI's
// contract and must stay stable.
const (
	ExitOK        = 0
	ExitUsage     = 2
	ExitGraph     = 3
	ExitSettings  = 4
	ExitExecution = 5
	ExitBackend   = 6
)

// ExitCode maps an error returned by Run to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}

	var (
		mismatch    *contract.MismatchError
		contractErr *contract.Error
		cyclic      *pipeline.CyclicGraphError
		duplicate   *pipeline.DuplicateStepError
		unsatisfied *pipeline.UnsatisfiedInputError
	)
	if errors.As(err, &mismatch) || errors.As(err, &contractErr) ||
		errors.As(err, &cyclic) || errors.As(err, &duplicate) || errors.As(err, &unsatisfied) {
		return ExitGraph
	}

	var (
		missing    *settings.MissingSettingError
		validation *app.ValidationError
	)
	if errors.As(err, &missing) || errors.As(err, &validation) {
		return ExitSettings
	}

	var stepFailed *executor.StepFailedError
	if errors.As(err, &stepFailed) {
		return ExitExecution
	}

	var (
		configErr *backend.ConfigError
		valuesErr *backend.ValuesError
	)
	if errors.As(err, &configErr) || errors.As(err, &valuesErr) {
		return ExitBackend
	}

	var unknown *registry.UnknownError
	if errors.As(err, &unknown) {
		return ExitUsage
	}

	return 1
}
