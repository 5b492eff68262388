package nftkit

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrNoContractProvided    = fmt.Errorf("no contract instance provided")
	ErrUnsupportedCapability = fmt.Errorf("contract does not support operation")
	ErrMissingArgument       = fmt.Errorf("missing required argument")
	ErrUnknownChain          = fmt.Errorf("unknown chain")
	ErrCacheMiss             = fmt.Errorf("cache miss")
	ErrStoreClosed           = fmt.Errorf("cache store closed")
	ErrInvalidParameter      = fmt.Errorf("invalid request parameter")
	ErrRpcFailed             = fmt.Errorf("rpc request failed")
)

var AllErrors = []error{
	ErrNoContractProvided,
	ErrUnsupportedCapability,
	ErrMissingArgument,
	ErrUnknownChain,
	ErrCacheMiss,
	ErrStoreClosed,
	ErrInvalidParameter,
	ErrRpcFailed,
}

// MissingArgumentError names the request field that was absent for the
// resolved capability path.
type MissingArgumentError struct {
	Field string
}

func (e *MissingArgumentError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMissingArgument, e.Field)
}

func (e *MissingArgumentError) Is(target error) bool {
	return target == ErrMissingArgument
}

type UnsupportedCapabilityError struct {
	Operation string
}

func (e *UnsupportedCapabilityError) Error() string {
	return fmt.Sprintf("%s: %s", ErrUnsupportedCapability, e.Operation)
}

func (e *UnsupportedCapabilityError) Is(target error) bool {
	return target == ErrUnsupportedCapability
}

func missingArgument(field string) error {
	return errors.WithStack(&MissingArgumentError{Field: field})
}

func unsupported(operation string) error {
	return errors.WithStack(&UnsupportedCapabilityError{Operation: operation})
}

func noContract() error {
	return errors.WithStack(ErrNoContractProvided)
}

// MissingField extracts the field name from a MissingArgument failure.
func MissingField(err error) (field string, ok bool) {
	var target *MissingArgumentError
	if errors.As(err, &target) {
		return target.Field, true
	}
	return "", false
}
