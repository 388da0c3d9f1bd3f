package cli

import "errors"

// ErrUsage marks failures caused by how the command was invoked (missing
// flags, bad config values, output conflicts) rather than by generation
// itself. main prints these messages verbatim, so they must stand alone
// without wrapped context.
var ErrUsage = errors.New("cli usage error")

// usageError carries a ready-to-print message and matches ErrUsage under
// errors.Is.
type usageError struct {
	msg string
}

func newUsageError(msg string) error { return usageError{msg: msg} }

func (e usageError) Error() string { return e.msg }

func (e usageError) Is(target error) bool { return target == ErrUsage }
