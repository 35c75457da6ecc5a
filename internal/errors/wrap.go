package errors

import "fmt"

// Wrap adds context to errors at package boundaries.
// It returns nil if err is nil, allowing for safe inline usage:
//
//	if err := snap.Save(path); err != nil {
//	    return errors.Wrap(err, "failed to persist snapshot")
//	}
//
// The sentinel chain is preserved, so errors.Is(err, errors.ErrBuildFailed)
// keeps working on the wrapped value.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf adds formatted context to errors at package boundaries.
// It returns nil if err is nil.
//
//	return errors.Wrapf(err, "query %s", name)
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	msg := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapsf attaches a sentinel to a formatted message without an underlying
// cause, for failures detected by the pipeline itself.
//
//	return errors.Wrapsf(errors.ErrIndexBuild, "%d of %d entries valid", 0, n)
func Wrapsf(sentinel error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))
}
