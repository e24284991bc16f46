package xenopsd

import "github.com/pkg/errors"

// wrap annotates a low-level transport or protocol error with the
// operation that was in flight when it happened, via github.com/pkg/errors
// since this package's errors are plumbing, not user-visible ApiErrors.
func wrap(err error, op string) error {
	if err == nil {
		return nil
	}
	return errors.Wrapf(err, "xenopsd: %s", op)
}
