// Package erruser provides errors whose Error() returns only a user-facing
// message. The cause is available via Unwrap() and an optional remediation
// hint via Hint().
package erruser

import "errors"

// Err holds a user-facing message, an optional remediation hint, and an
// optional cause for debugging. Error() returns only Msg; the CLI prints the
// cause as "Details: ..." and the hint on its own line.
type Err struct {
	Msg  string
	Hint string
	Err  error
}

// Error returns the user-facing message only.
func (e *Err) Error() string {
	if e == nil {
		return ""
	}
	return e.Msg
}

// Unwrap returns the underlying error for Details or logging.
func (e *Err) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New returns an error with the given user-facing message. If err is non-nil,
// it is wrapped and available via Unwrap() so callers can print "Details: %v".
// If err is nil, returns a simple error with just msg (no Unwrap).
func New(msg string, err error) error {
	if err == nil {
		return errors.New(msg)
	}
	return &Err{Msg: msg, Err: err}
}

// WithHint is like New but attaches a remediation hint. The hint is shown to
// the user after the message and details.
func WithHint(msg, hint string, err error) error {
	return &Err{Msg: msg, Hint: hint, Err: err}
}

// Hint returns the first non-empty hint found in err's chain, or "".
func Hint(err error) string {
	for err != nil {
		var e *Err
		if !errors.As(err, &e) {
			return ""
		}
		if e.Hint != "" {
			return e.Hint
		}
		err = e.Err
	}
	return ""
}
