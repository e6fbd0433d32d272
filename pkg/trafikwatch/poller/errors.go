package poller

import "fmt"

// TransportError wraps any failure to reach or query a device: connect
// errors, timeouts, and malformed responses. It identifies the target and
// the operation that failed so log lines and the dashboard can show where a
// poll went wrong without parsing message text.
type TransportError struct {
	Target string
	Op     string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Target, e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func transportErr(target, op string, err error) *TransportError {
	return &TransportError{Target: target, Op: op, Err: err}
}
