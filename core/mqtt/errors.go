package mqtt

import "errors"

// ErrAckTimeout is returned when no acknowledgment is received before the timeout.
var ErrAckTimeout = errors.New("timeout waiting for ack")

// ErrUnknownRun is returned when waiting on a run that was never published.
var ErrUnknownRun = errors.New("unknown run")
