package model

import (
	"errors"
	"fmt"
)

var ErrorStoreUnavailable = errors.New("queue store unavailable")
var ErrorInvalidRecord = errors.New("invalid post record")
var ErrorRecordNotFound = errors.New("post record not found")
var ErrorStaleDecision = errors.New("stale or unknown decision")

// DeliveryError reports a failed message send. Permanent failures (unknown
// chat, blocked bot) move the record to failed; transient ones release the
// claim so the next poll cycle retries.
type DeliveryError struct {
	Op        string
	Permanent bool
	Err       error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}
