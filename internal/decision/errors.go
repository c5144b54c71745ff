package decision

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by stores when a record id does not exist.
var ErrNotFound = errors.New("decision not found")

// LowConfidenceError reports a capability answer below its acceptance threshold.
type LowConfidenceError struct {
	Reason     string
	Confidence int
}

func (e *LowConfidenceError) Error() string {
	return fmt.Sprintf("low confidence (%d%%): %s", e.Confidence, e.Reason)
}

// RefusalError carries a capability's own explanation for not answering.
// Message is shown to the user unchanged.
type RefusalError struct {
	Message string
}

func (e *RefusalError) Error() string {
	return e.Message
}

// SchemaError reports a capability response that failed validation.
type SchemaError struct {
	Capability string
	Err        error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s: invalid response: %v", e.Capability, e.Err)
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}
