package negotiation

import "fmt"

// GenerationError wraps a failure from the external text-generation
// capability. Recoverable failures cost the agent its turn (the turn is
// recorded with a nil offer and the run continues); non-recoverable ones fail
// the whole run.
type GenerationError struct {
	Agent       string
	Recoverable bool
	Err         error
}

func (e *GenerationError) Error() string {
	kind := "non-recoverable"
	if e.Recoverable {
		kind = "recoverable"
	}
	return fmt.Sprintf("%s generation failure for %s: %v", kind, e.Agent, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}
