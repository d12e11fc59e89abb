package recurrence

import "fmt"

// MalformedRuleError is returned when a transport string cannot be decoded
// by either the strict or the lenient parser.
type MalformedRuleError struct {
	Input   string
	Message string
	Err     error
}

func (e *MalformedRuleError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed recurrence rule %q: %s: %v", e.Input, e.Message, e.Err)
	}
	return fmt.Sprintf("malformed recurrence rule %q: %s", e.Input, e.Message)
}

func (e *MalformedRuleError) Unwrap() error { return e.Err }

func malformed(input, message string, err error) error {
	return &MalformedRuleError{Input: input, Message: message, Err: err}
}
