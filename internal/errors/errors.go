// Package errors provides small error aggregation helpers.
package errors

import "strings"

// ErrorList collects multiple errors into one.
type ErrorList struct {
	errors []error
}

// Add appends a non-nil error to the list.
func (e *ErrorList) Add(err error) {
	if err != nil {
		e.errors = append(e.errors, err)
	}
}

func (e *ErrorList) Error() string {
	errStrings := make([]string, len(e.errors))
	for i, err := range e.errors {
		errStrings[i] = err.Error()
	}
	return strings.Join(errStrings, "; ")
}

// HasErrors reports whether any error was added.
func (e *ErrorList) HasErrors() bool {
	return len(e.errors) > 0
}

// Errors returns the collected errors.
func (e *ErrorList) Errors() []error {
	return e.errors
}
