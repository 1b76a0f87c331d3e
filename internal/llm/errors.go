package llm

import "fmt"

// APICallError represents an error from the model provider
type APICallError struct {
	Call  string
	Cause error
}

func (e *APICallError) Error() string {
	return fmt.Sprintf("%s: API call failed: %v", e.Call, e.Cause)
}

func (e *APICallError) Unwrap() error {
	return e.Cause
}

// ParseError represents a response that is not the JSON we asked for
type ParseError struct {
	Call    string
	Message string
	Cause   error
}

func (e *ParseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: parse error: %s: %v", e.Call, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: parse error: %s", e.Call, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

// SchemaError represents a response that parsed but does not conform to the request schema
type SchemaError struct {
	Call  string
	Cause error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s: response does not match schema: %v", e.Call, e.Cause)
}

func (e *SchemaError) Unwrap() error {
	return e.Cause
}
