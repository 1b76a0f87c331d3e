// Package llm - extractor.go provides schema-validated structured extraction.
package llm

import (
	"context"
	"encoding/json"

	"github.com/jonathan/docdna/internal/schemas"
)

// Extractor returns schema-conforming structured output for a request.
// The decoded result is written into out.
type Extractor interface {
	Extract(ctx context.Context, req Request, out any) error
}

// ExtractorFunc adapts a function to the Extractor interface
type ExtractorFunc func(ctx context.Context, req Request, out any) error

// Extract calls f
func (f ExtractorFunc) Extract(ctx context.Context, req Request, out any) error {
	return f(ctx, req, out)
}

// SchemaExtractor calls a Client and checks the reply against the request schema before decoding.
type SchemaExtractor struct {
	client Client
}

// NewSchemaExtractor creates an extractor over client
func NewSchemaExtractor(client Client) *SchemaExtractor {
	return &SchemaExtractor{client: client}
}

// Extract runs the request and decodes the validated JSON into out
func (e *SchemaExtractor) Extract(ctx context.Context, req Request, out any) error {
	name := req.Name
	if name == "" {
		name = "extract"
	}

	text, err := e.client.GenerateJSON(ctx, req)
	if err != nil {
		return &APICallError{Call: name, Cause: err}
	}

	text = CleanJSONBlock(text)
	if text == "" {
		return &ParseError{Call: name, Message: "empty response"}
	}
	if !json.Valid([]byte(text)) {
		return &ParseError{Call: name, Message: "response is not valid JSON"}
	}

	if req.Schema != nil {
		if err := schemas.ValidateJSONString(req.Schema.JSONSchemaString(), text); err != nil {
			return &SchemaError{Call: name, Cause: err}
		}
	}

	if err := json.Unmarshal([]byte(text), out); err != nil {
		return &ParseError{Call: name, Message: "failed to decode response", Cause: err}
	}
	return nil
}

// StaticExtractor returns an Extractor that decodes a fixed JSON reply, for tests and dry runs.
func StaticExtractor(reply string) Extractor {
	return ExtractorFunc(func(_ context.Context, req Request, out any) error {
		if req.Schema != nil {
			if err := schemas.ValidateJSONString(req.Schema.JSONSchemaString(), reply); err != nil {
				return &SchemaError{Call: req.Name, Cause: err}
			}
		}
		if err := json.Unmarshal([]byte(reply), out); err != nil {
			return &ParseError{Call: req.Name, Message: "failed to decode response", Cause: err}
		}
		return nil
	})
}
