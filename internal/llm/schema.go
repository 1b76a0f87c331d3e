package llm

import (
	"encoding/json"

	"github.com/google/generative-ai-go/genai"
)

// SchemaType is a JSON value type
type SchemaType string

// Schema value types
const (
	TypeObject  SchemaType = "object"
	TypeArray   SchemaType = "array"
	TypeString  SchemaType = "string"
	TypeInteger SchemaType = "integer"
	TypeNumber  SchemaType = "number"
	TypeBoolean SchemaType = "boolean"
)

// Schema describes the JSON shape an extraction must return. It converts both to the
// Gemini response schema sent with the request and to a JSON Schema used to check the reply.
type Schema struct {
	Type        SchemaType
	Description string
	Properties  map[string]*Schema
	Required    []string
	Items       *Schema
	Enum        []string
	Nullable    bool
	MinItems    *int
	MaxItems    *int
	Minimum     *float64
	Maximum     *float64
}

// Object builds an object schema where every listed property is required
func Object(props map[string]*Schema, required ...string) *Schema {
	return &Schema{Type: TypeObject, Properties: props, Required: required}
}

// ArrayOf builds an array schema
func ArrayOf(items *Schema) *Schema {
	return &Schema{Type: TypeArray, Items: items}
}

// String builds a string schema with an optional description
func String(desc string) *Schema {
	return &Schema{Type: TypeString, Description: desc}
}

// Enum builds a string schema restricted to values
func Enum(values ...string) *Schema {
	return &Schema{Type: TypeString, Enum: values}
}

// Number builds a number schema
func Number(desc string) *Schema {
	return &Schema{Type: TypeNumber, Description: desc}
}

// Integer builds an integer schema with bounds
func Integer(min, max float64) *Schema {
	return &Schema{Type: TypeInteger, Minimum: &min, Maximum: &max}
}

// Boolean builds a boolean schema
func Boolean() *Schema {
	return &Schema{Type: TypeBoolean}
}

// OrNull returns a copy of s that also accepts null
func (s *Schema) OrNull() *Schema {
	c := *s
	c.Nullable = true
	return &c
}

// WithItemRange returns a copy of s bounded to [min, max] items
func (s *Schema) WithItemRange(min, max int) *Schema {
	c := *s
	c.MinItems = &min
	c.MaxItems = &max
	return &c
}

var genaiTypes = map[SchemaType]genai.Type{
	TypeObject:  genai.TypeObject,
	TypeArray:   genai.TypeArray,
	TypeString:  genai.TypeString,
	TypeInteger: genai.TypeInteger,
	TypeNumber:  genai.TypeNumber,
	TypeBoolean: genai.TypeBoolean,
}

// Genai converts the schema to a Gemini response schema
func (s *Schema) Genai() *genai.Schema {
	if s == nil {
		return nil
	}
	out := &genai.Schema{
		Type:        genaiTypes[s.Type],
		Description: s.Description,
		Nullable:    s.Nullable,
		Enum:        s.Enum,
		Required:    s.Required,
		Items:       s.Items.Genai(),
	}
	if len(s.Enum) > 0 {
		out.Format = "enum"
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, p := range s.Properties {
			out.Properties[name] = p.Genai()
		}
	}
	return out
}

// JSONSchema converts the schema to a JSON Schema document
func (s *Schema) JSONSchema() map[string]any {
	if s == nil {
		return map[string]any{}
	}
	out := map[string]any{}
	if s.Nullable {
		out["type"] = []string{string(s.Type), "null"}
	} else {
		out["type"] = string(s.Type)
	}
	if s.Description != "" {
		out["description"] = s.Description
	}
	if len(s.Enum) > 0 {
		enum := make([]any, 0, len(s.Enum)+1)
		for _, e := range s.Enum {
			enum = append(enum, e)
		}
		if s.Nullable {
			enum = append(enum, nil)
		}
		out["enum"] = enum
	}
	if len(s.Properties) > 0 {
		props := make(map[string]any, len(s.Properties))
		for name, p := range s.Properties {
			props[name] = p.JSONSchema()
		}
		out["properties"] = props
	}
	if len(s.Required) > 0 {
		out["required"] = s.Required
	}
	if s.Items != nil {
		out["items"] = s.Items.JSONSchema()
	}
	if s.MinItems != nil {
		out["minItems"] = *s.MinItems
	}
	if s.MaxItems != nil {
		out["maxItems"] = *s.MaxItems
	}
	if s.Minimum != nil {
		out["minimum"] = *s.Minimum
	}
	if s.Maximum != nil {
		out["maximum"] = *s.Maximum
	}
	return out
}

// JSONSchemaString renders JSONSchema as a string for gojsonschema
func (s *Schema) JSONSchemaString() string {
	b, err := json.Marshal(s.JSONSchema())
	if err != nil {
		return "{}"
	}
	return string(b)
}
