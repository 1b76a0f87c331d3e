package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	reply   string
	err     error
	lastReq Request
}

func (f *fakeClient) GenerateJSON(_ context.Context, req Request) (string, error) {
	f.lastReq = req
	return f.reply, f.err
}

func (f *fakeClient) Embed(context.Context, string) ([]float32, error) { return nil, nil }
func (f *fakeClient) GetModel(ModelTier) string                        { return "fake" }
func (f *fakeClient) Close() error                                     { return nil }

func tagSchema() *Schema {
	return Object(map[string]*Schema{
		"summary": String("one paragraph"),
		"tags":    ArrayOf(String("")).WithItemRange(1, 3),
	}, "summary", "tags")
}

type tagReply struct {
	Summary string   `json:"summary"`
	Tags    []string `json:"tags"`
}

func TestSchemaExtractor_Success(t *testing.T) {
	client := &fakeClient{reply: "```json\n{\"summary\": \"s\", \"tags\": [\"a\", \"b\"]}\n```"}
	e := NewSchemaExtractor(client)

	var out tagReply
	err := e.Extract(context.Background(), Request{Name: "enrich", Prompt: "p", Schema: tagSchema()}, &out)
	require.NoError(t, err)
	assert.Equal(t, "s", out.Summary)
	assert.Equal(t, []string{"a", "b"}, out.Tags)
	assert.Equal(t, "p", client.lastReq.Prompt)
}

func TestSchemaExtractor_Errors(t *testing.T) {
	tests := []struct {
		name   string
		client *fakeClient
		check  func(t *testing.T, err error)
	}{
		{
			name:   "api failure",
			client: &fakeClient{err: errors.New("quota")},
			check: func(t *testing.T, err error) {
				var apiErr *APICallError
				require.ErrorAs(t, err, &apiErr)
				assert.Contains(t, err.Error(), "quota")
			},
		},
		{
			name:   "empty reply",
			client: &fakeClient{reply: "  "},
			check: func(t *testing.T, err error) {
				var parseErr *ParseError
				require.ErrorAs(t, err, &parseErr)
			},
		},
		{
			name:   "invalid json",
			client: &fakeClient{reply: "{\"summary\": "},
			check: func(t *testing.T, err error) {
				var parseErr *ParseError
				require.ErrorAs(t, err, &parseErr)
			},
		},
		{
			name:   "schema mismatch",
			client: &fakeClient{reply: `{"summary": "s", "tags": ["a", "b", "c", "d"]}`},
			check: func(t *testing.T, err error) {
				var schemaErr *SchemaError
				require.ErrorAs(t, err, &schemaErr)
				assert.True(t, strings.HasPrefix(err.Error(), "enrich:"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out tagReply
			err := NewSchemaExtractor(tt.client).Extract(context.Background(),
				Request{Name: "enrich", Schema: tagSchema()}, &out)
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestStaticExtractor(t *testing.T) {
	var out tagReply
	err := StaticExtractor(`{"summary": "x", "tags": ["t"]}`).Extract(context.Background(),
		Request{Name: "enrich", Schema: tagSchema()}, &out)
	require.NoError(t, err)
	assert.Equal(t, "x", out.Summary)

	err = StaticExtractor(`{"summary": 1}`).Extract(context.Background(),
		Request{Name: "enrich", Schema: tagSchema()}, &out)
	var schemaErr *SchemaError
	assert.ErrorAs(t, err, &schemaErr)
}

func TestSchema_JSONSchemaNullable(t *testing.T) {
	s := Object(map[string]*Schema{
		"size":   Number("").OrNull(),
		"weight": Enum("normal", "bold").OrNull(),
		"depth":  Integer(1, 4),
	}, "size", "weight", "depth")

	js := s.JSONSchema()
	props := js["properties"].(map[string]any)
	assert.Equal(t, []string{"number", "null"}, props["size"].(map[string]any)["type"])
	assert.Contains(t, props["weight"].(map[string]any)["enum"], nil)
	assert.Equal(t, 4.0, props["depth"].(map[string]any)["maximum"])
}

func TestSchema_Genai(t *testing.T) {
	s := Object(map[string]*Schema{
		"items": ArrayOf(Enum("a", "b")),
	}, "items")

	g := s.Genai()
	require.NotNil(t, g.Properties["items"])
	require.NotNil(t, g.Properties["items"].Items)
	assert.Equal(t, []string{"a", "b"}, g.Properties["items"].Items.Enum)
	assert.Equal(t, "enum", g.Properties["items"].Items.Format)
	assert.Equal(t, []string{"items"}, g.Required)
	assert.Nil(t, (*Schema)(nil).Genai())
}
