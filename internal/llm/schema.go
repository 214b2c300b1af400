package llm

import (
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"sync"

	"github.com/invopop/jsonschema"
)

var (
	schemaCache sync.Map // reflect.Type -> *jsonschema.Schema
	nameInvalid = regexp.MustCompile(`[^a-zA-Z0-9_-]`)
)

// SchemaFor reflects the JSON schema of the value out points to. The schema
// is strict-mode friendly: every field is required, no additional
// properties, nested types inlined.
func SchemaFor(out any) (*jsonschema.Schema, error) {
	t := reflect.TypeOf(out)
	if t == nil || t.Kind() != reflect.Ptr || t.Elem().Kind() != reflect.Struct {
		return nil, fmt.Errorf("structured output target must be a pointer to struct, got %T", out)
	}
	t = t.Elem()

	if cached, ok := schemaCache.Load(t); ok {
		return cached.(*jsonschema.Schema), nil
	}

	reflector := &jsonschema.Reflector{
		ExpandedStruct:            true,
		DoNotReference:            true,
		AllowAdditionalProperties: false,
	}
	schema := reflector.ReflectFromType(t)
	schema.Version = ""
	schema.ID = ""

	schemaCache.Store(t, schema)
	return schema, nil
}

// SchemaName returns a response format name for the value out points to.
func SchemaName(out any) string {
	t := reflect.TypeOf(out)
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == nil || t.Name() == "" {
		return "response"
	}
	return nameInvalid.ReplaceAllString(t.Name(), "_")
}

// schemaText renders a schema for inclusion in a prompt.
func schemaText(schema *jsonschema.Schema) (string, error) {
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to serialize schema: %w", err)
	}
	return string(data), nil
}
