// Package genai provides JSON schema reflection for structured model output.
package genai

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// GenerateSchema reflects a Go struct into an OpenAI-compliant JSON schema
// map suitable for GenerateStructured. Panics on reflection failure, which
// can only happen for malformed schema types and is therefore a programming
// error caught at startup by the package-level schema vars that call it.
func GenerateSchema[T any]() map[string]interface{} {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties:  false,
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
	}
	var v T
	schema := reflector.Reflect(v)
	m, err := schemaToMap(schema)
	if err != nil {
		panic(fmt.Sprintf("genai.GenerateSchema: %v", err))
	}
	ensureStrictObjects(m)
	return m
}

func schemaToMap(schema *jsonschema.Schema) (map[string]interface{}, error) {
	b, err := schema.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// ensureStrictObjects walks the schema and forces additionalProperties=false
// on every object node; the OpenAI strict mode rejects schemas without it.
func ensureStrictObjects(node map[string]interface{}) {
	if t, ok := node["type"].(string); ok && t == "object" {
		if _, ok := node["additionalProperties"]; !ok {
			node["additionalProperties"] = false
		}
	}
	for _, v := range node {
		switch child := v.(type) {
		case map[string]interface{}:
			ensureStrictObjects(child)
		case []interface{}:
			for _, item := range child {
				if m, ok := item.(map[string]interface{}); ok {
					ensureStrictObjects(m)
				}
			}
		}
	}
}
