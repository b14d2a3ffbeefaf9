package chi

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// OpenAPIJSON converts the embedded YAML OpenAPI document into the JSON served at /api.
func OpenAPIJSON(spec []byte) ([]byte, error) {
	var doc any
	if err := yaml.Unmarshal(spec, &doc); err != nil {
		return nil, fmt.Errorf("parse openapi yaml: %w", err)
	}
	out, err := json.Marshal(jsonCompatible(doc))
	if err != nil {
		return nil, fmt.Errorf("encode openapi json: %w", err)
	}
	return out, nil
}

// jsonCompatible rewrites maps with non-string keys (unquoted status codes) so
// encoding/json accepts them.
func jsonCompatible(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			t[k] = jsonCompatible(val)
		}
		return t
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = jsonCompatible(val)
		}
		return out
	case []any:
		for i, val := range t {
			t[i] = jsonCompatible(val)
		}
		return t
	}
	return v
}
