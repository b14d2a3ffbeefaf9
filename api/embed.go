// Package api holds the OpenAPI description of the stacfed HTTP API.
package api

import _ "embed"

// Spec is the OpenAPI 3 document in YAML.
//
//go:embed openapi.yaml
var Spec []byte
