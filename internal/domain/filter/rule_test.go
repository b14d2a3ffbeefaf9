package filter

import (
	"encoding/json"
	"errors"
	"testing"

	"gopkg.in/yaml.v3"
)

func decode(t *testing.T, raw string) map[string]any {
	t.Helper()
	var doc map[string]any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return doc
}

// excludeCMRProducer rejects collections with a provider named CMR acting as producer.
func excludeCMRProducer() Rule {
	return Rule{
		Path: "providers",
		Not:  true,
		Some: &Rule{All: []Rule{
			{Path: "name", Op: OpEq, Value: "CMR"},
			{Path: "roles", Op: OpContains, Value: "producer"},
		}},
	}
}

func TestMatch_ExcludeCMRProducer(t *testing.T) {
	r := excludeCMRProducer()
	if err := r.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}

	tests := []struct {
		name string
		doc  string
		want bool
	}{
		{"cmr producer rejected", `{"providers":[{"name":"CMR","roles":["producer"]}]}`, false},
		{"cmr host kept", `{"providers":[{"name":"CMR","roles":["host"]}]}`, true},
		{"other producer kept", `{"providers":[{"name":"ESA","roles":["producer"]}]}`, true},
		{"mixed list rejected", `{"providers":[{"name":"ESA"},{"name":"CMR","roles":["licensor","producer"]}]}`, false},
		{"no providers kept", `{"id":"x"}`, true},
		{"providers not array kept", `{"providers":"CMR"}`, true},
		{"roles as string rejected",`{"providers":[{"name":"CMR","roles":"producer"}]}`, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := r.Match(decode(t, tc.doc)); got != tc.want {
				t.Errorf("Match() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestMatch_Operators(t *testing.T) {
	doc := decode(t, `{
		"id": "sentinel-2-l2a",
		"title": "Sentinel-2 Level-2A",
		"license": "CC-BY-4.0",
		"updated": "2024-05-01T00:00:00Z",
		"summaries": {"gsd": [10, 20, 60]},
		"keywords": ["Optical", "ESA"],
		"deprecated": false
	}`)

	tests := []struct {
		name string
		rule Rule
		want bool
	}{
		{"exists", Rule{Path: "license", Op: OpExists}, true},
		{"exists missing", Rule{Path: "nope", Op: OpExists}, false},
		{"eq string", Rule{Path: "id", Op: OpEq, Value: "sentinel-2-l2a"}, true},
		{"eq bool", Rule{Path: "deprecated", Op: OpEq, Value: false}, true},
		{"ne", Rule{Path: "id", Op: OpNe, Value: "landsat"}, true},
		{"ne missing field", Rule{Path: "nope", Op: OpNe, Value: "x"}, true},
		{"contains substring", Rule{Path: "title", Op: OpContains, Value: "Level-2"}, true},
		{"contains array", Rule{Path: "keywords", Op: OpContains, Value: "ESA"}, true},
		{"icontains string", Rule{Path: "license", Op: OpIContains, Value: "cc"}, true},
		{"icontains array", Rule{Path: "keywords", Op: OpIContains, Value: "optical"}, true},
		{"prefix", Rule{Path: "id", Op: OpPrefix, Value: "sentinel"}, true},
		{"suffix", Rule{Path: "id", Op: OpSuffix, Value: "l1c"}, false},
		{"gte date string", Rule{Path: "updated", Op: OpGte, Value: "2024-01-01T00:00:00Z"}, true},
		{"lt date string", Rule{Path: "updated", Op: OpLt, Value: "2024-01-01T00:00:00Z"}, false},
		{"index path numeric", Rule{Path: "summaries.gsd.0", Op: OpLte, Value: 30}, true},
		{"index out of range", Rule{Path: "summaries.gsd.9", Op: OpExists}, false},
		{"not", Rule{Path: "title", Op: OpIContains, Value: "experimental", Not: true}, true},
		{"any", Rule{Any: []Rule{
			{Path: "license", Op: OpEq, Value: "proprietary"},
			{Path: "license", Op: OpPrefix, Value: "CC"},
		}}, true},
		{"all fails", Rule{All: []Rule{
			{Path: "license", Op: OpPrefix, Value: "CC"},
			{Path: "deprecated", Op: OpEq, Value: true},
		}}, false},
		{"scoped all", Rule{Path: "summaries", All: []Rule{
			{Path: "gsd", Op: OpContains, Value: 10},
		}}, true},
		{"some scalar", Rule{Path: "summaries.gsd", Some: &Rule{Op: OpGt, Value: 50}}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.rule.Validate(); err != nil {
				t.Fatalf("validate: %v", err)
			}
			if got := tc.rule.Match(doc); got != tc.want {
				t.Errorf("Match() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name string
		rule Rule
	}{
		{"empty", Rule{}},
		{"two forms", Rule{Op: OpExists, All: []Rule{{Op: OpExists}}}},
		{"unknown op", Rule{Path: "id", Op: "matches"}},
		{"eq without value", Rule{Path: "id", Op: OpEq}},
		{"prefix non-string", Rule{Path: "id", Op: OpPrefix, Value: 3}},
		{"gt bool", Rule{Path: "x", Op: OpGt, Value: true}},
		{"some without path", Rule{Some: &Rule{Op: OpExists}}},
		{"nested invalid", Rule{All: []Rule{{Op: OpExists}, {Op: "bogus"}}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.rule.Validate()
			if !errors.Is(err, ErrInvalidRule) {
				t.Errorf("expected ErrInvalidRule, got %v", err)
			}
		})
	}
}

func TestRule_YAMLRoundTrip(t *testing.T) {
	src := `
path: providers
not: true
some:
  all:
    - path: name
      op: eq
      value: CMR
    - path: roles
      op: contains
      value: producer
`
	var r Rule
	if err := yaml.Unmarshal([]byte(src), &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if err := r.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if r.Match(decode(t, `{"providers":[{"name":"CMR","roles":["producer"]}]}`)) {
		t.Error("yaml rule should reject CMR producer")
	}
	if !r.Match(decode(t, `{"providers":[]}`)) {
		t.Error("yaml rule should keep collections without CMR producer")
	}
}

func TestMatch_YAMLIntegerValue(t *testing.T) {
	var r Rule
	if err := yaml.Unmarshal([]byte("{path: summaries.gsd.0, op: lte, value: 30}"), &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !r.Match(decode(t, `{"summaries":{"gsd":[10]}}`)) {
		t.Error("yaml int value should compare with json float")
	}
}
