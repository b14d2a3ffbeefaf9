package config

import (
	"errors"
	"strings"
	"testing"

	"github.com/kailas-cloud/stacfed/internal/domain"
	"github.com/kailas-cloud/stacfed/internal/domain/filter"
)

func validConfig() Config {
	cfg := Config{
		HTTP: HTTPConfig{Port: 8080},
		APIs: []APIConfig{
			{URL: "https://stac.example.com"},
			{URL: "https://cmr.earthdata.nasa.gov/search/", Kind: "cmr"},
		},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestValidate_Valid(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := validConfig()
	cfg.HTTP.Port = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestValidate_APIs(t *testing.T) {
	tests := []struct {
		name string
		apis []APIConfig
		want string
	}{
		{"empty", nil, "at least one upstream"},
		{"relative url", []APIConfig{{URL: "/stac", Kind: "stac"}}, "absolute http(s) URL"},
		{"ftp url", []APIConfig{{URL: "ftp://x", Kind: "stac"}}, "absolute http(s) URL"},
		{"duplicate", []APIConfig{{URL: "https://a", Kind: "stac"}, {URL: "https://a", Kind: "cmr"}}, "configured twice"},
		{"kind", []APIConfig{{URL: "https://a", Kind: "wms"}}, `kind must be "stac" or "cmr"`},
		{"filter", []APIConfig{{URL: "https://a", Kind: "stac", Filter: &filter.Rule{Path: "id", Op: "regex"}}}, "apis[0].filter"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.APIs = tc.apis

			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error = %v, want mention of %q", err, tc.want)
			}
		})
	}
}

func TestValidate_FilterErrorWrapsSentinel(t *testing.T) {
	cfg := validConfig()
	cfg.APIs[0].Filter = &filter.Rule{Path: "id", Op: filter.OpPrefix, Value: 3}

	if err := cfg.Validate(); !errors.Is(err, filter.ErrInvalidRule) {
		t.Errorf("expected ErrInvalidRule, got %v", err)
	}
}

func TestValidate_Cache(t *testing.T) {
	cfg := validConfig()
	cfg.Cache.Driver = "memcached"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unknown cache driver")
	}

	cfg.Cache.Driver = CacheRedis
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for redis without addrs")
	}

	cfg.Cache.Addrs = []string{"localhost:6379"}
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	cfg.Cache.TTLSec = 60
	cfg.Cache.ClientCacheTTLSec = 120
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for client cache outliving the document ttl")
	}
}

func TestValidate_SearchLimits(t *testing.T) {
	cfg := validConfig()
	cfg.Search.DefaultLimit = 200
	if err := cfg.Validate(); err == nil {
		t.Error("expected error when default_limit exceeds max_limit")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{APIs: []APIConfig{{URL: "https://a"}}}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 10 {
		t.Errorf("expected ReadTimeoutSec=10, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.HTTP.WriteTimeoutSec != 60 {
		t.Errorf("expected WriteTimeoutSec=60, got %d", cfg.HTTP.WriteTimeoutSec)
	}
	if cfg.HTTP.ShutdownSec != 10 {
		t.Errorf("expected ShutdownSec=10, got %d", cfg.HTTP.ShutdownSec)
	}
	if cfg.Upstream.TimeoutSec != 20 || cfg.Upstream.MaxConcurrency != 8 || cfg.Upstream.Burst != 1 {
		t.Errorf("unexpected upstream defaults: %+v", cfg.Upstream)
	}
	if cfg.Upstream.UserAgent != "stacfed/dev" {
		t.Errorf("expected UserAgent=stacfed/dev, got %q", cfg.Upstream.UserAgent)
	}
	if cfg.Search.DefaultLimit != 20 || cfg.Search.MaxLimit != 100 || cfg.Search.MaxLocalPages != 20 {
		t.Errorf("unexpected search defaults: %+v", cfg.Search)
	}
	if cfg.APIs[0].Kind != "stac" {
		t.Errorf("expected kind=stac, got %q", cfg.APIs[0].Kind)
	}
	if cfg.Cache.Driver != CacheMemory || cfg.Cache.TTLSec != 300 || cfg.Cache.KeyPrefix != "stacfed:" {
		t.Errorf("unexpected cache defaults: %+v", cfg.Cache)
	}
}

func TestApplyDefaults_NoOverride(t *testing.T) {
	cfg := Config{
		HTTP:   HTTPConfig{ReadTimeoutSec: 30, WriteTimeoutSec: 90, ShutdownSec: 5},
		Search: SearchConfig{DefaultLimit: 5, MaxLimit: 50},
		Cache:  CacheConfig{Driver: CacheNone, KeyPrefix: "custom:"},
	}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 30 {
		t.Errorf("expected ReadTimeoutSec=30, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.HTTP.WriteTimeoutSec != 90 {
		t.Errorf("expected WriteTimeoutSec=90, got %d", cfg.HTTP.WriteTimeoutSec)
	}
	if cfg.Search.DefaultLimit != 5 || cfg.Search.MaxLimit != 50 {
		t.Errorf("search limits overridden: %+v", cfg.Search)
	}
	if cfg.Cache.Driver != CacheNone || cfg.Cache.KeyPrefix != "custom:" {
		t.Errorf("cache overridden: %+v", cfg.Cache)
	}
}

func TestParse_ExpandsEnvAndFilters(t *testing.T) {
	t.Setenv("STACFED_TEST_STAC_URL", "https://planetarycomputer.example.com/api/stac/v1")
	doc := `
http:
  port: ${STACFED_TEST_PORT:-9090}
apis:
  - url: ${STACFED_TEST_STAC_URL}
    filter_description: Sentinel only
    filter:
      path: id
      op: prefix
      value: sentinel-
  - url: https://cmr.earthdata.nasa.gov/search/
    kind: cmr
`
	cfg, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.HTTP.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.HTTP.Port)
	}

	catalogs := cfg.Catalogs()
	if len(catalogs) != 2 {
		t.Fatalf("catalogs = %v", catalogs)
	}
	first := catalogs[0]
	if first.URL != "https://planetarycomputer.example.com/api/stac/v1" || first.Kind != domain.KindSTAC {
		t.Errorf("first = %+v", first)
	}
	if !first.HasFilter() || !first.Filter.Match(map[string]any{"id": "sentinel-2-l2a"}) {
		t.Errorf("filter not loaded: %+v", first.Filter)
	}
	if catalogs[1].Kind != domain.KindCMR || catalogs[1].HasFilter() {
		t.Errorf("second = %+v", catalogs[1])
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("STACFED_TEST_SET", "value")
	got := string(expandEnvVars([]byte("a=${STACFED_TEST_SET} b=${STACFED_TEST_UNSET:-fallback} c=${STACFED_TEST_UNSET}")))
	if got != "a=value b=fallback c=" {
		t.Errorf("expandEnvVars = %q", got)
	}
}
