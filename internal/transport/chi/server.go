package chi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/stacfed/internal/domain"
	"github.com/kailas-cloud/stacfed/internal/domain/collection"
	"github.com/kailas-cloud/stacfed/internal/domain/temporal"
	logpkg "github.com/kailas-cloud/stacfed/internal/logger"
	healthuc "github.com/kailas-cloud/stacfed/internal/usecase/health"
	searchuc "github.com/kailas-cloud/stacfed/internal/usecase/search"
)

// Error codes returned in the "code" field of error responses.
const (
	CodeBadRequest      = "bad_request"
	CodeUnauthorized    = "unauthorized"
	CodeInvalidBBox     = "invalid_bbox"
	CodeInvalidDatetime = "invalid_datetime"
	CodeInvalidQuery    = "invalid_query"
	CodeInvalidToken    = "invalid_token"
	CodeUnknownAPI      = "unknown_api"
	CodeNoUpstreams     = "no_upstreams"
	CodeUpstreamError   = "upstream_error"
	CodeInternalError   = "internal_error"
)

// invalidBBoxDetail is the message clients have always received for a bad bbox.
const invalidBBoxDetail = "Invalid bbox"

// errBadRequest marks malformed query parameters that have no domain sentinel.
var errBadRequest = errors.New("bad request")

// ErrorResponse is the JSON body of every non-2xx response.
type ErrorResponse struct {
	Detail string `json:"detail"`
	Code   string `json:"code"`
}

// Link is a STAC link object.
type Link struct {
	Rel  string `json:"rel"`
	Type string `json:"type,omitempty"`
	Href string `json:"href"`
}

// SearchResponse is the body of GET /collections.
type SearchResponse struct {
	Collections    []collection.Record       `json:"collections"`
	Links          []Link                    `json:"links"`
	Errors         []searchuc.FederatedError `json:"errors"`
	NumberReturned int                       `json:"numberReturned"`
}

// ConformanceResponse is the body of GET /conformance.
type ConformanceResponse struct {
	ConformsTo []string `json:"conformsTo"`
}

// HealthResponse is the body of GET /_mgmt/health.
type HealthResponse struct {
	Status       healthuc.Status                    `json:"status"`
	Lifespan     LifespanStatus                     `json:"lifespan"`
	Cache        healthuc.CheckResult               `json:"cache,omitempty"`
	UpstreamAPIs map[string]healthuc.UpstreamHealth `json:"upstream_apis"`
}

// LifespanStatus reports whether the process is serving.
type LifespanStatus struct {
	Status string `json:"status"`
}

// APIsResponse is the body of GET /apis.
type APIsResponse struct {
	APIs domain.APIConfigs `json:"apis"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error) bool

// Server serves the federation HTTP API.
type Server struct {
	search        Searcher
	conformance   ConformanceResolver
	health        HealthChecker
	cache         CachePurger
	apis          domain.APIConfigs
	openAPI       []byte
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server. cache can be nil. openAPI is the JSON
// document served at /api.
func NewServer(
	search Searcher,
	conformance ConformanceResolver,
	health HealthChecker,
	cache CachePurger,
	apis domain.APIConfigs,
	openAPI []byte,
	logger *zap.Logger,
) *Server {
	s := &Server{
		search:      search,
		conformance: conformance,
		health:      health,
		cache:       cache,
		apis:        apis,
		openAPI:     openAPI,
		logger:      logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInvalidBBox, http.StatusBadRequest, CodeInvalidBBox, invalidBBoxDetail),
		sentinelHandler(domain.ErrInvalidDatetime, http.StatusBadRequest, CodeInvalidDatetime, temporal.DatetimeHint),
		sentinelHandler(domain.ErrInvalidQuery, http.StatusBadRequest, CodeInvalidQuery, ""),
		sentinelHandler(domain.ErrInvalidToken, http.StatusBadRequest, CodeInvalidToken, ""),
		sentinelHandler(domain.ErrUnknownAPI, http.StatusBadRequest, CodeUnknownAPI, ""),
		sentinelHandler(domain.ErrNoUpstreams, http.StatusBadRequest, CodeNoUpstreams, ""),
		sentinelHandler(errBadRequest, http.StatusBadRequest, CodeBadRequest, ""),
		sentinelHandler(domain.ErrUpstream, http.StatusBadGateway, CodeUpstreamError, ""),
	}
	return s
}

// Routes mounts every endpoint on r.
func (s *Server) Routes(r chi.Router) {
	r.Get("/collections", s.SearchCollections)
	r.Get("/conformance", s.GetConformance)
	r.Get("/apis", s.ListAPIs)
	r.Get("/api", s.GetOpenAPI)
	r.Get("/_mgmt/health", s.HealthCheck)
	r.Get("/_mgmt/ping", s.Ping)
	r.Delete("/_mgmt/cache", s.PurgeCache)
	r.Get("/metrics", s.Metrics)
}

// SearchCollections handles GET /collections.
func (s *Server) SearchCollections(w http.ResponseWriter, r *http.Request) {
	req, err := bindSearchRequest(r.URL.Query())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	res, err := s.search.Search(r.Context(), req)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	resp := SearchResponse{
		Collections:    res.Collections,
		Links:          []Link{{Rel: "self", Type: "application/json", Href: requestURL(r)}},
		Errors:         res.Errors,
		NumberReturned: len(res.Collections),
	}
	if resp.Collections == nil {
		resp.Collections = []collection.Record{}
	}
	if resp.Errors == nil {
		resp.Errors = []searchuc.FederatedError{}
	}
	if res.NextToken != "" {
		resp.Links = append(resp.Links, Link{Rel: "next", Type: "application/json", Href: nextURL(r, res.NextToken)})
	}
	logpkg.Annotate(r.Context(),
		zap.Int("collections", resp.NumberReturned),
		zap.Int("federated_errors", len(res.Errors)),
		zap.Int("filter_rejected", res.Reconcile.Rejected()),
		zap.Bool("has_next", res.NextToken != ""),
	)
	writeJSON(w, http.StatusOK, resp)
}

// GetConformance handles GET /conformance.
func (s *Server) GetConformance(w http.ResponseWriter, r *http.Request) {
	apis, err := bindAPIs(r.URL.Query())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	classes, err := s.conformance.Conformance(r.Context(), apis)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ConformanceResponse{ConformsTo: classes})
}

// HealthCheck handles GET /_mgmt/health. A degraded federation still answers
// 200 so clients can read which upstream is failing.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	apis, err := bindAPIs(r.URL.Query())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	report, err := s.health.Check(r.Context(), apis)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:       report.Status,
		Lifespan:     LifespanStatus{Status: report.Lifespan},
		Cache:        report.Cache,
		UpstreamAPIs: report.Upstreams,
	})
}

// Ping handles GET /_mgmt/ping.
func (s *Server) Ping(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "PONG"})
}

// ListAPIs handles GET /apis.
func (s *Server) ListAPIs(w http.ResponseWriter, _ *http.Request) {
	apis := s.apis
	if apis == nil {
		apis = domain.APIConfigs{}
	}
	writeJSON(w, http.StatusOK, APIsResponse{APIs: apis})
}

// GetOpenAPI handles GET /api.
func (s *Server) GetOpenAPI(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/vnd.oai.openapi+json;version=3.0")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(s.openAPI)
}

// PurgeCache handles DELETE /_mgmt/cache.
func (s *Server) PurgeCache(w http.ResponseWriter, r *http.Request) {
	n := 0
	if s.cache != nil {
		var err error
		if n, err = s.cache.Purge(r.Context()); err != nil {
			s.handleDomainError(w, r, err)
			return
		}
	}
	logpkg.FromContext(r.Context()).Info("upstream document cache purged", zap.Int("keys", n))
	writeJSON(w, http.StatusOK, map[string]int{"purged": n})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	writeJSON(w, status, ErrorResponse{
		Detail: detail,
		Code:   code,
	})
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
// An empty detail passes the wrapped error text through.
func sentinelHandler(sentinel error, status int, code, detail string) errorHandler {
	return func(w http.ResponseWriter, err error) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		msg := detail
		if msg == "" {
			msg = err.Error()
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Warn("domain error", zap.String("path", r.URL.Path), zap.Error(err))
	for _, h := range s.errorHandlers {
		if h(w, err) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}

// requestURL rebuilds the absolute URL of r as the client saw it, honoring
// X-Forwarded-Proto and X-Forwarded-Host set by a proxy.
func requestURL(r *http.Request) string {
	u := url.URL{Scheme: "http", Host: r.Host, Path: r.URL.Path, RawQuery: r.URL.RawQuery}
	if r.TLS != nil {
		u.Scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		u.Scheme = proto
	}
	if host, _, _ := strings.Cut(r.Header.Get("X-Forwarded-Host"), ","); strings.TrimSpace(host) != "" {
		u.Host = strings.TrimSpace(host)
	}
	return u.String()
}

// nextURL points at the same endpoint with only the pagination token; the token
// carries the rest of the query.
func nextURL(r *http.Request, token string) string {
	u, _ := url.Parse(requestURL(r))
	u.RawQuery = url.Values{"token": {token}}.Encode()
	return u.String()
}
