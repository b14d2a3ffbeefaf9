package search

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/stacfed/internal/domain"
	"github.com/kailas-cloud/stacfed/internal/domain/collection"
	"github.com/kailas-cloud/stacfed/internal/domain/extent"
	"github.com/kailas-cloud/stacfed/internal/domain/freetext"
	"github.com/kailas-cloud/stacfed/internal/domain/hint"
	"github.com/kailas-cloud/stacfed/internal/domain/reconcile"
	"github.com/kailas-cloud/stacfed/internal/domain/temporal"
	"github.com/kailas-cloud/stacfed/internal/metrics"
	"github.com/kailas-cloud/stacfed/internal/transport/cmr"
	"github.com/kailas-cloud/stacfed/internal/transport/stac"
	conformanceuc "github.com/kailas-cloud/stacfed/internal/usecase/conformance"
)

const (
	defaultLimit          = 20
	maxLimit              = 100
	defaultMaxConcurrency = 8
	defaultMaxLocalPages  = 20
)

// Request is one federated collection search.
type Request struct {
	APIs     []string
	BBox     *extent.BBox
	Interval *temporal.Interval
	Q        string
	Limit    int
	HintLang hint.Lang
	// Token resumes a previous search; when set every other field is ignored.
	Token string
}

// FederatedError reports an upstream that could not be searched.
type FederatedError struct {
	CatalogURL string `json:"catalog_url"`
	Message    string `json:"error_message"`
}

// Result is one page of federated results.
type Result struct {
	Collections []collection.Record
	Errors      []FederatedError
	// NextToken is empty on the last page.
	NextToken string
	Reconcile reconcile.Result
}

// Service fans a collection search out to every selected upstream.
type Service struct {
	apis           domain.APIConfigs
	prober         CapabilityProber
	stac           STACClient
	cmr            CMRClient
	defaultLimit   int
	maxLimit       int
	maxConcurrency int
	maxLocalPages  int
	logger         *zap.Logger
}

// New creates a search service.
func New(
	apis domain.APIConfigs,
	prober CapabilityProber,
	stacClient STACClient,
	cmrClient CMRClient,
	logger *zap.Logger,
) *Service {
	return &Service{
		apis:           apis,
		prober:         prober,
		stac:           stacClient,
		cmr:            cmrClient,
		defaultLimit:   defaultLimit,
		maxLimit:       maxLimit,
		maxConcurrency: defaultMaxConcurrency,
		maxLocalPages:  defaultMaxLocalPages,
		logger:         logger,
	}
}

// WithLimits overrides the default and maximum page size.
func (s *Service) WithLimits(defaultLimit, maxLimit int) *Service {
	if defaultLimit > 0 {
		s.defaultLimit = defaultLimit
	}
	if maxLimit > 0 {
		s.maxLimit = maxLimit
	}
	return s
}

// WithMaxConcurrency bounds the number of upstreams searched in parallel.
func (s *Service) WithMaxConcurrency(n int) *Service {
	if n > 0 {
		s.maxConcurrency = n
	}
	return s
}

// WithMaxLocalPages bounds how many /collections pages are read from an
// upstream that has to be filtered locally.
func (s *Service) WithMaxLocalPages(n int) *Service {
	if n > 0 {
		s.maxLocalPages = n
	}
	return s
}

// query is a validated request bound to its upstream plans.
type query struct {
	req  Request
	text *freetext.Query
}

// plan is the work for one upstream.
type plan struct {
	api    domain.APIConfig
	cursor *Cursor
	// remote: the upstream supports collection-search; remoteText: it also supports q.
	remote     bool
	remoteText bool
}

type outcome struct {
	records []collection.Record
	cursor  *Cursor
	err     error
}

// Search runs req against the selected upstreams and reconciles the merged results.
func (s *Service) Search(ctx context.Context, req Request) (Result, error) {
	plans, q, err := s.prepare(ctx, req)
	if err != nil {
		return Result{}, err
	}

	outcomes := make([]outcome, len(plans))
	var g errgroup.Group
	g.SetLimit(s.maxConcurrency)
	for i, p := range plans {
		g.Go(func() error {
			outcomes[i] = s.searchUpstream(ctx, q, p)
			return nil
		})
	}
	_ = g.Wait()

	var (
		merged  []collection.Record
		res     Result
		cursors = make(map[string]Cursor)
	)
	for i, o := range outcomes {
		api := plans[i].api.URL
		if o.err != nil {
			s.logger.Warn("upstream search failed", zap.String("api", api), zap.Error(o.err))
			res.Errors = append(res.Errors, FederatedError{CatalogURL: api, Message: o.err.Error()})
			continue
		}
		merged = append(merged, o.records...)
		if o.cursor != nil {
			cursors[api] = *o.cursor
		}
	}

	res.Reconcile = reconcile.Apply(merged, s.apis)
	res.Collections = res.Reconcile.Records
	s.recordReconcile(res.Reconcile)

	if len(cursors) > 0 {
		if res.NextToken, err = encodeToken(q.req, cursors); err != nil {
			return Result{}, err
		}
	}
	return res, nil
}

// prepare validates the request and decides how each upstream is searched.
func (s *Service) prepare(ctx context.Context, req Request) ([]plan, query, error) {
	var cursors map[string]Cursor
	if req.Token != "" {
		var err error
		if req, cursors, err = decodeToken(req.Token, s.apis); err != nil {
			return nil, query{}, err
		}
	}

	switch {
	case req.Limit <= 0:
		req.Limit = s.defaultLimit
	case req.Limit > s.maxLimit:
		req.Limit = s.maxLimit
	}
	if req.BBox != nil {
		if _, err := extent.ParseBBox(req.BBox.String()); err != nil {
			return nil, query{}, err //nolint:wrapcheck // already carries ErrInvalidBBox
		}
	}

	q := query{req: req}
	if req.Q != "" {
		parsed, err := freetext.Parse(req.Q)
		if err != nil {
			return nil, query{}, err //nolint:wrapcheck // already carries ErrInvalidQuery
		}
		q.text = &parsed
	}

	if cursors != nil {
		return s.resumePlans(cursors), q, nil
	}

	apis, err := s.apis.Resolve(req.APIs)
	if err != nil {
		return nil, query{}, fmt.Errorf("resolve apis: %w", err)
	}

	var stacAPIs domain.APIConfigs
	for _, a := range apis {
		if a.Kind == domain.KindSTAC {
			stacAPIs = append(stacAPIs, a)
		}
	}
	caps := make(map[string]conformanceuc.Upstream, len(stacAPIs))
	for _, u := range s.prober.Probe(ctx, stacAPIs) {
		caps[u.API.URL] = u
	}

	plans := make([]plan, len(apis))
	for i, a := range apis {
		c := caps[a.URL].Capabilities()
		plans[i] = plan{api: a, remote: c.CollectionSearch, remoteText: c.CollectionSearch && c.FreeText}
	}
	return plans, q, nil
}

// resumePlans rebuilds plans from token cursors, in configuration order.
func (s *Service) resumePlans(cursors map[string]Cursor) []plan {
	var plans []plan
	for _, a := range s.apis {
		c, ok := cursors[a.URL]
		if !ok {
			continue
		}
		p := plan{api: a, cursor: &c, remote: c.Next != "", remoteText: c.Next != "" && c.Text}
		plans = append(plans, p)
	}
	return plans
}

func (s *Service) searchUpstream(ctx context.Context, q query, p plan) outcome {
	var o outcome
	switch {
	case p.api.Kind == domain.KindCMR:
		o = s.searchCMR(ctx, q, p)
	case p.remote:
		o = s.searchRemote(ctx, q, p)
	default:
		o = s.searchLocal(ctx, q, p)
	}
	if o.err != nil {
		return o
	}
	if err := s.addHints(q.req, p.api, o.records); err != nil {
		return outcome{err: err}
	}
	return o
}

// searchRemote forwards the query to a collection-search API. Without
// free-text support q is withheld and matched locally instead.
func (s *Service) searchRemote(ctx context.Context, q query, p plan) outcome {
	var (
		page stac.Page
		err  error
	)
	if p.cursor != nil {
		page, err = s.stac.Follow(ctx, p.api.URL, p.cursor.Next)
	} else {
		params := stac.Params{BBox: q.req.BBox, Interval: q.req.Interval, Limit: q.req.Limit}
		if p.remoteText {
			params.Q = q.req.Q
		}
		page, err = s.stac.Collections(ctx, p.api.URL, params)
	}
	if err != nil {
		return outcome{err: err}
	}

	records := page.Collections
	if q.text != nil && !p.remoteText {
		records = filterRecords(records, func(r collection.Record) bool { return matchesText(*q.text, r) })
	}

	o := outcome{records: records}
	if page.Next != "" {
		o.cursor = &Cursor{Next: page.Next, Text: p.remoteText}
	}
	return o
}

// searchLocal reads the whole /collections listing and applies every filter here.
func (s *Service) searchLocal(ctx context.Context, q query, p plan) outcome {
	page, err := s.stac.Collections(ctx, p.api.URL, stac.Params{})
	if err != nil {
		return outcome{err: err}
	}
	all := page.Collections
	for n := 1; page.Next != "" && n < s.maxLocalPages; n++ {
		if page, err = s.stac.Follow(ctx, p.api.URL, page.Next); err != nil {
			return outcome{err: err}
		}
		all = append(all, page.Collections...)
	}
	if page.Next != "" {
		s.logger.Warn("collection listing truncated",
			zap.String("api", p.api.URL), zap.Int("pages", s.maxLocalPages))
	}

	matched := filterRecords(all, func(r collection.Record) bool { return matchesLocal(q, r) })

	offset := 0
	if p.cursor != nil {
		offset = min(p.cursor.Offset, len(matched))
	}
	end := min(offset+q.req.Limit, len(matched))

	o := outcome{records: matched[offset:end]}
	if end < len(matched) {
		o.cursor = &Cursor{Offset: end}
	}
	return o
}

// searchCMR runs one CMR query per OR branch of q and merges them by id.
func (s *Service) searchCMR(ctx context.Context, q query, p plan) outcome {
	keywords := []string{""}
	if q.req.Q != "" {
		split, err := freetext.SplitForCMR(q.req.Q)
		if err != nil {
			return outcome{err: err}
		}
		keywords = split
	}

	pageNum := 1
	if p.cursor != nil && p.cursor.Page > 1 {
		pageNum = p.cursor.Page
	}

	var (
		records []collection.Record
		seen    = make(map[string]struct{})
		more    bool
	)
	for _, kw := range keywords {
		page, err := s.cmr.Search(ctx, p.api.URL, cmr.Query{
			BBox:     q.req.BBox,
			Interval: q.req.Interval,
			Keyword:  kw,
			PageSize: q.req.Limit,
			PageNum:  pageNum,
		})
		if err != nil {
			return outcome{err: err}
		}
		if page.Hits > pageNum*q.req.Limit || (page.Hits < 0 && len(page.Entries) == q.req.Limit) {
			more = true
		}
		for _, e := range page.Entries {
			if _, dup := seen[e.ID]; dup {
				continue
			}
			seen[e.ID] = struct{}{}
			rec, err := e.Record(p.api.URL)
			if err != nil {
				return outcome{err: err}
			}
			records = append(records, rec)
		}
	}

	o := outcome{records: records}
	if more {
		o.cursor = &Cursor{Page: pageNum + 1}
	}
	return o
}

func (s *Service) addHints(req Request, api domain.APIConfig, records []collection.Record) error {
	if req.HintLang == hint.LangNone {
		return nil
	}
	for _, r := range records {
		var (
			hints map[hint.Package]string
			err   error
		)
		if api.Kind == domain.KindCMR {
			shortName, _ := r[cmr.FieldShortName].(string)
			dataCenter, _ := r[cmr.FieldDataCenter].(string)
			version, _ := r[cmr.FieldVersionID].(string)
			stacURL, stacID := hint.CMRSTACLocation(api.URL, dataCenter, shortName, version)
			hints, err = hint.CMR(req.HintLang, api.URL, shortName, stacURL, stacID, req.BBox, req.Interval)
		} else {
			hints, err = hint.STAC(req.HintLang, hint.Params{
				BaseURL:      api.URL,
				CollectionID: r.ID(),
				BBox:         req.BBox,
				Interval:     req.Interval,
			})
		}
		if err != nil {
			return fmt.Errorf("build hints: %w", err)
		}
		if len(hints) == 0 {
			continue
		}
		out := make(map[string]any, len(hints))
		for pkg, snippet := range hints {
			out[string(pkg)] = snippet
		}
		r["hint"] = out
	}
	return nil
}

// matchesLocal applies bbox, datetime and q the way a collection-search server would.
func matchesLocal(q query, r collection.Record) bool {
	if q.req.BBox != nil {
		union, ok := extent.Union(r.BBoxes())
		if !ok || !union.Overlaps(*q.req.BBox) {
			return false
		}
	}
	if q.req.Interval != nil && !r.FirstInterval().Overlaps(*q.req.Interval) {
		return false
	}
	return q.text == nil || matchesText(*q.text, r)
}

func matchesText(q freetext.Query, r collection.Record) bool {
	return q.Match(r.Title(), r.Description(), strings.Join(r.Keywords(), ", "))
}

func filterRecords(records []collection.Record, keep func(collection.Record) bool) []collection.Record {
	out := make([]collection.Record, 0, len(records))
	for _, r := range records {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

// recordReconcile counts filter outcomes. Sources outside the configuration share
// one label so upstream-provided root links cannot blow up cardinality.
func (s *Service) recordReconcile(r reconcile.Result) {
	for _, src := range r.Sources {
		label := src.URL
		if _, ok := s.apis.Lookup(src.URL); !ok {
			label = "unconfigured"
		}
		metrics.ReconcileRecordsTotal.WithLabelValues(label, "kept").Add(float64(src.Kept))
		metrics.ReconcileRecordsTotal.WithLabelValues(label, "rejected").Add(float64(src.Rejected))
	}
	if r.Unsourced > 0 {
		metrics.ReconcileUnsourcedTotal.Add(float64(r.Unsourced))
	}
}
