package search

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	apperrors "github.com/aabubakar17/meetEasy/internal/errors"
	"github.com/aabubakar17/meetEasy/internal/event"
	"github.com/aabubakar17/meetEasy/internal/logging"
	"github.com/aabubakar17/meetEasy/internal/metrics"
	"github.com/aabubakar17/meetEasy/internal/source"
)

// ExternalSource is the ticketing API as seen by search.
type ExternalSource interface {
	SearchByKeyword(ctx context.Context, keyword, location string, pageSize int) source.Result[event.External]
	SearchByClassification(ctx context.Context, category string, pageSize, retriesRemaining int) source.Result[event.External]
}

// InternalSource is the event store as seen by search.
type InternalSource interface {
	SearchByKeywords(ctx context.Context, tokens []string) source.Result[event.Event]
	SearchByLocation(ctx context.Context, location string) source.Result[event.Event]
	FetchAllInCategory(ctx context.Context, label string) source.Result[event.Event]
	SearchByCategory(ctx context.Context, label string) source.Result[event.Event]
}

// TermRecorder receives the terms of every executed search.
type TermRecorder interface {
	RecordTerm(kind, term string)
}

// Response is the outcome of one search.
type Response struct {
	Results []Result                 `json:"results"`
	Sources map[string]source.Status `json:"sources"`
}

// Service executes search plans.
type Service struct {
	external ExternalSource
	internal InternalSource
	recorder TermRecorder
	log      *zap.Logger
	metrics  *metrics.Metrics

	categoryPageSize int
	retries          int
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *Service) { s.log = logging.OrNop(log) }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithRecorder sets the search term recorder.
func WithRecorder(r TermRecorder) Option {
	return func(s *Service) { s.recorder = r }
}

// WithCategoryPageSize sets the external page size for category searches
// that don't ask for one.
func WithCategoryPageSize(n int) Option {
	return func(s *Service) { s.categoryPageSize = n }
}

// WithRetries sets the rate-limit retry budget passed to category searches.
func WithRetries(n int) Option {
	return func(s *Service) { s.retries = n }
}

// NewService creates a search service over both sources.
func NewService(external ExternalSource, internal InternalSource, opts ...Option) *Service {
	s := &Service{external: external, internal: internal, log: zap.NewNop(), retries: DefaultRetries}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search parses q, runs every planned query concurrently and merges the
// answers. External failures degrade to an empty contribution; an internal
// failure other than permission denied is returned as an error. An empty
// query yields an empty result list.
func (s *Service) Search(ctx context.Context, q Query) (*Response, error) {
	if q.PageSize <= 0 && q.Category != "" {
		q.PageSize = s.categoryPageSize
	}
	plan := Parse(q)
	for i := range plan.External {
		if plan.External[i].Kind == ExternalByClassification {
			plan.External[i].Retries = s.retries
		}
	}
	return s.Execute(ctx, plan)
}

// Execute runs an already parsed plan.
func (s *Service) Execute(ctx context.Context, plan Plan) (*Response, error) {
	start := time.Now()
	s.record(plan)

	externals := make([]source.Result[event.External], len(plan.External))
	internals := make([]source.Result[event.Event], len(plan.Internal))

	g, gctx := errgroup.WithContext(ctx)
	for i, eq := range plan.External {
		g.Go(func() error {
			externals[i] = s.runExternal(gctx, eq)
			return nil
		})
	}
	for i, iq := range plan.Internal {
		g.Go(func() error {
			r := s.runInternal(gctx, iq)
			internals[i] = r
			if r.Status == source.StatusFailed {
				return r.Err
			}
			return nil
		})
	}

	statuses := map[string]source.Status{
		SourceExternal: source.StatusSkipped,
		SourceInternal: source.StatusSkipped,
	}

	if err := g.Wait(); err != nil {
		statuses[SourceInternal] = source.StatusFailed
		s.observe(statuses, 0)
		if apperrors.GetCategory(err) == "" {
			err = apperrors.NewInternalError("internal search failed", err)
		}
		return nil, err
	}

	var (
		exItems  []Result
		inItems  []Result
		exStatus []source.Status
		inStatus []source.Status
	)
	for _, r := range externals {
		exItems = append(exItems, FromExternals(r.Items)...)
		exStatus = append(exStatus, r.Status)
	}
	for _, r := range internals {
		inItems = append(inItems, FromInternals(r.Items)...)
		inStatus = append(inStatus, r.Status)
	}
	statuses[SourceExternal] = source.Merge(exStatus...)
	statuses[SourceInternal] = source.Merge(inStatus...)

	results := Merge(inItems, exItems)
	s.observe(statuses, len(results))
	s.log.Debug("search executed",
		zap.Int("external_queries", len(plan.External)),
		zap.Int("internal_queries", len(plan.Internal)),
		zap.Int("results", len(results)),
		zap.String("external_status", string(statuses[SourceExternal])),
		zap.String("internal_status", string(statuses[SourceInternal])),
		zap.Duration("elapsed", time.Since(start)))

	return &Response{Results: results, Sources: statuses}, nil
}

func (s *Service) runExternal(ctx context.Context, q ExternalQuery) source.Result[event.External] {
	switch q.Kind {
	case ExternalByClassification:
		return s.external.SearchByClassification(ctx, q.Category, q.PageSize, q.Retries)
	default:
		return s.external.SearchByKeyword(ctx, q.Keyword, q.Location, q.PageSize)
	}
}

func (s *Service) runInternal(ctx context.Context, q InternalQuery) source.Result[event.Event] {
	switch q.Kind {
	case InternalByKeywords:
		return s.internal.SearchByKeywords(ctx, q.Tokens)
	case InternalByLocation:
		return s.internal.SearchByLocation(ctx, q.Location)
	case InternalByCategory:
		return s.internal.SearchByCategory(ctx, q.Category)
	case InternalAll:
		return s.internal.FetchAllInCategory(ctx, q.Category)
	}
	return source.OK[event.Event](nil)
}

func (s *Service) record(plan Plan) {
	if s.recorder == nil {
		return
	}
	for _, q := range plan.Internal {
		switch q.Kind {
		case InternalByKeywords:
			for _, t := range q.Tokens {
				s.recorder.RecordTerm("keyword", t)
			}
		case InternalByLocation:
			s.recorder.RecordTerm("location", q.Location)
		case InternalByCategory, InternalAll:
			s.recorder.RecordTerm("category", q.Category)
		}
	}
}

func (s *Service) observe(statuses map[string]source.Status, n int) {
	if s.metrics == nil {
		return
	}
	labels := make(map[string]string, len(statuses))
	for k, v := range statuses {
		labels[k] = string(v)
	}
	s.metrics.ObserveSearch(labels, n)
}
