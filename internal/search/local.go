package search

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/aabubakar17/meetEasy/internal/event"
	"github.com/aabubakar17/meetEasy/internal/logging"
	"github.com/aabubakar17/meetEasy/internal/source"
	"github.com/aabubakar17/meetEasy/internal/store"
)

// EventReader is the read side of the event store used by search.
type EventReader interface {
	Get(ctx context.Context, id string) (*event.Event, error)
	SearchByKeyword(ctx context.Context, token string) ([]event.Event, error)
	SearchByLocation(ctx context.Context, location string) ([]event.Event, error)
	SearchByCategory(ctx context.Context, category string) ([]event.Event, error)
	ListAll(ctx context.Context) ([]event.Event, error)
}

// DefaultKeywordConcurrency bounds per-token store queries.
const DefaultKeywordConcurrency = 4

// LocalSource adapts the event store to the search pipeline. Permission
// failures are swallowed into StatusPermissionDenied; every other store
// failure yields StatusFailed with the cause in Err.
type LocalSource struct {
	store       EventReader
	concurrency int
	log         *zap.Logger
}

// NewLocalSource creates a LocalSource.
func NewLocalSource(r EventReader, concurrency int, log *zap.Logger) *LocalSource {
	if concurrency <= 0 {
		concurrency = DefaultKeywordConcurrency
	}
	return &LocalSource{store: r, concurrency: concurrency, log: logging.OrNop(log)}
}

// SearchByKeywords issues one store query per token and concatenates the
// matches in token order. An event matching several tokens appears once per
// token; duplicates are removed by Merge, not here.
func (l *LocalSource) SearchByKeywords(ctx context.Context, tokens []string) source.Result[event.Event] {
	if len(tokens) == 0 {
		return source.OK[event.Event](nil)
	}

	perToken := make([][]event.Event, len(tokens))
	denied := make([]bool, len(tokens))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)
	for i, tok := range tokens {
		g.Go(func() error {
			evs, err := l.store.SearchByKeyword(gctx, tok)
			if err != nil {
				if store.IsPermissionDenied(err) {
					denied[i] = true
					return nil
				}
				return err
			}
			perToken[i] = evs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return l.fail("keywords", err)
	}

	out := make([]event.Event, 0)
	anyDenied := false
	for i := range tokens {
		out = append(out, perToken[i]...)
		anyDenied = anyDenied || denied[i]
	}
	if anyDenied {
		l.log.Debug("keyword search partially denied", zap.Strings("tokens", tokens))
		return source.Result[event.Event]{Items: out, Status: source.StatusPermissionDenied}
	}
	return source.OK(out)
}

// SearchByLocation matches the lowercased location exactly.
func (l *LocalSource) SearchByLocation(ctx context.Context, location string) source.Result[event.Event] {
	evs, err := l.store.SearchByLocation(ctx, location)
	if err != nil {
		return l.fail("location", err)
	}
	return source.OK(evs)
}

// FetchAllInCategory scans every stored event when label is the community
// category. Any other label yields an empty result.
func (l *LocalSource) FetchAllInCategory(ctx context.Context, label string) source.Result[event.Event] {
	if label != event.CommunityCategory {
		return source.OK[event.Event](nil)
	}
	evs, err := l.store.ListAll(ctx)
	if err != nil {
		return l.fail("all", err)
	}
	return source.OK(evs)
}

// SearchByCategory matches the stored category exactly.
func (l *LocalSource) SearchByCategory(ctx context.Context, label string) source.Result[event.Event] {
	evs, err := l.store.SearchByCategory(ctx, label)
	if err != nil {
		return l.fail("category", err)
	}
	return source.OK(evs)
}

// FetchByID looks up one event. An absent event is a miss, not an error.
func (l *LocalSource) FetchByID(ctx context.Context, id string) source.Item[event.Event] {
	ev, err := l.store.Get(ctx, id)
	switch {
	case err == nil:
		return source.Found(ev)
	case store.IsNotFound(err):
		return source.Missing[event.Event]()
	case store.IsPermissionDenied(err):
		l.log.Debug("event lookup denied", zap.String("id", id))
		return source.FailItem[event.Event](source.StatusPermissionDenied, err)
	default:
		l.log.Error("event lookup failed", zap.String("id", id), zap.Error(err))
		return source.FailItem[event.Event](source.StatusFailed, err)
	}
}

func (l *LocalSource) fail(op string, err error) source.Result[event.Event] {
	if store.IsPermissionDenied(err) {
		l.log.Debug("internal search denied", zap.String("query", op))
		return source.Fail[event.Event](source.StatusPermissionDenied, err)
	}
	l.log.Error("internal search failed", zap.String("query", op), zap.Error(err))
	return source.Fail[event.Event](source.StatusFailed, err)
}
