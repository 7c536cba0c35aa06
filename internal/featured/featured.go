// Package featured keeps a periodically refreshed carousel of upcoming
// events, one per configured classification.
package featured

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/aabubakar17/meetEasy/internal/config"
	"github.com/aabubakar17/meetEasy/internal/event"
	"github.com/aabubakar17/meetEasy/internal/logging"
	"github.com/aabubakar17/meetEasy/internal/metrics"
	"github.com/aabubakar17/meetEasy/internal/search"
	"github.com/aabubakar17/meetEasy/internal/source"
)

const refreshTimeout = 2 * time.Minute

// Classifier lists external events by classification.
type Classifier interface {
	SearchByClassification(ctx context.Context, category string, pageSize, retriesRemaining int) source.Result[event.External]
	MaxRetries() int
}

// Snapshot is the cached carousel.
type Snapshot struct {
	Events    []search.Result `json:"events"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Carousel caches featured events and refreshes them on a cron schedule.
type Carousel struct {
	client  Classifier
	cfg     config.FeaturedConfig
	logger  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	mu      sync.RWMutex
	current Snapshot

	cron *cron.Cron
}

// New creates a carousel. It holds no events until the first refresh.
func New(client Classifier, cfg config.FeaturedConfig, logger *zap.Logger, m *metrics.Metrics) *Carousel {
	return &Carousel{
		client:  client,
		cfg:     cfg,
		logger:  logging.OrNop(logger),
		metrics: m,
		now:     time.Now,
		current: Snapshot{Events: []search.Result{}},
	}
}

// Snapshot returns a copy of the cached carousel.
func (c *Carousel) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := Snapshot{UpdatedAt: c.current.UpdatedAt, Events: make([]search.Result, len(c.current.Events))}
	copy(out.Events, c.current.Events)
	return out
}

// Refresh queries every classification concurrently and replaces the cache.
// When nothing could be fetched and at least one classification failed, the
// previous carousel is kept.
func (c *Carousel) Refresh(ctx context.Context) error {
	classes := c.cfg.Classifications
	perClass := c.cfg.PerClass
	if perClass <= 0 {
		perClass = 1
	}

	slots := make([]source.Result[event.External], len(classes))
	g, gctx := errgroup.WithContext(ctx)
	for i, class := range classes {
		g.Go(func() error {
			slots[i] = c.client.SearchByClassification(gctx, class, perClass, c.client.MaxRetries())
			return nil
		})
	}
	_ = g.Wait()

	var (
		found    []event.External
		statuses = make([]source.Status, 0, len(slots))
	)
	for i, r := range slots {
		statuses = append(statuses, r.Status)
		if r.Status.Degraded() {
			c.logger.Warn("Featured classification unavailable",
				zap.String("classification", classes[i]),
				zap.String("status", string(r.Status)),
				zap.Error(r.Err),
			)
		}
		found = append(found, r.Items...)
	}
	overall := source.Merge(statuses...)

	if len(found) == 0 && overall != source.StatusOK && len(classes) > 0 {
		c.metrics.ObserveFeatured("failed", len(c.Snapshot().Events))
		return fmt.Errorf("featured refresh fetched nothing (status %s)", overall)
	}

	results := search.Dedup(search.FromExternals(found))
	c.mu.Lock()
	c.current = Snapshot{Events: results, UpdatedAt: c.now()}
	c.mu.Unlock()

	outcome := "ok"
	if overall != source.StatusOK {
		outcome = "partial"
	}
	c.metrics.ObserveFeatured(outcome, len(results))
	c.logger.Info("Featured events refreshed",
		zap.Int("events", len(results)),
		zap.String("outcome", outcome),
	)
	return nil
}

// Start schedules refreshes and runs the first one in the background.
// It is a no-op when the carousel is disabled.
func (c *Carousel) Start() error {
	if !c.cfg.Enabled {
		return nil
	}

	c.cron = cron.New()
	if _, err := c.cron.AddFunc(c.cfg.Schedule, c.refreshJob); err != nil {
		return fmt.Errorf("invalid featured schedule %q: %w", c.cfg.Schedule, err)
	}
	c.cron.Start()
	go c.refreshJob()

	c.logger.Info("Featured refresh scheduled", zap.String("schedule", c.cfg.Schedule))
	return nil
}

// Stop halts the schedule and waits for a running refresh, bounded by ctx.
func (c *Carousel) Stop(ctx context.Context) {
	if c.cron == nil {
		return
	}
	select {
	case <-c.cron.Stop().Done():
	case <-ctx.Done():
	}
}

func (c *Carousel) refreshJob() {
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()
	if err := c.Refresh(ctx); err != nil {
		c.logger.Warn("Featured refresh failed", zap.Error(err))
	}
}
