// Package aggregator drives the composite build loop: it gathers tile
// notifications into per-slot accumulators and folds each finished slot
// into a mosaic on disk.
package aggregator

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/nordsat/world-mosaic/internal/compositor"
	"github.com/nordsat/world-mosaic/internal/domain"
	"github.com/nordsat/world-mosaic/internal/grid"
	"github.com/nordsat/world-mosaic/internal/observability"
	"github.com/nordsat/world-mosaic/internal/raster"
)

// EventSource hands out tile notifications. Poll blocks for up to wait
// and returns (nil, nil) when nothing arrived in time.
type EventSource interface {
	Poll(ctx context.Context, wait time.Duration) (*domain.TileEvent, error)
}

// MosaicPublisher announces finished composites downstream.
type MosaicPublisher interface {
	PublishMosaic(ctx context.Context, evt domain.MosaicEvent) error
}

// Params bundles the compositing rules the runner applies.
type Params struct {
	Area         grid.Definition
	Limits       map[string]grid.LonRange
	Blend        *compositor.Config
	NumExpected  int
	Timeout      time.Duration
	OutPattern   string
	PollInterval time.Duration
}

// Runner owns the aggregation loop. Each iteration first builds every
// slot that is due, then waits briefly for the next notification, so a
// deadline is honored even while no new tiles arrive. publisher may be
// nil when announcing mosaics is disabled.
type Runner struct {
	source    EventSource
	publisher MosaicPublisher
	params    Params
	table     *SlotTable
	logger    *slog.Logger
	metrics   *observability.Metrics
	clock     clockwork.Clock
	ready     atomic.Bool
}

// New creates a Runner with the given source, sink and rules.
func New(source EventSource, publisher MosaicPublisher, params Params, logger *slog.Logger, metrics *observability.Metrics, clock clockwork.Clock) *Runner {
	return &Runner{
		source:    source,
		publisher: publisher,
		params:    params,
		table:     NewSlotTable(),
		logger:    logger,
		metrics:   metrics,
		clock:     clock,
	}
}

// CheckReadiness returns nil once the runner has completed at least one
// poll cycle against the source, or an error describing why the service
// is not yet ready.
func (r *Runner) CheckReadiness(_ context.Context) error {
	if !r.ready.Load() {
		return errors.New("aggregator has not completed a poll cycle yet")
	}
	return nil
}

// Run executes the aggregation loop until the context is cancelled.
// Unfinished slots are discarded on shutdown; their tiles are rebuilt
// from upstream notifications after a restart, not from local state.
func (r *Runner) Run(ctx context.Context) error {
	// Surface a broken pattern at startup instead of on the first
	// finished slot.
	if _, err := ComposeOutPath(r.params.OutPattern, "probe", r.clock.Now(), r.params.Area.Name); err != nil {
		return err
	}

	r.logger.Info("aggregator started",
		"area", r.params.Area.Name,
		"width", r.params.Area.Width,
		"height", r.params.Area.Height,
		"num_expected", r.params.NumExpected,
		"timeout", r.params.Timeout,
		"blend", r.params.Blend != nil,
	)
	r.metrics.AggregatorRunning.Set(1)
	defer r.metrics.AggregatorRunning.Set(0)

	// Exponential backoff: start at 200ms, double each retry, cap at 5s.
	backoff := 200 * time.Millisecond
	maxBackoff := 5 * time.Second

	for {
		select {
		case <-ctx.Done():
			if n := r.table.Len(); n > 0 {
				r.logger.Info("aggregator stopping, discarding unfinished slots", "slots", n)
			} else {
				r.logger.Info("aggregator stopping")
			}
			return nil
		default:
		}

		r.flushDue(ctx)

		evt, err := r.source.Poll(ctx, r.params.PollInterval)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			r.logger.Error("poll tile notifications failed", "error", err)
			if !sleepWithContext(ctx, backoff) {
				continue
			}
			backoff = nextBackoff(backoff, maxBackoff)
			continue
		}
		backoff = 200 * time.Millisecond
		r.ready.Store(true)
		if evt == nil {
			continue
		}
		r.record(*evt)
	}
}

// record files one notification into its accumulator.
func (r *Runner) record(evt domain.TileEvent) {
	deadline := r.clock.Now().Add(r.params.Timeout)
	acc := r.table.Add(evt, deadline)
	r.metrics.TilesReceived.Inc()
	r.metrics.SlotsActive.Set(float64(r.table.Len()))
	r.logger.Debug("tile received",
		"uri", evt.URI,
		"slot", evt.NominalTime,
		"product", evt.ProductName,
		"received", acc.Received,
		"expected", r.params.NumExpected,
	)
}

// flushDue builds every slot that is complete or past its deadline.
// Each slot is removed afterwards whether its build succeeded or not; a
// failed slot is dropped, not retried.
func (r *Runner) flushDue(ctx context.Context) {
	due := r.table.Due(r.clock.Now(), r.params.NumExpected)
	for _, slot := range due {
		r.buildComposite(ctx, slot)
		r.table.Remove(slot.Time, slot.Product)
	}
	if removed := r.table.Sweep(); removed > 0 {
		r.logger.Debug("removed empty time slots", "count", removed)
	}
	if len(due) > 0 {
		r.metrics.SlotsActive.Set(float64(r.table.Len()))
	}
}

// buildComposite folds one due slot's tiles onto the existing mosaic
// for its output path, saves the result and announces it.
func (r *Runner) buildComposite(ctx context.Context, slot DueSlot) {
	start := time.Now()
	trigger := "complete"
	if slot.TimedOut {
		trigger = "timeout"
	}

	outPath, err := ComposeOutPath(r.params.OutPattern, slot.Product, slot.Time, r.params.Area.Name)
	if err != nil {
		r.logger.Error("compose output path failed", "error", err, "product", slot.Product)
		r.metrics.CompositeErrors.Inc()
		return
	}

	r.logger.Info("building composite",
		"product", slot.Product,
		"slot", slot.Time,
		"tiles", slot.Received,
		"trigger", trigger,
		"uri", outPath,
	)

	// Late tiles land in a fresh slot after their composite was built,
	// so an output file may already exist; it becomes the merge base.
	img, err := raster.LoadMergeBase(outPath, slot.Time, r.params.Area, r.params.Limits)
	if err != nil {
		r.logger.Error("read existing mosaic failed", "error", err, "uri", outPath)
		r.metrics.CompositeErrors.Inc()
		return
	}
	if img != nil {
		r.logger.Debug("merging onto existing mosaic", "uri", outPath)
	}

	for _, path := range slot.Paths {
		tile, err := raster.LoadTile(path, slot.Time, r.params.Area, r.params.Limits)
		if err != nil {
			r.logger.Error("load tile failed", "error", err, "uri", path)
			r.metrics.CompositeErrors.Inc()
			return
		}
		r.logger.Debug("tile loaded", "uri", path, "satellite", tile.Satellite)
		img, err = compositor.Merge(img, tile.Raster, r.params.Blend)
		if err != nil {
			r.logger.Error("merge tile failed", "error", err, "uri", path)
			r.metrics.CompositeErrors.Inc()
			return
		}
	}

	if err := raster.SaveMosaic(outPath, img); err != nil {
		r.logger.Error("save composite failed", "error", err, "uri", outPath)
		r.metrics.CompositeErrors.Inc()
		return
	}

	r.logger.Info("saved composite",
		"uri", outPath,
		"product", slot.Product,
		"slot", slot.Time,
		"tiles", slot.Received,
	)
	r.metrics.CompositesBuilt.WithLabelValues(trigger).Inc()
	r.metrics.CompositeDuration.Observe(time.Since(start).Seconds())
	r.metrics.TilesPerComposite.Observe(float64(slot.Received))

	r.publish(ctx, domain.NewMosaicEvent(outPath, slot.Product, r.params.Area.Name, slot.Time, slot.Received))
}

// publish announces a saved composite when a publisher is configured.
// Announcing is best-effort: the mosaic is already on disk, so a failed
// write costs only the notification.
func (r *Runner) publish(ctx context.Context, evt domain.MosaicEvent) {
	if r.publisher == nil {
		return
	}
	if err := r.publisher.PublishMosaic(ctx, evt); err != nil {
		r.logger.Warn("publish mosaic event failed", "error", err, "uri", evt.URI)
		r.metrics.PublishErrors.Inc()
		return
	}
	r.metrics.MosaicEventsPublished.Inc()
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
