package aggregator_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nordsat/world-mosaic/internal/aggregator"
	"github.com/nordsat/world-mosaic/internal/domain"
	"github.com/nordsat/world-mosaic/internal/grid"
	"github.com/nordsat/world-mosaic/internal/observability"
	"github.com/nordsat/world-mosaic/internal/raster"
)

// --- mocks ---

// stubSource replays a fixed list of notifications, then reports idle
// polls. drained closes once the list is empty, which happens only
// after every earlier event has been recorded by the runner.
type stubSource struct {
	mu      sync.Mutex
	events  []domain.TileEvent
	drained chan struct{}
	once    sync.Once
}

func newStubSource(events ...domain.TileEvent) *stubSource {
	return &stubSource{events: events, drained: make(chan struct{})}
}

func (s *stubSource) Poll(ctx context.Context, _ time.Duration) (*domain.TileEvent, error) {
	s.mu.Lock()
	if len(s.events) == 0 {
		s.mu.Unlock()
		s.once.Do(func() { close(s.drained) })
		select {
		case <-ctx.Done():
		case <-time.After(time.Millisecond):
		}
		return nil, nil
	}
	evt := s.events[0]
	s.events = s.events[1:]
	s.mu.Unlock()
	return &evt, nil
}

type mockPublisher struct {
	mu     sync.Mutex
	err    error
	events []domain.MosaicEvent
}

func (m *mockPublisher) PublishMosaic(_ context.Context, evt domain.MosaicEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, evt)
	return nil
}

func (m *mockPublisher) published() []domain.MosaicEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.MosaicEvent(nil), m.events...)
}

// --- helpers ---

var nominal = time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testArea() grid.Definition {
	return grid.Definition{Name: "testarea", Width: 4, Height: 4}
}

// writeTile saves a synthetic grey tile whose visible pixels are chosen
// by the given predicate.
func writeTile(t *testing.T, path string, def grid.Definition, value float64, visible func(x, y int) bool) {
	t.Helper()
	ras := raster.New(def.Width, def.Height)
	for y := 0; y < def.Height; y++ {
		for x := 0; x < def.Width; x++ {
			if visible(x, y) {
				ras.SetPixel(x, y, value, value, value, 1.0)
			}
		}
	}
	require.NoError(t, raster.SaveMosaic(path, ras))
}

func testParams(dir string) aggregator.Params {
	return aggregator.Params{
		Area:         testArea(),
		NumExpected:  2,
		Timeout:      30 * time.Minute,
		OutPattern:   filepath.Join(dir, "{composite}_{nominal_time}_{areaname}.png"),
		PollInterval: time.Millisecond,
	}
}

func startRunner(t *testing.T, r *aggregator.Runner) (cancel func()) {
	t.Helper()
	ctx, stop := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	return func() {
		stop()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("runner did not stop")
		}
	}
}

func waitForMosaic(t *testing.T, path string, def grid.Definition) *raster.Raster {
	t.Helper()
	var ras *raster.Raster
	require.Eventually(t, func() bool {
		tile, err := raster.LoadTile(path, nominal, def, nil)
		if err != nil {
			return false
		}
		ras = tile.Raster
		return true
	}, 5*time.Second, 10*time.Millisecond, "no composite at %s", path)
	return ras
}

// --- tests ---

func TestRunner_Run_CompletedSlot(t *testing.T) {
	dir := t.TempDir()
	def := testArea()
	left := filepath.Join(dir, "left.png")
	right := filepath.Join(dir, "right.png")
	writeTile(t, left, def, 0.8, func(x, y int) bool { return x < 2 })
	writeTile(t, right, def, 0.4, func(x, y int) bool { return x >= 2 })

	source := newStubSource(
		domain.TileEvent{URI: left, NominalTime: nominal, ProductName: "overview"},
		domain.TileEvent{URI: right, NominalTime: nominal, ProductName: "overview"},
	)
	pub := &mockPublisher{}
	runner := aggregator.New(source, pub, testParams(dir), discardLogger(),
		observability.NewMetricsForTesting(), clockwork.NewFakeClockAt(nominal))

	require.Error(t, runner.CheckReadiness(context.Background()),
		"not ready before the first poll cycle")

	stop := startRunner(t, runner)
	defer stop()

	outPath := filepath.Join(dir, "overview_20260825_1200_testarea.png")
	got := waitForMosaic(t, outPath, def)

	assert.NoError(t, runner.CheckReadiness(context.Background()))

	for y := 0; y < def.Height; y++ {
		for x := 0; x < def.Width; x++ {
			i := got.Index(x, y)
			require.False(t, got.Occluded[i], "pixel (%d,%d) occluded", x, y)
			want := 0.8
			if x >= 2 {
				want = 0.4
			}
			assert.InDelta(t, want, got.Chans[raster.ChRed][i], 0.004, "pixel (%d,%d)", x, y)
		}
	}

	require.Eventually(t, func() bool { return len(pub.published()) == 1 },
		5*time.Second, 10*time.Millisecond)
	evt := pub.published()[0]
	assert.Equal(t, outPath, evt.URI)
	assert.Equal(t, "overview", evt.ProductName)
	assert.Equal(t, "testarea", evt.AreaName)
	assert.Equal(t, 2, evt.NumTiles)
	assert.True(t, evt.NominalTime.Equal(nominal))
}

func TestRunner_Run_TimeoutBuildsPartialComposite(t *testing.T) {
	dir := t.TempDir()
	def := testArea()
	left := filepath.Join(dir, "left.png")
	writeTile(t, left, def, 0.8, func(x, y int) bool { return x < 2 })

	source := newStubSource(
		domain.TileEvent{URI: left, NominalTime: nominal, ProductName: "overview"},
	)
	pub := &mockPublisher{}
	clk := clockwork.NewFakeClockAt(nominal)
	params := testParams(dir)
	params.NumExpected = 5
	runner := aggregator.New(source, pub, params, discardLogger(),
		observability.NewMetricsForTesting(), clk)

	stop := startRunner(t, runner)
	defer stop()

	select {
	case <-source.drained:
	case <-time.After(5 * time.Second):
		t.Fatal("source never drained")
	}

	outPath := filepath.Join(dir, "overview_20260825_1200_testarea.png")
	_, err := os.Stat(outPath)
	require.Error(t, err, "no composite before the deadline")

	clk.Advance(params.Timeout + time.Minute)

	got := waitForMosaic(t, outPath, def)
	for y := 0; y < def.Height; y++ {
		for x := 0; x < def.Width; x++ {
			i := got.Index(x, y)
			if x < 2 {
				assert.False(t, got.Occluded[i], "pixel (%d,%d)", x, y)
				assert.InDelta(t, 0.8, got.Chans[raster.ChRed][i], 0.004)
			} else {
				assert.True(t, got.Occluded[i], "pixel (%d,%d) should stay empty", x, y)
			}
		}
	}

	require.Eventually(t, func() bool { return len(pub.published()) == 1 },
		5*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, pub.published()[0].NumTiles)
}

func TestRunner_Run_LateTileMergesOntoExistingMosaic(t *testing.T) {
	dir := t.TempDir()
	def := testArea()

	// A composite from an earlier pass already sits at the output path.
	outPath := filepath.Join(dir, "overview_20260825_1200_testarea.png")
	writeTile(t, outPath, def, 0.8, func(x, y int) bool { return x < 2 })

	late := filepath.Join(dir, "late.png")
	writeTile(t, late, def, 0.4, func(x, y int) bool { return x >= 2 })

	source := newStubSource(
		domain.TileEvent{URI: late, NominalTime: nominal, ProductName: "overview"},
	)
	params := testParams(dir)
	params.NumExpected = 1
	runner := aggregator.New(source, nil, params, discardLogger(),
		observability.NewMetricsForTesting(), clockwork.NewFakeClockAt(nominal))

	stop := startRunner(t, runner)
	defer stop()

	require.Eventually(t, func() bool {
		tile, err := raster.LoadTile(outPath, nominal, def, nil)
		if err != nil {
			return false
		}
		// Until the merge lands, the right half is still occluded.
		return !tile.Raster.Occluded[tile.Raster.Index(3, 0)]
	}, 5*time.Second, 10*time.Millisecond)

	tile, err := raster.LoadTile(outPath, nominal, def, nil)
	require.NoError(t, err)
	got := tile.Raster
	assert.InDelta(t, 0.8, got.Chans[raster.ChRed][got.Index(0, 0)], 0.004, "existing data kept")
	assert.InDelta(t, 0.4, got.Chans[raster.ChRed][got.Index(3, 0)], 0.004, "late tile folded in")
}

func TestRunner_Run_DropsSlotWhenTileUnreadable(t *testing.T) {
	dir := t.TempDir()
	def := testArea()
	good := filepath.Join(dir, "good.png")
	writeTile(t, good, def, 0.8, func(x, y int) bool { return true })

	source := newStubSource(
		domain.TileEvent{URI: filepath.Join(dir, "missing.png"), NominalTime: nominal, ProductName: "broken"},
		domain.TileEvent{URI: good, NominalTime: nominal, ProductName: "overview"},
	)
	params := testParams(dir)
	params.NumExpected = 1
	runner := aggregator.New(source, nil, params, discardLogger(),
		observability.NewMetricsForTesting(), clockwork.NewFakeClockAt(nominal))

	stop := startRunner(t, runner)
	defer stop()

	waitForMosaic(t, filepath.Join(dir, "overview_20260825_1200_testarea.png"), def)

	_, err := os.Stat(filepath.Join(dir, "broken_20260825_1200_testarea.png"))
	assert.Error(t, err, "failed slot must not produce a composite")
}

func TestRunner_Run_DropsSlotWhenExistingOutputUnusable(t *testing.T) {
	dir := t.TempDir()
	def := testArea()

	// The blocked product's output path is occupied by a file on a
	// different grid, so it can neither serve as a merge base nor be
	// treated as absent.
	occupier := grid.Definition{Name: "other", Width: 2, Height: 2}
	blockedOut := filepath.Join(dir, "blocked_20260825_1200_testarea.png")
	writeTile(t, blockedOut, occupier, 0.9, func(x, y int) bool { return true })

	tilePath := filepath.Join(dir, "tile.png")
	writeTile(t, tilePath, def, 0.8, func(x, y int) bool { return true })

	source := newStubSource(
		domain.TileEvent{URI: tilePath, NominalTime: nominal, ProductName: "blocked"},
		domain.TileEvent{URI: tilePath, NominalTime: nominal, ProductName: "overview"},
	)
	pub := &mockPublisher{}
	params := testParams(dir)
	params.NumExpected = 1
	runner := aggregator.New(source, pub, params, discardLogger(),
		observability.NewMetricsForTesting(), clockwork.NewFakeClockAt(nominal))

	stop := startRunner(t, runner)
	defer stop()

	waitForMosaic(t, filepath.Join(dir, "overview_20260825_1200_testarea.png"), def)

	tile, err := raster.LoadTile(blockedOut, nominal, occupier, nil)
	require.NoError(t, err, "the occupying file survives the failed slot")
	assert.InDelta(t, 0.9, tile.Raster.Chans[raster.ChRed][0], 0.004, "occupying file content untouched")

	require.Eventually(t, func() bool { return len(pub.published()) == 1 },
		5*time.Second, 10*time.Millisecond)
	assert.Equal(t, "overview", pub.published()[0].ProductName,
		"only the healthy slot announces a mosaic")
}

func TestRunner_Run_PublishFailureDoesNotBlockComposites(t *testing.T) {
	dir := t.TempDir()
	def := testArea()
	tilePath := filepath.Join(dir, "tile.png")
	writeTile(t, tilePath, def, 0.8, func(x, y int) bool { return true })

	source := newStubSource(
		domain.TileEvent{URI: tilePath, NominalTime: nominal, ProductName: "overview"},
	)
	pub := &mockPublisher{err: errors.New("broker unavailable")}
	params := testParams(dir)
	params.NumExpected = 1
	runner := aggregator.New(source, pub, params, discardLogger(),
		observability.NewMetricsForTesting(), clockwork.NewFakeClockAt(nominal))

	stop := startRunner(t, runner)
	defer stop()

	waitForMosaic(t, filepath.Join(dir, "overview_20260825_1200_testarea.png"), def)
	assert.Empty(t, pub.published())
}

func TestRunner_Run_RejectsBrokenOutPattern(t *testing.T) {
	params := testParams(t.TempDir())
	params.OutPattern = "/data/{bogus}.png"
	runner := aggregator.New(newStubSource(), nil, params, discardLogger(),
		observability.NewMetricsForTesting(), clockwork.NewFakeClockAt(nominal))

	err := runner.Run(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown field")
}
