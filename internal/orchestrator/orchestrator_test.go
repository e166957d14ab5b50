package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/quantfold/kalshi-arb/internal/ingestion"
	"github.com/quantfold/kalshi-arb/internal/relationship"
	"github.com/quantfold/kalshi-arb/pkg/types"
)

// recorder implements every dependency and appends each call to a shared
// ordered trace.
type recorder struct {
	trace []string

	scanResult []types.Opportunity
	scanErr    error
	execFilled bool
	execErr    error
	ingestErr  error

	expired []string

	summaryArgs [][2]int
	sinces      []time.Time
	oppCount    int
	tradeCount  int
}

func (r *recorder) mark(s string) { r.trace = append(r.trace, s) }

func (r *recorder) IngestAll(context.Context) (*ingestion.Stats, error) {
	r.mark("ingest")
	return &ingestion.Stats{}, r.ingestErr
}

func (r *recorder) EventPass(context.Context) (*relationship.PassStats, error) {
	r.mark("event-pass")
	return &relationship.PassStats{}, nil
}

func (r *recorder) CategoryPass(context.Context) (*relationship.PassStats, error) {
	r.mark("category-pass")
	return &relationship.PassStats{}, nil
}

func (r *recorder) CrossPass(context.Context) (*relationship.PassStats, error) {
	r.mark("cross-pass")
	return &relationship.PassStats{}, nil
}

func (r *recorder) CleanupStale(context.Context) (int, error) {
	r.mark("cleanup")
	return 0, nil
}

func (r *recorder) Scan(context.Context) ([]types.Opportunity, error) {
	r.mark("detect")
	return r.scanResult, r.scanErr
}

func (r *recorder) Execute(_ context.Context, opp *types.Opportunity) (bool, error) {
	r.mark("execute:" + opp.ID)
	return r.execFilled, r.execErr
}

func (r *recorder) Sync(context.Context) error {
	r.mark("portfolio-sync")
	return nil
}

func (r *recorder) Summary() types.PortfolioSummary {
	return types.PortfolioSummary{Balance: 100, DailyPnL: 1.5, CanTrade: true}
}

func (r *recorder) CountOpportunitiesSince(_ context.Context, since time.Time) (int, error) {
	r.sinces = append(r.sinces, since)
	return r.oppCount, nil
}

func (r *recorder) CountTradesSince(context.Context, time.Time) (int, error) {
	return r.tradeCount, nil
}

func (r *recorder) UpdateOpportunityStatus(_ context.Context, id, status string) error {
	r.expired = append(r.expired, id+":"+status)
	return nil
}

func (r *recorder) Opportunity(_ context.Context, opp *types.Opportunity) {
	r.mark("notify-opp:" + opp.ID)
}

func (r *recorder) Trade(_ context.Context, opp *types.Opportunity, _ bool) {
	r.mark("notify-trade:" + opp.ID)
}

func (r *recorder) DailySummary(_ context.Context, _ *types.PortfolioSummary, opps, trades int) {
	r.mark("notify-summary")
	r.summaryArgs = append(r.summaryArgs, [2]int{opps, trades})
}

func (r *recorder) Error(_ context.Context, title string, _ error) {
	r.mark("notify-error:" + title)
}

type verdictAssessor struct {
	ok  bool
	err error
}

func (a *verdictAssessor) Assess(context.Context, *types.Opportunity) (bool, error) {
	return a.ok, a.err
}

func newTestOrchestrator(t *testing.T, r *recorder, assessor Assessor) *Orchestrator {
	t.Helper()
	o, err := New(&Config{
		Ingestor: r,
		Mapper:   r,
		Detector: r,
		Executor: r,
		Guard:    r,
		Store:    r,
		Notifier: r,
		Assessor: assessor,

		IngestInterval:       time.Minute,
		DetectInterval:       15 * time.Second,
		EventPassInterval:    24 * time.Hour,
		CategoryPassInterval: 72 * time.Hour,
		CrossPassInterval:    216 * time.Hour,
		SummaryInterval:      24 * time.Hour,

		Logger: zap.NewNop(),
	})
	require.NoError(t, err)
	return o
}

func TestFirstTickRunsEverythingInOrder(t *testing.T) {
	r := &recorder{}
	o := newTestOrchestrator(t, r, nil)
	o.now = func() time.Time { return time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC) }

	o.tick(context.Background())

	assert.Equal(t, []string{
		"ingest",
		"event-pass", "cleanup",
		"category-pass",
		"cross-pass",
		"detect",
		"portfolio-sync",
		"notify-summary",
	}, r.trace)
}

func TestIntervalsGateTasks(t *testing.T) {
	base := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	now := base
	r := &recorder{}
	o := newTestOrchestrator(t, r, nil)
	o.now = func() time.Time { return now }

	o.tick(context.Background())
	r.trace = nil

	// 15s later only detection is due.
	now = base.Add(15 * time.Second)
	o.tick(context.Background())
	assert.Equal(t, []string{"detect"}, r.trace)

	// At the minute mark ingestion, detection and portfolio sync all
	// fire together, ingestion first.
	r.trace = nil
	now = base.Add(time.Minute)
	o.tick(context.Background())
	assert.Equal(t, []string{"ingest", "detect", "portfolio-sync"}, r.trace)

	// In between, nothing.
	r.trace = nil
	now = base.Add(time.Minute + 5*time.Second)
	o.tick(context.Background())
	assert.Empty(t, r.trace)
}

func TestDetectExecutesAndNotifies(t *testing.T) {
	r := &recorder{
		scanResult: []types.Opportunity{
			{ID: "opp-1", Signal: types.SignalBuySupersetSellSubset},
			{ID: "opp-2", Signal: types.SignalBuyAllPartition},
		},
		execFilled: true,
	}
	o := newTestOrchestrator(t, r, nil)

	require.NoError(t, o.runDetect(context.Background()))
	assert.Equal(t, []string{
		"detect",
		"notify-opp:opp-1", "execute:opp-1", "notify-trade:opp-1",
		"notify-opp:opp-2", "execute:opp-2", "notify-trade:opp-2",
	}, r.trace)
}

func TestExecutionFailureDoesNotAbortTheSweep(t *testing.T) {
	r := &recorder{
		scanResult: []types.Opportunity{{ID: "opp-1"}, {ID: "opp-2"}},
		execErr:    errors.New("exchange rejected order"),
	}
	o := newTestOrchestrator(t, r, nil)

	require.NoError(t, o.runDetect(context.Background()))
	assert.Contains(t, r.trace, "execute:opp-1")
	assert.Contains(t, r.trace, "execute:opp-2")
	assert.NotContains(t, r.trace, "notify-trade:opp-1")
}

func TestAssessorVetoExpiresWithoutTrading(t *testing.T) {
	r := &recorder{scanResult: []types.Opportunity{{ID: "opp-1"}}, execFilled: true}
	o := newTestOrchestrator(t, r, &verdictAssessor{ok: false})

	require.NoError(t, o.runDetect(context.Background()))
	assert.NotContains(t, r.trace, "execute:opp-1")
	assert.Equal(t, []string{"opp-1:EXPIRED"}, r.expired)
}

func TestAssessorErrorNeverBlocksTrading(t *testing.T) {
	r := &recorder{scanResult: []types.Opportunity{{ID: "opp-1"}}, execFilled: true}
	o := newTestOrchestrator(t, r, &verdictAssessor{err: errors.New("assessor timeout")})

	require.NoError(t, o.runDetect(context.Background()))
	assert.Contains(t, r.trace, "execute:opp-1")
	assert.Empty(t, r.expired)
}

func TestTaskFailureIsReportedAndLoopContinues(t *testing.T) {
	r := &recorder{ingestErr: errors.New("exchange down")}
	o := newTestOrchestrator(t, r, nil)
	o.now = func() time.Time { return time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC) }

	o.tick(context.Background())

	assert.Contains(t, r.trace, "notify-error:Task ingest failed")
	assert.Contains(t, r.trace, "detect", "later tasks still run")
	assert.Contains(t, r.trace, "portfolio-sync")
}

func TestTaskPanicIsRecovered(t *testing.T) {
	r := &recorder{}
	o := newTestOrchestrator(t, r, nil)

	boom := &task{name: "boom", run: func(context.Context) error { panic("kaboom") }}
	assert.NotPanics(t, func() { o.runTask(context.Background(), boom) })
}

func TestSummaryCountersResetAfterEachReport(t *testing.T) {
	base := time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)
	now := base
	r := &recorder{oppCount: 7, tradeCount: 3}
	o := newTestOrchestrator(t, r, nil)
	o.now = func() time.Time { return now }
	o.summarySince = base

	require.NoError(t, o.runSummary(context.Background()))
	require.Len(t, r.summaryArgs, 1)
	assert.Equal(t, [2]int{7, 3}, r.summaryArgs[0])
	require.Len(t, r.sinces, 1)
	assert.Equal(t, base, r.sinces[0])

	// The next summary counts from the previous one, not from startup.
	now = base.Add(24 * time.Hour)
	require.NoError(t, o.runSummary(context.Background()))
	require.Len(t, r.sinces, 2)
	assert.Equal(t, base, r.sinces[1], "previous summary time anchors the count")
	assert.Equal(t, base.Add(24*time.Hour), o.summarySince)
}
