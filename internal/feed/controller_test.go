package feed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/abelbrown/skywatch/internal/anomaly"
	"github.com/abelbrown/skywatch/internal/api"
)

type fakeClient struct {
	anomalies []anomaly.Record
	research  []anomaly.Record
	ruleRecs  map[string][]anomaly.Record
	rules     []api.Rule
	feedback  []anomaly.Record
	legacy    []anomaly.Record
	err       error

	rangeCalls  int
	legacyCalls int
	lastStart   int64
	lastEnd     int64
}

func (f *fakeClient) AnomaliesRange(_ context.Context, start, end int64) ([]anomaly.Record, error) {
	f.rangeCalls++
	f.lastStart, f.lastEnd = start, end
	return f.anomalies, f.err
}

func (f *fakeClient) ResearchRange(_ context.Context, start, end int64) ([]anomaly.Record, error) {
	return f.research, f.err
}

func (f *fakeClient) RuleAnomalies(_ context.Context, ruleID string) ([]anomaly.Record, error) {
	return f.ruleRecs[ruleID], f.err
}

func (f *fakeClient) Rules(_ context.Context) ([]api.Rule, error) {
	return f.rules, f.err
}

func (f *fakeClient) FeedbackRecords(_ context.Context) ([]anomaly.Record, error) {
	return f.feedback, f.err
}

func (f *fakeClient) FeedbackLegacy(_ context.Context) ([]anomaly.Record, error) {
	f.legacyCalls++
	return f.legacy, f.err
}

func (f *fakeClient) SubmitLabel(_ context.Context, _ string, _ int64, _ anomaly.Label) error {
	return f.err
}

type fakeNotifier struct{ alerts int }

func (f *fakeNotifier) NewRecords() { f.alerts++ }

type fakeArchive struct {
	batches int
	labels  []anomaly.Label
}

func (f *fakeArchive) SaveRecords(records []anomaly.Record) (int, error) {
	f.batches++
	return len(records), nil
}

func (f *fakeArchive) SaveLabel(_ string, _ int64, label anomaly.Label) error {
	f.labels = append(f.labels, label)
	return nil
}

// fixedClock pins the controller's clock for deterministic poll windows.
func fixedClock(c *Controller, epoch *int64) {
	c.now = func() time.Time { return time.Unix(*epoch, 0) }
}

func TestHistoricalFetch(t *testing.T) {
	fc := &fakeClient{anomalies: []anomaly.Record{
		{FlightID: "A", Timestamp: 100},
		{FlightID: "B", Timestamp: 200},
	}}
	c := NewController(fc, nil, nil)

	cmd := c.SetMode(ModeHistorical)
	if cmd == nil {
		t.Fatal("expected a fetch command")
	}
	if !c.Searching() {
		t.Error("expected an in-flight search")
	}

	c.Update(cmd())

	got := c.Records()
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	if got[0].FlightID != "B" {
		t.Errorf("expected newest first, got %s", got[0].FlightID)
	}
	if c.Searching() {
		t.Error("expected idle after the result landed")
	}
	if c.Err() != nil {
		t.Errorf("unexpected error: %v", c.Err())
	}
}

func TestFetchFailureClearsStore(t *testing.T) {
	fc := &fakeClient{anomalies: []anomaly.Record{{FlightID: "A", Timestamp: 100}}}
	c := NewController(fc, nil, nil)

	c.Update(c.SetMode(ModeHistorical)())
	if len(c.Records()) != 1 {
		t.Fatal("setup: expected one record")
	}

	fc.err = errors.New("backend unavailable")
	c.Update(c.Refresh()())

	if len(c.Records()) != 0 {
		t.Error("a failed fetch must clear the working set")
	}
	if c.Err() == nil {
		t.Error("expected a surfaced error")
	}

	fc.err = nil
	c.Update(c.Refresh()())
	if c.Err() != nil {
		t.Error("a successful fetch must clear the surfaced error")
	}
}

func TestCancelledFetchIsSilent(t *testing.T) {
	fc := &fakeClient{err: context.Canceled}
	c := NewController(fc, nil, nil)

	c.Update(c.SetMode(ModeHistorical)())

	if c.Err() != nil {
		t.Errorf("cancellation must not surface as an error, got %v", c.Err())
	}
}

func TestModeSwitchDropsStaleResult(t *testing.T) {
	fc := &fakeClient{anomalies: []anomaly.Record{{FlightID: "A", Timestamp: 100}}}
	c := NewController(fc, nil, nil)

	stale := c.SetMode(ModeHistorical)
	c.SetMode(ModeExternal)

	if len(c.Records()) != 0 {
		t.Fatal("mode switch must leave an empty working set")
	}

	// The superseded fetch resolves after the switch.
	c.Update(stale())

	if len(c.Records()) != 0 {
		t.Error("a stale result must never populate the working set")
	}
}

func TestRapidRuleSelection(t *testing.T) {
	fc := &fakeClient{
		rules: []api.Rule{{ID: "4", Name: "rapid-descent"}, {ID: "7", Name: "squawk"}},
		ruleRecs: map[string][]anomaly.Record{
			"4": {{FlightID: "R4", Timestamp: 100}},
			"7": {{FlightID: "R7", Timestamp: 200}},
		},
	}
	c := NewController(fc, nil, nil)

	c.Update(c.SetMode(ModeRuleDetail)())
	if len(c.Rules()) != 2 {
		t.Fatal("expected the rule catalog to load")
	}

	// Select rule 4, then rule 7 before 4's fetch resolves.
	cmdFour := c.SelectRule("4")
	cmdSeven := c.SelectRule("7")

	c.Update(cmdFour())
	if len(c.Records()) != 0 {
		t.Error("rule 4's stale result must be dropped")
	}

	c.Update(cmdSeven())
	got := c.Records()
	if len(got) != 1 || got[0].FlightID != "R7" {
		t.Errorf("expected rule 7's records only, got %v", got)
	}
	if c.RuleID() != "7" {
		t.Errorf("expected rule 7 selected, got %q", c.RuleID())
	}
}

func TestFeedbackLegacyFallback(t *testing.T) {
	fc := &fakeClient{legacy: []anomaly.Record{{FlightID: "L", Timestamp: 100}}}
	c := NewController(fc, nil, nil)

	follow := c.Update(c.SetMode(ModeFeedback)())
	if follow == nil {
		t.Fatal("empty curated feedback must trigger the legacy fetch")
	}
	c.Update(follow())

	got := c.Records()
	if len(got) != 1 || got[0].FlightID != "L" {
		t.Errorf("expected legacy records, got %v", got)
	}
	if fc.legacyCalls != 1 {
		t.Errorf("expected one legacy call, got %d", fc.legacyCalls)
	}
}

func TestFeedbackPrimaryNonEmptySkipsLegacy(t *testing.T) {
	fc := &fakeClient{
		feedback: []anomaly.Record{{FlightID: "P", Timestamp: 100}},
		legacy:   []anomaly.Record{{FlightID: "L", Timestamp: 200}},
	}
	c := NewController(fc, nil, nil)

	follow := c.Update(c.SetMode(ModeFeedback)())
	if follow != nil {
		t.Error("non-empty curated feedback must not trigger a follow-up")
	}
	if fc.legacyCalls != 0 {
		t.Errorf("legacy source must not be queried, got %d calls", fc.legacyCalls)
	}
	got := c.Records()
	if len(got) != 1 || got[0].FlightID != "P" {
		t.Errorf("expected curated records only, got %v", got)
	}
}

func TestRealtimePollMergeAndAlert(t *testing.T) {
	fc := &fakeClient{}
	notifier := &fakeNotifier{}
	archive := &fakeArchive{}
	c := NewController(fc, notifier, archive)
	c.SetPollInterval(time.Millisecond)

	clock := int64(10000)
	fixedClock(c, &clock)

	// Entering realtime issues the trailing-hour backfill; resolving it
	// arms the timer.
	cmd := c.SetMode(ModeRealtime)
	if arm := c.Update(cmd()); arm == nil {
		t.Fatal("resolving the backfill must arm the poller")
	}
	if c.Watermark() != 10000 {
		t.Fatalf("expected watermark at entry time, got %d", c.Watermark())
	}
	if fc.lastStart != 10000-3600 || fc.lastEnd != 10000 {
		t.Errorf("expected trailing-hour backfill, got [%d, %d]", fc.lastStart, fc.lastEnd)
	}

	// Tick 1: flight A appears.
	clock = 10100
	fc.anomalies = []anomaly.Record{{FlightID: "A", Timestamp: 100}}
	c.Update(c.Update(pollTickMsg{gen: c.pollGen})())

	if len(c.Records()) != 1 {
		t.Fatalf("expected A after tick 1, got %v", c.Records())
	}
	if notifier.alerts != 1 {
		t.Errorf("expected one alert after tick 1, got %d", notifier.alerts)
	}
	if c.Watermark() != 10100 {
		t.Errorf("expected watermark 10100, got %d", c.Watermark())
	}

	// Tick 2: A again plus a new flight B. Only B is new.
	clock = 10200
	fc.anomalies = []anomaly.Record{
		{FlightID: "A", Timestamp: 100},
		{FlightID: "B", Timestamp: 150},
	}
	c.Update(c.Update(pollTickMsg{gen: c.pollGen})())

	got := c.Records()
	if len(got) != 2 {
		t.Fatalf("expected both records after tick 2, got %v", got)
	}
	if got[0].FlightID != "B" || got[1].FlightID != "A" {
		t.Errorf("expected newest-first ordering, got %v", got)
	}
	if notifier.alerts != 2 {
		t.Errorf("expected exactly one more alert after tick 2, got %d total", notifier.alerts)
	}
	if archive.batches != 2 {
		t.Errorf("expected two archive writes, got %d", archive.batches)
	}

	// Tick 3: nothing new; no alert.
	clock = 10300
	c.Update(c.Update(pollTickMsg{gen: c.pollGen})())
	if notifier.alerts != 2 {
		t.Errorf("a tick with no new records must not alert, got %d", notifier.alerts)
	}
}

func TestRealtimeSlowBackfillCannotClobberPolledRecords(t *testing.T) {
	fc := &fakeClient{anomalies: []anomaly.Record{{FlightID: "H", Timestamp: 9000}}}
	c := NewController(fc, nil, nil)
	c.SetPollInterval(time.Millisecond)

	clock := int64(10000)
	fixedClock(c, &clock)

	// The backfill is slow: its result is computed but not yet delivered.
	backfillMsg := c.SetMode(ModeRealtime)()

	// No poll window may open while the backfill is outstanding.
	clock = 10100
	if follow := c.Update(pollTickMsg{gen: c.pollGen}); follow != nil {
		t.Fatal("no poll may run before the backfill resolves")
	}

	// The backfill lands late; only now does the poller arm.
	if arm := c.Update(backfillMsg); arm == nil {
		t.Fatal("expected the poller to arm once the backfill resolved")
	}
	if got := c.Records(); len(got) != 1 || got[0].FlightID != "H" {
		t.Fatalf("expected the backfill records, got %v", got)
	}

	// The next poll merges on top of the backfill instead of being lost.
	clock = 10200
	fc.anomalies = []anomaly.Record{{FlightID: "P", Timestamp: 10150}}
	c.Update(c.Update(pollTickMsg{gen: c.pollGen})())

	got := c.Records()
	if len(got) != 2 || got[0].FlightID != "P" || got[1].FlightID != "H" {
		t.Errorf("expected the polled record merged on top of the backfill, got %v", got)
	}
}

func TestRealtimeFailedBackfillStillPolls(t *testing.T) {
	fc := &fakeClient{err: errors.New("backend down")}
	c := NewController(fc, nil, nil)
	c.SetPollInterval(time.Millisecond)

	clock := int64(10000)
	fixedClock(c, &clock)

	if arm := c.Update(c.SetMode(ModeRealtime)()); arm == nil {
		t.Fatal("a failed backfill must still arm the poller")
	}
	if c.Err() == nil {
		t.Error("expected the backfill failure surfaced")
	}

	fc.err = nil
	clock = 10100
	fc.anomalies = []anomaly.Record{{FlightID: "A", Timestamp: 10050}}
	c.Update(c.Update(pollTickMsg{gen: c.pollGen})())

	if got := c.Records(); len(got) != 1 || got[0].FlightID != "A" {
		t.Errorf("expected polling to recover after the failed backfill, got %v", got)
	}
}

func TestRealtimeWatermarkAdvancesOnFailure(t *testing.T) {
	fc := &fakeClient{}
	c := NewController(fc, nil, nil)
	c.SetPollInterval(time.Millisecond)

	clock := int64(10000)
	fixedClock(c, &clock)
	c.Update(c.SetMode(ModeRealtime)())

	clock = 10100
	fc.err = errors.New("poll failed")
	follow := c.Update(c.Update(pollTickMsg{gen: c.pollGen})())

	if c.Watermark() != 10100 {
		t.Errorf("watermark must advance even on failure, got %d", c.Watermark())
	}
	if follow == nil {
		t.Error("a failed poll must re-arm the timer")
	}
}

func TestRealtimeDegenerateWindowSkips(t *testing.T) {
	fc := &fakeClient{}
	c := NewController(fc, nil, nil)
	c.SetPollInterval(time.Millisecond)

	clock := int64(10000)
	fixedClock(c, &clock)
	c.Update(c.SetMode(ModeRealtime)())
	before := fc.rangeCalls

	// Clock did not advance past the watermark.
	follow := c.Update(pollTickMsg{gen: c.pollGen})
	if follow == nil {
		t.Fatal("a skipped tick must re-arm the timer")
	}
	if _, ok := follow().(pollTickMsg); !ok {
		t.Error("expected the follow-up to be a timer, not a fetch")
	}
	if fc.rangeCalls != before {
		t.Error("a degenerate window must not hit the backend")
	}
}

func TestRealtimeStaleTimerDies(t *testing.T) {
	fc := &fakeClient{}
	c := NewController(fc, nil, nil)
	c.SetPollInterval(time.Millisecond)

	clock := int64(10000)
	fixedClock(c, &clock)
	c.Update(c.SetMode(ModeRealtime)())
	staleGen := c.pollGen

	c.SetMode(ModeHistorical)

	clock = 10100
	if follow := c.Update(pollTickMsg{gen: staleGen}); follow != nil {
		t.Error("a timer armed under a previous mode must die silently")
	}
	if c.Watermark() != 0 {
		t.Errorf("leaving realtime must clear the watermark, got %d", c.Watermark())
	}
}

func TestSetExternalMirrors(t *testing.T) {
	fc := &fakeClient{}
	c := NewController(fc, nil, nil)
	before := fc.rangeCalls

	c.SetExternal([]anomaly.Record{
		{FlightID: "A", Timestamp: 100},
		{FlightID: "B", Timestamp: 300},
	})

	if c.Mode() != ModeExternal {
		t.Errorf("expected external mode, got %s", c.Mode())
	}
	got := c.Records()
	if len(got) != 2 || got[0].FlightID != "B" {
		t.Errorf("expected sorted mirror, got %v", got)
	}
	if fc.rangeCalls != before {
		t.Error("external mode must perform no fetch of its own")
	}
}

func TestRefreshExternalKeepsMirror(t *testing.T) {
	fc := &fakeClient{}
	c := NewController(fc, nil, nil)
	c.SetExternal([]anomaly.Record{{FlightID: "A", Timestamp: 100}})
	before := fc.rangeCalls

	if cmd := c.Refresh(); cmd != nil {
		t.Error("refresh must not fetch in external mode")
	}
	if len(c.Records()) != 1 {
		t.Error("refresh must not clear the mirrored collection")
	}
	if fc.rangeCalls != before {
		t.Error("refresh must not hit the backend in external mode")
	}
}

func TestApplyLabel(t *testing.T) {
	fc := &fakeClient{}
	archive := &fakeArchive{}
	c := NewController(fc, nil, archive)
	c.SetExternal([]anomaly.Record{{FlightID: "A", Timestamp: 100}})

	c.Update(c.ApplyLabel("A", 100, anomaly.LabelNormal)())

	got := c.Records()
	if got[0].UserLabel != anomaly.LabelNormal {
		t.Errorf("expected the working-set entry relabeled, got %q", got[0].UserLabel)
	}
	if len(archive.labels) != 1 || archive.labels[0] != anomaly.LabelNormal {
		t.Errorf("expected the label archived, got %v", archive.labels)
	}
}

func TestApplyLabelFailureLeavesRecord(t *testing.T) {
	fc := &fakeClient{}
	c := NewController(fc, nil, nil)
	c.SetExternal([]anomaly.Record{{FlightID: "A", Timestamp: 100}})

	fc.err = errors.New("submit failed")
	c.Update(c.ApplyLabel("A", 100, anomaly.LabelAnomaly)())

	if got := c.Records(); got[0].UserLabel != anomaly.LabelNone {
		t.Errorf("a failed submission must not relabel, got %q", got[0].UserLabel)
	}
}
