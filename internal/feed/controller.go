// Package feed implements the anomaly feed synchronization and alerting
// controller: the state machine that decides which data source is active,
// issues and supersedes fetches as the operator switches context, merges
// realtime poll results into a deduplicated working set, and drives the
// rate-limited audible alert.
//
// All state mutation happens on the Bubble Tea event loop. Fetches run as
// tea.Cmd closures; their results re-enter the loop as messages carrying the
// search token they were issued under, and a token that has been superseded
// is dropped before it can touch the working set.
package feed

import (
	"context"
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/abelbrown/skywatch/internal/anomaly"
	"github.com/abelbrown/skywatch/internal/api"
	"github.com/abelbrown/skywatch/internal/logging"
)

// DefaultPollInterval is the realtime poll cadence.
const DefaultPollInterval = 5 * time.Second

// realtimeBackfill is the trailing window fetched when entering realtime
// mode, before the poller takes over.
const realtimeBackfill = 3600 // seconds

// Mode is the data source the controller is synchronized against. Exactly
// one mode is active at a time; switching is a destructive reset of the
// working set.
type Mode int

const (
	ModeHistorical Mode = iota
	ModeRealtime
	ModeResearch
	ModeRuleDetail
	ModeFeedback
	ModeExternal
)

// String returns the mode's display name.
func (m Mode) String() string {
	switch m {
	case ModeHistorical:
		return "historical"
	case ModeRealtime:
		return "realtime"
	case ModeResearch:
		return "research"
	case ModeRuleDetail:
		return "rule-detail"
	case ModeFeedback:
		return "feedback"
	case ModeExternal:
		return "external"
	}
	return "unknown"
}

// DateScoped reports whether the mode fetches a selected calendar day.
func (m Mode) DateScoped() bool {
	return m == ModeHistorical || m == ModeResearch
}

// Client is the slice of the backend the controller drives. Satisfied by
// *api.Client; an interface so tests can inject a fake.
type Client interface {
	AnomaliesRange(ctx context.Context, start, end int64) ([]anomaly.Record, error)
	ResearchRange(ctx context.Context, start, end int64) ([]anomaly.Record, error)
	RuleAnomalies(ctx context.Context, ruleID string) ([]anomaly.Record, error)
	Rules(ctx context.Context) ([]api.Rule, error)
	FeedbackRecords(ctx context.Context) ([]anomaly.Record, error)
	FeedbackLegacy(ctx context.Context) ([]anomaly.Record, error)
	SubmitLabel(ctx context.Context, flightID string, timestamp int64, label anomaly.Label) error
}

// Notifier receives the "genuinely new records arrived" signal. Satisfied by
// *alert.Throttle.
type Notifier interface {
	NewRecords()
}

// Archiver receives write-behind copies of merged records and labels.
// Satisfied by *store.Archive. Optional: nil disables archiving.
type Archiver interface {
	SaveRecords(records []anomaly.Record) (int, error)
	SaveLabel(flightID string, timestamp int64, label anomaly.Label) error
}

// fetchKind distinguishes the feedback primary fetch, whose empty result
// triggers the legacy fallback, from every other fetch.
type fetchKind int

const (
	fetchPrimary fetchKind = iota
	fetchRealtimePrimary
	fetchFeedbackPrimary
	fetchFeedbackLegacy
)

// FetchedMsg carries a resolved record fetch back into the event loop.
type FetchedMsg struct {
	Token   SearchToken
	Records []anomaly.Record
	Err     error

	kind fetchKind
}

// RulesLoadedMsg carries the resolved rule catalog fetch.
type RulesLoadedMsg struct {
	Token SearchToken
	Rules []api.Rule
	Err   error
}

// LabelSubmittedMsg reports the outcome of an operator label submission.
type LabelSubmittedMsg struct {
	FlightID  string
	Timestamp int64
	Label     anomaly.Label
	Err       error
}

// pollTickMsg fires one realtime poll cycle. The generation lets a timer
// armed under a previous mode die silently.
type pollTickMsg struct {
	gen int
}

// pollFetchedMsg carries a resolved poll window fetch.
type pollFetchedMsg struct {
	gen       int
	windowEnd int64
	records   []anomaly.Record
	err       error
}

// Controller owns the working set of anomaly records for the active mode.
type Controller struct {
	client  Client
	alerts  Notifier
	archive Archiver

	now       func() time.Time // injectable for tests
	pollEvery time.Duration

	search searchState

	mode   Mode
	date   time.Time
	ruleID string
	rules  []api.Rule

	records   []anomaly.Record
	watermark int64 // exclusive lower bound of the next poll window

	pollGen    int
	pollCtx    context.Context
	pollCancel context.CancelFunc

	lastErr error
}

// NewController creates a Controller. alerts and archive may be nil to
// disable alerting or archiving.
func NewController(client Client, alerts Notifier, archive Archiver) *Controller {
	return &Controller{
		client:    client,
		alerts:    alerts,
		archive:   archive,
		now:       time.Now,
		pollEvery: DefaultPollInterval,
		mode:      ModeHistorical,
	}
}

// SetPollInterval overrides the realtime poll cadence. Takes effect on the
// next realtime activation.
func (c *Controller) SetPollInterval(d time.Duration) {
	if d > 0 {
		c.pollEvery = d
	}
}

// Records returns a copy of the current working set, newest first.
func (c *Controller) Records() []anomaly.Record {
	out := make([]anomaly.Record, len(c.records))
	copy(out, c.records)
	return out
}

// Mode returns the active mode.
func (c *Controller) Mode() Mode { return c.mode }

// Date returns the selected day for date-scoped modes.
func (c *Controller) Date() time.Time {
	if c.date.IsZero() {
		return c.now()
	}
	return c.date
}

// RuleID returns the selected rule in rule-detail mode, "" if none.
func (c *Controller) RuleID() string { return c.ruleID }

// Rules returns the rule catalog, if loaded.
func (c *Controller) Rules() []api.Rule { return c.rules }

// Searching reports whether a fetch is in flight.
func (c *Controller) Searching() bool { return c.search.Searching() }

// Err returns the last user-visible fetch failure, nil after a success or
// reset. Cancellations never surface here.
func (c *Controller) Err() error { return c.lastErr }

// Watermark returns the realtime poll watermark (epoch seconds), 0 outside
// realtime mode.
func (c *Controller) Watermark() int64 { return c.watermark }

// SetMode switches the active data source. Any change is a destructive
// reset: the poller stops, the in-flight search is cancelled, and the
// working set is cleared before the new mode's first fetch is dispatched -
// so no stale callback can ever observe or mutate the old state.
func (c *Controller) SetMode(m Mode) tea.Cmd {
	c.mode = m
	return c.restart()
}

// SetDate changes the selected day. In date-scoped modes this re-runs the
// full reset-and-fetch transition; elsewhere it only records the date.
func (c *Controller) SetDate(d time.Time) tea.Cmd {
	c.date = d
	if !c.mode.DateScoped() {
		return nil
	}
	return c.restart()
}

// SelectRule picks a rule in rule-detail mode. Changing rules resets at the
// rule-selection granularity: the catalog is kept, only the record fetch is
// restarted.
func (c *Controller) SelectRule(id string) tea.Cmd {
	if c.mode != ModeRuleDetail || id == "" {
		return nil
	}
	c.ruleID = id
	c.search.Cancel()
	c.records = nil
	c.lastErr = nil
	return c.fetchCmd(fetchPrimary, func(ctx context.Context) ([]anomaly.Record, error) {
		return c.client.RuleAnomalies(ctx, id)
	})
}

// SetExternal mirrors a collection supplied by an external caller (for
// example AI-driven search results). The controller performs no fetch of
// its own in this mode.
func (c *Controller) SetExternal(records []anomaly.Record) {
	c.mode = ModeExternal
	c.stopPoller()
	c.search.Cancel()
	c.lastErr = nil
	c.watermark = 0
	c.records = make([]anomaly.Record, len(records))
	copy(c.records, records)
	anomaly.SortByTimeDesc(c.records)
}

// Refresh re-runs the active mode's fetch strategy at its current
// granularity. In external mode there is nothing to refetch; the collection
// is owned by its supplier and refresh leaves it untouched.
func (c *Controller) Refresh() tea.Cmd {
	if c.mode == ModeExternal {
		return nil
	}
	if c.mode == ModeRuleDetail && c.ruleID != "" {
		return c.SelectRule(c.ruleID)
	}
	return c.restart()
}

// Update routes controller messages. Returns a follow-up command or nil.
func (c *Controller) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case FetchedMsg:
		return c.handleFetched(msg)
	case RulesLoadedMsg:
		return c.handleRules(msg)
	case LabelSubmittedMsg:
		return c.handleLabel(msg)
	case pollTickMsg:
		return c.handlePollTick(msg)
	case pollFetchedMsg:
		return c.handlePollFetched(msg)
	}
	return nil
}

// restart applies the mode-switch transition: stop the poller, cancel the
// live search, clear the working set, then dispatch the fetch strategy
// bound to the active mode.
func (c *Controller) restart() tea.Cmd {
	c.stopPoller()
	c.search.Cancel()
	c.records = nil
	c.lastErr = nil
	c.watermark = 0

	switch c.mode {
	case ModeHistorical:
		start, end := dayRange(c.Date())
		return c.fetchCmd(fetchPrimary, func(ctx context.Context) ([]anomaly.Record, error) {
			return c.client.AnomaliesRange(ctx, start, end)
		})

	case ModeResearch:
		start, end := dayRange(c.Date())
		return c.fetchCmd(fetchPrimary, func(ctx context.Context) ([]anomaly.Record, error) {
			return c.client.ResearchRange(ctx, start, end)
		})

	case ModeRuleDetail:
		// Show the catalog until a rule is chosen.
		c.ruleID = ""
		token, ctx := c.search.Start()
		return func() tea.Msg {
			rules, err := c.client.Rules(ctx)
			return RulesLoadedMsg{Token: token, Rules: rules, Err: err}
		}

	case ModeFeedback:
		return c.fetchCmd(fetchFeedbackPrimary, func(ctx context.Context) ([]anomaly.Record, error) {
			return c.client.FeedbackRecords(ctx)
		})

	case ModeRealtime:
		now := c.now().Unix()
		c.watermark = now
		// The poller arms only after this fetch resolves. Arming it here
		// would let a poll window close before a slow backfill, whose
		// result replaces the working set and would drop the poll's merge.
		return c.fetchCmd(fetchRealtimePrimary, func(ctx context.Context) ([]anomaly.Record, error) {
			return c.client.AnomaliesRange(ctx, now-realtimeBackfill, now)
		})

	case ModeExternal:
		// The working set mirrors externally supplied results only.
		return nil
	}
	return nil
}

// fetchCmd starts a new search and returns the command performing it. The
// result message carries the token so arrival-time staleness can be checked.
func (c *Controller) fetchCmd(kind fetchKind, fn func(ctx context.Context) ([]anomaly.Record, error)) tea.Cmd {
	token, ctx := c.search.Start()
	return func() tea.Msg {
		records, err := fn(ctx)
		return FetchedMsg{Token: token, Records: records, Err: err, kind: kind}
	}
}

func (c *Controller) handleFetched(msg FetchedMsg) tea.Cmd {
	// Staleness is a first-class branch, not exception filtering: a
	// superseded search never touches the working set, however late it
	// resolves.
	if c.search.IsStale(msg.Token) {
		logging.Debug("feed: dropped stale fetch result", "token", uint64(msg.Token))
		return nil
	}

	if msg.Err != nil {
		c.search.Finish(msg.Token)
		if errors.Is(msg.Err, context.Canceled) {
			return nil
		}
		c.records = nil
		c.lastErr = msg.Err
		logging.Error("feed: fetch failed", "mode", c.mode.String(), "error", msg.Err)
		if msg.kind == fetchRealtimePrimary && c.mode == ModeRealtime {
			// A failed backfill still starts polling; the first window
			// reaches back to mode entry.
			return c.startPoller()
		}
		return nil
	}

	// Curated feedback came back empty: fall through to the legacy source
	// under the same token. The two sources are never merged.
	if msg.kind == fetchFeedbackPrimary && len(msg.Records) == 0 {
		if ctx, ok := c.search.Resume(msg.Token); ok {
			token := msg.Token
			return func() tea.Msg {
				records, err := c.client.FeedbackLegacy(ctx)
				return FetchedMsg{Token: token, Records: records, Err: err, kind: fetchFeedbackLegacy}
			}
		}
		return nil
	}

	c.search.Finish(msg.Token)
	c.lastErr = nil
	c.records = make([]anomaly.Record, len(msg.Records))
	copy(c.records, msg.Records)
	anomaly.SortByTimeDesc(c.records)
	if msg.kind == fetchRealtimePrimary && c.mode == ModeRealtime {
		return c.startPoller()
	}
	return nil
}

func (c *Controller) handleRules(msg RulesLoadedMsg) tea.Cmd {
	if c.search.IsStale(msg.Token) {
		return nil
	}
	c.search.Finish(msg.Token)
	if msg.Err != nil {
		if errors.Is(msg.Err, context.Canceled) {
			return nil
		}
		c.lastErr = msg.Err
		logging.Error("feed: rule catalog fetch failed", "error", msg.Err)
		return nil
	}
	c.lastErr = nil
	c.rules = msg.Rules
	return nil
}

// ApplyLabel submits an operator verdict for a record and, on success,
// replaces the record's working-set entry with a relabeled copy.
func (c *Controller) ApplyLabel(flightID string, timestamp int64, label anomaly.Label) tea.Cmd {
	return func() tea.Msg {
		err := c.client.SubmitLabel(context.Background(), flightID, timestamp, label)
		return LabelSubmittedMsg{FlightID: flightID, Timestamp: timestamp, Label: label, Err: err}
	}
}

func (c *Controller) handleLabel(msg LabelSubmittedMsg) tea.Cmd {
	if msg.Err != nil {
		logging.Error("feed: label submission failed",
			"flight", msg.FlightID, "label", string(msg.Label), "error", msg.Err)
		return nil
	}
	for i, rec := range c.records {
		if rec.FlightID == msg.FlightID && rec.Timestamp == msg.Timestamp {
			rec.UserLabel = msg.Label
			c.records[i] = rec
		}
	}
	if c.archive != nil {
		if err := c.archive.SaveLabel(msg.FlightID, msg.Timestamp, msg.Label); err != nil {
			logging.Warn("feed: archive label write failed", "error", err)
		}
	}
	return nil
}

// startPoller arms the realtime timer under a fresh generation. Poll
// fetches run under the poller's context so a mode switch interrupts their
// I/O as well as making their results inert.
func (c *Controller) startPoller() tea.Cmd {
	c.pollGen++
	c.pollCtx, c.pollCancel = context.WithCancel(context.Background())
	return c.pollTick()
}

// stopPoller invalidates any armed timer and in-flight poll fetch.
func (c *Controller) stopPoller() {
	c.pollGen++
	if c.pollCancel != nil {
		c.pollCancel()
		c.pollCancel = nil
		c.pollCtx = nil
	}
}

func (c *Controller) pollTick() tea.Cmd {
	gen := c.pollGen
	return tea.Tick(c.pollEvery, func(time.Time) tea.Msg {
		return pollTickMsg{gen: gen}
	})
}

func (c *Controller) handlePollTick(msg pollTickMsg) tea.Cmd {
	if msg.gen != c.pollGen || c.mode != ModeRealtime || c.pollCtx == nil {
		// Timer armed under a previous mode, or the poller is not armed
		// yet; let it die.
		return nil
	}

	start, end := c.watermark, c.now().Unix()
	if end <= start {
		// Clock did not advance; a zero or negative window is degenerate.
		return c.pollTick()
	}

	gen := c.pollGen
	ctx := c.pollCtx
	return func() tea.Msg {
		records, err := c.client.AnomaliesRange(ctx, start, end)
		return pollFetchedMsg{gen: gen, windowEnd: end, records: records, err: err}
	}
}

func (c *Controller) handlePollFetched(msg pollFetchedMsg) tea.Cmd {
	if msg.gen != c.pollGen || c.mode != ModeRealtime {
		return nil
	}

	// The watermark advances unconditionally, even on failure. A failed
	// window is logged and skipped, not retried mid-tick.
	c.watermark = msg.windowEnd

	if msg.err != nil {
		if !errors.Is(msg.err, context.Canceled) {
			logging.Warn("feed: poll fetch failed", "error", msg.err)
		}
		return c.pollTick()
	}

	merged, hadNew := anomaly.Merge(c.records, msg.records)
	anomaly.SortByTimeDesc(merged)
	c.records = merged

	if hadNew {
		if c.alerts != nil {
			c.alerts.NewRecords()
		}
		if c.archive != nil {
			if _, err := c.archive.SaveRecords(msg.records); err != nil {
				logging.Warn("feed: archive write failed", "error", err)
			}
		}
	}

	return c.pollTick()
}

// dayRange returns [00:00:00, 23:59:59] of the given day in local time as
// epoch seconds.
func dayRange(day time.Time) (int64, int64) {
	y, m, d := day.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, day.Location())
	end := time.Date(y, m, d, 23, 59, 59, 0, day.Location())
	return start.Unix(), end.Unix()
}
