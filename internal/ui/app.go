// Package ui is the skywatch terminal interface: a Bubble Tea model that
// drives the feed controller and renders its working set through the
// display filter pipeline.
package ui

import (
	"fmt"
	"sort"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/abelbrown/skywatch/internal/anomaly"
	"github.com/abelbrown/skywatch/internal/feed"
)

// AppConfig wires the App's collaborators.
type AppConfig struct {
	// Controller owns the anomaly working set. Required.
	Controller *feed.Controller

	// OnSelect is invoked when the operator picks a record for detail
	// view. Optional.
	OnSelect func(rec anomaly.Record)

	// StartMode is the mode activated on launch.
	StartMode feed.Mode

	// MinScore seeds the initial confidence threshold.
	MinScore int

	// ShowNormal seeds whether feedback mode starts with confirmed-normal
	// records revealed.
	ShowNormal bool
}

// App is the root Bubble Tea model. It holds no fetch logic of its own -
// every data mutation flows through the controller on this event loop.
type App struct {
	ctrl     *feed.Controller
	onSelect func(rec anomaly.Record)

	criteria anomaly.Criteria
	filtered []anomaly.Record
	hidden   int

	cursor     int
	ruleCursor int
	detail     *anomaly.Record

	query    textinput.Model
	querying bool

	spin spinner.Model

	startMode feed.Mode
	width     int
	height    int
	ready     bool
}

// NewApp creates the root model.
func NewApp(cfg AppConfig) App {
	query := textinput.New()
	query.Placeholder = "flight id, callsign, or layer"
	query.CharLimit = 64

	spin := spinner.New()
	spin.Spinner = spinner.Dot

	return App{
		ctrl:      cfg.Controller,
		onSelect:  cfg.OnSelect,
		criteria:  anomaly.Criteria{MinScore: cfg.MinScore, ShowNormal: cfg.ShowNormal},
		query:     query,
		spin:      spin,
		startMode: cfg.StartMode,
	}
}

// Init activates the start mode.
func (a App) Init() tea.Cmd {
	return tea.Batch(a.ctrl.SetMode(a.startMode), a.spin.Tick)
}

// Update handles messages.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return a.handleKey(msg)

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.ready = true
		return a, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spin, cmd = a.spin.Update(msg)
		return a, cmd

	case ExternalResultsMsg:
		a.ctrl.SetExternal(msg.Records)
		a.afterModeChange()
		return a, nil
	}

	// Everything else belongs to the controller (fetch results, poll
	// ticks, label acks). Re-derive the display set afterwards.
	cmd := a.ctrl.Update(msg)
	a.refresh()
	return a, cmd
}

// refresh recomputes the filtered display set from the controller's working
// set and the current criteria.
func (a *App) refresh() {
	a.criteria.FeedbackMode = a.ctrl.Mode() == feed.ModeFeedback
	a.filtered, a.hidden = anomaly.Filter(a.ctrl.Records(), a.criteria)
	if a.cursor >= len(a.filtered) {
		a.cursor = len(a.filtered) - 1
	}
	if a.cursor < 0 {
		a.cursor = 0
	}
}

// afterModeChange resets view-local state that must not leak across modes.
func (a *App) afterModeChange() {
	a.cursor = 0
	a.ruleCursor = 0
	a.detail = nil
	a.refresh()
}

func (a App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if a.querying {
		return a.handleQueryKey(msg)
	}

	switch msg.String() {
	case "q", "ctrl+c":
		return a, tea.Quit

	case "1":
		cmd := a.ctrl.SetMode(feed.ModeHistorical)
		a.afterModeChange()
		return a, cmd
	case "2":
		cmd := a.ctrl.SetMode(feed.ModeRealtime)
		a.afterModeChange()
		return a, cmd
	case "3":
		cmd := a.ctrl.SetMode(feed.ModeResearch)
		a.afterModeChange()
		return a, cmd
	case "4":
		cmd := a.ctrl.SetMode(feed.ModeRuleDetail)
		a.afterModeChange()
		return a, cmd
	case "5":
		cmd := a.ctrl.SetMode(feed.ModeFeedback)
		a.afterModeChange()
		return a, cmd

	case "[":
		return a.pageDate(-1)
	case "]":
		return a.pageDate(1)
	case "t":
		if a.ctrl.Mode().DateScoped() {
			cmd := a.ctrl.SetDate(time.Now())
			a.afterModeChange()
			return a, cmd
		}
		return a, nil

	case "j", "down":
		a.moveCursor(1)
		return a, nil
	case "k", "up":
		a.moveCursor(-1)
		return a, nil
	case "g", "home":
		a.cursor, a.ruleCursor = 0, 0
		return a, nil
	case "G", "end":
		if a.showingCatalog() {
			a.ruleCursor = len(a.ctrl.Rules()) - 1
		} else if len(a.filtered) > 0 {
			a.cursor = len(a.filtered) - 1
		}
		return a, nil

	case "enter":
		return a.handleEnter()

	case "esc":
		a.detail = nil
		return a, nil

	case "/":
		a.querying = true
		a.query.SetValue(a.criteria.Query)
		a.query.Focus()
		return a, textinput.Blink

	case "+", "=":
		a.criteria.MinScore = clampScore(a.criteria.MinScore + 10)
		a.refresh()
		return a, nil
	case "-":
		a.criteria.MinScore = clampScore(a.criteria.MinScore - 10)
		a.refresh()
		return a, nil

	case "L":
		a.cycleLayer()
		a.refresh()
		return a, nil

	case "v":
		a.cycleVersion()
		a.refresh()
		return a, nil

	case "n":
		if a.ctrl.Mode() == feed.ModeFeedback {
			a.criteria.ShowNormal = !a.criteria.ShowNormal
			a.refresh()
		}
		return a, nil

	case "a":
		return a.labelSelected(anomaly.LabelAnomaly)
	case "x":
		return a.labelSelected(anomaly.LabelNormal)

	case "r":
		cmd := a.ctrl.Refresh()
		a.refresh()
		return a, cmd
	}

	return a, nil
}

func (a App) handleQueryKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		a.criteria.Query = a.query.Value()
		a.querying = false
		a.query.Blur()
		a.refresh()
		return a, nil
	case "esc":
		a.querying = false
		a.query.Blur()
		return a, nil
	}
	var cmd tea.Cmd
	a.query, cmd = a.query.Update(msg)
	return a, cmd
}

func (a App) handleEnter() (tea.Model, tea.Cmd) {
	if a.showingCatalog() {
		rules := a.ctrl.Rules()
		if a.ruleCursor < len(rules) {
			cmd := a.ctrl.SelectRule(rules[a.ruleCursor].ID)
			a.cursor = 0
			a.refresh()
			return a, cmd
		}
		return a, nil
	}

	if a.cursor < len(a.filtered) {
		rec := a.filtered[a.cursor]
		a.detail = &rec
		if a.onSelect != nil {
			a.onSelect(rec)
		}
	}
	return a, nil
}

func (a App) pageDate(days int) (tea.Model, tea.Cmd) {
	if !a.ctrl.Mode().DateScoped() {
		return a, nil
	}
	cmd := a.ctrl.SetDate(a.ctrl.Date().AddDate(0, 0, days))
	a.afterModeChange()
	return a, cmd
}

func (a App) labelSelected(label anomaly.Label) (tea.Model, tea.Cmd) {
	if a.ctrl.Mode() != feed.ModeFeedback || a.cursor >= len(a.filtered) {
		return a, nil
	}
	rec := a.filtered[a.cursor]
	return a, a.ctrl.ApplyLabel(rec.FlightID, rec.Timestamp, label)
}

// showingCatalog reports whether the rule catalog is the active list.
func (a App) showingCatalog() bool {
	return a.ctrl.Mode() == feed.ModeRuleDetail && a.ctrl.RuleID() == ""
}

func (a *App) moveCursor(delta int) {
	if a.showingCatalog() {
		a.ruleCursor += delta
		if a.ruleCursor < 0 {
			a.ruleCursor = 0
		}
		if n := len(a.ctrl.Rules()); a.ruleCursor >= n && n > 0 {
			a.ruleCursor = n - 1
		}
		return
	}
	a.cursor += delta
	if a.cursor < 0 {
		a.cursor = 0
	}
	if a.cursor >= len(a.filtered) && len(a.filtered) > 0 {
		a.cursor = len(a.filtered) - 1
	}
}

// cycleLayer steps the layer criterion through: any ► each distinct layer in
// the working set ► any-combination ► back to any.
func (a *App) cycleLayer() {
	layers := a.distinctLayers()
	order := append([]string{""}, layers...)
	order = append(order, anomaly.LayerAnyCombination)

	for i, l := range order {
		if l == a.criteria.Layer {
			a.criteria.Layer = order[(i+1)%len(order)]
			return
		}
	}
	a.criteria.Layer = ""
}

func (a *App) cycleVersion() {
	order := append([]string{""}, anomaly.Versions()...)
	for i, v := range order {
		if v == a.criteria.Version {
			a.criteria.Version = order[(i+1)%len(order)]
			return
		}
	}
	a.criteria.Version = ""
}

func (a *App) distinctLayers() []string {
	seen := make(map[string]bool)
	for _, rec := range a.ctrl.Records() {
		for _, l := range rec.Report.TriggerLayers() {
			seen[l] = true
		}
	}
	layers := make([]string, 0, len(seen))
	for l := range seen {
		layers = append(layers, l)
	}
	sort.Strings(layers)
	return layers
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// View renders the UI.
func (a App) View() string {
	if !a.ready {
		return "Loading..."
	}

	header := a.renderHeader()
	status := a.renderStatus()

	contentHeight := a.height - 2 // header + status
	if a.querying {
		contentHeight--
	}
	if a.ctrl.Err() != nil {
		contentHeight--
	}

	var content string
	if a.showingCatalog() {
		content = RenderRules(a.ctrl.Rules(), a.ruleCursor, a.width, contentHeight)
	} else if a.detail != nil {
		detailHeight := 8
		content = RenderRecords(a.filtered, a.cursor, a.width, contentHeight-detailHeight) +
			RenderDetail(*a.detail, a.width)
	} else {
		content = RenderRecords(a.filtered, a.cursor, a.width, contentHeight)
	}

	out := header + "\n" + content

	if err := a.ctrl.Err(); err != nil {
		out += ErrorStyle.Width(a.width).Render("fetch failed: "+err.Error()) + "\n"
	}
	if a.querying {
		out += FilterBar.Width(a.width).Render("/"+a.query.View()) + "\n"
	}
	return out + status
}

func (a App) renderHeader() string {
	modes := []feed.Mode{
		feed.ModeHistorical, feed.ModeRealtime, feed.ModeResearch,
		feed.ModeRuleDetail, feed.ModeFeedback,
	}

	header := ""
	for i, m := range modes {
		tab := fmt.Sprintf("%d:%s", i+1, m.String())
		if m == a.ctrl.Mode() {
			header += ModeActive.Render(tab)
		} else {
			header += ModeInactive.Render(tab)
		}
	}
	if a.ctrl.Mode() == feed.ModeExternal {
		header += ModeActive.Render("external")
	}

	switch {
	case a.ctrl.Mode().DateScoped():
		header += HeaderStyle.Render("  " + a.ctrl.Date().Format("2006-01-02"))
	case a.ctrl.Mode() == feed.ModeRuleDetail && a.ctrl.RuleID() != "":
		header += HeaderStyle.Render("  rule " + a.ctrl.RuleID())
	}

	if a.ctrl.Searching() {
		header += " " + a.spin.View()
	}
	return header
}

func (a App) renderStatus() string {
	total := len(a.ctrl.Records())
	shown := len(a.filtered)

	status := fmt.Sprintf("%d shown / %d total", shown, total)
	if a.hidden > 0 {
		status += fmt.Sprintf("  ·  %d hidden as normal [n] reveal", a.hidden)
	}
	if a.criteria.MinScore > 0 {
		status += fmt.Sprintf("  ·  score≥%d", a.criteria.MinScore)
	}
	if a.criteria.Layer != "" {
		status += "  ·  layer:" + a.criteria.Layer
	}
	if a.criteria.Version != "" {
		status += "  ·  " + a.criteria.Version
	}
	if a.criteria.Query != "" {
		status += "  ·  /" + a.criteria.Query
	}
	if a.ctrl.Mode() == feed.ModeRealtime {
		status += fmt.Sprintf("  ·  watermark %s",
			time.Unix(a.ctrl.Watermark(), 0).Format("15:04:05"))
	}

	return StatusBar.Width(a.width).Render(status)
}

// Filtered returns the current display set (for testing).
func (a App) Filtered() []anomaly.Record {
	return a.filtered
}

// HiddenCount returns how many records the feedback-label filter is hiding
// (for the unhide hint and for testing).
func (a App) HiddenCount() int {
	return a.hidden
}
