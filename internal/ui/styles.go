package ui

import "github.com/charmbracelet/lipgloss"

// Colors used in the application.
var (
	colorPrimary   = lipgloss.Color("62")  // Purple
	colorSecondary = lipgloss.Color("241") // Gray
	colorMuted     = lipgloss.Color("240") // Darker gray
	colorHighlight = lipgloss.Color("212") // Pink
	colorAlert     = lipgloss.Color("196") // Red
	colorOK        = lipgloss.Color("78")  // Green
	colorWarn      = lipgloss.Color("214") // Amber
)

// HeaderStyle for the top mode/date bar.
var HeaderStyle = lipgloss.NewStyle().
	Foreground(lipgloss.Color("255")).
	Background(lipgloss.Color("236")).
	Padding(0, 1)

// ModeActive style for the active mode tab.
var ModeActive = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("255")).
	Background(colorPrimary).
	Padding(0, 1)

// ModeInactive style for inactive mode tabs.
var ModeInactive = lipgloss.NewStyle().
	Foreground(colorSecondary).
	Padding(0, 1)

// SelectedRow style for the currently highlighted record.
var SelectedRow = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("255")).
	Background(colorPrimary).
	Padding(0, 1)

// NormalRow style for unselected records.
var NormalRow = lipgloss.NewStyle().
	Foreground(lipgloss.Color("255")).
	Padding(0, 1)

// NormalLabelRow style for records the operator confirmed as normal.
var NormalLabelRow = lipgloss.NewStyle().
	Foreground(colorSecondary).
	Padding(0, 1)

// ScoreHigh style for confidence scores at or above 70.
var ScoreHigh = lipgloss.NewStyle().
	Foreground(colorAlert).
	Bold(true)

// ScoreMid style for confidence scores between 40 and 69.
var ScoreMid = lipgloss.NewStyle().
	Foreground(colorWarn)

// ScoreLow style for confidence scores below 40.
var ScoreLow = lipgloss.NewStyle().
	Foreground(colorSecondary)

// LayerBadge style for trigger-layer names.
var LayerBadge = lipgloss.NewStyle().
	Foreground(colorPrimary).
	Background(lipgloss.Color("236")).
	Padding(0, 1).
	MarginRight(1)

// VersionBadge style for the record's version bucket.
var VersionBadge = lipgloss.NewStyle().
	Foreground(colorMuted)

// StatusBar style for the bottom status bar.
var StatusBar = lipgloss.NewStyle().
	Foreground(lipgloss.Color("255")).
	Background(lipgloss.Color("236")).
	Padding(0, 1)

// ErrorStyle for displaying fetch errors.
var ErrorStyle = lipgloss.NewStyle().
	Foreground(colorAlert).
	Bold(true).
	Padding(0, 1)

// FilterBar style for the query input bar.
var FilterBar = lipgloss.NewStyle().
	Foreground(lipgloss.Color("255")).
	Background(lipgloss.Color("240")).
	Padding(0, 1)

// DetailTitle style for the detail pane heading.
var DetailTitle = lipgloss.NewStyle().
	Bold(true).
	Foreground(colorHighlight).
	Padding(0, 1)

// DetailBody style for detail pane content.
var DetailBody = lipgloss.NewStyle().
	Foreground(lipgloss.Color("255")).
	Padding(0, 2)

// DetailLabelOK style for a confirmed-anomaly verdict.
var DetailLabelOK = lipgloss.NewStyle().
	Foreground(colorOK).
	Bold(true)

// HelpStyle for help text.
var HelpStyle = lipgloss.NewStyle().
	Foreground(colorMuted).
	Padding(1, 2)
