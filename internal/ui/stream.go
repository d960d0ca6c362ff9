package ui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/abelbrown/skywatch/internal/anomaly"
)

// RenderRecords renders the record list with the cursor row highlighted,
// scrolled so the cursor stays visible in the given height.
func RenderRecords(records []anomaly.Record, cursor, width, height int) string {
	if len(records) == 0 {
		return HelpStyle.Render("No anomalies.")
	}
	if height < 1 {
		height = 1
	}

	// Scroll window around the cursor
	top := 0
	if cursor >= height {
		top = cursor - height + 1
	}
	bottom := top + height
	if bottom > len(records) {
		bottom = len(records)
	}

	var b strings.Builder
	for i := top; i < bottom; i++ {
		b.WriteString(renderRecordRow(records[i], i == cursor, width))
		b.WriteString("\n")
	}
	return b.String()
}

func renderRecordRow(rec anomaly.Record, selected bool, width int) string {
	when := time.Unix(rec.Timestamp, 0).Format("Jan 02 15:04:05")

	callsign := rec.Callsign
	if callsign == "" {
		callsign = "-"
	}

	score := rec.Confidence()
	layers := rec.Report.TriggerLayers()
	version := anomaly.ClassifyVersion(rec.Timestamp)

	label := " "
	switch rec.UserLabel {
	case anomaly.LabelAnomaly:
		label = "!"
	case anomaly.LabelNormal:
		label = "·"
	}

	line := fmt.Sprintf("%s  %-10s %-8s %3d  %-24s %-12s %s",
		when, truncate(rec.FlightID, 10), truncate(callsign, 8), score,
		truncate(strings.Join(layers, ","), 24), version, label)

	if selected {
		return SelectedRow.Width(width).Render(line)
	}
	if rec.UserLabel == anomaly.LabelNormal {
		return NormalLabelRow.Width(width).Render(line)
	}
	return NormalRow.Width(width).Render(line)
}

// RenderDetail renders the detail pane for a selected record.
func RenderDetail(rec anomaly.Record, width int) string {
	var b strings.Builder

	title := fmt.Sprintf("%s  %s", rec.FlightID, rec.Callsign)
	b.WriteString(DetailTitle.Width(width).Render(title))
	b.WriteString("\n")

	when := time.Unix(rec.Timestamp, 0).Format("2006-01-02 15:04:05 MST")
	score := rec.Confidence()
	lines := []string{
		"time:       " + when,
		"confidence: " + scoreStyle(score).Render(strconv.Itoa(score)),
		"version:    " + VersionBadge.Render(anomaly.ClassifyVersion(rec.Timestamp)),
	}
	if layers := rec.Report.TriggerLayers(); len(layers) > 0 {
		badges := make([]string, len(layers))
		for i, l := range layers {
			badges[i] = LayerBadge.Render(l)
		}
		lines = append(lines, "layers:     "+strings.Join(badges, ""))
	}
	if rules := rec.Report.RuleNames(); len(rules) > 0 {
		lines = append(lines, "rules:      "+strings.Join(rules, ", "))
	}
	switch rec.UserLabel {
	case anomaly.LabelAnomaly:
		lines = append(lines, "verdict:    "+DetailLabelOK.Render("confirmed anomaly"))
	case anomaly.LabelNormal:
		lines = append(lines, "verdict:    normal")
	}

	b.WriteString(DetailBody.Width(width).Render(strings.Join(lines, "\n")))
	b.WriteString("\n")
	return b.String()
}

// scoreStyle picks the confidence color band for a score.
func scoreStyle(score int) lipgloss.Style {
	switch {
	case score >= 70:
		return ScoreHigh
	case score >= 40:
		return ScoreMid
	default:
		return ScoreLow
	}
}

// truncate shortens a string to max runes.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 1 {
		return string(runes[:max])
	}
	return string(runes[:max-1]) + "…"
}
