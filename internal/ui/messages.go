package ui

import "github.com/abelbrown/skywatch/internal/anomaly"

// Messages for Bubble Tea

// ExternalResultsMsg hands the console a record collection produced by an
// external collaborator (for example an AI-driven search). Send it with
// program.Send; the console switches to external mode and mirrors the
// collection without fetching anything itself.
type ExternalResultsMsg struct {
	Records []anomaly.Record
}
