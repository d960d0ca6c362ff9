package anomaly

import "strings"

// LayerAnyCombination selects records flagged by a combination of layers
// instead of one specific layer. With no explicit layers chosen it means "at
// least two distinct layers"; with explicit layers it means "all of them".
const LayerAnyCombination = "any-combination"

// Criteria describes the operator's current display filter. The zero value
// filters nothing out.
type Criteria struct {
	Query       string   // case-insensitive substring over id/callsign/layers
	MinScore    int      // minimum confidence, 0-100
	Layer       string   // "" = any, a layer name, or LayerAnyCombination
	ComboLayers []string // required layers when Layer == LayerAnyCombination
	Version     string   // "" = all version buckets

	// Feedback mode only: records labeled confirmed-normal are hidden
	// unless ShowNormal is set.
	FeedbackMode bool
	ShowNormal   bool
}

// Filter derives the display subset of records for the given criteria.
// Returns the filtered records and the count of records hidden solely by the
// feedback-label step, so the UI can offer an unhide action.
//
// Records are first collapsed to one per flight_id (first occurrence wins).
// This is a display policy layered on top of the merge key - the working set
// itself keeps every (flight_id, timestamp) pair.
func Filter(records []Record, c Criteria) ([]Record, int) {
	result := make([]Record, 0, len(records))
	hidden := 0

	seen := make(map[string]bool, len(records))
	query := strings.ToLower(strings.TrimSpace(c.Query))

	for _, rec := range records {
		if seen[rec.FlightID] {
			continue
		}
		seen[rec.FlightID] = true

		if query != "" && !matchesQuery(rec, query) {
			continue
		}
		if rec.Confidence() < c.MinScore {
			continue
		}
		if !matchesLayer(rec, c) {
			continue
		}
		if c.Version != "" && ClassifyVersion(rec.Timestamp) != c.Version {
			continue
		}
		if c.FeedbackMode && !c.ShowNormal && rec.UserLabel == LabelNormal {
			hidden++
			continue
		}

		result = append(result, rec)
	}

	return result, hidden
}

// matchesQuery reports whether the record matches the lowercased query on
// flight id, callsign, or any trigger-layer name.
func matchesQuery(rec Record, query string) bool {
	if strings.Contains(strings.ToLower(rec.FlightID), query) {
		return true
	}
	if strings.Contains(strings.ToLower(rec.Callsign), query) {
		return true
	}
	for _, layer := range rec.Report.TriggerLayers() {
		if strings.Contains(strings.ToLower(layer), query) {
			return true
		}
	}
	return false
}

// matchesLayer applies the trigger-layer criterion. A specific layer requires
// membership. Any-combination requires either at least two distinct layers
// (no explicit choice) or every explicitly chosen layer to be present.
func matchesLayer(rec Record, c Criteria) bool {
	if c.Layer == "" {
		return true
	}

	layers := rec.Report.TriggerLayers()

	if c.Layer != LayerAnyCombination {
		for _, l := range layers {
			if l == c.Layer {
				return true
			}
		}
		return false
	}

	present := make(map[string]bool, len(layers))
	for _, l := range layers {
		present[l] = true
	}

	if len(c.ComboLayers) == 0 {
		return len(present) >= 2
	}
	for _, want := range c.ComboLayers {
		if !present[want] {
			return false
		}
	}
	return true
}
