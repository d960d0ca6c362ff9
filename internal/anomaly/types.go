// Package anomaly defines the detection record type shared across skywatch
// and the pure functions that merge, classify, and filter collections of
// records for display.
package anomaly

// Label is an operator-assigned tri-state verdict on a record. It is only
// meaningful in feedback mode; records fetched from other sources carry an
// empty label.
type Label string

const (
	LabelNone    Label = ""
	LabelAnomaly Label = "anomaly"
	LabelNormal  Label = "normal"
)

// Record is one detection event produced by the analysis backend.
//
// Records are immutable once merged into a working set: re-fetches and label
// updates replace a record wholesale, never patch it in place.
type Record struct {
	FlightID  string `json:"flight_id"`
	Timestamp int64  `json:"timestamp"` // event time, epoch seconds
	Callsign  string `json:"callsign,omitempty"`
	UserLabel Label  `json:"user_label,omitempty"`
	Report    Report `json:"full_report,omitempty"`
}

// Key identifies a record for merge deduplication. FlightID alone is not
// unique over time: the same flight may legitimately reappear at a
// different timestamp, e.g. across days.
type Key struct {
	FlightID  string
	Timestamp int64
}

// Key returns the merge deduplication key for the record.
func (r Record) Key() Key {
	return Key{FlightID: r.FlightID, Timestamp: r.Timestamp}
}

// Report is the backend's full analysis payload. Skywatch treats it as
// opaque apart from the handful of fields read through the accessors below;
// every accessor tolerates missing or mis-typed fields and returns a safe
// zero value, isolating the console from backend schema drift.
type Report map[string]any

// Fallback confidence values for records whose report carries no summary
// score, derived from the backend's boolean anomaly flag.
const (
	fallbackScoreFlagged   = 75
	fallbackScoreUnflagged = 25
)

func (r Report) summary() map[string]any {
	if r == nil {
		return nil
	}
	m, _ := r["summary"].(map[string]any)
	return m
}

// Score returns the summary confidence score (0-100) and whether the report
// actually carried one.
func (r Report) Score() (int, bool) {
	s := r.summary()
	if s == nil {
		return 0, false
	}
	switch v := s["score"].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	}
	return 0, false
}

// AnomalyFlag returns the backend's boolean anomaly verdict, false if absent.
func (r Report) AnomalyFlag() bool {
	s := r.summary()
	if s == nil {
		return false
	}
	flag, _ := s["is_anomaly"].(bool)
	return flag
}

// TriggerLayers returns the names of the detection layers that flagged this
// record. Accepts both plain strings and {"name": ...} objects since the
// backend has shipped both shapes.
func (r Report) TriggerLayers() []string {
	return r.nameList("trigger_layers", "name")
}

// RuleNames returns the matched rule names from the report's rule hits.
func (r Report) RuleNames() []string {
	return r.nameList("rule_hits", "name")
}

// nameList reads a field that is a JSON array of either strings or objects
// keyed by nameKey, dropping anything it cannot interpret.
func (r Report) nameList(field, nameKey string) []string {
	if r == nil {
		return nil
	}
	raw, _ := r[field].([]any)
	if len(raw) == 0 {
		return nil
	}
	names := make([]string, 0, len(raw))
	for _, entry := range raw {
		switch v := entry.(type) {
		case string:
			if v != "" {
				names = append(names, v)
			}
		case map[string]any:
			if name, _ := v[nameKey].(string); name != "" {
				names = append(names, name)
			}
		}
	}
	return names
}

// Confidence returns the record's display confidence (0-100). Records with a
// summary score use it directly; otherwise the anomaly flag picks a coarse
// fallback so flagged records survive any reasonable threshold and unflagged
// ones don't.
func (r Record) Confidence() int {
	if score, ok := r.Report.Score(); ok {
		return score
	}
	if r.Report.AnomalyFlag() {
		return fallbackScoreFlagged
	}
	return fallbackScoreUnflagged
}
