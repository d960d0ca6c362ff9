package anomaly

import "testing"

func reportWith(score int, layers ...string) Report {
	raw := make([]any, len(layers))
	for i, l := range layers {
		raw[i] = l
	}
	return Report{
		"summary":        map[string]any{"score": float64(score)},
		"trigger_layers": raw,
	}
}

func TestFilterCollapsesByFlightID(t *testing.T) {
	records := []Record{
		{FlightID: "A", Timestamp: 200, Report: reportWith(90)},
		{FlightID: "A", Timestamp: 100, Report: reportWith(90)},
		{FlightID: "B", Timestamp: 150, Report: reportWith(90)},
	}

	got, _ := Filter(records, Criteria{})

	if len(got) != 2 {
		t.Fatalf("expected 2 records after collapse, got %d", len(got))
	}
	if got[0].FlightID != "A" || got[0].Timestamp != 200 {
		t.Errorf("first occurrence of A must win, got %s@%d", got[0].FlightID, got[0].Timestamp)
	}
}

func TestFilterQuery(t *testing.T) {
	records := []Record{
		{FlightID: "AF123", Callsign: "AFR123", Report: reportWith(90, "kinematic")},
		{FlightID: "BA456", Callsign: "BAW456", Report: reportWith(90, "route")},
	}

	got, _ := Filter(records, Criteria{Query: "afr"})
	if len(got) != 1 || got[0].FlightID != "AF123" {
		t.Errorf("callsign query: expected AF123 only, got %v", got)
	}

	got, _ = Filter(records, Criteria{Query: "ROUTE"})
	if len(got) != 1 || got[0].FlightID != "BA456" {
		t.Errorf("layer query is case-insensitive: expected BA456 only, got %v", got)
	}

	got, _ = Filter(records, Criteria{Query: "zzz"})
	if len(got) != 0 {
		t.Errorf("expected no matches, got %v", got)
	}
}

func TestFilterMinScore(t *testing.T) {
	records := []Record{
		{FlightID: "A", Report: reportWith(90)},
		{FlightID: "B", Report: reportWith(40)},
	}

	got, _ := Filter(records, Criteria{MinScore: 50})
	if len(got) != 1 || got[0].FlightID != "A" {
		t.Errorf("expected only A above threshold, got %v", got)
	}
}

func TestFilterMinScoreFallback(t *testing.T) {
	flagged := Record{FlightID: "A", Report: Report{
		"summary": map[string]any{"is_anomaly": true},
	}}
	unflagged := Record{FlightID: "B", Report: Report{
		"summary": map[string]any{"is_anomaly": false},
	}}

	got, _ := Filter([]Record{flagged, unflagged}, Criteria{MinScore: 50})
	if len(got) != 1 || got[0].FlightID != "A" {
		t.Errorf("flagged record without a score must pass a moderate threshold, got %v", got)
	}

	got, _ = Filter([]Record{flagged}, Criteria{MinScore: 80})
	if len(got) != 0 {
		t.Errorf("fallback score must not clear a high threshold, got %v", got)
	}
}

func TestFilterLayer(t *testing.T) {
	records := []Record{
		{FlightID: "A", Report: reportWith(90, "kinematic")},
		{FlightID: "B", Report: reportWith(90, "route", "kinematic")},
		{FlightID: "C", Report: reportWith(90, "route")},
	}

	got, _ := Filter(records, Criteria{Layer: "kinematic"})
	if len(got) != 2 {
		t.Errorf("layer membership: expected A and B, got %v", got)
	}
}

func TestFilterAnyCombination(t *testing.T) {
	single := Record{FlightID: "A", Report: reportWith(90, "kinematic")}
	multi := Record{FlightID: "B", Report: reportWith(90, "route", "kinematic")}
	records := []Record{single, multi}

	// No explicit layers: at least two distinct layers required.
	got, _ := Filter(records, Criteria{Layer: LayerAnyCombination})
	if len(got) != 1 || got[0].FlightID != "B" {
		t.Errorf("expected only the multi-layer record, got %v", got)
	}

	// Explicit layers: all of them must be present.
	got, _ = Filter(records, Criteria{
		Layer:       LayerAnyCombination,
		ComboLayers: []string{"route", "kinematic"},
	})
	if len(got) != 1 || got[0].FlightID != "B" {
		t.Errorf("expected only B with both layers, got %v", got)
	}

	got, _ = Filter(records, Criteria{
		Layer:       LayerAnyCombination,
		ComboLayers: []string{"route", "weather"},
	})
	if len(got) != 0 {
		t.Errorf("missing required layer must exclude, got %v", got)
	}
}

func TestFilterVersion(t *testing.T) {
	records := []Record{
		{FlightID: "A", Timestamp: 1712534399, Report: reportWith(90)}, // v1
		{FlightID: "B", Timestamp: 1712534400, Report: reportWith(90)}, // v2
	}

	got, _ := Filter(records, Criteria{Version: "v2"})
	if len(got) != 1 || got[0].FlightID != "B" {
		t.Errorf("expected only the v2 record, got %v", got)
	}
}

func TestFilterFeedbackLabels(t *testing.T) {
	records := []Record{
		{FlightID: "A", UserLabel: LabelAnomaly, Report: reportWith(90)},
		{FlightID: "B", UserLabel: LabelNormal, Report: reportWith(90)},
		{FlightID: "C", Report: reportWith(90)},
	}

	got, hidden := Filter(records, Criteria{FeedbackMode: true})
	if len(got) != 2 {
		t.Errorf("confirmed-normal records hidden by default, got %v", got)
	}
	if hidden != 1 {
		t.Errorf("expected hidden count 1, got %d", hidden)
	}

	got, hidden = Filter(records, Criteria{FeedbackMode: true, ShowNormal: true})
	if len(got) != 3 {
		t.Errorf("ShowNormal must reveal all, got %v", got)
	}
	if hidden != 0 {
		t.Errorf("expected hidden count 0, got %d", hidden)
	}

	// Outside feedback mode the label step does not apply.
	got, hidden = Filter(records, Criteria{})
	if len(got) != 3 || hidden != 0 {
		t.Errorf("labels only hide in feedback mode, got %d records, %d hidden", len(got), hidden)
	}
}

func TestFilterHiddenCountsOnlyLabelStep(t *testing.T) {
	records := []Record{
		{FlightID: "A", UserLabel: LabelNormal, Report: reportWith(10)}, // fails score first
		{FlightID: "B", UserLabel: LabelNormal, Report: reportWith(90)},
	}

	_, hidden := Filter(records, Criteria{FeedbackMode: true, MinScore: 50})
	if hidden != 1 {
		t.Errorf("record dropped by the score step must not count as hidden, got %d", hidden)
	}
}
