package anomaly

import "testing"

func TestClassifyVersion(t *testing.T) {
	cases := []struct {
		timestamp int64
		want      string
	}{
		{0, "v1"},
		{1712534399, "v1"},         // one second before the v2 cutover
		{1712534400, "v2"},         // exactly at the boundary goes newer
		{1712534401, "v2"},
		{1731887999, "v2"},
		{1731888000, "v3"},
		{1740959999, "v3"},
		{1740960000, "v4"},
		{1752451199, "v4"},
		{1752451200, "experimental"},
		{1893456000, "experimental"},
	}
	for _, c := range cases {
		if got := ClassifyVersion(c.timestamp); got != c.want {
			t.Errorf("ClassifyVersion(%d): expected %s, got %s", c.timestamp, c.want, got)
		}
	}
}

func TestVersionsOrder(t *testing.T) {
	want := []string{"v1", "v2", "v3", "v4", "experimental"}
	got := Versions()
	if len(got) != len(want) {
		t.Fatalf("expected %d labels, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}
