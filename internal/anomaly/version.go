package anomaly

// Detector version buckets. Each cutover marks the UTC midnight a detector
// generation went live; a record belongs to the newest bucket whose boundary
// it is at or past. Records older than every boundary are v1.
var versionCutovers = []struct {
	At    int64
	Label string
}{
	{1712534400, "v2"},           // 2024-04-08
	{1731888000, "v3"},           // 2024-11-18
	{1740960000, "v4"},           // 2025-03-03
	{1752451200, "experimental"}, // 2025-07-14
}

// oldestVersion is the bucket for records predating the first cutover.
const oldestVersion = "v1"

// Versions lists all bucket labels, oldest first.
func Versions() []string {
	labels := make([]string, 0, len(versionCutovers)+1)
	labels = append(labels, oldestVersion)
	for _, c := range versionCutovers {
		labels = append(labels, c.Label)
	}
	return labels
}

// ClassifyVersion maps an event timestamp to its version bucket. A record
// timestamped exactly at a cutover boundary classifies into the newer bucket.
func ClassifyVersion(timestamp int64) string {
	label := oldestVersion
	for _, c := range versionCutovers {
		if timestamp >= c.At {
			label = c.Label
		}
	}
	return label
}
