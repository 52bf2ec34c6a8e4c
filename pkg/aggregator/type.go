package aggregator

import "time"

// RunSummary reports what one AggregateAndCleanup pass did.
type RunSummary struct {
	HourStart  time.Time
	Devices    []string
	Aggregated int
	Deleted    int64
	CleanedUp  bool
}
