package analytics

import "time"

// Sourcing status values for LanguageStat. A language is Sourceable
// when at least one historical request for it found a linguist.
const (
	StatusSourceable    = "Sourceable"
	StatusNotSourceable = "Not Sourceable"
)

// Gap priority tiers, from most to least urgent.
const (
	TierCritical = "CRITICAL"
	TierHigh     = "HIGH"
	TierMedium   = "MEDIUM"
)

// Chart colors for the known priority labels. Unknown labels are
// still counted, with no color.
var priorityColors = map[string]string{
	"URGENT": "#ff4b4b",
	"HIGH":   "#ffa500",
	"NORMAL": "#00cc88",
}

// DateRange bounds time-bucketed aggregations. A zero From or To means
// unbounded on that side; a nil *DateRange means no filtering at all.
type DateRange struct {
	From time.Time
	To   time.Time
}

// Contains reports whether t falls within the range, inclusive.
func (r *DateRange) Contains(t time.Time) bool {
	if r == nil {
		return true
	}
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && t.After(r.To) {
		return false
	}
	return true
}

// LanguageStat is the per-language request summary. Status is empty
// when the Has Linguist? column is absent from the source table.
type LanguageStat struct {
	Language     string `json:"language"`
	RequestCount int    `json:"request_count"`
	Status       string `json:"status,omitempty"`
}

// VolumePoint is one bucket of a time-based volume series. Bucket is
// a year-month (2006-01) for monthly series or a weekday name for
// day-of-week series.
type VolumePoint struct {
	Bucket string `json:"bucket"`
	Count  int    `json:"count"`
}

// PrioritySlice is one slice of the priority distribution.
type PrioritySlice struct {
	Priority string `json:"priority"`
	Count    int    `json:"count"`
	Color    string `json:"color,omitempty"`
}

// StatusSlice is one slice of the fulfillment status distribution,
// relabeled from the raw YES/NO values.
type StatusSlice struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

// LocationStat is one entry of the geographic distribution.
type LocationStat struct {
	Location string `json:"location"`
	Count    int    `json:"count"`
}

// GapEntry is one language with enough unfulfilled requests to count
// as a sourcing gap.
type GapEntry struct {
	Language         string `json:"language"`
	UnfulfilledCount int    `json:"unfulfilled_count"`
	Tier             string `json:"tier"`
}

// OverviewStats is the executive summary over the analysis table.
// FulfillmentRate and UnfulfilledRequests are nil when the
// Has Linguist? column is absent.
type OverviewStats struct {
	TotalRequests       int      `json:"total_requests"`
	FulfillmentRate     *float64 `json:"fulfillment_rate,omitempty"`
	UniqueLanguages     int      `json:"unique_languages"`
	UnfulfilledRequests *int     `json:"unfulfilled_requests,omitempty"`
}
