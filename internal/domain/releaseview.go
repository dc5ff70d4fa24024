package domain

import "time"

// DimensionKV is one entry of a ReleaseView's saved filter.
type DimensionKV struct {
	Key   string
	Value string
}

// ReleaseView is a named saved filter used by the UI to scope release
// listings, scoped to (org, app).
type ReleaseView struct {
	ID         int64
	Org        string
	App        string
	Name       string
	Dimensions []DimensionKV
	CreatedAt  time.Time
}
