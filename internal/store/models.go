package store

import "time"

// DailyTotal is the tracked-seconds history record for one calendar day.
type DailyTotal struct {
	Date    string // YYYY-MM-DD
	Seconds int64
}

// Delivery records one outbound heartbeat delivery attempt and its outcome.
type Delivery struct {
	ID        int64
	Entity    string
	Project   string
	Timestamp float64 // heartbeat unix time
	IsWrite   bool
	Extras    int // coalesced extra heartbeats sent in the same call
	Status    string
	CreatedAt time.Time
}
