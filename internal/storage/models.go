package storage

import (
	"database/sql"
	"time"
)

// SessionData is a single detection run for one device.
type SessionData struct {
	ID        int64
	RunID     string
	StartTime time.Time
	DeviceID  string
	Config    sql.NullString
}

// SignalRecord is a stored detection row.
type SignalRecord struct {
	ID        int64
	SessionID int64
	DeviceID  string
	Time      time.Time
	Duration  time.Duration
	Frequency float64
	Bandwidth float64
	MinDBW    float64
	MaxDBW    float64
	AvgDBW    float64
	StdDB     float64
	NoiseDBW  float64
	SNRDB     float64
}

// MatchRecord is a stored matched group row.
type MatchRecord struct {
	ID          int64
	SessionID   int64
	Time        time.Time
	Duration    time.Duration
	Frequency   float64
	MemberCount int
}
