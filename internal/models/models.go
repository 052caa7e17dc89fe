package models

import "time"

// User represents an account within the daylog service.
type User struct {
	ID        string
	Email     string
	Password  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// LogType distinguishes the two daily journaling sessions.
type LogType string

const (
	LogTypeMorning LogType = "morning"
	LogTypeNight   LogType = "night"
)

// Valid reports whether the value is one of the known session types.
func (t LogType) Valid() bool {
	return t == LogTypeMorning || t == LogTypeNight
}

// LogEntry pairs a recorded video binary with its session metadata.
// Timestamp is milliseconds since epoch, assigned when the capture
// completed rather than when the upload finished, and is the sole sort
// key for listings.
type LogEntry struct {
	ID        string
	OwnerID   string
	Type      LogType
	DateStr   string
	Timestamp int64
	MediaRef  string
	CreatedAt time.Time
}

// DailyStatus marks which session types exist for one calendar day.
type DailyStatus struct {
	HasMorning bool
	HasNight   bool
}

// Statistics aggregates journaling activity for the dashboard. Streak
// counts distinct logged dates across all time, not consecutive days;
// the product label predates the implementation and is kept as-is.
type Statistics struct {
	Streak          int
	VideosThisMonth int
}

// SessionTokens groups the bearer credentials issued to authenticated users.
type SessionTokens struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}
